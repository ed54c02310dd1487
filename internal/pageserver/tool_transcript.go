package pageserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers youtube_transcript_page on the given MCP server.
func RegisterTools(server *mcp.Server, pages *engine.Pages) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript_page",
		Description: "Return the HTML transcript page for a YouTube video. Uses official captions when available and falls back to local speech-to-text (yt-dlp + whisper), which can take minutes for long videos. Pages are cached on disk, so repeated calls are instant.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, transcriptPageHandler(pages))
}

func transcriptPageHandler(pages *engine.Pages) func(context.Context, *mcp.CallToolRequest, engine.PageToolInput) (*mcp.CallToolResult, engine.PageToolOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input engine.PageToolInput) (*mcp.CallToolResult, engine.PageToolOutput, error) {
		id := strings.TrimSpace(input.VideoID)
		if err := ValidateVideoID(id); err != nil {
			return nil, engine.PageToolOutput{}, fmt.Errorf("video_id: %w", err)
		}

		res, err := pages.Page(ctx, id)
		if err != nil {
			return nil, engine.PageToolOutput{}, err
		}

		slog.Debug("youtube_transcript_page: done",
			slog.String("id", id),
			slog.String("source", string(res.Source)),
			slog.String("preview", engine.TruncateRunes(string(res.HTML), 120, "...")),
		)
		return nil, engine.PageToolOutput{
			VideoID: res.VideoID,
			Source:  res.Source,
			Cached:  res.Cached,
			HTML:    string(res.HTML),
		}, nil
	}
}
