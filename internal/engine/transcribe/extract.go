package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/lrstanley/go-ytdlp"
)

// AudioExtractor downloads the audio track of a video into dir and returns
// the path of the resulting file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoID, dir string) (string, error)
}

// WatchURL is the source URL handed to yt-dlp.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// outputTemplate is the yt-dlp -o value for videoID. A literal % in the id
// is doubled so yt-dlp does not expand it as a template field.
func outputTemplate(dir, videoID string) string {
	return filepath.Join(dir, strings.ReplaceAll(videoID, "%", "%%")+".%(ext)s")
}

// YtDlpExtractor runs yt-dlp --extract-audio --audio-format <format>.
type YtDlpExtractor struct {
	executable string // empty = yt-dlp on PATH
	format     string
}

// NewYtDlpExtractor returns an extractor producing audio in format (mp3 by default).
func NewYtDlpExtractor(executable, format string) *YtDlpExtractor {
	if format == "" {
		format = engine.DefaultAudioFormat
	}
	return &YtDlpExtractor{executable: executable, format: format}
}

func (x *YtDlpExtractor) command(videoID, dir string) *ytdlp.Command {
	dl := ytdlp.New().
		NoPlaylist().
		ExtractAudio().
		AudioFormat(x.format).
		Output(outputTemplate(dir, videoID))
	if x.executable != "" {
		dl = dl.SetExecutable(x.executable)
	}
	return dl
}

// ExtractAudio implements AudioExtractor.
func (x *YtDlpExtractor) ExtractAudio(ctx context.Context, videoID, dir string) (string, error) {
	res, err := x.command(videoID, dir).Run(ctx, WatchURL(videoID))
	if err != nil {
		if res != nil && strings.TrimSpace(res.Stderr) != "" {
			return "", fmt.Errorf("yt-dlp: %w: %s", err, engine.TruncateRunes(strings.TrimSpace(res.Stderr), 500, "..."))
		}
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	return findAudio(dir, videoID, x.format)
}

// findAudio locates the file yt-dlp wrote. The post-processor normally leaves
// <id>.<format>; any other <id>.* file is accepted as a fallback.
func findAudio(dir, videoID, format string) (string, error) {
	want := filepath.Join(dir, videoID+"."+format)
	if info, err := os.Stat(want); err == nil && !info.IsDir() {
		return want, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(videoID)+".*"))
	if err != nil {
		return "", fmt.Errorf("locate audio: %w", err)
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".json") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("audio file for %s not found in %s", videoID, dir)
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

// EnsureYtDlp downloads a yt-dlp build into the go-ytdlp cache when none is
// resolvable. Called once at startup when YTDLP_INSTALL is enabled.
func EnsureYtDlp(ctx context.Context) error {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}
	slog.Info("transcribe: yt-dlp ready", slog.String("path", resolved.Executable), slog.String("version", resolved.Version))
	return nil
}
