package transcribe

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flagValue returns the argument after the first of names found in args.
func flagValue(args []string, names ...string) (string, bool) {
	for i, a := range args {
		if slices.Contains(names, a) && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func hasFlag(args []string, names ...string) bool {
	return slices.ContainsFunc(args, func(a string) bool { return slices.Contains(names, a) })
}

func TestYtDlpExtractorCommand(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name       string
		executable string
		format     string
		id         string
		wantFormat string
		wantOutput string
		wantURL    string
	}{
		{
			name:       "defaults",
			executable: "/opt/yt-dlp/bin/yt-dlp",
			id:         "dQw4w9WgXcQ",
			wantFormat: "mp3",
			wantOutput: filepath.Join(dir, "dQw4w9WgXcQ.%(ext)s"),
			wantURL:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:       "custom format",
			executable: "/usr/local/bin/yt-dlp-nightly",
			format:     "m4a",
			id:         "abc",
			wantFormat: "m4a",
			wantOutput: filepath.Join(dir, "abc.%(ext)s"),
			wantURL:    "https://www.youtube.com/watch?v=abc",
		},
		{
			name:       "template and query characters in id",
			executable: "/opt/yt-dlp/bin/yt-dlp",
			id:         "a%(title)s&list=PL1",
			wantFormat: "mp3",
			wantOutput: filepath.Join(dir, "a%%(title)s&list=PL1.%(ext)s"),
			wantURL:    "https://www.youtube.com/watch?v=a%25%28title%29s%26list%3DPL1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewYtDlpExtractor(tt.executable, tt.format)
			cmd := x.command(tt.id, dir).BuildCommand(context.Background(), WatchURL(tt.id))
			require.NotNil(t, cmd)
			args := cmd.Args

			assert.Equal(t, tt.executable, args[0])
			assert.True(t, hasFlag(args, "--extract-audio", "-x"), "extract audio: %v", args)
			assert.True(t, hasFlag(args, "--no-playlist"), "no playlist: %v", args)

			format, ok := flagValue(args, "--audio-format")
			require.True(t, ok, "audio format: %v", args)
			assert.Equal(t, tt.wantFormat, format)

			output, ok := flagValue(args, "--output", "-o")
			require.True(t, ok, "output: %v", args)
			assert.Equal(t, tt.wantOutput, output)

			assert.Equal(t, tt.wantURL, args[len(args)-1])
		})
	}
}

func TestWatchURLEscapesID(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", WatchURL("dQw4w9WgXcQ"))
	assert.Equal(t, "https://www.youtube.com/watch?v=a%26list%3Dx", WatchURL("a&list=x"))
}

func TestOutputTemplateEscapesPercent(t *testing.T) {
	assert.Equal(t, filepath.Join("/w", "id.%(ext)s"), outputTemplate("/w", "id"))
	assert.Equal(t, filepath.Join("/w", "50%%(id)s.%(ext)s"), outputTemplate("/w", "50%(id)s"))
}
