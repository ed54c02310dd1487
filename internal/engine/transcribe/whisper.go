package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// CommandRunner runs an external command and returns its combined output error.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Whisper drives the openai-whisper CLI with a fixed model and language and
// reads back its JSON output.
type Whisper struct {
	executable    string
	model         string
	language      string
	commandRunner CommandRunner
}

// NewWhisper creates a whisper runner. Empty arguments fall back to
// "whisper", the default model and the default language.
func NewWhisper(executable, model, language string) *Whisper {
	if executable == "" {
		executable = "whisper"
	}
	if model == "" {
		model = engine.DefaultWhisperModel
	}
	if language == "" {
		language = engine.DefaultLanguage
	}
	return &Whisper{executable: executable, model: model, language: language}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *Whisper) WithCommandRunner(runner CommandRunner) {
	w.commandRunner = runner
}

// Model returns the configured model name for logging.
func (w *Whisper) Model() string { return w.model }

func (w *Whisper) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, engine.TruncateRunes(strings.TrimSpace(string(output)), 500, "..."))
	}
	return nil
}

// buildArgs constructs the whisper command line for one audio file.
func (w *Whisper) buildArgs(audio, outputDir string) []string {
	return []string{
		audio,
		"--model", w.model,
		"--output_format", "json",
		"--language", w.language,
		"--output_dir", outputDir,
	}
}

// Transcribe runs whisper on audio and parses <outputDir>/<audio base>.json.
func (w *Whisper) Transcribe(ctx context.Context, audio, outputDir string) ([]engine.Segment, error) {
	if err := w.run(ctx, w.executable, w.buildArgs(audio, outputDir)...); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(audio), filepath.Ext(audio))
	return LoadSegments(filepath.Join(outputDir, base+".json"))
}

// whisperPayload is the subset of whisper's JSON output we use.
type whisperPayload struct {
	Language string `json:"language"`
	Segments []struct {
		Start *float64 `json:"start"`
		End   float64  `json:"end"`
		Text  string   `json:"text"`
	} `json:"segments"`
}

// LoadSegments reads a whisper JSON file. Segments keep whisper's order;
// blank ones are dropped. A segment without a start time is malformed.
func LoadSegments(jsonPath string) ([]engine.Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	var payload whisperPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisper json: %w", err)
	}
	segs := make([]engine.Segment, 0, len(payload.Segments))
	for i, s := range payload.Segments {
		if s.Start == nil {
			return nil, fmt.Errorf("parse whisper json: segment %d has no start", i)
		}
		text := strings.Join(strings.Fields(s.Text), " ")
		if text == "" {
			continue
		}
		segs = append(segs, engine.Segment{Start: *s.Start, Duration: max(s.End-*s.Start, 0), Text: text})
	}
	return segs, nil
}
