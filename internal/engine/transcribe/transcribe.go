// Package transcribe is the local fallback used when a video has no captions:
// yt-dlp pulls the audio track, the whisper CLI turns it into timed segments.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"golang.org/x/sync/semaphore"
)

// ErrEmptyTranscript means both tools succeeded but produced no text.
var ErrEmptyTranscript = errors.New("transcription produced no segments")

// StageError tags a pipeline failure with the step that failed.
type StageError struct {
	Stage string // "extract" or "transcribe"
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Stage names.
const (
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
)

// Config holds the fixed arguments of both tool invocations.
type Config struct {
	YtDlpPath     string
	WhisperPath   string
	WhisperModel  string
	AudioFormat   string
	Language      string
	TempDir       string        // empty = os.TempDir()
	Timeout       time.Duration // whole pipeline; 0 = none
	MaxConcurrent int
}

// ConfigFromEngine builds a Config from engine.Cfg.
func ConfigFromEngine() Config {
	c := engine.Cfg
	return Config{
		YtDlpPath:     c.YtDlpPath,
		WhisperPath:   c.WhisperPath,
		WhisperModel:  c.WhisperModel,
		AudioFormat:   c.AudioFormat,
		Language:      c.Language,
		Timeout:       c.TranscribeTimeout,
		MaxConcurrent: c.MaxTranscriptions,
	}
}

// Pipeline runs audio extraction then speech-to-text for one video at a time
// per slot. It implements engine.Transcriber.
type Pipeline struct {
	cfg       Config
	extractor AudioExtractor
	whisper   *Whisper
	slots     *semaphore.Weighted
}

// NewPipeline wires the default yt-dlp extractor and whisper runner.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = engine.DefaultAudioFormat
	}
	if cfg.Language == "" {
		cfg.Language = engine.DefaultLanguage
	}
	return &Pipeline{
		cfg:       cfg,
		extractor: NewYtDlpExtractor(cfg.YtDlpPath, cfg.AudioFormat),
		whisper:   NewWhisper(cfg.WhisperPath, cfg.WhisperModel, cfg.Language),
		slots:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// WithExtractor replaces the audio extractor (for testing).
func (p *Pipeline) WithExtractor(x AudioExtractor) *Pipeline {
	p.extractor = x
	return p
}

// WithCommandRunner sets a custom command runner for whisper (for testing).
func (p *Pipeline) WithCommandRunner(runner CommandRunner) *Pipeline {
	p.whisper.WithCommandRunner(runner)
	return p
}

// Transcribe implements engine.Transcriber. It waits for a free slot, then
// runs both steps in a private temp directory that is removed afterwards.
// Failures are *StageError or ErrEmptyTranscript; no partial transcript is
// ever returned.
func (p *Pipeline) Transcribe(ctx context.Context, videoID string) ([]engine.Segment, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("wait for transcription slot: %w", err)
	}
	defer p.slots.Release(1)

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	engine.IncrTranscriptionRuns()
	start := time.Now()

	workDir, err := os.MkdirTemp(p.cfg.TempDir, "yt-transcribe-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	audio, err := p.extractor.ExtractAudio(ctx, videoID, workDir)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	slog.Info("transcribe: audio ready", slog.String("id", videoID), slog.String("path", audio))

	segs, err := p.whisper.Transcribe(ctx, audio, workDir)
	if err != nil {
		return nil, &StageError{Stage: StageTranscribe, Err: err}
	}
	if len(segs) == 0 {
		return nil, ErrEmptyTranscript
	}

	slog.Info("transcribe: done",
		slog.String("id", videoID),
		slog.Int("segments", len(segs)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return segs, nil
}
