package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const whisperJSON = `{"text":" Hello there. General Kenobi.","language":"en","segments":[
{"id":0,"start":0.0,"end":2.4,"text":" Hello there."},
{"id":1,"start":2.4,"end":3.0,"text":"   "},
{"id":2,"start":3.04,"end":5.5,"text":" General\nKenobi."}]}`

// fakeExtractor writes an empty audio file and records calls.
type fakeExtractor struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, videoID, dir string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	p := filepath.Join(dir, videoID+".mp3")
	return p, os.WriteFile(p, nil, 0o644)
}

// whisperWriting returns a runner that writes payload where whisper would.
func whisperWriting(payload string, gotArgs *[]string) CommandRunner {
	return func(ctx context.Context, name string, args ...string) error {
		if gotArgs != nil {
			*gotArgs = append([]string{name}, args...)
		}
		audio := args[0]
		var outDir string
		for i := range args {
			if args[i] == "--output_dir" {
				outDir = args[i+1]
			}
		}
		base := filepath.Base(audio)
		base = base[:len(base)-len(filepath.Ext(base))]
		return os.WriteFile(filepath.Join(outDir, base+".json"), []byte(payload), 0o644)
	}
}

func newTestPipeline(x AudioExtractor, runner CommandRunner, cfg Config) *Pipeline {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return NewPipeline(cfg).WithExtractor(x).WithCommandRunner(runner)
}

func TestPipelineTranscribe(t *testing.T) {
	var args []string
	x := &fakeExtractor{}
	p := newTestPipeline(x, whisperWriting(whisperJSON, &args), Config{TempDir: t.TempDir()})

	segs, err := p.Transcribe(context.Background(), "vid123")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, 0.0, segs[0].Start)
	assert.Equal(t, "Hello there.", segs[0].Text)
	assert.Equal(t, 3.04, segs[1].Start)
	assert.Equal(t, "General Kenobi.", segs[1].Text)
	assert.EqualValues(t, 1, x.calls.Load())

	require.NotEmpty(t, args)
	assert.Equal(t, "whisper", args[0])
	assert.Equal(t, "vid123.mp3", filepath.Base(args[1]))
	assert.Contains(t, args, "small")
	assert.Contains(t, args, "json")
	assert.Contains(t, args, "en")
}

func TestPipelineRemovesWorkDir(t *testing.T) {
	tmp := t.TempDir()
	p := newTestPipeline(&fakeExtractor{}, whisperWriting(whisperJSON, nil), Config{TempDir: tmp})

	_, err := p.Transcribe(context.Background(), "vid")
	require.NoError(t, err)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipelineExtractFailure(t *testing.T) {
	whisperCalled := false
	runner := func(ctx context.Context, name string, args ...string) error {
		whisperCalled = true
		return nil
	}
	p := newTestPipeline(&fakeExtractor{err: errors.New("exit status 1")}, runner, Config{TempDir: t.TempDir()})

	_, err := p.Transcribe(context.Background(), "vid")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageExtract, se.Stage)
	assert.False(t, whisperCalled)
}

func TestPipelineWhisperFailure(t *testing.T) {
	runner := func(ctx context.Context, name string, args ...string) error {
		return errors.New("whisper: exit status 2")
	}
	p := newTestPipeline(&fakeExtractor{}, runner, Config{TempDir: t.TempDir()})

	_, err := p.Transcribe(context.Background(), "vid")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageTranscribe, se.Stage)
}

func TestPipelineMalformedOutput(t *testing.T) {
	p := newTestPipeline(&fakeExtractor{}, whisperWriting(`{"segments":[{"text":"no start"}]}`, nil), Config{TempDir: t.TempDir()})

	_, err := p.Transcribe(context.Background(), "vid")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageTranscribe, se.Stage)
}

func TestPipelineEmptyTranscript(t *testing.T) {
	p := newTestPipeline(&fakeExtractor{}, whisperWriting(`{"segments":[]}`, nil), Config{TempDir: t.TempDir()})

	_, err := p.Transcribe(context.Background(), "vid")
	assert.ErrorIs(t, err, ErrEmptyTranscript)
}

func TestPipelineTimeout(t *testing.T) {
	x := &fakeExtractor{delay: time.Second}
	p := newTestPipeline(x, whisperWriting(whisperJSON, nil), Config{TempDir: t.TempDir(), Timeout: 20 * time.Millisecond})

	_, err := p.Transcribe(context.Background(), "vid")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipelineSlotsLimitConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	runner := func(ctx context.Context, name string, args ...string) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return whisperWriting(whisperJSON, nil)(ctx, name, args...)
	}
	p := newTestPipeline(&fakeExtractor{}, runner, Config{TempDir: t.TempDir(), MaxConcurrent: 1})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Transcribe(context.Background(), "vid")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, peak.Load())
}

func TestFindAudio(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.webm.part"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.m4a"), nil, 0o644))

	got, err := findAudio(dir, "abc", "mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.m4a"), got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.mp3"), nil, 0o644))
	got, err = findAudio(dir, "abc", "mp3")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.mp3"), got)

	_, err = findAudio(dir, "missing", "mp3")
	assert.Error(t, err)
}

func TestCheckBinaries(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "empty", Command: "  "},
		{Name: "missing", Command: "definitely-not-a-real-binary-xyz"},
	})
	require.Len(t, statuses, 2)
	assert.False(t, statuses[0].Available)
	assert.Equal(t, "command not configured", statuses[0].Detail)
	assert.False(t, statuses[1].Available)
	assert.Contains(t, statuses[1].Detail, "not found")
	assert.False(t, AllAvailable(statuses))
	assert.True(t, AllAvailable(nil))
}

func TestRequirementsDefaults(t *testing.T) {
	reqs := Requirements(Config{})
	require.Len(t, reqs, 3)
	assert.Equal(t, "yt-dlp", reqs[0].Command)
	assert.Equal(t, "whisper", reqs[2].Command)
}
