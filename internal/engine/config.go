package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	CacheDir          string
	Language          string        // preferred caption and transcription language
	FetchTimeout      time.Duration // per-request timeout for caption HTTP calls
	CaptionRPS        float64       // outbound caption requests per second, 0 = unlimited
	CaptionMaxRetries int           // extra attempts on transient HTTP errors, 0 = single attempt
	YtDlpPath         string        // empty = resolve yt-dlp from PATH
	WhisperPath       string
	WhisperModel      string
	AudioFormat       string
	MaxTranscriptions int           // concurrent fallback pipelines
	TranscribeTimeout time.Duration // 0 = no timeout
	HTTPClient        *http.Client
	BrowserClient     *BrowserClient // optional; watch page only, nil = HTTPClient
}

// Defaults for the caption language and the fallback tool arguments.
const (
	DefaultLanguage     = "en"
	DefaultWhisperModel = "small"
	DefaultAudioFormat  = "mp3"
	DefaultCacheDir     = "/tmp/cache"
)

var cfg = Config{
	Language:          DefaultLanguage,
	WhisperPath:       "whisper",
	WhisperModel:      DefaultWhisperModel,
	AudioFormat:       DefaultAudioFormat,
	CacheDir:          DefaultCacheDir,
	MaxTranscriptions: 1,
	HTTPClient:        &http.Client{Timeout: 15 * time.Second},
}

// Cfg exposes the engine configuration for sub-packages (sources, transcribe).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
// Zero fields keep their defaults.
func Init(c Config) {
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.WhisperPath == "" {
		c.WhisperPath = "whisper"
	}
	if c.WhisperModel == "" {
		c.WhisperModel = DefaultWhisperModel
	}
	if c.AudioFormat == "" {
		c.AudioFormat = DefaultAudioFormat
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}
	if c.MaxTranscriptions <= 0 {
		c.MaxTranscriptions = 1
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	cfg = c
	Cfg = &cfg
}
