// go_transcript: YouTube transcript page proxy.
//
// GET /v/{id}.html returns a static HTML transcript built from official
// captions, or from yt-dlp + whisper when the video has none. Pages are cached
// on disk. The same lookup is exposed as the MCP tool youtube_transcript_page.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcribe"
	"github.com/anatolykoptev/go_transcript/internal/pageserver"
	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	port    = env.Str("PORT", "8000")
)

func main() {
	initLogger(env.Str("LOG_LEVEL", "info"))
	initEngine()

	store, err := engine.NewPageStore(engine.Cfg.CacheDir)
	if err != nil {
		slog.Error("cache init failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tcfg := transcribe.ConfigFromEngine()
	if env.Str("YTDLP_INSTALL", "") == "true" {
		if err := transcribe.EnsureYtDlp(ctx); err != nil {
			slog.Warn("yt-dlp install failed", slog.Any("error", err))
		}
	}
	reqs := transcribe.Requirements(tcfg)
	for _, s := range transcribe.CheckBinaries(reqs) {
		if s.Available {
			slog.Info("binary found", slog.String("name", s.Name), slog.String("command", s.Command))
		} else {
			slog.Warn("binary missing, fallback transcription will fail",
				slog.String("name", s.Name), slog.String("detail", s.Detail))
		}
	}

	pages := engine.NewPages(store, sources.YouTubeCaptions{}, transcribe.NewPipeline(tcfg), engine.Cfg.Language)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_transcript",
		Version: version,
	}, nil)
	pageserver.RegisterTools(server, pages)

	gin.SetMode(gin.ReleaseMode)
	router := pageserver.NewRouter(pageserver.Config{
		Pages:    pages,
		Version:  version,
		Binaries: reqs,
		MCP:      server,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown failed", slog.Any("error", err))
		}
	}()

	slog.Info("starting go_transcript",
		slog.String("port", port),
		slog.String("version", version),
		slog.String("cache_dir", store.Dir()),
		slog.Int("cached_pages", store.Len()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func initEngine() {
	c := engine.Config{
		CacheDir:          env.Str("CACHE_DIR", engine.DefaultCacheDir),
		Language:          env.Str("TRANSCRIPT_LANG", engine.DefaultLanguage),
		FetchTimeout:      env.Duration("FETCH_TIMEOUT", 15*time.Second),
		CaptionRPS:        env.Float("CAPTION_RPS", 5),
		CaptionMaxRetries: env.Int("CAPTION_MAX_RETRIES", 0),
		YtDlpPath:         env.Str("YTDLP_PATH", ""),
		WhisperPath:       env.Str("WHISPER_PATH", "whisper"),
		WhisperModel:      env.Str("WHISPER_MODEL", engine.DefaultWhisperModel),
		AudioFormat:       env.Str("AUDIO_FORMAT", engine.DefaultAudioFormat),
		MaxTranscriptions: env.Int("MAX_TRANSCRIPTIONS", 1),
		TranscribeTimeout: env.Duration("TRANSCRIBE_TIMEOUT", 0),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	if env.Str("CAPTION_BROWSER_TLS", "") == "true" {
		bc, err := engine.NewBrowserClient(int(c.FetchTimeout / time.Second))
		if err != nil {
			slog.Warn("browser client init failed, using plain HTTP", slog.Any("error", err))
		} else {
			c.BrowserClient = bc
			slog.Info("browser TLS client enabled for watch pages")
		}
	}

	engine.Init(c)
}

func initLogger(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
