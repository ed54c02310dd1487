// Package pageserver exposes transcript pages over HTTP and MCP.
package pageserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/transcribe"
	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const pageSuffix = ".html"

var errInvalidID = errors.New("invalid video id")

// Config wires the router. MCP is optional; nil disables /mcp.
type Config struct {
	Pages    *engine.Pages
	Version  string
	Binaries []transcribe.Requirement
	MCP      *mcp.Server
}

// NewRouter builds the gin engine serving pages, health, metrics and MCP.
func NewRouter(cfg Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	h := &handler{pages: cfg.Pages, version: cfg.Version, binaries: cfg.Binaries}

	router.GET("/v/:file", h.page)
	router.GET("/health", h.health)
	router.GET("/metrics", h.metrics)

	if cfg.MCP != nil {
		srv := cfg.MCP
		mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
		router.Any("/mcp", gin.WrapH(mcpHandler))
	}

	return router
}

type handler struct {
	pages    *engine.Pages
	version  string
	binaries []transcribe.Requirement
}

func (h *handler) page(c *gin.Context) {
	file := c.Param("file")
	if !strings.HasSuffix(file, pageSuffix) {
		c.String(http.StatusNotFound, "404 page not found")
		return
	}
	id := strings.TrimSuffix(file, pageSuffix)
	if err := ValidateVideoID(id); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.pages.Page(c.Request.Context(), id)
	if err != nil {
		slog.Error("pageserver: page failed", slog.String("id", id), slog.Any("error", err))
		c.String(http.StatusInternalServerError, "Internal server error: "+err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", res.HTML)
}

type healthResponse struct {
	Status   string              `json:"status"`
	Version  string              `json:"version"`
	Binaries []transcribe.Status `json:"binaries"`
}

// health reports "degraded" when a fallback binary is missing. Captions and
// cached pages still work in that state, so the status code stays 200.
func (h *handler) health(c *gin.Context) {
	statuses := transcribe.CheckBinaries(h.binaries)
	status := "ok"
	if !transcribe.AllAvailable(statuses) {
		status = "degraded"
	}
	c.JSON(http.StatusOK, healthResponse{Status: status, Version: h.version, Binaries: statuses})
}

func (h *handler) metrics(c *gin.Context) {
	c.String(http.StatusOK, engine.FormatMetrics())
}

// ValidateVideoID rejects ids that would resolve outside the cache directory.
// Anything else is passed through; YouTube decides whether it exists.
func ValidateVideoID(id string) error {
	switch {
	case id == "":
		return errInvalidID
	case strings.ContainsAny(id, `/\`):
		return errInvalidID
	case strings.HasPrefix(id, "."):
		return errInvalidID
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http: request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}
