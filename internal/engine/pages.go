package engine

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// CaptionSource looks up official captions for a video.
// It returns ErrTranscriptsDisabled or ErrNoTranscriptFound (possibly wrapped)
// when the video has no usable captions in lang.
type CaptionSource interface {
	FetchCaptions(ctx context.Context, videoID, lang string) ([]Segment, error)
}

// Transcriber produces a transcript locally when captions are unavailable.
type Transcriber interface {
	Transcribe(ctx context.Context, videoID string) ([]Segment, error)
}

// Pages builds transcript pages: cache first, then captions, then the local
// transcription fallback. Concurrent first requests for the same video share
// one build.
type Pages struct {
	store    *PageStore
	captions CaptionSource
	fallback Transcriber
	lang     string
	group    singleflight.Group
}

// NewPages wires the request handler. lang is the preferred caption language.
func NewPages(store *PageStore, captions CaptionSource, fallback Transcriber, lang string) *Pages {
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Pages{store: store, captions: captions, fallback: fallback, lang: lang}
}

// Page returns the HTML transcript page for videoID.
// Errors are *CaptionError or *TranscriptionError, or ctx.Err() when the
// caller gives up waiting; cache write failures are logged and do not fail
// the request.
func (p *Pages) Page(ctx context.Context, videoID string) (PageResult, error) {
	metrics.PageRequests.Add(1)

	if res, ok := p.cached(videoID, p.store.Has); ok {
		return res, nil
	}

	// The build outlives any single caller: it runs detached from the
	// starter's cancellation and is bounded by FetchTimeout and
	// TranscribeTimeout. Each caller stops waiting on its own ctx.
	buildCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(videoID, func() (any, error) {
		// A build that finished while we were waiting for the group already
		// wrote the page. Already counted as a miss above.
		if res, ok := p.cached(videoID, p.store.Exists); ok {
			return res, nil
		}
		var res PageResult
		err := TrackOperation(buildCtx, "page_build", func(ctx context.Context) error {
			var err error
			res, err = p.build(ctx, videoID)
			return err
		})
		return res, err
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return PageResult{}, r.Err
		}
		if r.Shared {
			slog.Debug("pages: shared build", slog.String("id", videoID))
		}
		return r.Val.(PageResult), nil
	case <-ctx.Done():
		return PageResult{}, ctx.Err()
	}
}

func (p *Pages) cached(videoID string, exists func(string) bool) (PageResult, bool) {
	if !exists(videoID) {
		return PageResult{}, false
	}
	data, err := p.store.Get(videoID)
	if err != nil {
		slog.Warn("pages: cache read failed, rebuilding", slog.String("id", videoID), slog.Any("error", err))
		return PageResult{}, false
	}
	slog.Debug("pages: cache hit", slog.String("id", videoID))
	return PageResult{VideoID: videoID, Source: SourceCache, Cached: true, HTML: data}, true
}

func (p *Pages) build(ctx context.Context, videoID string) (PageResult, error) {
	tr, err := p.transcript(ctx, videoID)
	if err != nil {
		return PageResult{}, err
	}

	page, err := RenderPage(DefaultTitle(videoID), tr.Segments, videoID)
	if err != nil {
		return PageResult{}, err
	}

	if err := p.store.Put(videoID, []byte(page)); err != nil {
		slog.Warn("pages: cache write failed", slog.String("id", videoID), slog.Any("error", err))
	}

	slog.Info("pages: built",
		slog.String("id", videoID),
		slog.String("source", string(tr.Source)),
		slog.Int("segments", len(tr.Segments)),
	)
	return PageResult{VideoID: videoID, Source: tr.Source, HTML: []byte(page)}, nil
}

// transcript picks the source: captions when present, local transcription
// when captions are disabled or missing, and nothing else on unexpected errors.
func (p *Pages) transcript(ctx context.Context, videoID string) (Transcript, error) {
	segs, err := p.captions.FetchCaptions(ctx, videoID, p.lang)
	switch {
	case err == nil:
		metrics.CaptionHits.Add(1)
		return Transcript{VideoID: videoID, Source: SourceCaptions, Segments: segs}, nil
	case IsCaptionsUnavailable(err):
		slog.Info("pages: captions unavailable, transcribing locally",
			slog.String("id", videoID), slog.Any("reason", err))
	default:
		metrics.CaptionErrors.Add(1)
		return Transcript{}, &CaptionError{VideoID: videoID, Err: err}
	}

	metrics.Fallbacks.Add(1)
	segs, err = p.fallback.Transcribe(ctx, videoID)
	if err != nil {
		metrics.TranscriptionErrors.Add(1)
		return Transcript{}, &TranscriptionError{VideoID: videoID, Err: err}
	}
	return Transcript{VideoID: videoID, Source: SourceWhisper, Segments: segs}, nil
}
