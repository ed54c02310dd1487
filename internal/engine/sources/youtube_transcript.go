package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
)

// YouTube caption fetching.
// Primary:  scrape watch page ytInitialPlayerResponse → caption track → timedtext XML
// Fallback: ANDROID Innertube /player → captionTracks → timedtext XML
//
// "No captions" answers from the primary path are final; only unexpected
// failures (network, markup changes) move on to the fallback.

// YouTubeCaptions is the engine.CaptionSource backed by YouTube.
type YouTubeCaptions struct{}

// FetchCaptions implements engine.CaptionSource.
func (YouTubeCaptions) FetchCaptions(ctx context.Context, videoID, lang string) ([]engine.Segment, error) {
	return FetchYouTubeCaptions(ctx, videoID, lang)
}

// FetchYouTubeCaptions returns the timed caption segments of a video in lang.
// It returns engine.ErrTranscriptsDisabled when the video has no captions and
// engine.ErrNoTranscriptFound when none are in lang.
func FetchYouTubeCaptions(ctx context.Context, videoID, lang string) ([]engine.Segment, error) {
	if engine.Cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, engine.Cfg.FetchTimeout)
		defer cancel()
	}

	segs, err := fetchCaptionsViaPageScrape(ctx, videoID, lang)
	if err == nil || engine.IsCaptionsUnavailable(err) {
		return segs, err
	}
	slog.Warn("youtube: page scrape failed, trying player",
		slog.String("id", videoID), slog.Any("err", err))

	return fetchCaptionsViaPlayer(ctx, videoID, lang)
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// langMatches accepts the exact code and its regional variants (en → en-GB).
func langMatches(code, lang string) bool {
	return code == lang || strings.HasPrefix(code, lang+"-")
}

// pickTrack selects the caption track for lang: a manual track first, then an
// auto-generated one. Tracks that require a PoToken are skipped.
func pickTrack(tracks []captionTrack, lang string) (captionTrack, error) {
	if len(tracks) == 0 {
		return captionTrack{}, engine.ErrTranscriptsDisabled
	}

	var manual, asr *captionTrack
	blocked := false
	for i := range tracks {
		t := &tracks[i]
		if !langMatches(t.LanguageCode, lang) {
			continue
		}
		if needsPoToken(t.BaseURL) {
			blocked = true
			continue
		}
		if t.Kind == "asr" {
			if asr == nil {
				asr = t
			}
		} else if manual == nil {
			manual = t
		}
	}
	switch {
	case manual != nil:
		return *manual, nil
	case asr != nil:
		return *asr, nil
	case blocked:
		return captionTrack{}, fmt.Errorf("%w: %s tracks require PoToken", engine.ErrNoTranscriptFound, lang)
	}
	return captionTrack{}, fmt.Errorf("%w: wanted %s, available %s",
		engine.ErrNoTranscriptFound, lang, strings.Join(trackLanguages(tracks), ","))
}

func trackLanguages(tracks []captionTrack) []string {
	seen := make(map[string]bool, len(tracks))
	var langs []string
	for _, t := range tracks {
		if !seen[t.LanguageCode] {
			seen[t.LanguageCode] = true
			langs = append(langs, t.LanguageCode)
		}
	}
	sort.Strings(langs)
	return langs
}

// tracksFromPlayer classifies a player response: no captions object means the
// uploader disabled them, a non-OK playability status is an unexpected failure.
func tracksFromPlayer(pr playerResp) ([]captionTrack, error) {
	if pr.Captions == nil {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Status != "" && pr.PlayabilityStatus.Status != "OK" {
			return nil, fmt.Errorf("video unplayable: %s %s", pr.PlayabilityStatus.Status, pr.PlayabilityStatus.Reason)
		}
		return nil, engine.ErrTranscriptsDisabled
	}
	return pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

// parseTimedText converts timedtext XML into segments in document order.
func parseTimedText(body []byte) ([]engine.Segment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}

	segs := make([]engine.Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := engine.CleanCaption(line.Text)
		if text == "" {
			continue
		}
		start, err := strconv.ParseFloat(line.Start, 64)
		if err != nil {
			return nil, fmt.Errorf("parse timedtext start %q: %w", line.Start, err)
		}
		var dur float64
		if line.Dur != "" {
			dur, _ = strconv.ParseFloat(line.Dur, 64)
		}
		segs = append(segs, engine.Segment{Start: start, Duration: dur, Text: text})
	}
	return segs, nil
}

// fetchTimedText fetches and parses a YouTube timedtext XML caption URL.
func fetchTimedText(ctx context.Context, baseURL string) ([]engine.Segment, error) {
	resp, err := doYouTube(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}
	return parseTimedText(body)
}

// fetchCaptionsViaPlayer uses the ANDROID Innertube /player endpoint.
// Works from non-blocked (residential/cloud) IP addresses.
func fetchCaptionsViaPlayer(ctx context.Context, videoID, lang string) ([]engine.Segment, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                lang,
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	resp, err := doYouTube(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, ytInnertubeURL+"?prettyPrint=false", bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", ytAndroidUA)
		req.Header.Set("X-Youtube-Client-Name", "3")
		req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("android innertube: %w", err)
	}
	defer resp.Body.Close()

	var pr playerResp
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return captionsFromPlayer(ctx, pr, lang)
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// fetchCaptionsViaPageScrape scrapes the YouTube watch page HTML and extracts
// the caption track XML URL from ytInitialPlayerResponse. Works from any IP.
func fetchCaptionsViaPageScrape(ctx context.Context, videoID, lang string) ([]engine.Segment, error) {
	body, err := fetchWatchPage(ctx, ytWatchURL+url.QueryEscape(videoID), lang)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}

	pr, err := playerFromWatchPage(body)
	if err != nil {
		return nil, err
	}
	return captionsFromPlayer(ctx, pr, lang)
}

// playerFromWatchPage extracts and decodes ytInitialPlayerResponse.
func playerFromWatchPage(body []byte) (playerResp, error) {
	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return playerResp{}, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	jsonData := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if jsonData == nil {
		return playerResp{}, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}
	var pr playerResp
	if err := json.Unmarshal(jsonData, &pr); err != nil {
		return playerResp{}, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return pr, nil
}

func captionsFromPlayer(ctx context.Context, pr playerResp, lang string) ([]engine.Segment, error) {
	tracks, err := tracksFromPlayer(pr)
	if err != nil {
		return nil, err
	}
	track, err := pickTrack(tracks, lang)
	if err != nil {
		return nil, err
	}
	return fetchTimedText(ctx, track.BaseURL)
}

// extractJSON returns the leading balanced JSON object in b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
