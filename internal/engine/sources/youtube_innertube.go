package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"golang.org/x/time/rate"
)

// YouTube Innertube API: low-level constants, types, and HTTP primitives.
// Caption selection and parsing live in youtube_transcript.go.

// Endpoints are variables so tests can point them at httptest servers.
var (
	ytInnertubeURL = "https://www.youtube.com/youtubei/v1/player"
	ytWatchURL     = "https://www.youtube.com/watch?v="
)

const (
	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
)

// --- ANDROID client types (/player endpoint) ---

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

// playerResp is shared by the ANDROID /player response and the
// ytInitialPlayerResponse object embedded in the watch page.
type playerResp struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// --- Timedtext XML types ---

type ytTimedText struct {
	Lines []ytLine `xml:"text"`
}

type ytLine struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

// --- outbound pacing ---

var (
	limiterOnce sync.Once
	limiter     *rate.Limiter
)

// captionLimiter paces all requests to YouTube from this process.
// CaptionRPS <= 0 disables pacing.
func captionLimiter() *rate.Limiter {
	limiterOnce.Do(func() {
		rps := engine.Cfg.CaptionRPS
		if rps <= 0 {
			limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := max(int(rps), 1)
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	})
	return limiter
}

// doYouTube sends a request built by newReq through the limiter and the
// caption retry policy, and rejects non-200 responses.
func doYouTube(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	engine.IncrCaptionRequests()
	resp, err := engine.RetryHTTP(ctx, engine.CaptionRetryConfig(), func() (*http.Response, error) {
		if err := captionLimiter().Wait(ctx); err != nil {
			return nil, err
		}
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, engine.TruncateRunes(string(snippet), 120, "..."))
	}
	return resp, nil
}

const watchPageLimit = 6 * 1024 * 1024

// fetchWatchPage GETs the watch page HTML. With engine.Cfg.BrowserClient set
// it goes out with a Chrome TLS fingerprint; pacing applies either way.
func fetchWatchPage(ctx context.Context, watchURL, lang string) ([]byte, error) {
	if bc := engine.Cfg.BrowserClient; bc != nil {
		engine.IncrCaptionRequests()
		if err := captionLimiter().Wait(ctx); err != nil {
			return nil, err
		}
		body, status, err := bc.Get(ctx, watchURL, engine.ChromeHeaders(lang), watchPageLimit)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("HTTP %d: %s", status, engine.TruncateRunes(string(body), 120, "..."))
		}
		return body, nil
	}

	resp, err := doYouTube(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range engine.ChromeHeaders(lang) {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, watchPageLimit))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return body, nil
}
