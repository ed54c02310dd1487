package engine

// --- Transcript types ---

// Segment is one timed unit of transcript text.
type Segment struct {
	Start    float64 `json:"start"`              // seconds from the start of the video
	Duration float64 `json:"duration,omitempty"` // not rendered; kept when the source reports it
	Text     string  `json:"text"`
}

// TranscriptSource names where a transcript came from.
type TranscriptSource string

const (
	SourceCache    TranscriptSource = "cache"
	SourceCaptions TranscriptSource = "captions"
	SourceWhisper  TranscriptSource = "whisper"
)

// Transcript is the ordered segment list for one video, held only for the
// duration of a request.
type Transcript struct {
	VideoID  string           `json:"video_id"`
	Source   TranscriptSource `json:"source"`
	Segments []Segment        `json:"segments"`
}

// --- Output types ---

// PageResult is what the request handler hands back to transports.
type PageResult struct {
	VideoID string           `json:"video_id"`
	Source  TranscriptSource `json:"source"`
	Cached  bool             `json:"cached"`
	HTML    []byte           `json:"-"`
}

// PageToolInput is the MCP input for youtube_transcript_page.
type PageToolInput struct {
	VideoID string `json:"video_id" jsonschema:"YouTube video ID, e.g. dQw4w9WgXcQ"`
}

// PageToolOutput is the MCP output for youtube_transcript_page.
type PageToolOutput struct {
	VideoID string           `json:"video_id"`
	Source  TranscriptSource `json:"source"`
	Cached  bool             `json:"cached"`
	HTML    string           `json:"html"`
}
