package engine

import (
	"errors"
	"fmt"
)

// Caption lookups that fail with one of these are expected: the video simply
// has no usable captions, and the request falls back to local transcription.
var (
	ErrTranscriptsDisabled = errors.New("transcripts are disabled for this video")
	ErrNoTranscriptFound   = errors.New("no transcript found in requested language")
)

// IsCaptionsUnavailable reports whether err means "no captions, try the fallback".
func IsCaptionsUnavailable(err error) bool {
	return errors.Is(err, ErrTranscriptsDisabled) || errors.Is(err, ErrNoTranscriptFound)
}

// CaptionError is an unexpected caption lookup failure (network, decode).
// It aborts the request; the fallback is not attempted.
type CaptionError struct {
	VideoID string
	Err     error
}

func (e *CaptionError) Error() string {
	return fmt.Sprintf("captions %s: %v", e.VideoID, e.Err)
}

func (e *CaptionError) Unwrap() error { return e.Err }

// TranscriptionError is a failure of the local audio + speech-to-text pipeline.
type TranscriptionError struct {
	VideoID string
	Err     error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription %s: %v", e.VideoID, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
