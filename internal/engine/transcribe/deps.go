package transcribe

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary the fallback relies on.
type Requirement struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Status reports the availability of a binary.
type Status struct {
	Requirement
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Requirements lists the binaries the pipeline configured by cfg will call.
// yt-dlp needs ffmpeg for the audio post-processing step.
func Requirements(cfg Config) []Requirement {
	ytdlp := cfg.YtDlpPath
	if ytdlp == "" {
		ytdlp = "yt-dlp"
	}
	whisper := cfg.WhisperPath
	if whisper == "" {
		whisper = "whisper"
	}
	return []Requirement{
		{Name: "yt-dlp", Command: ytdlp, Description: "audio extraction"},
		{Name: "ffmpeg", Command: "ffmpeg", Description: "audio conversion for yt-dlp"},
		{Name: "whisper", Command: whisper, Description: "speech-to-text"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		switch {
		case req.Command == "":
			status.Detail = "command not configured"
		default:
			if _, err := exec.LookPath(req.Command); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", req.Command)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// AllAvailable reports whether every status is available.
func AllAvailable(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Available {
			return false
		}
	}
	return true
}
