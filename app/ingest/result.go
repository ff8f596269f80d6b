package ingest

import (
	"fmt"
	"time"
)

const maxWarnings = 20

type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateExtracting  State = "extracting"
	StateProcessing  State = "normalizing_upserting"
	StateSummarizing State = "summarizing"
)

// Result is the summary every trigger receives. A failed run carries Error
// and zero item counts; a successful run with nothing new is "up to date".
type Result struct {
	Feed       string    `json:"feed"`
	Success    bool      `json:"success"`
	Inserted   int       `json:"inserted"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	Total      int       `json:"total"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

func (r *Result) addWarning(format string, args ...any) {
	if len(r.Warnings) >= maxWarnings {
		return
	}
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) fail(err error) {
	r.Success = false
	r.Inserted, r.Skipped, r.Errors, r.Total = 0, 0, 0, 0
	r.Error = err.Error()
	r.Message = ""
}

func summaryMessage(inserted, errors int) string {
	var msg string
	switch inserted {
	case 0:
		msg = "Already up to date"
	case 1:
		msg = "Synced 1 new episode"
	default:
		msg = fmt.Sprintf("Synced %d new episodes", inserted)
	}

	switch errors {
	case 0:
	case 1:
		msg += " (1 error)"
	default:
		msg += fmt.Sprintf(" (%d errors)", errors)
	}

	return msg
}
