// Package transcript records the transcribed speech of live sessions.
package transcript

import (
	"context"
	"errors"
	"time"
)

// Role attributes an entry to a side of the conversation.
type Role string

const (
	// RoleUser marks transcribed microphone input.
	RoleUser Role = "user"
	// RoleModel marks transcribed model speech.
	RoleModel Role = "model"
)

// Entry is one transcription fragment. Fragments arrive incrementally; they
// are stored as received and joined by readers.
type Entry struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

var (
	// ErrInvalidID is returned for an empty session id.
	ErrInvalidID = errors.New("invalid session id")

	// ErrNotFound is returned when a session has no transcript.
	ErrNotFound = errors.New("transcript not found")
)

// Store defines the interface for transcript persistence.
type Store interface {
	// Append adds entry to the end of the session's transcript.
	Append(ctx context.Context, sessionID string, entry Entry) error

	// Load returns the session's entries in append order.
	// Returns ErrNotFound if nothing was recorded.
	Load(ctx context.Context, sessionID string) ([]Entry, error)

	// Delete removes the session's transcript. Deleting a missing transcript is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// Text joins the entries of one role in order.
func Text(entries []Entry, role Role) string {
	var out []byte
	for _, e := range entries {
		if e.Role == role {
			out = append(out, e.Text...)
		}
	}
	return string(out)
}
