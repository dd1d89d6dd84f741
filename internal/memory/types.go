package memory

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/naturalcheck/internal/models"
)

// ErrTranscriptNotFound is returned when a report id is unknown or expired.
var ErrTranscriptNotFound = errors.New("transcript not found")

// Transcript is the diagnostic record of one failed analysis. It carries the
// full conversation sent to the model, including corrective exchanges.
type Transcript struct {
	ID          string              `json:"id"`
	Model       string              `json:"model"`
	Endpoint    string              `json:"endpoint"`
	Language    string              `json:"language"`
	FailureKind models.FailureKind  `json:"failure_kind"`
	LastKind    models.FailureKind  `json:"last_kind,omitempty"`
	Detail      string              `json:"detail,omitempty"`
	Attempts    int                 `json:"attempts"`
	Messages    models.Conversation `json:"messages"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Store defines the interface for transcript storage
type Store interface {
	// SaveTranscript stores t under t.ID, replacing any previous value
	SaveTranscript(ctx context.Context, t *Transcript) error

	// LoadTranscript returns ErrTranscriptNotFound for unknown ids
	LoadTranscript(ctx context.Context, id string) (*Transcript, error)

	DeleteTranscript(ctx context.Context, id string) error

	TranscriptExists(ctx context.Context, id string) (bool, error)
}
