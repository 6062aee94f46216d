package hermes

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SubjectRecordStored fires after a document's record is persisted.
	SubjectRecordStored = "banorte.record.stored"
	// SubjectRetrainRequested asks the prompt trainer to run another round.
	SubjectRetrainRequested = "banorte.retrain.requested"
	// SubjectPromptPromoted fires when a trained prompt becomes the best one.
	SubjectPromptPromoted = "banorte.prompt.promoted"
)

// RecordStored describes a processed document.
type RecordStored struct {
	EventID     string    `json:"event_id"`
	DocFuente   string    `json:"doc_fuente"`
	Nombre      string    `json:"nombre,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	Validation  string    `json:"validation"`
	Method      string    `json:"extraction_method"`
	ProjectID   int64     `json:"id_proyecto,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// RetrainRequested is sent when new warehouse rows warrant retraining.
type RetrainRequested struct {
	EventID      string    `json:"event_id"`
	TriggeredAt  time.Time `json:"triggered_at"`
	NewRecords   int64     `json:"new_records"`
	TotalRecords int64     `json:"total_records"`
	Reason       string    `json:"reason"`
}

// PromptPromoted is sent when the trainer finds a better prompt.
type PromptPromoted struct {
	EventID   string    `json:"event_id"`
	Iteration int       `json:"iteration"`
	Score     float64   `json:"score"`
	Chars     int       `json:"chars"`
	Path      string    `json:"path"`
	At        time.Time `json:"promoted_at"`
}

// NewEventID returns a fresh event identifier.
func NewEventID() string {
	return uuid.NewString()
}
