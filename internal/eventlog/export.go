package eventlog

import (
	"time"

	"github.com/google/uuid"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// ExportedEvent is the serializable form of one event for external
// logging and debugging consumers.
type ExportedEvent struct {
	Kind       model.EventKind `json:"kind"`
	Severity   string          `json:"severity"`
	Source     string          `json:"source,omitempty"`
	Payload    map[string]any  `json:"payload,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// ExportBatch is a bounded, optionally kind-filtered batch of events.
type ExportBatch struct {
	SessionID  uuid.UUID       `json:"session_id"`
	Events     []ExportedEvent `json:"events"`
	Count      int             `json:"count"`
	ExportedAt time.Time       `json:"exported_at"`
}

// Export renders up to limit events for a session as a serializable batch,
// oldest first. A nil kind filter exports every kind.
func (l *Log) Export(sessionID uuid.UUID, kinds []model.EventKind, limit int) ExportBatch {
	events := l.Query(sessionID, kinds, limit)

	out := make([]ExportedEvent, len(events))
	for i, ev := range events {
		out[i] = ExportedEvent{
			Kind:       ev.Kind,
			Severity:   ev.Kind.Severity(),
			Source:     ev.Source,
			Payload:    ev.Payload,
			Tags:       ev.Tags,
			OccurredAt: ev.OccurredAt,
		}
	}

	return ExportBatch{
		SessionID:  sessionID,
		Events:     out,
		Count:      len(out),
		ExportedAt: time.Now().UTC(),
	}
}
