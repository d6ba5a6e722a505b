package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRecordInconsistent EventType = "record_inconsistent"
	EventRecordPurged       EventType = "record_purged"
	EventCorpusValidated    EventType = "corpus_validated"
)

// Event represents a corpus-maintenance event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	BugID     int64     `json:"bug_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// RecordInconsistentPayload payload.
type RecordInconsistentPayload struct {
	Error string `json:"error"`
	Purge bool   `json:"purge"`
}

// RecordPurgedPayload payload.
type RecordPurgedPayload struct {
	Reason string `json:"reason"`
}

// CorpusValidatedPayload payload.
type CorpusValidatedPayload struct {
	Checked int `json:"checked"`
	Failed  int `json:"failed"`
}
