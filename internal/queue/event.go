// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// EventsQueue is the durable queue every portal event is published to.
const EventsQueue = "portal.events"

// Event types.
const (
	EventReportUploaded = "report.uploaded"
	EventMetricAdded    = "metric.added"
	EventLeadSubmitted  = "lead.submitted"
	EventSignedIn       = "auth.signed_in"
	EventSignedOut      = "auth.signed_out"
)

// Event is a flat record of something that happened in the portal.  It
// carries enough for the audit log line without querying the database.
type Event struct {
	Type       string            `json:"type"`
	ActorID    string            `json:"actor_id,omitempty"`
	SubjectID  string            `json:"subject_id,omitempty"`
	ClientID   string            `json:"client_id,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
	OccurredAt string            `json:"occurred_at"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(typ, actorID, subjectID string) Event {
	return Event{
		Type:       typ,
		ActorID:    actorID,
		SubjectID:  subjectID,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
