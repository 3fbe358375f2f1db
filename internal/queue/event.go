// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// PassQueueName is the durable queue every pass lifecycle event goes
// through. Both the publisher and the consumer declare it, so whichever
// side starts first creates it.
const PassQueueName = "pass.events"

// Event types carried in PassEvent.Type. One event per lifecycle edge,
// plus two notification variants for the staff-issued special passes.
const (
	EventPassCreated        = "pass.created"
	EventPassApproved       = "pass.approved"
	EventPassDenied         = "pass.denied"
	EventPassActivated      = "pass.activated"
	EventPassCompleted      = "pass.completed"
	EventPassExpired        = "pass.expired"
	EventSummonsIssued      = "pass.summons.issued"
	EventEarlyReleaseIssued = "pass.early_release.issued"
)

// PassEvent is published on every pass lifecycle transition. It carries
// enough information for downstream consumers to notify, log, or feed
// analytics without querying the primary database.
type PassEvent struct {
	EventID        string `json:"event_id"`
	Type           string `json:"type"`
	PassID         uint64 `json:"pass_id"`
	SchoolID       uint64 `json:"school_id"`
	StudentID      uint64 `json:"student_id"`
	ActorID        uint64 `json:"actor_id"` // who triggered the transition (student or staff)
	LocationID     uint64 `json:"location_id"`
	Status         string `json:"status"` // pass status after the transition
	IsSummons      bool   `json:"is_summons"`
	IsEarlyRelease bool   `json:"is_early_release"`
	OccurredAt     string `json:"occurred_at"` // RFC 3339 UTC
}

// NewPassEvent stamps a fresh event ID and the current UTC time onto an
// event. Callers fill the pass fields from the row they just committed.
func NewPassEvent(eventType string) PassEvent {
	return PassEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
