// internal/events/events.go

// Package events carries the engine's post-commit notifications out to the
// external collaborators (notification delivery, billing). Emission is
// explicit in the call sites; there are no implicit save hooks.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	KindReservationConfirmed = "reservation.confirmed"
	KindReservationCancelled = "reservation.cancelled"
	KindReservationNoShow    = "reservation.no_show"
	KindWaitlistPromoted     = "waitlist.promoted"
	KindPaymentUpdated       = "payment.updated"
)

type Event struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// New builds an event with a fresh id and timestamp.
func New(kind string, payload map[string]any) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Emitter delivers events after the originating transaction has committed.
// Implementations must not fail the caller: delivery problems are their own
// concern and never roll back booking state.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// LogEmitter writes events to the structured log. It is the default sink and
// stays in the chain even when an AMQP publisher is configured.
type LogEmitter struct{}

func (LogEmitter) Emit(ctx context.Context, event Event) {
	log.Ctx(ctx).Info().
		Str("event_id", event.ID).
		Str("event_kind", event.Kind).
		Interface("payload", event.Payload).
		Msg("Event emitted")
}

// MultiEmitter fans out to several sinks in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(ctx context.Context, event Event) {
	for _, emitter := range m {
		emitter.Emit(ctx, event)
	}
}
