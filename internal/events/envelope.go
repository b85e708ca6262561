package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// BookingEvent is a versioned booking lifecycle event. Event types end in
// ".v<n>".
type BookingEvent interface {
	EventType() string
	Clinic() string
	AggregateKey() string
}

// Envelope is the outbox and wire representation of a BookingEvent.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	Version       int             `json:"version"`
	ClinicID      string          `json:"clinic_id"`
	Aggregate     string          `json:"aggregate"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Decode unmarshals the event payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("events: decode %s payload: %w", e.EventType, err)
	}
	return nil
}

// Option adjusts a sealed envelope.
type Option func(*Envelope)

// WithEventID fixes the event id instead of generating one.
func WithEventID(id uuid.UUID) Option {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

// OccurredAt overrides the event time.
func OccurredAt(ts time.Time) Option {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.OccurredAt = ts.UTC()
		}
	}
}

// CorrelatedWith tags the envelope with a caller-supplied correlation id.
func CorrelatedWith(id string) Option {
	return func(e *Envelope) {
		e.CorrelationID = strings.TrimSpace(id)
	}
}

var (
	ErrNilEvent      = errors.New("events: event required")
	ErrMissingClinic = errors.New("events: clinic id required")
	ErrUnversioned   = errors.New("events: event type must end in .v<n>")
	nowFunc          = time.Now
)

// Seal wraps evt in an envelope.
func Seal(evt BookingEvent, opts ...Option) (Envelope, error) {
	if evt == nil {
		return Envelope{}, ErrNilEvent
	}
	clinicID := strings.TrimSpace(evt.Clinic())
	if clinicID == "" {
		return Envelope{}, ErrMissingClinic
	}
	eventType := strings.TrimSpace(evt.EventType())
	version, err := eventVersion(eventType)
	if err != nil {
		return Envelope{}, err
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", eventType, err)
	}
	env := Envelope{
		EventID:    uuid.New(),
		EventType:  eventType,
		Version:    version,
		ClinicID:   clinicID,
		Aggregate:  evt.AggregateKey(),
		OccurredAt: nowFunc().UTC(),
		Payload:    payload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

func eventVersion(eventType string) (int, error) {
	idx := strings.LastIndex(eventType, ".v")
	if idx <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrUnversioned, eventType)
	}
	v, err := strconv.Atoi(eventType[idx+2:])
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%w: %q", ErrUnversioned, eventType)
	}
	return v, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertOutboxSQL = `
	INSERT INTO outbox (id, aggregate, event_type, payload)
	VALUES ($1, $2, $3, $4)
`

// Append seals evt and writes it to the outbox through exec, which is
// normally the transaction that wrote the booking row.
func Append(ctx context.Context, exec execer, evt BookingEvent, opts ...Option) (Envelope, error) {
	if exec == nil {
		return Envelope{}, errors.New("events: exec required")
	}
	env, err := Seal(evt, opts...)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	if _, err := exec.Exec(ctx, insertOutboxSQL, env.EventID, env.Aggregate, env.EventType, data); err != nil {
		return Envelope{}, fmt.Errorf("events: append %s: %w", env.EventType, err)
	}
	return env, nil
}
