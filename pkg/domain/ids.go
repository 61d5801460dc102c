// Package domain holds the typed identifiers and the erasure-code value shared
// across services, stores, and transport. IDs are distinct types over
// uuid.UUID so a subject ID can never be passed where a request ID is
// expected; construct them via the ParseX functions at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

// RequestID identifies an erasure request.
type RequestID uuid.UUID

// SubjectID identifies a data subject (the person whose records are held).
type SubjectID uuid.UUID

// ActorID identifies the operator or system principal performing an action.
type ActorID uuid.UUID

// EventID identifies an audit event.
type EventID uuid.UUID

// NewRequestID returns a fresh random RequestID.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewSubjectID returns a fresh random SubjectID.
func NewSubjectID() SubjectID { return SubjectID(uuid.New()) }

// NewActorID returns a fresh random ActorID.
func NewActorID() ActorID { return ActorID(uuid.New()) }

// NewEventID returns a fresh random EventID.
func NewEventID() EventID { return EventID(uuid.New()) }

// ParseRequestID constructs a RequestID from external input.
//
// Errors: CodeInvalidInput when the value is empty, not a UUID, or the nil
// UUID; no other errors are expected.
func ParseRequestID(s string) (RequestID, error) {
	id, err := parseUUID(s, "request id")
	return RequestID(id), err
}

// ParseSubjectID constructs a SubjectID from external input.
func ParseSubjectID(s string) (SubjectID, error) {
	id, err := parseUUID(s, "subject id")
	return SubjectID(id), err
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	id, err := parseUUID(s, "actor id")
	return ActorID(id), err
}

// ParseEventID constructs an EventID from external input.
func ParseEventID(s string) (EventID, error) {
	id, err := parseUUID(s, "event id")
	return EventID(id), err
}

func (id RequestID) String() string { return uuid.UUID(id).String() }
func (id SubjectID) String() string { return uuid.UUID(id).String() }
func (id ActorID) String() string   { return uuid.UUID(id).String() }
func (id EventID) String() string   { return uuid.UUID(id).String() }

func (id RequestID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id SubjectID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the single validation path for all ID types: the input must be
// a well-formed, non-nil UUID. Keeping one path keeps rejection behavior
// identical across types.
func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if id == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil uuid")
	}
	return id, nil
}
