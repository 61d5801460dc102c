// Package subject holds the data-subject record the erasure engine operates
// on: identity PII, free-text journal notes, and the one-way anonymisation
// marker. The package defines the model and the store contract; the
// implementations live under store/.
package subject

import (
	"time"

	id "custodia/pkg/domain"

	"github.com/google/uuid"
)

// Subject is one data subject's primary-store record.
type Subject struct {
	ID          id.SubjectID
	FullName    string
	Email       string
	Phone       string
	DateOfBirth string
	Address     string

	// IsAnonymised is set true exactly once by the erasure engine. It is
	// never cleared through this package; after anonymisation the row
	// survives with the PII fields zeroed for statistical aggregation.
	IsAnonymised bool

	CreatedAt time.Time
	Notes     []Note
}

// Note is one free-text journal entry attached to a subject.
type Note struct {
	ID        uuid.UUID
	SubjectID id.SubjectID
	Body      string
	CreatedAt time.Time
}
