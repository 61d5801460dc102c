package subject

import (
	"context"

	id "custodia/pkg/domain"
)

// Store is the persistence contract for subjects and their notes. The
// erasure engine drives the destructive operations; each call is atomic from
// the caller's point of view. Implementations return pkg/platform/sentinel
// facts (ErrNotFound, ErrConflict) for resource states and coded domain
// errors for refused writes.
type Store interface {
	// Create persists the subject and any embedded notes.
	Create(ctx context.Context, subj Subject) error
	// Get returns the subject with its notes loaded, oldest note first.
	Get(ctx context.Context, subjectID id.SubjectID) (Subject, error)
	AddNote(ctx context.Context, note Note) error

	// StripPII zeroes every direct-identifier field; the row survives.
	StripPII(ctx context.Context, subjectID id.SubjectID) error
	// DeleteNotes removes the subject's journal entries. Deleting zero
	// notes is success.
	DeleteNotes(ctx context.Context, subjectID id.SubjectID) error
	// DeleteSubjectAndDependents removes the subject row and everything
	// hanging off it.
	DeleteSubjectAndDependents(ctx context.Context, subjectID id.SubjectID) error
	// SetAnonymised marks the subject anonymised. The flag is one-way:
	// anonymised=false is refused with invariant_violation by every
	// implementation, before any row is touched.
	SetAnonymised(ctx context.Context, subjectID id.SubjectID, anonymised bool) error
}
