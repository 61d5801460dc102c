package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"custodia/internal/subject"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// InMemoryStore keeps subjects and notes in process memory. Used by unit
// tests and by dev-mode wiring where no primary database is configured. Same
// contract as the postgres store, including the one-way anonymisation flag.
type InMemoryStore struct {
	mu       sync.RWMutex
	subjects map[id.SubjectID]subject.Subject
	notes    map[id.SubjectID][]subject.Note
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		subjects: make(map[id.SubjectID]subject.Subject),
		notes:    make(map[id.SubjectID][]subject.Note),
	}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects = make(map[id.SubjectID]subject.Subject)
	s.notes = make(map[id.SubjectID][]subject.Note)
}

func (s *InMemoryStore) Create(_ context.Context, subj subject.Subject) error {
	if subj.ID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subjects[subj.ID]; exists {
		return fmt.Errorf("subject %s: %w", subj.ID, sentinel.ErrConflict)
	}
	if subj.CreatedAt.IsZero() {
		subj.CreatedAt = time.Now().UTC()
	}

	notes := subj.Notes
	subj.Notes = nil
	s.subjects[subj.ID] = subj
	for _, note := range notes {
		s.notes[subj.ID] = append(s.notes[subj.ID], noteWithDefaults(note, subj.ID))
	}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, subjectID id.SubjectID) (subject.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subj, ok := s.subjects[subjectID]
	if !ok {
		return subject.Subject{}, fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	subj.Notes = append([]subject.Note(nil), s.notes[subjectID]...)
	return subj, nil
}

func (s *InMemoryStore) AddNote(_ context.Context, note subject.Note) error {
	if note.SubjectID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "note subject id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[note.SubjectID]; !ok {
		return fmt.Errorf("subject %s: %w", note.SubjectID, sentinel.ErrNotFound)
	}
	s.notes[note.SubjectID] = append(s.notes[note.SubjectID], noteWithDefaults(note, note.SubjectID))
	return nil
}

func (s *InMemoryStore) StripPII(_ context.Context, subjectID id.SubjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subj, ok := s.subjects[subjectID]
	if !ok {
		return fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	subj.FullName = ""
	subj.Email = ""
	subj.Phone = ""
	subj.DateOfBirth = ""
	subj.Address = ""
	s.subjects[subjectID] = subj
	return nil
}

// DeleteNotes removes every journal entry for the subject. Deleting zero
// notes is success; the subject row itself is untouched.
func (s *InMemoryStore) DeleteNotes(_ context.Context, subjectID id.SubjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, subjectID)
	return nil
}

func (s *InMemoryStore) DeleteSubjectAndDependents(_ context.Context, subjectID id.SubjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subjects[subjectID]; !ok {
		return fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	delete(s.subjects, subjectID)
	delete(s.notes, subjectID)
	return nil
}

// SetAnonymised marks the subject anonymised. Clearing the flag is refused
// before the record is even looked up.
func (s *InMemoryStore) SetAnonymised(_ context.Context, subjectID id.SubjectID, anonymised bool) error {
	if !anonymised {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"anonymisation flag is one-way: refusing to clear it").
			Add("subject_id", subjectID.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subj, ok := s.subjects[subjectID]
	if !ok {
		return fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	subj.IsAnonymised = true
	s.subjects[subjectID] = subj
	return nil
}

func noteWithDefaults(note subject.Note, subjectID id.SubjectID) subject.Note {
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	note.SubjectID = subjectID
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	return note
}
