package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custodia/internal/isolation"
	"custodia/internal/subject"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes (class 23, integrity constraint violation).
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Store implements subject.Store over the primary database.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a PostgreSQL subject store. The caller states which logical
// store the handle belongs to; construction fails with isolation_violation
// unless subjects and their notes route there, so a subject store can never
// sit on the audit database connection.
func New(pool *pgxpool.Pool, logical isolation.Store) (*Store, error) {
	for _, kind := range []isolation.EntityKind{isolation.KindSubject, isolation.KindSubjectNote} {
		resolved, err := isolation.ResolveWrite(kind, logical)
		if err != nil {
			return nil, err
		}
		if resolved != logical {
			return nil, dErrors.New(dErrors.CodeIsolationViolation,
				fmt.Sprintf("%s routes to the %s store; refusing a %s handle", kind, resolved, logical))
		}
	}
	// The notes table carries a foreign key into subjects.
	if err := isolation.AllowCrossReference(isolation.KindSubjectNote, isolation.KindSubject); err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier joins a caller-opened primary-database transaction when one
// travels in the context, otherwise uses the pool.
func (s *Store) querier(ctx context.Context) querier {
	if tx, ok := txcontext.PgxFrom(ctx); ok {
		return tx
	}
	return s.pool
}

// Create persists the subject and any embedded notes in one transaction.
func (s *Store) Create(ctx context.Context, subj subject.Subject) error {
	if subj.ID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	if subj.CreatedAt.IsZero() {
		subj.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create subject: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO subjects (id, full_name, email, phone, date_of_birth, address, is_anonymised, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(subj.ID), subj.FullName, subj.Email, subj.Phone, subj.DateOfBirth, subj.Address, subj.IsAnonymised, subj.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subject %s: %w", subj.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert subject: %w", err)
	}

	for _, note := range subj.Notes {
		if err := insertNote(ctx, tx, noteWithDefaults(note, subj.ID)); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create subject: %w", err)
	}
	return nil
}

// Get returns the subject with its notes loaded, oldest note first.
func (s *Store) Get(ctx context.Context, subjectID id.SubjectID) (subject.Subject, error) {
	q := s.querier(ctx)

	var (
		subj  subject.Subject
		rawID uuid.UUID
	)
	err := q.QueryRow(ctx, `
		SELECT id, full_name, email, phone, date_of_birth, address, is_anonymised, created_at
		FROM subjects
		WHERE id = $1
	`, uuid.UUID(subjectID)).Scan(
		&rawID, &subj.FullName, &subj.Email, &subj.Phone,
		&subj.DateOfBirth, &subj.Address, &subj.IsAnonymised, &subj.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return subject.Subject{}, fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
		}
		return subject.Subject{}, fmt.Errorf("query subject: %w", err)
	}
	subj.ID = id.SubjectID(rawID)

	notes, err := listNotes(ctx, q, subjectID)
	if err != nil {
		return subject.Subject{}, err
	}
	subj.Notes = notes
	return subj, nil
}

func (s *Store) AddNote(ctx context.Context, note subject.Note) error {
	if note.SubjectID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "note subject id is required")
	}
	return insertNote(ctx, s.querier(ctx), noteWithDefaults(note, note.SubjectID))
}

// StripPII zeroes every direct-identifier column; the row survives.
func (s *Store) StripPII(ctx context.Context, subjectID id.SubjectID) error {
	tag, err := s.querier(ctx).Exec(ctx, `
		UPDATE subjects
		SET full_name = '', email = '', phone = '', date_of_birth = '', address = ''
		WHERE id = $1
	`, uuid.UUID(subjectID))
	if err != nil {
		return fmt.Errorf("strip subject pii: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	return nil
}

// DeleteNotes removes every journal entry for the subject. Deleting zero
// notes is success; the subject row itself is untouched.
func (s *Store) DeleteNotes(ctx context.Context, subjectID id.SubjectID) error {
	_, err := s.querier(ctx).Exec(ctx,
		`DELETE FROM subject_notes WHERE subject_id = $1`, uuid.UUID(subjectID))
	if err != nil {
		return fmt.Errorf("delete subject notes: %w", err)
	}
	return nil
}

// DeleteSubjectAndDependents removes the subject row; the notes go with it
// via ON DELETE CASCADE.
func (s *Store) DeleteSubjectAndDependents(ctx context.Context, subjectID id.SubjectID) error {
	tag, err := s.querier(ctx).Exec(ctx,
		`DELETE FROM subjects WHERE id = $1`, uuid.UUID(subjectID))
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	return nil
}

// SetAnonymised marks the subject anonymised. Clearing the flag is refused
// before any SQL runs, so not even a store bug can un-anonymise a record.
func (s *Store) SetAnonymised(ctx context.Context, subjectID id.SubjectID, anonymised bool) error {
	if !anonymised {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"anonymisation flag is one-way: refusing to clear it").
			Add("subject_id", subjectID.String())
	}

	tag, err := s.querier(ctx).Exec(ctx,
		`UPDATE subjects SET is_anonymised = TRUE WHERE id = $1`, uuid.UUID(subjectID))
	if err != nil {
		return fmt.Errorf("set subject anonymised: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subject %s: %w", subjectID, sentinel.ErrNotFound)
	}
	return nil
}

func insertNote(ctx context.Context, q querier, note subject.Note) error {
	_, err := q.Exec(ctx, `
		INSERT INTO subject_notes (id, subject_id, body, created_at)
		VALUES ($1, $2, $3, $4)
	`, note.ID, uuid.UUID(note.SubjectID), note.Body, note.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("subject %s: %w", note.SubjectID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert subject note: %w", err)
	}
	return nil
}

func listNotes(ctx context.Context, q querier, subjectID id.SubjectID) ([]subject.Note, error) {
	rows, err := q.Query(ctx, `
		SELECT id, subject_id, body, created_at
		FROM subject_notes
		WHERE subject_id = $1
		ORDER BY created_at, id
	`, uuid.UUID(subjectID))
	if err != nil {
		return nil, fmt.Errorf("query subject notes: %w", err)
	}
	defer rows.Close()

	var notes []subject.Note
	for rows.Next() {
		var (
			note    subject.Note
			noteID  uuid.UUID
			subjRef uuid.UUID
		)
		if err := rows.Scan(&noteID, &subjRef, &note.Body, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject note: %w", err)
		}
		note.ID = noteID
		note.SubjectID = id.SubjectID(subjRef)
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject notes: %w", err)
	}
	return notes, nil
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation
}
