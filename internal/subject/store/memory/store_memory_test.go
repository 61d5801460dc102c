package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/subject"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
)

func newSubject() subject.Subject {
	return subject.Subject{
		ID:          id.NewSubjectID(),
		FullName:    "Ada Lovelace",
		Email:       "ada@example.org",
		Phone:       "+44 20 7946 0958",
		DateOfBirth: "1815-12-10",
		Address:     "12 St James's Square, London",
		Notes: []subject.Note{
			{Body: "requested a copy of her file"},
			{Body: "phoned about erasure options"},
		},
	}
}

func TestCreateAndGet_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()
	subj := newSubject()

	require.NoError(t, store.Create(context.Background(), subj))

	got, err := store.Get(context.Background(), subj.ID)
	require.NoError(t, err)
	assert.Equal(t, subj.ID, got.ID)
	assert.Equal(t, subj.FullName, got.FullName)
	assert.False(t, got.IsAnonymised)
	assert.False(t, got.CreatedAt.IsZero())

	require.Len(t, got.Notes, 2)
	for _, note := range got.Notes {
		assert.Equal(t, subj.ID, note.SubjectID)
		assert.NotEmpty(t, note.ID)
		assert.False(t, note.CreatedAt.IsZero())
	}
}

func TestCreate_RequiresID(t *testing.T) {
	store := NewInMemoryStore()

	err := store.Create(context.Background(), subject.Subject{FullName: "No ID"})

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestCreate_DuplicateIDConflicts(t *testing.T) {
	store := NewInMemoryStore()
	subj := newSubject()

	require.NoError(t, store.Create(context.Background(), subj))
	err := store.Create(context.Background(), subj)

	require.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestGet_Missing(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(context.Background(), id.NewSubjectID())

	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestAddNote(t *testing.T) {
	store := NewInMemoryStore()
	subj := newSubject()
	subj.Notes = nil
	require.NoError(t, store.Create(context.Background(), subj))

	err := store.AddNote(context.Background(), subject.Note{SubjectID: subj.ID, Body: "follow-up call"})
	require.NoError(t, err)

	got, err := store.Get(context.Background(), subj.ID)
	require.NoError(t, err)
	require.Len(t, got.Notes, 1)
	assert.Equal(t, "follow-up call", got.Notes[0].Body)
}

func TestAddNote_MissingSubject(t *testing.T) {
	store := NewInMemoryStore()

	err := store.AddNote(context.Background(), subject.Note{SubjectID: id.NewSubjectID(), Body: "orphan"})

	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestStripPII_ZeroesIdentityFieldsOnly(t *testing.T) {
	store := NewInMemoryStore()
	subj := newSubject()
	require.NoError(t, store.Create(context.Background(), subj))

	require.NoError(t, store.StripPII(context.Background(), subj.ID))

	got, err := store.Get(context.Background(), subj.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FullName)
	assert.Empty(t, got.Email)
	assert.Empty(t, got.Phone)
	assert.Empty(t, got.DateOfBirth)
	assert.Empty(t, got.Address)

	// The row itself survives with its notes; stripping is not deletion.
	assert.Equal(t, subj.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Len(t, got.Notes, 2)
}

func TestStripPII_MissingSubject(t *testing.T) {
	store := NewInMemoryStore()

	err := store.StripPII(context.Background(), id.NewSubjectID())

	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestDeleteNotes_LeavesSubjectInPlace(t *testing.T) {
	store := NewInMemoryStore()
	subj := newSubject()
	require.NoError(t, store.Create(context.Background(), subj))

	require.NoError(t, store.DeleteNotes(context.Background(), subj.ID))

	got, err := store.Get(context.Background(), subj.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Notes)
	assert.Equal(t, subj.FullName, got.FullName)

	// Deleting zero notes is success.
	require.NoError(t, store.DeleteNotes(context.Background(), subj.ID))
}

func TestDeleteSubjectAndDependents(t *testing.T) {
	store := NewInMemoryStore()
	subj := newSubject()
	require.NoError(t, store.Create(context.Background(), subj))

	require.NoError(t, store.DeleteSubjectAndDependents(context.Background(), subj.ID))

	_, err := store.Get(context.Background(), subj.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	err = store.DeleteSubjectAndDependents(context.Background(), subj.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestSetAnonymised_OneWay(t *testing.T) {
	store := NewInMemoryStore()
	subj := newSubject()
	require.NoError(t, store.Create(context.Background(), subj))

	require.NoError(t, store.SetAnonymised(context.Background(), subj.ID, true))

	got, err := store.Get(context.Background(), subj.ID)
	require.NoError(t, err)
	require.True(t, got.IsAnonymised)

	// Clearing the flag is refused, and the record is untouched.
	err = store.SetAnonymised(context.Background(), subj.ID, false)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	got, err = store.Get(context.Background(), subj.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAnonymised)
}

func TestSetAnonymised_MissingSubject(t *testing.T) {
	store := NewInMemoryStore()

	err := store.SetAnonymised(context.Background(), id.NewSubjectID(), true)

	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
