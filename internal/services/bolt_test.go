package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/draft-writer/internal/models"
	"github.com/MegaGrindStone/draft-writer/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoltDB(t *testing.T) services.BoltDB {
	t.Helper()
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltDBAddAndList(t *testing.T) {
	db := newBoltDB(t)
	ctx := context.Background()
	start := time.Date(2025, 4, 19, 19, 49, 0, 0, time.UTC)

	var ids []string
	for i, text := range []string{"first", "second", "third"} {
		id, err := db.AddDraft(ctx, models.Draft{
			ID:              "d",
			OriginalMessage: "Lunch?",
			Instruction:     "Say yes",
			Model:           testModel,
			Text:            text,
			Status:          models.StatusSucceeded,
			StartedAt:       start.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])

	drafts, err := db.Drafts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, "third", drafts[0].Text)
	assert.Equal(t, "first", drafts[2].Text)
	assert.Equal(t, ids[2], drafts[0].ID)
	assert.Equal(t, models.StatusSucceeded, drafts[0].Status)
	assert.True(t, drafts[2].StartedAt.Equal(start))

	limited, err := db.Drafts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "second", limited[1].Text)
}

func TestBoltDBDraftAndDelete(t *testing.T) {
	db := newBoltDB(t)
	ctx := context.Background()

	id, err := db.AddDraft(ctx, models.Draft{
		ID:          "abc",
		Text:        "partial",
		Status:      models.StatusFailed,
		ErrorDetail: "stream interrupted: unexpected EOF",
	})
	require.NoError(t, err)

	got, err := db.Draft(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "partial", got.Text)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "stream interrupted: unexpected EOF", got.ErrorDetail)

	require.NoError(t, db.DeleteDraft(ctx, id))
	_, err = db.Draft(ctx, id)
	assert.ErrorIs(t, err, services.ErrDraftNotFound)

	require.NoError(t, db.DeleteDraft(ctx, "missing"))
}

func TestBoltDBReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	db, err := services.NewBoltDB(path)
	require.NoError(t, err)
	_, err = db.AddDraft(ctx, models.Draft{ID: "x", Text: "kept"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = services.NewBoltDB(path)
	require.NoError(t, err)
	defer db.Close()

	drafts, err := db.Drafts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "kept", drafts[0].Text)
}
