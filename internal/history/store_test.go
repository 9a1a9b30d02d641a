package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &Record{
		ProjectID:   "p1",
		FinalStep:   "complete",
		Link:        "https://drive/doc",
		AuthRetries: 1,
	}
	require.NoError(t, store.Record(ctx, rec))

	// Record assigns the ID and timestamp.
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, "p1", got[0].ProjectID)
	assert.Equal(t, "complete", got[0].FinalStep)
	assert.Equal(t, "https://drive/doc", got[0].Link)
	assert.Equal(t, 1, got[0].AuthRetries)
	assert.WithinDuration(t, rec.CreatedAt, got[0].CreatedAt, time.Second)
}

func TestList_NewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, project := range []string{"p-old", "p-mid", "p-new"} {
		require.NoError(t, store.Record(ctx, &Record{
			ProjectID: project,
			FinalStep: "complete",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "p-new", got[0].ProjectID)
	assert.Equal(t, "p-mid", got[1].ProjectID)
	assert.Equal(t, "p-old", got[2].ProjectID)
}

func TestList_Limit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, store.Record(ctx, &Record{ProjectID: "p1", FinalStep: "complete"}))
	}

	got, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestList_Empty(t *testing.T) {
	store := openTestStore(t)

	got, err := store.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecord_FailedAttempt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, &Record{
		ProjectID:   "p1",
		FinalStep:   "awaiting_authorization",
		Message:     "Drive access was denied",
		AuthRetries: 3,
	}))

	got, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Empty(t, got[0].Link)
	assert.Equal(t, "Drive access was denied", got[0].Message)
	assert.Equal(t, 3, got[0].AuthRetries)
}
