package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"jiraharvest/pkg/logger"
)

func newStore(t *testing.T) (*FileStore, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state"), log)
	require.NoError(t, err)
	return store, log
}

func TestLoadWithoutCheckpoint(t *testing.T) {
	store, _ := newStore(t)

	cursor, err := store.Load(context.Background(), "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, 0, cursor)

	cp, err := store.Get(context.Background(), "KAFKA")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestAdvanceAndReload(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	fixed := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	require.NoError(t, store.Advance(ctx, "KAFKA", 50))
	require.NoError(t, store.Advance(ctx, "KAFKA", 75))

	// A fresh store simulates a restarted process
	reopened, err := NewFileStore(store.dir, logger.NewNopLogger())
	require.NoError(t, err)
	cursor, err := reopened.Load(ctx, "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, 75, cursor)

	data, err := os.ReadFile(store.Path("KAFKA"))
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, "KAFKA", onDisk["source_id"])
	assert.Equal(t, 75.0, onDisk["cursor"])
	assert.Equal(t, "2024-02-03T04:05:06Z", onDisk["updated_at"])

	_, err = os.Stat(store.Path("KAFKA") + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a save")
}

func TestAdvanceIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	require.NoError(t, store.Advance(ctx, "KAFKA", 50))

	err := store.Advance(ctx, "KAFKA", 50)
	assert.ErrorIs(t, err, ErrNonMonotonic)
	err = store.Advance(ctx, "KAFKA", 25)
	assert.ErrorIs(t, err, ErrNonMonotonic)
	assert.ErrorIs(t, store.Advance(ctx, "KAFKA", 0), ErrNonMonotonic)

	cursor, err := store.Load(ctx, "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, 50, cursor)
}

func TestAdvanceChecksDiskWhenNotLoaded(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	require.NoError(t, store.Advance(ctx, "KAFKA", 100))

	other, err := NewFileStore(store.dir, logger.NewNopLogger())
	require.NoError(t, err)
	assert.ErrorIs(t, other.Advance(ctx, "KAFKA", 60), ErrNonMonotonic)
}

func TestCorruptCheckpointLoadsAsZero(t *testing.T) {
	ctx := context.Background()
	store, log := newStore(t)
	require.NoError(t, os.WriteFile(store.Path("KAFKA"), []byte(`{"source_id": "KAF`), 0644))

	cursor, err := store.Load(ctx, "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, 0, cursor)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)

	require.NoError(t, store.Advance(ctx, "KAFKA", 25))
	cursor, err = store.Load(ctx, "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, 25, cursor)
}

func TestCheckpointForOtherSourceIsIgnored(t *testing.T) {
	store, _ := newStore(t)
	data := []byte(`{"source_id":"SPARK","cursor":10,"updated_at":"2024-01-01T00:00:00Z"}`)
	require.NoError(t, os.WriteFile(store.Path("KAFKA"), data, 0644))

	cursor, err := store.Load(context.Background(), "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, 0, cursor)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	require.NoError(t, store.Advance(ctx, "KAFKA", 50))

	require.NoError(t, store.Reset(ctx, "KAFKA"))
	require.NoError(t, store.Reset(ctx, "KAFKA"), "reset of a missing checkpoint is a no-op")

	cursor, err := store.Load(ctx, "KAFKA")
	require.NoError(t, err)
	assert.Equal(t, 0, cursor)
	require.NoError(t, store.Advance(ctx, "KAFKA", 10))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	require.NoError(t, store.Advance(ctx, "SPARK", 10))
	require.NoError(t, store.Advance(ctx, "KAFKA", 20))
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, "notes.txt"), []byte("x"), 0644))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "KAFKA", list[0].SourceID)
	assert.Equal(t, 20, list[0].Cursor)
	assert.Equal(t, "SPARK", list[1].SourceID)
}

func TestRejectsUnsafeSourceIDs(t *testing.T) {
	store, _ := newStore(t)
	_, err := store.Load(context.Background(), "../escape")
	assert.Error(t, err)
	assert.Error(t, store.Advance(context.Background(), "a/b", 1))
}

func TestCancelledContext(t *testing.T) {
	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Advance(ctx, "KAFKA", 1), context.Canceled)
	_, err := store.Load(ctx, "KAFKA")
	assert.ErrorIs(t, err, context.Canceled)
}
