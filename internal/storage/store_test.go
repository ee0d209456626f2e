package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextkeeper/internal/editlog"
)

func sampleLog(t *testing.T) *editlog.Log {
	t.Helper()
	l := editlog.New()
	require.NoError(t, l.Append(editlog.Key{Message: 1, Block: 0}, editlog.Update{Timestamp: 100, Text: "notice"}))
	require.NoError(t, l.Append(editlog.Key{Message: 4, Block: 1}, editlog.Update{Timestamp: 100, Text: "dup"}))
	l.SetKind(4, editlog.EditReadTool)
	require.NoError(t, l.Append(editlog.Key{Message: 6, Block: 1}, editlog.Update{
		Timestamp: 200,
		Text:      "mention",
		Metadata:  editlog.Metadata{Replaced: []string{"a.go"}, Referenced: []string{"a.go", "b.go"}},
	}))
	l.SetKind(6, editlog.EditFileMention)
	return l
}

// stores runs a subtest against every HistoryStore implementation.
func stores(t *testing.T, fn func(t *testing.T, store HistoryStore, key string)) {
	t.Run("file", func(t *testing.T) {
		fn(t, NewFileStore(false), t.TempDir())
	})
	t.Run("file compressed", func(t *testing.T) {
		fn(t, NewFileStore(true), t.TempDir())
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, NewSQLiteStore(openTestDB(t)), "task-1")
	})
}

func TestHistoryStore_LoadMissing(t *testing.T) {
	stores(t, func(t *testing.T, store HistoryStore, key string) {
		log, err := store.Load(key)
		require.NoError(t, err)
		assert.True(t, log.Empty())
	})
}

func TestHistoryStore_RoundTripEmpty(t *testing.T) {
	stores(t, func(t *testing.T, store HistoryStore, key string) {
		require.NoError(t, store.Save(key, editlog.New()))

		log, err := store.Load(key)
		require.NoError(t, err)
		assert.True(t, log.Empty())
	})
}

func TestHistoryStore_RoundTripPopulated(t *testing.T) {
	stores(t, func(t *testing.T, store HistoryStore, key string) {
		want := sampleLog(t)
		require.NoError(t, store.Save(key, want))

		got, err := store.Load(key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestHistoryStore_LatestSaveWins(t *testing.T) {
	stores(t, func(t *testing.T, store HistoryStore, key string) {
		log := sampleLog(t)
		require.NoError(t, store.Save(key, log))

		log.Truncate(100)
		require.NoError(t, store.Save(key, log))

		got, err := store.Load(key)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 4}, got.Messages())
	})
}

func TestHistoryStore_EmptyKey(t *testing.T) {
	stores(t, func(t *testing.T, store HistoryStore, _ string) {
		_, err := store.Load("")
		assert.ErrorIs(t, err, ErrEmptyTaskKey)
		assert.ErrorIs(t, store.Save("", editlog.New()), ErrEmptyTaskKey)
	})
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, HistoryFileName), []byte("{broken"), 0600))

	_, err := NewFileStore(false).Load(dir)
	assert.ErrorIs(t, err, ErrCorruptHistory)
}

func TestFileStore_CorruptCompressedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, HistoryFileName+".zst"), []byte("not zstd"), 0600))

	_, err := NewFileStore(true).Load(dir)
	assert.ErrorIs(t, err, ErrCorruptHistory)
}

func TestFileStore_CompressedReadsPlainFallback(t *testing.T) {
	dir := t.TempDir()
	want := sampleLog(t)
	require.NoError(t, NewFileStore(false).Save(dir, want))

	got, err := NewFileStore(true).Load(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStore_SwitchingEncodingDropsStaleCopy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewFileStore(true).Save(dir, sampleLog(t)))
	require.NoError(t, NewFileStore(false).Save(dir, editlog.New()))

	_, err := os.Stat(filepath.Join(dir, HistoryFileName+".zst"))
	assert.True(t, os.IsNotExist(err))

	got, err := NewFileStore(true).Load(dir)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestFileStore_Path(t *testing.T) {
	assert.Equal(t, filepath.Join("task", "context_history.json"), NewFileStore(false).Path("task"))
	assert.Equal(t, filepath.Join("task", "context_history.json.zst"), NewFileStore(true).Path("task"))
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewFileStore(false).Save(dir, sampleLog(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, HistoryFileName, entries[0].Name())
}

func TestSQLiteStore_Revisions(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	require.NoError(t, store.Save("task-a", editlog.New()))
	require.NoError(t, store.Save("task-a", sampleLog(t)))
	require.NoError(t, store.Save("task-b", editlog.New()))

	revs, err := store.Revisions("task-a", 0)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, 2, revs[0].Revision)
	assert.Equal(t, 3, revs[0].Cells)
	assert.Equal(t, 1, revs[1].Revision)
	assert.NotEmpty(t, revs[0].ID)
}

func TestSQLiteStore_CorruptPayload(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Exec(`
		INSERT INTO context_history (id, task_key, revision, payload, cells, created_at)
		VALUES ('x', 'task', 1, 'garbage', 0, CURRENT_TIMESTAMP)
	`)
	require.NoError(t, err)

	_, err = NewSQLiteStore(db).Load("task")
	assert.ErrorIs(t, err, ErrCorruptHistory)
}
