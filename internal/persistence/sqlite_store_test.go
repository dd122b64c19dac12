package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MimeLyc/whispercard/internal/subtitle"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "whispercard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleLines() []subtitle.Line {
	return []subtitle.Line{
		{
			ID:                   "1",
			SubIndex:             1,
			OriginalStartSeconds: 1,
			OriginalEndSeconds:   2,
			OriginalText:         "Hello",
			StartSeconds:         1,
			EndSeconds:           2,
			Text:                 "Hello",
		},
		{
			ID:                   "2",
			SubIndex:             2,
			OriginalStartSeconds: 3,
			OriginalEndSeconds:   4,
			OriginalText:         "World",
			StartSeconds:         2.5,
			EndSeconds:           4.5,
			Text:                 "World!",
		},
	}
}

func TestPutAndGetSubtitles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSubtitles(ctx, "book.srt", sampleLines()))

	lines, ok, err := store.GetSubtitles(ctx, "book.srt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, lines, 2)
	require.Equal(t, "World!", lines[1].Text)
	require.Equal(t, 2.5, lines[1].StartSeconds)
}

func TestPutSubtitlesUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSubtitles(ctx, "book.srt", sampleLines()))

	edited := sampleLines()
	edited[0].Text = "Hello again"
	require.NoError(t, store.PutSubtitles(ctx, "book.srt", edited))

	lines, ok, err := store.GetSubtitles(ctx, "book.srt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Hello again", lines[0].Text)
}

func TestGetSubtitlesMissing(t *testing.T) {
	store := newTestStore(t)

	lines, ok, err := store.GetSubtitles(context.Background(), "unknown.srt")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, lines)
}

func TestPutSubtitlesRequiresName(t *testing.T) {
	store := newTestStore(t)
	require.Error(t, store.PutSubtitles(context.Background(), "  ", sampleLines()))
}

func TestDeleteStale(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutSubtitles(ctx, "old.srt", sampleLines()))
	require.NoError(t, store.PutSubtitles(ctx, "fresh.srt", sampleLines()))

	// Backdate one row, then prune everything older than an hour.
	_, err := store.db.ExecContext(ctx, `UPDATE subtitles SET last_modified = ? WHERE document_name = ?`,
		time.Now().UTC().Add(-48*time.Hour), "old.srt")
	require.NoError(t, err)

	removed, err := store.DeleteStale(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, ok, err := store.GetSubtitles(ctx, "old.srt")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = store.GetSubtitles(ctx, "fresh.srt")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whispercard.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.PutSubtitles(context.Background(), "book.srt", sampleLines()))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	lines, ok, err := reopened.GetSubtitles(context.Background(), "book.srt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, lines, 2)
}
