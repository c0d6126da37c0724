package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloo-solutions/remind/internal/domain"
	"github.com/cloo-solutions/remind/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger", "regular_data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func imageFrame(text string, at time.Time) *domain.CaptureFrame {
	return &domain.CaptureFrame{Source: domain.SourceImage, Text: text, CapturedAt: at}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regular_data.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = store.InsertCapture(ctx, imageFrame("hello", time.Now()), nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	records, err := store.FetchUnprocessed(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFetchUnprocessed_Order(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 20, 11, 0, 0, 0, time.Local)

	id1, err := store.InsertCapture(ctx, imageFrame("first", at), nil)
	require.NoError(t, err)
	_, err = store.InsertCapture(ctx, &domain.CaptureFrame{
		Source: domain.SourceTranscription, Title: "standup", Text: "spoken", CapturedAt: at,
	}, nil)
	require.NoError(t, err)
	id2, err := store.InsertCapture(ctx, imageFrame("second", at.Add(time.Minute)), nil)
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	records, err := store.FetchUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "first", records[0].Text)
	assert.Equal(t, "second", records[1].Text)
	assert.Equal(t, domain.SourceTranscription, records[2].Source)
	assert.Equal(t, "spoken", records[2].Text)
	assert.Equal(t, "2024-05-20", records[0].Date)
	assert.Equal(t, "11:00:00", records[0].Time)
}

func TestMarkProcessed_OnlyGivenRefs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := store.InsertCapture(ctx, imageFrame("a", now), nil)
	require.NoError(t, err)

	fetched, err := store.FetchUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, fetched, 1)

	// Arrives between fetch and mark.
	_, err = store.InsertCapture(ctx, imageFrame("late", now), nil)
	require.NoError(t, err)

	refs := make([]domain.RecordRef, 0, len(fetched))
	for _, r := range fetched {
		refs = append(refs, r.Ref())
	}
	require.NoError(t, store.MarkProcessed(ctx, refs))

	remaining, err := store.FetchUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "late", remaining[0].Text)
}

func TestMarkProcessed_InvalidSourceRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.InsertCapture(ctx, imageFrame("a", time.Now()), nil)
	require.NoError(t, err)

	err = store.MarkProcessed(ctx, []domain.RecordRef{
		{Source: domain.SourceImage, ID: id},
		{Source: "video", ID: 1},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidSource)

	remaining, err := store.FetchUnprocessed(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestInsertCapture_InvalidSource(t *testing.T) {
	store := openTestStore(t)
	_, err := store.InsertCapture(context.Background(), &domain.CaptureFrame{Source: "video"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
}

func TestHasFile(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	mod := time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)
	key := domain.FileKey{Path: "/tmp/screenshots/2024-05-20/Screen_10-00-00-000000.jpeg", Size: 1024, ModTime: mod}

	seen, err := store.HasFile(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = store.InsertCapture(ctx, imageFrame("text", mod), &key)
	require.NoError(t, err)

	seen, err = store.HasFile(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	rewritten := key
	rewritten.Size = 2048
	seen, err = store.HasFile(ctx, rewritten)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSweepRetention(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	oldID, err := store.InsertCapture(ctx, imageFrame("eight days", now.AddDate(0, 0, -8)), nil)
	require.NoError(t, err)
	recentID, err := store.InsertCapture(ctx, imageFrame("six days", now.AddDate(0, 0, -6)), nil)
	require.NoError(t, err)
	_, err = store.InsertCapture(ctx, imageFrame("thirty days unprocessed", now.AddDate(0, 0, -30)), nil)
	require.NoError(t, err)

	require.NoError(t, store.MarkProcessed(ctx, []domain.RecordRef{
		{Source: domain.SourceImage, ID: oldID},
		{Source: domain.SourceImage, ID: recentID},
	}))

	removed, err := store.SweepRetention(ctx, now, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Images)
	assert.Equal(t, int64(1), stats.Unprocessed)

	remaining, err := store.FetchUnprocessed(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "thirty days unprocessed", remaining[0].Text)
}

func TestSweepRetention_InvalidDays(t *testing.T) {
	store := openTestStore(t)
	_, err := store.SweepRetention(context.Background(), time.Now(), 0)
	assert.Error(t, err)
}

func TestConcurrentInserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.InsertCapture(ctx, imageFrame("concurrent", time.Now()), nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	records, err := store.FetchUnprocessed(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestDeadLetters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordDeadLetter(ctx, "/a.png", domain.StageExtraction, errors.New("ocr failed")))
	require.NoError(t, store.RecordDeadLetter(ctx, "/a.png", domain.StageExtraction, errors.New("ocr failed again")))
	require.NoError(t, store.RecordDeadLetter(ctx, "/b.png", domain.StageRead, errors.New("permission denied")))
	require.NoError(t, store.RecordDeadLetter(ctx, "/c.png", domain.StageExtraction, nil))

	page, err := store.ListDeadLetters(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "/c.png", page.Items[0].Path)
	assert.Equal(t, "/b.png", page.Items[1].Path)

	cursor, err := pagination.DecodeCursor(page.Cursor)
	require.NoError(t, err)

	page, err = store.ListDeadLetters(ctx, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, "/a.png", page.Items[0].Path)
	assert.Equal(t, 2, page.Items[0].Attempts)
	assert.Equal(t, "ocr failed again", page.Items[0].Error)
}

func TestInsertCapture_ClearsDeadLetter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := domain.FileKey{Path: "/a.png", Size: 10, ModTime: time.Now()}

	require.NoError(t, store.RecordDeadLetter(ctx, key.Path, domain.StageExtraction, errors.New("ocr failed")))
	_, err := store.InsertCapture(ctx, imageFrame("recovered", time.Now()), &key)
	require.NoError(t, err)

	page, err := store.ListDeadLetters(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}
