package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 20, 10, 0, 0, 123, time.UTC)

	encoded := EncodeCursor(42, ts)
	require.NotEmpty(t, encoded)

	cursor, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cursor.LastID)
	assert.True(t, ts.Equal(cursor.Timestamp))
}

func TestDecodeCursor_Empty(t *testing.T) {
	cursor, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, raw := range []string{"!!!", "bm9waXBl", EncodeCursor(0, time.Now())} {
		if raw == "" {
			continue
		}
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor, raw)
	}
}

func TestNewPage(t *testing.T) {
	type row struct {
		id int64
		at time.Time
	}
	now := time.Now()
	pos := func(r row) (int64, time.Time) { return r.id, r.at }

	page := NewPage([]row{{5, now}, {4, now}, {3, now}}, 2, pos)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)

	cursor, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, int64(4), cursor.LastID)

	page = NewPage([]row{{1, now}}, 2, pos)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Cursor)
}
