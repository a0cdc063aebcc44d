package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: 42, Date: "2024-06-01"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cursor.ID)
	assert.Equal(t, "2024-06-01", cursor.Date)

	_, err = DecodeCursor("not base64!")
	assert.Error(t, err)
}

func TestTrim(t *testing.T) {
	rows := []int{1, 2, 3}
	extract := func(v int) Cursor { return Cursor{ID: int64(v)} }

	page, info, err := Trim(rows, 5, extract)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)

	page, info, err = Trim(rows, 2, extract)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, page)
	assert.True(t, info.HasMore)
	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cursor.ID)
}

func TestSizeClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Size())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Size())
}
