package rowcursor

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heyvito/rowcursor/errors"
	"github.com/heyvito/rowcursor/internal"
)

const fixture = "foo\nbar\nbiz\nbaz\nbuz\n"

func makeCursor(t *testing.T) *Cursor {
	t.Helper()
	return New(bytes.NewReader([]byte(fixture)), Config{})
}

// TestSetPosition checks that a byte seek into the middle of the stream
// lands on the exact offset with the row counter reflecting the rows fully
// consumed before it.
func TestSetPosition(t *testing.T) {
	c := makeCursor(t)

	pos, err := c.SetPosition(12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), pos)
	assert.Equal(t, int64(12), c.Position())
	assert.Equal(t, int64(3), c.RowPosition())
}

// TestSetRowPosition checks that a row seek lands at the byte offset where
// the requested row begins.
func TestSetRowPosition(t *testing.T) {
	c := makeCursor(t)

	row, err := c.SetRowPosition(2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), row)
	assert.Equal(t, int64(2), c.RowPosition())
	assert.Equal(t, int64(8), c.Position())
}

func TestSeekFromStart(t *testing.T) {
	c := makeCursor(t)

	pos, err := c.Seek(1, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pos)
	assert.Equal(t, int64(0), c.RowPosition())

	pos, err = c.Seek(4, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos)
	assert.Equal(t, int64(1), c.RowPosition())

	// Past end-of-stream: clamps, does not error.
	pos, err = c.Seek(21, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(20), pos)
	assert.Equal(t, int64(5), c.RowPosition())
}

func TestSeekFromCurrent(t *testing.T) {
	c := makeCursor(t)

	pos, err := c.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)

	pos, err = c.Seek(2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pos)
	assert.Equal(t, int64(1), c.RowPosition())

	_, err = c.Seek(-5, io.SeekCurrent)
	require.ErrorAs(t, err, new(errors.InvalidSeek))
}

// TestSeekFromEnd checks end-relative byte seeks, which are anchored on the
// final byte of the stream and force total length discovery.
func TestSeekFromEnd(t *testing.T) {
	c := makeCursor(t)

	pos, err := c.Seek(-7, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(12), pos)
	assert.Equal(t, int64(3), c.RowPosition())

	pos, err = c.Seek(-19, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
	assert.Equal(t, int64(0), c.RowPosition())

	_, err = c.Seek(-20, io.SeekEnd)
	require.ErrorAs(t, err, new(errors.InvalidSeek))

	size, known := c.Size()
	require.True(t, known)
	assert.Equal(t, int64(20), size)
}

func TestSeekRowFromStart(t *testing.T) {
	c := makeCursor(t)

	row, err := c.SeekRow(3, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row)
	assert.Equal(t, int64(12), c.Position())

	// Past the last row: clamps to the total row count.
	row, err = c.SeekRow(6, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(5), row)
	assert.Equal(t, int64(20), c.Position())
}

func TestSeekRowFromCurrent(t *testing.T) {
	c := makeCursor(t)

	row, err := c.SeekRow(1, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row)
	assert.Equal(t, int64(4), c.Position())

	row, err = c.SeekRow(2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row)
	assert.Equal(t, int64(12), c.Position())

	_, err = c.SeekRow(-4, io.SeekCurrent)
	require.ErrorAs(t, err, new(errors.InvalidSeek))
}

func TestSeekRowFromEnd(t *testing.T) {
	c := makeCursor(t)

	row, err := c.SeekRow(-1, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row)
	assert.Equal(t, int64(12), c.Position())

	_, err = c.SeekRow(-5, io.SeekEnd)
	require.ErrorAs(t, err, new(errors.InvalidSeek))

	rows, known := c.Rows()
	require.True(t, known)
	assert.Equal(t, int64(5), rows)
}

// TestReadRow walks rows interleaved with byte seeks, including reading a
// row from the middle after a seek landed inside it.
func TestReadRow(t *testing.T) {
	c := makeCursor(t)

	row, err := c.ReadRow(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("foo\n"), row)
	assert.Equal(t, int64(4), c.Position())
	assert.Equal(t, int64(1), c.RowPosition())

	pos, err := c.Seek(1, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(5), pos)

	row, err = c.ReadRow(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("ar\n"), row)
	assert.Equal(t, int64(8), c.Position())
	assert.Equal(t, int64(2), c.RowPosition())

	pos, err = c.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(19), pos)

	row, err = c.ReadRow(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("\n"), row)
	assert.Equal(t, int64(20), c.Position())
	assert.Equal(t, int64(5), c.RowPosition())

	_, err = c.ReadRow(nil)
	require.ErrorIs(t, err, io.EOF)
}

// TestReadRowAppends checks that ReadRow appends to the provided buffer
// instead of replacing it.
func TestReadRowAppends(t *testing.T) {
	c := makeCursor(t)

	buf := []byte("head:")
	buf, err := c.ReadRow(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("head:foo\n"), buf)
}

// TestSeparatorChange re-delimits the stream at runtime and checks row
// accounting under the new separator.
func TestSeparatorChange(t *testing.T) {
	c := makeCursor(t)
	c.SetSeparator('a')

	pos, err := c.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(19), pos)
	assert.Equal(t, int64(2), c.RowPosition())

	rows, known := c.Rows()
	require.True(t, known)
	assert.Equal(t, int64(3), rows)

	row, err := c.SetRowPosition(1)
	require.NoError(t, err)
	require.Equal(t, int64(1), row)

	data, err := c.ReadRow(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("r\nbiz\nba"), data)
	assert.Equal(t, int64(14), c.Position())
	assert.Equal(t, int64(2), c.RowPosition())
}

// TestGranularity checks that a coarse sampling interval records exactly
// the multiples of the interval, plus the permanent (0, 0) seed.
func TestGranularity(t *testing.T) {
	c := makeCursor(t)
	require.NoError(t, c.SetGranularity(2))

	_, err := c.Seek(0, io.SeekEnd)
	require.NoError(t, err)

	require.Equal(t, 3, c.index.Len())
	samples := c.index.Samples()
	assert.Equal(t, []internal.RowSample{{Row: 0, Offset: 0}, {Row: 2, Offset: 8}, {Row: 4, Offset: 16}}, samples)
}

// TestRowSeekWithCoarseGranularity exercises row seeking when samples are
// recorded above every row boundary, so floor lookups must resolve targets
// falling between samples.
func TestRowSeekWithCoarseGranularity(t *testing.T) {
	c := New(bytes.NewReader([]byte(fixture)), Config{Granularity: 2})

	_, _, err := c.Totals()
	require.NoError(t, err)

	row, err := c.SetRowPosition(3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), row)
	assert.Equal(t, int64(12), c.Position())

	row, err = c.SetRowPosition(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), row)
	assert.Equal(t, int64(4), c.Position())

	row, err = c.SetRowPosition(4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), row)
	assert.Equal(t, int64(16), c.Position())
}

// TestSetPositionClamp checks the general invariant: for any target, the
// resulting position is the target clamped to the stream length, and all
// recorded samples stay on multiples of the granularity.
func TestSetPositionClamp(t *testing.T) {
	c := New(bytes.NewReader([]byte(fixture)), Config{Granularity: 2})

	for p := int64(0); p <= 25; p++ {
		pos, err := c.SetPosition(p)
		require.NoError(t, err)
		want := min(p, 20)
		assert.Equalf(t, want, pos, "unexpected position for target %d", p)
		assert.Equal(t, pos, c.Position())
	}

	for _, s := range c.index.Samples() {
		assert.Zerof(t, s.Row%2, "sample row %d is not on the sampling interval", s.Row)
	}
}

// TestCacheNeverShrinks runs a mixed sequence of operations and checks that
// the sample index only grows and never loses its seed.
func TestCacheNeverShrinks(t *testing.T) {
	c := makeCursor(t)

	last := c.index.Len()
	step := func() {
		require.GreaterOrEqual(t, c.index.Len(), last)
		last = c.index.Len()
		require.Equal(t, internal.RowSample{Row: 0, Offset: 0}, c.index.FloorRow(0))
	}

	_, err := c.SetPosition(10)
	require.NoError(t, err)
	step()
	_, err = c.SetRowPosition(4)
	require.NoError(t, err)
	step()
	c.SetSeparator('a')
	step()
	require.NoError(t, c.SetGranularity(3))
	step()
	_, _, err = c.Totals()
	require.NoError(t, err)
	step()
}

func TestPassThroughRead(t *testing.T) {
	c := makeCursor(t)

	buf := make([]byte, 6)
	n, err := c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	assert.Equal(t, []byte("foo\nba"), buf)
	assert.Equal(t, int64(6), c.Position())
	assert.Equal(t, int64(1), c.RowPosition())
}

func TestPeek(t *testing.T) {
	c := makeCursor(t)

	data, err := c.Peek(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("foo\n"), data)
	assert.Equal(t, int64(0), c.Position())
	assert.Equal(t, int64(0), c.RowPosition())
}

func TestDiscard(t *testing.T) {
	c := makeCursor(t)

	n, err := c.Discard(4)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.Equal(t, int64(4), c.Position())
	// Discard leaves row accounting to the caller.
	assert.Equal(t, int64(0), c.RowPosition())
}

func TestReadUntil(t *testing.T) {
	c := makeCursor(t)

	// 'z' first occurs inside the third row; two separators sit before it.
	data, err := c.ReadUntil('z', nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("foo\nbar\nbiz"), data)
	assert.Equal(t, int64(11), c.Position())
	assert.Equal(t, int64(2), c.RowPosition())

	// Reading until the separator itself counts as one row scan.
	data, err = c.ReadUntil('\n', nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("\n"), data)
	assert.Equal(t, int64(12), c.Position())
	assert.Equal(t, int64(3), c.RowPosition())
}

func TestTotals(t *testing.T) {
	c := makeCursor(t)

	size, rows, err := c.Totals()
	require.NoError(t, err)
	assert.Equal(t, int64(20), size)
	assert.Equal(t, int64(5), rows)

	// Totals are fixed once discovered.
	c.SetSeparator('a')
	size, rows, err = c.Totals()
	require.NoError(t, err)
	assert.Equal(t, int64(20), size)
	assert.Equal(t, int64(5), rows)
}

func TestInvalidGranularity(t *testing.T) {
	c := makeCursor(t)

	err := c.SetGranularity(0)
	require.ErrorAs(t, err, new(errors.InvalidGranularity))
	err = c.SetGranularity(-3)
	require.ErrorAs(t, err, new(errors.InvalidGranularity))
	assert.Equal(t, int64(1), c.Granularity())
}

func TestInvalidWhence(t *testing.T) {
	c := makeCursor(t)

	_, err := c.Seek(0, 42)
	require.ErrorContains(t, err, "invalid whence")
	_, err = c.SeekRow(0, 42)
	require.ErrorContains(t, err, "invalid whence")
}

// TestForwardCursor checks the reduced variant: sequential reads behave as
// usual while repositioning operations fail with NotSeekable.
func TestForwardCursor(t *testing.T) {
	c := NewForward(strings.NewReader(fixture), Config{})

	row, err := c.ReadRow(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("foo\n"), row)

	_, err = c.SetPosition(0)
	require.ErrorAs(t, err, new(errors.NotSeekable))
	_, err = c.SetRowPosition(3)
	require.ErrorAs(t, err, new(errors.NotSeekable))

	size, rows, err := c.Totals()
	require.NoError(t, err)
	assert.Equal(t, int64(20), size)
	assert.Equal(t, int64(5), rows)
}

func TestEmptyStream(t *testing.T) {
	c := New(bytes.NewReader(nil), Config{})

	_, err := c.ReadRow(nil)
	require.ErrorIs(t, err, io.EOF)

	size, known := c.Size()
	require.True(t, known)
	assert.Zero(t, size)
	rows, known := c.Rows()
	require.True(t, known)
	assert.Zero(t, rows)

	pos, err := c.SetPosition(5)
	require.NoError(t, err)
	assert.Zero(t, pos)

	_, err = c.Seek(0, io.SeekEnd)
	require.ErrorAs(t, err, new(errors.InvalidSeek))
}

// TestTrailingPartialRow checks that a final row without its separator is
// still accounted as a row.
func TestTrailingPartialRow(t *testing.T) {
	c := New(bytes.NewReader([]byte("foo\nbar")), Config{})

	size, rows, err := c.Totals()
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)
	assert.Equal(t, int64(2), rows)

	row, err := c.SetRowPosition(1)
	require.NoError(t, err)
	require.Equal(t, int64(1), row)
	data, err := c.ReadRow(nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("bar"), data)
}
