package rowcursor

import (
	"bufio"
	errs "errors"
	"fmt"
	"io"

	"github.com/go-stdlog/stdlog"

	"github.com/heyvito/rowcursor/errors"
	"github.com/heyvito/rowcursor/internal"
	"github.com/heyvito/rowcursor/internal/metrics"
)

// Cursor provides row-oriented navigation over a delimiter-separated byte
// stream. It keeps the current byte and row positions mutually consistent
// with the wrapped source, and maintains a sparse (row, byte offset) index
// so row seeks do not rescan the stream from its beginning.
//
// The cursor exclusively owns its source: no other code may read from or
// reposition it for as long as the cursor is in use.
type Cursor struct {
	src io.ReadSeeker
	buf *bufio.Reader

	pos    int64
	rowPos int64

	// Totals are -1 until the end of the stream is observed once; they are
	// then fixed for the remainder of the cursor's lifetime.
	length   int64
	rowCount int64

	separator   byte
	granularity int64
	index       *internal.RowIndex

	scratch []byte
	log     stdlog.Logger
}

var (
	_ io.Reader = (*Cursor)(nil)
	_ io.Seeker = (*Cursor)(nil)
)

// New returns a Cursor over src, which must be positioned at the beginning
// of the stream. The cursor takes ownership of src.
func New(src io.ReadSeeker, config Config) *Cursor {
	return newCursor(src, src, config)
}

// NewForward returns a reduced, forward-only Cursor over a source that
// cannot seek. Sequential operations (ReadRow, Read, Peek, Discard,
// ReadUntil, Totals) behave as usual; any operation that would reposition
// the source fails with errors.NotSeekable.
func NewForward(src io.Reader, config Config) *Cursor {
	return newCursor(nil, src, config)
}

func newCursor(seeker io.ReadSeeker, reader io.Reader, config Config) *Cursor {
	c := &Cursor{
		src:         seeker,
		buf:         bufio.NewReader(reader),
		length:      -1,
		rowCount:    -1,
		separator:   config.GetSeparator(),
		granularity: config.GetGranularity(),
		index:       internal.NewRowIndex(),
		log:         config.GetLogger(),
	}
	c.log.Debug("Cursor initialized",
		"separator", fmt.Sprintf("%q", c.separator),
		"granularity", c.granularity,
		"forward_only", seeker == nil,
	)
	return c
}

// Position returns the current absolute byte offset. It performs no I/O.
func (c *Cursor) Position() int64 { return c.pos }

// RowPosition returns the current row index, the count of separators fully
// consumed so far. It performs no I/O.
func (c *Cursor) RowPosition() int64 { return c.rowPos }

// Size returns the total length of the stream in bytes. The second return
// is false until the end of the stream has been observed at least once.
func (c *Cursor) Size() (int64, bool) {
	if c.length < 0 {
		return 0, false
	}
	return c.length, true
}

// Rows returns the total row count of the stream. The second return is
// false until the end of the stream has been observed at least once.
func (c *Cursor) Rows() (int64, bool) {
	if c.rowCount < 0 {
		return 0, false
	}
	return c.rowCount, true
}

// Separator returns the byte currently delimiting rows.
func (c *Cursor) Separator() byte { return c.separator }

// SetSeparator changes the byte delimiting rows. The change affects only
// rows processed afterwards; positions and samples already recorded are
// kept as-is.
func (c *Cursor) SetSeparator(sep byte) { c.separator = sep }

// Granularity returns the current row sampling interval.
func (c *Cursor) Granularity() int64 { return c.granularity }

// SetGranularity changes the row sampling interval. Samples already
// recorded are kept; only the cadence of future samples changes. Values
// below one are rejected with errors.InvalidGranularity.
func (c *Cursor) SetGranularity(granularity int64) error {
	if granularity < 1 {
		return errors.InvalidGranularity{Value: granularity}
	}
	c.granularity = granularity
	return nil
}

// ReadRow reads bytes from the source up to and including the next
// separator, appending them to dst, and returns the extended slice. The
// byte position advances by the amount read and the row position by one.
// Once the end of the stream is reached, dst is returned unchanged along
// with io.EOF, and the stream totals become fixed.
func (c *Cursor) ReadRow(dst []byte) ([]byte, error) {
	out, _, err := c.readRow(dst)
	return out, err
}

// SetPosition moves the cursor to the given absolute byte offset. It jumps
// to the nearest recorded sample below the target and scans forward row by
// row, stepping back by the overshoot when the target falls inside a row.
// The returned offset is clamped to the stream length when the target lies
// beyond the end of the stream.
func (c *Cursor) SetPosition(pos int64) (int64, error) {
	metrics.Simple(metrics.CursorSeekCalls, 0)
	defer metrics.Measure(metrics.CursorSeekLatency)()

	if pos < 0 {
		return 0, errors.InvalidSeek{Target: pos}
	}

	sample := c.index.FloorOffset(pos)
	if err := c.jump(sample.Offset, "SetPosition"); err != nil {
		return c.pos, err
	}
	c.pos = sample.Offset
	c.rowPos = sample.Row

	scanned := 0
	for c.pos < pos {
		var err error
		c.scratch, _, err = c.readRow(c.scratch[:0])
		if errs.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c.pos, err
		}
		scanned++
	}
	if scanned > 0 {
		metrics.Simple(metrics.CursorRowsScanned, float64(scanned))
	}

	if c.pos > pos {
		// The target fell inside a row. Step back to it; the partially
		// consumed row does not count as completed.
		if err := c.jump(pos, "SetPosition"); err != nil {
			return c.pos, err
		}
		c.pos = pos
		c.rowPos--
	}

	return c.pos, nil
}

// SetRowPosition moves the cursor to the beginning of the given row. It
// jumps to the sample with the greatest row at or below the target and
// scans forward until the target row is reached. The returned row is
// clamped to the total row count when the target lies beyond the end of
// the stream.
func (c *Cursor) SetRowPosition(row int64) (int64, error) {
	metrics.Simple(metrics.CursorSeekRowCalls, 0)
	defer metrics.Measure(metrics.CursorSeekRowLatency)()

	if row < 0 {
		return 0, errors.InvalidSeek{Target: row, Rows: true}
	}

	sample := c.index.FloorRow(row)
	if err := c.jump(sample.Offset, "SetRowPosition"); err != nil {
		return c.rowPos, err
	}
	c.pos = sample.Offset
	c.rowPos = sample.Row

	scanned := 0
	for c.rowPos < row {
		var err error
		c.scratch, _, err = c.readRow(c.scratch[:0])
		if errs.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return c.rowPos, err
		}
		scanned++
	}
	if scanned > 0 {
		metrics.Simple(metrics.CursorRowsScanned, float64(scanned))
	}

	return c.rowPos, nil
}

// Seek implements io.Seeker over byte positions, with one deviation from
// the usual convention: io.SeekEnd is relative to the final byte of the
// stream, not to the position one past it, so Seek(0, io.SeekEnd) lands on
// the last byte. Seeking relative to the end forces a scan to end-of-stream
// when the total length is still unknown. A computed target before the
// beginning of the stream fails with errors.InvalidSeek before any I/O.
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = c.pos + offset
	case io.SeekEnd:
		if err := c.discoverEnd(); err != nil {
			return 0, err
		}
		target = c.length - 1 + offset
	default:
		return 0, fmt.Errorf("rowcursor: invalid whence %d", whence)
	}

	if target < 0 {
		return 0, errors.InvalidSeek{Target: target}
	}
	return c.SetPosition(target)
}

// SeekRow mirrors Seek in row space: io.SeekStart is relative to row zero,
// io.SeekCurrent to the current row, and io.SeekEnd to the final row
// (forcing a scan to end-of-stream when the total row count is still
// unknown). A computed target before row zero fails with
// errors.InvalidSeek before any I/O.
func (c *Cursor) SeekRow(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = c.rowPos + offset
	case io.SeekEnd:
		if err := c.discoverEnd(); err != nil {
			return 0, err
		}
		target = c.rowCount - 1 + offset
	default:
		return 0, fmt.Errorf("rowcursor: invalid whence %d", whence)
	}

	if target < 0 {
		return 0, errors.InvalidSeek{Target: target, Rows: true}
	}
	return c.SetRowPosition(target)
}

// Totals reports the stream's total byte length and row count, scanning to
// the end of the stream first in case they are not yet known.
func (c *Cursor) Totals() (size int64, rows int64, err error) {
	if err = c.discoverEnd(); err != nil {
		return 0, 0, err
	}
	return c.length, c.rowCount, nil
}

// readRow is the single scanning primitive: every seek engine and the
// public ReadRow funnel through it, so counter and sample maintenance
// happen in exactly one place.
func (c *Cursor) readRow(dst []byte) ([]byte, int, error) {
	out, n, err := c.readUntil(c.separator, dst)
	if errs.Is(err, io.EOF) {
		if c.length < 0 {
			c.length = c.pos
		}
		if c.rowCount < 0 {
			c.rowCount = c.rowPos
		}
		return out, 0, io.EOF
	}
	if err != nil {
		return out, n, err
	}

	c.pos += int64(n)
	c.rowPos++
	if c.rowPos%c.granularity == 0 {
		c.index.Put(c.rowPos, c.pos)
		metrics.Simple(metrics.CursorCacheSize, float64(c.index.Len()))
	}
	return out, n, nil
}

// readUntil appends bytes up to and including the first occurrence of
// delim to dst. A trailing run of bytes ending at end-of-stream without
// delim is returned as-is; io.EOF is only surfaced once nothing is left to
// read.
func (c *Cursor) readUntil(delim byte, dst []byte) ([]byte, int, error) {
	n := 0
	for {
		frag, err := c.buf.ReadSlice(delim)
		dst = append(dst, frag...)
		n += len(frag)
		switch {
		case err == nil:
			return dst, n, nil
		case errs.Is(err, bufio.ErrBufferFull):
			continue
		case errs.Is(err, io.EOF):
			if n == 0 {
				return dst, 0, io.EOF
			}
			return dst, n, nil
		default:
			return dst, n, err
		}
	}
}

// jump repositions the source to an absolute byte offset and discards the
// read buffer. Counters are left for the caller to adjust.
func (c *Cursor) jump(offset int64, op string) error {
	if c.src == nil {
		return errors.NotSeekable{Op: op}
	}
	if _, err := c.src.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	c.buf.Reset(c.src)
	return nil
}

// discoverEnd scans rows forward until the stream totals are known. It is
// a no-op once the end of the stream has been observed.
func (c *Cursor) discoverEnd() error {
	for c.length < 0 {
		var err error
		c.scratch, _, err = c.readRow(c.scratch[:0])
		if errs.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}
