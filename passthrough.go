package rowcursor

import (
	"bytes"
)

// Ordinary buffered reads are forwarded to the source with counter
// maintenance only. Row tracking across these operations is best-effort:
// separator counting is exact only when each call's filled region aligns
// with row boundaries; a row spanning multiple calls is accounted for once
// its separator is eventually read.

// Read implements io.Reader. The byte position advances by the amount
// read, and the row position by the number of separators found within the
// filled slice.
func (c *Cursor) Read(p []byte) (int, error) {
	n, err := c.buf.Read(p)
	c.pos += int64(n)
	c.rowPos += int64(bytes.Count(p[:n], []byte{c.separator}))
	return n, err
}

// Peek returns the next n bytes without consuming them. It is a pure
// pass-through: neither position changes.
func (c *Cursor) Peek(n int) ([]byte, error) {
	return c.buf.Peek(n)
}

// Discard consumes the next n bytes, advancing the byte position by the
// amount actually discarded. The row position is not adjusted; callers
// discarding past separators take over row accounting themselves.
func (c *Cursor) Discard(n int) (int, error) {
	d, err := c.buf.Discard(n)
	c.pos += int64(d)
	return d, err
}

// ReadUntil appends bytes up to and including the first occurrence of
// delim to dst, returning the extended slice. When delim is the current
// separator this is equivalent to a single row scan and the row position
// advances by one; otherwise it advances by the number of separators found
// before delim. Returns io.EOF once nothing is left to read.
func (c *Cursor) ReadUntil(delim byte, dst []byte) ([]byte, error) {
	out, n, err := c.readUntil(delim, dst)
	c.pos += int64(n)
	if n > 0 {
		if delim == c.separator {
			c.rowPos++
		} else {
			c.rowPos += int64(bytes.Count(out[len(out)-n:], []byte{c.separator}))
		}
	}
	return out, err
}
