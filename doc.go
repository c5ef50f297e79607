// Package rowcursor provides random-access, row-oriented navigation over a
// delimiter-separated byte stream (CSV, NDJSON, log files, and the like)
// backed by an arbitrary seekable source.
//
// A Cursor tracks both its absolute byte position and its row position, and
// lets callers seek in either space. Row seeks are made cheap through a
// sparse index of (row, byte offset) samples recorded incrementally while
// rows are scanned: a seek jumps to the nearest recorded sample and scans
// forward from there instead of from the beginning of the stream.
//
// The cursor never interprets row contents; callers receive raw bytes,
// including the trailing separator. It exclusively owns the wrapped source
// and is not safe for concurrent use without external synchronization.
//
// The rowfile subpackage builds a row-oriented file reader on top of the
// cursor, adding exclusive file locking and optional memory-mapped sources.
package rowcursor
