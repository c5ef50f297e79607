// Package rowfile implements a row-oriented reader over delimiter-separated
// files, built on top of the rowcursor package. It enforces the cursor's
// single-exclusive-owner model across processes through an advisory lock,
// and can optionally serve rows from a memory-mapped view of the file.
package rowfile

import (
	"bytes"
	"io"
	"os"

	"github.com/go-stdlog/stdlog"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/heyvito/gommap"
	"golang.org/x/sys/unix"

	"github.com/heyvito/rowcursor"
	"github.com/heyvito/rowcursor/internal/flock"
	"github.com/heyvito/rowcursor/internal/metrics"
)

type Options struct {
	// Separator defines the single byte delimiting rows. When zero, newline
	// is assumed.
	Separator byte

	// Granularity indicates the row-index interval at which the cursor
	// records seek samples. When zero, every row boundary is recorded.
	Granularity int64

	// Logger allows a given stdlog.Logger instance to be set as the reader
	// logger. If unset, no logs will be generated.
	Logger stdlog.Logger

	// MemoryMap maps the file into memory and serves the cursor from the
	// mapping instead of issuing file reads.
	MemoryMap bool

	// NoLock skips the exclusive advisory lock over the file. Callers opting
	// out take over the responsibility of guaranteeing a single owner.
	NoLock bool
}

func (o Options) logger() stdlog.Logger {
	if o.Logger != nil {
		return o.Logger.Named("rowfile")
	}
	return stdlog.Discard
}

// Reader provides random row access over a delimiter-separated file. It is
// not safe for concurrent use.
type Reader struct {
	id     uuid.UUID
	path   string
	file   *os.File
	cursor *rowcursor.Cursor
	lock   flock.Flock
	mapped gommap.MMap
	log    stdlog.Logger
	rowBuf []byte
}

// Open opens the row file at path. Unless Options.NoLock is set, a sidecar
// lock file guarantees this process is the file's only reader; a lock left
// behind by a dead process is taken over, while a live owner results in an
// errors.CannotAcquireLock.
func Open(path string, opts Options) (*Reader, error) {
	metrics.Simple(metrics.FileOpenCalls, 0)
	done := metrics.Measure(metrics.FileOpenLatency)
	r, err := open(path, opts, false)
	if err != nil {
		metrics.Simple(metrics.FileOpenFailures, 0)
		return nil, err
	}
	done()
	return r, nil
}

// OpenSnappy opens a snappy framed row file. Framed streams are readable
// but not seekable, so the returned Reader is forward-only: sequential
// access through Cursor, and Count, work as usual, while Row fails with
// errors.NotSeekable as soon as it needs to reposition the stream.
// Options.MemoryMap is ignored.
func OpenSnappy(path string, opts Options) (*Reader, error) {
	metrics.Simple(metrics.FileOpenCalls, 0)
	done := metrics.Measure(metrics.FileOpenLatency)
	r, err := open(path, opts, true)
	if err != nil {
		metrics.Simple(metrics.FileOpenFailures, 0)
		return nil, err
	}
	done()
	return r, nil
}

func open(path string, opts Options, framed bool) (*Reader, error) {
	log := opts.logger()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		id:   uuid.New(),
		path: path,
		file: f,
		log:  log,
	}

	if !opts.NoLock {
		r.lock, err = acquireLock(path+".lock", log)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	config := rowcursor.Config{
		Separator:   opts.Separator,
		Granularity: opts.Granularity,
		Logger:      opts.Logger,
	}

	switch {
	case framed:
		r.cursor = rowcursor.NewForward(snappy.NewReader(f), config)
	case opts.MemoryMap:
		mapped, err := gommap.Map(f.Fd(), gommap.PROT_READ, gommap.MAP_SHARED)
		if err != nil {
			r.release()
			return nil, err
		}
		if err = unix.Madvise(mapped, unix.MADV_SEQUENTIAL); err != nil {
			log.Warning("Failed advising kernel about mapped access pattern",
				"reader_id", r.id, "error", err)
		}
		r.mapped = mapped
		r.cursor = rowcursor.New(bytes.NewReader(mapped), config)
	default:
		r.cursor = rowcursor.New(f, config)
	}

	log.Debug("Row file opened",
		"reader_id", r.id,
		"path", path,
		"memory_mapped", r.mapped != nil,
		"framed", framed,
	)
	return r, nil
}

// Row returns the contents of row i, without its trailing separator.
// Requesting a row at or beyond the total row count returns io.EOF. The
// returned slice is only valid until the next call to Row.
func (r *Reader) Row(i int64) ([]byte, error) {
	metrics.Simple(metrics.FileRowCalls, 0)
	defer metrics.Measure(metrics.FileRowLatency)()

	row, err := r.cursor.SetRowPosition(i)
	if err != nil {
		return nil, err
	}
	if row != i {
		// Clamped: the requested row lies beyond the end of the stream.
		return nil, io.EOF
	}

	out, err := r.cursor.ReadRow(r.rowBuf[:0])
	r.rowBuf = out
	if err != nil {
		return nil, err
	}

	if sep := r.cursor.Separator(); len(out) > 0 && out[len(out)-1] == sep {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Count returns the total number of rows in the file, scanning to the end
// of the stream on first use.
func (r *Reader) Count() (int64, error) {
	_, rows, err := r.cursor.Totals()
	return rows, err
}

// Size returns the total length of the file in bytes, scanning to the end
// of the stream on first use.
func (r *Reader) Size() (int64, error) {
	size, _, err := r.cursor.Totals()
	return size, err
}

// Cursor exposes the underlying cursor for callers needing byte-level
// seeks or pass-through reads. The reader and the cursor share positions.
func (r *Reader) Cursor() *rowcursor.Cursor { return r.cursor }

// Close releases the lock, when held, and closes the underlying file.
func (r *Reader) Close() error {
	r.log.Debug("Row file closing", "reader_id", r.id, "path", r.path)
	return r.release()
}

func (r *Reader) release() error {
	if r.lock != nil {
		_ = r.lock.Remove()
		r.lock = nil
	}
	return r.file.Close()
}
