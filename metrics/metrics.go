package metrics

import (
	"sync/atomic"

	"github.com/heyvito/rowcursor/internal/metrics"
)

var hasDelegate atomic.Bool

// InstallDelegate registers the provided delegates as the sink for library
// instrumentation and starts dispatching readings to them. Only the first
// call has effect.
func InstallDelegate(del *Delegates) {
	if hasDelegate.Swap(true) {
		return
	}
	go metrics.Dispatch(del)
}

type Delegates struct {
	Cursor CursorInstrumentationDelegate
	File   FileInstrumentationDelegate
}

func (d *Delegates) Dispatch(kind metrics.MetricKind, value float64) {
	switch kind {
	case metrics.CursorSeekCalls:
		d.Cursor.SeekCalls(value)
	case metrics.CursorSeekLatency:
		d.Cursor.SeekLatency(value)
	case metrics.CursorSeekRowCalls:
		d.Cursor.SeekRowCalls(value)
	case metrics.CursorSeekRowLatency:
		d.Cursor.SeekRowLatency(value)
	case metrics.CursorRowsScanned:
		d.Cursor.RowsScanned(value)
	case metrics.CursorCacheSize:
		d.Cursor.CacheSize(value)
	case metrics.FileOpenCalls:
		d.File.OpenCalls(value)
	case metrics.FileOpenFailures:
		d.File.OpenFailures(value)
	case metrics.FileOpenLatency:
		d.File.OpenLatency(value)
	case metrics.FileRowCalls:
		d.File.RowCalls(value)
	case metrics.FileRowLatency:
		d.File.RowLatency(value)
	}
}

// CursorInstrumentationDelegate receives readings for cursor seek
// operations: call counters, latencies in microseconds, the number of rows
// scanned while satisfying seeks, and the sparse index size after each
// sample insertion.
type CursorInstrumentationDelegate interface {
	SeekCalls(float64)
	SeekLatency(float64)
	SeekRowCalls(float64)
	SeekRowLatency(float64)
	RowsScanned(float64)
	CacheSize(float64)
}

// FileInstrumentationDelegate receives readings for the rowfile package:
// open call counters, failures and latencies, plus per-row read counters
// and latencies.
type FileInstrumentationDelegate interface {
	OpenCalls(float64)
	OpenFailures(float64)
	OpenLatency(float64)
	RowCalls(float64)
	RowLatency(float64)
}
