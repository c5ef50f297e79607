package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type MetricKind int

const (
	CursorSeekCalls MetricKind = iota
	CursorSeekLatency
	CursorSeekRowCalls
	CursorSeekRowLatency
	CursorRowsScanned
	CursorCacheSize

	FileOpenCalls
	FileOpenFailures
	FileOpenLatency
	FileRowCalls
	FileRowLatency
)

var metricsCh = make(chan *metricReading, 1024)
var readingsPool = sync.Pool{
	New: func() interface{} {
		return &metricReading{}
	},
}
var dispatching atomic.Bool

// Simple emits a single reading for a given kind. Readings are dropped
// until a delegate is installed through the public metrics package.
func Simple(kind MetricKind, value float64) {
	if !dispatching.Load() {
		return
	}
	r := readingsPool.Get().(*metricReading)
	r.Kind = kind
	r.Value = value
	metricsCh <- r
}

// Measure returns a function that, once called, emits the elapsed time in
// microseconds for a given kind.
func Measure(kind MetricKind) func() {
	start := time.Now()
	return func() {
		Simple(kind, float64(time.Since(start).Microseconds()))
	}
}

type metricReading struct {
	Kind  MetricKind
	Value float64
}

type delegate interface {
	Dispatch(kind MetricKind, value float64)
}

func Dispatch(del delegate) {
	dispatching.Store(true)
	for msg := range metricsCh {
		del.Dispatch(msg.Kind, msg.Value)
		readingsPool.Put(msg)
	}
}
