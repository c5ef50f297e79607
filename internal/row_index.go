package internal

import "slices"

// RowSample associates a row index with the byte offset immediately after
// that row's separator. Offset is exact at the time the sample is taken and
// is never revised.
type RowSample struct {
	Row    int64
	Offset int64
}

// RowIndex is a sparse, ordered set of RowSamples used to bound the cost of
// re-scanning on seeks. It is permanently seeded with the sample (0, 0), so
// floor lookups always succeed.
type RowIndex struct {
	samples []RowSample
}

func NewRowIndex() *RowIndex {
	return &RowIndex{samples: []RowSample{{Row: 0, Offset: 0}}}
}

func cmpSampleRow(s RowSample, row int64) int {
	switch {
	case s.Row < row:
		return -1
	case s.Row > row:
		return 1
	default:
		return 0
	}
}

// Put records a sample for the given row. Samples are write-once: putting a
// row that has already been recorded is a no-op, even with a different
// offset.
func (x *RowIndex) Put(row, offset int64) {
	at, found := slices.BinarySearchFunc(x.samples, row, cmpSampleRow)
	if found {
		return
	}
	x.samples = slices.Insert(x.samples, at, RowSample{Row: row, Offset: offset})
}

// FloorRow returns the sample with the greatest row that is less than or
// equal to row. Falls back to (0, 0) for any row, as that sample is always
// present.
func (x *RowIndex) FloorRow(row int64) RowSample {
	at, found := slices.BinarySearchFunc(x.samples, row, cmpSampleRow)
	if found {
		return x.samples[at]
	}
	// at is the insertion point; the floor sits right before it. at is never
	// zero here since samples[0].Row == 0 <= row for non-negative rows.
	if at == 0 {
		return x.samples[0]
	}
	return x.samples[at-1]
}

// FloorOffset returns the sample with the greatest byte offset strictly
// below offset, falling back to (0, 0). Offsets grow with rows, so the
// search can run over the same ordering as FloorRow.
func (x *RowIndex) FloorOffset(offset int64) RowSample {
	at, _ := slices.BinarySearchFunc(x.samples, offset, func(s RowSample, off int64) int {
		switch {
		case s.Offset < off:
			return -1
		case s.Offset > off:
			return 1
		default:
			return 0
		}
	})
	// Samples at the insertion point and beyond have Offset >= offset; an
	// exact match is excluded as well since the contract is strictly below.
	if at == 0 {
		return x.samples[0]
	}
	return x.samples[at-1]
}

// Len returns the number of samples currently held, including the (0, 0)
// seed.
func (x *RowIndex) Len() int { return len(x.samples) }

// Samples returns a copy of the recorded samples in row order.
func (x *RowIndex) Samples() []RowSample {
	return slices.Clone(x.samples)
}
