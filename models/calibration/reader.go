package calibration

import "gorgonia.org/tensor"

// Sample maps a model input name to its tensor. It holds exactly one entry.
type Sample map[string]*tensor.Dense

// Reader replays a fixed sequence of calibration samples.
//
// Reader is not safe for concurrent use.
type Reader struct {
	samples []Sample
	pos     int
}

// NewReader wraps already prepared samples.
func NewReader(samples []Sample) *Reader {
	return &Reader{samples: samples}
}

// Next returns the next sample. It returns false once the sequence is exhausted until Rewind
// is called.
func (r *Reader) Next() (Sample, bool) {
	if r.pos >= len(r.samples) {
		return nil, false
	}
	s := r.samples[r.pos]
	r.pos++
	return s, true
}

// Rewind restarts the sequence from the first sample.
func (r *Reader) Rewind() {
	r.pos = 0
}

// Len returns the number of samples.
func (r *Reader) Len() int {
	return len(r.samples)
}

// Samples returns every sample in order without moving the cursor.
func (r *Reader) Samples() []Sample {
	return r.samples
}
