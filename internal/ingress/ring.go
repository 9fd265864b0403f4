// Package ingress turns the raw caller audio stream into speech segments.
// It keeps a short rolling window for prosody analysis, runs an energy
// based voice activity detector and cuts segments on silence, on a hard
// duration ceiling or on an explicit flush.
package ingress

import "sync"

// Ring is a fixed-capacity sample buffer holding the most recent audio.
// The prosody analyzer reads the window concurrently with the ingress
// loop appending to it.
type Ring struct {
	mu    sync.Mutex
	buf   []int16
	head  int
	full  bool
	total int64
}

// NewRing allocates a ring holding capacity samples.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]int16, capacity)}
}

// Append copies samples into the ring, overwriting the oldest.
func (r *Ring) Append(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range samples {
		r.buf[r.head] = s
		r.head++
		if r.head == len(r.buf) {
			r.head = 0
			r.full = true
		}
	}
	r.total += int64(len(samples))
}

// Window returns the buffered samples oldest-first.
func (r *Ring) Window() []int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]int16, r.head)
		copy(out, r.buf[:r.head])
		return out
	}
	out := make([]int16, len(r.buf))
	n := copy(out, r.buf[r.head:])
	copy(out[n:], r.buf[:r.head])
	return out
}

// Total reports how many samples have ever been appended.
func (r *Ring) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
