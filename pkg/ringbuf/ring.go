// Package ringbuf provides a fixed-capacity circular buffer for bounded logs and histories.
package ringbuf

// Ring keeps the most recent Cap() values. Pushing into a full ring overwrites the oldest.
// Ring is not safe for concurrent use; callers guard it with their own lock.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// New creates a ring holding at most capacity values. capacity below 1 is treated as 1.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when full.
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th stored value, oldest first.
func (r *Ring[T]) At(i int) T {
	return r.buf[(r.start+i)%len(r.buf)]
}

// Items returns a copy of the stored values, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.At(i)
	}
	return out
}

// Last returns up to n of the newest values matching keep (nil keeps all), oldest first.
func (r *Ring[T]) Last(n int, keep func(T) bool) []T {
	if n <= 0 {
		return nil
	}
	var rev []T
	for i := r.size - 1; i >= 0 && len(rev) < n; i-- {
		v := r.At(i)
		if keep == nil || keep(v) {
			rev = append(rev, v)
		}
	}
	out := make([]T, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// Reset drops all values.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start, r.size = 0, 0
}
