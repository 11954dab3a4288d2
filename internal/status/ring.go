package status

import "github.com/yugeshweb/AquaFlow/internal/logic"

// sampleRing is a fixed-capacity FIFO of the most recent samples.
// Not safe for concurrent use: caller must synchronize.
type sampleRing struct {
	buf      []logic.RateSample
	capacity int
	head     int // next write position
	count    int
}

func newSampleRing(capacity int) *sampleRing {
	if capacity < 1 {
		capacity = 1
	}
	return &sampleRing{
		buf:      make([]logic.RateSample, capacity),
		capacity: capacity,
	}
}

func (r *sampleRing) push(s logic.RateSample) {
	r.buf[r.head] = s
	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}
}

// items returns a copy of the samples, oldest first.
func (r *sampleRing) items() []logic.RateSample {
	if r.count == 0 {
		return nil
	}

	result := make([]logic.RateSample, r.count)
	// Oldest item is at (head - count) mod capacity
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}
	return result
}

func (r *sampleRing) len() int {
	return r.count
}
