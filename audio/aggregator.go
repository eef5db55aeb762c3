package audio

import "sync"

// Aggregator accumulates the PCM chunks of one generation turn.
// Append and Drain share one lock, so a chunk appended concurrently with a
// drain lands either in the drained buffer or in the next turn, never both.
type Aggregator struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

// NewAggregator returns an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Append copies chunk onto the tail of the current turn.
func (a *Aggregator) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)

	a.mu.Lock()
	a.chunks = append(a.chunks, c)
	a.size += len(c)
	a.mu.Unlock()
}

// Drain returns every chunk concatenated in receipt order and clears the buffer.
// It returns nil when nothing has been appended.
func (a *Aggregator) Drain() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.size == 0 {
		return nil
	}

	out := make([]byte, 0, a.size)
	for _, c := range a.chunks {
		out = append(out, c...)
	}
	a.chunks = nil
	a.size = 0
	return out
}

// Len returns the number of buffered bytes.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}
