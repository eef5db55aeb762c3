package audio

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregator_DrainConcatenatesInOrder(t *testing.T) {
	a := NewAggregator()
	c1, c2, c3 := []byte{1, 2}, []byte{3, 4, 5}, []byte{6}

	a.Append(c1)
	a.Append(c2)
	a.Append(c3)

	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, a.Drain())
	assert.Zero(t, a.Len())
}

func TestAggregator_AppendAfterDrainStartsEmpty(t *testing.T) {
	a := NewAggregator()
	a.Append([]byte{1, 2, 3})
	_ = a.Drain()

	a.Append([]byte{9})

	assert.Equal(t, []byte{9}, a.Drain())
	assert.Nil(t, a.Drain())
}

func TestAggregator_CopiesChunks(t *testing.T) {
	a := NewAggregator()
	chunk := []byte{1, 2}
	a.Append(chunk)
	chunk[0] = 99

	assert.Equal(t, []byte{1, 2}, a.Drain())
}

func TestAggregator_IgnoresEmptyChunks(t *testing.T) {
	a := NewAggregator()
	a.Append(nil)
	a.Append([]byte{})
	assert.Nil(t, a.Drain())
}

func TestAggregator_ConcurrentAppendAndDrain(t *testing.T) {
	a := NewAggregator()
	const writers, perWriter = 8, 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				a.Append([]byte{id})
			}
		}(byte(w))
	}

	var drained bytes.Buffer
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

loop:
	for {
		select {
		case <-done:
			break loop
		default:
			drained.Write(a.Drain())
		}
	}
	drained.Write(a.Drain())

	require.Equal(t, writers*perWriter, drained.Len())
	counts := make(map[byte]int)
	for _, b := range drained.Bytes() {
		counts[b]++
	}
	for w := 0; w < writers; w++ {
		assert.Equal(t, perWriter, counts[byte(w)], "writer %d", w)
	}
}
