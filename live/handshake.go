package live

import "sync"

// handshakeGate tracks whether the current connection's setup has been
// acknowledged. Realtime sends run under the read lock so a reset waits for
// in-flight sends and no send observes a stale gate.
type handshakeGate struct {
	mu       sync.RWMutex
	gen      uint64
	complete bool
}

// arm binds the gate to a new connection generation, pending.
func (g *handshakeGate) arm(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen = gen
	g.complete = false
}

// open marks gen complete. It reports false if gen is stale or already complete.
func (g *handshakeGate) open(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen || g.complete {
		return false
	}
	g.complete = true
	return true
}

// reset returns the gate to pending if it still belongs to gen and detaches
// it, so a late acknowledgement for gen cannot reopen it.
func (g *handshakeGate) reset(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen == gen {
		g.gen = 0
		g.complete = false
	}
}

func (g *handshakeGate) isComplete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.complete
}

// do runs fn while holding the gate open. It reports false without calling fn
// when the handshake is pending.
func (g *handshakeGate) do(fn func(gen uint64) error) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.complete {
		return false, nil
	}
	return true, fn(g.gen)
}
