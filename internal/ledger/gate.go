package ledger

import "sync"

// Gate is the process-wide critical section for balance mutation. Trade
// settlement, admin adjustments and cascading deletes hold it for their
// whole read-modify-write sequence, so at most one of them runs at a time.
type Gate struct {
	mu sync.Mutex
}

// NewGate creates the gate. The server holds exactly one and shares it
// across every service that moves funds.
func NewGate() *Gate {
	return &Gate{}
}

// Lock acquires the gate, blocking until it is free.
func (g *Gate) Lock() {
	g.mu.Lock()
}

// Unlock releases the gate.
func (g *Gate) Unlock() {
	g.mu.Unlock()
}
