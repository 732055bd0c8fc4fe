package harness

import (
	"context"
	"sync"
)

// Barrier is a one-shot rendezvous for a fixed number of parties. It trips
// once every party has arrived; arrivals after that are ignored.
type Barrier struct {
	parties int

	mu      sync.Mutex
	arrived int
	done    chan struct{}
}

func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties, done: make(chan struct{})}
	if parties <= 0 {
		close(b.done)
	}
	return b
}

// Arrive records one party without waiting for the others.
func (b *Barrier) Arrive() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.arrived >= b.parties {
		return
	}
	b.arrived++
	if b.arrived == b.parties {
		close(b.done)
	}
}

// Wait blocks until the barrier trips or ctx is done.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Await is Arrive followed by Wait.
func (b *Barrier) Await(ctx context.Context) error {
	b.Arrive()
	return b.Wait(ctx)
}

// Done is closed when the barrier trips.
func (b *Barrier) Done() <-chan struct{} {
	return b.done
}

// Arrived reports how many parties have arrived so far.
func (b *Barrier) Arrived() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.arrived
}

// Gate is opened once by a coordinator and releases every waiter.
type Gate struct {
	once sync.Once
	open chan struct{}
}

func NewGate() *Gate {
	return &Gate{open: make(chan struct{})}
}

func (g *Gate) Open() {
	g.once.Do(func() { close(g.open) })
}

func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// party tracks which barriers one participant still owes an arrival, so a
// participant that fails early never leaves its peers blocked.
type party struct {
	pending map[*Barrier]bool
}

func newParty(barriers ...*Barrier) *party {
	p := &party{pending: make(map[*Barrier]bool, len(barriers))}
	for _, b := range barriers {
		p.pending[b] = true
	}
	return p
}

func (p *party) arrive(b *Barrier) {
	if p.pending[b] {
		delete(p.pending, b)
		b.Arrive()
	}
}

func (p *party) await(ctx context.Context, b *Barrier) error {
	p.arrive(b)
	return b.Wait(ctx)
}

// release arrives at every barrier not yet arrived at.
func (p *party) release() {
	for b := range p.pending {
		delete(p.pending, b)
		b.Arrive()
	}
}
