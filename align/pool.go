package align

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("align: pool is closed")

// Pool hands out Aligners to concurrent workers. Each worker owns its
// aligner's scratch tables while it holds it, so no table is shared.
type Pool struct {
	aligners chan *Aligner
	size     int
	mu       sync.Mutex
	closed   bool
}

// NewPool creates a pool of size aligners.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}

	pool := &Pool{
		aligners: make(chan *Aligner, size),
		size:     size,
	}
	for i := 0; i < size; i++ {
		pool.aligners <- NewAligner()
	}
	return pool
}

// Acquire gets an aligner from the pool, blocking if none available.
// Respects context cancellation. Returns ErrPoolClosed if pool is closed.
func (p *Pool) Acquire(ctx context.Context) (*Aligner, error) {
	select {
	case a, ok := <-p.aligners:
		if !ok {
			return nil, ErrPoolClosed
		}
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns an aligner to the pool.
func (p *Pool) Release(a *Aligner) {
	if a == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	select {
	case p.aligners <- a:
	default:
		// Pool full; drop the extra aligner.
	}
}

// Close empties the pool. Aligners still held by workers are dropped when
// released.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.aligners)

	for range p.aligners {
	}
	return nil
}

// Size returns the pool size.
func (p *Pool) Size() int {
	return p.size
}
