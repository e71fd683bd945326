// Package bufferpool provides thread-safe pooling of byte buffers used for
// per-chunk plaintext and ciphertext staging. Buffers are zeroized before
// being returned to the pool since they may have held plaintext.
package bufferpool

import (
	"sync"
	"sync/atomic"
)

// Pool hands out buffers sized to a single size class. Each Engine keeps one
// Pool sized to its configured nominal chunk size; chunks of any other size
// do not use it.
type Pool struct {
	size int
	pool sync.Pool

	hits, misses int64
}

// New creates a Pool whose buffers are size bytes long.
func New(size int) *Pool {
	p := &Pool{size: size}
	p.pool.New = func() any { return make([]byte, p.size) }
	return p
}

// Get returns a buffer of exactly p.size bytes. Callers that need fewer
// bytes should slice the result; they must not retain it past Put.
func (p *Pool) Get() []byte {
	buf := p.pool.Get().([]byte)
	if cap(buf) < p.size {
		atomic.AddInt64(&p.misses, 1)
		return make([]byte, p.size)
	}
	atomic.AddInt64(&p.hits, 1)
	return buf[:p.size]
}

// Put zeroizes buf and returns it to the pool. Buffers of the wrong capacity
// are dropped rather than pooled.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:cap(buf)]
	for i := range buf {
		buf[i] = 0
	}
	p.pool.Put(buf)
}

// Stats reports pool hit/miss counters, exported as Prometheus gauges by the
// metrics package.
func (p *Pool) Stats() (hits, misses int64) {
	return atomic.LoadInt64(&p.hits), atomic.LoadInt64(&p.misses)
}

// Size returns the fixed buffer length this Pool hands out.
func (p *Pool) Size() int {
	return p.size
}
