package memory

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed object pool that also counts objects handed out and not
// yet returned. Callers reset objects before Put.
type Pool[T any] struct {
	p    *sync.Pool
	live atomic.Int64
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	p.live.Add(1)
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.live.Add(-1)
	p.p.Put(v)
}

// Live is Get calls minus Put calls.
func (p *Pool[T]) Live() int64 {
	return p.live.Load()
}
