// Package mempool keeps size-classed scratch buffers for the per-image hot path.
package mempool

import (
	"sync"
)

const classStep = 1024

// sizeClass rounds n up to the next multiple of 1024, with 1024 as the floor.
func sizeClass(n int) int {
	if n <= classStep {
		return classStep
	}
	return (n + classStep - 1) / classStep * classStep
}

type slicePool[T any] struct {
	pools sync.Map // size class -> *sync.Pool
}

func (sp *slicePool[T]) pool(cls int) *sync.Pool {
	if p, ok := sp.pools.Load(cls); ok {
		return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
	}
	p, _ := sp.pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]T, cls)
		return &buf
	}})
	return p.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

func (sp *slicePool[T]) get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, _ := sp.pool(cls).Get().(*[]T)
	if bp == nil || cap(*bp) < cls {
		buf := make([]T, cls)
		return buf[:n]
	}
	return (*bp)[:n]
}

func (sp *slicePool[T]) put(buf []T) {
	if cap(buf) == 0 {
		return
	}
	// Only full-class buffers go back so get can always reslice to its class.
	cls := sizeClass(cap(buf))
	if cap(buf) != cls {
		return
	}
	full := buf[:cap(buf)]
	sp.pool(cls).Put(&full)
}

var (
	float32Pool slicePool[float32]
	uint8Pool   slicePool[uint8]
)

// GetFloat32 retrieves a []float32 of length n. Contents are not zeroed.
// The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 { return float32Pool.get(n) }

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) { float32Pool.put(buf) }

// GetUint8 retrieves a []uint8 of length n. Contents are not zeroed.
func GetUint8(n int) []uint8 { return uint8Pool.get(n) }

// PutUint8 returns a buffer to the pool. It is safe to pass a nil slice.
func PutUint8(buf []uint8) { uint8Pool.put(buf) }
