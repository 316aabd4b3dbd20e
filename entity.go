package columnar

import (
	"math"

	"github.com/silostack/columnar/internal/sparseset"
)

// Entity is an opaque 32-bit index into every component's columns. The zero
// value is a valid id like any other; validity is a question for a World's
// entity sparse set to answer, not a property of the number itself.
type Entity uint32

// entityAllocator owns id allocation/recycling/liveness for one World: a cursor
// that advances monotonically, a removed-id queue, and the world's entity
// sparse set.
type entityAllocator struct {
	size         int
	entityCursor uint32
	removed      []Entity
	live         *sparseset.Set
}

func newEntityAllocator(size int) *entityAllocator {
	return &entityAllocator{
		size: size,
		live: sparseset.New(size),
	}
}

// reuseThreshold returns round(size * 0.01): the removed-queue depth that must
// be exceeded before ids are recycled.
func reuseThreshold(size int) int {
	return int(math.Round(float64(size) * 0.01))
}

// add allocates a new entity, reusing a recycled id once the removed
// queue is deep enough to amortize reuse, else advancing the cursor.
func (a *entityAllocator) add() (Entity, error) {
	var e Entity
	if len(a.removed) > reuseThreshold(a.size) {
		e = a.removed[len(a.removed)-1]
		a.removed = a.removed[:len(a.removed)-1]
	} else {
		if int(a.entityCursor) >= a.size {
			return 0, CapacityExceededError{Size: a.size}
		}
		e = Entity(a.entityCursor)
		a.entityCursor++
	}
	a.live.Add(uint32(e))
	return e, nil
}

// remove marks e no longer live and queues its id for eventual reuse. No-op if
// e was not live.
func (a *entityAllocator) remove(e Entity) bool {
	if !a.live.Remove(uint32(e)) {
		return false
	}
	a.removed = append(a.removed, e)
	return true
}

// exists reports whether e is currently live.
func (a *entityAllocator) exists(e Entity) bool {
	return a.live.Has(uint32(e))
}

// grow raises the allocator's declared capacity, used when a World's
// stores are resized.
func (a *entityAllocator) grow(newSize int) {
	if newSize <= a.size {
		return
	}
	a.size = newSize
}
