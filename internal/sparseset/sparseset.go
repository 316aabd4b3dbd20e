// Package sparseset implements the dense/sparse id set used throughout the
// ECS runtime for entity membership, query membership, and deferred removal
// tracking.
package sparseset

// Absent is the sentinel sparse-slot value used at the Go API boundary.
// The wire format uses 0xFFFF for the same purpose (see package wire);
// callers crossing that boundary must convert explicitly.
const Absent int32 = -1

// Set is a dense/sparse pair giving O(1) Has/Add/Remove over uint32 ids.
// The zero value is an empty, usable set.
type Set struct {
	dense  []uint32
	sparse []int32
}

// New returns an empty set whose sparse array is pre-sized to cap.
func New(cap int) *Set {
	s := &Set{}
	s.growSparse(cap)
	return s
}

func (s *Set) growSparse(n int) {
	if len(s.sparse) >= n {
		return
	}
	next := make([]int32, n)
	copy(next, s.sparse)
	for i := len(s.sparse); i < n; i++ {
		next[i] = Absent
	}
	s.sparse = next
}

// Has reports whether id is a member of the set.
func (s *Set) Has(id uint32) bool {
	if int(id) >= len(s.sparse) {
		return false
	}
	slot := s.sparse[id]
	return slot != Absent && uint32(slot) < uint32(len(s.dense)) && s.dense[slot] == id
}

// Add inserts id, returning true iff it was not already present.
func (s *Set) Add(id uint32) bool {
	if int(id) >= len(s.sparse) {
		s.growSparse(int(id) + 1)
	}
	if s.Has(id) {
		return false
	}
	s.sparse[id] = int32(len(s.dense))
	s.dense = append(s.dense, id)
	return true
}

// Remove performs a swap-pop removal of id. No-op if absent. Returns true
// iff id was present.
func (s *Set) Remove(id uint32) bool {
	if !s.Has(id) {
		return false
	}
	slot := s.sparse[id]
	last := len(s.dense) - 1
	lastID := s.dense[last]
	s.dense[slot] = lastID
	s.sparse[lastID] = slot
	s.dense = s.dense[:last]
	s.sparse[id] = Absent
	return true
}

// Len returns the number of members.
func (s *Set) Len() int {
	return len(s.dense)
}

// Dense returns the backing dense slice. Callers must not retain it across
// further mutation of the set.
func (s *Set) Dense() []uint32 {
	return s.dense
}

// Raw returns the backing dense and sparse slices together, for callers
// (the serializer) that need to write both arrays out directly rather
// than reconstruct sparse from dense.
func (s *Set) Raw() (dense []uint32, sparse []int32) {
	return s.dense, s.sparse
}

// Sort orders the dense slice in place with cmp and rebuilds the sparse
// index in O(n).
func (s *Set) Sort(cmp func(a, b uint32) bool) {
	insertionSort(s.dense, cmp)
	for i, id := range s.dense {
		if int(id) >= len(s.sparse) {
			s.growSparse(int(id) + 1)
		}
		s.sparse[id] = int32(i)
	}
}

func insertionSort(a []uint32, less func(a, b uint32) bool) {
	for i := 1; i < len(a); i++ {
		v := a[i]
		j := i - 1
		for j >= 0 && less(v, a[j]) {
			a[j+1] = a[j]
			j--
		}
		a[j+1] = v
	}
}

// Reset clears the set, or — when dense/sparse are supplied — atomically
// replaces its contents with them (ownership of the slices transfers to
// the set).
func (s *Set) Reset(dense []uint32, sparse []int32) {
	if dense == nil && sparse == nil {
		s.dense = s.dense[:0]
		for i := range s.sparse {
			s.sparse[i] = Absent
		}
		return
	}
	s.dense = dense
	s.sparse = sparse
}

// Clone returns an independent copy of the set.
func (s *Set) Clone() *Set {
	c := &Set{
		dense:  append([]uint32(nil), s.dense...),
		sparse: append([]int32(nil), s.sparse...),
	}
	return c
}
