package sparseset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAddHasRemove(t *testing.T) {
	s := New(4)

	assert.True(t, s.Add(2))
	assert.False(t, s.Add(2), "re-adding a member must report false")
	assert.True(t, s.Has(2))
	assert.False(t, s.Has(3))

	assert.True(t, s.Remove(2))
	assert.False(t, s.Has(2))
	assert.False(t, s.Remove(2), "removing an absent id must report false")
}

func TestSetGrowsSparseBeyondInitialCapacity(t *testing.T) {
	s := New(2)
	assert.True(t, s.Add(10))
	assert.True(t, s.Has(10))
	assert.Equal(t, 1, s.Len())
}

func TestSetRemoveIsSwapPop(t *testing.T) {
	s := New(8)
	for _, id := range []uint32{1, 2, 3, 4} {
		s.Add(id)
	}
	s.Remove(2)
	assert.False(t, s.Has(2))
	for _, id := range []uint32{1, 3, 4} {
		assert.True(t, s.Has(id))
	}
	assert.Equal(t, 3, s.Len())
}

func TestSetSortOrdersDenseAndRepairsSparse(t *testing.T) {
	s := New(8)
	for _, id := range []uint32{5, 1, 4, 2, 3} {
		s.Add(id)
	}

	s.Sort(func(a, b uint32) bool { return a < b })

	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, s.Dense())
	for _, id := range []uint32{1, 2, 3, 4, 5} {
		assert.True(t, s.Has(id))
	}

	s.Remove(3)
	assert.Equal(t, []uint32{1, 2, 5, 4}, s.Dense())
	assert.False(t, s.Has(3))
}

func TestSetSortIsStableAcrossRepeatedAdds(t *testing.T) {
	s := New(8)
	s.Add(3)
	s.Add(1)
	s.Sort(func(a, b uint32) bool { return a < b })
	assert.Equal(t, []uint32{1, 3}, s.Dense())

	s.Add(2)
	s.Sort(func(a, b uint32) bool { return a < b })
	assert.Equal(t, []uint32{1, 2, 3}, s.Dense())
}

func TestSetRawMatchesDenseAndSparse(t *testing.T) {
	s := New(4)
	s.Add(1)
	s.Add(3)
	dense, sparse := s.Raw()
	assert.Equal(t, s.Dense(), dense)
	for _, id := range []uint32{1, 3} {
		slot := sparse[id]
		assert.Equal(t, id, dense[slot])
	}
}

func TestSetResetClearsMembers(t *testing.T) {
	s := New(4)
	s.Add(1)
	s.Add(2)
	s.Reset(nil, nil)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Has(1))
	assert.False(t, s.Has(2))
}

func TestSetResetReplacesContents(t *testing.T) {
	s := New(4)
	s.Add(1)
	dense := []uint32{7, 9}
	sparse := make([]int32, 10)
	for i := range sparse {
		sparse[i] = Absent
	}
	sparse[7] = 0
	sparse[9] = 1
	s.Reset(dense, sparse)
	assert.True(t, s.Has(7))
	assert.True(t, s.Has(9))
	assert.False(t, s.Has(1))
}

func TestSetCloneIsIndependent(t *testing.T) {
	s := New(4)
	s.Add(1)
	s.Add(2)
	c := s.Clone()

	s.Add(3)
	assert.True(t, s.Has(3))
	assert.False(t, c.Has(3))
	assert.True(t, c.Has(1))
	assert.True(t, c.Has(2))
}
