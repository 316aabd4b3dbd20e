package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	queryTestA = NewSchema("QueryTestA").Field("v", F64, 0).Build()
	queryTestB = NewSchema("QueryTestB").Field("v", F64, 0).Build()
	queryTestC = NewSchema("QueryTestC").Field("v", F64, 0).Build()
)

func TestDefineQueryMemoizesByKey(t *testing.T) {
	q1 := DefineQuery("QueryTestA", "QueryTestB")
	q2 := DefineQuery("QueryTestB", "QueryTestA")
	assert.Same(t, q1, q2, "DefineQuery must memoize regardless of argument order")
}

func TestQueryEntitiesMatchesAndComponents(t *testing.T) {
	w := NewWorld(64)
	q := DefineQuery("QueryTestA", "QueryTestB")

	var both, aOnly, bOnly []Entity
	for i := 0; i < 5; i++ {
		e, err := w.AddEntity()
		require.NoError(t, err)
		require.NoError(t, w.AddComponent(queryTestA, e, nil))
		require.NoError(t, w.AddComponent(queryTestB, e, nil))
		both = append(both, e)
	}
	for i := 0; i < 3; i++ {
		e, err := w.AddEntity()
		require.NoError(t, err)
		require.NoError(t, w.AddComponent(queryTestA, e, nil))
		aOnly = append(aOnly, e)
	}
	for i := 0; i < 2; i++ {
		e, err := w.AddEntity()
		require.NoError(t, err)
		require.NoError(t, w.AddComponent(queryTestB, e, nil))
		bOnly = append(bOnly, e)
	}

	matches := q.Entities(w)
	assert.Len(t, matches, len(both))
	for _, e := range both {
		assert.True(t, q.Has(w, e))
	}
	for _, e := range aOnly {
		assert.False(t, q.Has(w, e))
	}
	for _, e := range bOnly {
		assert.False(t, q.Has(w, e))
	}
}

func TestQueryDeferredRemoval(t *testing.T) {
	w := NewWorld(16)
	q := DefineQuery("QueryTestA")

	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(queryTestA, e, nil))
	assert.True(t, q.Has(w, e))

	require.NoError(t, w.RemoveComponent(queryTestA, e))
	assert.False(t, q.Has(w, e), "Has must commit deferred removals before answering")
}

func TestQueryDefinedAfterEntitiesBackfills(t *testing.T) {
	w := NewWorld(16)
	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(queryTestC, e, nil))

	// Defining the query only now must still observe e: queries backfill
	// from current world state on first use.
	q := DefineQuery("QueryTestC")
	assert.True(t, q.Has(w, e))
	assert.Equal(t, []Entity{e}, q.Entities(w))
}

func TestCursorIteratesQueryMatches(t *testing.T) {
	w := NewWorld(32)
	q := DefineQuery("QueryTestA", "QueryTestB")
	for i := 0; i < 4; i++ {
		e, err := w.AddEntity()
		require.NoError(t, err)
		require.NoError(t, w.AddComponent(queryTestA, e, nil))
		require.NoError(t, w.AddComponent(queryTestB, e, nil))
	}

	cur := NewCursor(w, q)
	count := 0
	for cur.Next() {
		assert.True(t, w.EntityExists(cur.Entity()))
		count++
	}
	assert.Equal(t, 4, count)
	assert.Equal(t, 4, cur.Len())
}
