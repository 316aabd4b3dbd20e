package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var systemTestTag = NewSchema("SystemTestTag").Build()

// countingRunAller counts RunAll invocations; a custom RunAller with side
// effects beyond iterating entities must not fire against zero matches.
type countingRunAller struct {
	Base
	calls int
}

func (c *countingRunAller) RunAll(w *World) { c.calls++ }

func TestRunDefSkipsRunAllWhenQueryIsEmpty(t *testing.T) {
	w := NewWorld(8)
	sys := &countingRunAller{Base: NewBase(-1)}
	def := DefineSystem([]string{"SystemTestTag"}, func() System { return sys })

	w.RunSystem(def)
	assert.Equal(t, 0, sys.calls, "RunAll must not fire when the query has no matches")

	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(systemTestTag, e, nil))

	w.RunSystem(def)
	assert.Equal(t, 1, sys.calls, "RunAll must fire once the query has a match")
}

// countingRunner counts Run invocations per matched entity, for the default
// run_all path (no RunAller override).
type countingRunner struct {
	Base
	runs []Entity
}

func (c *countingRunner) Run(w *World, eid Entity) { c.runs = append(c.runs, eid) }

func TestRunDefSkipsDefaultRunAllWhenQueryIsEmpty(t *testing.T) {
	w := NewWorld(8)
	sys := &countingRunner{Base: NewBase(-1)}
	def := DefineSystem([]string{"SystemTestTag"}, func() System { return sys })

	w.RunSystem(def)
	assert.Empty(t, sys.runs)

	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(systemTestTag, e, nil))

	w.RunSystem(def)
	assert.Equal(t, []Entity{e}, sys.runs)
}
