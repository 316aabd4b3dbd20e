package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accessorTestPosition = NewSchema("AccessorTestPosition").
	Field("x", F64, 0).
	Field("y", F64, 0).
	Build()

func TestProxyKeysIncludesSyntheticType(t *testing.T) {
	w := NewWorld(8)
	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(accessorTestPosition, e, nil))

	p := GetProxy(w, accessorTestPosition, e)
	assert.ElementsMatch(t, []string{"x", "y", "type"}, p.Keys())
}

func TestProxyGetType(t *testing.T) {
	w := NewWorld(8)
	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(accessorTestPosition, e, nil))

	p := GetProxy(w, accessorTestPosition, e)
	v, ok := p.Get("type")
	require.True(t, ok)
	assert.Equal(t, "AccessorTestPosition", v.Any)
}
