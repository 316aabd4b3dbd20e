package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPosition = NewSchema("EntityTestPosition").
			Field("x", F64, 0).
			Field("y", F64, 0).
			Build()
	testVelocity = NewSchema("EntityTestVelocity").
			Field("x", F64, 0).
			Field("y", F64, 0).
			Build()
	testHealth = NewSchema("EntityTestHealth").
			Field("current", I32, 100).
			Field("max", I32, 100).
			Build()
	testPlayerTag = NewSchema("EntityTestPlayerTag").Build()
)

func TestEntityCreation(t *testing.T) {
	w := NewWorld(64)

	e, err := w.AddEntity()
	require.NoError(t, err)
	assert.True(t, w.EntityExists(e))

	err = w.AddComponent(testPosition, e, nil)
	require.NoError(t, err)
	assert.True(t, w.HasComponent(testPosition, e))
	assert.False(t, w.HasComponent(testVelocity, e))
}

func TestEntityCreationCapacityExceeded(t *testing.T) {
	w := NewWorld(2)
	_, err := w.AddEntity()
	require.NoError(t, err)
	_, err = w.AddEntity()
	require.NoError(t, err)

	_, err = w.AddEntity()
	require.Error(t, err)
	assert.IsType(t, CapacityExceededError{}, err)
}

func TestComponentAddRemove(t *testing.T) {
	tests := []struct {
		name    string
		add     []*Schema
		remove  []*Schema
		finalOn []*Schema
		finalOff []*Schema
	}{
		{
			name:    "add one",
			add:     []*Schema{testPosition},
			finalOn: []*Schema{testPosition},
		},
		{
			name:     "add then remove",
			add:      []*Schema{testPosition, testVelocity},
			remove:   []*Schema{testVelocity},
			finalOn:  []*Schema{testPosition},
			finalOff: []*Schema{testVelocity},
		},
		{
			name:    "tag component",
			add:     []*Schema{testPlayerTag},
			finalOn: []*Schema{testPlayerTag},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorld(16)
			e, err := w.AddEntity()
			require.NoError(t, err)

			for _, s := range tt.add {
				require.NoError(t, w.AddComponent(s, e, nil))
			}
			for _, s := range tt.remove {
				require.NoError(t, w.RemoveComponent(s, e))
			}
			for _, s := range tt.finalOn {
				assert.True(t, w.HasComponent(s, e), "expected %s present", s.Type)
			}
			for _, s := range tt.finalOff {
				assert.False(t, w.HasComponent(s, e), "expected %s absent", s.Type)
			}
		})
	}
}

func TestComponentOverridesAndDefaults(t *testing.T) {
	w := NewWorld(8)
	e, err := w.AddEntity()
	require.NoError(t, err)

	require.NoError(t, w.AddComponent(testHealth, e, map[string]any{"current": 42.0}))

	st, ok := w.GetComponentByType(testHealth.Type)
	require.True(t, ok)
	col, ok := st.ByName("current")
	require.True(t, ok)
	assert.Equal(t, 42.0, col.(*ScalarColumn).Get(e))

	maxCol, ok := st.ByName("max")
	require.True(t, ok)
	assert.Equal(t, 100.0, maxCol.(*ScalarColumn).Get(e))
}

func TestRemoveEntityResetsComponents(t *testing.T) {
	w := NewWorld(8)
	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(testPosition, e, map[string]any{"x": 5.0}))

	removed := w.RemoveEntity(e)
	assert.True(t, removed)
	assert.False(t, w.EntityExists(e))
	assert.False(t, w.HasComponent(testPosition, e))

	st, ok := w.GetComponentByType(testPosition.Type)
	require.True(t, ok)
	col, ok := st.ByName("x")
	require.True(t, ok)
	assert.Equal(t, 0.0, col.(*ScalarColumn).Get(e))

	// Removing twice is a no-op, not an error.
	assert.False(t, w.RemoveEntity(e))
}

func TestMissingEntityErrors(t *testing.T) {
	w := NewWorld(4)
	ghost := Entity(999)
	err := w.AddComponent(testPosition, ghost, nil)
	require.Error(t, err)
	assert.IsType(t, EntityMissingError{}, err)
}

func TestEntityReuse(t *testing.T) {
	w := NewWorld(200)
	for i := 0; i < 5; i++ {
		e, err := w.AddEntity()
		require.NoError(t, err)
		w.RemoveEntity(e)
	}
	// Once the removed queue is deeper than reuseThreshold(200) == 2, ids
	// come back from that queue instead of advancing the cursor.
	next, err := w.AddEntity()
	require.NoError(t, err)
	assert.True(t, w.EntityExists(next))
	assert.Less(t, uint32(next), uint32(5))
}
