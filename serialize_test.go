package columnar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	serTestPosition = NewSchema("SerializeTestPosition").
				Field("x", F64, 0).
				Field("y", F64, 0).
				Build()
	serTestVelocity = NewSchema("SerializeTestVelocity").
				SubArray("xyz", F64, 3, []float64{0, 0, 0}).
				Build()
	serTestStatus = NewSchema("SerializeTestStatus").
			Faux("label", FauxString, "idle").
			Faux("payload", FauxObject, nil). // opaque: complex-buffer path
			Build()
	serTestFrozenTag = NewSchema("SerializeTestFrozenTag").Build()
)

func scalarOf(t *testing.T, st *Store, name string) *ScalarColumn {
	t.Helper()
	col, ok := st.ByName(name)
	require.True(t, ok)
	sc, ok := col.(*ScalarColumn)
	require.True(t, ok)
	return sc
}

func subarrayOf(t *testing.T, st *Store, name string) *SubarrayColumn {
	t.Helper()
	col, ok := st.ByName(name)
	require.True(t, ok)
	sub, ok := col.(*SubarrayColumn)
	require.True(t, ok)
	return sub
}

func buildSerializeWorld(t *testing.T) (*World, Entity) {
	t.Helper()
	w := NewWorld(32)
	e, err := w.AddEntity()
	require.NoError(t, err)
	require.NoError(t, w.AddComponent(serTestPosition, e, map[string]any{"x": 1.0, "y": 2.0}))
	require.NoError(t, w.AddComponent(serTestVelocity, e, nil))
	vSt, ok := w.GetComponentByType(serTestVelocity.Type)
	require.True(t, ok)
	copy(subarrayOf(t, vSt, "xyz").Slice(e), []float64{1, 2, 3})
	require.NoError(t, w.AddComponent(serTestStatus, e, map[string]any{
		"label":   "active",
		"payload": map[string]any{"hp": 10.0, "nested": []any{1.0, 2.0}},
	}))
	require.NoError(t, w.AddComponent(serTestFrozenTag, e, nil))
	return w, e
}

func assertSerializeWorldsEqual(t *testing.T, src *World, e Entity, dst *World) {
	t.Helper()
	assert.True(t, dst.EntityExists(e))
	assert.True(t, dst.HasComponent(serTestPosition, e))
	assert.True(t, dst.HasComponent(serTestVelocity, e))
	assert.True(t, dst.HasComponent(serTestStatus, e))
	assert.True(t, dst.HasComponent(serTestFrozenTag, e))

	srcPos, _ := src.GetComponentByType(serTestPosition.Type)
	dstPos, _ := dst.GetComponentByType(serTestPosition.Type)
	assert.Equal(t, scalarOf(t, srcPos, "x").Get(e), scalarOf(t, dstPos, "x").Get(e))
	assert.Equal(t, scalarOf(t, srcPos, "y").Get(e), scalarOf(t, dstPos, "y").Get(e))

	srcVel, _ := src.GetComponentByType(serTestVelocity.Type)
	dstVel, _ := dst.GetComponentByType(serTestVelocity.Type)
	assert.Equal(t, subarrayOf(t, srcVel, "xyz").Slice(e), subarrayOf(t, dstVel, "xyz").Slice(e))

	srcStatus, _ := src.GetComponentByType(serTestStatus.Type)
	dstStatus, _ := dst.GetComponentByType(serTestStatus.Type)
	labelCol, ok := dstStatus.ByName("label")
	require.True(t, ok)
	label, ok := labelCol.(*FauxColumn).Get(e)
	require.True(t, ok)
	srcLabelCol, _ := srcStatus.ByName("label")
	srcLabel, _ := srcLabelCol.(*FauxColumn).Get(e)
	assert.Equal(t, srcLabel, label)
}

func TestSerializeWorldBinaryRoundTrip(t *testing.T) {
	src, e := buildSerializeWorld(t)
	buf, err := SerializeWorld(ModeBinary, src)
	require.NoError(t, err)

	dst := NewWorld(32)
	require.NoError(t, DeserializeWorld(ModeBinary, buf, dst))
	assertSerializeWorldsEqual(t, src, e, dst)

	dstStatus, _ := dst.GetComponentByType(serTestStatus.Type)
	payloadCol, ok := dstStatus.ByName("payload")
	require.True(t, ok)
	payload, ok := payloadCol.(*FauxColumn).Get(e)
	require.True(t, ok)
	obj, ok := payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 10.0, obj["hp"])
}

func TestSerializeWorldJSONRoundTrip(t *testing.T) {
	src, e := buildSerializeWorld(t)
	buf, err := SerializeWorld(ModeJSON, src)
	require.NoError(t, err)

	dst := NewWorld(32)
	require.NoError(t, DeserializeWorld(ModeJSON, buf, dst))
	assertSerializeWorldsEqual(t, src, e, dst)
}

func TestSerializeWorldBase64RoundTrip(t *testing.T) {
	src, _ := buildSerializeWorld(t)
	bin, err := SerializeWorld(ModeBinary, src)
	require.NoError(t, err)
	b64, err := SerializeWorld(ModeBase64, src)
	require.NoError(t, err)

	decoded, err := Config.encoder.Decode(string(b64))
	require.NoError(t, err)
	assert.Equal(t, bin, decoded)

	dst := NewWorld(32)
	require.NoError(t, DeserializeWorld(ModeBase64, b64, dst))
}

func TestDeltaSerializerReducesSize(t *testing.T) {
	w, e := buildSerializeWorld(t)
	ds := NewDeltaSerializer(w)

	baseline, err := ds.Serialize(0)
	require.NoError(t, err)

	vSt, _ := w.GetComponentByType(serTestVelocity.Type)
	subarrayOf(t, vSt, "xyz").Slice(e)[1] = 99

	delta, err := ds.Serialize(0)
	require.NoError(t, err)
	assert.Less(t, len(delta), len(baseline))

	applied := NewWorld(32)
	require.NoError(t, ApplyDelta(baseline, applied))
	require.NoError(t, ApplyDelta(delta, applied))

	aSt, _ := applied.GetComponentByType(serTestVelocity.Type)
	assert.Equal(t, []float64{1, 99, 3}, subarrayOf(t, aSt, "xyz").Slice(e))
}

func TestApplyDeltaWithoutBaselineError(t *testing.T) {
	w, _ := buildSerializeWorld(t)
	ds := NewDeltaSerializer(w)
	_, err := ds.Serialize(0) // baseline
	require.NoError(t, err)
	delta, err := ds.Serialize(0)
	require.NoError(t, err)

	fresh := NewWorld(32)
	err = ApplyDelta(delta, fresh)
	require.Error(t, err)
	assert.IsType(t, ApplyDeltaWithoutBaselineError{}, err)
}
