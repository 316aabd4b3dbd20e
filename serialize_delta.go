package columnar

import (
	"reflect"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/silostack/columnar/internal/wire"
)

// pidShadow holds one flattened column's previously-serialized values,
// keyed by eid: a typed-scalar shadow, a cloned subarray slice per eid, or
// a deep-cloned faux value per eid. Whichever field applies depends on
// the column kind the owning pid resolves to; the others stay empty.
type pidShadow struct {
	scalar   map[Entity]float64
	subarray map[Entity][]float64
	faux     map[Entity]any
}

func newPidShadow() *pidShadow {
	return &pidShadow{
		scalar:   make(map[Entity]float64),
		subarray: make(map[Entity][]float64),
		faux:     make(map[Entity]any),
	}
}

// DeltaSerializer is the stateful collaborator behind create_delta_serializer
// (§4.6.3): its first Serialize call produces a full snapshot that also
// seeds shadow state; every call after that produces a delta against the
// shadows, updating them as it goes.
type DeltaSerializer struct {
	world      *World
	baseline   bool
	membership map[int]*roaring.Bitmap // schema.Index -> members as of the last call
	shadows    map[uint16]*pidShadow   // pid -> shadow state
}

// NewDeltaSerializer returns a DeltaSerializer bound to w. Its first
// Serialize call always produces a full snapshot.
func NewDeltaSerializer(w *World) *DeltaSerializer {
	return &DeltaSerializer{
		world:      w,
		membership: make(map[int]*roaring.Bitmap),
		shadows:    make(map[uint16]*pidShadow),
	}
}

// Reset discards all shadow state and membership caches, so the next
// Serialize call falls back to a full baseline snapshot. Callers must do
// this after any mutation they intend the delta stream to ignore, since
// shadow drift is never detected automatically.
func (ds *DeltaSerializer) Reset() {
	ds.baseline = false
	ds.membership = make(map[int]*roaring.Bitmap)
	ds.shadows = make(map[uint16]*pidShadow)
}

func (ds *DeltaSerializer) shadowFor(pid uint16) *pidShadow {
	s, ok := ds.shadows[pid]
	if !ok {
		s = newPidShadow()
		ds.shadows[pid] = s
	}
	return s
}

// Serialize produces the next snapshot in the stream: a full buffer on the
// first call, a delta buffer on every call after that. maxBytes is an
// advisory size budget; a buffer exceeding it is still returned in full,
// with a diagnostic logged, since rewinding an already-framed entities
// block after the fact would mean re-deriving every pid's header offsets.
func (ds *DeltaSerializer) Serialize(maxBytes int) ([]byte, error) {
	w := ds.world
	w.mu.Lock()
	defer w.mu.Unlock()

	ww := wire.NewWriter()
	cb := newComplexBuffer()
	if !ds.baseline {
		writeHeader(ww, w, wire.ModeFull)
		if err := ds.writeEntitiesBaseline(ww, cb); err != nil {
			return nil, err
		}
		ds.baseline = true
	} else {
		writeHeader(ww, w, wire.ModeDelta)
		if err := ds.writeEntitiesDelta(ww, cb); err != nil {
			return nil, err
		}
	}

	out := ww.Bytes()
	if maxBytes > 0 && len(out) > maxBytes {
		Config.logger().WithFields(logrus.Fields{
			"bytes":    len(out),
			"maxBytes": maxBytes,
		}).Warn("delta serializer exceeded requested byte budget")
	}
	return out, nil
}

// currentMembership computes, for every registered component, the set of
// eids currently a member of that component's store.
func (ds *DeltaSerializer) currentMembership() map[int]*roaring.Bitmap {
	w := ds.world
	out := make(map[int]*roaring.Bitmap, len(globalRegistry.all()))
	for _, s := range globalRegistry.all() {
		bm := roaring.New()
		for _, idRaw := range w.entities.live.Dense() {
			if w.masks.Has(s.Generation, idRaw, s.Bitflag) {
				bm.Add(idRaw)
			}
		}
		out[s.Index] = bm
	}
	return out
}

func (ds *DeltaSerializer) writeEntitiesBaseline(ww *wire.Writer, cb *complexBuffer) error {
	body := wire.NewWriter()
	for _, fc := range flattenedColumns() {
		if err := ds.writeBaselinePidBlock(body, fc, cb); err != nil {
			return err
		}
	}
	ds.membership = ds.currentMembership()
	ww.WriteU32(uint32(body.Len()))
	ww.WriteRaw(body.Bytes())
	return writeComplexBuffer(ww, cb)
}

func (ds *DeltaSerializer) writeBaselinePidBlock(body *wire.Writer, fc flatColumn, cb *complexBuffer) error {
	w := ds.world
	headerStart := body.Len()
	body.WriteU16(fc.pid)
	countPos := body.Len()
	body.WriteU32(0)

	col := fc.column(w)
	shadow := ds.shadowFor(fc.pid)
	var count uint32
	for _, idRaw := range w.entities.live.Dense() {
		if !w.masks.Has(fc.schema.Generation, idRaw, fc.schema.Bitflag) {
			continue
		}
		eid := Entity(idRaw)
		body.WriteU32(idRaw)
		count++
		if fc.isTag {
			continue
		}
		if err := ds.writeAndSyncShadow(body, col, eid, shadow, cb); err != nil {
			return err
		}
	}
	if count == 0 {
		body.Truncate(body.Len() - headerStart)
	} else {
		body.PatchU32(countPos, count)
	}
	return nil
}

func (ds *DeltaSerializer) writeAndSyncShadow(ww *wire.Writer, col Column, eid Entity, shadow *pidShadow, cb *complexBuffer) error {
	switch c := col.(type) {
	case *ScalarColumn:
		v := c.Get(eid)
		ww.WriteElement(c.Element(), v)
		shadow.scalar[eid] = v
	case *SubarrayColumn:
		writeSubarrayFull(ww, c, eid)
		shadow.subarray[eid] = append([]float64(nil), c.Slice(eid)...)
	case *FauxColumn:
		if err := writeFauxValue(ww, c, eid, cb); err != nil {
			return err
		}
		if v, ok := c.Get(eid); ok {
			shadow.faux[eid] = cloneFauxValue(v)
		} else {
			delete(shadow.faux, eid)
		}
	}
	return nil
}

func (ds *DeltaSerializer) writeEntitiesDelta(ww *wire.Writer, cb *complexBuffer) error {
	body := wire.NewWriter()
	current := ds.currentMembership()

	for _, fc := range flattenedColumns() {
		if err := ds.writeDeltaPidBlock(body, fc, current, cb); err != nil {
			return err
		}
	}
	ds.membership = current
	ww.WriteU32(uint32(body.Len()))
	ww.WriteRaw(body.Bytes())
	return writeComplexBuffer(ww, cb)
}

func (ds *DeltaSerializer) writeDeltaPidBlock(body *wire.Writer, fc flatColumn, current map[int]*roaring.Bitmap, cb *complexBuffer) error {
	w := ds.world
	headerStart := body.Len()
	body.WriteU16(fc.pid)
	countPos := body.Len()
	body.WriteU32(0)

	col := fc.column(w)
	shadow := ds.shadowFor(fc.pid)
	prev := ds.membership[fc.schema.Index] // nil the first time this schema is seen
	cur := current[fc.schema.Index]

	var count uint32
	for _, idRaw := range w.entities.live.Dense() {
		if !cur.Contains(idRaw) {
			continue
		}
		eid := Entity(idRaw)
		newlyAdded := prev == nil || !prev.Contains(idRaw)

		entryStart := body.Len()
		body.WriteU32(idRaw)

		wrote, err := ds.writeDeltaValue(body, fc, col, eid, shadow, newlyAdded, cb)
		if err != nil {
			return err
		}
		if !wrote {
			body.Truncate(body.Len() - entryStart)
			continue
		}
		count++
	}
	if count == 0 {
		body.Truncate(body.Len() - headerStart)
	} else {
		body.PatchU32(countPos, count)
	}
	return nil
}

func (ds *DeltaSerializer) writeDeltaValue(ww *wire.Writer, fc flatColumn, col Column, eid Entity, shadow *pidShadow, newlyAdded bool, cb *complexBuffer) (bool, error) {
	if fc.isTag {
		return newlyAdded, nil
	}
	switch c := col.(type) {
	case *ScalarColumn:
		v := c.Get(eid)
		prev, had := shadow.scalar[eid]
		if !newlyAdded && had && prev == v {
			return false, nil
		}
		ww.WriteElement(c.Element(), v)
		shadow.scalar[eid] = v
		return true, nil
	case *SubarrayColumn:
		return ds.writeSubarrayDelta(ww, c, eid, shadow, newlyAdded)
	case *FauxColumn:
		return ds.writeFauxDelta(ww, c, eid, shadow, newlyAdded, cb)
	}
	return false, nil
}

func (ds *DeltaSerializer) writeSubarrayDelta(ww *wire.Writer, col *SubarrayColumn, eid Entity, shadow *pidShadow, newlyAdded bool) (bool, error) {
	cur := col.Slice(eid)
	prev := shadow.subarray[eid]
	changed := make([]int, 0, len(cur))
	for i, v := range cur {
		if newlyAdded || prev == nil || i >= len(prev) || prev[i] != v {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 && !newlyAdded {
		return false, nil
	}
	ww.WriteIndex(col.IndexType(), len(changed))
	for _, i := range changed {
		ww.WriteIndex(col.IndexType(), i)
		ww.WriteElement(col.Element(), cur[i])
	}
	shadow.subarray[eid] = append([]float64(nil), cur...)
	return true, nil
}

func (ds *DeltaSerializer) writeFauxDelta(ww *wire.Writer, col *FauxColumn, eid Entity, shadow *pidShadow, newlyAdded bool, cb *complexBuffer) (bool, error) {
	v, ok := col.Get(eid)
	prev, hadPrev := shadow.faux[eid]
	if !newlyAdded {
		if !ok && !hadPrev {
			return false, nil
		}
		if ok && hadPrev && reflect.DeepEqual(prev, v) {
			return false, nil
		}
	}
	if err := writeFauxValue(ww, col, eid, cb); err != nil {
		return false, err
	}
	if ok {
		shadow.faux[eid] = cloneFauxValue(v)
	} else {
		delete(shadow.faux, eid)
	}
	return true, nil
}

// cloneFauxValue deep-clones the map/slice shapes a faux object or array
// value can take; every other value is already copied by assignment.
func cloneFauxValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneFauxValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneFauxValue(vv)
		}
		return out
	default:
		return v
	}
}

// ApplyDelta applies a buffer produced by DeltaSerializer.Serialize to w:
// a mode-0 buffer establishes a fresh baseline (equivalent to
// DeserializeWorld), a mode-1 buffer patches only the (pid, eid, value)
// tuples it carries, leaving everything else untouched. A mode-1 buffer
// is rejected if w has no established baseline.
func ApplyDelta(buffer []byte, w *World) error {
	rd := wire.NewReader(buffer)
	version, err := rd.ReadU16()
	if err != nil {
		return errors.WithStack(err)
	}
	if version != wire.SerializerVersion {
		return VersionMismatchError{Got: version, Want: wire.SerializerVersion}
	}
	modeByte, err := rd.ReadU8()
	if err != nil {
		return errors.WithStack(err)
	}
	mode := wire.Mode(modeByte)

	w.mu.Lock()
	defer w.mu.Unlock()

	if mode == wire.ModeDelta && !w.deltaHasBaseline {
		return ApplyDeltaWithoutBaselineError{}
	}

	if err := readHeaderBody(rd, w); err != nil {
		return err
	}

	if mode == wire.ModeFull {
		if err := readEntitiesBlock(rd, w); err != nil {
			return err
		}
		w.deltaHasBaseline = true
		return nil
	}
	return readEntitiesBlockBody(rd, w)
}
