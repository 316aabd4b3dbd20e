package columnar

import (
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/silostack/columnar/internal/mask"
	"github.com/silostack/columnar/internal/wire"
)

// SerializeWorld renders w as a self-contained snapshot in the given mode.
// ModeBinary and ModeBase64 both produce the versioned wire format (§4.6.1);
// ModeBase64 additionally text-wraps it through Config.encoder. ModeJSON
// produces the structured mirror described in §4.6.4.
func SerializeWorld(mode SerializationMode, w *World) ([]byte, error) {
	switch mode {
	case ModeBinary:
		return serializeWorldBinary(w)
	case ModeBase64:
		bin, err := serializeWorldBinary(w)
		if err != nil {
			return nil, err
		}
		return []byte(Config.encoder.Encode(bin)), nil
	case ModeJSON:
		return serializeWorldJSON(w)
	default:
		return nil, errors.Errorf("columnar: unknown serialization mode %d", mode)
	}
}

// DeserializeWorld resets w and repopulates it from a full-mode payload
// produced by SerializeWorld. w must already exist (created via NewWorld)
// at a capacity no smaller than the snapshot's.
func DeserializeWorld(mode SerializationMode, payload []byte, w *World) error {
	switch mode {
	case ModeBinary:
		return deserializeWorldBinary(payload, w)
	case ModeBase64:
		bin, err := Config.encoder.Decode(string(payload))
		if err != nil {
			return errors.WithStack(err)
		}
		return deserializeWorldBinary(bin, w)
	case ModeJSON:
		return deserializeWorldJSON(payload, w)
	default:
		return errors.Errorf("columnar: unknown serialization mode %d", mode)
	}
}

func serializeWorldBinary(w *World) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ww := wire.NewWriter()
	writeHeader(ww, w, wire.ModeFull)
	cb := newComplexBuffer()
	if err := writeEntitiesBlockFull(ww, w, cb); err != nil {
		return nil, err
	}
	return ww.Bytes(), nil
}

func deserializeWorldBinary(payload []byte, w *World) error {
	rd := wire.NewReader(payload)
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
	if wire.Mode(modeByte) != wire.ModeFull {
		return errors.Errorf("columnar: deserialize_world requires a full-mode buffer, got mode %d", modeByte)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := readHeaderBody(rd, w); err != nil {
		return err
	}
	if err := readEntitiesBlock(rd, w); err != nil {
		return err
	}
	w.deltaHasBaseline = true
	return nil
}

// writeHeader writes the version/mode/entity/component/query preamble
// shared by full and delta snapshots (§4.6.1).
func writeHeader(ww *wire.Writer, w *World, mode wire.Mode) {
	ww.WriteU16(wire.SerializerVersion)
	ww.WriteU8(uint8(mode))

	dense, sparse := w.entities.live.Raw()
	ww.WriteSparseSet(dense, sparse)

	removed := make([]uint16, len(w.entities.removed))
	for i, e := range w.entities.removed {
		removed[i] = uint16(e)
	}
	ww.WriteUintArray(removed)

	ww.WriteU16(uint16(w.entities.entityCursor))
	ww.WriteU16(uint16(w.size))

	_, bitflag := globalRegistry.cursorPeek()
	ww.WriteU32(bitflag)
	ww.WriteU32(uint32(w.frame))

	schemas := globalRegistry.all()
	ww.WriteU16(uint16(len(schemas)))
	for _, s := range schemas {
		ww.WriteString(s.Type)
		ww.WriteU32(s.Generation)
		ww.WriteU32(s.Bitflag)
	}

	keys := make([]string, 0, len(w.queries))
	for k := range w.queries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ww.WriteU16(uint16(len(keys)))
	var dirty []string
	for _, k := range keys {
		qs := w.queries[k]
		writeSerializedQuery(ww, k, qs)
		if qs.dirty {
			dirty = append(dirty, k)
		}
	}
	ww.WriteU16(uint16(len(dirty)))
	for _, k := range dirty {
		ww.WriteString(k)
	}
}

func writeSerializedQuery(ww *wire.Writer, key string, qs *queryState) {
	pd, ps := qs.primary.Raw()
	ww.WriteSparseSet(pd, ps)
	td, ts := qs.toRemove.Raw()
	ww.WriteSparseSet(td, ts)
	ed, es := qs.entered.Raw()
	ww.WriteSparseSet(ed, es)
	ww.WriteString(key)

	genKeys := make([]uint32, 0, len(qs.masks))
	for g := range qs.masks {
		genKeys = append(genKeys, g)
	}
	sort.Slice(genKeys, func(i, j int) bool { return genKeys[i] < genKeys[j] })
	vals := make([]float64, len(genKeys))
	for i, g := range genKeys {
		vals[i] = float64(qs.masks[g])
	}
	ww.WriteNumberObject(genKeys, vals)

	gens := make([]float64, len(qs.generations))
	for i, g := range qs.generations {
		gens[i] = float64(g)
	}
	ww.WriteNumberArray(gens)
}

// readHeaderBody reads everything writeHeader wrote after the
// version/mode bytes (already consumed by the caller) and resets w's
// entity allocator and query states to match. Called with w.mu held.
func readHeaderBody(rd *wire.Reader, w *World) error {
	dense, sparse, err := rd.ReadSparseSet()
	if err != nil {
		return errors.WithStack(err)
	}
	removedU16, err := rd.ReadUintArray()
	if err != nil {
		return errors.WithStack(err)
	}
	cursor, err := rd.ReadU16()
	if err != nil {
		return errors.WithStack(err)
	}
	size, err := rd.ReadU16()
	if err != nil {
		return errors.WithStack(err)
	}
	if int(size) > w.size {
		w.grow(int(size))
	}
	if _, err := rd.ReadU32(); err != nil { // bitflag cursor position, informational
		return errors.WithStack(err)
	}
	frame, err := rd.ReadU32()
	if err != nil {
		return errors.WithStack(err)
	}

	componentCount, err := rd.ReadU16()
	if err != nil {
		return errors.WithStack(err)
	}
	for i := 0; i < int(componentCount); i++ {
		if _, err := rd.ReadString(); err != nil {
			return errors.WithStack(err)
		}
		if _, err := rd.ReadU32(); err != nil {
			return errors.WithStack(err)
		}
		if _, err := rd.ReadU32(); err != nil {
			return errors.WithStack(err)
		}
	}

	queryCount, err := rd.ReadU16()
	if err != nil {
		return errors.WithStack(err)
	}
	for i := 0; i < int(queryCount); i++ {
		if err := readSerializedQuery(rd, w); err != nil {
			return err
		}
	}

	dirtyCount, err := rd.ReadU16()
	if err != nil {
		return errors.WithStack(err)
	}
	dirtyKeys := make(map[string]bool, dirtyCount)
	for i := 0; i < int(dirtyCount); i++ {
		k, err := rd.ReadString()
		if err != nil {
			return errors.WithStack(err)
		}
		dirtyKeys[k] = true
	}
	for k, qs := range w.queries {
		qs.dirty = dirtyKeys[k]
	}

	w.entities.live.Reset(dense, sparse)
	removed := make([]Entity, len(removedU16))
	for i, v := range removedU16 {
		removed[i] = Entity(v)
	}
	w.entities.removed = removed
	w.entities.entityCursor = uint32(cursor)
	w.frame = uint64(frame)
	return nil
}

func readSerializedQuery(rd *wire.Reader, w *World) error {
	primaryD, primaryS, err := rd.ReadSparseSet()
	if err != nil {
		return errors.WithStack(err)
	}
	toRemoveD, toRemoveS, err := rd.ReadSparseSet()
	if err != nil {
		return errors.WithStack(err)
	}
	enteredD, enteredS, err := rd.ReadSparseSet()
	if err != nil {
		return errors.WithStack(err)
	}
	key, err := rd.ReadString()
	if err != nil {
		return errors.WithStack(err)
	}
	genKeys, vals, err := rd.ReadNumberObject()
	if err != nil {
		return errors.WithStack(err)
	}
	gens, err := rd.ReadNumberArray()
	if err != nil {
		return errors.WithStack(err)
	}

	qs, ok := w.queries[key]
	if !ok {
		q := DefineQuery(strings.Split(key, "|")...)
		qs = newQueryState(q, w.size)
		w.queries[key] = qs
	}
	qs.primary.Reset(primaryD, primaryS)
	qs.toRemove.Reset(toRemoveD, toRemoveS)
	qs.entered.Reset(enteredD, enteredS)
	qs.masks = make(map[uint32]uint32, len(genKeys))
	for i, g := range genKeys {
		qs.masks[g] = uint32(vals[i])
	}
	qs.generations = make([]uint32, len(gens))
	for i, g := range gens {
		qs.generations[i] = uint32(g)
	}
	return nil
}

// writeEntitiesBlockFull writes the full-mode entities block (§4.6.2):
// every pid's complete current value for every member entity, followed by
// the JSON complex buffer for values this binary format cannot inline.
func writeEntitiesBlockFull(ww *wire.Writer, w *World, cb *complexBuffer) error {
	body := wire.NewWriter()
	for _, fc := range flattenedColumns() {
		if err := writeFullPidBlock(body, w, fc, cb); err != nil {
			return err
		}
	}
	ww.WriteU32(uint32(body.Len()))
	ww.WriteRaw(body.Bytes())
	return writeComplexBuffer(ww, cb)
}

func writeFullPidBlock(body *wire.Writer, w *World, fc flatColumn, cb *complexBuffer) error {
	headerStart := body.Len()
	body.WriteU16(fc.pid)
	countPos := body.Len()
	body.WriteU32(0)

	col := fc.column(w)
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
		if err := writeColumnValue(body, col, eid, cb); err != nil {
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

// writeColumnValue writes one column's current value for eid, the full
// (not delta) payload in every case.
func writeColumnValue(ww *wire.Writer, col Column, eid Entity, cb *complexBuffer) error {
	switch c := col.(type) {
	case *ScalarColumn:
		ww.WriteElement(c.Element(), c.Get(eid))
	case *SubarrayColumn:
		writeSubarrayFull(ww, c, eid)
	case *FauxColumn:
		return writeFauxValue(ww, c, eid, cb)
	}
	return nil
}

func writeSubarrayFull(ww *wire.Writer, col *SubarrayColumn, eid Entity) {
	slice := col.Slice(eid)
	ww.WriteIndex(col.IndexType(), len(slice))
	for i, v := range slice {
		ww.WriteIndex(col.IndexType(), i)
		ww.WriteElement(col.Element(), v)
	}
}

func readSubarrayPartial(rd *wire.Reader, col *SubarrayColumn, eid Entity) error {
	count, err := rd.ReadIndex(col.IndexType())
	if err != nil {
		return errors.WithStack(err)
	}
	slice := col.Slice(eid)
	for i := 0; i < count; i++ {
		idx, err := rd.ReadIndex(col.IndexType())
		if err != nil {
			return errors.WithStack(err)
		}
		v, err := rd.ReadElement(col.Element())
		if err != nil {
			return errors.WithStack(err)
		}
		if idx >= 0 && idx < len(slice) {
			slice[idx] = v
		}
	}
	return nil
}

func writeComplexBuffer(ww *wire.Writer, cb *complexBuffer) error {
	if len(cb.data) == 0 {
		ww.WriteU32(0)
		return nil
	}
	out := make(map[string]map[string]map[string]any, len(cb.data))
	for eid, byComponent := range cb.data {
		out[strconv.Itoa(int(eid))] = byComponent
	}
	b, err := json.Marshal(out)
	if err != nil {
		return errors.WithStack(err)
	}
	ww.WriteU32(uint32(len(b)))
	ww.WriteRaw(b)
	return nil
}

// readEntitiesBlock is writeEntitiesBlockFull's mirror: it resets every
// store and the membership mask table, then repopulates both from the pid
// blocks and patches in complex faux values from the JSON buffer. Called
// with w.mu held.
func readEntitiesBlock(rd *wire.Reader, w *World) error {
	w.masks = mask.NewEntityMasks(w.size)
	for g := uint32(1); g < globalRegistry.generationCount(); g++ {
		w.masks.AddGeneration()
	}
	for _, st := range w.stores {
		if !st.IsTag() {
			st.ResetStore()
		}
	}
	return readEntitiesBlockBody(rd, w)
}

// readEntitiesBlockBody reads the pid blocks and complex buffer without
// first resetting store contents or membership, so a delta buffer's
// present (pid, eid, value) tuples patch onto existing state while absent
// ones are left untouched. Called with w.mu held.
func readEntitiesBlockBody(rd *wire.Reader, w *World) error {
	entityRegionBytes, err := rd.ReadU32()
	if err != nil {
		return errors.WithStack(err)
	}
	regionEnd := rd.Pos() + int(entityRegionBytes)

	flat := flattenedColumns()
	for rd.Pos() < regionEnd {
		pid, err := rd.ReadU16()
		if err != nil {
			return errors.WithStack(err)
		}
		count, err := rd.ReadU32()
		if err != nil {
			return errors.WithStack(err)
		}
		if int(pid) >= len(flat) {
			return errors.Errorf("columnar: decoded pid %d out of range", pid)
		}
		fc := flat[pid]
		col := fc.column(w)
		for i := uint32(0); i < count; i++ {
			eidRaw, err := rd.ReadU32()
			if err != nil {
				return errors.WithStack(err)
			}
			eid := Entity(eidRaw)
			w.masks.Set(fc.schema.Generation, eidRaw, fc.schema.Bitflag)
			if fc.isTag {
				continue
			}
			if err := readColumnValue(rd, col, eid); err != nil {
				return err
			}
		}
	}

	complexLen, err := rd.ReadU32()
	if err != nil {
		return errors.WithStack(err)
	}
	buf, err := rd.ReadBytes(int(complexLen))
	if err != nil {
		return errors.WithStack(err)
	}
	return applyComplexBuffer(buf, w)
}

func readColumnValue(rd *wire.Reader, col Column, eid Entity) error {
	switch c := col.(type) {
	case *ScalarColumn:
		v, err := rd.ReadElement(c.Element())
		if err != nil {
			return errors.WithStack(err)
		}
		c.Set(eid, v)
	case *SubarrayColumn:
		return readSubarrayPartial(rd, c, eid)
	case *FauxColumn:
		return readFauxValue(rd, c, eid)
	}
	return nil
}

func applyComplexBuffer(buf []byte, w *World) error {
	if len(buf) == 0 {
		return nil
	}
	var decoded map[string]map[string]map[string]any
	if err := json.Unmarshal(buf, &decoded); err != nil {
		return errors.WithStack(err)
	}
	for eidStr, byComponent := range decoded {
		eidVal, err := strconv.Atoi(eidStr)
		if err != nil {
			return errors.WithStack(err)
		}
		eid := Entity(eidVal)
		for componentType, byProp := range byComponent {
			s, ok := globalRegistry.byTypeName(componentType)
			if !ok {
				continue
			}
			st, ok := w.lockedStoreByType(s)
			if !ok {
				continue
			}
			for propKey, v := range byProp {
				col, ok := st.ByName(propKey)
				if !ok {
					continue
				}
				if fc, ok := col.(*FauxColumn); ok {
					fc.Set(eid, v)
				}
			}
		}
	}
	return nil
}
