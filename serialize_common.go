package columnar

import (
	"github.com/silostack/columnar/internal/wire"
)

// SerializationMode selects the payload shape serialize_world produces and
// deserialize_world accepts: a raw binary wire buffer, that buffer
// text-wrapped via Config.encoder, or a structured JSON mirror of the same
// data.
type SerializationMode uint8

const (
	ModeBinary SerializationMode = iota
	ModeJSON
	ModeBase64
)

// flatColumn is one leaf in the stable, registry-order flattened column
// walk the entities block writes pid headers against: one entry per tag
// store, one per scalar/subarray/faux property otherwise. The walk depends
// only on the frozen schema registry, so the same pid numbering applies to
// every world and every serialization.
type flatColumn struct {
	pid      uint16
	schema   *Schema
	propName string // "" for a tag column
	isTag    bool
}

// flattenedColumns returns the registry-order pid walk. Safe to call only
// after the registry is frozen (i.e. after any World has been created).
func flattenedColumns() []flatColumn {
	var out []flatColumn
	var pid uint16
	for _, s := range globalRegistry.all() {
		if s.IsTag() {
			out = append(out, flatColumn{pid: pid, schema: s, isTag: true})
			pid++
			continue
		}
		for _, p := range s.Properties {
			out = append(out, flatColumn{pid: pid, schema: s, propName: p.Name})
			pid++
		}
	}
	return out
}

// column resolves this pid's backing Column in world w. Returns nil for a
// tag column, which has no backing storage.
func (fc flatColumn) column(w *World) Column {
	if fc.isTag {
		return nil
	}
	st := w.storeFor(fc.schema)
	col, _ := st.ByName(fc.propName)
	return col
}

// complexBuffer accumulates out-of-band faux values this format cannot
// express inline: non-shallow-simple objects and arrays. Keyed
// eid -> componentType -> propKey, mirroring the entities array shape the
// JSON mode emits directly.
type complexBuffer struct {
	data map[Entity]map[string]map[string]any
}

func newComplexBuffer() *complexBuffer {
	return &complexBuffer{data: make(map[Entity]map[string]map[string]any)}
}

func (cb *complexBuffer) put(eid Entity, componentType, propKey string, v any) {
	byComponent, ok := cb.data[eid]
	if !ok {
		byComponent = make(map[string]map[string]any)
		cb.data[eid] = byComponent
	}
	byProp, ok := byComponent[componentType]
	if !ok {
		byProp = make(map[string]any)
		byComponent[componentType] = byProp
	}
	byProp[propKey] = v
}

func (cb *complexBuffer) get(eid Entity, componentType, propKey string) (any, bool) {
	byComponent, ok := cb.data[eid]
	if !ok {
		return nil, false
	}
	byProp, ok := byComponent[componentType]
	if !ok {
		return nil, false
	}
	v, ok := byProp[propKey]
	return v, ok
}

// writeFauxValue writes one faux property's current value for eid: a
// leading NullFlag/UndefinedFlag/ConcreteValueMarker byte, then — for a
// concrete value — either the inline typed payload or nothing at all when
// the value is complex enough to need the out-of-band buffer.
func writeFauxValue(ww *wire.Writer, col *FauxColumn, eid Entity, cb *complexBuffer) error {
	v, ok := col.Get(eid)
	if !ok {
		ww.WriteU8(wire.UndefinedFlag)
		return nil
	}
	if v == nil {
		ww.WriteU8(wire.NullFlag)
		return nil
	}
	ww.WriteU8(wire.ConcreteValueMarker)
	return writeFauxPayload(ww, col, eid, v, cb)
}

func writeFauxPayload(ww *wire.Writer, col *FauxColumn, eid Entity, v any, cb *complexBuffer) error {
	switch col.FauxKind() {
	case FauxString:
		s, ok := v.(string)
		if !ok {
			return UnsupportedTypeTagError{Tag: col.Name()}
		}
		ww.WriteU8String(s)
	case FauxBoolean:
		b, ok := v.(bool)
		if !ok {
			return UnsupportedTypeTagError{Tag: col.Name()}
		}
		if b {
			ww.WriteU8(1)
		} else {
			ww.WriteU8(0)
		}
	case FauxNumber, FauxNullable:
		f, ok := toFloat64(v)
		if !ok {
			return UnsupportedTypeTagError{Tag: col.Name()}
		}
		ww.WriteF64(f)
	case FauxObject:
		if props := col.fauxProps(); len(props) > 0 {
			obj, ok := v.(map[string]any)
			if !ok {
				return UnsupportedTypeTagError{Tag: col.Name()}
			}
			for _, p := range props {
				if err := writeShallowScalar(ww, p, obj[p.Name]); err != nil {
					return err
				}
			}
			return nil
		}
		cb.put(eid, col.Store().Schema().Type, col.Name(), v)
	case FauxArray:
		cb.put(eid, col.Store().Schema().Type, col.Name(), v)
	default:
		return UnsupportedTypeTagError{Tag: col.Name()}
	}
	return nil
}

// writeShallowScalar writes one primitive sub-property of a shallow-simple
// faux object, dispatching on the sub-property's declared faux kind.
func writeShallowScalar(ww *wire.Writer, p PropertyDescriptor, v any) error {
	switch p.FauxKind {
	case FauxString:
		s, _ := v.(string)
		ww.WriteU8String(s)
	case FauxBoolean:
		b, _ := v.(bool)
		if b {
			ww.WriteU8(1)
		} else {
			ww.WriteU8(0)
		}
	default:
		f, _ := toFloat64(v)
		ww.WriteF64(f)
	}
	return nil
}

// readFauxValue is writeFauxValue's mirror: it reads the leading flag byte
// and, for a concrete inline value, the typed payload. Complex values are
// left for the caller to patch in from the decoded complex buffer.
func readFauxValue(wr *wire.Reader, col *FauxColumn, eid Entity) error {
	flag, err := wr.ReadU8()
	if err != nil {
		return err
	}
	switch flag {
	case wire.UndefinedFlag:
		return nil
	case wire.NullFlag:
		col.Set(eid, nil)
		return nil
	case wire.ConcreteValueMarker:
		return readFauxPayload(wr, col, eid)
	default:
		return UnsupportedTypeTagError{Tag: col.Name()}
	}
}

func readFauxPayload(wr *wire.Reader, col *FauxColumn, eid Entity) error {
	switch col.FauxKind() {
	case FauxString:
		s, err := wr.ReadU8String()
		if err != nil {
			return err
		}
		col.Set(eid, s)
	case FauxBoolean:
		b, err := wr.ReadU8()
		if err != nil {
			return err
		}
		col.Set(eid, b != 0)
	case FauxNumber, FauxNullable:
		f, err := wr.ReadF64()
		if err != nil {
			return err
		}
		col.Set(eid, f)
	case FauxObject:
		if props := col.fauxProps(); len(props) > 0 {
			obj := make(map[string]any, len(props))
			for _, p := range props {
				v, err := readShallowScalar(wr, p)
				if err != nil {
					return err
				}
				obj[p.Name] = v
			}
			col.Set(eid, obj)
			return nil
		}
		// Complex object: left nil here, patched in by the complex-buffer pass.
	case FauxArray:
		// Complex array: left nil here, patched in by the complex-buffer pass.
	default:
		return UnsupportedTypeTagError{Tag: col.Name()}
	}
	return nil
}

func readShallowScalar(wr *wire.Reader, p PropertyDescriptor) (any, error) {
	switch p.FauxKind {
	case FauxString:
		return wr.ReadU8String()
	case FauxBoolean:
		b, err := wr.ReadU8()
		return b != 0, err
	default:
		return wr.ReadF64()
	}
}
