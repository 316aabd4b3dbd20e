package columnar

import (
	"github.com/silostack/columnar/internal/wire"
)

// Column is the common surface of a component's storage slots: tag columns have
// none of the concrete behavior below, but still answer Name/Kind/Store so
// generic code (the serializer, the proxy accessor) can walk a store's leaves
// uniformly.
type Column interface {
	Name() string
	Kind() PropertyKind
	Store() *Store
	resetFor(eid Entity)
}

// base is embedded by every concrete column to carry the store back-pointer,
// so code reaching a column through a type switch can recover the owning
// store.
type base struct {
	name  string
	store *Store
}

func (b *base) Name() string   { return b.name }
func (b *base) Store() *Store { return b.store }

// ScalarColumn is a dense, zero-initialized array of size elements, one
// per entity, of a fixed numeric element type.
type ScalarColumn struct {
	base
	elem    ElementType
	isEID   bool
	def     float64
	data    []float64
}

func (c *ScalarColumn) Kind() PropertyKind { return KindScalar }
func (c *ScalarColumn) Element() ElementType { return c.elem }
func (c *ScalarColumn) IsEIDType() bool      { return c.isEID }

// Get returns the raw float64 carrier for eid. Carrying every element
// type as float64 costs nothing in precision: every supported integer
// width fits exactly in a float64 mantissa, and float32 values widen
// losslessly.
func (c *ScalarColumn) Get(eid Entity) float64 {
	return c.data[eid]
}

func (c *ScalarColumn) Set(eid Entity, v float64) {
	c.data[eid] = v
}

func (c *ScalarColumn) resetFor(eid Entity) {
	c.data[eid] = 0
}

func (c *ScalarColumn) resize(newSize int) {
	next := make([]float64, newSize)
	copy(next, c.data)
	c.data = next
}

// subarrayBuffer is the shared backing buffer for every subarray property of
// one element type within a single store. Per-entity stride is the sum of the
// lengths of every subarray property sharing this buffer.
type subarrayBuffer struct {
	elem   ElementType
	stride int
	data   []float64 // logical length size*stride
}

func (b *subarrayBuffer) resize(newSize int) {
	next := make([]float64, newSize*b.stride)
	copy(next, b.data)
	b.data = next
}

// SubarrayColumn is one entity-owned, fixed-length slice view into a
// subarrayBuffer shared with sibling subarray properties of the same
// element type.
type SubarrayColumn struct {
	base
	elem      ElementType
	length    int
	offset    int // element offset into this store's per-entity stride segment for buf.elem
	indexType ElementType
	buf       *subarrayBuffer
	def       []float64
}

func (c *SubarrayColumn) Kind() PropertyKind   { return KindSubarray }
func (c *SubarrayColumn) Element() ElementType { return c.elem }
func (c *SubarrayColumn) Length() int          { return c.length }
func (c *SubarrayColumn) IndexType() ElementType { return c.indexType }
func (c *SubarrayColumn) IndexBytes() int        { return c.indexType.ByteSize() }

// Slice returns eid's fixed-length view into the shared backing buffer.
// The returned slice aliases the buffer; callers must not retain it
// across a Resize.
func (c *SubarrayColumn) Slice(eid Entity) []float64 {
	start := int(eid)*c.buf.stride + c.offset
	return c.buf.data[start : start+c.length]
}

func (c *SubarrayColumn) resetFor(eid Entity) {
	s := c.Slice(eid)
	for i := range s {
		s[i] = 0
	}
}

// FauxColumn is an eid-keyed map for properties the columnar layout cannot
// express.
type FauxColumn struct {
	base
	kind   FauxKind
	props  []PropertyDescriptor // shallow-simple sub-properties, FauxObject only
	def    any
	values map[Entity]any
}

func (c *FauxColumn) Kind() PropertyKind { return KindFaux }
func (c *FauxColumn) FauxKind() FauxKind { return c.kind }

// fauxProps returns the shallow-simple sub-properties of a FauxObject
// column, or nil if this object's value is opaque to the columnar layout
// (serialized through the complex buffer instead).
func (c *FauxColumn) fauxProps() []PropertyDescriptor { return c.props }

func (c *FauxColumn) Get(eid Entity) (any, bool) {
	v, ok := c.values[eid]
	return v, ok
}

func (c *FauxColumn) Set(eid Entity, v any) {
	c.values[eid] = v
}

func (c *FauxColumn) resetFor(eid Entity) {
	delete(c.values, eid)
}

// TagColumn carries no data: presence is encoded solely in the entity bitmask.
type TagColumn struct {
	base
}

func (c *TagColumn) Kind() PropertyKind   { return KindTag }
func (c *TagColumn) resetFor(eid Entity) {}

// Store is the per-world, per-component container for all of a component's
// columns. Tag schemas get a Store with no columns at all; every other schema
// gets one flattened, stably ordered leaf list.
type Store struct {
	schema    *Schema
	size      int
	isTag     bool
	leaves    []Column
	byName    map[string]Column
	buffers   map[ElementType]*subarrayBuffer
	elemCursor map[ElementType]int // per-element-type layout cursor while building subarray offsets
}

// CreateStore allocates a fresh, zero-initialized store for schema at world
// capacity size.
func CreateStore(schema *Schema, size int) *Store {
	st := &Store{
		schema:     schema,
		size:       size,
		isTag:      schema.IsTag(),
		byName:     make(map[string]Column),
		buffers:    make(map[ElementType]*subarrayBuffer),
		elemCursor: make(map[ElementType]int),
	}
	if st.isTag {
		return st
	}
	for _, p := range schema.Properties {
		var col Column
		switch p.Kind {
		case KindScalar:
			sc := &ScalarColumn{
				base: base{name: p.Name, store: st},
				elem: p.Element,
				isEID: p.Element == wire.EID,
				data:  make([]float64, size),
			}
			if def, ok := p.Default.(float64); ok {
				sc.def = def
			}
			col = sc
		case KindSubarray:
			buf, ok := st.buffers[p.Element]
			if !ok {
				buf = &subarrayBuffer{elem: p.Element}
				st.buffers[p.Element] = buf
			}
			offset := st.elemCursor[p.Element]
			st.elemCursor[p.Element] += p.Length
			buf.stride += p.Length
			sc := &SubarrayColumn{
				base:      base{name: p.Name, store: st},
				elem:      p.Element,
				length:    p.Length,
				offset:    offset,
				indexType: wire.IndexTypeFor(p.Length),
				buf:       buf,
			}
			if def, ok := p.Default.([]float64); ok {
				sc.def = def
			}
			col = sc
		case KindFaux:
			col = &FauxColumn{
				base:   base{name: p.Name, store: st},
				kind:   p.FauxKind,
				props:  p.FauxProperties,
				def:    p.Default,
				values: make(map[Entity]any),
			}
		}
		st.leaves = append(st.leaves, col)
		st.byName[p.Name] = col
	}
	// Allocate the shared backing buffers now that every property's
	// stride contribution is known.
	for _, buf := range st.buffers {
		buf.data = make([]float64, size*buf.stride)
	}
	return st
}

// IsTag reports whether this store backs a tag component (no columns).
func (s *Store) IsTag() bool { return s.isTag }

// Schema returns the owning component schema.
func (s *Store) Schema() *Schema { return s.schema }

// Leaves returns the flattened column list in stable declaration order.
func (s *Store) Leaves() []Column { return s.leaves }

// ByName returns the column for a given property name.
func (s *Store) ByName(name string) (Column, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// ResetStore zero-fills every column.
func (s *Store) ResetStore() {
	for eid := 0; eid < s.size; eid++ {
		s.ResetStoreFor(Entity(eid))
	}
}

// ResetStoreFor clears only eid's slot in each column: zero for scalars,
// zero-fill for subarrays, delete for faux. No-op on a tag store.
func (s *Store) ResetStoreFor(eid Entity) {
	for _, c := range s.leaves {
		c.resetFor(eid)
	}
}

// ApplyDefaults writes each property's declared default into eid's slot. Called
// after ResetStoreFor during add_component, before overrides are applied.
func (s *Store) ApplyDefaults(eid Entity) {
	for _, c := range s.leaves {
		switch col := c.(type) {
		case *ScalarColumn:
			col.Set(eid, col.def)
		case *SubarrayColumn:
			if col.def != nil {
				copy(col.Slice(eid), col.def)
			}
		case *FauxColumn:
			if col.def != nil {
				col.Set(eid, col.def)
			}
		}
	}
}

// ResizeStore grows every column to newSize, preserving existing data and every
// column's storeBase back-pointer.
func (s *Store) ResizeStore(newSize int) {
	if newSize <= s.size {
		return
	}
	old := s.size
	s.size = newSize
	for _, c := range s.leaves {
		switch col := c.(type) {
		case *ScalarColumn:
			col.resize(newSize)
		}
	}
	for _, buf := range s.buffers {
		buf.resize(newSize)
	}
	if Config.storeEvents.OnResize != nil {
		Config.storeEvents.OnResize(s.schema.Type, old, newSize)
	}
}

// FreeStore releases a store's backing arrays.
func (s *Store) FreeStore() {
	s.leaves = nil
	s.byName = nil
	s.buffers = nil
}

// ParentArray recovers the owning store from a column.
func ParentArray(c Column) *Store {
	return c.Store()
}
