package columnar

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/silostack/columnar/internal/mask"
)

// registry is the process-wide, shared-across-worlds component schema
// table: it assigns each component schema a stable structural identity
// (the frozen Index, sorted by type name), since this engine's membership
// unit is the bitmask, not an archetype.
type registry struct {
	mu      sync.Mutex
	schemas []*Schema
	byType  map[string]*Schema
	frozen  bool
	cache   SimpleCache[*Schema]
	cursor  *mask.Cursor
	gens    uint32 // highest generation index handed out, inclusive
}

var globalRegistry = newRegistry()

func newRegistry() *registry {
	return &registry{
		byType: make(map[string]*Schema),
		cache:  *NewSimpleCache[*Schema](1 << 16),
		cursor: mask.NewCursor(),
	}
}

// register adds a schema to the registry. Re-registering the same type
// name returns the existing schema's builder target unchanged (idempotent
// at the registry level).
func (r *registry) register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s == nil {
		return ComponentNullError{}
	}
	if existing, ok := r.byType[s.Type]; ok {
		*s = *existing
		return nil
	}
	if r.frozen {
		return errors.WithStack(DefineAfterFreezeError{Type: s.Type})
	}
	r.schemas = append(r.schemas, s)
	r.byType[s.Type] = s
	return nil
}

// freeze assigns each schema a stable Index in ascending type-name order and
// locks the registry against further registration. Safe to call repeatedly;
// only the first call has an effect.
func (r *registry) freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return
	}
	sort.Slice(r.schemas, func(i, j int) bool {
		return r.schemas[i].Type < r.schemas[j].Type
	})
	for i, s := range r.schemas {
		s.Index = i
		g, bit, _ := r.cursor.Next()
		s.Generation = g
		s.Bitflag = bit
		if g > r.gens {
			r.gens = g
		}
		s.frozen = true
		if _, err := r.cache.Register(s.Type, s); err != nil {
			Config.logger().WithField("component", s.Type).Warn("columnar: schema cache at capacity, schema not cached")
		}
	}
	r.frozen = true
}

// generationCount returns how many mask.EntityMasks generation slabs a
// freshly created World needs to hold one bit per registered component.
func (r *registry) generationCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens + 1
}

// cursorPeek reports the (generation, bitflag) pair the next component
// registration would receive, for the serializer's wire header.
func (r *registry) cursorPeek() (generation uint32, bitflag uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor.Peek()
}

// byTypeName looks up a frozen schema by its type name.
func (r *registry) byTypeName(typeName string) (*Schema, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byType[typeName]
	return s, ok
}

// all returns the frozen schema list in stable index order. Callers must
// only call this after freeze().
func (r *registry) all() []*Schema {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Schema(nil), r.schemas...)
}
