package columnar

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Value is the loosely-typed result of a proxy accessor read: exactly one
// of the fields is meaningful, selected by Kind.
type Value struct {
	Kind    PropertyKind
	Number  float64
	Numbers []float64
	Any     any
}

// ScalarAccessor is a generic, directly-typed accessor for one named
// scalar property of one component: a direct world+entity column lookup
// with none of the interface dispatch a dynamically-typed accessor pays for.
type ScalarAccessor[T ~float32 | ~float64 | ~int | ~int32 | ~int64 | ~uint32] struct {
	Schema   *Schema
	Property string
}

// NewScalarAccessor builds a typed accessor bound to schema's named
// scalar property. Panics if the property does not exist or is not a
// scalar — a definition-time programmer error, not a runtime one.
func NewScalarAccessor[T ~float32 | ~float64 | ~int | ~int32 | ~int64 | ~uint32](schema *Schema, property string) ScalarAccessor[T] {
	for _, p := range schema.Properties {
		if p.Name == property {
			if p.Kind != KindScalar {
				panic("columnar: " + property + " is not a scalar property of " + schema.Type)
			}
			return ScalarAccessor[T]{Schema: schema, Property: property}
		}
	}
	panic("columnar: " + schema.Type + " has no property named " + property)
}

// Get reads e's value for this accessor's property directly from the
// backing ScalarColumn, with none of the map/interface overhead of the
// proxy accessor below.
func (a ScalarAccessor[T]) Get(w *World, e Entity) T {
	st := w.storeFor(a.Schema)
	col := st.byName[a.Property].(*ScalarColumn)
	return T(col.Get(e))
}

// Set writes e's value for this accessor's property.
func (a ScalarAccessor[T]) Set(w *World, e Entity, v T) {
	st := w.storeFor(a.Schema)
	col := st.byName[a.Property].(*ScalarColumn)
	col.Set(e, float64(v))
}

// proxyKey identifies one (world, schema, entity) cell for the proxy
// accessor cache.
type proxyKey struct {
	world  *World
	schema *Schema
	entity Entity
}

// proxyCache bounds the number of live Proxy objects kept warm, evicting least-
// recently-used entries once full.
var proxyCache, _ = lru.New[proxyKey, *Proxy](4096)

// Proxy is a dynamically-typed, per-entity view over one component's
// properties: Get/Set by name, Keys for enumeration, and a synthetic "type"
// field carrying the schema's type name. It is a name-indexed escape hatch
// for host code that only knows property names at runtime (editors,
// scripting).
type Proxy struct {
	world  *World
	schema *Schema
	entity Entity
	store  *Store
}

// GetProxy returns the cached Proxy for (schema, e) in w, constructing
// one on a cache miss.
func GetProxy(w *World, schema *Schema, e Entity) *Proxy {
	key := proxyKey{world: w, schema: schema, entity: e}
	if p, ok := proxyCache.Get(key); ok {
		return p
	}
	p := &Proxy{world: w, schema: schema, entity: e, store: w.storeFor(schema)}
	proxyCache.Add(key, p)
	return p
}

// invalidateProxy evicts e's cached proxy for schema, called from
// RemoveComponent so a stale Proxy never outlives the column slot it
// pointed at.
func invalidateProxy(w *World, schema *Schema, e Entity) {
	proxyCache.Remove(proxyKey{world: w, schema: schema, entity: e})
}

// Type returns the component's schema type name.
func (p *Proxy) Type() string { return p.schema.Type }

// Keys returns every property name declared on the component, in
// declaration order, plus the synthetic "type" pseudo-field.
func (p *Proxy) Keys() []string {
	keys := make([]string, len(p.schema.Properties)+1)
	for i, prop := range p.schema.Properties {
		keys[i] = prop.Name
	}
	keys[len(p.schema.Properties)] = "type"
	return keys
}

// Get reads the named property's current value for the bound entity.
// The synthetic "type" pseudo-field returns the schema's type name.
func (p *Proxy) Get(name string) (Value, bool) {
	if name == "type" {
		return Value{Kind: KindFaux, Any: p.schema.Type}, true
	}
	col, ok := p.store.ByName(name)
	if !ok {
		return Value{}, false
	}
	switch c := col.(type) {
	case *ScalarColumn:
		return Value{Kind: KindScalar, Number: c.Get(p.entity)}, true
	case *SubarrayColumn:
		return Value{Kind: KindSubarray, Numbers: append([]float64(nil), c.Slice(p.entity)...)}, true
	case *FauxColumn:
		v, _ := c.Get(p.entity)
		return Value{Kind: KindFaux, Any: v}, true
	default:
		return Value{}, false
	}
}

// Set writes the named property's value for the bound entity. v must
// match the property's kind: float64 for scalar, []float64 for subarray,
// anything for faux.
func (p *Proxy) Set(name string, v any) error {
	col, ok := p.store.ByName(name)
	if !ok {
		return UnsupportedTypeTagError{Tag: name}
	}
	switch c := col.(type) {
	case *ScalarColumn:
		f, ok := toFloat64(v)
		if !ok {
			return UnsupportedTypeTagError{Tag: name}
		}
		c.Set(p.entity, f)
	case *SubarrayColumn:
		vals, ok := v.([]float64)
		if !ok {
			return UnsupportedTypeTagError{Tag: name}
		}
		copy(c.Slice(p.entity), vals)
	case *FauxColumn:
		c.Set(p.entity, v)
	}
	return nil
}
