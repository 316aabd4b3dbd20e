package columnar

// factory implements the factory pattern for columnar components and
// worlds: a single entry point for the schema/world/query/cache
// constructors this module exposes.
type factory struct{}

// Factory is the global factory instance for creating worlds, component
// schemas, queries, cursors and delta serializers. Caches are created with
// the free function FactoryNewCache.
var Factory factory

// NewWorld creates a World at the given fixed entity capacity.
func (f factory) NewWorld(size int) *World {
	return NewWorld(size)
}

// NewSchema starts building a component schema, equivalent to calling
// NewSchema directly; kept on Factory so every constructor has a single
// entry point.
func (f factory) NewSchema(typeName string) *ComponentBuilder {
	return NewSchema(typeName)
}

// NewQuery defines (or returns the memoized) query over componentTypes.
func (f factory) NewQuery(componentTypes ...string) *QueryInstance {
	return DefineQuery(componentTypes...)
}

// NewCursor creates a Cursor over q's current matches in w.
func (f factory) NewCursor(w *World, q *QueryInstance) *Cursor {
	return NewCursor(w, q)
}

// FactoryNewCache creates a Cache with the specified capacity. Go methods
// cannot carry their own type parameters, so this stays a free function
// rather than hanging off the factory value.
func FactoryNewCache[T any](cap int) Cache[T] {
	return NewSimpleCache[T](cap)
}

// NewDeltaSerializer creates a DeltaSerializer bound to w.
func (f factory) NewDeltaSerializer(w *World) *DeltaSerializer {
	return NewDeltaSerializer(w)
}
