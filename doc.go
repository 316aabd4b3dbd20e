/*
Package columnar provides an Entity-Component-System (ECS) runtime for
games and simulations.

Columnar stores every component in a flat, columnar array rather than
grouping entities into archetype tables: component membership is recorded
in a per-entity bitmask, and queries maintain their own sparse-set index
over that bitmask so matching is O(1) amortized and independent of how
many distinct component combinations exist.

Core Concepts:

  - Entity: an opaque 32-bit id.
  - Schema: a component's declared set of typed properties, built with
    NewSchema and frozen once the first World is created.
  - World: one isolated, independently-stepped instance holding entities,
    component stores, and query state.
  - Query: a memoized, |-joined set of required component type names,
    matched against entities via their bitmasks.
  - System: a registered class with a scheduling depth and optional
    Init/Cleanup/Run/Destroy hooks, stepped in (depth, queryKey) order.

Basic Usage:

	position := columnar.NewSchema("Position").
		Field("x", columnar.F64, 0).
		Field("y", columnar.F64, 0).
		Build()
	velocity := columnar.NewSchema("Velocity").
		Field("x", columnar.F64, 0).
		Field("y", columnar.F64, 0).
		Build()

	world := columnar.NewWorld(1024)
	e, _ := world.AddEntity()
	world.AddComponent(position, e, map[string]any{"x": 10.0, "y": 20.0})
	world.AddComponent(velocity, e, map[string]any{"x": 1.0, "y": 2.0})

	moving := columnar.DefineQuery("Position", "Velocity")
	for _, e := range moving.Entities(world) {
		// read/write via a Proxy or a generic ScalarAccessor
	}

Columnar also provides, in this same package, a versioned binary serializer
(SerializeWorld/DeserializeWorld for full snapshots, DeltaSerializer and
ApplyDelta for the stateful delta mode) and a JSON/BASE64 encoding
alongside it.
*/
package columnar
