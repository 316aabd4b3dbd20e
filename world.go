package columnar

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/silostack/columnar/internal/mask"
)

// World is one isolated, independently-stepped ECS instance: an entity
// allocator, the bitmask table backing every query, one Store per registered
// component, and the per-world query/system state derived from those.
type World struct {
	mu sync.Mutex

	size     int
	entities *entityAllocator
	masks    *mask.EntityMasks

	stores map[int]*Store // schema.Index -> store

	queries map[string]*queryState // query key -> state

	// systemInstances holds one per-world System per registered systemDef, created
	// lazily on first use so a system's constructor runs exactly once per world,
	// not once per process.
	systemInstances map[*systemDef]System

	frame uint64

	// deltaHasBaseline tracks whether a full binary snapshot has been applied
	// to this world via DeserializeWorld (ModeBinary or ModeBase64) or a
	// mode-0 ApplyDelta, gating acceptance of mode-1 (delta) buffers through
	// ApplyDelta. A ModeJSON DeserializeWorld does not set it.
	deltaHasBaseline bool
}

// NewWorld creates a World at fixed entity capacity size. The first call to
// NewWorld in a process freezes the component schema registry.
func NewWorld(size int) *World {
	globalRegistry.freeze()
	w := &World{
		size:            size,
		entities:        newEntityAllocator(size),
		masks:           mask.NewEntityMasks(size),
		stores:          make(map[int]*Store),
		queries:         make(map[string]*queryState),
		systemInstances: make(map[*systemDef]System),
	}
	for g := uint32(1); g < globalRegistry.generationCount(); g++ {
		w.masks.AddGeneration()
	}
	for _, s := range globalRegistry.all() {
		w.stores[s.Index] = CreateStore(s, size)
	}
	return w
}

// Size returns the world's fixed entity capacity.
func (w *World) Size() int { return w.size }

// grow raises the world's entity capacity to newSize: the entity
// allocator, the mask table, and every store all resize together. No-op
// if newSize does not exceed the current capacity. Called with w.mu held.
func (w *World) grow(newSize int) {
	if newSize <= w.size {
		return
	}
	w.size = newSize
	w.entities.grow(newSize)
	w.masks.Grow(newSize)
	for _, st := range w.stores {
		st.ResizeStore(newSize)
	}
}

// Frame returns the number of completed StepWorld calls.
func (w *World) Frame() uint64 { return w.frame }

// EntityExists reports whether e is currently live.
func (w *World) EntityExists(e Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entities.exists(e)
}

// GetEntityCursor returns the next id AddEntity would hand out absent
// reuse, a diagnostic for tests and tooling.
func (w *World) GetEntityCursor() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entities.entityCursor
}

// AddEntity allocates a new entity with no components set.
func (w *World) AddEntity() (Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entities.add()
}

// RemoveEntity clears e's component membership, resets every store's slot for
// e, retires it from every query it matched (firing Cleanup), and returns its
// id to the allocator. Idempotent: removing an already-absent entity is a no-op
// returning false.
func (w *World) RemoveEntity(e Entity) bool {
	w.mu.Lock()
	if !w.entities.exists(e) {
		w.mu.Unlock()
		return false
	}
	var q cleanupQueue
	for key, qs := range w.queries {
		if qs.primary.Has(uint32(e)) {
			qs.removeEntity(e)
			q.pushAll(systemDefsForKey(key))
		}
	}
	cleanupDefs := q.drain()
	w.masks.ZeroEntity(uint32(e))
	for _, st := range w.stores {
		if !st.IsTag() {
			st.ResetStoreFor(e)
		}
	}
	w.entities.remove(e)
	w.mu.Unlock()

	for _, s := range globalRegistry.all() {
		invalidateProxy(w, s, e)
	}
	w.fireCleanup(cleanupDefs, e)
	return true
}

// storeFor returns e's component store by schema, which must already be
// registered (panics otherwise — a programmer error, not a runtime one:
// the schema was built with NewSchema before NewWorld was ever called).
func (w *World) storeFor(schema *Schema) *Store {
	st, ok := w.stores[schema.Index]
	if !ok {
		panic(errors.Errorf("columnar: component %q was registered after this world's schemas were frozen", schema.Type))
	}
	return st
}

// AddComponent attaches schema to e: resets its slot, applies schema defaults,
// applies overrides (after validation), sets e's membership bit, and fires Init
// on every system whose query newly matches e.
func (w *World) AddComponent(schema *Schema, e Entity, overrides map[string]any) error {
	w.mu.Lock()
	if !w.entities.exists(e) {
		w.mu.Unlock()
		return EntityMissingError{Entity: e}
	}
	if overrides != nil {
		if ok, errs := schema.Validator.Validate(overrides); !ok {
			w.mu.Unlock()
			return ValidationError{Overrides: overrides, Schema: schema, Errors: errs}
		}
	}
	st := w.storeFor(schema)
	if !st.IsTag() {
		st.ResetStoreFor(e)
		st.ApplyDefaults(e)
		if err := applyOverrides(st, e, overrides); err != nil {
			w.mu.Unlock()
			return err
		}
	}
	w.masks.Set(schema.Generation, uint32(e), schema.Bitflag)
	initDefs, cleanupDefs := w.reconcileMembership(e)
	w.mu.Unlock()

	w.fireInit(initDefs, e)
	w.fireCleanup(cleanupDefs, e)
	return nil
}

// RemoveComponent detaches schema from e: fires Cleanup on every system whose
// query stops matching e, clears e's membership bit, and resets its slot back
// to zero.
func (w *World) RemoveComponent(schema *Schema, e Entity) error {
	w.mu.Lock()
	if !w.entities.exists(e) {
		w.mu.Unlock()
		return EntityMissingError{Entity: e}
	}
	w.masks.Clear(schema.Generation, uint32(e), schema.Bitflag)
	_, cleanupDefs := w.reconcileMembership(e)
	st := w.storeFor(schema)
	if !st.IsTag() {
		st.ResetStoreFor(e)
	}
	w.mu.Unlock()

	invalidateProxy(w, schema, e)
	w.fireCleanup(cleanupDefs, e)
	return nil
}

// DisableComponent clears e's membership bit for schema and nothing else: the
// backing data is left in place, queries are not re-evaluated and no Cleanup
// fires, so e stays in any query it already matched until a later
// add/remove re-evaluates it. A later AddComponent resets the slot as usual.
func (w *World) DisableComponent(schema *Schema, e Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.entities.exists(e) {
		return EntityMissingError{Entity: e}
	}
	w.masks.Clear(schema.Generation, uint32(e), schema.Bitflag)
	return nil
}

// HasComponent reports whether e currently carries schema's membership
// bit.
func (w *World) HasComponent(schema *Schema, e Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.masks.Has(schema.Generation, uint32(e), schema.Bitflag)
}

// GetComponentByType returns e's store-level column set for schema's
// type name, used by the proxy accessor and the serializer.
func (w *World) GetComponentByType(typeName string) (*Store, bool) {
	s, ok := globalRegistry.byTypeName(typeName)
	if !ok {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lockedStoreByType(s)
}

// lockedStoreByType is GetComponentByType's body, callable while w.mu is
// already held.
func (w *World) lockedStoreByType(s *Schema) (*Store, bool) {
	st, ok := w.stores[s.Index]
	return st, ok
}

// applyOverrides writes caller-supplied values into e's row, one named
// property at a time, switching on the column's concrete kind to apply a
// loosely-typed override onto a concrete field (numbers for scalars,
// []float64 for subarrays, anything else for faux).
func applyOverrides(st *Store, e Entity, overrides map[string]any) error {
	for name, v := range overrides {
		col, ok := st.ByName(name)
		if !ok {
			continue
		}
		switch c := col.(type) {
		case *ScalarColumn:
			f, ok := toFloat64(v)
			if !ok {
				return UnsupportedTypeTagError{Tag: name}
			}
			c.Set(e, f)
		case *SubarrayColumn:
			vals, ok := v.([]float64)
			if !ok {
				return UnsupportedTypeTagError{Tag: name}
			}
			copy(c.Slice(e), vals)
		case *FauxColumn:
			c.Set(e, v)
		}
	}
	return nil
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// queryState returns q's per-world mutable state, creating and
// registering it on first use. A fresh queryState backfills by scanning
// currently live entities once, then stays populated incrementally as
// AddComponent/RemoveComponent touch entities going forward.
func (w *World) queryState(q *QueryInstance) *queryState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lockedQueryState(q)
}

// lockedQueryState is queryState's body, callable while w.mu is already
// held.
func (w *World) lockedQueryState(q *QueryInstance) *queryState {
	st, ok := w.queries[q.key]
	if ok {
		return st
	}
	st = newQueryState(q, w.size)
	st.generations, st.masks = generationMasksFor(q.componentTypes)
	w.queries[q.key] = st
	// A query created after entities already exist must be backfilled: scan
	// current membership once so get_entities is correct immediately.
	dense := append([]uint32(nil), w.entities.live.Dense()...)
	for _, id := range dense {
		if st.checkEntity(w, Entity(id)) {
			st.addEntity(Entity(id))
		}
	}
	return st
}

// generationMasksFor resolves each component type name to its frozen schema and
// ORs together the bitflags sharing a generation, returning the sorted distinct
// generation list plus the OR'd want-mask per generation.
func generationMasksFor(componentTypes []string) ([]uint32, map[uint32]uint32) {
	masks := make(map[uint32]uint32)
	var gens []uint32
	seen := make(map[uint32]bool)
	for _, name := range componentTypes {
		s, ok := globalRegistry.byTypeName(name)
		if !ok {
			continue
		}
		masks[s.Generation] |= s.Bitflag
		if !seen[s.Generation] {
			seen[s.Generation] = true
			gens = append(gens, s.Generation)
		}
	}
	return gens, masks
}

// commitQuery flushes st's deferred removals under the world lock.
func (w *World) commitQuery(st *queryState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	st.commit()
}

// reconcileMembership re-evaluates every live query against e after a component
// add/remove/disable. Systems whose query newly matches e are returned for
// immediate Init; systems whose query just stopped matching are collected and
// returned in reverse-encounter order for Cleanup, fired only after the full
// scan completes so every query has already been updated. Called with w.mu
// held.
func (w *World) reconcileMembership(e Entity) (initDefs, cleanupDefs []*systemDef) {
	var q cleanupQueue
	for key, qs := range w.queries {
		matches := qs.checkEntity(w, e)
		if matches {
			if qs.addEntity(e) {
				initDefs = append(initDefs, systemDefsForKey(key)...)
			}
			continue
		}
		qs.entered.Remove(uint32(e))
		if qs.removeEntity(e) {
			q.pushAll(systemDefsForKey(key))
		}
	}
	return initDefs, q.drain()
}

func (w *World) fireInit(defs []*systemDef, e Entity) {
	for _, d := range defs {
		sys := w.systemFor(d)
		if init, ok := sys.(Initializer); ok {
			init.Init(w, e)
		}
	}
}

func (w *World) fireCleanup(defs []*systemDef, e Entity) {
	for _, d := range defs {
		sys := w.systemFor(d)
		if c, ok := sys.(Cleaner); ok {
			c.Cleanup(w, e)
		}
	}
}

// systemFor returns (lazily constructing) this world's instance of a
// registered system class.
func (w *World) systemFor(d *systemDef) System {
	w.mu.Lock()
	defer w.mu.Unlock()
	if sys, ok := w.systemInstances[d]; ok {
		return sys
	}
	sys := d.factory()
	w.systemInstances[d] = sys
	return sys
}

// StepWorld advances one frame: runs every non-draw, non-manual system in
// (depth, queryKey) order.
func (w *World) StepWorld() {
	for _, d := range systemRunList() {
		w.runDef(d)
	}
	w.mu.Lock()
	w.frame++
	w.mu.Unlock()
}

// StepWorldDraw runs every draw system in (depth, queryKey) order, without
// advancing the frame counter.
func (w *World) StepWorldDraw() {
	for _, d := range drawSystemRunList() {
		w.runDef(d)
	}
}

// RunSystem runs one manual (depth < 0) system immediately, bypassing the
// automatic schedule.
func (w *World) RunSystem(d *systemDef) {
	w.runDef(d)
}

// ManualSystems returns every registered manual system def, for host code
// that wants to discover and invoke them by name/component key rather
// than holding onto the *systemDef returned from DefineSystem.
func ManualSystems() []*systemDef {
	return systemManualList()
}

// runDef runs one system's scheduled step: the query must have at least one
// current match before either RunAller.RunAll or the default run_all fires,
// so a RunAller override with side effects beyond iterating entities never
// runs against zero matches.
func (w *World) runDef(d *systemDef) {
	sys := w.systemFor(d)
	q := DefineQuery(d.components...)
	entities := q.Entities(w)
	if len(entities) == 0 {
		return
	}
	if r, ok := sys.(RunAller); ok {
		r.RunAll(w)
		return
	}
	runAllDefault(sys, w, q)
}

// Destroy calls Destroy on every system instance this world has created. The
// order of the calls is not defined.
func (w *World) Destroy() {
	w.mu.Lock()
	instances := make([]System, 0, len(w.systemInstances))
	for _, sys := range w.systemInstances {
		instances = append(instances, sys)
	}
	w.mu.Unlock()
	for _, sys := range instances {
		if d, ok := sys.(Destroyer); ok {
			d.Destroy(w)
		}
	}
}
