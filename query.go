// Package columnar provides query mechanisms for component-based entity
// systems, generalized from archetype matching to bitmask/sparse-set matching.
package columnar

import (
	"sort"
	"strings"
	"sync"

	"github.com/silostack/columnar/internal/sparseset"
)

// queryKeyFor returns the canonical `|`-joined, alphabetically sorted key for a
// component type-name set.
func queryKeyFor(componentTypes []string) string {
	sorted := append([]string(nil), componentTypes...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// QueryInstance is the memoized, world-independent definition of a query: the
// set of required component types. define_query([A,B]) and define_query([B,A])
// return the identical instance.
type QueryInstance struct {
	key            string
	componentTypes []string
}

var (
	queryRegistryMu sync.Mutex
	queryRegistry   = make(map[string]*QueryInstance)
)

// DefineQuery returns the memoized QueryInstance for the given component type
// names, creating it on first use.
func DefineQuery(componentTypes ...string) *QueryInstance {
	key := queryKeyFor(componentTypes)
	queryRegistryMu.Lock()
	defer queryRegistryMu.Unlock()
	if q, ok := queryRegistry[key]; ok {
		return q
	}
	q := &QueryInstance{key: key, componentTypes: append([]string(nil), componentTypes...)}
	queryRegistry[key] = q
	return q
}

// Key returns the query's canonical key string.
func (q *QueryInstance) Key() string { return q.key }

// Entities returns the matching entities in w, in ascending eid order, after
// committing any deferred removals.
func (q *QueryInstance) Entities(w *World) []Entity {
	st := w.queryState(q)
	w.commitQuery(st)
	dense := st.primary.Dense()
	out := make([]Entity, len(dense))
	for i, id := range dense {
		out[i] = Entity(id)
	}
	return out
}

// Has reports whether eid currently matches q in w, after committing any
// deferred removals.
func (q *QueryInstance) Has(w *World, eid Entity) bool {
	st := w.queryState(q)
	w.commitQuery(st)
	return st.primary.Has(uint32(eid))
}

// queryState is the per-world, mutable half of a query: its generation masks,
// its primary/entered/toRemove sparse sets, and its dirty flag.
type queryState struct {
	def         *QueryInstance
	generations []uint32
	masks       map[uint32]uint32 // generation -> OR'd bitflag across required components
	primary     *sparseset.Set
	entered     *sparseset.Set
	toRemove    *sparseset.Set
	dirty       bool
}

func newQueryState(def *QueryInstance, size int) *queryState {
	return &queryState{
		def:      def,
		masks:    make(map[uint32]uint32),
		primary:  sparseset.New(size),
		entered:  sparseset.New(size),
		toRemove: sparseset.New(size),
	}
}

// checkEntity reports whether eid satisfies every generation's required mask.
func (qs *queryState) checkEntity(w *World, eid Entity) bool {
	for _, g := range qs.generations {
		want := qs.masks[g]
		if !w.masks.Has(g, uint32(eid), want) {
			return false
		}
	}
	return true
}

// addEntity adds eid to entered+primary and clears any pending removal,
// returning whether it was newly added.
func (qs *queryState) addEntity(eid Entity) bool {
	qs.toRemove.Remove(uint32(eid))
	qs.entered.Add(uint32(eid))
	return qs.primary.Add(uint32(eid))
}

// removeEntity queues eid for deferred removal if it is a member and not
// already queued, marking the query dirty.
func (qs *queryState) removeEntity(eid Entity) bool {
	if !qs.primary.Has(uint32(eid)) {
		return false
	}
	if qs.toRemove.Has(uint32(eid)) {
		return false
	}
	qs.toRemove.Add(uint32(eid))
	qs.dirty = true
	return true
}

// commit drains toRemove in reverse insertion order, removing from both
// toRemove and primary, then re-sorts primary by ascending eid so every
// post-commit read of the query (Entities, Cursor, the JSON serializer's
// Primary dense dump) observes a stable, swap-pop-independent order. The
// sort runs on every call, not just when dirty: Add appends new members at
// the end of the dense slice regardless of removal activity, and since
// primary is already sorted from the previous commit, insertionSort only
// has to walk the freshly-appended tail into place.
func (qs *queryState) commit() {
	if qs.dirty {
		dense := qs.toRemove.Dense()
		for i := len(dense) - 1; i >= 0; i-- {
			id := dense[i]
			qs.primary.Remove(id)
			qs.toRemove.Remove(id)
		}
		qs.dirty = false
	}
	qs.primary.Sort(func(a, b uint32) bool { return a < b })
}
