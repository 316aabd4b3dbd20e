package columnar

// Cursor walks a query's matched entities in ascending eid order: "iterate
// one sparse set's dense array" rather than scanning per-archetype tables,
// since membership here already lives in a single flat set.
type Cursor struct {
	world   *World
	query   *QueryInstance
	entries []Entity
	index   int
}

// NewCursor returns a Cursor over q's current matches in w, committing any
// deferred removals first so the dense array it copies is settled.
func NewCursor(w *World, q *QueryInstance) *Cursor {
	return &Cursor{
		world:   w,
		query:   q,
		entries: q.Entities(w),
		index:   -1,
	}
}

// Next advances the cursor and reports whether an entity is available.
func (c *Cursor) Next() bool {
	c.index++
	return c.index < len(c.entries)
}

// Entity returns the entity at the cursor's current position. Valid only
// after a Next call that returned true.
func (c *Cursor) Entity() Entity {
	return c.entries[c.index]
}

// Reset rewinds the cursor to before the first entity, re-snapshotting
// the query's current matches.
func (c *Cursor) Reset() {
	c.entries = c.query.Entities(c.world)
	c.index = -1
}

// Len returns how many entities this cursor's snapshot matched.
func (c *Cursor) Len() int {
	return len(c.entries)
}
