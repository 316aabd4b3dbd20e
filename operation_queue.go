package columnar

// cleanupQueue accumulates systems encountered while scanning queries during
// remove_entity/remove_component/add_component, then yields them in
// reverse-encounter order: cleanup systems buffer while the transition scan
// is in progress and fire only once the scan completes, last-encountered
// first.
type cleanupQueue struct {
	defs []*systemDef
}

// push records a system encountered during the scan.
func (q *cleanupQueue) push(d *systemDef) {
	q.defs = append(q.defs, d)
}

// pushAll records every system bound to a query key in one call.
func (q *cleanupQueue) pushAll(defs []*systemDef) {
	q.defs = append(q.defs, defs...)
}

// drain returns the accumulated systems in reverse-encounter order,
// leaving the queue empty.
func (q *cleanupQueue) drain() []*systemDef {
	n := len(q.defs)
	out := make([]*systemDef, n)
	for i, d := range q.defs {
		out[n-1-i] = d
	}
	q.defs = q.defs[:0]
	return out
}
