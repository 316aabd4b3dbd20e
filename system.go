package columnar

import (
	"sync"

	"github.com/google/btree"
)

// System is the minimal contract every registered system satisfies: a
// scheduling depth. Everything else — Init/Cleanup/Run/Destroy/RunAll — is
// optional and detected via the marker interfaces below.
type System interface {
	Depth() int
}

// Initializer systems are notified when an entity starts matching their query.
type Initializer interface {
	Init(w *World, eid Entity)
}

// Cleaner systems are notified when an entity stops matching their query.
type Cleaner interface {
	Cleanup(w *World, eid Entity)
}

// Runner systems process one matched entity per step.
type Runner interface {
	Run(w *World, eid Entity)
}

// Destroyer systems release resources when their world is torn down.
type Destroyer interface {
	Destroy(w *World)
}

// RunAller lets a system override the default run_all behavior (fetch
// entities, call Run on each) with custom batch logic.
type RunAller interface {
	RunAll(w *World)
}

// drawMarker is satisfied by DrawBase; a system is a draw system iff its
// struct embeds DrawBase, capturing draw-ness at registration time rather
// than by inspecting behavior.
type drawMarker interface {
	isDrawSystem()
}

// Base gives a system its scheduling depth. Embed it (or DrawBase) in
// every System implementation.
type Base struct {
	depth int
}

// NewBase returns a Base fixed at depth. Negative depths are manual systems,
// excluded from StepWorld/StepWorldDraw.
func NewBase(depth int) Base { return Base{depth: depth} }

func (b Base) Depth() int { return b.depth }

// DrawBase is Base plus the draw marker; embed it instead of Base for a
// draw system.
type DrawBase struct {
	Base
}

func (DrawBase) isDrawSystem() {}

// SystemFactory constructs one per-world instance of a registered
// system.
type SystemFactory func() System

// systemDef is a registered system class: its required components (the
// same key format as a query), depth, draw-ness, and constructor.
type systemDef struct {
	key        string
	components []string
	depth      int
	draw       bool
	manual     bool
	factory    SystemFactory
}

func (d *systemDef) less(o *systemDef) bool {
	if d.depth != o.depth {
		return d.depth < o.depth
	}
	return d.key < o.key
}

var (
	systemRegistryMu sync.Mutex
	systemTree       = btree.NewG(32, func(a, b *systemDef) bool { return a.less(b) })
	systemsByKey     = make(map[string][]*systemDef)
	runListsDirty    = true
	cachedRunList    []*systemDef
	cachedDrawList   []*systemDef
	cachedManualList []*systemDef
)

// DefineSystem registers a system class against the sorted component-name key
// derived from components. It re-sorts the global run lists by (depth,
// queryKey) and partitions them into auto-run / draw / manual.
func DefineSystem(components []string, factory SystemFactory) *systemDef {
	// factory() is called once here purely to introspect Depth/drawMarker; this
	// instance is discarded, each world builds its own via systemFor.
	probe := factory()
	draw := false
	if _, ok := probe.(drawMarker); ok {
		draw = true
	}
	depth := probe.Depth()

	key := queryKeyFor(components)
	def := &systemDef{
		key:        key,
		components: append([]string(nil), components...),
		depth:      depth,
		draw:       draw,
		manual:     depth < 0,
		factory:    factory,
	}

	systemRegistryMu.Lock()
	defer systemRegistryMu.Unlock()
	systemTree.ReplaceOrInsert(def)
	systemsByKey[key] = append(systemsByKey[key], def)
	runListsDirty = true
	return def
}

// rebuildRunLists walks the global btree ascending by (depth, queryKey) and
// partitions into systemRunList / drawSystemRunList / systemManualList.
func rebuildRunLists() {
	if !runListsDirty {
		return
	}
	cachedRunList = cachedRunList[:0]
	cachedDrawList = cachedDrawList[:0]
	cachedManualList = cachedManualList[:0]
	systemTree.Ascend(func(d *systemDef) bool {
		switch {
		case d.manual:
			cachedManualList = append(cachedManualList, d)
		case d.draw:
			cachedDrawList = append(cachedDrawList, d)
		default:
			cachedRunList = append(cachedRunList, d)
		}
		return true
	})
	runListsDirty = false
}

func systemRunList() []*systemDef {
	systemRegistryMu.Lock()
	defer systemRegistryMu.Unlock()
	rebuildRunLists()
	return cachedRunList
}

func drawSystemRunList() []*systemDef {
	systemRegistryMu.Lock()
	defer systemRegistryMu.Unlock()
	rebuildRunLists()
	return cachedDrawList
}

func systemManualList() []*systemDef {
	systemRegistryMu.Lock()
	defer systemRegistryMu.Unlock()
	rebuildRunLists()
	return cachedManualList
}

func systemDefsForKey(key string) []*systemDef {
	systemRegistryMu.Lock()
	defer systemRegistryMu.Unlock()
	return append([]*systemDef(nil), systemsByKey[key]...)
}

// runAllDefault is the default run_all behavior: fetch the system's matching
// entity list (forcing commit_removals) and call Run on each, in the query's
// dense-set order.
func runAllDefault(sys System, w *World, q *QueryInstance) {
	r, ok := sys.(Runner)
	if !ok {
		return
	}
	for _, eid := range q.Entities(w) {
		r.Run(w, eid)
	}
}
