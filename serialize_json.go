package columnar

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/silostack/columnar/internal/mask"
	"github.com/silostack/columnar/internal/sparseset"
)

// jsonQuery mirrors one entry of queryMap: §4.6.4 lists primary/toRemove/
// entered as plain id lists rather than the binary format's dense+sparse
// pair, since JSON is a human-legible mirror, not a byte-for-byte replica.
type jsonQuery struct {
	Primary     []uint32          `json:"primary"`
	ToRemove    []uint32          `json:"toRemove"`
	Entered     []uint32          `json:"entered"`
	Masks       map[string]uint32 `json:"masks"`
	Generations []uint32          `json:"generations"`
}

type jsonComponentEntry struct {
	GenerationID uint32 `json:"generationId"`
	Bitflag      uint32 `json:"bitflag"`
}

type jsonEntity struct {
	EntityID   uint32                     `json:"entityId"`
	Components map[string]map[string]any `json:"components"`
}

type jsonWorld struct {
	EntitySparseSet struct {
		Dense  []uint32 `json:"dense"`
		Sparse []int32  `json:"sparse"`
	} `json:"entitySparseSet"`
	Removed      []uint32             `json:"removed"`
	ComponentMap []any                `json:"componentMap"`
	QueryMap     map[string]jsonQuery `json:"queryMap"`
	DirtyQueries []string             `json:"dirtyQueries"`
	Entities     []jsonEntity         `json:"entities"`
}

func serializeWorldJSON(w *World) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out jsonWorld
	dense, sparse := w.entities.live.Raw()
	out.EntitySparseSet.Dense = append([]uint32(nil), dense...)
	out.EntitySparseSet.Sparse = append([]int32(nil), sparse...)
	for _, e := range w.entities.removed {
		out.Removed = append(out.Removed, uint32(e))
	}
	for _, s := range globalRegistry.all() {
		out.ComponentMap = append(out.ComponentMap, []any{s.Type, jsonComponentEntry{GenerationID: s.Generation, Bitflag: s.Bitflag}})
	}

	out.QueryMap = make(map[string]jsonQuery, len(w.queries))
	for key, qs := range w.queries {
		masks := make(map[string]uint32, len(qs.masks))
		for g, m := range qs.masks {
			masks[strconv.FormatUint(uint64(g), 10)] = m
		}
		out.QueryMap[key] = jsonQuery{
			Primary:     append([]uint32(nil), qs.primary.Dense()...),
			ToRemove:    append([]uint32(nil), qs.toRemove.Dense()...),
			Entered:     append([]uint32(nil), qs.entered.Dense()...),
			Masks:       masks,
			Generations: append([]uint32(nil), qs.generations...),
		}
		if qs.dirty {
			out.DirtyQueries = append(out.DirtyQueries, key)
		}
	}

	for _, idRaw := range dense {
		eid := Entity(idRaw)
		components := make(map[string]map[string]any)
		for _, s := range globalRegistry.all() {
			if !w.masks.Has(s.Generation, idRaw, s.Bitflag) {
				continue
			}
			st := w.stores[s.Index]
			components[s.Type] = serializeComponent(st, eid)
		}
		out.Entities = append(out.Entities, jsonEntity{EntityID: idRaw, Components: components})
	}
	return json.Marshal(out)
}

// serializeComponent builds the JSON object form of one component's
// properties for eid, skipping the reserved keys §4.6.4 calls out
// (leading underscore, or exactly id/store/type).
func serializeComponent(st *Store, eid Entity) map[string]any {
	out := make(map[string]any)
	if st.IsTag() {
		return out
	}
	for _, col := range st.Leaves() {
		name := col.Name()
		if name == "id" || name == "store" || name == "type" || strings.HasPrefix(name, "_") {
			continue
		}
		switch c := col.(type) {
		case *ScalarColumn:
			out[name] = c.Get(eid)
		case *SubarrayColumn:
			out[name] = append([]float64(nil), c.Slice(eid)...)
		case *FauxColumn:
			if v, ok := c.Get(eid); ok {
				out[name] = v
			}
		}
	}
	return out
}

func deserializeWorldJSON(payload []byte, w *World) error {
	var in jsonWorld
	if err := json.Unmarshal(payload, &in); err != nil {
		return errors.WithStack(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.masks = mask.NewEntityMasks(w.size)
	for g := uint32(1); g < globalRegistry.generationCount(); g++ {
		w.masks.AddGeneration()
	}
	for _, st := range w.stores {
		if !st.IsTag() {
			st.ResetStore()
		}
	}

	w.entities.live = setFromDense(in.EntitySparseSet.Dense, w.size)
	removed := make([]Entity, len(in.Removed))
	for i, v := range in.Removed {
		removed[i] = Entity(v)
	}
	w.entities.removed = removed
	var maxID uint32
	for _, id := range in.EntitySparseSet.Dense {
		if id+1 > maxID {
			maxID = id + 1
		}
	}
	for _, id := range in.Removed {
		if id+1 > maxID {
			maxID = id + 1
		}
	}
	if maxID > w.entities.entityCursor {
		w.entities.entityCursor = maxID
	}

	dirty := make(map[string]bool, len(in.DirtyQueries))
	for _, k := range in.DirtyQueries {
		dirty[k] = true
	}
	for key, jq := range in.QueryMap {
		qs, ok := w.queries[key]
		if !ok {
			q := DefineQuery(strings.Split(key, "|")...)
			qs = newQueryState(q, w.size)
			w.queries[key] = qs
		}
		qs.primary = setFromDense(jq.Primary, w.size)
		qs.toRemove = setFromDense(jq.ToRemove, w.size)
		qs.entered = setFromDense(jq.Entered, w.size)
		qs.masks = make(map[uint32]uint32, len(jq.Masks))
		for gs, m := range jq.Masks {
			g, err := strconv.ParseUint(gs, 10, 32)
			if err != nil {
				return errors.WithStack(err)
			}
			qs.masks[uint32(g)] = m
		}
		qs.generations = append([]uint32(nil), jq.Generations...)
		qs.dirty = dirty[key]
	}

	for _, je := range in.Entities {
		eid := Entity(je.EntityID)
		for compType, props := range je.Components {
			s, ok := globalRegistry.byTypeName(compType)
			if !ok {
				continue
			}
			w.masks.Set(s.Generation, je.EntityID, s.Bitflag)
			st, ok := w.lockedStoreByType(s)
			if !ok || st.IsTag() {
				continue
			}
			for name, v := range props {
				col, ok := st.ByName(name)
				if !ok {
					continue
				}
				switch c := col.(type) {
				case *ScalarColumn:
					f, _ := toFloat64(v)
					c.Set(eid, f)
				case *SubarrayColumn:
					copy(c.Slice(eid), toFloatSlice(v))
				case *FauxColumn:
					c.Set(eid, v)
				}
			}
		}
	}
	return nil
}

func setFromDense(dense []uint32, capacity int) *sparseset.Set {
	s := sparseset.New(capacity)
	for _, id := range dense {
		s.Add(id)
	}
	return s
}

func toFloatSlice(v any) []float64 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, len(arr))
	for i, x := range arr {
		out[i], _ = toFloat64(x)
	}
	return out
}
