// Package preload batch-resolves the generic pointers embedded in an
// arbitrary object graph. Callers describe where pointer-typed fields live
// with paths (possibly nested key lists); the engine walks the graph once per
// path element, groups the unresolved pointers it finds by table, fetches
// each table's batch in one query, and splices the concrete records back
// into their original positions.
package preload

import (
	"github.com/latticekit/lattice/internal/pointer"
	"github.com/latticekit/lattice/internal/storage"
)

// Path names where pointer-typed fields sit inside a graph. A nested path
// [key, nestedKey] preloads the pointer at key, then preloads nestedKey
// inside the now-resolved value.
type Path []string

// slot is one addressable pointer position: a getter and the setter used to
// splice the resolved value back in place. Paths reduce to sequences of
// these get/set pairs, which generalizes across records and lists without
// per-shape special cases.
type slot struct {
	get func() interface{}
	set func(interface{})
}

// slotsAt returns the slots for key inside one record, normalizing pointer
// slices to []interface{} so elements can be spliced individually.
func slotsAt(record storage.Record, key string) []slot {
	value, ok := record[key]
	if !ok || value == nil {
		return nil
	}

	if ps, ok := value.([]*pointer.Pointer); ok {
		normalized := make([]interface{}, len(ps))
		for i, p := range ps {
			normalized[i] = p
		}
		record[key] = normalized
		value = normalized
	}

	if list, ok := value.([]interface{}); ok {
		slots := make([]slot, 0, len(list))
		for i := range list {
			i := i
			slots = append(slots, slot{
				get: func() interface{} { return list[i] },
				set: func(v interface{}) { list[i] = v },
			})
		}
		return slots
	}

	return []slot{{
		get: func() interface{} { return record[key] },
		set: func(v interface{}) { record[key] = v },
	}}
}

// rootsOf extracts the records a path applies to. A page wrapper (a record
// holding an edge list under "edges") contributes its edges; the wrapper
// itself is left untouched.
func rootsOf(graph interface{}) []storage.Record {
	switch g := graph.(type) {
	case storage.Record:
		if edges, ok := g["edges"]; ok {
			if roots := listRecords(edges); roots != nil {
				return roots
			}
		}
		return []storage.Record{g}
	case []storage.Record:
		return g
	case []interface{}:
		return listRecords(g)
	default:
		return nil
	}
}

func listRecords(value interface{}) []storage.Record {
	switch list := value.(type) {
	case []storage.Record:
		return list
	case []interface{}:
		var records []storage.Record
		for _, item := range list {
			if record, ok := item.(storage.Record); ok {
				records = append(records, record)
			}
		}
		return records
	default:
		return nil
	}
}
