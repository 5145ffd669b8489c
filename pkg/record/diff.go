package record

import "sort"

// DiffOp classifies one RecordDiff, mirroring mst.DiffOp at the typed
// layer.
type DiffOp int

const (
	DiffAdded DiffOp = iota
	DiffChanged
	DiffRemoved
)

// Diff is one typed change between two refs, produced by re-parsing an
// mst.DiffEntry's raw key/values through ParseKey/Decode.
type Diff struct {
	Op       DiffOp
	Key      Key
	OldValue Value
	NewValue Value
}

// replayRank orders diffs for the secondary index's transactional
// replay on abandon/pull: name additions and changes first (so an
// entity row exists before dependent rows reference it), then other
// additions/changes, then other removals, then name removals last (so
// dependent rows are gone before the entity row itself disappears). See
// SPEC_FULL.md §4.5.1.
func replayRank(d Diff) int {
	isName := d.Key.Field == FieldName
	switch d.Op {
	case DiffAdded, DiffChanged:
		if isName {
			return 0
		}
		return 1
	case DiffRemoved:
		if isName {
			return 3
		}
		return 2
	default:
		return 1
	}
}

// sortForReplay orders diffs in place by replayRank, preserving relative
// order within each rank, matching original_source's Vec::sort_by_key.
func sortForReplay(diffs []Diff) {
	sort.SliceStable(diffs, func(i, j int) bool {
		return replayRank(diffs[i]) < replayRank(diffs[j])
	})
}
