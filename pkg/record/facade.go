package record

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/basalt-run/almanac/pkg/errs"
	"github.com/basalt-run/almanac/pkg/metrics"
	"github.com/basalt-run/almanac/pkg/mst"
	"github.com/basalt-run/almanac/pkg/store"
)

// Index is the secondary-index contract the façade drives: a live
// update/delete call after every successful save/delete, plus a batched
// transactional replay on abandon and pull. pkg/index.SQLiteIndex
// satisfies it; defining the interface here (rather than in pkg/index)
// lets pkg/index depend on this package for the Key/Value vocabulary
// without a import cycle back the other way.
type Index interface {
	UpdateIndex(ctx context.Context, key Key, value Value) error
	DeleteIndex(ctx context.Context, key Key) error
	Replay(ctx context.Context, diffs []Diff) error
}

// Facade is the typed record layer over a *store.Store: it translates
// Key/Value pairs to and from the store's raw byte keys/values, and
// keeps an attached Index in sync. Grounded on original_source's
// RecordRepo/RecordRepoRef pair.
type Facade struct {
	store *store.Store
	index Index
}

// New wraps s in a Facade. idx may be nil, in which case save/delete
// skip the live index hooks and abandon/pull replay is a no-op — useful
// for tests and for callers that don't need query-by-index support.
func New(s *store.Store, idx Index) *Facade {
	return &Facade{store: s, index: idx}
}

// Save encodes value with the fixed compact binary codec, writes it to
// the working tree, then updates the secondary index.
func (f *Facade) Save(ctx context.Context, key Key, value Value) error {
	raw, err := Encode(value)
	if err != nil {
		return err
	}
	if err := f.store.Write(ctx, []byte(key.Path()), raw); err != nil {
		return err
	}
	if f.index == nil {
		return nil
	}
	return f.index.UpdateIndex(ctx, key, value)
}

// Load reads and decodes the value at key from the working tree.
func (f *Facade) Load(ctx context.Context, key Key) (Value, bool, error) {
	raw, ok, err := f.store.Get(ctx, []byte(key.Path()))
	if err != nil || !ok {
		return nil, ok, err
	}
	value, err := Decode(key.Field, raw)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Delete removes key from the working tree, then updates the secondary
// index.
func (f *Facade) Delete(ctx context.Context, key Key) error {
	if err := f.store.Remove(ctx, []byte(key.Path())); err != nil {
		return err
	}
	if f.index == nil {
		return nil
	}
	return f.index.DeleteIndex(ctx, key)
}

// Get parses path, loads the value, and returns it alongside whether it
// was present. An unrecognized path shape fails with ErrUnknownRecordType.
func (f *Facade) Get(ctx context.Context, path string) (Value, bool, error) {
	key, err := ParseKey(path)
	if err != nil {
		return nil, false, err
	}
	return f.Load(ctx, key)
}

// SaveFromJSON classifies path's shape, decodes json into the
// corresponding Value, and saves it. Used by the CLI's `set` command.
func (f *Facade) SaveFromJSON(ctx context.Context, path string, rawJSON []byte) error {
	key, err := ParseKey(path)
	if err != nil {
		return err
	}
	value, err := valueFromJSON(key.Field, rawJSON)
	if err != nil {
		return err
	}
	return f.Save(ctx, key, value)
}

// DeletePath classifies path's shape and deletes the addressed key.
// Used by the CLI's `delete` command.
func (f *Facade) DeletePath(ctx context.Context, path string) error {
	key, err := ParseKey(path)
	if err != nil {
		return err
	}
	return f.Delete(ctx, key)
}

func valueFromJSON(field Field, rawJSON []byte) (Value, error) {
	switch field {
	case FieldName:
		var s string
		if err := json.Unmarshal(rawJSON, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidPath, err)
		}
		return NameValue(s), nil
	case FieldPhoto:
		var p struct {
			URL         string `json:"url"`
			Attribution string `json:"attribution,omitempty"`
		}
		if err := json.Unmarshal(rawJSON, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidPath, err)
		}
		return PhotoValue{URL: p.URL, Attribution: p.Attribution}, nil
	case FieldContact:
		var s string
		if err := json.Unmarshal(rawJSON, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidPath, err)
		}
		return ContactValue(s), nil
	case FieldSupervisor:
		var s string
		if err := json.Unmarshal(rawJSON, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidPath, err)
		}
		return SupervisorValue(s), nil
	case FieldTenure:
		var s *string
		if err := json.Unmarshal(rawJSON, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidPath, err)
		}
		if s == nil {
			return TenureValue{}, nil
		}
		t, err := time.Parse(tenureDateLayout, *s)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid tenure end date %q", errs.ErrInvalidPath, *s)
		}
		return TenureValue{EndDate: &t}, nil
	default:
		return nil, fmt.Errorf("%w: field %v", errs.ErrUnknownRecordType, field)
	}
}

// Scan walks the working tree under prefix, re-parsing each
// raw key/value pair into a typed (Key, Value).
func (f *Facade) Scan(ctx context.Context, prefix string) iter.Seq2[KeyValue, error] {
	return func(yield func(KeyValue, error) bool) {
		for kv, err := range f.store.IterPrefix(ctx, []byte(prefix)) {
			if err != nil {
				yield(KeyValue{}, err)
				return
			}
			key, err := ParseKey(string(kv.Key))
			if err != nil {
				if !yield(KeyValue{}, err) {
					return
				}
				continue
			}
			value, err := Decode(key.Field, kv.Value)
			if err != nil {
				if !yield(KeyValue{}, err) {
					return
				}
				continue
			}
			if !yield(KeyValue{Key: key, Value: value}, nil) {
				return
			}
		}
	}
}

// KeyValue is one parsed (Key, Value) pair yielded by Scan.
type KeyValue struct {
	Key   Key
	Value Value
}

// List is Scan's CLI-facing twin: it returns the raw path string instead
// of a parsed Key, for callers that only want to print it.
func (f *Facade) List(ctx context.Context, prefix string) iter.Seq2[PathValue, error] {
	return func(yield func(PathValue, error) bool) {
		for kv, err := range f.store.IterPrefix(ctx, []byte(prefix)) {
			if err != nil {
				yield(PathValue{}, err)
				return
			}
			path := string(kv.Key)
			field, ferr := classifyPath(path)
			if ferr != nil {
				if !yield(PathValue{}, ferr) {
					return
				}
				continue
			}
			value, err := Decode(field, kv.Value)
			if err != nil {
				if !yield(PathValue{}, err) {
					return
				}
				continue
			}
			if !yield(PathValue{Path: path, Value: value}, nil) {
				return
			}
		}
	}
}

// PathValue is one (raw path, parsed value) pair yielded by List.
type PathValue struct {
	Path  string
	Value Value
}

// Init, Commit, Working, Committed, GC, and Snapshot pass straight
// through to the underlying Store; they carry no record-level semantics
// of their own.

func (f *Facade) Init(ctx context.Context) error   { return f.store.Init(ctx) }
func (f *Facade) Commit(ctx context.Context) error { return f.store.Commit(ctx) }
func (f *Facade) GC(ctx context.Context) (int, error) { return f.store.GC(ctx) }

func (f *Facade) Working(ctx context.Context) (mst.Hash, error) {
	return f.store.Working(ctx)
}

func (f *Facade) Committed(ctx context.Context) (mst.Hash, error) {
	return f.store.Committed(ctx)
}

func (f *Facade) Snapshot(ctx context.Context) (store.Stats, error) {
	return f.store.Snapshot(ctx)
}

// Abandon resets working back to committed, then replays the inverse
// diff into the secondary index in the order SPEC_FULL.md §4.5.1
// requires: name additions/changes, other additions/changes, other
// removals, name removals.
func (f *Facade) Abandon(ctx context.Context) error {
	oldWorking, err := f.store.Abandon(ctx)
	if err != nil {
		return err
	}
	newWorking, err := f.store.Working(ctx)
	if err != nil {
		return err
	}
	return f.replayDiff(ctx, oldWorking, newWorking)
}

// ReplayPullDiff replays the diff between a pull's pre- and post-pull
// working roots into the secondary index, in the same order Abandon
// uses. Called by the CLI's pull command after the sync client has
// advanced working to the remote's committed root.
func (f *Facade) ReplayPullDiff(ctx context.Context, oldWorking, newWorking mst.Hash) error {
	return f.replayDiff(ctx, oldWorking, newWorking)
}

func (f *Facade) replayDiff(ctx context.Context, from, to mst.Hash) error {
	if f.index == nil {
		return nil
	}

	var diffs []Diff
	for entry, err := range f.store.Diff(ctx, from, to) {
		if err != nil {
			return err
		}
		d, err := parseDiffEntry(entry)
		if err != nil {
			return err
		}
		diffs = append(diffs, d)
	}
	if len(diffs) == 0 {
		return nil
	}

	sortForReplay(diffs)

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.IndexReplayDuration)
	return f.index.Replay(ctx, diffs)
}

func parseDiffEntry(entry mst.DiffEntry) (Diff, error) {
	key, err := ParseKey(string(entry.Key))
	if err != nil {
		return Diff{}, err
	}

	switch entry.Op {
	case mst.DiffAdded:
		newValue, err := Decode(key.Field, entry.NewValue)
		if err != nil {
			return Diff{}, err
		}
		return Diff{Op: DiffAdded, Key: key, NewValue: newValue}, nil
	case mst.DiffChanged:
		oldValue, err := Decode(key.Field, entry.OldValue)
		if err != nil {
			return Diff{}, err
		}
		newValue, err := Decode(key.Field, entry.NewValue)
		if err != nil {
			return Diff{}, err
		}
		return Diff{Op: DiffChanged, Key: key, OldValue: oldValue, NewValue: newValue}, nil
	case mst.DiffRemoved:
		oldValue, err := Decode(key.Field, entry.OldValue)
		if err != nil {
			return Diff{}, err
		}
		return Diff{Op: DiffRemoved, Key: key, OldValue: oldValue}, nil
	default:
		return Diff{}, fmt.Errorf("%w: unknown diff op %v", errs.ErrCodec, entry.Op)
	}
}
