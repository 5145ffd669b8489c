package mst

import (
	"bytes"
	"context"
	"iter"
)

// DiffOp classifies one DiffEntry.
type DiffOp int

const (
	// DiffAdded marks a key present only on the new side.
	DiffAdded DiffOp = iota
	// DiffChanged marks a key present on both sides with different
	// values.
	DiffChanged
	// DiffRemoved marks a key present only on the old side.
	DiffRemoved
)

// DiffEntry is one emitted change between two tree roots.
type DiffEntry struct {
	Op       DiffOp
	Key      []byte
	OldValue []byte
	NewValue []byte
}

// Diff returns a fresh, lazy, key-ordered sequence of the changes between
// oldRoot and newRoot: exactly one entry per key whose value differs or
// whose presence differs between the two trees. Whenever a subtree hash is
// identical on both sides, that subtree is never read — this pruning is
// the performance-critical property verified by SPEC_FULL.md §8 property
// 4.
func Diff(ctx context.Context, store Store, oldRoot, newRoot Hash) iter.Seq2[DiffEntry, error] {
	return func(yield func(DiffEntry, error) bool) {
		if oldRoot == newRoot {
			return
		}
		oldNode, err := store.ReadNode(ctx, oldRoot)
		if err != nil {
			yield(DiffEntry{}, err)
			return
		}
		newNode, err := store.ReadNode(ctx, newRoot)
		if err != nil {
			yield(DiffEntry{}, err)
			return
		}
		diffNodes(ctx, store, oldNode, newNode, yield)
	}
}

// diffNodes merge-walks two (possibly nil, meaning empty) node's item
// lists in lockstep, recursing into the child between each pair of
// positions exactly once the shared or one-sided key at that position has
// been decided. Returns false once yield has asked to stop.
func diffNodes(ctx context.Context, store Store, old, new *Node, yield func(DiffEntry, error) bool) bool {
	oi, ni := 0, 0
	oldChildDone, newChildDone := false, false

	for {
		oldItem := itemAt(old, oi)
		newItem := itemAt(new, ni)

		if oldItem == nil && newItem == nil {
			oldTrail := preChildHash(old, oi)
			newTrail := preChildHash(new, ni)
			if hashPtrEqual(oldTrail, newTrail) {
				return true
			}
			oldChild, err := readChild(ctx, store, oldTrail)
			if err != nil {
				return !yield(DiffEntry{}, err)
			}
			newChild, err := readChild(ctx, store, newTrail)
			if err != nil {
				return !yield(DiffEntry{}, err)
			}
			return diffNodes(ctx, store, oldChild, newChild, yield)
		}

		var cmp int
		switch {
		case oldItem == nil:
			cmp = 1
		case newItem == nil:
			cmp = -1
		default:
			cmp = bytes.Compare(oldItem.Key, newItem.Key)
		}

		switch {
		case cmp == 0:
			if !oldChildDone {
				oldChildDone, newChildDone = true, true
				oldPre := preChildHash(old, oi)
				newPre := preChildHash(new, ni)
				if !hashPtrEqual(oldPre, newPre) {
					oldChild, err := readChild(ctx, store, oldPre)
					if err != nil {
						return !yield(DiffEntry{}, err)
					}
					newChild, err := readChild(ctx, store, newPre)
					if err != nil {
						return !yield(DiffEntry{}, err)
					}
					if !diffNodes(ctx, store, oldChild, newChild, yield) {
						return false
					}
				}
				continue
			}
			if !bytes.Equal(oldItem.Value, newItem.Value) {
				entry := DiffEntry{Op: DiffChanged, Key: oldItem.Key, OldValue: oldItem.Value, NewValue: newItem.Value}
				if !yield(entry, nil) {
					return false
				}
			}
			oi++
			ni++
			oldChildDone, newChildDone = false, false

		case cmp < 0: // key only on the old side (so far)
			if !oldChildDone {
				oldChildDone = true
				oldPre := preChildHash(old, oi)
				if oldPre != nil {
					oldChild, err := readChild(ctx, store, oldPre)
					if err != nil {
						return !yield(DiffEntry{}, err)
					}
					if !diffNodes(ctx, store, oldChild, nil, yield) {
						return false
					}
				}
				continue
			}
			if !yield(DiffEntry{Op: DiffRemoved, Key: oldItem.Key, OldValue: oldItem.Value}, nil) {
				return false
			}
			oi++
			oldChildDone = false

		default: // cmp > 0: key only on the new side (so far)
			if !newChildDone {
				newChildDone = true
				newPre := preChildHash(new, ni)
				if newPre != nil {
					newChild, err := readChild(ctx, store, newPre)
					if err != nil {
						return !yield(DiffEntry{}, err)
					}
					if !diffNodes(ctx, store, nil, newChild, yield) {
						return false
					}
				}
				continue
			}
			if !yield(DiffEntry{Op: DiffAdded, Key: newItem.Key, NewValue: newItem.Value}, nil) {
				return false
			}
			ni++
			newChildDone = false
		}
	}
}

func readChild(ctx context.Context, store Store, h *Hash) (*Node, error) {
	if h == nil {
		return nil, nil
	}
	return store.ReadNode(ctx, *h)
}
