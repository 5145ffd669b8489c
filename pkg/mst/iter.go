package mst

import (
	"bytes"
	"context"
	"iter"
)

// KV is a single (key, value) pair yielded by IterPrefix.
type KV struct {
	Key   []byte
	Value []byte
}

// IterPrefix returns a fresh, lazy, in-order sequence of every (key,
// value) pair reachable from root whose key starts with prefix. A nil or
// empty prefix matches every key. Each range over the returned sequence
// re-walks the tree from scratch; nothing is cached between calls.
func IterPrefix(ctx context.Context, store Store, root Hash, prefix []byte) iter.Seq2[KV, error] {
	return func(yield func(KV, error) bool) {
		node, err := store.ReadNode(ctx, root)
		if err != nil {
			yield(KV{}, err)
			return
		}
		upperBound, hasUpperBound := prefixUpperBound(prefix)
		walkPrefix(ctx, store, node, prefix, upperBound, hasUpperBound, yield)
	}
}

// walkPrefix performs the in-order walk, returning false once the caller
// has asked to stop (via yield) or the walk has provably passed the last
// possible match for prefix.
func walkPrefix(ctx context.Context, store Store, node *Node, prefix, upperBound []byte, hasUpperBound bool, yield func(KV, error) bool) bool {
	if node.Left != nil {
		// Left holds only keys below items[0].Key; skip it entirely when
		// that bound already falls at or below prefix; otherwise it may
		// overlap [prefix, upperBound) and must be walked.
		descend := len(node.Items) == 0 || bytes.Compare(node.Items[0].Key, prefix) > 0
		if descend {
			child, err := store.ReadNode(ctx, *node.Left)
			if err != nil {
				yield(KV{}, err)
				return false
			}
			if !walkPrefix(ctx, store, child, prefix, upperBound, hasUpperBound, yield) {
				return false
			}
		}
	}

	for i := range node.Items {
		it := &node.Items[i]
		if hasUpperBound && bytes.Compare(it.Key, upperBound) >= 0 {
			return false
		}
		if bytes.Compare(it.Key, prefix) >= 0 {
			if !yield(KV{Key: it.Key, Value: it.Value}, nil) {
				return false
			}
		}
		if it.Right != nil {
			child, err := store.ReadNode(ctx, *it.Right)
			if err != nil {
				yield(KV{}, err)
				return false
			}
			if !walkPrefix(ctx, store, child, prefix, upperBound, hasUpperBound, yield) {
				return false
			}
		}
	}
	return true
}

// prefixUpperBound returns the exclusive upper bound of the lexicographic
// range of byte strings starting with prefix: prefix with its last
// non-0xFF byte incremented and everything after it dropped. ok is false
// when prefix has no upper bound (empty, or all 0xFF bytes), meaning every
// key greater than or equal to prefix matches.
func prefixUpperBound(prefix []byte) (bound []byte, ok bool) {
	if len(prefix) == 0 {
		return nil, false
	}
	ub := make([]byte, len(prefix))
	copy(ub, prefix)
	for i := len(ub) - 1; i >= 0; i-- {
		if ub[i] != 0xFF {
			ub[i]++
			return ub[:i+1], true
		}
	}
	return nil, false
}
