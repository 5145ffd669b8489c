/*
Package mst implements a content-addressed, copy-on-write Merkle Search
Tree: an ordered map from byte keys to byte values whose shape is a pure
function of the key set, independent of the order keys were inserted in.

# Shape

Every node holds a strictly ordered, key-unique list of Items that all
share one level, plus the hash of the subtree holding keys below the first
item. Each item also carries the hash of the subtree holding keys between
it and its successor:

	┌────────────────────── NODE (level 2) ───────────────────────┐
	│  left ──▶ (keys < "b")                                       │
	│  item "b" = v1   right ──▶ (keys in ("b", "m"))              │
	│  item "m" = v2   right ──▶ (keys in ("m", +inf))              │
	└────────────────────────────────────────────────────────────┘

A key's level is computed once, deterministically, from its bytes (see
Level); a node's level is simply the level shared by everything it holds.
Inserting a key whose level is higher than the node currently being
visited promotes it above that node by splitting the node's whole subtree
around the key (splitNode); a lower level recurses into the existing child
at that position; an equal level inserts directly, splitting only the one
child subtree that straddles the new key. Because placement depends only
on level(key) and key order, never on history, two trees holding the same
key set always have the same shape and therefore the same root hash
(SPEC_FULL.md §8, property 1).

# What lives here, what doesn't

This package is pure: no I/O, no locking, no knowledge of refs or commits.
Every entry point takes a Store — the narrow read/write-node contract
pkg/backend satisfies — and a context for cancellation of the I/O Store
performs underneath. Node encoding, compression and hashing are pure
functions too (codec.go); only pkg/backend touches a database.

# Deletion

The original algorithm this package is grounded on (see DESIGN.md) only
ever inserts; there is no subtree-merge primitive to delete by. Remove
therefore locates the item, merges its two neighboring subtrees by
replaying the right-hand one's entries through Upsert into the left-hand
one, replaces a node left with no items by its remaining child, and lets
determinism guarantee the result is identical to never having inserted
the deleted key's subtree split in the first place.
*/
package mst
