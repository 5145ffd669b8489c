// Package mst implements the content-addressed, copy-on-write Merkle
// Search Tree: an ordered map over byte keys whose shape is a pure
// function of the key set, independent of insertion order.
package mst

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/basalt-run/almanac/pkg/errs"
)

// HashSize is the width of a node's content hash.
const HashSize = 32

// Hash identifies a Node by the content hash of its encoded, compressed
// bytes. Two nodes with equal contents always produce equal hashes.
type Hash [HashSize]byte

// String renders the hash as lowercase hex, the form used as the Node
// namespace key in the backend.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero value (never a valid content hash,
// since that would require a preimage of all zero bytes under SHA-256).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// HashFromHex parses the 64-character lowercase-hex form produced by
// String. It fails with a HashParse error on any length or encoding
// mismatch.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	if len(s) != HashSize*2 {
		return h, fmt.Errorf("%w: expected %d hex characters, got %d", errs.ErrHashParse, HashSize*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", errs.ErrHashParse, err)
	}
	copy(h[:], b)
	return h, nil
}

// HashFromBytes validates that b is exactly HashSize long and returns it
// as a Hash.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", errs.ErrHashParse, HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Item is a single (key, value) pair held directly inside a Node, plus the
// hash of the subtree holding keys strictly between this item's key and
// the next item's key (or unbounded above, for the last item).
type Item struct {
	Key   []byte
	Value []byte
	Right *Hash
}

// Node is one node of the Merkle Search Tree: an ordered, key-unique list
// of Items sharing a common level, plus the hash of the subtree holding
// keys strictly less than the first item's key.
//
// An empty Node (no Left, no Items) is the canonical representation of an
// empty tree; it still has a real content hash once encoded, and init()
// persists that hash as the initial value of both refs.
type Node struct {
	Left  *Hash
	Items []Item
}

// IsEmpty reports whether the node holds no items and no left subtree.
func (n *Node) IsEmpty() bool {
	return n != nil && len(n.Items) == 0 && n.Left == nil
}

// EstimateLevel returns the level shared by every item in n, derived from
// the first item's key (all items in a well-formed node share one level).
// ok is false for a node with no items, in which case callers fall back to
// the level of the key being inserted.
func (n *Node) EstimateLevel() (level int, ok bool) {
	if n == nil || len(n.Items) == 0 {
		return 0, false
	}
	return Level(n.Items[0].Key), true
}

// Level computes the deterministic level of a key: the number of leading
// zero 4-bit nibbles in SHA-256(key). This is the one fixed definition
// used everywhere a key's level is needed; any other deterministic,
// low-probability-per-level function would satisfy the tree-shape
// invariants equally well, but every part of this package must agree on
// the same one.
func Level(key []byte) int {
	sum := sha256.Sum256(key)
	level := 0
	for _, b := range sum {
		hi, lo := b>>4, b&0x0f
		if hi != 0 {
			return level
		}
		level++
		if lo != 0 {
			return level
		}
		level++
	}
	return level
}

// search finds the position of key among n's items. If found, idx is the
// matching item's index and ok is true. If not found, idx is the index at
// which key would be inserted to keep items ordered (the position of the
// first item whose key is greater than key, or len(items) if none).
func search(items []Item, key []byte) (idx int, ok bool) {
	lo, hi := 0, len(items)
	for lo < hi {
		mid := (lo + hi) / 2
		switch bytes.Compare(items[mid].Key, key) {
		case 0:
			return mid, true
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// preChildHash returns the hash of the subtree holding keys strictly less
// than items[idx].Key (or, for idx == len(items), strictly greater than
// the last item): Left when idx is 0, otherwise the previous item's Right.
// A nil *Node is treated as an empty node, so this is safe to call with a
// node that does not exist (a Diff side that is entirely absent).
func preChildHash(n *Node, idx int) *Hash {
	if n == nil {
		return nil
	}
	if idx == 0 {
		return n.Left
	}
	if idx-1 < len(n.Items) {
		return n.Items[idx-1].Right
	}
	return nil
}

func itemAt(n *Node, idx int) *Item {
	if n == nil || idx >= len(n.Items) {
		return nil
	}
	return &n.Items[idx]
}

func hashPtrEqual(a, b *Hash) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
