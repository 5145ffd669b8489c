package mst

import "context"

// Store is the node-level persistence contract the tree algebra needs:
// write a node and get back its hash, or read a node back out by hash.
// Implementations live in pkg/backend; this package never performs I/O
// directly.
type Store interface {
	ReadNode(ctx context.Context, hash Hash) (*Node, error)
	WriteNode(ctx context.Context, n *Node) (Hash, error)
}

// Empty returns the canonical empty node.
func Empty() *Node {
	return &Node{}
}

// Lookup descends from root following the same child-selection rule as
// Upsert, returning the value stored at key, or ok == false if key is not
// present.
func Lookup(ctx context.Context, store Store, root Hash, key []byte) (value []byte, ok bool, err error) {
	node, err := store.ReadNode(ctx, root)
	if err != nil {
		return nil, false, err
	}
	return lookupNode(ctx, store, node, key)
}

func lookupNode(ctx context.Context, store Store, node *Node, key []byte) ([]byte, bool, error) {
	idx, found := search(node.Items, key)
	if found {
		return node.Items[idx].Value, true, nil
	}
	childHash := preChildHash(node, idx)
	if childHash == nil {
		return nil, false, nil
	}
	child, err := store.ReadNode(ctx, *childHash)
	if err != nil {
		return nil, false, err
	}
	return lookupNode(ctx, store, child, key)
}

// Upsert inserts or replaces (key, value) in the tree rooted at root,
// writing every new node produced along the way and returning the new
// root hash. See the package doc and SPEC_FULL.md §4.3 for the level-based
// placement rule.
func Upsert(ctx context.Context, store Store, root Hash, key, value []byte) (Hash, error) {
	node, err := store.ReadNode(ctx, root)
	if err != nil {
		return Hash{}, err
	}
	return upsertNode(ctx, store, node, key, value)
}

func upsertNode(ctx context.Context, store Store, node *Node, key, value []byte) (Hash, error) {
	reqLevel := Level(key)
	nodeLevel, ok := node.EstimateLevel()
	if !ok {
		nodeLevel = reqLevel
	}

	switch {
	case reqLevel == nodeLevel:
		if err := upsertLocal(ctx, store, node, key, value); err != nil {
			return Hash{}, err
		}
	case reqLevel < nodeLevel:
		idx, _ := search(node.Items, key)
		childHash := preChildHash(node, idx)
		child := Empty()
		if childHash != nil {
			var err error
			child, err = store.ReadNode(ctx, *childHash)
			if err != nil {
				return Hash{}, err
			}
		}
		newChildHash, err := upsertNode(ctx, store, child, key, value)
		if err != nil {
			return Hash{}, err
		}
		setPreChildHash(node, idx, &newChildHash)
	default: // reqLevel > nodeLevel
		l, r, err := splitNode(ctx, store, node, key)
		if err != nil {
			return Hash{}, err
		}
		node.Left = l
		node.Items = []Item{{Key: cloneBytes(key), Value: cloneBytes(value), Right: r}}
	}

	return store.WriteNode(ctx, node)
}

func upsertLocal(ctx context.Context, store Store, node *Node, key, value []byte) error {
	idx, found := search(node.Items, key)
	if found {
		node.Items[idx].Value = cloneBytes(value)
		return nil
	}

	childHash := preChildHash(node, idx)
	l, r, err := splitHash(ctx, store, childHash, key)
	if err != nil {
		return err
	}
	setPreChildHash(node, idx, l)

	newItem := Item{Key: cloneBytes(key), Value: cloneBytes(value), Right: r}
	node.Items = append(node.Items, Item{})
	copy(node.Items[idx+1:], node.Items[idx:])
	node.Items[idx] = newItem
	return nil
}

// setPreChildHash sets the child hash before items[idx] (Left if idx == 0,
// else items[idx-1].Right).
func setPreChildHash(node *Node, idx int, h *Hash) {
	if idx == 0 {
		node.Left = h
		return
	}
	node.Items[idx-1].Right = h
}

// splitHash reads the node at hash (or treats a nil hash as empty) and
// splits it around splitKey.
func splitHash(ctx context.Context, store Store, hash *Hash, splitKey []byte) (left, right *Hash, err error) {
	if hash == nil {
		return nil, nil, nil
	}
	node, err := store.ReadNode(ctx, *hash)
	if err != nil {
		return nil, nil, err
	}
	return splitNode(ctx, store, node, splitKey)
}

// splitNode partitions node's keys around splitKey (exclusive), writing
// the resulting left and right halves and returning their hashes (nil for
// an empty half).
func splitNode(ctx context.Context, store Store, node *Node, splitKey []byte) (left, right *Hash, err error) {
	// splitKey's level never matches this node's level at the points split
	// is called from (either it is a genuinely new key, or this node's
	// items are at a different level entirely), so it can never equal one
	// of node's own item keys; idx is simply its ordered insertion point.
	idx, _ := search(node.Items, splitKey)

	childToSplit := preChildHash(node, idx)
	midLeft, midRight, err := splitHash(ctx, store, childToSplit, splitKey)
	if err != nil {
		return nil, nil, err
	}

	rightItems := cloneItems(node.Items[idx:])
	leftItems := cloneItems(node.Items[:idx])

	leftNode := &Node{Left: node.Left, Items: leftItems}
	if idx == 0 {
		leftNode.Left = midLeft
	} else {
		leftNode.Items[len(leftNode.Items)-1].Right = midLeft
	}

	rightNode := &Node{Left: midRight, Items: rightItems}

	// A half with no items of its own is just its child subtree (or
	// nothing); it is never written as a wrapper node.
	if len(leftNode.Items) == 0 {
		left = leftNode.Left
	} else {
		h, err := store.WriteNode(ctx, leftNode)
		if err != nil {
			return nil, nil, err
		}
		left = &h
	}
	if len(rightNode.Items) == 0 {
		right = rightNode.Left
	} else {
		h, err := store.WriteNode(ctx, rightNode)
		if err != nil {
			return nil, nil, err
		}
		right = &h
	}
	return left, right, nil
}

// Remove deletes key from the tree rooted at root, if present, returning
// the new root hash (the hash of an empty node if the tree becomes
// empty). Removing an absent key is a no-op: the returned hash equals
// root.
func Remove(ctx context.Context, store Store, root Hash, key []byte) (Hash, error) {
	node, err := store.ReadNode(ctx, root)
	if err != nil {
		return Hash{}, err
	}
	newNode, changed, err := removeNode(ctx, store, node, key)
	if err != nil {
		return Hash{}, err
	}
	if !changed {
		return root, nil
	}
	if newNode == nil {
		newNode = Empty()
	}
	return store.WriteNode(ctx, newNode)
}

// removeNode returns the updated node (nil if it collapsed to empty) and
// whether key was actually present anywhere in this subtree.
func removeNode(ctx context.Context, store Store, node *Node, key []byte) (*Node, bool, error) {
	idx, found := search(node.Items, key)
	if found {
		leftOfItem := preChildHash(node, idx)
		rightOfItem := node.Items[idx].Right
		merged, err := mergeSubtrees(ctx, store, leftOfItem, rightOfItem)
		if err != nil {
			return nil, false, err
		}
		node.Items = append(node.Items[:idx], node.Items[idx+1:]...)
		setPreChildHash(node, idx, merged)
		if node.IsEmpty() {
			return nil, true, nil
		}
		if len(node.Items) == 0 {
			// No items left, only the merged child: the child takes this
			// node's place, as it would in a tree built without key.
			child, err := store.ReadNode(ctx, *node.Left)
			if err != nil {
				return nil, false, err
			}
			return child, true, nil
		}
		return node, true, nil
	}

	childHash := preChildHash(node, idx)
	if childHash == nil {
		return node, false, nil
	}
	child, err := store.ReadNode(ctx, *childHash)
	if err != nil {
		return nil, false, err
	}
	newChild, changed, err := removeNode(ctx, store, child, key)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return node, false, nil
	}
	if newChild == nil {
		setPreChildHash(node, idx, nil)
	} else {
		h, err := store.WriteNode(ctx, newChild)
		if err != nil {
			return nil, false, err
		}
		setPreChildHash(node, idx, &h)
	}
	if node.IsEmpty() {
		return nil, true, nil
	}
	return node, true, nil
}

// mergeSubtrees combines two subtrees known to hold disjoint, correctly
// ordered key ranges (left entirely below right, as guaranteed by their
// position as neighbors of a just-removed item) into one subtree. There is
// no O(1) structural merge for an MST — shape is a pure function of the
// key set — so this folds every (key, value) pair of the right side into
// the left via ordinary Upsert; determinism (SPEC_FULL.md §8, property 1)
// guarantees the result is exactly the tree that set of keys would have
// produced from scratch.
func mergeSubtrees(ctx context.Context, store Store, left, right *Hash) (*Hash, error) {
	switch {
	case left == nil:
		return right, nil
	case right == nil:
		return left, nil
	}

	result := *left
	for kv, err := range IterPrefix(ctx, store, *right, nil) {
		if err != nil {
			return nil, err
		}
		newResult, err := Upsert(ctx, store, result, kv.Key, kv.Value)
		if err != nil {
			return nil, err
		}
		result = newResult
	}
	return &result, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
