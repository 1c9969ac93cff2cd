package btree

import (
	"errors"
	"fmt"

	"btidx/internal/block"
)

// ErrDuplicateKey is returned by Insert when the key already exists in the
// tree. Overwriting silently is an unusual contract for a B-tree index, so
// this engine rejects duplicates outright rather than updating in place.
var ErrDuplicateKey = errors.New("btree: duplicate key")

// Tree is the on-disk B-tree engine: search, insert with preemptive
// top-down splitting, and in-order traversal, all mediated through a node
// cache and a block.Device.
type Tree struct {
	dev    *block.Device
	cache  *nodeCache
	header *header
}

// Create initializes a brand-new index on dev: block 0 becomes the header
// (root=1, next-free=2) and block 1 becomes an empty leaf root. dev must
// back a file with no prior content; the caller is responsible for the
// create-vs-open distinction (path-exists checks live in the façade).
func Create(dev *block.Device) (*Tree, error) {
	if err := dev.Truncate(4); err != nil {
		return nil, err
	}

	t := &Tree{dev: dev, cache: newNodeCache()}
	t.header = &header{rootID: 1, nextFreeID: 2}

	root := &node{leaf: true, id: 1, parent: 0, keyCount: 0}
	if err := t.writeNode(root); err != nil {
		return nil, err
	}
	if err := t.writeHeader(); err != nil {
		return nil, err
	}
	return t, nil
}

// Open reads an existing index's header from block 0 and fails with
// ErrBadMagic if it is not a valid index file.
func Open(dev *block.Device) (*Tree, error) {
	buf, err := dev.ReadBlock(0)
	if err != nil {
		return nil, err
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	return &Tree{dev: dev, cache: newNodeCache(), header: h}, nil
}

// Close releases the underlying device.
func (t *Tree) Close() error {
	return t.dev.Close()
}

func (t *Tree) loadNode(id uint64) (*node, error) {
	if n, ok := t.cache.get(id); ok {
		return n, nil
	}
	buf, err := t.dev.ReadBlock(id)
	if err != nil {
		return nil, err
	}
	n := decodeNode(buf)
	t.cache.put(id, n)
	return n, nil
}

func (t *Tree) writeNode(n *node) error {
	buf := encodeNode(n)
	if err := t.dev.WriteBlock(n.id, buf); err != nil {
		return err
	}
	t.cache.invalidateAll()
	return nil
}

func (t *Tree) writeHeader() error {
	buf := encodeHeader(t.header)
	if err := t.dev.WriteBlock(0, buf); err != nil {
		return err
	}
	t.cache.invalidateAll()
	return nil
}

// allocateID consumes the next free block id, persisting the advanced
// header. The caller still has to write the new node's own block.
func (t *Tree) allocateID() (uint64, error) {
	id := t.header.nextFreeID
	t.header.nextFreeID++
	if err := t.writeHeader(); err != nil {
		return 0, err
	}
	return id, nil
}

// Search performs a recursive descent for key, per the lowest index i with
// keys[i] >= key at each level.
func (t *Tree) Search(key uint64) (uint64, bool, error) {
	return t.search(t.header.rootID, key)
}

func (t *Tree) search(id uint64, key uint64) (uint64, bool, error) {
	n, err := t.loadNode(id)
	if err != nil {
		return 0, false, err
	}

	i := uint32(0)
	for i < n.keyCount && n.keys[i] < key {
		i++
	}

	if i < n.keyCount && n.keys[i] == key {
		return n.values[i], true, nil
	}
	if n.leaf {
		return 0, false, nil
	}
	return t.search(n.children[i], key)
}

// Insert adds (key, value) to the tree, splitting top-down as needed to
// keep every node's key count within [0, 2t-1]. A duplicate key is
// rejected with ErrDuplicateKey and leaves the tree unmodified — checked
// before any preemptive split runs, since a split is a structural change
// that should not happen on a rejected insert.
func (t *Tree) Insert(key, value uint64) error {
	if _, found, err := t.Search(key); err != nil {
		return err
	} else if found {
		return ErrDuplicateKey
	}

	root, err := t.loadNode(t.header.rootID)
	if err != nil {
		return err
	}

	if root.keyCount == maxKeys {
		newRootID, err := t.allocateID()
		if err != nil {
			return err
		}
		newRoot := &node{leaf: false, id: newRootID, parent: 0, keyCount: 0}
		newRoot.children[0] = root.id

		root.parent = newRoot.id
		if err := t.writeNode(root); err != nil {
			return err
		}

		t.header.rootID = newRoot.id
		if err := t.writeHeader(); err != nil {
			return err
		}
		if err := t.writeNode(newRoot); err != nil {
			return err
		}

		if err := t.splitChild(newRoot, 0); err != nil {
			return err
		}

		newRoot, err = t.loadNode(t.header.rootID)
		if err != nil {
			return err
		}
		return t.insertNonFull(newRoot, key, value)
	}

	return t.insertNonFull(root, key, value)
}

// insertNonFull inserts (key, value) into node, which is guaranteed to have
// fewer than 2t-1 keys on entry. The caller has already established that
// key is absent from the tree, so no position found here can be an
// existing equal key.
func (t *Tree) insertNonFull(n *node, key, value uint64) error {
	if n.leaf {
		i := uint32(0)
		for i < n.keyCount && n.keys[i] < key {
			i++
		}
		for j := n.keyCount; j > i; j-- {
			n.keys[j] = n.keys[j-1]
			n.values[j] = n.values[j-1]
		}
		n.keys[i] = key
		n.values[i] = value
		n.keyCount++
		return t.writeNode(n)
	}

	i := uint32(0)
	for i < n.keyCount && key > n.keys[i] {
		i++
	}

	child, err := t.loadNode(n.children[i])
	if err != nil {
		return err
	}

	if child.keyCount == maxKeys {
		if err := t.splitChild(n, i); err != nil {
			return err
		}
		n, err = t.loadNode(n.id)
		if err != nil {
			return err
		}
		if key > n.keys[i] {
			i++
		}
	}

	child, err = t.loadNode(n.children[i])
	if err != nil {
		return err
	}
	return t.insertNonFull(child, key, value)
}

// splitChild splits the full child at index i of parent into two half-full
// siblings, promoting the median key/value into parent at position i.
func (t *Tree) splitChild(parent *node, i uint32) error {
	const t9 = Degree - 1

	child, err := t.loadNode(parent.children[i])
	if err != nil {
		return err
	}
	if child.keyCount != maxKeys {
		return fmt.Errorf("btree: splitChild called on non-full node %d", child.id)
	}

	newID, err := t.allocateID()
	if err != nil {
		return err
	}
	sibling := &node{leaf: child.leaf, id: newID, parent: parent.id}

	for j := 0; j < t9; j++ {
		sibling.keys[j] = child.keys[j+Degree]
		sibling.values[j] = child.values[j+Degree]
	}
	sibling.keyCount = t9

	if !child.leaf {
		for j := 0; j < Degree; j++ {
			sibling.children[j] = child.children[j+Degree]
		}
	}

	medianKey := child.keys[t9]
	medianValue := child.values[t9]

	// zero the slots that moved out of child.
	for j := t9; j < maxKeys; j++ {
		child.keys[j] = 0
		child.values[j] = 0
	}
	if !child.leaf {
		for j := Degree; j < maxChildren; j++ {
			child.children[j] = 0
		}
	}
	child.keyCount = t9

	for j := parent.keyCount; j > i; j-- {
		parent.children[j+1] = parent.children[j]
	}
	parent.children[i+1] = sibling.id

	for j := parent.keyCount; j > i; j-- {
		parent.keys[j] = parent.keys[j-1]
		parent.values[j] = parent.values[j-1]
	}
	parent.keys[i] = medianKey
	parent.values[i] = medianValue
	parent.keyCount++

	if err := t.writeNode(child); err != nil {
		return err
	}
	if err := t.writeNode(sibling); err != nil {
		return err
	}
	return t.writeNode(parent)
}

// Traverse walks the tree left to right, in ascending key order, calling
// visit once per (key, value) pair.
func (t *Tree) Traverse(visit func(key, value uint64)) error {
	return t.traverse(t.header.rootID, visit)
}

func (t *Tree) traverse(id uint64, visit func(key, value uint64)) error {
	n, err := t.loadNode(id)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n.keyCount; i++ {
		if !n.leaf {
			if err := t.traverse(n.children[i], visit); err != nil {
				return err
			}
		}
		visit(n.keys[i], n.values[i])
	}
	if !n.leaf {
		if err := t.traverse(n.children[n.keyCount], visit); err != nil {
			return err
		}
	}
	return nil
}

// RootID reports the header's current root block id, used by tests and by
// diagnostic callers that want to inspect the tree's shape.
func (t *Tree) RootID() uint64 {
	return t.header.rootID
}

// NextFreeID reports the header's current next-free block id.
func (t *Tree) NextFreeID() uint64 {
	return t.header.nextFreeID
}
