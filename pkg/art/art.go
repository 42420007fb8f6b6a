// Package art implements an adaptive radix tree: an ordered map keyed by
// byte strings with path compression, used by the block reference table
// (relation-fork keys) and the manifest differ (file paths).
//
// Unlike a plain binary trie, common key prefixes are stored once on the
// edge leading to the node where they diverge, so long shared prefixes
// (a tablespace/database/relation key space, or a directory tree of file
// paths) cost one comparison instead of one per byte.
package art

// Tree is an adaptive radix tree mapping []byte keys to arbitrary values.
// The zero value is an empty, ready-to-use tree.
type Tree struct {
	root *node
	size int
}

type node struct {
	prefix   []byte
	children map[byte]*node
	hasValue bool
	value    any
	key      []byte // full key, only set on leaf-bearing nodes, for iteration
}

// Len returns the number of keys stored in the tree.
func (t *Tree) Len() int { return t.size }

// Insert adds key with the given value. It returns the previous value and
// true if key already existed, or (nil, false) if it was newly inserted.
func (t *Tree) Insert(key []byte, value any) (any, bool) {
	if t.root == nil {
		t.root = &node{prefix: append([]byte(nil), key...), hasValue: true, value: value, key: append([]byte(nil), key...)}
		t.size++
		return nil, false
	}
	old, existed := t.insert(t.root, key, value)
	if !existed {
		t.size++
	}
	return old, existed
}

func (t *Tree) insert(n *node, key []byte, value any) (any, bool) {
	common := commonPrefixLen(n.prefix, key)

	switch {
	case common == len(n.prefix) && common == len(key):
		// exact match on this node
		old := n.value
		existed := n.hasValue
		n.hasValue = true
		n.value = value
		n.key = append([]byte(nil), key...)
		if existed {
			return old, true
		}
		return nil, false

	case common == len(n.prefix):
		// key continues past this node's prefix: descend (or create) a child
		rest := key[common:]
		if n.children == nil {
			n.children = make(map[byte]*node)
		}
		child, ok := n.children[rest[0]]
		if !ok {
			n.children[rest[0]] = &node{
				prefix:   append([]byte(nil), rest...),
				hasValue: true,
				value:    value,
				key:      append([]byte(nil), key...),
			}
			return nil, false
		}
		return t.insert(child, rest, value)

	default:
		// diverge partway through n.prefix: split n into a shared-prefix
		// node with two children (the old tail of n, and the new key tail).
		oldTail := &node{
			prefix:   n.prefix[common:],
			children: n.children,
			hasValue: n.hasValue,
			value:    n.value,
			key:      n.key,
		}

		n.children = map[byte]*node{oldTail.prefix[0]: oldTail}
		n.prefix = n.prefix[:common]
		n.hasValue = false
		n.value = nil
		n.key = nil

		if common == len(key) {
			n.hasValue = true
			n.value = value
			n.key = append([]byte(nil), key...)
			return nil, false
		}

		newTail := &node{
			prefix:   append([]byte(nil), key[common:]...),
			hasValue: true,
			value:    value,
			key:      append([]byte(nil), key...),
		}
		n.children[newTail.prefix[0]] = newTail
		return nil, false
	}
}

// Search looks up key and returns its value and true, or (nil, false) if
// key is not present.
func (t *Tree) Search(key []byte) (any, bool) {
	n := t.root
	rest := key
	for n != nil {
		common := commonPrefixLen(n.prefix, rest)
		if common < len(n.prefix) {
			return nil, false
		}
		rest = rest[common:]
		if len(rest) == 0 {
			if n.hasValue {
				return n.value, true
			}
			return nil, false
		}
		if n.children == nil {
			return nil, false
		}
		n = n.children[rest[0]]
	}
	return nil, false
}

// Delete removes key from the tree, returning its value and true, or
// (nil, false) if key was not present.
func (t *Tree) Delete(key []byte) (any, bool) {
	if t.root == nil {
		return nil, false
	}
	old, ok := deleteFrom(nil, 0, t.root, key)
	if ok {
		t.size--
	}
	return old, ok
}

// deleteFrom walks to the node matching key and clears its value,
// collapsing single-child chains left behind. parent/edge identify how to
// reach n from its parent (edge is unused when parent is nil, the root).
func deleteFrom(parent *node, edge byte, n *node, rest []byte) (any, bool) {
	common := commonPrefixLen(n.prefix, rest)
	if common < len(n.prefix) {
		return nil, false
	}
	rest = rest[common:]

	if len(rest) == 0 {
		if !n.hasValue {
			return nil, false
		}
		old := n.value
		n.hasValue = false
		n.value = nil
		n.key = nil
		collapse(parent, edge, n)
		return old, true
	}

	if n.children == nil {
		return nil, false
	}
	child, ok := n.children[rest[0]]
	if !ok {
		return nil, false
	}
	return deleteFrom(n, rest[0], child, rest)
}

// collapse merges a value-less node with its single remaining child, or
// removes it entirely if it has none, keeping the tree minimal after a
// delete.
func collapse(parent *node, edge byte, n *node) {
	if n.hasValue || len(n.children) > 1 {
		return
	}
	if len(n.children) == 0 {
		if parent != nil {
			delete(parent.children, edge)
		}
		return
	}
	// exactly one child: merge its prefix into n
	for _, child := range n.children {
		n.prefix = append(n.prefix, child.prefix...)
		n.children = child.children
		n.hasValue = child.hasValue
		n.value = child.value
		n.key = child.key
	}
}

// Iterate walks every key in lexicographic order, invoking cb for each.
// Iteration stops early if cb returns false.
func (t *Tree) Iterate(cb func(key []byte, value any) bool) {
	if t.root == nil {
		return
	}
	iterate(t.root, cb)
}

func iterate(n *node, cb func(key []byte, value any) bool) bool {
	if n.hasValue {
		if !cb(n.key, n.value) {
			return false
		}
	}
	if len(n.children) == 0 {
		return true
	}
	keys := make([]byte, 0, len(n.children))
	for b := range n.children {
		keys = append(keys, b)
	}
	sortBytes(keys)
	for _, b := range keys {
		if !iterate(n.children[b], cb) {
			return false
		}
	}
	return true
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// sortBytes sorts a small byte slice in place (insertion sort: children
// counts per node are typically under a few dozen).
func sortBytes(b []byte) {
	for i := 1; i < len(b); i++ {
		for j := i; j > 0 && b[j-1] > b[j]; j-- {
			b[j-1], b[j] = b[j], b[j-1]
		}
	}
}
