package rbtree

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrInvariant is wrapped by every InvariantError.
var ErrInvariant = errors.New("red-black tree invariant violated")

// dumpMargin is the indentation added per tree level by Dump.
const dumpMargin = "      "

// InvariantError describes a structural inconsistency found in a Map.
// It is raised with panic and is never returned by a well-formed Map.
type InvariantError struct {
	Reason string
	Dump   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvariant, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

// Check verifies the ordering, the absence of RED nodes with RED children,
// equal black height on every path and a BLACK root. It returns the number of
// BLACK nodes on any path from the root to an empty subtree.
//
// Check is a development aid: a violation panics with *InvariantError.
func (m *Map[K, V]) Check() int {
	if m.isRed(m.root) {
		m.fail("root is RED")
	}

	height, nodes := m.checkSubtree(m.root, nil, nil)
	if nodes != m.count {
		m.fail(fmt.Sprintf("tree holds %d nodes, map counts %d", nodes, m.count))
	}

	return height
}

// checkSubtree returns the black height and node count of the subtree rooted
// at idx, whose keys must lie strictly between low and high when those are set.
func (m *Map[K, V]) checkSubtree(idx uint32, low, high *K) (int, int) {
	if idx == empty {
		return 0, 0
	}

	nd := &m.arena.storage[idx]

	if low != nil && m.compare(nd.key, *low) <= 0 {
		m.fail(fmt.Sprintf("key %v is not greater than %v", nd.key, *low))
	}

	if high != nil && m.compare(nd.key, *high) >= 0 {
		m.fail(fmt.Sprintf("key %v is not less than %v", nd.key, *high))
	}

	if nd.color == red && (m.isRed(nd.left) || m.isRed(nd.right)) {
		m.fail(fmt.Sprintf("red/red edge below %v", nd.key))
	}

	leftHeight, leftNodes := m.checkSubtree(nd.left, low, &nd.key)
	rightHeight, rightNodes := m.checkSubtree(nd.right, &nd.key, high)

	if leftHeight != rightHeight {
		m.fail(fmt.Sprintf("black height unbalanced below %v: %d %d", nd.key, leftHeight, rightHeight))
	}

	if nd.color == black {
		leftHeight++
	}

	return leftHeight, leftNodes + rightNodes + 1
}

// Height returns the number of nodes on the longest path from the root.
func (m *Map[K, V]) Height() int {
	return m.height(m.root)
}

func (m *Map[K, V]) height(idx uint32) int {
	if idx == empty {
		return 0
	}

	nd := &m.arena.storage[idx]

	return 1 + max(m.height(nd.left), m.height(nd.right))
}

// Dump renders the tree one node per line, right subtree above its parent and
// left subtree below, each level indented further. The sequence walks the
// tree when ranged over, so it reflects the current contents every time.
func (m *Map[K, V]) Dump() iter.Seq[string] {
	return func(yield func(string) bool) {
		m.dump(m.root, "", "", yield)
	}
}

func (m *Map[K, V]) dump(idx uint32, head, bar string, yield func(string) bool) bool {
	if idx == empty {
		return true
	}

	nd := &m.arena.storage[idx]

	if !m.dump(nd.right, head+dumpMargin, "/", yield) {
		return false
	}

	if !yield(fmt.Sprintf("%s%s%s:%v", head, bar, nd.color, nd.key)) {
		return false
	}

	return m.dump(nd.left, head+dumpMargin, `\`, yield)
}

// String returns the Dump lines joined by newlines.
func (m *Map[K, V]) String() string {
	var sb strings.Builder

	for line := range m.Dump() {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	return sb.String()
}

func (m *Map[K, V]) assert(condition bool, reason string) {
	if !condition {
		m.fail(reason)
	}
}

func (m *Map[K, V]) fail(reason string) {
	err := &InvariantError{Reason: reason, Dump: m.String()}

	m.logger.Error("rbtree invariant violated", "reason", reason, "len", m.count, "dump", err.Dump)

	panic(err)
}
