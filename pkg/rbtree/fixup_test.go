package rbtree //nolint:testpackage // tests build trees node by node through unexported fields.

import (
	"bytes"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMap() *Map[int, int] {
	return New[int, int]()
}

// addNode allocates a node with the given shape and returns its index.
func addNode(m *Map[int, int], key int, c color, left, right uint32) uint32 {
	idx := m.arena.malloc()
	m.arena.storage[idx] = node[int, int]{key: key, value: key, color: c, left: left, right: right}
	m.count++

	return idx
}

func inorder(m *Map[int, int], idx uint32) []int {
	if idx == empty {
		return nil
	}

	nd := m.arena.storage[idx]

	return slices.Concat(inorder(m, nd.left), []int{nd.key}, inorder(m, nd.right))
}

func requireInvariantPanic(t *testing.T, fn func()) *InvariantError {
	t.Helper()

	var recovered any

	func() {
		defer func() { recovered = recover() }()

		fn()
	}()

	require.NotNil(t, recovered, "expected a panic")

	err, ok := recovered.(*InvariantError)
	require.True(t, ok, "panic value %v is not *InvariantError", recovered)
	assert.True(t, errors.Is(err, ErrInvariant))

	return err
}

func TestRotatePreservesOrder(t *testing.T) {
	t.Parallel()

	m := newTestMap()
	a := addNode(m, 1, black, empty, empty)
	b := addNode(m, 3, black, empty, empty)
	c := addNode(m, 5, black, empty, empty)
	y := addNode(m, 4, red, b, c)
	x := addNode(m, 2, black, a, y)

	root := m.rotateLeft(x)
	assert.Equal(t, y, root)
	assert.Equal(t, x, m.arena.storage[y].left)
	assert.Equal(t, b, m.arena.storage[x].right)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, inorder(m, root))

	root = m.rotateRight(root)
	assert.Equal(t, x, root)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, inorder(m, root))
	assert.Equal(t, int64(2), m.stats.Rotations)
}

func TestBalanceIgnoresRedNode(t *testing.T) {
	t.Parallel()

	m := newTestMap()
	child := addNode(m, 1, red, empty, empty)
	parent := addNode(m, 2, red, child, empty)

	assert.Equal(t, parent, m.balance(parent))
	assert.Zero(t, m.stats.Rotations)
}

// deficitCase describes a subtree whose left side is one BLACK node short,
// and the tree balanceLeft must turn it into.
type deficitCase struct {
	name   string
	build  func(m *Map[int, int]) uint32
	dump   []string
	more   bool
	height int
}

func deficitCases() []deficitCase {
	return []deficitCase{
		{
			name: "FarNephewRed",
			build: func(m *Map[int, int]) uint32 {
				far := addNode(m, 30, red, empty, empty)
				sib := addNode(m, 20, black, empty, far)

				return addNode(m, 10, black, empty, sib)
			},
			dump:   []string{"      /B:30", "B:20", `      \B:10`},
			height: 2,
		},
		{
			name: "FarNephewRedUnderRedParent",
			build: func(m *Map[int, int]) uint32 {
				near := addNode(m, 15, red, empty, empty)
				far := addNode(m, 30, red, empty, empty)
				sib := addNode(m, 20, black, near, far)

				return addNode(m, 10, red, empty, sib)
			},
			dump:   []string{"      /B:30", "B:20", "            /R:15", `      \B:10`},
			height: 2,
		},
		{
			name: "NearNephewRed",
			build: func(m *Map[int, int]) uint32 {
				near := addNode(m, 20, red, empty, empty)
				sib := addNode(m, 30, black, near, empty)

				return addNode(m, 10, black, empty, sib)
			},
			dump:   []string{"      /B:30", "B:20", `      \B:10`},
			height: 2,
		},
		{
			name: "NephewsBlackParentRed",
			build: func(m *Map[int, int]) uint32 {
				sib := addNode(m, 20, black, empty, empty)

				return addNode(m, 10, red, empty, sib)
			},
			dump:   []string{"      /R:20", "B:10"},
			height: 1,
		},
		{
			name: "NephewsBlackParentBlack",
			build: func(m *Map[int, int]) uint32 {
				sib := addNode(m, 20, black, empty, empty)

				return addNode(m, 10, black, empty, sib)
			},
			dump:   []string{"      /R:20", "B:10"},
			more:   true,
			height: 1,
		},
		{
			name: "SiblingRed",
			build: func(m *Map[int, int]) uint32 {
				near := addNode(m, 20, black, empty, empty)
				far := addNode(m, 40, black, empty, empty)
				sib := addNode(m, 30, red, near, far)

				return addNode(m, 10, black, empty, sib)
			},
			dump:   []string{"      /B:40", "B:30", "            /R:20", `      \B:10`},
			height: 2,
		},
	}
}

func TestBalanceLeftCases(t *testing.T) {
	t.Parallel()

	for _, tt := range deficitCases() {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newTestMap()
			root := tt.build(m)
			keys := inorder(m, root)

			newRoot, deficit := m.balanceLeft(root, true)
			m.root = newRoot
			m.arena.storage[newRoot].color = black

			assert.Equal(t, tt.more, deficit)
			assert.Equal(t, keys, inorder(m, newRoot))
			assert.Equal(t, tt.dump, slices.Collect(m.Dump()))
			assert.Equal(t, tt.height, m.Check())
		})
	}
}

// mirror rebuilds the tree rooted at idx with every key negated, which
// swaps left and right.
func mirror(src *Map[int, int], idx uint32, dst *Map[int, int]) uint32 {
	if idx == empty {
		return empty
	}

	nd := src.arena.storage[idx]
	left := mirror(src, nd.right, dst)
	right := mirror(src, nd.left, dst)

	return addNode(dst, -nd.key, nd.color, left, right)
}

func TestBalanceRightMirrorsBalanceLeft(t *testing.T) {
	t.Parallel()

	for _, tt := range deficitCases() {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newTestMap()
			srcRoot := tt.build(src)

			m := newTestMap()
			root := mirror(src, srcRoot, m)
			keys := inorder(m, root)

			newRoot, deficit := m.balanceRight(root, true)
			m.root = newRoot
			m.arena.storage[newRoot].color = black

			assert.Equal(t, tt.more, deficit)
			assert.Equal(t, keys, inorder(m, newRoot))
			assert.Equal(t, tt.height, m.Check())
		})
	}
}

func TestBalanceLeftWithoutDeficitIsNoop(t *testing.T) {
	t.Parallel()

	m := newTestMap()
	sib := addNode(m, 20, black, empty, empty)
	root := addNode(m, 10, black, empty, sib)

	got, deficit := m.balanceLeft(root, false)

	assert.Equal(t, root, got)
	assert.False(t, deficit)
	assert.Zero(t, m.stats.DeleteFixups)
}

func TestSpliceRejectsRedNode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	m := New[int, int](WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	child := addNode(m, 20, red, empty, empty)
	m.root = addNode(m, 10, red, empty, child)

	err := requireInvariantPanic(t, func() { m.Delete(10) })

	assert.Contains(t, err.Reason, "spliced node")
	assert.Contains(t, err.Dump, "R:10")
	assert.Contains(t, buf.String(), "rbtree invariant violated")
}

func TestSpliceRejectsBlackChild(t *testing.T) {
	t.Parallel()

	m := newTestMap()
	child := addNode(m, 20, black, empty, empty)
	m.root = addNode(m, 10, black, empty, child)

	requireInvariantPanic(t, func() { m.Delete(10) })
}

func TestCheckDetectsViolations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		build  func(m *Map[int, int])
		reason string
	}{
		{
			name: "RedRoot",
			build: func(m *Map[int, int]) {
				m.root = addNode(m, 1, red, empty, empty)
			},
			reason: "root is RED",
		},
		{
			name: "RedRed",
			build: func(m *Map[int, int]) {
				grandchild := addNode(m, 1, red, empty, empty)
				child := addNode(m, 2, red, grandchild, empty)
				m.root = addNode(m, 3, black, child, empty)
			},
			reason: "red/red edge below 2",
		},
		{
			name: "BlackHeight",
			build: func(m *Map[int, int]) {
				child := addNode(m, 1, black, empty, empty)
				m.root = addNode(m, 2, black, child, empty)
			},
			reason: "black height unbalanced below 2: 1 0",
		},
		{
			name: "Order",
			build: func(m *Map[int, int]) {
				left := addNode(m, 5, red, empty, empty)
				m.root = addNode(m, 2, black, left, empty)
			},
			reason: "key 5 is not less than 2",
		},
		{
			name: "DeepOrder",
			build: func(m *Map[int, int]) {
				inner := addNode(m, 1, red, empty, empty)
				left := addNode(m, 3, black, empty, inner)
				right := addNode(m, 6, black, empty, empty)
				m.root = addNode(m, 4, black, left, right)
			},
			reason: "key 1 is not greater than 3",
		},
		{
			name: "Count",
			build: func(m *Map[int, int]) {
				m.root = addNode(m, 1, black, empty, empty)
				m.count = 2
			},
			reason: "tree holds 1 nodes, map counts 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := New[int, int](WithLogger(slog.New(slog.DiscardHandler)))
			tt.build(m)

			err := requireInvariantPanic(t, func() { m.Check() })
			assert.Equal(t, tt.reason, err.Reason)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

// size returns the number of slots, including the reserved one and the gaps.
func (a *arena[K, V]) size() int {
	return len(a.storage)
}

func TestFixupAssertionsRaiseInvariantError(t *testing.T) {
	t.Parallel()

	m := newTestMap()
	m.root = addNode(m, 10, black, empty, empty)

	err := requireInvariantPanic(t, func() { m.balanceLeft(m.root, true) })
	assert.Equal(t, "deficit without a sibling", err.Reason)
	assert.Contains(t, err.Dump, "B:10")

	err = requireInvariantPanic(t, func() { m.balanceRight(m.root, true) })
	assert.Equal(t, "deficit without a sibling", err.Reason)
}

func TestArenaReusesFreedSlots(t *testing.T) {
	t.Parallel()

	m := newTestMap()
	for key := range 10 {
		m.Set(key, key)
	}

	size := m.arena.size()
	assert.Equal(t, 10, m.arena.used())

	m.Delete(3)
	m.Delete(7)
	assert.Equal(t, 8, m.arena.used())
	assert.Len(t, m.arena.gaps, 2)

	m.Set(100, 100)
	m.Set(200, 200)

	assert.Equal(t, size, m.arena.size())
	assert.Empty(t, m.arena.gaps)
	m.Check()
}

func TestArenaFreeClearsSlot(t *testing.T) {
	t.Parallel()

	a := newArena[string, string](0)
	idx := a.malloc()
	a.storage[idx] = node[string, string]{key: "k", value: "v", color: red}

	a.free(idx)

	assert.Equal(t, node[string, string]{}, a.storage[idx])
	assert.Panics(t, func() { a.free(empty) })
}

func TestArenaResetKeepsReservedSlot(t *testing.T) {
	t.Parallel()

	a := newArena[int, int](4)
	for range 3 {
		a.malloc()
	}

	a.free(2)
	a.reset()

	assert.Equal(t, 1, a.size())
	assert.Equal(t, 0, a.used())
	assert.Equal(t, black, a.storage[empty].color)
	assert.Equal(t, uint32(1), a.malloc())
}
