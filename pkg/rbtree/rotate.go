package rbtree

// rotate performs a tree rotation around pivot and returns the new local root.
// IsLeft=true performs left rotation, isLeft=false performs right rotation.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (m *Map[K, V]) rotate(pivot uint32, isLeft bool) uint32 {
	alloc := m.arena.storage

	var child uint32
	if isLeft {
		child = alloc[pivot].right
		alloc[pivot].right = alloc[child].left
		alloc[child].left = pivot
	} else {
		child = alloc[pivot].left
		alloc[pivot].left = alloc[child].right
		alloc[child].right = pivot
	}

	m.stats.Rotations++

	return child
}

func (m *Map[K, V]) rotateLeft(pivot uint32) uint32 {
	return m.rotate(pivot, true)
}

func (m *Map[K, V]) rotateRight(pivot uint32) uint32 {
	return m.rotate(pivot, false)
}
