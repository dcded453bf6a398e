package rbtree

// remove deletes key from the subtree rooted at idx. It returns the subtree's
// new root and whether the subtree lost one BLACK node on every path, which
// the caller must repair.
func (m *Map[K, V]) remove(idx uint32, key K) (uint32, bool) {
	if idx == empty {
		return empty, false
	}

	comp := m.compare(key, m.arena.storage[idx].key)

	switch {
	case comp < 0:
		left, deficit := m.remove(m.arena.storage[idx].left, key)
		m.arena.storage[idx].left = left

		return m.balanceLeft(idx, deficit)
	case comp > 0:
		right, deficit := m.remove(m.arena.storage[idx].right, key)
		m.arena.storage[idx].right = right

		return m.balanceRight(idx, deficit)
	default:
		m.stats.Deletes++
		m.count--

		return m.removeNode(idx)
	}
}

// removeNode unlinks the node idx, whose key is being deleted.
func (m *Map[K, V]) removeNode(idx uint32) (uint32, bool) {
	alloc := m.arena.storage
	nd := &alloc[idx]

	switch {
	case nd.left != empty:
		// Take over the in-order predecessor and delete it instead.
		pred := nd.left
		for alloc[pred].right != empty {
			pred = alloc[pred].right
		}

		nd.key = alloc[pred].key
		nd.value = alloc[pred].value

		left, deficit := m.removeMax(nd.left)
		alloc[idx].left = left

		return m.balanceLeft(idx, deficit)
	case nd.right != empty:
		return m.splice(idx, nd.right), false
	default:
		return m.removeLeaf(idx)
	}
}

// removeMax deletes the rightmost node of the subtree rooted at idx.
func (m *Map[K, V]) removeMax(idx uint32) (uint32, bool) {
	alloc := m.arena.storage

	if right := alloc[idx].right; right != empty {
		newRight, deficit := m.removeMax(right)
		alloc[idx].right = newRight

		return m.balanceRight(idx, deficit)
	}

	if left := alloc[idx].left; left != empty {
		return m.splice(idx, left), false
	}

	return m.removeLeaf(idx)
}

// splice replaces the node idx by its only child. In a valid tree that node is
// BLACK and the child is a RED leaf; painting the child BLACK keeps the black
// height of the path.
func (m *Map[K, V]) splice(idx, child uint32) uint32 {
	alloc := m.arena.storage

	if alloc[idx].color != black || alloc[child].color != red {
		m.fail("spliced node is not a BLACK node with a single RED child")
	}

	alloc[child].color = black
	m.arena.free(idx)

	return child
}

func (m *Map[K, V]) removeLeaf(idx uint32) (uint32, bool) {
	deficit := m.arena.storage[idx].color == black
	if deficit {
		m.stats.Deficits++
	}

	m.arena.free(idx)

	return empty, deficit
}

// balanceLeft repairs a left subtree of idx that is one BLACK node short.
//
// The sibling always exists: the right side still holds at least one BLACK node.
func (m *Map[K, V]) balanceLeft(idx uint32, deficit bool) (uint32, bool) {
	if !deficit {
		return idx, false
	}

	alloc := m.arena.storage
	sib := alloc[idx].right
	m.assert(sib != empty, "deficit without a sibling")

	m.stats.DeleteFixups++

	switch {
	case m.isRed(sib):
		// Rotate the RED sibling up so the short side gets a BLACK sibling,
		// then repair again one level down. The demoted node is RED there,
		// so the second pass always absorbs the deficit.
		idx = m.rotateLeft(idx)
		alloc[idx].color = black
		alloc[alloc[idx].left].color = red

		left, unresolved := m.balanceLeft(alloc[idx].left, true)
		m.assert(!unresolved, "red sibling rotation left a deficit")
		alloc[idx].left = left

		return idx, false
	case m.isRed(alloc[sib].right):
		top := alloc[idx].color
		idx = m.rotateLeft(idx)
		alloc[idx].color = top
		alloc[alloc[idx].left].color = black
		alloc[alloc[idx].right].color = black

		return idx, false
	case m.isRed(alloc[sib].left):
		top := alloc[idx].color
		alloc[idx].right = m.rotateRight(sib)
		idx = m.rotateLeft(idx)
		alloc[idx].color = top
		alloc[alloc[idx].left].color = black

		return idx, false
	default:
		// Both nephews are BLACK: move the missing BLACK one level up.
		absorbed := alloc[idx].color == red
		alloc[idx].color = black
		alloc[sib].color = red

		return idx, !absorbed
	}
}

// balanceRight is the mirror image of balanceLeft.
func (m *Map[K, V]) balanceRight(idx uint32, deficit bool) (uint32, bool) {
	if !deficit {
		return idx, false
	}

	alloc := m.arena.storage
	sib := alloc[idx].left
	m.assert(sib != empty, "deficit without a sibling")

	m.stats.DeleteFixups++

	switch {
	case m.isRed(sib):
		idx = m.rotateRight(idx)
		alloc[idx].color = black
		alloc[alloc[idx].right].color = red

		right, unresolved := m.balanceRight(alloc[idx].right, true)
		m.assert(!unresolved, "red sibling rotation left a deficit")
		alloc[idx].right = right

		return idx, false
	case m.isRed(alloc[sib].left):
		top := alloc[idx].color
		idx = m.rotateRight(idx)
		alloc[idx].color = top
		alloc[alloc[idx].left].color = black
		alloc[alloc[idx].right].color = black

		return idx, false
	case m.isRed(alloc[sib].right):
		top := alloc[idx].color
		alloc[idx].left = m.rotateLeft(sib)
		idx = m.rotateRight(idx)
		alloc[idx].color = top
		alloc[alloc[idx].right].color = black

		return idx, false
	default:
		absorbed := alloc[idx].color == red
		alloc[idx].color = black
		alloc[sib].color = red

		return idx, !absorbed
	}
}
