package rbtree

// insert stores (key, value) in the subtree rooted at idx and returns the
// subtree's new root. New nodes start RED; balance resolves the red-red edge
// that may create on the way back up.
func (m *Map[K, V]) insert(idx uint32, key K, value V) uint32 {
	if idx == empty {
		created := m.arena.malloc()

		nd := &m.arena.storage[created]
		nd.key = key
		nd.value = value
		nd.color = red

		m.count++
		m.stats.Inserts++

		return created
	}

	comp := m.compare(key, m.arena.storage[idx].key)

	switch {
	case comp < 0:
		// malloc may grow the storage, so the slice is read only after the call.
		left := m.insert(m.arena.storage[idx].left, key, value)
		m.arena.storage[idx].left = left

		return m.balance(idx)
	case comp > 0:
		right := m.insert(m.arena.storage[idx].right, key, value)
		m.arena.storage[idx].right = right

		return m.balance(idx)
	default:
		m.arena.storage[idx].value = value
		m.stats.Updates++

		return idx
	}
}

// balance repairs a red child with a red grandchild below the BLACK node idx.
// The new local root is RED with two BLACK children, so the black height of
// the subtree is unchanged.
func (m *Map[K, V]) balance(idx uint32) uint32 {
	alloc := m.arena.storage

	if alloc[idx].color == red {
		return idx
	}

	left, right := alloc[idx].left, alloc[idx].right

	switch {
	case m.isRed(left) && m.isRed(alloc[left].left):
		idx = m.rotateRight(idx)
		alloc[alloc[idx].left].color = black
	case m.isRed(left) && m.isRed(alloc[left].right):
		alloc[idx].left = m.rotateLeft(left)
		idx = m.rotateRight(idx)
		alloc[alloc[idx].left].color = black
	case m.isRed(right) && m.isRed(alloc[right].right):
		idx = m.rotateLeft(idx)
		alloc[alloc[idx].right].color = black
	case m.isRed(right) && m.isRed(alloc[right].left):
		alloc[idx].right = m.rotateRight(right)
		idx = m.rotateLeft(idx)
		alloc[alloc[idx].right].color = black
	default:
		return idx
	}

	m.stats.InsertFixups++

	return idx
}
