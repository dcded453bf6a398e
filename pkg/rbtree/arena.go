package rbtree

// arena stores the nodes of one Map. Children reference each other by index,
// which keeps the tree free of pointer cycles and lets freed slots be reused.
type arena[K, V any] struct {
	storage []node[K, V]
	gaps    []uint32
}

func newArena[K, V any](capacity int) arena[K, V] {
	if capacity < 0 {
		capacity = 0
	}

	storage := make([]node[K, V], 1, capacity+1)
	// Zero is reserved.
	storage[empty].color = black

	return arena[K, V]{storage: storage}
}

// used returns the number of live nodes.
func (a *arena[K, V]) used() int {
	return len(a.storage) - 1 - len(a.gaps)
}

func (a *arena[K, V]) malloc() uint32 {
	if last := len(a.gaps) - 1; last >= 0 {
		idx := a.gaps[last]
		a.gaps = a.gaps[:last]

		return idx
	}

	nodeLen := len(a.storage)
	if uint64(nodeLen) >= maxNodes {
		panic("rbtree: arena reached the maximum number of nodes")
	}

	a.storage = append(a.storage, node[K, V]{})

	return uint32(nodeLen)
}

func (a *arena[K, V]) free(idx uint32) {
	if idx == empty {
		panic("rbtree: node #0 is special and cannot be deallocated")
	}

	// Drop the key and value so the garbage collector can reclaim them.
	a.storage[idx] = node[K, V]{}
	a.gaps = append(a.gaps, idx)
}

func (a *arena[K, V]) reset() {
	clear(a.storage[1:])
	a.storage = a.storage[:1]
	a.gaps = a.gaps[:0]
}

func (a *arena[K, V]) clone() arena[K, V] {
	storage := make([]node[K, V], len(a.storage), cap(a.storage))
	copy(storage, a.storage)

	gaps := make([]uint32, len(a.gaps))
	copy(gaps, a.gaps)

	return arena[K, V]{storage: storage, gaps: gaps}
}
