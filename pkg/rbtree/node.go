package rbtree

import "math"

type color bool

const (
	red   color = false
	black color = true
)

// empty is the index of the empty-subtree marker. Slot 0 of every arena is
// reserved for it, so a zero child index means "no subtree here".
const empty uint32 = 0

// maxNodes is the first index the arena refuses to hand out.
const maxNodes = math.MaxUint32

type node[K, V any] struct {
	key         K
	value       V
	left, right uint32
	color       color
}

func (c color) String() string {
	if c == red {
		return "R"
	}

	return "B"
}
