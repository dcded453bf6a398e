// Package rbtree implements an ordered map backed by a red-black tree.
//
// Insertion and deletion are recursive: every step takes a subtree and returns
// its replacement, repairing the balance on the way back up. Nodes live in an
// index arena owned by the map, and index 0 stands for the empty subtree.
//
// A Map is not safe for concurrent use. Callers that share one must serialize
// access to every method, including Get.
package rbtree

import (
	"cmp"
	"log/slog"
)

// Map is an ordered map from K to V.
type Map[K, V any] struct {
	arena    arena[K, V]
	compare  func(a, b K) int
	logger   *slog.Logger
	observer Observer

	root  uint32
	count int
	stats Stats
}

// Option configures a Map.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer Observer
	capacity int
}

// WithLogger sets the logger used to report invariant violations.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithObserver sets the observer notified after every Set and Delete.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithCapacity pre-sizes the node storage for the given number of entries.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		o.capacity = capacity
	}
}

// New creates an empty Map ordered by the natural ordering of K.
func New[K cmp.Ordered, V any](opts ...Option) *Map[K, V] {
	return NewFunc[K, V](cmp.Compare[K], opts...)
}

// NewFunc creates an empty Map ordered by compare, which must return a
// negative number when a < b, zero when a == b and a positive number when a > b.
// If compare panics, the Map is left as it was before the failing call.
func NewFunc[K, V any](compare func(a, b K) int, opts ...Option) *Map[K, V] {
	cfg := options{
		logger:   slog.Default(),
		observer: nopObserver{},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Map[K, V]{
		arena:    newArena[K, V](cfg.capacity),
		compare:  compare,
		logger:   cfg.logger,
		observer: cfg.observer,
	}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.count
}

// Get returns the value stored under key. The second result is false if the
// key is absent.
func (m *Map[K, V]) Get(key K) (V, bool) {
	nodes := m.arena.storage
	idx := m.root

	for idx != empty {
		nd := &nodes[idx]

		comp := m.compare(key, nd.key)

		switch {
		case comp < 0:
			idx = nd.left
		case comp > 0:
			idx = nd.right
		default:
			return nd.value, true
		}
	}

	var zero V

	return zero, false
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	_, found := m.Get(key)

	return found
}

// Set stores value under key, replacing the previous value if the key exists.
func (m *Map[K, V]) Set(key K, value V) {
	before := m.stats

	m.root = m.insert(m.root, key, value)
	m.arena.storage[m.root].color = black

	m.observer.Observe(OpSet, m.stats.sub(before))
}

// Delete removes key. Deleting an absent key does nothing.
func (m *Map[K, V]) Delete(key K) {
	before := m.stats

	root, _ := m.remove(m.root, key)

	m.root = root
	if root != empty {
		m.arena.storage[root].color = black
	}

	m.observer.Observe(OpDelete, m.stats.sub(before))
}

// Clear removes all entries. The node storage keeps its capacity.
func (m *Map[K, V]) Clear() {
	m.arena.reset()
	m.root = empty
	m.count = 0
}

// Clone returns an independent copy of the map sharing its comparator,
// logger and observer. Counters start from zero.
func (m *Map[K, V]) Clone() *Map[K, V] {
	return &Map[K, V]{
		arena:    m.arena.clone(),
		compare:  m.compare,
		logger:   m.logger,
		observer: m.observer,
		root:     m.root,
		count:    m.count,
	}
}

// Stats returns the cumulative counters of the map.
func (m *Map[K, V]) Stats() Stats {
	return m.stats
}

func (m *Map[K, V]) isRed(idx uint32) bool {
	return idx != empty && m.arena.storage[idx].color == red
}
