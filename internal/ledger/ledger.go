// Package ledger provides an insertion-ordered key-value list with
// idempotent insertion and an incremental "what's new since last check"
// cursor. Repeated manifest polls submit overlapping batches; consumers
// retrieve only the slice they have not seen yet.
package ledger

// Entry is one key-value pair in insertion order.
type Entry[V any] struct {
	Key   string
	Value V
}

// List is the ledger. It grows via insertion and never shrinks; the head
// mark advances only through Seek. Not safe for concurrent use.
type List[V any] struct {
	keys   []string
	values map[string]V
	// head is the index of the last key already handed out by Seek,
	// -1 while nothing has been seen.
	head int
}

// New creates an empty List.
func New[V any]() *List[V] {
	return &List[V]{
		values: make(map[string]V),
		head:   -1,
	}
}

// Len returns the number of stored entries.
func (l *List[V]) Len() int {
	return len(l.keys)
}

// Insert stores value under key. The first write wins: inserting an
// existing key is a no-op and returns false.
func (l *List[V]) Insert(key string, value V) bool {
	if _, exists := l.values[key]; exists {
		return false
	}
	l.keys = append(l.keys, key)
	l.values[key] = value
	return true
}

// InsertMany applies Insert per entry, preserving the given order.
// Go maps do not preserve insertion order, so the bulk form takes a slice.
func (l *List[V]) InsertMany(entries []Entry[V]) {
	for _, e := range entries {
		l.Insert(e.Key, e.Value)
	}
}

// Seek returns the entries inserted after the previously marked position,
// or the entire ledger on first call, and advances the mark to the newest
// entry. Returns nil, not an empty slice, when there is nothing new, so
// that "no new entries" stays distinguishable at the call site.
func (l *List[V]) Seek() []Entry[V] {
	fresh := l.keys[l.head+1:]
	if len(fresh) == 0 {
		return nil
	}

	entries := make([]Entry[V], 0, len(fresh))
	for _, key := range fresh {
		entries = append(entries, Entry[V]{Key: key, Value: l.values[key]})
	}
	l.head = len(l.keys) - 1
	return entries
}
