package bus

import "sort"

// setEntry is one reference-counted member of an entrySet.
type setEntry[V any] struct {
	key      any
	value    V
	count    int
	priority int
	style    int
	seq      uint64
}

// entrySet is the ordered, reference-counted collection backing every bus
// table: listener lists, interceptor chains, and post-processor chains.
// Adding an existing key bumps its count; listener tables key by
// (node, priority) so a duplicate always shares the entry's ordering
// fields. Invocation order is (priority, style, sequence), re-sorted
// lazily after the set changes.
//
// Each set keeps its own snapshot free list so emissions iterate a copy
// of the entries. Reentrant mutation from inside a callback therefore
// only affects future emissions, and nested emissions each get their own
// buffer.
type entrySet[V any] struct {
	entries []*setEntry[V]
	index   map[any]*setEntry[V]
	dirty   bool
	free    [][]*setEntry[V]
}

func newEntrySet[V any]() *entrySet[V] {
	return &entrySet[V]{index: make(map[any]*setEntry[V])}
}

func (s *entrySet[V]) add(key any, value V, priority, style int, seq uint64) {
	if e, ok := s.index[key]; ok {
		e.count++
		return
	}
	e := &setEntry[V]{key: key, value: value, count: 1, priority: priority, style: style, seq: seq}
	s.index[key] = e
	s.entries = append(s.entries, e)
	s.dirty = true
}

// remove decrements the keyed entry, dropping it at zero. It reports
// false when the key is absent.
func (s *entrySet[V]) remove(key any) bool {
	e, ok := s.index[key]
	if !ok {
		return false
	}
	e.count--
	if e.count > 0 {
		return true
	}
	delete(s.index, key)
	for i, candidate := range s.entries {
		if candidate == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	return true
}

func (s *entrySet[V]) len() int { return len(s.index) }

func (s *entrySet[V]) sorted() []*setEntry[V] {
	if s.dirty {
		sort.Slice(s.entries, func(i, j int) bool {
			a, b := s.entries[i], s.entries[j]
			if a.priority != b.priority {
				return a.priority < b.priority
			}
			if a.style != b.style {
				return a.style < b.style
			}
			return a.seq < b.seq
		})
		s.dirty = false
	}
	return s.entries
}

// snapshot copies the current entries into a pooled buffer. Callers must
// release the buffer when the iteration finishes and must not retain it.
func (s *entrySet[V]) snapshot() []*setEntry[V] {
	var buf []*setEntry[V]
	if n := len(s.free); n > 0 {
		buf = s.free[n-1]
		s.free = s.free[:n-1]
	}
	return append(buf[:0], s.sorted()...)
}

func (s *entrySet[V]) release(buf []*setEntry[V]) {
	s.free = append(s.free, buf)
}
