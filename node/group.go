package node

import (
	"sort"

	"github.com/dwhitmore/beacon/message"
)

// entry is one reference-counted callback in a bucket. Registering the
// same callback value again bumps count instead of adding a second entry,
// so a callback fires at most once per emission no matter how many times
// it was registered.
type entry struct {
	key      any
	count    int
	priority int
	style    int
	seq      uint64
	invoke   func(addr message.Address, msg message.Message)
}

// bucket is an ordered, reference-counted callback set. Ordering is
// (priority, style, registration sequence), rebuilt lazily when the set
// changes.
type bucket struct {
	entries []*entry
	index   map[any]*entry
	dirty   bool
}

func newBucket() *bucket {
	return &bucket{index: make(map[any]*entry)}
}

func (b *bucket) add(key any, priority, style int, seq uint64, invoke func(message.Address, message.Message)) *entry {
	if e, ok := b.index[key]; ok {
		e.count++
		return e
	}
	e := &entry{key: key, count: 1, priority: priority, style: style, seq: seq, invoke: invoke}
	b.index[key] = e
	b.entries = append(b.entries, e)
	b.dirty = true
	return e
}

// remove decrements the entry's count and drops it at zero. It reports
// false when the key is no longer present, which callers surface as a
// redundant deregistration.
func (b *bucket) remove(key any) bool {
	e, ok := b.index[key]
	if !ok {
		return false
	}
	e.count--
	if e.count > 0 {
		return true
	}
	delete(b.index, key)
	for i, candidate := range b.entries {
		if candidate == e {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	return true
}

func (b *bucket) empty() bool { return len(b.index) == 0 }

// sorted returns the entries in invocation order, re-sorting only after
// the set changed.
func (b *bucket) sorted() []*entry {
	if b.dirty {
		sort.Slice(b.entries, func(i, j int) bool {
			if b.entries[i].priority != b.entries[j].priority {
				return b.entries[i].priority < b.entries[j].priority
			}
			if b.entries[i].style != b.entries[j].style {
				return b.entries[i].style < b.entries[j].style
			}
			return b.entries[i].seq < b.entries[j].seq
		})
		b.dirty = false
	}
	return b.entries
}

// group holds the buckets for one message type: the per-address targeted
// and broadcast sets plus the shared catch-all. The catch-all bucket
// serves plain untargeted callbacks and the any-address/any-source
// variants alike; the two shapes differ only in whether their invoke
// closure forwards the address.
type group struct {
	catchAll  *bucket
	targeted  map[message.Address]*bucket
	broadcast map[message.Address]*bucket
}

func newGroup() *group {
	return &group{catchAll: newBucket()}
}

func (g *group) targetedBucket(addr message.Address, create bool) *bucket {
	if g.targeted == nil {
		if !create {
			return nil
		}
		g.targeted = make(map[message.Address]*bucket)
	}
	b, ok := g.targeted[addr]
	if !ok {
		if !create {
			return nil
		}
		b = newBucket()
		g.targeted[addr] = b
	}
	return b
}

func (g *group) broadcastBucket(origin message.Address, create bool) *bucket {
	if g.broadcast == nil {
		if !create {
			return nil
		}
		g.broadcast = make(map[message.Address]*bucket)
	}
	b, ok := g.broadcast[origin]
	if !ok {
		if !create {
			return nil
		}
		b = newBucket()
		g.broadcast[origin] = b
	}
	return b
}

