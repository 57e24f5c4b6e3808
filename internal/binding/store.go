package binding

import (
	"reflect"
	"runtime"
	"unsafe"
	"weak"
)

const (
	minBuckets = 16
	// Resize when entries exceed 3/4 of the bucket count.
	loadNum, loadDen = 3, 4
)

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	strategy LinkStrategy
	buckets  int
}

// WithLinkStrategy selects the backlink representation of new bindings.
func WithLinkStrategy(s LinkStrategy) StoreOption {
	return func(c *storeConfig) { c.strategy = s }
}

// WithInitialBuckets sizes the hash table; rounded up to a power of two.
func WithInitialBuckets(n int) StoreOption {
	return func(c *storeConfig) { c.buckets = n }
}

// Store maps host objects to bindings by identity without keeping the
// objects alive.
//
// The table is a chained hash table over object addresses. Each lookup
// also inspects one bucket (rotating) for bindings whose object died; a
// resize sweeps the whole table. The runtime additionally reports dead
// objects through cleanups, which are queued for Reclaim.
//
// A dead binding is released exactly once, by Reclaim, whichever signal
// found it first. Until then it stays out of lookups: a new object at the
// same address gets a new binding. Reset bumps a generation so cleanups
// queued for discarded bindings are ignored.
//
// Store is not safe for concurrent use, except that runtime cleanups may
// enqueue from any goroutine.
type Store[A any] struct {
	buckets []*Binding[A]
	size    int
	clean   int
	cfg     storeConfig

	queue   *reclaimQueue[A]
	expired []*Binding[A]
	gen     uint64
}

// NewStore returns an empty store.
func NewStore[A any](opts ...StoreOption) *Store[A] {
	cfg := storeConfig{strategy: LinkArray, buckets: minBuckets}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := minBuckets
	for n < cfg.buckets {
		n <<= 1
	}
	return &Store[A]{
		buckets: make([]*Binding[A], n),
		cfg:     cfg,
		queue:   newReclaimQueue[A](),
	}
}

// Size returns the number of bindings in the table.
func (s *Store[A]) Size() int { return s.size }

// Pending returns the number of bindings known dead but not yet reclaimed,
// including those reported by the runtime.
func (s *Store[A]) Pending() int { return len(s.expired) + s.queue.Len() }

// Signal returns a channel that fires when the runtime reports a dead
// object.
func (s *Store[A]) Signal() <-chan struct{} { return s.queue.Wait() }

func hashAddr(addr uintptr) uint64 {
	h := uint64(addr) >> 3
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return h
}

func (s *Store[A]) index(addr uintptr) int {
	return int(hashAddr(addr) & uint64(len(s.buckets)-1))
}

// Get returns the binding for obj, or nil when obj was never bound or its
// binding was reclaimed.
func (s *Store[A]) Get(obj any) (*Binding[A], error) {
	p, typ, err := identity(obj)
	if err != nil {
		return nil, err
	}
	s.cleaningStep()
	return s.lookup(p, typ), nil
}

// GetOrCreate returns the binding for obj, creating it on first sight.
func (s *Store[A]) GetOrCreate(obj any) (*Binding[A], error) {
	p, typ, err := identity(obj)
	if err != nil {
		return nil, err
	}
	s.cleaningStep()
	if b := s.lookup(p, typ); b != nil {
		return b, nil
	}

	b := &Binding[A]{
		addr:  uintptr(p),
		ref:   weak.Make((*byte)(p)),
		typ:   typ,
		links: newBacklinks(s.cfg.strategy),
		gen:   s.gen,
	}
	b.cleanup = runtime.AddCleanup((*byte)(p), s.queue.Enqueue, b)
	s.insert(b)
	if s.size*loadDen > len(s.buckets)*loadNum {
		s.resize()
	}
	return b, nil
}

// lookup finds the live binding of the object at p viewed as typ. A struct
// and its first field share an address but are distinct objects, so the
// pointer type is part of the identity, as it is for comparisons of any.
func (s *Store[A]) lookup(p unsafe.Pointer, typ reflect.Type) *Binding[A] {
	idx := s.index(uintptr(p))
	var prev *Binding[A]
	for b := s.buckets[idx]; b != nil; {
		next := b.next
		obj := b.ref.Value()
		switch {
		case obj == nil:
			// The address may have been reused by a new object.
			s.unlink(idx, prev, b)
			s.expire(b)
			b = next
			continue
		case unsafe.Pointer(obj) == p && b.typ == typ:
			return b
		}
		prev = b
		b = next
	}
	return nil
}

func (s *Store[A]) insert(b *Binding[A]) {
	idx := s.index(b.addr)
	b.next = s.buckets[idx]
	b.listed = true
	s.buckets[idx] = b
	s.size++
}

func (s *Store[A]) unlink(idx int, prev, b *Binding[A]) {
	if prev == nil {
		s.buckets[idx] = b.next
	} else {
		prev.next = b.next
	}
	b.next = nil
	b.listed = false
	s.size--
}

// remove unlinks b from its bucket if it is still listed.
func (s *Store[A]) remove(b *Binding[A]) {
	if !b.listed {
		return
	}
	idx := s.index(b.addr)
	var prev *Binding[A]
	for cur := s.buckets[idx]; cur != nil; prev, cur = cur, cur.next {
		if cur == b {
			s.unlink(idx, prev, b)
			return
		}
	}
}

func (s *Store[A]) expire(b *Binding[A]) {
	if b.pending || b.released {
		return
	}
	b.pending = true
	s.expired = append(s.expired, b)
}

// cleaningStep inspects one bucket and expires dead bindings in it.
func (s *Store[A]) cleaningStep() {
	s.sweepBucket(s.clean)
	s.clean = (s.clean + 1) & (len(s.buckets) - 1)
}

func (s *Store[A]) sweepBucket(idx int) {
	var prev *Binding[A]
	for b := s.buckets[idx]; b != nil; {
		next := b.next
		if b.ref.Value() == nil {
			s.unlink(idx, prev, b)
			s.expire(b)
		} else {
			prev = b
		}
		b = next
	}
}

// Sweep inspects every bucket and returns how many bindings it expired.
func (s *Store[A]) Sweep() int {
	before := len(s.expired)
	for idx := range s.buckets {
		s.sweepBucket(idx)
	}
	return len(s.expired) - before
}

func (s *Store[A]) resize() {
	s.Sweep()
	if s.size*loadDen <= len(s.buckets)*loadNum {
		return
	}
	old := s.buckets
	s.buckets = make([]*Binding[A], len(old)*2)
	s.size = 0
	s.clean = 0
	for _, head := range old {
		for b := head; b != nil; {
			next := b.next
			s.insert(b)
			b = next
		}
	}
}

// Reclaim releases every binding known dead: those found by cleaning steps
// and sweeps, and those reported by the runtime. For each, in order, it
// unlinks all backlinks, calls fn (which may inspect Anchor), then clears
// Anchor. It returns the number of bindings released.
func (s *Store[A]) Reclaim(fn func(*Binding[A])) int {
	for _, b := range s.queue.Drain() {
		if b.gen != s.gen || b.released {
			continue
		}
		s.remove(b)
		s.expire(b)
	}

	expired := s.expired
	s.expired = nil
	for _, b := range expired {
		s.release(b, fn)
	}
	return len(expired)
}

func (s *Store[A]) release(b *Binding[A], fn func(*Binding[A])) {
	b.links.each(func(l Backlink) { l.Unlink() })
	if fn != nil {
		fn(b)
	}
	var zero A
	b.Anchor = zero
	b.links = newBacklinks(s.cfg.strategy)
	b.pending = false
	b.released = true
	b.cleanup.Stop()
}

// Reset drops every binding without unlinking backlinks; the caller
// discards the structures they point into. Cleanups already queued for
// older bindings are ignored.
func (s *Store[A]) Reset() {
	for idx, head := range s.buckets {
		for b := head; b != nil; b = b.next {
			b.released = true
			b.listed = false
			b.cleanup.Stop()
		}
		s.buckets[idx] = nil
	}
	for _, b := range s.expired {
		b.released = true
		b.cleanup.Stop()
	}
	s.expired = nil
	s.queue.Drain()
	s.size = 0
	s.clean = 0
	s.gen++
}
