package binding

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	name string
	next *payload
	pad  [4]int64
}

type anchor struct {
	label string
}

type countingLink struct {
	id  int
	log *[]int
}

func (c countingLink) Unlink() { *c.log = append(*c.log, c.id) }

func TestGetOrCreateIdentity(t *testing.T) {
	s := NewStore[*anchor]()
	a := &payload{name: "a"}
	b := &payload{name: "b"}

	ba, err := s.GetOrCreate(a)
	require.NoError(t, err)
	ba2, err := s.GetOrCreate(a)
	require.NoError(t, err)
	bb, err := s.GetOrCreate(b)
	require.NoError(t, err)

	assert.Same(t, ba, ba2)
	assert.NotSame(t, ba, bb)
	assert.Equal(t, 2, s.Size())
	assert.Same(t, a, ba.Object().(*payload))
	assert.True(t, ba.Alive())

	got, err := s.Get(b)
	require.NoError(t, err)
	assert.Same(t, bb, got)

	got, err = s.Get(&payload{})
	require.NoError(t, err)
	assert.Nil(t, got)
	runtime.KeepAlive(a)
	runtime.KeepAlive(b)
}

type header struct {
	id   int64
	meta *header
}

type envelope struct {
	head header
	body *envelope
}

func TestInteriorPointerIsDistinctObject(t *testing.T) {
	s := NewStore[*anchor]()
	env := &envelope{}
	env.body = env

	outer, err := s.GetOrCreate(env)
	require.NoError(t, err)
	inner, err := s.GetOrCreate(&env.head)
	require.NoError(t, err)

	assert.NotSame(t, outer, inner, "same address, different pointer types")
	assert.Equal(t, 2, s.Size())
	assert.IsType(t, (*envelope)(nil), outer.Object())
	assert.IsType(t, (*header)(nil), inner.Object())
	assert.Same(t, env, outer.Object().(*envelope))
	assert.Same(t, &env.head, inner.Object().(*header))

	got, err := s.Get(&env.head)
	require.NoError(t, err)
	assert.Same(t, inner, got)
	got, err = s.Get(env)
	require.NoError(t, err)
	assert.Same(t, outer, got)
	runtime.KeepAlive(env)
}

func TestInvalidObjects(t *testing.T) {
	s := NewStore[*anchor]()
	var nilPtr *payload
	tests := []struct {
		name string
		obj  any
	}{
		{"nil", nil},
		{"non-pointer", payload{}},
		{"int", 42},
		{"typed nil", nilPtr},
		{"zero-size", &struct{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.GetOrCreate(tt.obj)
			assert.ErrorIs(t, err, ErrInvalidObject)
			assert.ErrorIs(t, Validate(tt.obj), ErrInvalidObject)
		})
	}
	assert.Zero(t, s.Size())
}

func TestResizeKeepsBindings(t *testing.T) {
	s := NewStore[*anchor](WithInitialBuckets(4))
	objs := make([]*payload, 200)
	bindings := make([]*Binding[*anchor], 200)
	for i := range objs {
		objs[i] = &payload{}
		b, err := s.GetOrCreate(objs[i])
		require.NoError(t, err)
		bindings[i] = b
	}
	assert.Equal(t, 200, s.Size())
	for i, o := range objs {
		b, err := s.Get(o)
		require.NoError(t, err)
		assert.Same(t, bindings[i], b)
	}
	runtime.KeepAlive(objs)
}

//go:noinline
func bindTemporary(s *Store[*anchor], log *[]int) *Binding[*anchor] {
	obj := &payload{name: "temporary"}
	obj.next = obj
	b, err := s.GetOrCreate(obj)
	if err != nil {
		panic(err)
	}
	b.Anchor = &anchor{label: "temporary"}
	b.AddBacklink(countingLink{id: 1, log: log})
	b.AddBacklink(countingLink{id: 2, log: log})
	return b
}

func TestReclaimReleasesDeadBinding(t *testing.T) {
	for _, strategy := range []LinkStrategy{LinkArray, LinkList} {
		t.Run(strategy.String(), func(t *testing.T) {
			s := NewStore[*anchor](WithLinkStrategy(strategy))
			keep := &payload{name: "keep"}
			kept, err := s.GetOrCreate(keep)
			require.NoError(t, err)

			var unlinked []int
			b := bindTemporary(s, &unlinked)
			assert.Equal(t, 2, s.Size())
			assert.Equal(t, 2, b.Backlinks())

			var released []string
			require.Eventually(t, func() bool {
				runtime.GC()
				s.Sweep()
				s.Reclaim(func(r *Binding[*anchor]) { released = append(released, r.Anchor.label) })
				return len(released) > 0
			}, 5*time.Second, 10*time.Millisecond)

			assert.Equal(t, []string{"temporary"}, released)
			assert.Equal(t, []int{1, 2}, unlinked, "backlinks unlinked oldest first")
			assert.True(t, b.Released())
			assert.False(t, b.Alive())
			assert.Nil(t, b.Anchor)
			assert.Nil(t, b.Object())
			assert.Equal(t, 1, s.Size())
			assert.False(t, kept.Released())
			assert.Zero(t, s.Reclaim(nil), "released at most once")
			runtime.KeepAlive(keep)
		})
	}
}

func TestReset(t *testing.T) {
	s := NewStore[*anchor]()
	obj := &payload{}
	b1, err := s.GetOrCreate(obj)
	require.NoError(t, err)

	s.Reset()
	assert.Zero(t, s.Size())
	assert.True(t, b1.Released())

	got, err := s.Get(obj)
	require.NoError(t, err)
	assert.Nil(t, got)

	b2, err := s.GetOrCreate(obj)
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
	runtime.KeepAlive(obj)
}

func TestReclaimQueueConcurrentEnqueue(t *testing.T) {
	q := newReclaimQueue[*anchor]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(&Binding[*anchor]{})
			}
		}()
	}
	wg.Wait()

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a pending signal")
	}
	assert.Equal(t, 800, q.Len())
	assert.Len(t, q.Drain(), 800)
	assert.Nil(t, q.Drain())
}

func TestParseLinkStrategy(t *testing.T) {
	s, err := ParseLinkStrategy("list")
	require.NoError(t, err)
	assert.Equal(t, LinkList, s)

	s, err = ParseLinkStrategy("")
	require.NoError(t, err)
	assert.Equal(t, LinkArray, s)

	_, err = ParseLinkStrategy("tree")
	assert.Error(t, err)

	var u LinkStrategy
	require.NoError(t, u.UnmarshalText([]byte("LIST")))
	assert.Equal(t, LinkList, u)
}
