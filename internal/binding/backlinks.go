package binding

import (
	"fmt"
	"strings"
)

// Backlink undoes one registration of a binding in an engine structure,
// such as a child entry keyed by the binding in a node's child map.
type Backlink interface {
	Unlink()
}

// LinkStrategy selects how a binding stores its backlinks.
type LinkStrategy int

const (
	// LinkArray keeps backlinks in a growable slice.
	LinkArray LinkStrategy = iota
	// LinkList keeps backlinks in a singly linked list.
	LinkList
)

func (s LinkStrategy) String() string {
	switch s {
	case LinkArray:
		return "array"
	case LinkList:
		return "list"
	default:
		return fmt.Sprintf("LinkStrategy(%d)", int(s))
	}
}

// ParseLinkStrategy parses "array" or "list".
func ParseLinkStrategy(s string) (LinkStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "array":
		return LinkArray, nil
	case "list":
		return LinkList, nil
	default:
		return 0, fmt.Errorf("unknown link strategy %q (want array or list)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s LinkStrategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LinkStrategy) UnmarshalText(text []byte) error {
	v, err := ParseLinkStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type backlinks interface {
	add(Backlink)
	each(func(Backlink))
	len() int
}

func newBacklinks(s LinkStrategy) backlinks {
	if s == LinkList {
		return &listLinks{}
	}
	return &arrayLinks{}
}

type arrayLinks struct {
	links []Backlink
}

func (a *arrayLinks) add(l Backlink) { a.links = append(a.links, l) }
func (a *arrayLinks) len() int       { return len(a.links) }

func (a *arrayLinks) each(fn func(Backlink)) {
	for _, l := range a.links {
		fn(l)
	}
}

type listLinks struct {
	head *linkNode
	n    int
}

type linkNode struct {
	link Backlink
	next *linkNode
}

func (l *listLinks) add(b Backlink) {
	l.head = &linkNode{link: b, next: l.head}
	l.n++
}

func (l *listLinks) len() int { return l.n }

// each visits links oldest first, matching arrayLinks.
func (l *listLinks) each(fn func(Backlink)) {
	var stack []Backlink
	for n := l.head; n != nil; n = n.next {
		stack = append(stack, n.link)
	}
	for i := len(stack) - 1; i >= 0; i-- {
		fn(stack[i])
	}
}
