package ir

import (
	"math/bits"
	"strconv"
	"strings"
)

// MaxParameters is the largest parameter count a property may declare.
// ParamSet is a single machine word.
const MaxParameters = 64

// Parameter is a named placeholder of a parametric property.
// Index is dense in 0..N-1 and defines the canonical ordering.
type Parameter struct {
	Index int
	Name  string
}

// ParamSet is a set of parameter indices encoded as a bitmask.
// Bit i set means parameter i is a member. Iteration order is ascending
// index, which is the canonical order of every compressed binding array.
type ParamSet uint64

// EmptySet is the parameter set of the empty instance.
const EmptySet ParamSet = 0

// SetOf returns the set containing the given parameter indices.
func SetOf(indices ...int) ParamSet {
	var s ParamSet
	for _, i := range indices {
		s |= 1 << uint(i)
	}
	return s
}

// Has reports whether parameter index i is in s.
func (s ParamSet) Has(i int) bool { return s&(1<<uint(i)) != 0 }

// With returns s plus parameter index i.
func (s ParamSet) With(i int) ParamSet { return s | 1<<uint(i) }

// Union returns s ∪ o.
func (s ParamSet) Union(o ParamSet) ParamSet { return s | o }

// Intersect returns s ∩ o.
func (s ParamSet) Intersect(o ParamSet) ParamSet { return s & o }

// Minus returns s \ o.
func (s ParamSet) Minus(o ParamSet) ParamSet { return s &^ o }

// IsEmpty reports whether s has no members.
func (s ParamSet) IsEmpty() bool { return s == 0 }

// SubsetOf reports whether s ⊆ o.
func (s ParamSet) SubsetOf(o ParamSet) bool { return s&^o == 0 }

// StrictSubsetOf reports whether s ⊊ o.
func (s ParamSet) StrictSubsetOf(o ParamSet) bool { return s != o && s.SubsetOf(o) }

// Len returns the number of members.
func (s ParamSet) Len() int { return bits.OnesCount64(uint64(s)) }

// Indices returns the members in ascending order.
func (s ParamSet) Indices() []int {
	out := make([]int, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, bits.TrailingZeros64(v))
	}
	return out
}

// Position returns the position of parameter i in the compressed binding
// array of s, or -1 when i is not a member.
func (s ParamSet) Position(i int) int {
	if !s.Has(i) {
		return -1
	}
	return bits.OnesCount64(uint64(s) & (1<<uint(i) - 1))
}

// Positions translates sub into positions of the compressed binding array
// of s. sub must be a subset of s.
func (s ParamSet) Positions(sub ParamSet) []int {
	if !sub.SubsetOf(s) {
		panic("ir: Positions called with a non-subset")
	}
	out := make([]int, 0, sub.Len())
	for v := uint64(sub); v != 0; v &= v - 1 {
		out = append(out, s.Position(bits.TrailingZeros64(v)))
	}
	return out
}

// Compare orders sets by size, then by numeric value. It is the canonical
// ordering used for every table derived from a property.
func (s ParamSet) Compare(o ParamSet) int {
	if a, b := s.Len(), o.Len(); a != b {
		if a < b {
			return -1
		}
		return 1
	}
	switch {
	case s < o:
		return -1
	case s > o:
		return 1
	}
	return 0
}

// String renders s as index list, e.g. "{0,2}".
func (s ParamSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for n, i := range s.Indices() {
		if n > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(i))
	}
	b.WriteByte('}')
	return b.String()
}

// Format renders s with parameter names, e.g. "{m,c}".
func (s ParamSet) Format(params []*Parameter) string {
	var b strings.Builder
	b.WriteByte('{')
	for n, i := range s.Indices() {
		if n > 0 {
			b.WriteByte(',')
		}
		if i < len(params) {
			b.WriteString(params[i].Name)
		} else {
			b.WriteString(strconv.Itoa(i))
		}
	}
	b.WriteByte('}')
	return b.String()
}
