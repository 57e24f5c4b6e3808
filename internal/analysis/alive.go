package analysis

import (
	"slices"

	"github.com/roach88/prm/internal/ir"
)

// aliveSets computes, per state, the minimal parameter sets that must stay
// alive for some accepting state to remain reachable. It is a least
// fixpoint over reversed transitions starting at accepting states.
func aliveSets(spec ir.Specification) [][]ir.ParamSet {
	states := spec.States()
	events := spec.BaseEvents()
	alive := make([][]ir.ParamSet, len(states))

	for changed := true; changed; {
		changed = false
		for _, s := range states {
			for _, e := range events {
				t := s.Successor(e)
				if t == nil {
					continue
				}
				if t.Accepting && insertMinimal(&alive[s.Index], e.Params) {
					changed = true
				}
				for _, a := range slices.Clone(alive[t.Index]) {
					if insertMinimal(&alive[s.Index], a.Union(e.Params)) {
						changed = true
					}
				}
			}
		}
	}
	return alive
}

// insertMinimal adds set to list unless a subset of it is already present,
// dropping every superset it replaces. It reports whether list changed.
func insertMinimal(list *[]ir.ParamSet, set ir.ParamSet) bool {
	for _, have := range *list {
		if have.SubsetOf(set) {
			return false
		}
	}
	kept := (*list)[:0]
	for _, have := range *list {
		if !set.SubsetOf(have) {
			kept = append(kept, have)
		}
	}
	kept = append(kept, set)
	slices.SortFunc(kept, ir.ParamSet.Compare)
	*list = kept
	return true
}
