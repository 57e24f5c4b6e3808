package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSpecification = "prm/specification/v1"
	DomainMatch         = "prm/match/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalSpecification renders spec as a canonical JSON-ready value.
// Two specifications with the same structure render identically.
func CanonicalSpecification(spec Specification) map[string]any {
	params := make([]any, 0, len(spec.Parameters()))
	for _, p := range spec.Parameters() {
		params = append(params, p.Name)
	}
	events := make(map[string]any, len(spec.BaseEvents()))
	for _, e := range spec.BaseEvents() {
		names := make([]any, 0, e.Arity())
		for _, p := range e.Declared() {
			names = append(names, p.Name)
		}
		events[e.Name] = names
	}
	states := make(map[string]any, len(spec.States()))
	for _, s := range spec.States() {
		on := make(map[string]any)
		for _, e := range spec.BaseEvents() {
			if t := s.Successor(e); t != nil {
				on[e.Name] = t.Name
			}
		}
		states[s.Name] = map[string]any{
			"accepting": s.Accepting,
			"on":        on,
		}
	}
	out := map[string]any{
		"name":       spec.Name(),
		"parameters": params,
		"events":     events,
		"states":     states,
	}
	if init := spec.InitialState(); init != nil {
		out["initial"] = init.Name
	}
	return out
}

// SpecHash computes the content hash of a specification. Recorded runs
// carry it so matches can be traced back to the exact property.
func SpecHash(spec Specification) (string, error) {
	canonical, err := MarshalCanonical(CanonicalSpecification(spec))
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpecification, canonical), nil
}

// MatchID computes the content-addressed id of a recorded match. bindings
// maps parameter names to object labels.
func MatchID(runID, property, state string, seq int64, bindings map[string]string) (string, error) {
	obj := map[string]any{
		"run_id":   runID,
		"property": property,
		"state":    state,
		"seq":      seq,
		"bindings": bindings,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("MatchID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMatch, canonical), nil
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSpecHash(spec Specification) string {
	h, err := SpecHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}

// MustMatchID is like MatchID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMatchID(runID, property, state string, seq int64, bindings map[string]string) string {
	id, err := MatchID(runID, property, state, seq, bindings)
	if err != nil {
		panic(err)
	}
	return id
}
