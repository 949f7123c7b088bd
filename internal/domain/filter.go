package domain

import (
	"fmt"
	"strings"
)

// TargetCriterion describes a set of spots worth an alert. Each non-empty
// dimension must match; empty dimensions match anything.
type TargetCriterion struct {
	// Callsign is an exact callsign or a prefix ending in '*', e.g. "W1*".
	Callsign string   `yaml:"callsign" json:"callsign,omitempty"`
	Bands    []string `yaml:"bands" json:"bands,omitempty"`
	Modes    []string `yaml:"modes" json:"modes,omitempty"`
}

// Validate rejects callsign patterns with a wildcard anywhere but the end.
func (c TargetCriterion) Validate() error {
	pattern := strings.TrimSpace(c.Callsign)
	if i := strings.IndexByte(pattern, '*'); i >= 0 && i != len(pattern)-1 {
		return fmt.Errorf("callsign pattern %q: wildcard is only allowed at the end", c.Callsign)
	}
	return nil
}

// Matches reports whether the spot satisfies every dimension of the criterion.
func (c TargetCriterion) Matches(spot Spot) bool {
	return matchCallsign(c.Callsign, spot.Callsign) &&
		matchSet(c.Bands, string(spot.Band)) &&
		matchSet(c.Modes, string(spot.Mode))
}

// MatchesAny reports whether at least one criterion matches the spot.
// An empty criteria list matches nothing.
func MatchesAny(spot Spot, criteria []TargetCriterion) bool {
	for _, c := range criteria {
		if c.Matches(spot) {
			return true
		}
	}
	return false
}

// matchCallsign compares normalized callsigns; a trailing '*' turns the
// pattern into a prefix match.
func matchCallsign(pattern, call string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return true
	}
	call = NormalizeCallsign(call)
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(call, NormalizeCallsign(prefix))
	}
	return call == NormalizeCallsign(pattern)
}

func matchSet(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), value) {
			return true
		}
	}
	return false
}

// NormalizeCallsign uppercases a callsign and drops everything except A-Z, 0-9 and '/'.
func NormalizeCallsign(call string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '/':
			return r
		default:
			return -1
		}
	}, call)
}
