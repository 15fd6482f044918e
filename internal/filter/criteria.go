// Package filter selects archive keys and envelopes for CLI listings.
package filter

import (
	"path/filepath"

	"github.com/dyluth/parliament/pkg/parliament"
)

// Criteria defines filtering criteria. All filters are ANDed together and
// empty values match everything.
type Criteria struct {
	ClassGlob string // Glob pattern for the archive class
	ValueGlob string // Glob pattern for the validating attribute's value
	Origin    string // Exact match on the publishing peer, envelopes only
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.ClassGlob != "" || c.ValueGlob != "" || c.Origin != ""
}

// MatchesKey returns true if key satisfies the class and value patterns.
// A malformed pattern matches nothing.
func (c *Criteria) MatchesKey(key parliament.Key) bool {
	return glob(c.ClassGlob, key.Class) && glob(c.ValueGlob, key.Value)
}

// MatchesEnvelope returns true if env satisfies the origin filter and, for
// updates, the key patterns. Other purposes carry no single key and pass the
// key patterns.
func (c *Criteria) MatchesEnvelope(env *parliament.Envelope) bool {
	if c.Origin != "" && env.Origin != c.Origin {
		return false
	}
	if env.Purpose != parliament.PurposeUpdate || (c.ClassGlob == "" && c.ValueGlob == "") {
		return true
	}
	var u parliament.Update
	if err := env.Decode(&u); err != nil {
		return false
	}
	return c.MatchesKey(u.Key())
}

// Keys returns the keys that match, preserving order.
func (c *Criteria) Keys(keys []parliament.Key) []parliament.Key {
	if !c.HasFilters() {
		return keys
	}
	out := make([]parliament.Key, 0, len(keys))
	for _, k := range keys {
		if c.MatchesKey(k) {
			out = append(out, k)
		}
	}
	return out
}

func glob(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	matched, err := filepath.Match(pattern, s)
	return err == nil && matched
}
