// Package filter decides which OEIS entries are fit to post.
package filter

import "strings"

// DefaultExcluded lists the keywords that mark an entry as dead, duplicated,
// unedited or otherwise not worth showing.
var DefaultExcluded = []string{"dead", "dumb", "dupe", "less", "obsc", "probation", "uned"}

// Policy is a set of excluded keyword tags.
type Policy struct {
	excluded map[string]struct{}
}

// NewPolicy builds a policy from the given tags. Tags are matched case-insensitively.
func NewPolicy(excluded []string) Policy {
	p := Policy{excluded: make(map[string]struct{}, len(excluded))}
	for _, tag := range excluded {
		if tag = normalize(tag); tag != "" {
			p.excluded[tag] = struct{}{}
		}
	}
	return p
}

// DefaultPolicy returns the policy built from DefaultExcluded.
func DefaultPolicy() Policy {
	return NewPolicy(DefaultExcluded)
}

// IsEligible reports whether tags share nothing with the excluded set.
func (p Policy) IsEligible(tags []string) bool {
	return len(p.Matches(tags)) == 0
}

// Matches returns the tags that caused exclusion, in input order.
func (p Policy) Matches(tags []string) []string {
	var hits []string
	for _, tag := range tags {
		if _, ok := p.excluded[normalize(tag)]; ok {
			hits = append(hits, tag)
		}
	}
	return hits
}

// Excluded returns the excluded tags, unordered.
func (p Policy) Excluded() []string {
	out := make([]string, 0, len(p.excluded))
	for tag := range p.excluded {
		out = append(out, tag)
	}
	return out
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
