package sim

import "strings"

// Filter is a predicate over agents. Key identifies the predicate for caching:
// two filters with the same non-empty Key must select the same agents.
// Filters with an empty Key are never cached.
type Filter struct {
	Key   string
	Match func(a *Agent) bool
}

// Matches reports whether a satisfies the filter. A filter without Match selects everything.
func (f Filter) Matches(a *Agent) bool {
	if f.Match == nil {
		return true
	}
	return f.Match(a)
}

// All selects every agent.
func All() Filter {
	return Filter{Key: "all"}
}

// NamePrefix selects agents whose name starts with prefix.
func NamePrefix(prefix string) Filter {
	return Filter{
		Key: "prefix:" + prefix,
		Match: func(a *Agent) bool {
			return strings.HasPrefix(a.Name, prefix)
		},
	}
}

// Where builds a cacheable filter from a key and a predicate.
func Where(key string, match func(a *Agent) bool) Filter {
	return Filter{Key: key, Match: match}
}
