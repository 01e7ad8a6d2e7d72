// Package rewrite substitutes source asset paths in an entry document with
// their published URLs. One strategy per supported frontend framework.
package rewrite

import "sort"

// Framework identifiers accepted by the deploy endpoint.
const (
	FrameworkViteReact = "vite_react"
)

// Strategy rewrites an entry document for one framework's output convention.
//
// Rewrite is applied incrementally, one asset mapping at a time, over the
// accumulating document. Replacement is literal: every occurrence of the
// source path (prefixed with "/" when rootRelative is true) becomes the
// published URL. Because published URLs carry the remote host they never
// match a later source-path pattern, but strategies must not emit patterns
// that are prefixes of other pending patterns.
type Strategy interface {
	Rewrite(doc string, replacements map[string]string, rootRelative bool) string
}

// Registry maps a framework id to its rewrite strategy. The id is validated
// at the request boundary; the pipeline never sees an unknown framework.
type Registry map[string]Strategy

// DefaultRegistry returns the strategies the platform ships with.
func DefaultRegistry() Registry {
	return Registry{
		FrameworkViteReact: ViteReact{},
	}
}

// Lookup resolves a framework id.
func (r Registry) Lookup(id string) (Strategy, bool) {
	s, ok := r[id]
	return s, ok
}

// IDs returns the registered framework ids, sorted.
func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
