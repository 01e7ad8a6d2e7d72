package rewrite

import (
	"sort"
	"strings"
)

// ViteReact rewrites entry documents produced by Vite's React template,
// where built assets are referenced by root-relative paths ("/assets/x.js").
type ViteReact struct{}

// Rewrite replaces every literal occurrence of each source path with its
// published URL. A document containing zero occurrences is returned
// unchanged. Paths are processed in sorted order for determinism.
func (ViteReact) Rewrite(doc string, replacements map[string]string, rootRelative bool) string {
	paths := make([]string, 0, len(replacements))
	for path := range replacements {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		pattern := path
		if rootRelative {
			pattern = "/" + path
		}
		doc = strings.ReplaceAll(doc, pattern, replacements[path])
	}
	return doc
}
