package extract

import "strings"

// PathMode selects how repository tree paths are transformed.
type PathMode int

const (
	// FullPaths emits each blob path verbatim.
	FullPaths PathMode = iota
	// Segments splits each path on '/' and emits every segment on its own.
	Segments
)

// Paths transforms a flat tree listing into extraction results. Encounter
// order is preserved; duplicate segments across files are left in and collapse
// in the aggregator.
func Paths(paths []string, mode PathMode) []string {
	var results []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if mode == FullPaths {
			results = append(results, p)
			continue
		}
		for _, seg := range strings.Split(p, "/") {
			if seg != "" {
				results = append(results, seg)
			}
		}
	}
	return results
}
