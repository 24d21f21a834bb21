package pattern

import "sort"

// overlap computes the normalized set overlap between two feature sets:
// intersection size divided by union size. Equal sets score 1.0.
func overlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, f := range a {
		set[f] = true
	}
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, f := range b {
		if seen[f] {
			continue
		}
		seen[f] = true
		if set[f] {
			inter++
		}
	}
	union := len(set) + len(seen) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// coarsen drops a level-proportional fraction of the features, keeping a
// deterministic sorted prefix so coarse levels are stable across runs.
func coarsen(features []string, level, levels int) []string {
	if level <= 0 {
		return features
	}
	keep := len(features) * (levels - level) / levels
	if keep < 1 {
		keep = 1
	}
	sorted := append([]string(nil), features...)
	sort.Strings(sorted)
	return sorted[:keep]
}
