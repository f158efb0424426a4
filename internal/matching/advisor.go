package matching

import "slices"

// AdvisorIndex maps comparison keys to the advisor names stored under them.
// Several stored spellings may share one key.
type AdvisorIndex struct {
	keys      []string
	originals map[string][]string
	limit     int
	cutoff    float64
}

// NewAdvisorIndex keys the canonical advisor names once.
func NewAdvisorIndex(names []string, limit int, cutoff float64) *AdvisorIndex {
	idx := &AdvisorIndex{
		originals: make(map[string][]string, len(names)),
		limit:     limit,
		cutoff:    cutoff,
	}
	for _, name := range names {
		key := Key(name)
		if key == "" {
			continue
		}
		known, ok := idx.originals[key]
		if !ok {
			idx.keys = append(idx.keys, key)
		}
		if !slices.Contains(known, name) {
			idx.originals[key] = append(known, name)
		}
	}
	return idx
}

// Len is the number of distinct advisor keys.
func (a *AdvisorIndex) Len() int {
	return len(a.keys)
}

// Resolve returns the stored advisor names that look like name. It never invents a name.
func (a *AdvisorIndex) Resolve(name string) []string {
	key := Key(name)
	if key == "" || len(a.keys) == 0 {
		return nil
	}

	var resolved []string
	for _, m := range CloseMatches(key, a.keys, a.limit, a.cutoff) {
		for _, original := range a.originals[m.Value] {
			if !slices.Contains(resolved, original) {
				resolved = append(resolved, original)
			}
		}
	}
	return resolved
}
