package matching

import "ScholarshipScanner/internal/domain"

// CandidateGuard rejects a candidate already recorded as approved for the same project.
type CandidateGuard struct {
	cutoff float64
}

// NewCandidateGuard uses cutoff as the minimum ratio for two names to be the same person.
func NewCandidateGuard(cutoff float64) *CandidateGuard {
	return &CandidateGuard{cutoff: cutoff}
}

// IsDuplicate reports whether candidate matches any of existing.
func (g *CandidateGuard) IsDuplicate(candidate string, existing []string) bool {
	if len(existing) == 0 {
		return false
	}
	keys := make([]string, 0, len(existing))
	for _, name := range existing {
		keys = append(keys, Key(name))
	}
	return len(CloseMatches(Key(candidate), keys, 1, g.cutoff)) > 0
}

// AmbiguityFallback decides what to do when the cascade found no project.
type AmbiguityFallback struct{}

// Resolve accepts the advisor's only project and refuses otherwise. The count is
// returned so refusals can be logged with the size of the candidate set.
func (AmbiguityFallback) Resolve(projects []domain.Project) (domain.Project, int, bool) {
	if len(projects) == 1 {
		return projects[0], 1, true
	}
	return domain.Project{}, len(projects), false
}
