package matching

import (
	"strings"
	"unicode/utf8"

	"ScholarshipScanner/internal/domain"
)

// Strategy names the cascade layer that produced a project match.
type Strategy string

const (
	StrategyExact       Strategy = "exact"
	StrategySubstring   Strategy = "substring"
	StrategyJaccard     Strategy = "jaccard"
	StrategyApproximate Strategy = "approximate"
	StrategyFallback    Strategy = "fallback"
)

// KeyedProject carries a canonical project with its precomputed filtered key.
type KeyedProject struct {
	Project domain.Project
	Key     string
	Tokens  []string
}

// ProjectMatch is the tagged outcome of the cascade.
type ProjectMatch struct {
	Project  domain.Project
	Strategy Strategy
	Score    float64
}

type strategyFunc func(key string, tokens []string, candidates []KeyedProject) (int, float64, bool)

type layer struct {
	name Strategy
	try  strategyFunc
}

// ProjectMatcher picks the single best canonical project for a noisy title,
// trying its layers in order until one succeeds.
type ProjectMatcher struct {
	filter *TermFilter
	layers []layer
}

// NewProjectMatcher builds the exact, substring, Jaccard and approximate layers.
// approxCutoff differs per call site and is never shared implicitly.
func NewProjectMatcher(filter *TermFilter, jaccardCutoff, approxCutoff float64) *ProjectMatcher {
	if filter == nil {
		filter = DefaultTermFilter()
	}
	return &ProjectMatcher{
		filter: filter,
		layers: []layer{
			{name: StrategyExact, try: exactLayer},
			{name: StrategySubstring, try: substringLayer},
			{name: StrategyJaccard, try: jaccardLayer(jaccardCutoff)},
			{name: StrategyApproximate, try: approximateLayer(approxCutoff)},
		},
	}
}

// Keyed precomputes filtered keys so repeated matching against the same set stays cheap.
func (m *ProjectMatcher) Keyed(projects []domain.Project) []KeyedProject {
	keyed := make([]KeyedProject, 0, len(projects))
	for _, p := range projects {
		tokens := m.filter.Tokens(p.Name)
		keyed = append(keyed, KeyedProject{Project: p, Key: strings.Join(tokens, " "), Tokens: tokens})
	}
	return keyed
}

// FilteredKey is the title key the cascade compares; it is empty for titles made
// only of stop words, boilerplate and numbers.
func (m *ProjectMatcher) FilteredKey(title string) string {
	return m.filter.Key(title)
}

// Match runs the cascade over raw projects.
func (m *ProjectMatcher) Match(title string, projects []domain.Project) (ProjectMatch, bool) {
	return m.MatchKeyed(title, m.Keyed(projects))
}

// MatchKeyed runs the cascade over already keyed candidates.
func (m *ProjectMatcher) MatchKeyed(title string, candidates []KeyedProject) (ProjectMatch, bool) {
	tokens := m.filter.Tokens(title)
	if len(tokens) == 0 || len(candidates) == 0 {
		return ProjectMatch{}, false
	}
	key := strings.Join(tokens, " ")

	for _, l := range m.layers {
		if i, score, ok := l.try(key, tokens, candidates); ok {
			return ProjectMatch{Project: candidates[i].Project, Strategy: l.name, Score: score}, true
		}
	}
	return ProjectMatch{}, false
}

func exactLayer(key string, _ []string, candidates []KeyedProject) (int, float64, bool) {
	for i, c := range candidates {
		if c.Key == key {
			return i, 1, true
		}
	}
	return 0, 0, false
}

// substringLayer handles truncated titles: the input is a part of the stored title.
func substringLayer(key string, _ []string, candidates []KeyedProject) (int, float64, bool) {
	for i, c := range candidates {
		if c.Key != "" && strings.Contains(c.Key, key) {
			return i, float64(utf8.RuneCountInString(key)) / float64(utf8.RuneCountInString(c.Key)), true
		}
	}
	return 0, 0, false
}

func jaccardLayer(cutoff float64) strategyFunc {
	return func(_ string, tokens []string, candidates []KeyedProject) (int, float64, bool) {
		best, highest := -1, 0.0
		for i, c := range candidates {
			if score := Jaccard(tokens, c.Tokens); score > highest {
				best, highest = i, score
			}
		}
		if best >= 0 && highest >= cutoff {
			return best, highest, true
		}
		return 0, 0, false
	}
}

func approximateLayer(cutoff float64) strategyFunc {
	return func(key string, _ []string, candidates []KeyedProject) (int, float64, bool) {
		keys := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if c.Key != "" {
				keys = append(keys, c.Key)
			}
		}
		found := CloseMatches(key, keys, 1, cutoff)
		if len(found) == 0 {
			return 0, 0, false
		}
		for i, c := range candidates {
			if c.Key == found[0].Value {
				return i, found[0].Score, true
			}
		}
		return 0, 0, false
	}
}
