package matching

import (
	"sort"

	"github.com/pmezard/go-difflib/difflib"
)

// Scored is a possibility that passed a similarity cutoff.
type Scored struct {
	Value string
	Score float64
}

// Ratio is the sequence-matcher similarity of two keys: 2*M/T over runes.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runeSeq(a), runeSeq(b)).Ratio()
}

// CloseMatches returns up to n possibilities whose ratio against word is at least cutoff,
// best first. Ties keep the larger string first so results are stable across runs.
func CloseMatches(word string, possibilities []string, n int, cutoff float64) []Scored {
	if n <= 0 || len(possibilities) == 0 {
		return nil
	}

	m := difflib.NewMatcher(nil, nil)
	m.SetSeq2(runeSeq(word))

	var found []Scored
	for _, p := range possibilities {
		m.SetSeq1(runeSeq(p))
		if m.RealQuickRatio() < cutoff || m.QuickRatio() < cutoff {
			continue
		}
		if score := m.Ratio(); score >= cutoff {
			found = append(found, Scored{Value: p, Score: score})
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Score != found[j].Score {
			return found[i].Score > found[j].Score
		}
		return found[i].Value > found[j].Value
	})
	if len(found) > n {
		found = found[:n]
	}
	return found
}

// Jaccard is |a ∩ b| / |a ∪ b| over token sets. Empty sets score zero.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union := len(set)
	inter := 0
	seen := make(map[string]bool, len(b))
	for _, t := range b {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func runeSeq(s string) []string {
	seq := make([]string, 0, len(s))
	for _, r := range s {
		seq = append(seq, string(r))
	}
	return seq
}
