package storage

import "ScholarshipScanner/internal/domain"

type openingKey struct {
	profile string
	kind    string
}

// openSeats returns how many seats of def still need an available row once
// the filled seats counted in taken are subtracted. It consumes taken.
func openSeats(def domain.SlotDefinition, taken map[openingKey]int) int {
	key := openingKey{profile: def.Profile, kind: def.Type}
	n := def.Seats - taken[key]
	if n < 0 {
		taken[key] = -n
		return 0
	}
	taken[key] = 0
	return n
}
