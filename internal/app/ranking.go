package app

import (
	"sort"

	"trivia-match/internal/domain"
)

// Rank orders players by score descending, then by total response time
// ascending. Equal players keep their input order. players is not modified.
func Rank(players []domain.Player) []domain.Standing {
	ordered := make([]domain.Player, len(players))
	copy(ordered, players)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].TotalResponseTimeMs < ordered[j].TotalResponseTimeMs
	})

	standings := make([]domain.Standing, len(ordered))
	for i, p := range ordered {
		standings[i] = domain.Standing{
			Position:            i + 1,
			PlayerID:            p.ID,
			Name:                p.Name,
			Unit:                p.Unit,
			Score:               p.Score,
			TotalResponseTimeMs: p.TotalResponseTimeMs,
		}
	}
	return standings
}
