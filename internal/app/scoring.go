package app

import (
	"math"
	"sort"
	"time"

	"quizzler-live/internal/domain"
)

// awardPoints converts (elapsed, limit) into the round award for a correct
// answer: base at elapsed=0, decaying linearly to the floor at the deadline.
// Faster correct answers never score fewer points than slower ones.
func awardPoints(base, min int, elapsed, limit time.Duration) int {
	if limit <= 0 {
		return min
	}
	remaining := 1 - float64(elapsed)/float64(limit)
	if remaining < 0 {
		remaining = 0
	}
	return min + int(math.Round(float64(base-min)*remaining))
}

// roundLeaderboard builds the round's ranking: points descending, elapsed
// ascending on ties, truncated to the top five. It also counts correct answers
// for the host's results summary.
func roundLeaderboard(rd *round, players map[string]*participant, former map[string]int) ([]domain.RoundStanding, int) {
	type ranked struct {
		standing domain.RoundStanding
		elapsed  time.Duration
	}
	entries := make([]ranked, 0, len(rd.answers))
	correctCount := 0
	for name, a := range rd.answers {
		if a.correct {
			correctCount++
		}
		total := a.points
		if p, connected := players[name]; connected {
			total = p.score
		} else if score, departed := former[name]; departed {
			total = score
		}
		entries = append(entries, ranked{
			standing: domain.RoundStanding{Username: name, Points: a.points, Total: total},
			elapsed:  a.elapsed,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].standing.Points != entries[j].standing.Points {
			return entries[i].standing.Points > entries[j].standing.Points
		}
		if entries[i].elapsed != entries[j].elapsed {
			return entries[i].elapsed < entries[j].elapsed
		}
		return entries[i].standing.Username < entries[j].standing.Username
	})
	if len(entries) > 5 {
		entries = entries[:5]
	}
	top := make([]domain.RoundStanding, len(entries))
	for i, e := range entries {
		top[i] = e.standing
	}
	return top, correctCount
}
