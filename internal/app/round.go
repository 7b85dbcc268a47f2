package app

import (
	"strings"
	"time"

	"quizzler-live/internal/domain"
)

// round holds the state of one broadcast question. It lives under the room
// lock; the only external touchpoint is the deadline timer, whose callback
// re-acquires the lock and re-validates before acting.
type round struct {
	question  string
	options   []string
	correct   int
	limit     time.Duration
	startedAt time.Time
	timer     *time.Timer
	answers   map[string]*answer
	closed    bool
}

// answer is one player's recorded submission; at most one per player per round.
type answer struct {
	option  int
	elapsed time.Duration
	correct bool
	points  int
}

func validateQuestion(text string, options []string, correctIdx int, limit time.Duration) error {
	if strings.TrimSpace(text) == "" {
		return domain.ErrEmptyQuestion
	}
	nonEmpty := 0
	for _, opt := range options {
		if strings.TrimSpace(opt) != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return domain.ErrNotEnoughOptions
	}
	if correctIdx < 0 || correctIdx >= len(options) {
		return domain.ErrCorrectOutOfRange
	}
	if limit <= 0 {
		return domain.ErrInvalidTimeLimit
	}
	return nil
}
