package memory

import (
	"context"
	"sync"

	"quizzler-live/internal/domain"
)

// ResultsStore keeps final scoreboards in process memory. It serves as both
// the archive sink and the loader behind the results endpoint when no external
// storage is configured.
type ResultsStore struct {
	mu     sync.RWMutex
	boards map[string]domain.Scoreboard
}

func NewResultsStore() *ResultsStore {
	return &ResultsStore{boards: make(map[string]domain.Scoreboard)}
}

func (s *ResultsStore) Archive(_ context.Context, board domain.Scoreboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[board.RoomCode] = board
	return nil
}

func (s *ResultsStore) LoadScoreboard(_ context.Context, code string) (domain.Scoreboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, ok := s.boards[code]
	if !ok {
		return domain.Scoreboard{}, domain.ErrResultsNotFound
	}
	return board, nil
}
