package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizzler-live/internal/domain"
)

// ScoreboardLoader fetches an archived scoreboard from a backing store.
type ScoreboardLoader interface {
	LoadScoreboard(ctx context.Context, code string) (domain.Scoreboard, error)
}

// ResultsRepository caches archived scoreboards in Redis (JSON per room code)
// and falls back to a loader on cache miss. Concurrent misses for the same
// code collapse into a single load.
type ResultsRepository struct {
	client *redis.Client
	loader ScoreboardLoader
	ttl    time.Duration
	sf     singleflight.Group

	// rndMu guards rnd: loads for distinct codes run concurrently.
	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewResultsRepository(client *redis.Client, loader ScoreboardLoader, ttl time.Duration) *ResultsRepository {
	return &ResultsRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ResultsRepository) LoadScoreboard(ctx context.Context, code string) (domain.Scoreboard, error) {
	if board, ok := r.fromCache(ctx, code); ok {
		return board, nil
	}

	result, err, _ := r.sf.Do(code, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if board, ok := r.fromCache(ctx, code); ok {
			return board, nil
		}

		board, err := r.loader.LoadScoreboard(ctx, code)
		if err != nil {
			return domain.Scoreboard{}, err
		}
		if data, err := json.Marshal(board); err == nil {
			_ = r.client.Set(ctx, r.key(code), data, r.ttlWithJitter()).Err()
		}
		return board, nil
	})
	if err != nil {
		return domain.Scoreboard{}, err
	}
	return result.(domain.Scoreboard), nil
}

func (r *ResultsRepository) fromCache(ctx context.Context, code string) (domain.Scoreboard, bool) {
	data, err := r.client.Get(ctx, r.key(code)).Bytes()
	if err != nil {
		return domain.Scoreboard{}, false
	}
	var board domain.Scoreboard
	if err := json.Unmarshal(data, &board); err != nil {
		return domain.Scoreboard{}, false
	}
	return board, true
}

func (r *ResultsRepository) key(code string) string {
	return "live:results:" + code
}

func (r *ResultsRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	jitter := r.rnd.Int63n(jitterMax + 1)
	r.rndMu.Unlock()
	return r.ttl + time.Duration(jitter)
}
