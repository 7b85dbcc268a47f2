package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Liveness marks live room codes in Redis so operators (and sibling services)
// can see which codes are active. Markers are best-effort; the in-process
// directory remains the source of truth for routing.
type Liveness struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLiveness(client *redis.Client, ttl time.Duration) *Liveness {
	return &Liveness{client: client, ttl: ttl}
}

func (l *Liveness) MarkLive(code string) {
	_ = l.client.Set(context.Background(), l.key(code), "1", l.ttl).Err()
}

func (l *Liveness) ClearLive(code string) {
	_ = l.client.Del(context.Background(), l.key(code)).Err()
}

func (l *Liveness) key(code string) string {
	return "live:room:" + code
}
