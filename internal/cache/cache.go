package cache

import (
	"context"
	"time"
)

// BytesCache — минимальный контракт кэша: и сервисам, и тестам не нужно
// знать про redis.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
