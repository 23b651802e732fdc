package results

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Open builds the Recorder named by backend: "memory" or "redis".
func Open(ctx context.Context, backend, redisURL string, ttl time.Duration) (Recorder, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "memory":
		return NewMemoryRecorder(defaultMaxEntries), nil
	case "redis":
		rdb, err := NewRedisClient(ctx, redisURL)
		if err != nil {
			return nil, err
		}
		return NewRedisRecorder(rdb, WithTTL(ttl), WithChannel("catalogd:ingest:done")), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
