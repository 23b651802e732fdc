package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/catalogd/internal/domain/model"
)

const (
	defaultKeyPrefix = "catalogd:job:"
	defaultIndexKey  = "catalogd:jobs"
	defaultTTL       = 7 * 24 * time.Hour
)

// RedisRecorder stores each job as a JSON string with a TTL and keeps a
// sorted index by enqueue time. Finished jobs are also published on a
// channel when one is configured.
type RedisRecorder struct {
	rdb        *redis.Client
	prefix     string
	index      string
	channel    string
	ttl        time.Duration
	maxEntries int64
}

// RedisOption applies a configuration option to the RedisRecorder.
type RedisOption func(*RedisRecorder)

// WithTTL sets how long a job stays readable.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisRecorder) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces keys, mostly so tests do not collide.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisRecorder) {
		if prefix != "" {
			r.prefix = prefix + "job:"
			r.index = prefix + "jobs"
		}
	}
}

// WithChannel publishes every finished job on channel.
func WithChannel(channel string) RedisOption {
	return func(r *RedisRecorder) { r.channel = channel }
}

// WithMaxEntries bounds the index.
func WithMaxEntries(n int) RedisOption {
	return func(r *RedisRecorder) {
		if n > 0 {
			r.maxEntries = int64(n)
		}
	}
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisRecorder wraps an existing client.
func NewRedisRecorder(rdb *redis.Client, opts ...RedisOption) *RedisRecorder {
	r := &RedisRecorder{
		rdb:        rdb,
		prefix:     defaultKeyPrefix,
		index:      defaultIndexKey,
		ttl:        defaultTTL,
		maxEntries: defaultMaxEntries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRecorder) key(id string) string { return r.prefix + id }

func (r *RedisRecorder) Save(ctx context.Context, st model.JobStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", st.ID, err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.key(st.ID), data, r.ttl)
	pipe.ZAdd(ctx, r.index, redis.Z{Score: float64(st.EnqueuedAt.UnixNano()), Member: st.ID})
	pipe.ZRemRangeByRank(ctx, r.index, 0, -r.maxEntries-1)
	if st.State == model.JobDone && r.channel != "" {
		pipe.Publish(ctx, r.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", st.ID, err)
	}
	return nil
}

func (r *RedisRecorder) Get(ctx context.Context, id string) (model.JobStatus, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.JobStatus{}, ErrNotFound
	}
	if err != nil {
		return model.JobStatus{}, fmt.Errorf("get job %s: %w", id, err)
	}
	var st model.JobStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return model.JobStatus{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return st, nil
}

func (r *RedisRecorder) Recent(ctx context.Context, n int) ([]model.JobStatus, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n) - 1
	}
	ids, err := r.rdb.ZRevRange(ctx, r.index, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if len(ids) == 0 {
		return []model.JobStatus{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	vals, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	out := make([]model.JobStatus, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// expired while still indexed
			continue
		}
		var st model.JobStatus
		if err := json.Unmarshal([]byte(s), &st); err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

// Close closes the underlying client.
func (r *RedisRecorder) Close() error {
	return r.rdb.Close()
}
