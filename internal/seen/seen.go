package seen

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix       = "cryptodigest:seen:"
	cleanupInterval = 1 * time.Hour
	dialTimeout     = 5 * time.Second
)

// Store tracks ids of items that were already published. Duplicate avoidance
// is best effort: implementations must degrade rather than fail the worker.
type Store interface {
	Has(ctx context.Context, id string) bool
	Add(ctx context.Context, id string) error
	Close() error
}

// New picks the backend: Redis when a URL is configured and reachable,
// in-memory otherwise. A Redis that cannot be reached at startup is logged
// and the worker carries on with in-memory tracking.
func New(ctx context.Context, redisURL string, ttl time.Duration, logger *logrus.Logger) Store {
	if redisURL == "" {
		logger.Info("No REDIS_URL configured, tracking seen items in memory")
		return NewMemoryStore(ttl)
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("Invalid REDIS_URL, falling back to in-memory tracking")
		return NewMemoryStore(ttl)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = dialTimeout
	}

	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.WithError(err).Warn("Redis unreachable, falling back to in-memory tracking")
		return NewMemoryStore(ttl)
	}

	logger.Info("Using Redis for seen-item tracking")
	return NewRedisStore(client, ttl, logger)
}

// MemoryStore keeps seen ids in a map with periodic retention cleanup.
type MemoryStore struct {
	mu            sync.RWMutex
	ids           map[string]time.Time
	retention     time.Duration
	cleanupTicker *time.Ticker
	stopChan      chan struct{}
	closeOnce     sync.Once
}

func NewMemoryStore(retention time.Duration) *MemoryStore {
	s := &MemoryStore{
		ids:       make(map[string]time.Time),
		retention: retention,
		stopChan:  make(chan struct{}),
	}

	s.cleanupTicker = time.NewTicker(cleanupInterval)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) Has(_ context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.ids[id]
	return exists
}

func (s *MemoryStore) Add(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids[id] = time.Now()
	return nil
}

func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		s.cleanupTicker.Stop()
		close(s.stopChan)
	})
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.retention)
	for id, addedAt := range s.ids {
		if addedAt.Before(cutoff) {
			delete(s.ids, id)
		}
	}
}

// redisClient is the subset of go-redis used by the store.
type redisClient interface {
	Exists(ctx context.Context, keys ...string) *goredis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Close() error
}

// RedisStore keeps seen ids as TTL-expiring keys so the set stays bounded.
// On the first command failure it degrades to in-memory tracking for the
// rest of the process lifetime.
type RedisStore struct {
	client   redisClient
	ttl      time.Duration
	logger   *logrus.Logger
	fallback *MemoryStore

	mu       sync.Mutex
	degraded bool
}

func NewRedisStore(client redisClient, ttl time.Duration, logger *logrus.Logger) *RedisStore {
	return &RedisStore{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		fallback: NewMemoryStore(ttl),
	}
}

func (s *RedisStore) Has(ctx context.Context, id string) bool {
	if s.isDegraded() {
		return s.fallback.Has(ctx, id)
	}

	n, err := s.client.Exists(ctx, keyPrefix+id).Result()
	if err != nil {
		s.degrade(err)
		return s.fallback.Has(ctx, id)
	}
	return n > 0
}

func (s *RedisStore) Add(ctx context.Context, id string) error {
	// Always record in memory too, so a mid-run degrade keeps dedup intact
	// for items published during this process lifetime.
	_ = s.fallback.Add(ctx, id)

	if s.isDegraded() {
		return nil
	}

	if err := s.client.Set(ctx, keyPrefix+id, "1", s.ttl).Err(); err != nil {
		s.degrade(err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	_ = s.fallback.Close()
	return s.client.Close()
}

func (s *RedisStore) isDegraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *RedisStore) degrade(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.degraded {
		s.degraded = true
		s.logger.WithError(err).Warn("Redis error, degrading to in-memory seen tracking")
	}
}
