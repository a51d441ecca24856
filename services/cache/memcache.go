package cache

import (
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/dealalert/logger"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	prefix string
	log    *logger.Logger
}

// NewMemcacheService creates a new memcache service. Keys are namespaced
// with prefix so several deployments can share one memcached.
func NewMemcacheService(serverAddr, prefix string) *MemcacheService {
	client := memcache.New(strings.Split(serverAddr, ",")...)
	client.Timeout = 500 * time.Millisecond

	return &MemcacheService{
		client: client,
		prefix: prefix,
		log:    logger.ForCache(),
	}
}

func (m *MemcacheService) key(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + ":" + key
}

// Ping checks that every configured server is reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(m.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		// An unreachable server reads as "not blocked", so make it visible
		m.log.Warn().Err(err).Str("key", key).Msg("Memcache get failed")
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		return err
	}

	m.log.Debug().Str("key", key).Dur("ttl", expiration).Msg("Cached value")
	return nil
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(m.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
