package cache

import (
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache: miss")

// CacheService stores short-lived flags such as fetch blocks
type CacheService interface {
	// Get retrieves a value from the cache, returning ErrMiss when absent
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache; deleting an absent key is not an error
	Delete(key string) error
}
