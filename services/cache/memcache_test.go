package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running memcached instance
// If memcached is not available, the test will be skipped
func TestMemcacheService(t *testing.T) {
	mc := NewMemcacheService("localhost:11211", "dealalert_test")
	if err := mc.Ping(); err != nil {
		t.Skip("Memcached is not available, skipping test")
	}

	err := mc.Set("block", []byte("300"), 2*time.Second)
	require.NoError(t, err)

	value, err := mc.Get("block")
	require.NoError(t, err)
	assert.Equal(t, "300", string(value))

	require.NoError(t, mc.Delete("block"))

	_, err = mc.Get("block")
	assert.ErrorIs(t, err, ErrMiss)

	// Deleting twice is fine
	assert.NoError(t, mc.Delete("block"))
}

func TestMemcacheKeyPrefix(t *testing.T) {
	assert.Equal(t, "ns:k", NewMemcacheService("localhost:11211", "ns").key("k"))
	assert.Equal(t, "k", NewMemcacheService("localhost:11211", "").key("k"))
}
