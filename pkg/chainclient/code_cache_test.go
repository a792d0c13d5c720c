package chainclient

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCodeCache tests the CodeCache functionality
func TestCodeCache(t *testing.T) {
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	forwarder := common.HexToAddress("0x00000000000000000000000000000000000000a2")

	t.Run("NewCodeCache", func(t *testing.T) {
		ttl := 60 * time.Second
		cache := NewCodeCache(ttl)

		require.NotNil(t, cache)
		assert.Equal(t, ttl, cache.cacheTTL)
		assert.NotNil(t, cache.cache)
	})

	t.Run("Set and Get", func(t *testing.T) {
		cache := NewCodeCache(1 * time.Second)

		cache.Set(recipient)

		assert.True(t, cache.Get(recipient))
		assert.False(t, cache.Get(forwarder))
	})

	t.Run("TTL expiration", func(t *testing.T) {
		cache := NewCodeCache(10 * time.Millisecond)

		cache.Set(recipient)
		assert.True(t, cache.Get(recipient))

		// Wait for TTL to expire
		time.Sleep(20 * time.Millisecond)

		assert.False(t, cache.Get(recipient))
	})

	t.Run("Clear", func(t *testing.T) {
		cache := NewCodeCache(1 * time.Second)

		cache.Set(recipient)
		cache.Set(forwarder)
		assert.Equal(t, 2, cache.Len())

		cache.Clear()

		assert.False(t, cache.Get(recipient))
		assert.False(t, cache.Get(forwarder))
		assert.Equal(t, 0, cache.Len())
	})
}
