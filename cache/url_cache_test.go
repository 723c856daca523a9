package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestURLCacheKey(t *testing.T) {
	assert.Equal(t, "url:songs/u/1.webm:600", URLCacheKey("songs/u/1.webm", 10*time.Minute))
	assert.NotEqual(t, URLCacheKey("songs/u/cover.webp", time.Hour), URLCacheKey("songs/u/cover.webp", 10*time.Minute))
}

func TestCacheLifetime(t *testing.T) {
	assert.Equal(t, 15*time.Minute, CacheLifetime(time.Hour))
	assert.Equal(t, 150*time.Second, CacheLifetime(10*time.Minute))
	assert.Equal(t, 7500*time.Millisecond, CacheLifetime(30*time.Second))
	assert.Zero(t, CacheLifetime(3*time.Second))
	assert.Zero(t, CacheLifetime(0))
}

func TestCachedURLKeepsMostOfItsValidity(t *testing.T) {
	for _, ttl := range []time.Duration{4 * time.Second, 30 * time.Second, 10 * time.Minute, time.Hour, 24 * time.Hour} {
		// worst case: served from cache just before the entry expires
		remaining := ttl - CacheLifetime(ttl)
		assert.GreaterOrEqual(t, remaining, ttl*3/4, "ttl %s", ttl)
	}
}
