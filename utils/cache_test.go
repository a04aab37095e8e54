package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

// TestRedisCacheRoundTrip tests set, get, expiry and delete.
func TestRedisCacheRoundTrip(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	var got map[string]int
	assert.ErrorIs(t, cache.Get(ctx, CacheKeyAdminStats, &got), ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, CacheKeyAdminStats, map[string]int{"total_books": 2}, time.Minute))
	require.NoError(t, cache.Get(ctx, CacheKeyAdminStats, &got))
	assert.Equal(t, 2, got["total_books"])

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, CacheKeyAdminStats, &got), ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, CacheKeyBookList, []int{1}, time.Minute))
	require.NoError(t, cache.Delete(ctx, CacheKeyBookList, CacheKeyAdminStats))
	assert.False(t, mr.Exists(CacheKeyBookList))
	assert.NoError(t, cache.Delete(ctx))
}

// TestPwd tests bcrypt hashing and verification.
func TestPwd(t *testing.T) {
	hash, err := GetPwd("admin123")
	require.NoError(t, err)
	assert.NotEqual(t, "admin123", hash)
	assert.True(t, CheckPwd("admin123", hash))
	assert.False(t, CheckPwd("admin124", hash))
	assert.False(t, CheckPwd("admin123", "not-a-hash"))
}

// TestNewStorageName tests that names are unique and keep the extension.
func TestNewStorageName(t *testing.T) {
	a := NewStorageName(".pdf")
	b := NewStorageName(".pdf")
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36+4)
	assert.Equal(t, ".pdf", a[36:])
}

// TestSanitizeHeaderFilename tests header-safe names.
func TestSanitizeHeaderFilename(t *testing.T) {
	assert.Equal(t, "download", SanitizeHeaderFilename("  "))
	assert.Equal(t, "evilname.pdf", SanitizeHeaderFilename("evil\r\n\"name.pdf"))
	assert.Equal(t, "book.pdf", SanitizeHeaderFilename("dir/book.pdf"))
}

// TestASCIIFilename tests the quoted filename fallback.
func TestASCIIFilename(t *testing.T) {
	assert.Equal(t, "plain.pdf", ASCIIFilename("plain.pdf"))
	assert.Equal(t, "____.epub", ASCIIFilename("дюна.epub"))
	assert.Equal(t, "caf_.pdf", ASCIIFilename("café.pdf"))
	assert.Equal(t, "download", ASCIIFilename(""))
}
