package utils

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/fallenleaves/config"
)

func TestMain(m *testing.M) {
	// no RedisHost: every helper runs on its in-memory fallback
	config.Set(config.AppConfig{JWTSecret: "test-secret", TokenTTLHours: 1})
	os.Exit(m.Run())
}

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock(7)
			n := atomic.AddInt32(&inside, 1)
			for {
				old := atomic.LoadInt32(&maxInside)
				if n <= old || atomic.CompareAndSwapInt32(&maxInside, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := NewKeyedMutex()
	unlockA := km.Lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock(2)
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	unlockA()
}

func TestTryLockMemoryFallback(t *testing.T) {
	tok1, ok := TryLock("regen:1", time.Minute)
	require.True(t, ok)
	require.NotEmpty(t, tok1)
	_, ok = TryLock("regen:1", time.Minute)
	assert.False(t, ok)
	tok2, ok := TryLock("regen:2", time.Minute)
	assert.True(t, ok)
	Unlock("regen:1", tok1)
	tok1, ok = TryLock("regen:1", time.Minute)
	assert.True(t, ok)
	Unlock("regen:1", tok1)
	Unlock("regen:2", tok2)
}

func TestTryLockExpires(t *testing.T) {
	_, ok := TryLock("short", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)
	tok, ok := TryLock("short", time.Minute)
	assert.True(t, ok)
	Unlock("short", tok)
}

func TestUnlockKeepsLockTakenByAnotherOwner(t *testing.T) {
	stale, ok := TryLock("owned", time.Millisecond)
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	current, ok := TryLock("owned", time.Minute)
	require.True(t, ok)
	require.NotEqual(t, stale, current)

	// the first holder outlived its ttl and must not release the new owner's lock
	Unlock("owned", stale)
	_, ok = TryLock("owned", time.Minute)
	assert.False(t, ok)

	Unlock("owned", current)
	tok, ok := TryLock("owned", time.Minute)
	assert.True(t, ok)
	Unlock("owned", tok)
}

func TestGenerateAndParseToken(t *testing.T) {
	tok, exp, err := GenerateToken(42, "leaf", TokenTTL())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "leaf", claims.Username)
	assert.NotEmpty(t, claims.ID)

	_, err = ParseToken(tok + "x")
	assert.Error(t, err)
}

func TestRevokeToken(t *testing.T) {
	assert.False(t, IsTokenRevoked("jti-1"))
	RevokeToken("jti-1", time.Now().Add(time.Minute))
	assert.True(t, IsTokenRevoked("jti-1"))

	RevokeToken("jti-old", time.Now().Add(-time.Minute))
	assert.False(t, IsTokenRevoked("jti-old"))
	assert.False(t, IsTokenRevoked(""))
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("compost-123")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "compost-123"))
	assert.False(t, CheckPassword(hash, "compost-124"))

	_, err = HashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestRenderInsightHTML(t *testing.T) {
	in := "**Great work** on recycling!\nKeep going. [GOAL: 40] [TITLE: Recycle More]<script>alert(1)</script>"
	out := RenderInsightHTML(in)
	assert.Contains(t, out, "<strong>Great work</strong>")
	assert.Contains(t, out, "<br")
	assert.NotContains(t, out, "[GOAL")
	assert.NotContains(t, out, "[TITLE")
	assert.NotContains(t, out, "<script>")
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Recycle More", SanitizeText("  <b>Recycle More</b> "))
}
