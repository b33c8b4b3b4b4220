package utils

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// in-memory fallback store
type lockEntry struct {
	token     string
	expiresAt time.Time
}

var (
	lockStore   = map[string]lockEntry{}
	lockStoreMu sync.Mutex
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

func lockKey(name string) string {
	return "lock:" + name
}

// TryLock acquires a short-lived named lock and returns the token that owns it.
// ok is false if someone else holds it. Prefer Redis (SET NX with TTL); fallback to memory
// when Redis is not available.
func TryLock(name string, ttl time.Duration) (token string, ok bool) {
	token = uuid.NewString()
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		acquired, err := rc.SetNX(ctx, lockKey(name), token, ttl).Result()
		if err == nil {
			return token, acquired
		}
		// On Redis error (e.g., network), fall through to memory fallback
	}
	lockStoreMu.Lock()
	defer lockStoreMu.Unlock()
	if entry, held := lockStore[name]; held && time.Now().Before(entry.expiresAt) {
		return "", false
	}
	lockStore[name] = lockEntry{token: token, expiresAt: time.Now().Add(ttl)}
	return token, true
}

// Unlock releases a lock taken with TryLock. A lock that expired and was taken by
// another caller is left alone.
func Unlock(name, token string) {
	if token == "" {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, rc, []string{lockKey(name)}, token).Err(); err != nil && Sugar != nil {
			Sugar.Warnf("lock release failed name=%s err=%v", name, err)
		}
	}
	lockStoreMu.Lock()
	if entry, held := lockStore[name]; held && entry.token == token {
		delete(lockStore, name)
	}
	lockStoreMu.Unlock()
}
