package utils

import (
	"context"
	"sync"
	"time"
)

var (
	revoked   = map[string]time.Time{}
	revokedMu sync.RWMutex
)

func revokedKey(tokenID string) string {
	return "jwt:revoked:" + tokenID
}

// RevokeToken marks a token ID as logged out until its natural expiry.
func RevokeToken(tokenID string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if tokenID == "" || ttl <= 0 {
		return
	}
	// Prefer Redis: key with TTL until token expiration
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err == nil {
			return
		}
	}
	revokedMu.Lock()
	revoked[tokenID] = expiresAt
	revokedMu.Unlock()
}

// IsTokenRevoked reports whether a token ID was logged out before natural expiration.
func IsTokenRevoked(tokenID string) bool {
	if tokenID == "" {
		return false
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, revokedKey(tokenID)).Result()
		if err == nil && n > 0 {
			return true
		}
	}
	revokedMu.RLock()
	expiresAt, ok := revoked[tokenID]
	revokedMu.RUnlock()
	if !ok {
		return false
	}

	if time.Now().After(expiresAt) {
		revokedMu.Lock()
		delete(revoked, tokenID)
		revokedMu.Unlock()
		return false
	}
	return true
}
