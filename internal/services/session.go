package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/guildhall/guildhall-backend/internal/database"
)

const (
	sessionDuration  = 7 * 24 * time.Hour
	sessionKeyPrefix = "session:"
)

// CreateSession stores a fresh opaque session token in Redis mapped to the
// user id, valid for seven days.
func CreateSession(ctx context.Context, userID string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)

	if err := database.RedisClient.Set(ctx, sessionKeyPrefix+token, userID, sessionDuration).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateSession resolves a token to a user id; ok is false for missing or
// expired tokens.
func ValidateSession(ctx context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	userID, err := database.RedisClient.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil || userID == "" {
		return "", false
	}
	return userID, true
}

// InvalidateSession drops a session token.
func InvalidateSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return database.RedisClient.Del(ctx, sessionKeyPrefix+token).Err()
}
