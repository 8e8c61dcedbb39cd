package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/learn-earn/backend/internal/database"
)

const (
	// AdminSessionDuration is 24 hours. Admin sessions gate payout money
	// movement, so they are kept short.
	AdminSessionDuration = 24 * time.Hour
	// AdminSessionKeyPrefix is the Redis key prefix for admin sessions
	AdminSessionKeyPrefix = "admin_session:"
	// AdminToSessionKeyPrefix is the Redis key prefix for admin->session mapping
	AdminToSessionKeyPrefix = "admin_to_session:"
)

// CreateAdminSession creates a new session for an admin and stores it in Redis.
// An admin holds at most one live session; logging in again invalidates the
// previous one. Returns the session token.
func CreateAdminSession(adminID uuid.UUID) (string, error) {
	_ = InvalidateAdminSessions(adminID)

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	sessionToken := base64.URLEncoding.EncodeToString(tokenBytes)

	ctx := context.Background()
	sessionKey := AdminSessionKeyPrefix + sessionToken
	adminToSessionKey := AdminToSessionKeyPrefix + adminID.String()

	if err := database.RedisClient.Set(ctx, sessionKey, adminID.String(), AdminSessionDuration).Err(); err != nil {
		return "", err
	}
	if err := database.RedisClient.Set(ctx, adminToSessionKey, sessionToken, AdminSessionDuration).Err(); err != nil {
		return "", err
	}

	return sessionToken, nil
}

// ValidateAdminSession checks if a session token is valid and returns the admin ID.
func ValidateAdminSession(sessionToken string) (uuid.UUID, bool, error) {
	if sessionToken == "" {
		return uuid.Nil, false, nil
	}

	ctx := context.Background()
	sessionKey := AdminSessionKeyPrefix + sessionToken

	adminIDStr, err := database.RedisClient.Get(ctx, sessionKey).Result()
	if err != nil {
		return uuid.Nil, false, nil
	}

	adminID, err := uuid.Parse(adminIDStr)
	if err != nil {
		return uuid.Nil, false, err
	}

	return adminID, true, nil
}

// RefreshAdminSession extends the session expiration from now.
func RefreshAdminSession(sessionToken string) error {
	if sessionToken == "" {
		return fmt.Errorf("session token is empty")
	}

	ctx := context.Background()
	sessionKey := AdminSessionKeyPrefix + sessionToken

	adminIDStr, err := database.RedisClient.Get(ctx, sessionKey).Result()
	if err != nil {
		return err
	}

	adminToSessionKey := AdminToSessionKeyPrefix + adminIDStr

	if err := database.RedisClient.Expire(ctx, sessionKey, AdminSessionDuration).Err(); err != nil {
		return err
	}
	return database.RedisClient.Expire(ctx, adminToSessionKey, AdminSessionDuration).Err()
}

// InvalidateAdminSession removes a session from Redis.
func InvalidateAdminSession(sessionToken string) error {
	if sessionToken == "" {
		return nil
	}

	ctx := context.Background()
	sessionKey := AdminSessionKeyPrefix + sessionToken

	// Get admin ID before deleting
	adminIDStr, err := database.RedisClient.Get(ctx, sessionKey).Result()
	if err == nil && adminIDStr != "" {
		adminToSessionKey := AdminToSessionKeyPrefix + adminIDStr
		_ = database.RedisClient.Del(ctx, adminToSessionKey).Err()
	}

	return database.RedisClient.Del(ctx, sessionKey).Err()
}

// InvalidateAdminSessions invalidates the admin's current session.
func InvalidateAdminSessions(adminID uuid.UUID) error {
	ctx := context.Background()
	adminToSessionKey := AdminToSessionKeyPrefix + adminID.String()

	sessionToken, err := database.RedisClient.Get(ctx, adminToSessionKey).Result()
	if err == nil && sessionToken != "" {
		sessionKey := AdminSessionKeyPrefix + sessionToken
		_ = database.RedisClient.Del(ctx, sessionKey).Err()
	}

	return database.RedisClient.Del(ctx, adminToSessionKey).Err()
}
