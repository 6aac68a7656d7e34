package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/guvercin/messaging-backend/internal/common"
)

// The user directory lives in Redis, owned by the registration service:
// a set "users" of "username:uuid" entries plus a hash "user:<username>"
// holding profile fields. This service only reads it.
const (
	usersSetKey   = "users"
	userKeyPrefix = "user:"

	fcmTokenField  = "fcm_token"
	publicKeyField = "public_key"
)

// UserDirectory read-only access to the external user registry
type UserDirectory interface {
	Exists(ctx context.Context, username string) (bool, error)
	PublicKey(ctx context.Context, username string) (string, error)
}

// PushTokenStore read-only access to per-user push tokens
type PushTokenStore interface {
	// Token returns the push token for a username, or "" when none is
	// registered.
	Token(ctx context.Context, username string) (string, error)
}

type redisDirectory struct {
	client *redis.Client
}

// NewUserDirectory creates a Redis-backed UserDirectory
func NewUserDirectory(client *redis.Client) UserDirectory {
	return &redisDirectory{client: client}
}

// Exists reports whether the username is registered.
func (d *redisDirectory) Exists(ctx context.Context, username string) (bool, error) {
	var cursor uint64
	match := username + ":*"
	for {
		entries, next, err := d.client.SScan(ctx, usersSetKey, cursor, match, 100).Result()
		if err != nil {
			return false, fmt.Errorf("scan users set: %w", err)
		}
		for _, entry := range entries {
			if name, _, ok := strings.Cut(entry, ":"); ok && name == username {
				return true, nil
			}
		}
		if next == 0 {
			return false, nil
		}
		cursor = next
	}
}

// PublicKey returns the user's registered public key.
func (d *redisDirectory) PublicKey(ctx context.Context, username string) (string, error) {
	key, err := d.client.HGet(ctx, userKeyPrefix+username, publicKeyField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", common.ErrUserNotFound
		}
		return "", fmt.Errorf("directory lookup: %w", err)
	}
	return key, nil
}

type redisTokenStore struct {
	client *redis.Client
}

// NewPushTokenStore creates a Redis-backed PushTokenStore
func NewPushTokenStore(client *redis.Client) PushTokenStore {
	return &redisTokenStore{client: client}
}

// Token looks up the push token; a missing token is not an error.
func (s *redisTokenStore) Token(ctx context.Context, username string) (string, error) {
	token, err := s.client.HGet(ctx, userKeyPrefix+username, fcmTokenField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("token lookup: %w", err)
	}
	return token, nil
}
