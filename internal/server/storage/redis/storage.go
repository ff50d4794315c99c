// Package redis implements storage.UserStorage on top of Redis.
//
// Layout:
//
//	tokenauth:users:seq            INCR counter for user ids
//	tokenauth:users:ids            sorted set of ids (score = id)
//	tokenauth:users:email:<email>  id of the user owning the email
//	tokenauth:user:<id>            hash with user fields
//
// Multi-key writes run as Lua scripts so each one is atomic on the server.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iudanet/tokenauth/internal/models"
	"github.com/iudanet/tokenauth/internal/server/storage"
)

const (
	keySeq         = "tokenauth:users:seq"
	keyIDs         = "tokenauth:users:ids"
	keyEmailPrefix = "tokenauth:users:email:"
	keyUserPrefix  = "tokenauth:user:"
)

// createUserScript резервирует email и создает пользователя одной операцией.
// Возвращает -1, если email уже занят.
var createUserScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return -1
end
local id = redis.call('INCR', KEYS[2])
redis.call('SET', KEYS[1], id)
redis.call('HSET', ARGV[1] .. id,
	'id', id,
	'email', ARGV[2],
	'password_hash', ARGV[3],
	'token_version', 0,
	'created_at', ARGV[4])
redis.call('ZADD', KEYS[3], id, id)
return id
`)

// incrementVersionScript увеличивает версию только у существующего пользователя.
// Возвращает -1, если пользователя нет.
var incrementVersionScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'token_version', 1)
`)

// Storage represents Redis storage implementation
type Storage struct {
	client redis.UniversalClient
}

// NewWithClient wraps an existing client
func NewWithClient(client redis.UniversalClient) *Storage {
	return &Storage{client: client}
}

// New connects to Redis and checks the connection
func New(ctx context.Context, opts *redis.Options) (*Storage, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &Storage{client: client}, nil
}

// Ping checks the connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client
func (s *Storage) Close() error {
	return s.client.Close()
}

func emailKey(email string) string {
	return keyEmailPrefix + strings.ToLower(email)
}

func userKey(id int64) string {
	return keyUserPrefix + strconv.FormatInt(id, 10)
}

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	id, err := createUserScript.Run(ctx, s.client,
		[]string{emailKey(user.Email), keySeq, keyIDs},
		keyUserPrefix,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	if id < 0 {
		return storage.ErrUserAlreadyExists
	}

	user.ID = id
	user.TokenVersion = 0

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	id, err := s.client.Get(ctx, emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return parseUser(fields)
}

// ListUsers returns all users ordered by ID
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	ids, err := s.client.ZRange(ctx, keyIDs, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}

	users := make([]*models.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, keyUserPrefix+id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	for _, cmd := range cmds {
		user, err := parseUser(cmd.Val())
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

// IncrementTokenVersion atomically increments token_version with HINCRBY
func (s *Storage) IncrementTokenVersion(ctx context.Context, userID int64) (int64, error) {
	version, err := incrementVersionScript.Run(ctx, s.client, []string{userKey(userID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to increment token version: %w", err)
	}

	if version < 0 {
		return 0, storage.ErrUserNotFound
	}

	return version, nil
}

func parseUser(fields map[string]string) (*models.User, error) {
	if len(fields) == 0 {
		return nil, storage.ErrUserNotFound
	}

	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user id: %w", err)
	}

	version, err := strconv.ParseInt(fields["token_version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token version: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &models.User{
		ID:           id,
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		TokenVersion: version,
		CreatedAt:    createdAt,
	}, nil
}
