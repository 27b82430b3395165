package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"unionvote/internal/verification/models"
	"unionvote/pkg/platform/sentinel"
)

const sessionKeyPrefix = "otc:session:"

// Fields of the session hash. Times are unix milliseconds.
const (
	fieldID        = "id"
	fieldCode      = "code"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// incrementScript bumps attempts on the active session. Returns -1 when the
// pair has no active session.
var incrementScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if not exp or tonumber(exp) <= tonumber(ARGV[1]) then
	return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// consumeScript deletes the session iff it is the expected one, unexpired and
// under the attempt budget. Returns 1 on success, 0 when gone, -1 when locked.
var consumeScript = redis.NewScript(`
local s = redis.call('HMGET', KEYS[1], 'id', 'expires_at', 'attempts')
if not s[1] or s[1] ~= ARGV[1] or tonumber(s[2]) <= tonumber(ARGV[2]) then
	return 0
end
if tonumber(s[3]) >= tonumber(ARGV[3]) then
	return -1
end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisStore keeps the single active session of a pair in one hash. A new
// session replaces the previous hash and consumption deletes it; key expiry
// removes stale sessions.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(contact string, purpose models.Purpose) string {
	return sessionKeyPrefix + models.PairKey(contact, purpose)
}

func (s *RedisStore) Create(ctx context.Context, session models.Session) (int, error) {
	key := sessionKey(session.Contact, session.Purpose)
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldID, session.ID.String(),
			fieldCode, session.Code,
			fieldCreatedAt, session.CreatedAt.UnixMilli(),
			fieldExpiresAt, session.ExpiresAt.UnixMilli(),
			fieldAttempts, session.Attempts,
		)
		pipe.PExpireAt(ctx, key, session.ExpiresAt)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create verification session: %w: %w", sentinel.ErrUnavailable, err)
	}
	return int(del.Val()), nil
}

func (s *RedisStore) FindActive(ctx context.Context, contact string, purpose models.Purpose, now time.Time) (*models.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(contact, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("find verification session: %w: %w", sentinel.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
	}
	session, err := decodeSession(contact, purpose, fields)
	if err != nil {
		return nil, err
	}
	if !session.IsActive(now) {
		return nil, fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
	}
	return session, nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, contact string, purpose models.Purpose, now time.Time) (int, error) {
	n, err := incrementScript.Run(ctx, s.client, []string{sessionKey(contact, purpose)}, now.UnixMilli()).Int()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w: %w", sentinel.ErrUnavailable, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
	}
	return n, nil
}

func (s *RedisStore) Consume(ctx context.Context, session models.Session, now time.Time, maxAttempts int) error {
	res, err := consumeScript.Run(ctx, s.client,
		[]string{sessionKey(session.Contact, session.Purpose)},
		session.ID.String(), now.UnixMilli(), maxAttempts,
	).Int()
	if err != nil {
		return fmt.Errorf("consume verification session: %w: %w", sentinel.ErrUnavailable, err)
	}
	switch res {
	case 1:
		return nil
	case -1:
		return fmt.Errorf("verification session: %w", sentinel.ErrLocked)
	default:
		return fmt.Errorf("verification session: %w", sentinel.ErrNotFound)
	}
}

func (s *RedisStore) InvalidateActive(ctx context.Context, contact string, purpose models.Purpose, _ time.Time) (int, error) {
	n, err := s.client.Del(ctx, sessionKey(contact, purpose)).Result()
	if err != nil {
		return 0, fmt.Errorf("invalidate verification sessions: %w: %w", sentinel.ErrUnavailable, err)
	}
	return int(n), nil
}

// DeleteExpired is a no-op: keys expire with their session.
func (s *RedisStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func decodeSession(contact string, purpose models.Purpose, fields map[string]string) (*models.Session, error) {
	id, err := uuid.Parse(fields[fieldID])
	if err != nil {
		return nil, errors.Join(sentinel.ErrInvalidState, fmt.Errorf("decode session id: %w", err))
	}
	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, errors.Join(sentinel.ErrInvalidState, fmt.Errorf("decode created_at: %w", err))
	}
	expiresAt, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, errors.Join(sentinel.ErrInvalidState, fmt.Errorf("decode expires_at: %w", err))
	}
	attempts, err := strconv.Atoi(fields[fieldAttempts])
	if err != nil {
		return nil, errors.Join(sentinel.ErrInvalidState, fmt.Errorf("decode attempts: %w", err))
	}
	return &models.Session{
		ID:        id,
		Contact:   contact,
		Purpose:   purpose,
		Code:      fields[fieldCode],
		CreatedAt: time.UnixMilli(createdAt).UTC(),
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
		Attempts:  attempts,
	}, nil
}
