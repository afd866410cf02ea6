package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/stash/internal/logger"
)

// KeyPrefixSession is the prefix for session keys
const KeyPrefixSession = "stash:session:"

// SessionKey returns the Redis key for a session token
func SessionKey(token string) string {
	return KeyPrefixSession + token
}

// RedisProvider keeps sessions in Redis with the session lifetime as TTL.
type RedisProvider struct {
	client *redis.Client
	log    logger.Logger
	now    func() time.Time
}

var _ Provider = (*RedisProvider)(nil)

func NewRedisProvider(client *redis.Client, log logger.Logger) *RedisProvider {
	return &RedisProvider{client: client, log: log, now: time.Now}
}

// Issue creates a session for userID. A non-positive ttl never expires.
func (p *RedisProvider) Issue(ctx context.Context, userID string, ttl time.Duration) (Session, error) {
	tok, err := uuid.NewRandom()
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}
	s := Session{Token: tok.String(), UserID: userID}
	if ttl > 0 {
		s.ExpiresAt = p.now().Add(ttl).UTC()
	}
	if err := p.Save(ctx, s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Save stores s under its own token.
func (p *RedisProvider) Save(ctx context.Context, s Session) error {
	if strings.TrimSpace(s.Token) == "" || strings.TrimSpace(s.UserID) == "" {
		return errors.New("session needs a token and a user id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = s.ExpiresAt.Sub(p.now())
		if ttl <= 0 {
			return errors.New("session already expired")
		}
	}
	if err := p.client.Set(ctx, SessionKey(s.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	p.log.Debug("session saved", logger.String("user_id", s.UserID))
	return nil
}

func (p *RedisProvider) CurrentSession(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	data, err := p.client.Get(ctx, SessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if s.Expired(p.now()) {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// SignOut deletes the session. Signing out twice is not an error.
func (p *RedisProvider) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoSession
	}
	if err := p.client.Del(ctx, SessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
