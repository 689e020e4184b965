package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound indicates the presented token has no live session.
var ErrSessionNotFound = errors.New("session not found")

// SessionManager stores terminal sessions in Redis. A session is created at
// cashier login, binds the cashier to a drawer, and expires after the TTL
// unless refreshed by activity.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

type sessionPayload struct {
	CashierID int64 `json:"cashier_id"`
	DrawerID  int64 `json:"drawer_id"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

// Create opens a session for the cashier on the given drawer and returns the
// opaque token the terminal presents on subsequent requests.
func (sm *SessionManager) Create(ctx context.Context, cashierID, drawerID int64) (string, error) {
	token := uuid.NewString()
	raw, err := json.Marshal(sessionPayload{CashierID: cashierID, DrawerID: drawerID})
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	if err := sm.client.Set(ctx, sessionKey(token), raw, sm.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Load resolves a token into a Session and slides its expiry.
func (sm *SessionManager) Load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	raw, err := sm.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if err := sm.client.Expire(ctx, sessionKey(token), sm.ttl).Err(); err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	return &Session{CashierID: payload.CashierID, DrawerID: payload.DrawerID}, nil
}

// Destroy removes the session for the given token. Destroying an unknown
// token is not an error.
func (sm *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := sm.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}
