package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/locationup/locationup-go/pkg/config"
	pkgerrors "github.com/locationup/locationup-go/pkg/errors"
	redisclient "github.com/locationup/locationup-go/pkg/redis"
)

// ErrNoSession is returned when no cached session exists.
var ErrNoSession = errors.New("no cached session")

// ErrSessionExpired is returned when the cached bearer token has expired.
// The stale blob is cleared before the error is surfaced.
var ErrSessionExpired = errors.New("cached session expired")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	SessionKey(name string) string
}

// Session is the cached signed-in user profile plus bearer token.
type Session struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Token       string    `json:"token"`
	SavedAt     time.Time `json:"saved_at"`
}

// Manager persists the current session as one JSON blob in Redis.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	name  string
	ttl   time.Duration
	now   func() time.Time
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.SessionConfig) (*Manager, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "redis client required")
	}
	name := strings.TrimSpace(cfg.StorageKey)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session storage key required")
	}
	if cfg.TTL <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session ttl must be positive")
	}
	return &Manager{
		store: client,
		keyer: client,
		name:  name,
		ttl:   cfg.TTL,
		now:   time.Now,
	}, nil
}

// Save validates and stores the session blob under the configured key.
func (m *Manager) Save(ctx context.Context, sess Session) error {
	if strings.TrimSpace(sess.UserID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session user id required")
	}
	if strings.TrimSpace(sess.Token) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session token required")
	}
	if expiry, err := TokenExpiry(sess.Token); err == nil && !expiry.After(m.now()) {
		return ErrSessionExpired
	}

	sess.SavedAt = m.now().UTC()
	blob, err := json.Marshal(sess)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal session")
	}
	if err := m.store.Set(ctx, m.keyer.SessionKey(m.name), string(blob), m.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist session")
	}
	return nil
}

// Current returns the cached session. An expired token clears the blob and
// reports ErrSessionExpired so callers re-authenticate instead of retrying
// with a dead credential.
func (m *Manager) Current(ctx context.Context) (*Session, error) {
	key := m.keyer.SessionKey(m.name)
	blob, err := m.store.Get(ctx, key)
	if errors.Is(err, redisclient.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}

	var sess Session
	if err := json.Unmarshal([]byte(blob), &sess); err != nil {
		_ = m.store.Del(ctx, key)
		return nil, ErrNoSession
	}
	if expiry, err := TokenExpiry(sess.Token); err == nil && !expiry.After(m.now()) {
		_ = m.store.Del(ctx, key)
		return nil, ErrSessionExpired
	}
	return &sess, nil
}

// Clear removes the cached session blob.
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.Del(ctx, m.keyer.SessionKey(m.name))
}

// TokenExpiry inspects a bearer token's exp claim without verifying the
// signature. The client never holds the signing secret; expiry inspection is
// the only claim it acts on locally.
func TokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse bearer token")
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "bearer token has no expiry")
	}
	return expiry.Time, nil
}
