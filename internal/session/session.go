// Package session owns the authenticated identity: restoring it at
// startup, establishing it on login, and clearing it on logout. The
// Manager is the only writer of the persisted authToken and userData
// entries.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/api"
	"github.com/zulandar/quickdesk/internal/models"
)

// Authenticator is the subset of the API client the Manager uses.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
}

// Manager tracks the current session.
type Manager struct {
	store Store
	auth  Authenticator
	log   zerolog.Logger

	mu      sync.RWMutex
	current *models.Session
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	Store  Store
	Auth   Authenticator
	Logger zerolog.Logger
}

// NewManager creates a Manager with no session. Call Restore to pick up a
// persisted one.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("session: store is required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("session: auth is required")
	}
	return &Manager{store: opts.Store, auth: opts.Auth, log: opts.Logger}, nil
}

// Restore loads the persisted token and user. When both are present the
// session is accepted as-is; the token is not checked with the server.
// A nil session with a nil error means nobody is logged in.
func (m *Manager) Restore(ctx context.Context) (*models.Session, error) {
	token, okToken, err := m.store.Get(ctx, models.KeyAuthToken)
	if err != nil {
		return nil, err
	}
	raw, okUser, err := m.store.Get(ctx, models.KeyUserData)
	if err != nil {
		return nil, err
	}
	if !okToken || !okUser || token == "" {
		m.set(nil)
		return nil, nil
	}
	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		m.log.Warn().Err(err).Msg("session: discarding unreadable userData")
		m.set(nil)
		return nil, nil
	}
	s := &models.Session{Token: token, User: user}
	m.set(s)
	m.log.Debug().Str("user", string(user.ID)).Msg("session restored")
	return s, nil
}

// Login exchanges credentials for a token and persists the new session.
// API errors are returned unchanged so callers can map them with
// api.UserMessage.
func (m *Manager) Login(ctx context.Context, email, password string) (*models.Session, error) {
	res, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	userData, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("session: encode user: %w", err)
	}
	if err := m.store.Set(ctx, models.KeyAuthToken, res.Token); err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, models.KeyUserData, string(userData)); err != nil {
		return nil, err
	}
	s := &models.Session{Token: res.Token, User: res.User}
	m.set(s)
	m.log.Info().Str("user", string(res.User.ID)).Str("role", string(res.User.Role)).Msg("logged in")
	return s, nil
}

// Register creates an account and returns the server's message. It does
// not log in and leaves any current session alone.
func (m *Manager) Register(ctx context.Context, name, email, password string, role models.Role) (string, error) {
	if role == "" {
		role = models.RoleUser
	}
	msg, err := m.auth.Register(ctx, api.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     role,
	})
	if err != nil {
		return "", err
	}
	m.log.Info().Str("email", email).Msg("registered")
	return msg, nil
}

// Logout clears the persisted entries and the in-memory session. The
// in-memory session is cleared even if the store fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.set(nil)
	if err := m.store.Delete(ctx, models.KeyAuthToken, models.KeyUserData); err != nil {
		return err
	}
	m.log.Info().Msg("logged out")
	return nil
}

// Current returns a copy of the session, or nil when logged out.
func (m *Manager) Current() *models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Token returns the bearer token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Token
}

func (m *Manager) set(s *models.Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
}
