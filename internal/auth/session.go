// Package auth keeps the terminal's login session: the backend token, the
// logged-in user and the local expiry rules.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/enum"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/comandaweb/terminal/internal/storage"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNoToken            = errors.New("backend answered without a token")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidateCredentials is the local check run before any login request.
func ValidateCredentials(email, senha string) error {
	if strings.TrimSpace(email) == "" || senha == "" {
		return ErrMissingCredentials
	}
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

// Backend is the slice of the REST client the session needs.
type Backend interface {
	Login(ctx context.Context, email, senha string) (*api.LoginResponse, error)
}

// Manager owns the credentials persisted in the store. It satisfies
// api.TokenSource, so every authenticated request goes through IsAuthenticated.
type Manager struct {
	store      storage.Store
	backend    Backend
	maxSession time.Duration
	now        func() time.Time
	mu         sync.Mutex
}

func NewManager(store storage.Store, backend Backend, maxSession time.Duration) *Manager {
	return &Manager{
		store:      store,
		backend:    backend,
		maxSession: maxSession,
		now:        time.Now,
	}
}

// SetClock replaces time.Now, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

func (m *Manager) MaxSession() time.Duration { return m.maxSession }

// Login validates input, calls the backend and persists token, user and login time.
func (m *Manager) Login(ctx context.Context, email, senha string) (*model.Session, error) {
	if err := ValidateCredentials(email, senha); err != nil {
		return nil, err
	}
	resp, err := m.backend.Login(ctx, strings.TrimSpace(email), senha)
	if err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, ErrNoToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess := &model.Session{Token: resp.Token, User: resp.User, LoginTime: m.now()}
	if err := m.store.Set(ctx, storage.KeyAuthToken, sess.Token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	if err := storage.SetJSON(ctx, m.store, storage.KeyUserData, sess.User); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}
	if err := m.store.Set(ctx, storage.KeyLoginTime, sess.LoginTime.Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("store login time: %w", err)
	}
	return sess, nil
}

// Logout clears every credential key. The comanda is left alone.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clear(ctx)
}

func (m *Manager) clear(ctx context.Context) error {
	if err := m.store.Delete(ctx, storage.KeyAuthToken, storage.KeyUserData, storage.KeyLoginTime); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// IsAuthenticated is false without a token. A session older than the maximum
// (strictly), or whose token carries a past exp, is cleared on the spot.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.load(ctx)
	return err == nil && sess != nil
}

// load returns the live session or nil. Expired credentials are removed.
// Callers hold m.mu.
func (m *Manager) load(ctx context.Context) (*model.Session, error) {
	token, err := m.store.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	sess := &model.Session{Token: token}

	if raw, err := m.store.Get(ctx, storage.KeyLoginTime); err == nil {
		t, perr := time.Parse(time.RFC3339Nano, raw)
		if perr != nil {
			log.Printf("WARNING: unreadable login time %q: %v", raw, perr)
		} else {
			sess.LoginTime = t
			if m.now().Sub(t) > m.maxSession {
				log.Printf("session older than %s, logging out", m.maxSession)
				return nil, m.clear(ctx)
			}
		}
	}

	if claims, err := ParseClaims(token); err == nil && claims.Expired(m.now()) {
		log.Printf("token expired at %s, logging out", claims.ExpiresAt.Time)
		return nil, m.clear(ctx)
	}

	var u model.User
	ok, err := storage.GetJSON(ctx, m.store, storage.KeyUserData, &u)
	if err != nil {
		log.Printf("WARNING: unreadable user data: %v", err)
	} else if ok {
		sess.User = &u
	}
	return sess, nil
}

// Token implements api.TokenSource.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.load(ctx)
	if err != nil || sess == nil {
		return "", api.ErrNotAuthenticated
	}
	return sess.Token, nil
}

// Session returns the live session, or api.ErrNotAuthenticated.
func (m *Manager) Session(ctx context.Context) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, api.ErrNotAuthenticated
	}
	return sess, nil
}

// User is the stored user, or nil when logged out.
func (m *Manager) User(ctx context.Context) *model.User {
	sess, err := m.Session(ctx)
	if err != nil {
		return nil
	}
	return sess.User
}

// Role is the normalised role of the logged-in user.
func (m *Manager) Role(ctx context.Context) string {
	return m.User(ctx).RoleKey()
}

func (m *Manager) HasAnyRole(ctx context.Context, roles ...string) bool {
	r := m.Role(ctx)
	if r == "" {
		return false
	}
	for _, want := range roles {
		if r == enum.NormalizeRole(want) {
			return true
		}
	}
	return false
}

// UpdateUser merges the non-empty name and email of patch into the stored
// user. ID and role come from the backend and are never patched locally.
func (m *Manager) UpdateUser(ctx context.Context, patch model.User) (*model.User, error) {
	if _, err := m.Session(ctx); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(patch.Email)
	if email != "" && !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var u model.User
	ok, err := storage.GetJSON(ctx, m.store, storage.KeyUserData, &u)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, api.ErrNotAuthenticated
	}
	if name := strings.TrimSpace(patch.Name); name != "" {
		u.Name = name
	}
	if email != "" {
		u.Email = email
	}
	if err := storage.SetJSON(ctx, m.store, storage.KeyUserData, u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Remaining is how long the session has left. Zero when logged out or expired.
func (m *Manager) Remaining(ctx context.Context) time.Duration {
	sess, err := m.Session(ctx)
	if err != nil || sess.LoginTime.IsZero() {
		return 0
	}
	left := m.maxSession - m.now().Sub(sess.LoginTime)
	if left < 0 {
		return 0
	}
	return left
}

// AboutToExpire reports whether less than warning is left on a live session.
func (m *Manager) AboutToExpire(ctx context.Context, warning time.Duration) bool {
	sess, err := m.Session(ctx)
	if err != nil || sess.LoginTime.IsZero() {
		return false
	}
	return m.now().Sub(sess.LoginTime) > m.maxSession-warning
}

// Renew restarts the session clock of a live session.
func (m *Manager) Renew(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, err := m.load(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return api.ErrNotAuthenticated
	}
	return m.store.Set(ctx, storage.KeyLoginTime, m.now().Format(time.RFC3339Nano))
}

// ForceLogout is the api.Client 401 hook.
func (m *Manager) ForceLogout(ctx context.Context) {
	if err := m.Logout(context.WithoutCancel(ctx)); err != nil {
		log.Printf("ERROR: forced logout: %v", err)
	}
}

// Watch checks the session every interval until ctx is done. onWarn runs on
// each check while less than warning is left; onExpire runs once when a
// session that was live is gone.
func (m *Manager) Watch(ctx context.Context, interval, warning time.Duration, onWarn func(left time.Duration), onExpire func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	live := m.IsAuthenticated(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := m.IsAuthenticated(ctx)
			switch {
			case live && !now:
				if onExpire != nil {
					onExpire()
				}
			case now && m.AboutToExpire(ctx, warning):
				if onWarn != nil {
					onWarn(m.Remaining(ctx))
				}
			}
			live = now
		}
	}
}

// RedirectPath is the landing page for role after login.
func RedirectPath(role string) string {
	switch enum.NormalizeRole(role) {
	case enum.RoleWaiter, enum.RoleAdmin:
		return "/index.html"
	case enum.RoleKitchen, enum.RoleCashier:
		return "/pedidos.html"
	}
	return "/login.html"
}
