package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/auth"
	"github.com/comandaweb/terminal/internal/model"
	"github.com/comandaweb/terminal/internal/storage"
)

// --- Mock backend ---

type mockBackend struct {
	loginFn func(ctx context.Context, email, senha string) (*api.LoginResponse, error)
	calls   int32
}

func (m *mockBackend) Login(ctx context.Context, email, senha string) (*api.LoginResponse, error) {
	atomic.AddInt32(&m.calls, 1)
	return m.loginFn(ctx, email, senha)
}

func okBackend(token, role string) *mockBackend {
	return &mockBackend{loginFn: func(ctx context.Context, email, senha string) (*api.LoginResponse, error) {
		return &api.LoginResponse{Token: token, User: &model.User{ID: 1, Name: "Ana", Email: email, Role: role}}, nil
	}}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newManager(t *testing.T, backend auth.Backend) (*auth.Manager, storage.Store, *clock) {
	t.Helper()
	store, err := storage.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	c := &clock{t: time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)}
	m := auth.NewManager(store, backend, 24*time.Hour)
	m.SetClock(c.Now)
	return m, store, c
}

// =====================
// Login
// =====================

func TestLogin_ValidationSendsNoRequest(t *testing.T) {
	backend := okBackend("tok", "Garçom")
	m, _, _ := newManager(t, backend)
	ctx := context.Background()

	tests := []struct {
		email, senha string
		want         error
	}{
		{"", "x", auth.ErrMissingCredentials},
		{"ana@comanda.com", "", auth.ErrMissingCredentials},
		{"ana", "x", auth.ErrInvalidEmail},
		{"ana@comanda", "x", auth.ErrInvalidEmail},
		{"an a@comanda.com", "x", auth.ErrInvalidEmail},
	}
	for _, tt := range tests {
		if _, err := m.Login(ctx, tt.email, tt.senha); !errors.Is(err, tt.want) {
			t.Errorf("Login(%q): got %v, want %v", tt.email, err, tt.want)
		}
	}
	if n := atomic.LoadInt32(&backend.calls); n != 0 {
		t.Errorf("backend called %d times", n)
	}
}

func TestLogin_StoresCredentials(t *testing.T) {
	m, store, c := newManager(t, okBackend("tok-1", "Garçom"))
	ctx := context.Background()

	sess, err := m.Login(ctx, " ana@comanda.com ", "segredo")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token != "tok-1" || !sess.LoginTime.Equal(c.Now()) {
		t.Errorf("session: %+v", sess)
	}
	if tok, _ := store.Get(ctx, storage.KeyAuthToken); tok != "tok-1" {
		t.Errorf("stored token: got %q", tok)
	}
	if !m.IsAuthenticated(ctx) {
		t.Error("should be authenticated")
	}
	if m.Role(ctx) != "garcom" {
		t.Errorf("role: got %q", m.Role(ctx))
	}
	if !m.HasAnyRole(ctx, "Garçom") || !m.HasAnyRole(ctx, "admin", "garcom") || m.HasAnyRole(ctx, "caixa") {
		t.Error("role checks disagree with stored role")
	}
}

func TestLogin_BackendErrorStoresNothing(t *testing.T) {
	backend := &mockBackend{loginFn: func(ctx context.Context, email, senha string) (*api.LoginResponse, error) {
		return nil, &api.Error{Status: 401, Message: "Credenciais inválidas"}
	}}
	m, _, _ := newManager(t, backend)
	ctx := context.Background()

	if _, err := m.Login(ctx, "ana@comanda.com", "x"); err == nil {
		t.Fatal("expected error")
	}
	if m.IsAuthenticated(ctx) {
		t.Error("should not be authenticated")
	}
}

func TestLogin_EmptyToken(t *testing.T) {
	m, _, _ := newManager(t, okBackend("", "admin"))
	if _, err := m.Login(context.Background(), "a@b.co", "x"); !errors.Is(err, auth.ErrNoToken) {
		t.Errorf("got %v, want ErrNoToken", err)
	}
}

// =====================
// Expiry
// =====================

func TestIsAuthenticated_SessionBoundary(t *testing.T) {
	m, store, c := newManager(t, okBackend("tok", "admin"))
	ctx := context.Background()
	if _, err := m.Login(ctx, "a@b.co", "x"); err != nil {
		t.Fatal(err)
	}

	c.Advance(24 * time.Hour)
	if !m.IsAuthenticated(ctx) {
		t.Fatal("exactly max session is still valid")
	}

	c.Advance(time.Millisecond)
	if m.IsAuthenticated(ctx) {
		t.Fatal("past max session must be expired")
	}
	for _, k := range []string{storage.KeyAuthToken, storage.KeyUserData, storage.KeyLoginTime} {
		if _, err := store.Get(ctx, k); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("%s should be cleared, got %v", k, err)
		}
	}
	if _, err := m.Token(ctx); !errors.Is(err, api.ErrNotAuthenticated) {
		t.Errorf("token after expiry: got %v", err)
	}
}

func TestIsAuthenticated_TokenExp(t *testing.T) {
	c0 := time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC)
	token := signToken(t, "caixa", c0.Add(time.Hour))
	m, _, c := newManager(t, okBackend(token, "caixa"))
	ctx := context.Background()
	if _, err := m.Login(ctx, "a@b.co", "x"); err != nil {
		t.Fatal(err)
	}

	c.Advance(59 * time.Minute)
	if !m.IsAuthenticated(ctx) {
		t.Fatal("token still valid")
	}
	c.Advance(time.Minute)
	if m.IsAuthenticated(ctx) {
		t.Fatal("token exp has passed")
	}
}

func TestAboutToExpireAndRenew(t *testing.T) {
	m, _, c := newManager(t, okBackend("tok", "admin"))
	ctx := context.Background()
	if _, err := m.Login(ctx, "a@b.co", "x"); err != nil {
		t.Fatal(err)
	}

	c.Advance(23*time.Hour + 20*time.Minute)
	if m.AboutToExpire(ctx, 30*time.Minute) {
		t.Error("40 minutes left is not about to expire")
	}
	c.Advance(20 * time.Minute)
	if !m.AboutToExpire(ctx, 30*time.Minute) {
		t.Error("20 minutes left is about to expire")
	}
	if got := m.Remaining(ctx); got != 20*time.Minute {
		t.Errorf("remaining: got %s", got)
	}

	if err := m.Renew(ctx); err != nil {
		t.Fatalf("renew: %v", err)
	}
	if m.AboutToExpire(ctx, 30*time.Minute) {
		t.Error("renewed session should not be about to expire")
	}
}

func TestRenew_LoggedOut(t *testing.T) {
	m, _, _ := newManager(t, okBackend("tok", "admin"))
	if err := m.Renew(context.Background()); !errors.Is(err, api.ErrNotAuthenticated) {
		t.Errorf("got %v", err)
	}
}

// =====================
// Logout / user data
// =====================

func TestLogoutKeepsComanda(t *testing.T) {
	m, store, _ := newManager(t, okBackend("tok", "garcom"))
	ctx := context.Background()
	if _, err := m.Login(ctx, "a@b.co", "x"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, storage.KeyCart, "[]"); err != nil {
		t.Fatal(err)
	}

	m.ForceLogout(ctx)
	if m.IsAuthenticated(ctx) {
		t.Error("should be logged out")
	}
	if m.User(ctx) != nil {
		t.Error("user should be nil after logout")
	}
	if _, err := store.Get(ctx, storage.KeyCart); err != nil {
		t.Errorf("comanda should survive logout: %v", err)
	}
}

func TestUpdateUserMerges(t *testing.T) {
	m, _, _ := newManager(t, okBackend("tok", "garcom"))
	ctx := context.Background()
	if _, err := m.Login(ctx, "ana@comanda.com", "x"); err != nil {
		t.Fatal(err)
	}

	u, err := m.UpdateUser(ctx, model.User{Name: "Ana Paula"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Name != "Ana Paula" || u.Email != "ana@comanda.com" || u.Role != "garcom" {
		t.Errorf("merged user: %+v", u)
	}
	if m.User(ctx).Name != "Ana Paula" {
		t.Error("update not persisted")
	}

	u, err = m.UpdateUser(ctx, model.User{ID: 77, Role: "admin", Email: "ana.p@comanda.com"})
	if err != nil {
		t.Fatalf("update email: %v", err)
	}
	if u.Role != "garcom" || u.ID == 77 || u.Email != "ana.p@comanda.com" {
		t.Errorf("role and ID must not change locally: %+v", u)
	}
	if _, err := m.UpdateUser(ctx, model.User{Email: "sem-arroba"}); !errors.Is(err, auth.ErrInvalidEmail) {
		t.Errorf("invalid email: got %v", err)
	}
}

func TestUpdateUser_LoggedOut(t *testing.T) {
	m, _, _ := newManager(t, okBackend("tok", "garcom"))
	if _, err := m.UpdateUser(context.Background(), model.User{Name: "X"}); !errors.Is(err, api.ErrNotAuthenticated) {
		t.Errorf("got %v", err)
	}
}

// =====================
// Watch
// =====================

func TestWatch_WarnsThenExpires(t *testing.T) {
	m, _, c := newManager(t, okBackend("tok", "admin"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := m.Login(ctx, "a@b.co", "x"); err != nil {
		t.Fatal(err)
	}
	c.Advance(23*time.Hour + 45*time.Minute)

	warned := make(chan time.Duration, 16)
	expired := make(chan struct{}, 1)
	go m.Watch(ctx, 5*time.Millisecond, 30*time.Minute,
		func(left time.Duration) {
			select {
			case warned <- left:
			default:
			}
		},
		func() { expired <- struct{}{} })

	select {
	case left := <-warned:
		if left != 15*time.Minute {
			t.Errorf("left: got %s", left)
		}
	case <-time.After(time.Second):
		t.Fatal("no warning")
	}

	c.Advance(time.Hour)
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("no expiry")
	}
}

func TestRedirectPath(t *testing.T) {
	tests := map[string]string{
		"Garçom":  "/index.html",
		"admin":   "/index.html",
		"Cozinha": "/pedidos.html",
		"caixa":   "/pedidos.html",
		"":        "/login.html",
		"gerente": "/login.html",
	}
	for role, want := range tests {
		if got := auth.RedirectPath(role); got != want {
			t.Errorf("RedirectPath(%q): got %q, want %q", role, got, want)
		}
	}
}
