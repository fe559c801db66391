// internal/session/gate.go
// Session/Auth Gate: holds the acting identity and drives the login/logout
// lifecycle every other component hangs off.

package session

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/nikkjaat/cafemeetups-client/internal/api"
	"github.com/nikkjaat/cafemeetups-client/internal/common/validate"
)

// Gate owns the authenticated identity and the opaque session token, the only
// client-side persisted state. OnLogin hooks initialize downstream components
// (feed load, match hydration, channel connect); OnLogout hooks reset them so
// nothing leaks into a subsequent session.
type Gate struct {
	client    *api.Client
	tokenPath string

	mu    sync.RWMutex
	user  *api.User
	token string

	onLogin  []func(ctx context.Context, u *api.User)
	onLogout []func()
}

func NewGate(client *api.Client, tokenPath string) *Gate {
	return &Gate{client: client, tokenPath: tokenPath}
}

// OnLogin registers a hook fired after a session is established.
func (g *Gate) OnLogin(fn func(ctx context.Context, u *api.User)) {
	g.mu.Lock()
	g.onLogin = append(g.onLogin, fn)
	g.mu.Unlock()
}

// OnLogout registers a hook fired when the session ends.
func (g *Gate) OnLogout(fn func()) {
	g.mu.Lock()
	g.onLogout = append(g.onLogout, fn)
	g.mu.Unlock()
}

// Login authenticates with email and password.
func (g *Gate) Login(ctx context.Context, email, password string) (*api.User, error) {
	token, user, err := g.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	g.establish(ctx, token, user)
	return user, nil
}

// Register creates an account and opens a session for it.
func (g *Gate) Register(ctx context.Context, req *api.RegisterRequest) (*api.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	token, user, err := g.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	g.establish(ctx, token, user)
	return user, nil
}

// LoginWithGoogle exchanges a Google ID token for a session.
func (g *Gate) LoginWithGoogle(ctx context.Context, tokenID string) (*api.User, error) {
	token, user, err := g.client.GoogleAuth(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	g.establish(ctx, token, user)
	return user, nil
}

// LoginWithFacebook exchanges a Facebook access token for a session.
func (g *Gate) LoginWithFacebook(ctx context.Context, accessToken string) (*api.User, error) {
	token, user, err := g.client.FacebookAuth(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	g.establish(ctx, token, user)
	return user, nil
}

// Restore revives a session from a previously stored token. The token's
// expiry is checked locally first to skip a doomed round-trip; the backend
// then confirms it and supplies the account. A rejected token is discarded.
func (g *Gate) Restore(ctx context.Context) (*api.User, error) {
	data, err := os.ReadFile(g.tokenPath)
	if err != nil {
		return nil, nil // no stored session
	}
	token := string(data)
	if token == "" {
		return nil, nil
	}

	if expired(token) {
		log.Printf("session: stored token expired, discarding")
		os.Remove(g.tokenPath)
		return nil, nil
	}

	g.client.SetToken(token)
	user, err := g.client.Me(ctx)
	if err != nil {
		g.client.SetToken("")
		os.Remove(g.tokenPath)
		return nil, err
	}

	g.establish(ctx, token, user)
	return user, nil
}

// Logout ends the session and resets every dependent component.
func (g *Gate) Logout() {
	g.mu.Lock()
	g.user = nil
	g.token = ""
	hooks := append([]func(){}, g.onLogout...)
	g.mu.Unlock()

	g.client.SetToken("")
	os.Remove(g.tokenPath)

	for _, fn := range hooks {
		fn()
	}
}

// UpdateProfile edits the account and refreshes the gate's user snapshot.
func (g *Gate) UpdateProfile(ctx context.Context, updates *api.ProfileUpdate) (*api.User, error) {
	user, err := g.client.UpdateProfile(ctx, updates)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.user = user
	g.mu.Unlock()
	return user, nil
}

// CurrentUser returns the acting user, nil when unauthenticated.
func (g *Gate) CurrentUser() *api.User {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.user
}

// UserID returns the acting user's canonical identity, empty when
// unauthenticated.
func (g *Gate) UserID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.user == nil {
		return ""
	}
	return g.user.Canonical()
}

// Token returns the opaque session token.
func (g *Gate) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// Authenticated reports whether a session is active.
func (g *Gate) Authenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.user != nil
}

func (g *Gate) establish(ctx context.Context, token string, user *api.User) {
	g.mu.Lock()
	g.token = token
	g.user = user
	hooks := append([]func(ctx context.Context, u *api.User){}, g.onLogin...)
	g.mu.Unlock()

	g.client.SetToken(token)
	g.persistToken(token)

	for _, fn := range hooks {
		fn(ctx, user)
	}
}

func (g *Gate) persistToken(token string) {
	if err := os.MkdirAll(filepath.Dir(g.tokenPath), 0o700); err != nil {
		log.Printf("session: creating token dir: %v", err)
		return
	}
	if err := os.WriteFile(g.tokenPath, []byte(token), 0o600); err != nil {
		log.Printf("session: persisting token: %v", err)
	}
}

// expired parses the token without verifying its signature (the backend owns
// the secret) and reports whether its expiry claim has passed.
func expired(token string) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Not a JWT; let the backend decide.
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(time.Now())
}
