// Package auth is the storefront's auth provider: the CMS administrator
// logs in with a username and password checked against a bcrypt hash, and
// receives an HS256 JWT carried in the "token" cookie.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ileri/atelier/idgen"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// RoleAdmin is the only role the CMS knows.
const RoleAdmin = "admin"

// Credential is what the login form submits.
type Credential struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Identity is the authenticated principal.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Local authenticates a single administrator account.
//
// Logout revokes every token handed out so far: the ones this process
// issued by their jti, older ones (signed before a restart) by their
// issue time.
type Local struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	issued  map[string]time.Time // jti -> expiry, since the last logout
	revoked map[string]time.Time
	cutoff  time.Time
}

// NewLocal builds the provider. passwordHash is a bcrypt hash; secret signs
// tokens and must be at least MinSecretLen bytes.
func NewLocal(username, passwordHash string, secret []byte, ttl time.Duration) (*Local, error) {
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}
	if username == "" {
		return nil, errors.New("auth: admin username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("auth: admin password hash: %w", err)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Local{
		username: username,
		hash:     []byte(passwordHash),
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
		issued:   make(map[string]time.Time),
		revoked:  make(map[string]time.Time),
	}, nil
}

// Login verifies cred.
func (l *Local) Login(_ context.Context, cred Credential) (Identity, error) {
	user := strings.TrimSpace(cred.Username)
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(l.username)) == 1
	// Always run bcrypt so timing does not reveal the username.
	passErr := bcrypt.CompareHashAndPassword(l.hash, []byte(cred.Password))
	if !userOK || passErr != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: "admin:" + l.username, Username: l.username, Role: RoleAdmin}, nil
}

// Logout revokes every token issued up to now. The cookie itself is
// dropped by the HTTP layer.
func (l *Local) Logout(context.Context) error {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for jti, exp := range l.issued {
		l.revoked[jti] = exp
	}
	clear(l.issued)
	for jti, exp := range l.revoked {
		if now.After(exp) {
			delete(l.revoked, jti)
		}
	}
	// iat has one-second precision: tokens from the logout's own second
	// are only caught by jti.
	l.cutoff = now.Truncate(time.Second)
	return nil
}

// Revoked reports whether c was invalidated by a Logout.
func (l *Local) Revoked(c *Claims) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.revoked[c.ID]; ok {
		return true
	}
	if l.cutoff.IsZero() {
		return false
	}
	return c.IssuedAt == nil || c.IssuedAt.Time.Before(l.cutoff)
}

// Issue signs a token for id.
func (l *Local) Issue(id Identity) (string, error) {
	claims := &Claims{UserID: id.UserID, Username: id.Username, Role: id.Role}
	claims.ID = idgen.New()
	tok, err := GenerateToken(l.secret, claims, l.ttl)
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	l.issued[claims.ID] = claims.ExpiresAt.Time
	l.mu.Unlock()
	return tok, nil
}

// Middleware is the package Middleware for l's tokens. Revoked tokens are
// treated like invalid ones.
func (l *Local) Middleware() func(http.Handler) http.Handler {
	return middleware(l.secret, l.Revoked)
}

// TTL is the token lifetime.
func (l *Local) TTL() time.Duration { return l.ttl }

// HashPassword returns a bcrypt hash suitable for the admin config.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(b), nil
}
