// Package session is the identity provider for the demo: bcrypt-checked
// demo users, JWT bearer tokens, and session start/end signals that drive
// the per-session sync lifecycle.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	// ErrNoSession is returned when a token does not map to a live session.
	ErrNoSession = errors.New("session: no active session")
)

// Session is one active user session.
type Session struct {
	ID        string
	UserID    string
	Email     string
	CreatedAt time.Time
}

type user struct {
	id           string
	email        string
	passwordHash []byte
}

// Listener observes session transitions.
type Listener func(Session)

// Manager issues and tracks sessions. Tokens are JWTs, but a token is only
// valid while its session is live server-side, so logout takes effect
// immediately.
type Manager struct {
	secret []byte
	ttl    time.Duration
	log    zerolog.Logger

	mu       sync.RWMutex
	users    map[string]*user // by email
	sessions map[string]Session
	onStart  []Listener
	onEnd    []Listener
}

// NewManager creates a session manager signing tokens with secret.
func NewManager(secret []byte, ttl time.Duration, log zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Manager{
		secret:   secret,
		ttl:      ttl,
		log:      log,
		users:    make(map[string]*user),
		sessions: make(map[string]Session),
	}
}

// Register adds a user and returns the assigned id.
func (m *Manager) Register(email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("session: hashing password: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[email]; exists {
		return "", fmt.Errorf("session: user %s already exists", email)
	}
	u := &user{id: uuid.New().String(), email: email, passwordHash: hash}
	m.users[email] = u
	return u.id, nil
}

// OnStart registers a listener fired synchronously when a session begins.
func (m *Manager) OnStart(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStart = append(m.onStart, fn)
}

// OnEnd registers a listener fired synchronously when a session ends.
func (m *Manager) OnEnd(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = append(m.onEnd, fn)
}

// Login verifies credentials, starts a session and returns it with a signed
// bearer token.
func (m *Manager) Login(email, password string) (Session, string, error) {
	m.mu.RLock()
	u, ok := m.users[email]
	m.mu.RUnlock()
	if !ok {
		return Session{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return Session{}, "", ErrInvalidCredentials
	}

	sess := Session{
		ID:        uuid.New().String(),
		UserID:    u.id,
		Email:     u.email,
		CreatedAt: time.Now().UTC(),
	}

	claims := jwt.RegisteredClaims{
		Subject:   sess.UserID,
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.CreatedAt.Add(m.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Session{}, "", fmt.Errorf("session: signing token: %w", err)
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	listeners := append([]Listener(nil), m.onStart...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
	m.log.Info().Str("user_id", sess.UserID).Str("session_id", sess.ID).Msg("Session started")
	return sess, token, nil
}

// Current resolves a bearer token to its live session.
func (m *Manager) Current(token string) (Session, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("session: parsing token: %w", err)
	}

	m.mu.RLock()
	sess, ok := m.sessions[claims.ID]
	m.mu.RUnlock()
	if !ok {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Logout ends the session behind the token. Unknown tokens are an error;
// ending an already-ended session is not a crash, just ErrNoSession.
func (m *Manager) Logout(token string) error {
	sess, err := m.Current(token)
	if err != nil {
		return err
	}
	m.end(sess.ID)
	return nil
}

// EndAll terminates every live session, firing end listeners for each.
// Used at server shutdown.
func (m *Manager) EndAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.end(id)
	}
}

func (m *Manager) end(sessionID string) {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	listeners := append([]Listener(nil), m.onEnd...)
	m.mu.Unlock()

	if !ok {
		return
	}
	for _, fn := range listeners {
		fn(sess)
	}
	m.log.Info().Str("user_id", sess.UserID).Str("session_id", sess.ID).Msg("Session ended")
}
