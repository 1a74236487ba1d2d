package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"trade_gateway/internal/models"
	"trade_gateway/pkg/logger"
)

// Sessions maps bearer tokens to usernames. Tokens never expire.
type Sessions struct {
	verifier Verifier

	mu     sync.RWMutex
	tokens map[string]string
}

func NewSessions(v Verifier) *Sessions {
	return &Sessions{verifier: v, tokens: make(map[string]string)}
}

// Login issues a new token when the credentials match.
func (s *Sessions) Login(username, password string) (string, error) {
	if username == "" || !s.verifier.Verify(username, password) {
		logger.Warn("Failed login for user %q", username)
		return "", models.ErrUnauthenticated
	}

	token, err := newToken()
	if err != nil {
		return "", fmt.Errorf("session token: %w", err)
	}

	s.mu.Lock()
	s.tokens[token] = username
	s.mu.Unlock()

	logger.Info("User %s logged in", username)
	return token, nil
}

// User resolves a token to its username.
func (s *Sessions) User(token string) (string, error) {
	if token == "" {
		return "", models.ErrUnauthenticated
	}
	s.mu.RLock()
	user, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok {
		return "", models.ErrUnauthenticated
	}
	return user, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
