// Package auth owns credentials and login sessions. The realtime core only
// depends on the Authenticator interface: resolve a bearer token to a
// principal or fail with model.ErrUnauthenticated.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskrooms/taskrooms/internal/model"
	"github.com/taskrooms/taskrooms/internal/store"
)

// Authenticator resolves a session token to the authenticated principal.
type Authenticator interface {
	Principal(ctx context.Context, token string) (*model.User, error)
}

// Service implements registration, login and session resolution. Sessions are
// held in memory; they are as ephemeral as the websocket connections they
// authenticate and drop together with the process.
type Service struct {
	store store.Store

	mu       sync.RWMutex
	sessions map[string]int64 // token -> user id
}

func New(s store.Store) *Service {
	return &Service{store: s, sessions: make(map[string]int64)}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username required", model.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password required", model.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.store.Users().Create(ctx, &model.User{Username: username, PasswordHash: string(hash)})
}

// Login verifies credentials and issues a session token. Unknown users and
// wrong passwords fail identically with model.ErrUnauthenticated.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("%w: bad credentials", model.ErrUnauthenticated)
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: bad credentials", model.ErrUnauthenticated)
	}

	token := uuid.New().String()
	s.mu.Lock()
	s.sessions[token] = u.ID
	s.mu.Unlock()
	return token, nil
}

// Principal resolves a token to its user. Fails with model.ErrUnauthenticated
// for unknown or expired tokens.
func (s *Service) Principal(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", model.ErrUnauthenticated)
	}
	s.mu.RLock()
	userID, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", model.ErrUnauthenticated)
	}
	u, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: user gone", model.ErrUnauthenticated)
		}
		return nil, err
	}
	return u, nil
}

// Logout invalidates a token. Unknown tokens are a no-op.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}
