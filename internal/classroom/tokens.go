// SPDX-License-Identifier: MPL-2.0

package classroom

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/charmbracelet/ssh"
)

type (
	// Token is a single learner's credential. Learners authenticate with the
	// token as their SSH password; there are no accounts.
	Token struct {
		Value     string
		Learner   string
		CreatedAt time.Time
		ExpiresAt time.Time
	}

	// Invitation is what the instructor hands to a learner: where to
	// connect and with which token.
	Invitation struct {
		Host     string
		Port     int
		Token    string
		Learner  string
		ExpireAt time.Time
	}
)

// IssueToken creates a fresh token for a learner.
func (s *Server) IssueToken(learner string) (*Token, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	token := &Token{
		Value:     hex.EncodeToString(buf),
		Learner:   learner,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
	}

	s.tokenMu.Lock()
	s.tokens[token.Value] = token
	s.tokenMu.Unlock()

	s.logger.Debug("issued token", "learner", learner)
	return token, nil
}

// ValidateToken looks a token up, expiring it on the way if its TTL passed.
func (s *Server) ValidateToken(value string) (*Token, bool) {
	s.tokenMu.RLock()
	token, exists := s.tokens[value]
	s.tokenMu.RUnlock()

	if !exists {
		return nil, false
	}
	if s.now().After(token.ExpiresAt) {
		s.RevokeToken(value)
		return nil, false
	}
	return token, true
}

// RevokeToken invalidates one token.
func (s *Server) RevokeToken(value string) {
	s.tokenMu.Lock()
	delete(s.tokens, value)
	s.tokenMu.Unlock()
}

// RevokeLearner invalidates every token issued to a learner.
func (s *Server) RevokeLearner(learner string) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	for value, token := range s.tokens {
		if token.Learner == learner {
			delete(s.tokens, value)
		}
	}
}

// Invite issues a token and packages it with the connection details.
// Fails when the server is not accepting connections.
func (s *Server) Invite(learner string) (*Invitation, error) {
	if !s.IsRunning() {
		return nil, fmt.Errorf("classroom server is not running (state: %s)", s.State())
	}

	token, err := s.IssueToken(learner)
	if err != nil {
		return nil, err
	}

	return &Invitation{
		Host:     s.cfg.Host,
		Port:     s.Port(),
		Token:    token.Value,
		Learner:  learner,
		ExpireAt: token.ExpiresAt,
	}, nil
}

// expireTokens sweeps expired tokens until the server stops.
func (s *Server) expireTokens() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tokenMu.Lock()
			now := s.now()
			for value, token := range s.tokens {
				if now.After(token.ExpiresAt) {
					delete(s.tokens, value)
				}
			}
			s.tokenMu.Unlock()
		}
	}
}

// authenticateToken is the SSH password handler; the password is the token.
func (s *Server) authenticateToken(ctx ssh.Context, password string) bool {
	token, valid := s.ValidateToken(password)
	if !valid {
		s.logger.Warn("rejected connection with invalid token", "user", ctx.User())
		return false
	}

	ctx.SetValue("learner", token.Learner)

	s.logger.Debug("learner authenticated", "learner", token.Learner)
	return true
}

// rejectPublicKey refuses all public-key authentication; only tokens grant
// access.
func (s *Server) rejectPublicKey(ssh.Context, ssh.PublicKey) bool {
	return false
}
