package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/calsync/internal/errors"
	"github.com/felixgeelhaar/calsync/internal/log"
)

// Store is the single source of truth for the current session. All reads go
// through Current; all persistence goes through the Backend.
//
// Every Clear advances an epoch. Callers that start an asynchronous login can
// capture the epoch first and use SetIfEpoch so a response arriving after a
// logout does not bring the old session back.
type Store struct {
	backend Backend
	logger  *log.Logger

	mu      sync.RWMutex
	current *Session
	epoch   uint64
}

// NewStore creates a store over backend.
func NewStore(backend Backend, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Nop()
	}
	return &Store{
		backend: backend,
		logger:  logger.With("component", "session"),
	}
}

// Restore loads the persisted session. It returns false when the token or the
// user record is missing, or when the user record does not parse; in those
// cases any partial state is removed. Restore never fails.
func (s *Store) Restore(ctx context.Context) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, hasToken, tokenErr := s.backend.Get(ctx, TokenKey)
	rawUser, hasUser, userErr := s.backend.Get(ctx, UserKey)

	if err := stderrors.Join(tokenErr, userErr); err != nil {
		s.logger.WithError(err).Warn("session storage unreadable, treating as signed out")
		s.discardLocked(ctx)
		return nil, false
	}

	if !hasToken && !hasUser {
		s.current = nil
		return nil, false
	}

	if !hasToken || token == "" || !hasUser {
		s.logger.Warn("partial session found, clearing", "has_token", hasToken, "has_user", hasUser)
		s.discardLocked(ctx)
		return nil, false
	}

	user, err := decodeUser(rawUser)
	if err != nil {
		s.logger.WithError(err).Warn("stored user record is invalid, clearing")
		s.discardLocked(ctx)
		return nil, false
	}

	s.current = &Session{Token: token, User: user}
	return s.copyLocked(), true
}

// Set persists token and user and makes them current.
func (s *Store) Set(ctx context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(ctx, sess)
}

// SetIfEpoch behaves like Set but only when no Clear happened since epoch was
// read. It reports whether the session was stored.
func (s *Store) SetIfEpoch(ctx context.Context, epoch uint64, sess Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Debug("dropping stale session write", "epoch", epoch, "current_epoch", s.epoch)
		return false, nil
	}
	if err := s.setLocked(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

// Clear removes the persisted session and resets the current one.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// ClearIfEpoch clears only when the store is still at epoch. It reports
// whether a clear happened.
func (s *Store) ClearIfEpoch(ctx context.Context, epoch uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch || s.current == nil {
		return false, nil
	}
	return true, s.clearLocked(ctx)
}

// Current returns a copy of the current session, or nil.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Token returns the current bearer token together with the epoch it belongs to.
func (s *Store) Token() (string, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", s.epoch, false
	}
	return s.current.Token, s.epoch, true
}

// Epoch returns the number of clears so far.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

func (s *Store) setLocked(ctx context.Context, sess Session) error {
	if sess.Token == "" || sess.User.ID == "" {
		return errors.NewStoreError("write", fmt.Errorf("token and user id are required"))
	}

	rawUser, err := encodeUser(sess.User)
	if err != nil {
		return errors.NewStoreError("write", err)
	}

	if b, ok := s.backend.(Batcher); ok {
		if err := b.SetAll(ctx, map[string]string{TokenKey: sess.Token, UserKey: rawUser}); err != nil {
			return errors.NewStoreError("write", err)
		}
	} else {
		if err := s.backend.Set(ctx, TokenKey, sess.Token); err != nil {
			return errors.NewStoreError("write", err)
		}
		if err := s.backend.Set(ctx, UserKey, rawUser); err != nil {
			// never leave a token without its user
			_ = s.backend.Delete(ctx, TokenKey) //nolint:errcheck // best effort rollback
			return errors.NewStoreError("write", err)
		}
	}

	cp := sess
	s.current = &cp
	return nil
}

func (s *Store) clearLocked(ctx context.Context) error {
	s.current = nil
	s.epoch++

	var err error
	if b, ok := s.backend.(Batcher); ok {
		err = b.DeleteAll(ctx, TokenKey, UserKey)
	} else {
		err = stderrors.Join(
			s.backend.Delete(ctx, TokenKey),
			s.backend.Delete(ctx, UserKey),
		)
	}
	if err != nil {
		return errors.NewStoreError("clear", err)
	}
	return nil
}

// discardLocked clears partial or unreadable state and only logs failures.
func (s *Store) discardLocked(ctx context.Context) {
	if err := s.clearLocked(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to remove partial session")
	}
}

func (s *Store) copyLocked() *Session {
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}
