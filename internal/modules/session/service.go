package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/linkora/core/internal/pkg/jwt"
	"go.uber.org/zap"
)

const (
	// DefaultTTL is the session lifetime when none is configured.
	DefaultTTL = 30 * 24 * time.Hour
	// DefaultMaxPerUser caps concurrent sessions per user.
	DefaultMaxPerUser = 5

	sessionKeyPrefix   = "session:"
	userSessionsPrefix = "user_sessions:"
)

// DestroyHook is invoked after a session is removed, so the gateway can
// force-close live connections whose backing session disappeared. Hooks run
// outside the service's internal locks and may call back into the service.
type DestroyHook func(userID, sessionID, reason string)

// destroyedSession is a pending hook invocation, collected under indexMu and
// fired after it is released.
type destroyedSession struct {
	userID    string
	sessionID string
	reason    string
}

// Options tune the service.
type Options struct {
	TTL        time.Duration
	MaxPerUser int
}

// Service manages session records and the per-user session index on top of
// a TTL store, and binds token issuance to session creation.
type Service struct {
	store  Store
	signer *jwt.Signer
	logger *zap.Logger

	ttl        time.Duration
	maxPerUser int
	now        func() time.Time

	// indexMu serializes read-modify-write cycles on a user's session index
	// within this process. The store stays the source of truth across
	// instances.
	indexMu sync.Mutex

	hookMu    sync.RWMutex
	onDestroy DestroyHook
}

// NewService creates a session service.
func NewService(store Store, signer *jwt.Signer, logger *zap.Logger, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxPerUser <= 0 {
		opts.MaxPerUser = DefaultMaxPerUser
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		signer:     signer,
		logger:     logger,
		ttl:        opts.TTL,
		maxPerUser: opts.MaxPerUser,
		now:        time.Now,
	}
}

// OnDestroy registers the hook fired whenever a session is destroyed,
// whatever the reason (logout, eviction, lazy expiry).
func (s *Service) OnDestroy(hook DestroyHook) {
	s.hookMu.Lock()
	s.onDestroy = hook
	s.hookMu.Unlock()
}

// TTL returns the configured session lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// CreateSession generates a session record, appends it to the user's index
// and evicts the least-recently-active sessions beyond the cap. Eviction
// happens synchronously and may destroy other sessions of the same user.
func (s *Service) CreateSession(ctx context.Context, userID string, device DeviceInfo) (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}

	now := s.now()
	rec := &Session{
		ID:           id,
		UserID:       userID,
		Device:       device,
		CreatedAt:    now,
		LastActivity: now,
		IsActive:     true,
	}
	if err := s.putSession(ctx, rec); err != nil {
		return "", err
	}

	s.indexMu.Lock()
	index, err := s.readIndex(ctx, userID)
	if err != nil {
		s.indexMu.Unlock()
		return "", err
	}
	index = append(index, id)
	if err := s.writeIndex(ctx, userID, index); err != nil {
		s.indexMu.Unlock()
		return "", err
	}
	destroyed, err := s.cleanupUserSessionsLocked(ctx, userID)
	s.indexMu.Unlock()

	if err != nil {
		s.logger.Warn("session cap cleanup failed", zap.String("user_id", userID), zap.Error(err))
	}
	s.fireDestroyAll(destroyed)
	return id, nil
}

// GetSession reads a record, lazily deleting it when stale. The first read
// of a stale record returns ErrSessionExpired; later reads return
// ErrSessionNotFound with no other side effect.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	data, ok, err := s.store.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	var rec Session
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt session record %s: %w", sessionID, err)
	}

	if s.now().Sub(rec.LastActivity) >= s.ttl {
		s.destroyRecord(ctx, &rec, ReasonExpired)
		return nil, ErrSessionExpired
	}
	return &rec, nil
}

// ValidateSession checks liveness and, as a side effect, refreshes
// LastActivity so actively used sessions never expire.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (*Session, error) {
	rec, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !rec.IsActive {
		return nil, ErrSessionNotFound
	}

	rec.LastActivity = s.now()
	if err := s.putSession(ctx, rec); err != nil {
		return nil, err
	}
	s.refreshIndexTTL(ctx, rec.UserID)
	return rec, nil
}

// UpdateSessionActivity merges a patch into the record and refreshes
// LastActivity and the store TTL. Returns false when the session is gone.
func (s *Service) UpdateSessionActivity(ctx context.Context, sessionID string, patch ActivityPatch) (bool, error) {
	rec, err := s.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
			return false, nil
		}
		return false, err
	}

	if patch.Device != nil {
		rec.Device = *patch.Device
	}
	if patch.IsActive != nil {
		rec.IsActive = *patch.IsActive
	}
	rec.LastActivity = s.now()
	if err := s.putSession(ctx, rec); err != nil {
		return false, err
	}
	s.refreshIndexTTL(ctx, rec.UserID)
	return true, nil
}

// DestroySession removes the session from the store and from the owning
// user's index. Returns false when it did not exist.
func (s *Service) DestroySession(ctx context.Context, sessionID string) (bool, error) {
	data, ok, err := s.store.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return false, nil
	}

	var rec Session
	if err := json.Unmarshal(data, &rec); err != nil {
		_ = s.store.Delete(ctx, sessionKeyPrefix+sessionID)
		return true, nil
	}
	s.destroyRecord(ctx, &rec, ReasonLogout)
	return true, nil
}

// DestroyAllUserSessions removes every session in the user's index and
// clears the index.
func (s *Service) DestroyAllUserSessions(ctx context.Context, userID string) error {
	s.indexMu.Lock()
	index, err := s.readIndex(ctx, userID)
	if err != nil {
		s.indexMu.Unlock()
		return err
	}
	destroyed := make([]destroyedSession, 0, len(index))
	for _, id := range index {
		if err := s.store.Delete(ctx, sessionKeyPrefix+id); err != nil {
			s.indexMu.Unlock()
			s.fireDestroyAll(destroyed)
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		destroyed = append(destroyed, destroyedSession{userID: userID, sessionID: id, reason: ReasonRevoked})
	}
	err = s.store.Delete(ctx, userSessionsPrefix+userID)
	s.indexMu.Unlock()

	s.fireDestroyAll(destroyed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetUserSessions returns the user's live sessions, pruning index entries
// whose records are gone.
func (s *Service) GetUserSessions(ctx context.Context, userID string) ([]Session, error) {
	s.indexMu.Lock()
	live, destroyed, err := s.liveSessionsLocked(ctx, userID)
	s.indexMu.Unlock()
	s.fireDestroyAll(destroyed)
	return live, err
}

// CreateTokenWithSession creates a session and signs an access token bound
// to it.
func (s *Service) CreateTokenWithSession(ctx context.Context, userID string, device DeviceInfo) (*TokenBundle, error) {
	sessionID, err := s.CreateSession(ctx, userID, device)
	if err != nil {
		return nil, err
	}
	token, err := s.signer.Sign(userID, sessionID, jwt.TokenTypeAccess)
	if err != nil {
		s.destroyQuietly(ctx, sessionID)
		return nil, err
	}
	return &TokenBundle{Token: token, SessionID: sessionID}, nil
}

// ValidateToken performs the full double check: cryptographic signature
// verification AND store-backed session validation. A validly signed token
// whose session is gone, or whose user does not match the session owner,
// is always rejected.
func (s *Service) ValidateToken(ctx context.Context, token string) (*TokenIdentity, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != jwt.TokenTypeAccess {
		return nil, jwt.ErrInvalidToken
	}

	rec, err := s.ValidateSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if rec.UserID != claims.UserID {
		return nil, ErrSessionUserMismatch
	}
	return &TokenIdentity{UserID: rec.UserID, SessionID: rec.ID, Session: rec}, nil
}

// cleanupUserSessionsLocked enforces the per-user cap: sessions are sorted
// by LastActivity ascending and the oldest excess entries destroyed, so an
// actively polling device is never evicted ahead of a stale one. The
// returned list carries the pending hook invocations for the caller to fire
// once indexMu is released.
func (s *Service) cleanupUserSessionsLocked(ctx context.Context, userID string) ([]destroyedSession, error) {
	live, destroyed, err := s.liveSessionsLocked(ctx, userID)
	if err != nil {
		return destroyed, err
	}
	if len(live) <= s.maxPerUser {
		return destroyed, nil
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].LastActivity.Before(live[j].LastActivity)
	})
	for _, victim := range live[:len(live)-s.maxPerUser] {
		s.logger.Info("session evicted over cap",
			zap.String("user_id", userID),
			zap.String("session_id", victim.ID),
			zap.Time("last_activity", victim.LastActivity),
		)
		rec := victim
		if s.destroyRecordLocked(ctx, &rec) {
			destroyed = append(destroyed, destroyedSession{userID: userID, sessionID: rec.ID, reason: ReasonEvicted})
		}
	}
	return destroyed, nil
}

// liveSessionsLocked loads the index and resolves each entry against the
// store, rewriting the index when entries turned out dead. Lazily expired
// records are returned as pending hook invocations alongside the live ones.
func (s *Service) liveSessionsLocked(ctx context.Context, userID string) ([]Session, []destroyedSession, error) {
	index, err := s.readIndex(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	live := make([]Session, 0, len(index))
	keep := make([]string, 0, len(index))
	var destroyed []destroyedSession
	for _, id := range index {
		data, ok, err := s.store.Get(ctx, sessionKeyPrefix+id)
		if err != nil {
			return nil, destroyed, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if !ok {
			continue
		}
		var rec Session
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if s.now().Sub(rec.LastActivity) >= s.ttl {
			if s.destroyRecordLocked(ctx, &rec) {
				destroyed = append(destroyed, destroyedSession{userID: rec.UserID, sessionID: rec.ID, reason: ReasonExpired})
			}
			continue
		}
		live = append(live, rec)
		keep = append(keep, id)
	}

	if len(keep) != len(index) {
		if err := s.writeIndex(ctx, userID, keep); err != nil {
			s.logger.Warn("session index prune failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return live, destroyed, nil
}

func (s *Service) putSession(ctx context.Context, rec *Session) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, sessionKeyPrefix+rec.ID, data, s.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// destroyRecord removes a session record and its index entry, then fires
// the destroy hook with indexMu already released.
func (s *Service) destroyRecord(ctx context.Context, rec *Session, reason string) {
	s.indexMu.Lock()
	ok := s.destroyRecordLocked(ctx, rec)
	s.indexMu.Unlock()
	if ok {
		s.fireDestroy(rec.UserID, rec.ID, reason)
	}
}

// destroyRecordLocked removes the record and prunes the index. It never
// fires the destroy hook itself: hooks block on external systems and must
// not run under indexMu.
func (s *Service) destroyRecordLocked(ctx context.Context, rec *Session) bool {
	if err := s.store.Delete(ctx, sessionKeyPrefix+rec.ID); err != nil {
		s.logger.Warn("session delete failed", zap.String("session_id", rec.ID), zap.Error(err))
		return false
	}
	if index, err := s.readIndex(ctx, rec.UserID); err == nil {
		next := index[:0]
		for _, id := range index {
			if id != rec.ID {
				next = append(next, id)
			}
		}
		if len(next) != len(index) {
			if err := s.writeIndex(ctx, rec.UserID, next); err != nil {
				s.logger.Warn("session index update failed", zap.String("user_id", rec.UserID), zap.Error(err))
			}
		}
	}
	return true
}

func (s *Service) destroyQuietly(ctx context.Context, sessionID string) {
	if _, err := s.DestroySession(ctx, sessionID); err != nil {
		s.logger.Warn("session rollback failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *Service) fireDestroyAll(list []destroyedSession) {
	for _, d := range list {
		s.fireDestroy(d.userID, d.sessionID, d.reason)
	}
}

func (s *Service) fireDestroy(userID, sessionID, reason string) {
	s.hookMu.RLock()
	hook := s.onDestroy
	s.hookMu.RUnlock()
	if hook != nil {
		hook(userID, sessionID, reason)
	}
}

func (s *Service) readIndex(ctx context.Context, userID string) ([]string, error) {
	data, ok, err := s.store.Get(ctx, userSessionsPrefix+userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, nil
	}
	var index []string
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, nil
	}
	return index, nil
}

func (s *Service) writeIndex(ctx context.Context, userID string, index []string) error {
	if len(index) == 0 {
		if err := s.store.Delete(ctx, userSessionsPrefix+userID); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}
	data, err := json.Marshal(index)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, userSessionsPrefix+userID, data, s.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// refreshIndexTTL keeps the index key alive alongside the session records.
// Best effort: a failure here never invalidates the activity refresh.
func (s *Service) refreshIndexTTL(ctx context.Context, userID string) {
	if err := s.store.Expire(ctx, userSessionsPrefix+userID, s.ttl); err != nil {
		s.logger.Warn("session index ttl refresh failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// newSessionID returns a 256-bit random hex id.
func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
