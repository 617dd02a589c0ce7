package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linkora/core/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// failStore simulates an unreachable backend.
type failStore struct{}

func (failStore) Put(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (failStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failStore) Delete(context.Context, string) error {
	return errors.New("connection refused")
}

func (failStore) Expire(context.Context, string, time.Duration) error {
	return errors.New("connection refused")
}

// expireCountingStore counts TTL refreshes passing through to the wrapped
// store.
type expireCountingStore struct {
	Store
	expires int
}

func (s *expireCountingStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.expires++
	return s.Store.Expire(ctx, key, ttl)
}

func newTestService(t *testing.T, ttl time.Duration) (*Service, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(store.Stop)

	signer := jwt.NewSigner("test-secret", ttl)
	svc := NewService(store, signer, nil, Options{TTL: ttl, MaxPerUser: 5})
	clock := newFakeClock()
	svc.now = clock.Now
	return svc, clock
}

func device(ua string) DeviceInfo {
	return DeviceInfo{UserAgent: ua, IP: "203.0.113.7", Platform: "linux", Browser: "firefox"}
}

func TestCreateSessionKeepsAllUnderCap(t *testing.T) {
	svc, clock := newTestService(t, time.Hour)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := svc.CreateSession(ctx, "u1", device("d"))
		require.NoError(t, err)
		ids = append(ids, id)
		clock.Advance(time.Minute)
	}

	live, err := svc.GetUserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, live, 5)
	for _, id := range ids {
		_, err := svc.GetSession(ctx, id)
		assert.NoError(t, err)
	}
}

func TestSixthSessionEvictsLeastRecentlyActive(t *testing.T) {
	svc, clock := newTestService(t, time.Hour)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id, err := svc.CreateSession(ctx, "u1", device("d"))
		require.NoError(t, err)
		ids = append(ids, id)
		clock.Advance(time.Minute)
	}

	// The first-created session polls and becomes the most recently active;
	// the second-created one is now the staleness loser.
	_, err := svc.ValidateSession(ctx, ids[0])
	require.NoError(t, err)
	clock.Advance(time.Minute)

	var evicted []string
	svc.OnDestroy(func(_, sessionID, reason string) {
		assert.Equal(t, ReasonEvicted, reason)
		evicted = append(evicted, sessionID)
	})

	sixth, err := svc.CreateSession(ctx, "u1", device("d"))
	require.NoError(t, err)

	require.Equal(t, []string{ids[1]}, evicted)
	_, err = svc.GetSession(ctx, ids[1])
	assert.ErrorIs(t, err, ErrSessionNotFound)

	live, err := svc.GetUserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, live, 5)
	for _, id := range []string{ids[0], ids[2], ids[3], ids[4], sixth} {
		_, err := svc.GetSession(ctx, id)
		assert.NoError(t, err, "session %s should have survived", id)
	}
}

func TestValidateSessionExtendsValidityIndefinitely(t *testing.T) {
	svc, clock := newTestService(t, time.Hour)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, "u1", device("d"))
	require.NoError(t, err)

	// Keep polling just inside the TTL: the session never expires.
	for i := 0; i < 5; i++ {
		clock.Advance(55 * time.Minute)
		rec, err := svc.ValidateSession(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "u1", rec.UserID)
	}

	// Activity stops; strictly after the TTL the session is invalid and the
	// stale record is deleted on read.
	clock.Advance(61 * time.Minute)
	_, err = svc.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrSessionExpired)

	// Lazy expiry is idempotent: the record is gone, not erroring.
	_, err = svc.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDestroyAllUserSessions(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := svc.CreateSession(ctx, "u1", device("d"))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	other, err := svc.CreateSession(ctx, "u2", device("d"))
	require.NoError(t, err)

	require.NoError(t, svc.DestroyAllUserSessions(ctx, "u1"))

	live, err := svc.GetUserSessions(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, live)
	for _, id := range ids {
		_, err := svc.ValidateSession(ctx, id)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	}

	// Unrelated users are untouched.
	_, err = svc.ValidateSession(ctx, other)
	assert.NoError(t, err)
}

func TestUpdateSessionActivityReportsMissing(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	ok, err := svc.UpdateSessionActivity(ctx, "nope", ActivityPatch{})
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := svc.CreateSession(ctx, "u1", device("d"))
	require.NoError(t, err)

	inactive := false
	ok, err = svc.UpdateSessionActivity(ctx, id, ActivityPatch{IsActive: &inactive})
	require.NoError(t, err)
	assert.True(t, ok)

	// Soft-disabled sessions fail validation without being deleted.
	_, err = svc.ValidateSession(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.GetSession(ctx, id)
	assert.NoError(t, err)
}

func TestValidateTokenRejectsDestroyedSession(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	bundle, err := svc.CreateTokenWithSession(ctx, "u1", device("d"))
	require.NoError(t, err)

	id, err := svc.ValidateToken(ctx, bundle.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, bundle.SessionID, id.SessionID)

	found, err := svc.DestroySession(ctx, bundle.SessionID)
	require.NoError(t, err)
	require.True(t, found)

	// The signature still verifies, but a token with a dead session must
	// never grant access.
	_, err = svc.ValidateToken(ctx, bundle.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestValidateTokenRejectsUserMismatch(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, "u1", device("d"))
	require.NoError(t, err)

	forged, err := jwt.NewSigner("test-secret", time.Hour).Sign("u2", id, jwt.TokenTypeAccess)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, forged)
	assert.ErrorIs(t, err, ErrSessionUserMismatch)
}

func TestValidateTokenRejectsRefreshTokenType(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, "u1", device("d"))
	require.NoError(t, err)

	refresh, err := jwt.NewSigner("test-secret", time.Hour).Sign("u1", id, jwt.TokenTypeRefresh)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, refresh)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestStoreUnavailableIsDistinctFromNotFound(t *testing.T) {
	signer := jwt.NewSigner("test-secret", time.Hour)
	svc := NewService(failStore{}, signer, nil, Options{TTL: time.Hour})
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "u1", device("d"))
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.GetSession(ctx, "whatever")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.ValidateSession(ctx, "whatever")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestValidateSessionBumpsIndexTTL(t *testing.T) {
	mem := NewMemoryStore()
	t.Cleanup(mem.Stop)
	store := &expireCountingStore{Store: mem}
	svc := NewService(store, jwt.NewSigner("test-secret", time.Hour), nil, Options{TTL: time.Hour})
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, "u1", device("d"))
	require.NoError(t, err)

	before := store.expires
	_, err = svc.ValidateSession(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, store.expires, before, "activity refresh must keep the index key alive")
}

func TestDestroyHookMayCallBackIntoService(t *testing.T) {
	svc, clock := newTestService(t, time.Hour)
	ctx := context.Background()

	// Every destroy path must fire the hook with no internal lock held, so a
	// hook is free to query the service it was registered on.
	hooks := 0
	svc.OnDestroy(func(userID, _, _ string) {
		hooks++
		_, err := svc.GetUserSessions(ctx, userID)
		assert.NoError(t, err)
	})

	ids := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		id, err := svc.CreateSession(ctx, "u1", device("d"))
		require.NoError(t, err)
		ids = append(ids, id)
		clock.Advance(time.Minute)
	}
	assert.Equal(t, 1, hooks, "cap eviction fires the hook")

	found, err := svc.DestroySession(ctx, ids[5])
	require.NoError(t, err)
	require.True(t, found)

	clock.Advance(2 * time.Hour)
	_, err = svc.GetSession(ctx, ids[4])
	assert.ErrorIs(t, err, ErrSessionExpired)

	require.NoError(t, svc.DestroyAllUserSessions(ctx, "u1"))
	assert.GreaterOrEqual(t, hooks, 3)
}

func TestDestroySessionFiresHookWithReason(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, "u1", device("d"))
	require.NoError(t, err)

	var gotUser, gotSession, gotReason string
	svc.OnDestroy(func(userID, sessionID, reason string) {
		gotUser, gotSession, gotReason = userID, sessionID, reason
	})

	found, err := svc.DestroySession(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "u1", gotUser)
	assert.Equal(t, id, gotSession)
	assert.Equal(t, ReasonLogout, gotReason)

	// Destroy is idempotent.
	found, err = svc.DestroySession(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}
