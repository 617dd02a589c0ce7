package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linkora/core/internal/modules/session"
	"github.com/linkora/core/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *session.Service) {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(store.Stop)

	signer := jwt.NewSigner("hub-test-secret", time.Hour)
	sessions := session.NewService(store, signer, nil, session.Options{TTL: time.Hour})

	hub := NewHub(sessions, nil, nil, nil, HubOptions{HandshakeTimeout: time.Second})
	sessions.OnDestroy(hub.CloseSessionConnections)
	return hub, sessions
}

func TestSessionDestroyForceClosesLiveConnections(t *testing.T) {
	hub, sessions := newTestHub(t)
	ctx := context.Background()

	sid, err := sessions.CreateSession(ctx, "u1", session.DeviceInfo{})
	require.NoError(t, err)

	conn := newFakeConn("c1")
	hub.Registry().Register(Identity{UserID: "u1", SessionID: sid}, conn)
	require.True(t, hub.Registry().IsOnline("u1"))

	found, err := sessions.DestroySession(ctx, sid)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, []string{CloseSessionRevoked}, conn.closeReasons())
	assert.False(t, hub.Registry().IsOnline("u1"))
}

func TestHubSendsDelegateToRegistry(t *testing.T) {
	hub, _ := newTestHub(t)

	conn := newFakeConn("c1")
	hub.Registry().Register(Identity{UserID: "u1", SessionID: "s1"}, conn)

	assert.True(t, hub.SendToUser("u1", "ping", nil))
	assert.False(t, hub.SendToUser("nobody", "ping", nil))

	hub.SendToRoom(RoomUser("u1"), "room-ping", nil)
	hub.Broadcast("everyone", nil)
	assert.Equal(t, []string{"ping", "room-ping", "everyone"}, conn.eventNames())
}

func TestDeliverAppliesRemoteEnvelopes(t *testing.T) {
	hub, _ := newTestHub(t)

	conn := newFakeConn("c1")
	hub.Registry().Register(Identity{UserID: "u1", SessionID: "s1"}, conn)

	hub.deliver(Message{Event: "ping", UserID: "u1"})
	hub.deliver(Message{Event: "room-ping", Room: RoomUser("u1")})
	hub.deliver(Message{Event: "everyone"})
	assert.Equal(t, []string{"ping", "room-ping", "everyone"}, conn.eventNames())

	hub.deliver(Message{CloseSessionID: "s1", CloseReason: CloseSessionRevoked})
	assert.Equal(t, []string{CloseSessionRevoked}, conn.closeReasons())
	assert.False(t, hub.Registry().IsOnline("u1"))
}

func TestCloseCodeForAuthErrors(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{jwt.ErrInvalidToken, CloseAuthInvalidToken},
		{jwt.ErrExpiredToken, CloseAuthExpiredToken},
		{session.ErrSessionNotFound, CloseSessionNotFound},
		{session.ErrSessionExpired, CloseSessionExpired},
		{session.ErrSessionUserMismatch, CloseSessionUserMismatch},
		{session.ErrStoreUnavailable, CloseStoreUnavailable},
		{context.DeadlineExceeded, CloseHandshakeTimeout},
		{errors.New("anything else"), CloseSessionNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, closeCodeForAuthErr(tc.err), "error %v", tc.err)
	}
}

func TestAuthenticateAgainstSessionService(t *testing.T) {
	hub, sessions := newTestHub(t)
	ctx := context.Background()

	_, code := hub.authenticate("")
	assert.Equal(t, CloseAuthInvalidToken, code)

	_, code = hub.authenticate("garbage")
	assert.Equal(t, CloseAuthInvalidToken, code)

	bundle, err := sessions.CreateTokenWithSession(ctx, "u1", session.DeviceInfo{})
	require.NoError(t, err)

	identity, code := hub.authenticate(bundle.Token)
	assert.Empty(t, code)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, bundle.SessionID, identity.SessionID)

	// A still-signed token whose session was revoked must be rejected.
	_, err = sessions.DestroySession(ctx, bundle.SessionID)
	require.NoError(t, err)
	_, code = hub.authenticate(bundle.Token)
	assert.Equal(t, CloseSessionNotFound, code)
}

func TestDecodeFrameShapes(t *testing.T) {
	p, ok := decodeFrame[directMessagePayload]([]any{map[string]interface{}{
		"recipient_id":    "u2",
		"conversation_id": "c9",
		"content":         "hey",
	}})
	require.True(t, ok)
	assert.Equal(t, directMessagePayload{RecipientID: "u2", ConversationID: "c9", Content: "hey"}, p)

	p, ok = decodeFrame[directMessagePayload]([]any{`{"recipient_id":"u2","content":"hey"}`})
	require.True(t, ok)
	assert.Equal(t, "u2", p.RecipientID)

	_, ok = decodeFrame[directMessagePayload](nil)
	assert.False(t, ok)
	_, ok = decodeFrame[directMessagePayload]([]any{nil})
	assert.False(t, ok)
	_, ok = decodeFrame[orderRoomPayload]([]any{"{broken"})
	assert.False(t, ok)
}
