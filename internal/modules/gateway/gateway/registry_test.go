package gateway

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	event   string
	payload interface{}
}

type fakeConn struct {
	id string

	mu     sync.Mutex
	events []emitted
	closed []string
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, emitted{event: event, payload: payload})
	return nil
}

func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, reason)
}

func (c *fakeConn) eventNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.events))
	for i, e := range c.events {
		names[i] = e.event
	}
	return names
}

func (c *fakeConn) recorded() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.events...)
}

func (c *fakeConn) closeReasons() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.closed...)
}

func TestSendToUserFansOutToEveryConnection(t *testing.T) {
	r := NewRegistry()
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")
	r.Register(Identity{UserID: "u1", SessionID: "s1"}, c1)
	r.Register(Identity{UserID: "u1", SessionID: "s2"}, c2)

	assert.True(t, r.SendToUser("u1", "ping", nil))
	assert.Equal(t, []string{"ping"}, c1.eventNames())
	assert.Equal(t, []string{"ping"}, c2.eventNames())

	r.Deregister("c1")
	assert.True(t, r.SendToUser("u1", "ping", nil))
	assert.Equal(t, []string{"ping"}, c1.eventNames(), "deregistered connection must not receive")
	assert.Equal(t, []string{"ping", "ping"}, c2.eventNames())

	r.Deregister("c2")
	assert.False(t, r.IsOnline("u1"))
	assert.False(t, r.SendToUser("u1", "ping", nil))
}

func TestRoleRoomMembershipIsFixedAtConnectTime(t *testing.T) {
	r := NewRegistry()
	admin := newFakeConn("a1")
	buyer := newFakeConn("b1")
	r.Register(Identity{UserID: "admin", SessionID: "sa", IsAdmin: true}, admin)
	r.Register(Identity{UserID: "buyer", SessionID: "sb"}, buyer)

	r.SendToRoom(RoomRoleAdmin, "notice", nil)
	assert.Contains(t, admin.eventNames(), "notice")
	assert.NotContains(t, buyer.eventNames(), "notice")

	// The admin's role changes; the existing connection keeps its
	// connect-time membership, and only new connections see the new role.
	demoted := newFakeConn("a2")
	r.Register(Identity{UserID: "admin", SessionID: "sa2"}, demoted)

	r.SendToRoom(RoomRoleAdmin, "notice", nil)
	assert.Equal(t, 2, countOf(admin.eventNames(), "notice"))
	assert.Zero(t, countOf(demoted.eventNames(), "notice"))
}

func TestUserRoomAndPremiumRoom(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("p1")
	r.Register(Identity{UserID: "u1", SessionID: "s1", IsPremium: true}, c)

	r.SendToRoom(RoomUser("u1"), "direct", nil)
	r.SendToRoom(RoomRolePremium, "perk", nil)
	assert.Equal(t, []string{"direct", "perk"}, c.eventNames())
	assert.Equal(t, 1, r.RoomSize(RoomRolePremium))
}

func TestOrderRoomJoinLeave(t *testing.T) {
	r := NewRegistry()
	c := newFakeConn("c1")
	r.Register(Identity{UserID: "u1", SessionID: "s1"}, c)

	require.True(t, r.Join("c1", RoomOrder("o1")))
	assert.Equal(t, 1, r.RoomSize(RoomOrder("o1")))

	r.SendToRoom(RoomOrder("o1"), "tracking", nil)
	assert.Contains(t, c.eventNames(), "tracking")

	r.Leave("c1", RoomOrder("o1"))
	assert.Zero(t, r.RoomSize(RoomOrder("o1")))

	r.SendToRoom(RoomOrder("o1"), "tracking", nil)
	assert.Equal(t, 1, countOf(c.eventNames(), "tracking"))

	// Joining requires a registered connection.
	assert.False(t, r.Join("ghost", RoomOrder("o1")))
}

func TestCloseSessionForceClosesItsConnections(t *testing.T) {
	r := NewRegistry()
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")
	other := newFakeConn("c3")
	r.Register(Identity{UserID: "u1", SessionID: "s1"}, c1)
	r.Register(Identity{UserID: "u1", SessionID: "s1"}, c2)
	r.Register(Identity{UserID: "u1", SessionID: "s2"}, other)

	n := r.CloseSession("s1", CloseSessionRevoked)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{CloseSessionRevoked}, c1.closeReasons())
	assert.Equal(t, []string{CloseSessionRevoked}, c2.closeReasons())
	assert.Empty(t, other.closeReasons())

	// The user stays online through the surviving session.
	assert.True(t, r.IsOnline("u1"))
	assert.Equal(t, 1, r.ConnectionCount())

	assert.Zero(t, r.CloseSession("s1", CloseSessionRevoked))
}

func TestCloseUserDropsEverySessionOfTheUser(t *testing.T) {
	r := NewRegistry()
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")
	bystander := newFakeConn("c3")
	r.Register(Identity{UserID: "u1", SessionID: "s1"}, c1)
	r.Register(Identity{UserID: "u1", SessionID: "s2"}, c2)
	r.Register(Identity{UserID: "u2", SessionID: "s3"}, bystander)

	n := r.CloseUser("u1", CloseSessionRevoked)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{CloseSessionRevoked}, c1.closeReasons())
	assert.Equal(t, []string{CloseSessionRevoked}, c2.closeReasons())
	assert.Empty(t, bystander.closeReasons())
	assert.False(t, r.IsOnline("u1"))
	assert.True(t, r.IsOnline("u2"))
}

func TestConnectedUserIDs(t *testing.T) {
	r := NewRegistry()
	r.Register(Identity{UserID: "u1", SessionID: "s1"}, newFakeConn("c1"))
	r.Register(Identity{UserID: "u1", SessionID: "s2"}, newFakeConn("c2"))
	r.Register(Identity{UserID: "u2", SessionID: "s3"}, newFakeConn("c3"))

	assert.ElementsMatch(t, []string{"u1", "u2"}, r.ConnectedUserIDs())
	assert.Equal(t, 2, r.OnlineUserCount())
	assert.Equal(t, 3, r.ConnectionCount())
}

func TestBroadcastReachesEveryConnection(t *testing.T) {
	r := NewRegistry()
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")
	r.Register(Identity{UserID: "u1", SessionID: "s1"}, c1)
	r.Register(Identity{UserID: "u2", SessionID: "s2"}, c2)

	r.Broadcast("announce", nil)
	assert.Contains(t, c1.eventNames(), "announce")
	assert.Contains(t, c2.eventNames(), "announce")
}

func countOf(names []string, want string) int {
	n := 0
	for _, name := range names {
		if name == want {
			n++
		}
	}
	return n
}
