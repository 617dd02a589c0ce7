package gateway

import (
	"sync"
)

// Room names. Every registered connection joins its owner's user room;
// role rooms are joined from connect-time identity attributes.
const (
	RoomRoleAdmin   = "role:admin"
	RoomRolePremium = "role:premium"
)

// RoomUser returns the personal room of a user.
func RoomUser(userID string) string { return "user:" + userID }

// RoomOrder returns the tracking room of an order.
func RoomOrder(orderID string) string { return "order:" + orderID }

type regEntry struct {
	conn     Conn
	identity Identity
	rooms    map[string]struct{}
}

// Registry is the process-local bidirectional map between authenticated
// users and their live connections, plus room membership. A user may hold
// any number of connections (multi-device); delivery to a user fans out to
// all of them. Nothing here is persisted and nothing here is authoritative
// beyond "this process currently holds a socket for this user".
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*regEntry
	users    map[string]map[string]Conn
	sessions map[string]map[string]Conn
	rooms    map[string]map[string]Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:    make(map[string]*regEntry),
		users:    make(map[string]map[string]Conn),
		sessions: make(map[string]map[string]Conn),
		rooms:    make(map[string]map[string]Conn),
	}
}

// Register adds a connection under its authenticated identity and joins the
// user room and any role rooms the identity carries.
func (r *Registry) Register(identity Identity, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &regEntry{conn: conn, identity: identity, rooms: make(map[string]struct{})}
	r.conns[conn.ID()] = entry

	if r.users[identity.UserID] == nil {
		r.users[identity.UserID] = make(map[string]Conn)
	}
	r.users[identity.UserID][conn.ID()] = conn

	if identity.SessionID != "" {
		if r.sessions[identity.SessionID] == nil {
			r.sessions[identity.SessionID] = make(map[string]Conn)
		}
		r.sessions[identity.SessionID][conn.ID()] = conn
	}

	r.joinLocked(entry, RoomUser(identity.UserID))
	if identity.IsAdmin {
		r.joinLocked(entry, RoomRoleAdmin)
	}
	if identity.IsPremium {
		r.joinLocked(entry, RoomRolePremium)
	}
}

// Deregister removes a connection from its owner, its session and every
// room it joined. When the owner's connection set becomes empty the user is
// simply offline; no further state is retained.
func (r *Registry) Deregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregisterLocked(connID)
}

func (r *Registry) deregisterLocked(connID string) {
	entry, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(r.conns, connID)

	if set := r.users[entry.identity.UserID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.users, entry.identity.UserID)
		}
	}
	if sid := entry.identity.SessionID; sid != "" {
		if set := r.sessions[sid]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.sessions, sid)
			}
		}
	}
	for room := range entry.rooms {
		if set := r.rooms[room]; set != nil {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.rooms, room)
			}
		}
	}
}

// Join adds a registered connection to a room.
func (r *Registry) Join(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return false
	}
	r.joinLocked(entry, room)
	return true
}

// Leave removes a connection from a room.
func (r *Registry) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return
	}
	delete(entry.rooms, room)
	if set := r.rooms[room]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.rooms, room)
		}
	}
}

func (r *Registry) joinLocked(entry *regEntry, room string) {
	entry.rooms[room] = struct{}{}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]Conn)
	}
	r.rooms[room][entry.conn.ID()] = entry.conn
}

// SendToUser fans an event out to every live connection of the user.
// Returns true iff at least one delivery was attempted; at-most-once,
// best-effort, no confirmation awaited. Emits happen on a snapshot taken
// under the lock so no lock is held across transport writes.
func (r *Registry) SendToUser(userID, event string, payload interface{}) bool {
	r.mu.RLock()
	targets := snapshotConns(r.users[userID])
	r.mu.RUnlock()

	for _, conn := range targets {
		_ = conn.Emit(event, payload)
	}
	return len(targets) > 0
}

// SendToRoom fans an event out to all current members of a room.
func (r *Registry) SendToRoom(room, event string, payload interface{}) {
	r.mu.RLock()
	targets := snapshotConns(r.rooms[room])
	r.mu.RUnlock()

	for _, conn := range targets {
		_ = conn.Emit(event, payload)
	}
}

// Broadcast fans an event out to every registered connection.
func (r *Registry) Broadcast(event string, payload interface{}) {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.conns))
	for _, entry := range r.conns {
		targets = append(targets, entry.conn)
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		_ = conn.Emit(event, payload)
	}
}

// CloseSession force-closes every connection backed by the given session.
// Used when a session is destroyed while connections are live, so a
// connection never outlives its authorization.
func (r *Registry) CloseSession(sessionID, reason string) int {
	r.mu.Lock()
	targets := snapshotConns(r.sessions[sessionID])
	for _, conn := range targets {
		r.deregisterLocked(conn.ID())
	}
	r.mu.Unlock()

	for _, conn := range targets {
		conn.Close(reason)
	}
	return len(targets)
}

// CloseUser force-closes every connection of the user, whatever sessions
// back them.
func (r *Registry) CloseUser(userID, reason string) int {
	r.mu.Lock()
	targets := snapshotConns(r.users[userID])
	for _, conn := range targets {
		r.deregisterLocked(conn.ID())
	}
	r.mu.Unlock()

	for _, conn := range targets {
		conn.Close(reason)
	}
	return len(targets)
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// ConnectedUserIDs returns the users currently holding connections in this
// process.
func (r *Registry) ConnectedUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// OnlineUserCount returns the number of distinct online users.
func (r *Registry) OnlineUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// RoomSize returns the member count of a room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

func snapshotConns(set map[string]Conn) []Conn {
	if len(set) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(set))
	for _, conn := range set {
		out = append(out, conn)
	}
	return out
}
