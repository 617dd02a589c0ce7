package gateway

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/linkora/core/internal/modules/session"
	pkgredis "github.com/linkora/core/internal/pkg/redis"
	redis "github.com/redis/go-redis/v9"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	publishTimeout          = 2 * time.Second
	statsTimeout            = 2 * time.Second
)

// NewHub wires the socket.io server to the registry and session service.
// rc may be nil in single-instance deployments without redis; cross-instance
// fan-out and online stats are then disabled.
func NewHub(sessions *session.Service, resolveRoles RoleResolver, rc *pkgredis.Client, logger *zap.Logger, opts HubOptions) *Hub {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		registry:         NewRegistry(),
		sessions:         sessions,
		resolveRoles:     resolveRoles,
		rc:               rc,
		logger:           logger,
		sio:              socketio.NewServer(nil, nil),
		origin:           uuid.New().String(),
		handshakeTimeout: opts.HandshakeTimeout,
	}
	h.registerNamespace()
	return h
}

// Registry exposes the process-local connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Run blocks until ctx is done, keeping the redis subscriber alive.
func (h *Hub) Run(ctx context.Context) {
	if h.rc != nil {
		go h.subscribeRedis(ctx)
	}
	<-ctx.Done()
	h.sio.Close(nil)
}

// SendToUser delivers an event to every live connection of the user on
// this instance and forwards it to the other instances. The return value
// reflects local delivery only.
func (h *Hub) SendToUser(userID, event string, payload interface{}) bool {
	delivered := h.registry.SendToUser(userID, event, payload)
	h.publish(Message{Event: event, Payload: payload, UserID: userID})
	return delivered
}

// SendToRoom delivers an event to all local members of a room and forwards
// it to the other instances.
func (h *Hub) SendToRoom(room, event string, payload interface{}) {
	h.registry.SendToRoom(room, event, payload)
	h.publish(Message{Event: event, Payload: payload, Room: room})
}

// Broadcast delivers an event to every connection everywhere.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.registry.Broadcast(event, payload)
	h.publish(Message{Event: event, Payload: payload})
}

// CloseSessionConnections force-closes every connection backed by a
// destroyed session, locally and on the other instances. Wired to the
// session service's destroy hook so a connection never outlives its
// authorization.
func (h *Hub) CloseSessionConnections(userID, sessionID, reason string) {
	code := closeCodeForReason(reason)
	if n := h.registry.CloseSession(sessionID, code); n > 0 {
		h.logger.Info("connections force-closed",
			zap.String("user_id", userID),
			zap.String("session_id", sessionID),
			zap.String("reason", code),
			zap.Int("count", n),
		)
	}
	h.publish(Message{CloseSessionID: sessionID, CloseReason: code})
}

func closeCodeForReason(reason string) string {
	switch reason {
	case session.ReasonEvicted:
		return CloseSessionEvicted
	case session.ReasonExpired:
		return CloseSessionExpired
	default:
		return CloseSessionRevoked
	}
}

// updateDailyOnlineStats tracks the daily peak and total of online users.
func (h *Hub) updateDailyOnlineStats(currentOnline int) {
	if h.rc == nil || currentOnline < 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	dateKey := shortDateKey(time.Now())

	maxOnline := 0
	currentMax, err := h.rc.Raw().HGet(ctx, redisKeyMaxOnlineCount, dateKey).Result()
	switch {
	case err == nil:
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(currentMax)); parseErr == nil {
			maxOnline = parsed
		}
	case err == redis.Nil:
		// no-op
	default:
		h.logger.Warn("gateway get max online failed", zap.Error(err))
	}

	if currentOnline > maxOnline {
		if err := h.rc.Raw().HSet(ctx, redisKeyMaxOnlineCount, dateKey, currentOnline).Err(); err != nil {
			h.logger.Warn("gateway set max online failed", zap.Error(err))
		}
	}

	if err := h.rc.Raw().HIncrBy(ctx, redisKeyMaxOnlineCountTotal, dateKey, 1).Err(); err != nil {
		h.logger.Warn("gateway incr online total failed", zap.Error(err))
	}
}

func shortDateKey(t time.Time) string {
	return t.Format("1-2-06")
}
