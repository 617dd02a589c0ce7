package gateway

import (
	"context"
	"time"

	"github.com/linkora/core/internal/modules/session"
	pkgredis "github.com/linkora/core/internal/pkg/redis"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	namespaceRealtime = "/realtime"

	redisChanEvents = "linkora:gateway:events"

	redisKeyMaxOnlineCount      = "linkora:max_online_count"
	redisKeyMaxOnlineCountTotal = "linkora:max_online_count:total"
)

// Inbound event names consumed from clients.
const (
	eventUpdateStatus     = "update_status"
	eventTypingStart      = "typing_start"
	eventTypingStop       = "typing_stop"
	eventSendMessage      = "send_message"
	eventSubscribeOrder   = "subscribe_order_updates"
	eventUnsubscribeOrder = "unsubscribe_order_updates"
	eventTrackLinkView    = "track_link_view"
)

// Outbound event names produced by the gateway itself.
const (
	EventConnected            = "connected"
	EventUserStatusChanged    = "user_status_changed"
	EventNewMessage           = "new_message"
	EventOrderTrackingUpdated = "order_tracking_updated"
	EventLinkVisitorsUpdated  = "link_visitors_updated"
)

// Close reason codes delivered in the final frame before a disconnect.
const (
	CloseAuthInvalidToken    = "AUTH_INVALID_TOKEN"
	CloseAuthExpiredToken    = "AUTH_EXPIRED_TOKEN"
	CloseSessionNotFound     = "SESSION_NOT_FOUND"
	CloseSessionExpired      = "SESSION_EXPIRED"
	CloseSessionUserMismatch = "SESSION_USER_MISMATCH"
	CloseStoreUnavailable    = "STORE_UNAVAILABLE"
	CloseHandshakeTimeout    = "HANDSHAKE_TIMEOUT"
	CloseSessionRevoked      = "SESSION_REVOKED"
	CloseSessionEvicted      = "SESSION_EVICTED"
)

// Message is the envelope used for cross-instance fan-out over redis.
// Exactly one of UserID / Room / neither (broadcast) targets a delivery;
// CloseSessionID carries forced session closes instead.
type Message struct {
	Event          string      `json:"event,omitempty"`
	Payload        interface{} `json:"payload,omitempty"`
	UserID         string      `json:"user_id,omitempty"`
	Room           string      `json:"room,omitempty"`
	CloseSessionID string      `json:"close_session_id,omitempty"`
	CloseReason    string      `json:"close_reason,omitempty"`
	Origin         string      `json:"origin,omitempty"`
}

// gatewayPayload is the shape of "message" control frames.
type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// RoleResolver reports the role attributes of a user at connect time.
type RoleResolver func(ctx context.Context, userID string) (isAdmin, isPremium bool, err error)

// HubOptions tune the hub.
type HubOptions struct {
	HandshakeTimeout time.Duration
}

// Hub owns the socket.io server, the connection registry and the
// authentication handshake, and bridges deliveries across instances via
// redis pub/sub.
type Hub struct {
	registry     *Registry
	sessions     *session.Service
	resolveRoles RoleResolver

	rc     *pkgredis.Client
	logger *zap.Logger
	sio    *socketio.Server

	origin           string
	handshakeTimeout time.Duration
}
