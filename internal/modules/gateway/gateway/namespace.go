package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/linkora/core/internal/modules/session"
	"github.com/linkora/core/internal/pkg/jwt"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

func (h *Hub) registerNamespace() {
	ns := h.sio.Of(namespaceRealtime, nil)
	_ = ns.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}
		conn := newSocketConn(client)

		// Nothing reaches an event handler before the handshake finishes:
		// a failed or timed-out authentication closes the connection with
		// its specific reason and registers no handlers.
		identity, closeCode := h.authenticate(extractToken(client))
		if closeCode != "" {
			h.logger.Info("connection rejected", zap.String("reason", closeCode))
			conn.Close(closeCode)
			return
		}

		h.registry.Register(identity, conn)
		h.updateDailyOnlineStats(h.registry.OnlineUserCount())
		_ = conn.Emit(EventConnected, connectedPayload(identity.UserID))
		h.bindClientEvents(client, conn, identity)
	})
}

// authenticate runs the handshake within the configured deadline: token
// signature verification AND store-backed session validation. Any failure,
// including an unreachable store, rejects the connection (fail closed).
func (h *Hub) authenticate(token string) (Identity, string) {
	if token == "" {
		return Identity{}, CloseAuthInvalidToken
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.handshakeTimeout)
	defer cancel()

	id, err := h.sessions.ValidateToken(ctx, token)
	if err != nil {
		return Identity{}, closeCodeForAuthErr(err)
	}

	identity := Identity{UserID: id.UserID, SessionID: id.SessionID}
	if h.resolveRoles != nil {
		// Role lookup failure degrades to no role rooms rather than
		// rejecting an already validated identity.
		isAdmin, isPremium, err := h.resolveRoles(ctx, id.UserID)
		if err != nil {
			h.logger.Warn("role resolution failed", zap.String("user_id", id.UserID), zap.Error(err))
		} else {
			identity.IsAdmin = isAdmin
			identity.IsPremium = isPremium
		}
	}
	return identity, ""
}

func closeCodeForAuthErr(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CloseHandshakeTimeout
	case errors.Is(err, jwt.ErrExpiredToken):
		return CloseAuthExpiredToken
	case errors.Is(err, jwt.ErrInvalidToken):
		return CloseAuthInvalidToken
	case errors.Is(err, session.ErrSessionExpired):
		return CloseSessionExpired
	case errors.Is(err, session.ErrSessionUserMismatch):
		return CloseSessionUserMismatch
	case errors.Is(err, session.ErrStoreUnavailable):
		return CloseStoreUnavailable
	default:
		return CloseSessionNotFound
	}
}

func (h *Hub) bindClientEvents(client *socketio.Socket, conn Conn, identity Identity) {
	_ = client.On(eventUpdateStatus, func(args ...any) {
		if !h.touchSession(conn, identity) {
			return
		}
		p, ok := decodeFrame[statusUpdatePayload](args)
		if !ok || p.Status == "" {
			return
		}
		h.Broadcast(EventUserStatusChanged, statusChangedPayload(identity.UserID, p.Status))
	})

	forwardTyping := func(event string) func(...any) {
		return func(args ...any) {
			if !h.touchSession(conn, identity) {
				return
			}
			p, ok := decodeFrame[typingPayload](args)
			if !ok || p.RecipientID == "" {
				return
			}
			h.SendToUser(p.RecipientID, event, typingEventPayload(identity.UserID, p.ConversationID))
		}
	}
	_ = client.On(eventTypingStart, forwardTyping(eventTypingStart))
	_ = client.On(eventTypingStop, forwardTyping(eventTypingStop))

	_ = client.On(eventSendMessage, func(args ...any) {
		if !h.touchSession(conn, identity) {
			return
		}
		p, ok := decodeFrame[directMessagePayload](args)
		if !ok || p.RecipientID == "" || p.Content == "" {
			return
		}
		h.SendToUser(p.RecipientID, EventNewMessage, newMessagePayload(identity.UserID, p.ConversationID, p.Content))
	})

	_ = client.On(eventSubscribeOrder, func(args ...any) {
		if !h.touchSession(conn, identity) {
			return
		}
		p, ok := decodeFrame[orderRoomPayload](args)
		if !ok || p.OrderID == "" {
			return
		}
		h.registry.Join(conn.ID(), RoomOrder(p.OrderID))
	})

	_ = client.On(eventUnsubscribeOrder, func(args ...any) {
		if !h.touchSession(conn, identity) {
			return
		}
		p, ok := decodeFrame[orderRoomPayload](args)
		if !ok || p.OrderID == "" {
			return
		}
		h.registry.Leave(conn.ID(), RoomOrder(p.OrderID))
	})

	_ = client.On(eventTrackLinkView, func(args ...any) {
		if !h.touchSession(conn, identity) {
			return
		}
		p, ok := decodeFrame[linkViewPayload](args)
		if !ok || p.LinkID == "" || p.OwnerID == "" {
			return
		}
		h.SendToUser(p.OwnerID, EventLinkVisitorsUpdated, linkVisitorsPayload(p.LinkID))
	})

	_ = client.On("disconnect", func(_ ...any) {
		h.registry.Deregister(conn.ID())
	})
}

// touchSession refreshes the backing session on every validated inbound
// frame. A store outage fails open (the connection authenticated at
// registration), but a session that is positively gone closes the
// connection: authorization must not outlive the session.
func (h *Hub) touchSession(conn Conn, identity Identity) bool {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	ok, err := h.sessions.UpdateSessionActivity(ctx, identity.SessionID, session.ActivityPatch{})
	if err != nil {
		h.logger.Warn("session activity refresh failed",
			zap.String("session_id", identity.SessionID), zap.Error(err))
		return true
	}
	if !ok {
		h.registry.Deregister(conn.ID())
		conn.Close(CloseSessionExpired)
		return false
	}
	return true
}

func extractToken(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	if token := firstValueFromMultiMap(handshake.Query, "token"); token != "" {
		return normalizeToken(token)
	}
	if token := firstValueFromMultiMap(handshake.Headers, "authorization"); token != "" {
		return normalizeToken(token)
	}
	return ""
}

func firstValueFromMultiMap(values map[string][]string, key string) string {
	if len(values) == 0 {
		return ""
	}
	for k, list := range values {
		if !strings.EqualFold(strings.TrimSpace(k), key) || len(list) == 0 {
			continue
		}
		v := strings.TrimSpace(list[0])
		if v != "" {
			return v
		}
	}
	return ""
}

func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if token == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}
