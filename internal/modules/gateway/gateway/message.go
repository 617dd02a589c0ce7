package gateway

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// publish sends a delivery envelope to the other gateway instances.
// Best effort: local delivery already happened.
func (h *Hub) publish(msg Message) {
	if h.rc == nil {
		return
	}
	msg.Origin = h.origin

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := h.rc.Publish(ctx, redisChanEvents, string(data)); err != nil {
		h.logger.Warn("gateway publish failed", zap.Error(err))
	}
}

// subscribeRedis applies envelopes broadcast by other instances to the
// local registry. Own-origin messages are skipped: the publisher already
// delivered locally.
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rc.Subscribe(ctx, redisChanEvents)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
				continue
			}
			if msg.Origin == h.origin {
				continue
			}
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg Message) {
	switch {
	case msg.CloseSessionID != "":
		h.registry.CloseSession(msg.CloseSessionID, msg.CloseReason)
	case msg.UserID != "":
		h.registry.SendToUser(msg.UserID, msg.Event, msg.Payload)
	case msg.Room != "":
		h.registry.SendToRoom(msg.Room, msg.Event, msg.Payload)
	default:
		h.registry.Broadcast(msg.Event, msg.Payload)
	}
}
