package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Closed catalogue of inbound frame payloads. Each event decodes into
// exactly one of these before its handler runs, so payload shapes cannot
// drift behind a string-keyed dispatch.

type statusUpdatePayload struct {
	Status string `json:"status"`
}

type typingPayload struct {
	RecipientID    string `json:"recipient_id"`
	ConversationID string `json:"conversation_id"`
}

type directMessagePayload struct {
	RecipientID    string `json:"recipient_id"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

type orderRoomPayload struct {
	OrderID string `json:"order_id"`
}

type linkViewPayload struct {
	LinkID  string `json:"link_id"`
	OwnerID string `json:"owner_id"`
}

// decodeFrame converts whatever shape the transport handed over into the
// event's payload struct via a JSON round trip.
func decodeFrame[T any](args []any) (T, bool) {
	var out T
	if len(args) == 0 || args[0] == nil {
		return out, false
	}

	switch raw := args[0].(type) {
	case string:
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return out, false
		}
	case []byte:
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, false
		}
	default:
		data, err := json.Marshal(raw)
		if err != nil {
			return out, false
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return out, false
		}
	}
	return out, true
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func connectedPayload(userID string) map[string]interface{} {
	return map[string]interface{}{
		"userId":    userID,
		"timestamp": nowStamp(),
	}
}

func statusChangedPayload(userID, status string) map[string]interface{} {
	return map[string]interface{}{
		"userId":    userID,
		"status":    status,
		"timestamp": nowStamp(),
	}
}

func typingEventPayload(senderID, conversationID string) map[string]interface{} {
	return map[string]interface{}{
		"userId":         senderID,
		"conversationId": conversationID,
		"timestamp":      nowStamp(),
	}
}

func newMessagePayload(senderID, conversationID, content string) map[string]interface{} {
	return map[string]interface{}{
		"messageId":      uuid.New().String(),
		"senderId":       senderID,
		"conversationId": conversationID,
		"content":        content,
		"timestamp":      nowStamp(),
	}
}

func linkVisitorsPayload(linkID string) map[string]interface{} {
	return map[string]interface{}{
		"linkId":    linkID,
		"timestamp": nowStamp(),
	}
}
