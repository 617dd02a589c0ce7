package notify

import (
	"fmt"
	"time"

	"github.com/linkora/core/internal/modules/gateway/gateway"
	"go.uber.org/zap"
)

// Sender resolves live delivery targets. Satisfied by *gateway.Hub.
type Sender interface {
	SendToUser(userID, event string, payload interface{}) bool
	SendToRoom(room, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// Service pushes live notifications for business events. It performs no
// persistence and no retries: callers durably record the event first, so a
// missed delivery to an offline user is a missed nudge, not data loss.
type Service struct {
	sender Sender
	logger *zap.Logger
	now    func() time.Time
}

// New creates a dispatcher on top of a sender.
func New(sender Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{sender: sender, logger: logger, now: time.Now}
}

// EarningsUpdated notifies a seller that their balances changed.
func (s *Service) EarningsUpdated(userID string, p EarningsPayload) bool {
	return s.toUser(userID, EventEarningsUpdated, Notification{
		Title:     "Earnings updated",
		Message:   fmt.Sprintf("Your available balance is now %s %.2f", p.Currency, p.AvailableBalance),
		Data:      p,
		ActionURL: "/dashboard/earnings",
	})
}

// NewOrder notifies a seller about a freshly placed order.
func (s *Service) NewOrder(sellerID string, p OrderPayload) bool {
	return s.toUser(sellerID, EventNewOrder, Notification{
		Title:     "New order",
		Message:   fmt.Sprintf("New order for %q (%s %.2f)", p.ItemTitle, p.Currency, p.Amount),
		Data:      p,
		ActionURL: "/dashboard/orders/" + p.OrderID,
	})
}

// OrderStatusChanged notifies the order's owner and everyone subscribed to
// the order's tracking room.
func (s *Service) OrderStatusChanged(userID string, p OrderStatusPayload) bool {
	delivered := s.toUser(userID, EventOrderStatusChanged, Notification{
		Title:     "Order status changed",
		Message:   fmt.Sprintf("Order %s is now %s", p.OrderID, p.Status),
		Data:      p,
		ActionURL: "/dashboard/orders/" + p.OrderID,
	})
	s.sender.SendToRoom(gateway.RoomOrder(p.OrderID), gateway.EventOrderTrackingUpdated, s.envelope(EventOrderStatusChanged, Notification{
		Title:   "Order status changed",
		Message: fmt.Sprintf("Order %s is now %s", p.OrderID, p.Status),
		Data:    p,
	}))
	return delivered
}

// PaymentReceived notifies a seller that a payment settled.
func (s *Service) PaymentReceived(userID string, p PaymentPayload) bool {
	return s.toUser(userID, EventPaymentReceived, Notification{
		Title:     "Payment received",
		Message:   fmt.Sprintf("Payment of %s %.2f received via %s", p.Currency, p.Amount, p.Method),
		Data:      p,
		ActionURL: "/dashboard/payments/" + p.PaymentID,
	})
}

// WithdrawalProcessed notifies a seller their payout was processed.
func (s *Service) WithdrawalProcessed(userID string, p WithdrawalPayload) bool {
	return s.toUser(userID, EventWithdrawalProcessed, Notification{
		Title:     "Withdrawal processed",
		Message:   fmt.Sprintf("Your withdrawal of %s %.2f is %s", p.Currency, p.Amount, p.Status),
		Data:      p,
		ActionURL: "/dashboard/withdrawals",
	})
}

// AffiliateCommission notifies an affiliate of a commission credit.
func (s *Service) AffiliateCommission(userID string, p CommissionPayload) bool {
	return s.toUser(userID, EventAffiliateCommission, Notification{
		Title:     "Commission earned",
		Message:   fmt.Sprintf("You earned %s %.2f commission from link %s", p.Currency, p.Amount, p.LinkID),
		Data:      p,
		ActionURL: "/dashboard/affiliate",
	})
}

// ContentPurchased notifies a seller that their content sold.
func (s *Service) ContentPurchased(sellerID string, p ContentPurchasePayload) bool {
	return s.toUser(sellerID, EventContentPurchased, Notification{
		Title:     "Content purchased",
		Message:   fmt.Sprintf("%q was purchased for %s %.2f", p.Title, p.Currency, p.Amount),
		Data:      p,
		ActionURL: "/dashboard/content/" + p.ContentID,
	})
}

// ServiceOrdered notifies a seller about a service booking.
func (s *Service) ServiceOrdered(sellerID string, p ServiceOrderPayload) bool {
	return s.toUser(sellerID, EventServiceOrdered, Notification{
		Title:     "Service ordered",
		Message:   fmt.Sprintf("Your service %q was ordered", p.Title),
		Data:      p,
		ActionURL: "/dashboard/orders/" + p.OrderID,
	})
}

// ReviewReceived notifies a seller about a new review.
func (s *Service) ReviewReceived(userID string, p ReviewPayload) bool {
	return s.toUser(userID, EventReviewReceived, Notification{
		Title:     "New review",
		Message:   fmt.Sprintf("You received a %d-star review", p.Rating),
		Data:      p,
		ActionURL: "/dashboard/reviews",
	})
}

// SystemAnnouncement broadcasts a platform-wide announcement.
func (s *Service) SystemAnnouncement(p AnnouncementPayload) {
	s.sender.Broadcast(EventSystemAnnouncement, s.envelope(EventSystemAnnouncement, Notification{
		Title:     p.Title,
		Message:   p.Body,
		Data:      p,
		ActionURL: p.ActionURL,
	}))
}

// toUser resolves delivery through the sender. A false return means the
// user holds no live connection here, which is expected and not an error.
func (s *Service) toUser(userID, event string, n Notification) bool {
	delivered := s.sender.SendToUser(userID, event, s.envelope(event, n))
	if !delivered {
		s.logger.Debug("notification target offline",
			zap.String("user_id", userID), zap.String("event", event))
	}
	return delivered
}

func (s *Service) envelope(event string, n Notification) Notification {
	n.Type = event
	n.Timestamp = s.now().UTC().Format(time.RFC3339Nano)
	return n
}
