package notify

// Outbound event names, one per dispatcher operation.
const (
	EventEarningsUpdated     = "earnings_updated"
	EventNewOrder            = "new_order"
	EventOrderStatusChanged  = "order_status_changed"
	EventPaymentReceived     = "payment_received"
	EventWithdrawalProcessed = "withdrawal_processed"
	EventAffiliateCommission = "affiliate_commission"
	EventContentPurchased    = "content_purchased"
	EventServiceOrdered      = "service_ordered"
	EventReviewReceived      = "review_received"
	EventSystemAnnouncement  = "system_announcement"
)

// Notification is the envelope pushed to clients: a typed payload plus a
// human-readable message, an optional action URL and a server timestamp.
type Notification struct {
	Type      string      `json:"type"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	ActionURL string      `json:"action_url,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// EarningsPayload reports a seller's updated balances.
type EarningsPayload struct {
	TotalEarnings    float64 `json:"total_earnings"`
	AvailableBalance float64 `json:"available_balance"`
	PendingBalance   float64 `json:"pending_balance"`
	Currency         string  `json:"currency"`
}

// OrderPayload describes a freshly placed order.
type OrderPayload struct {
	OrderID   string  `json:"order_id"`
	BuyerID   string  `json:"buyer_id"`
	ItemTitle string  `json:"item_title"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

// OrderStatusPayload describes an order state transition.
type OrderStatusPayload struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Previous string `json:"previous,omitempty"`
}

// PaymentPayload describes a settled incoming payment.
type PaymentPayload struct {
	PaymentID string  `json:"payment_id"`
	OrderID   string  `json:"order_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Method    string  `json:"method"`
}

// WithdrawalPayload describes a processed payout.
type WithdrawalPayload struct {
	WithdrawalID string  `json:"withdrawal_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
}

// CommissionPayload describes an affiliate commission credit.
type CommissionPayload struct {
	LinkID   string  `json:"link_id"`
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// ContentPurchasePayload describes a digital content sale.
type ContentPurchasePayload struct {
	ContentID string  `json:"content_id"`
	Title     string  `json:"title"`
	BuyerID   string  `json:"buyer_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

// ServiceOrderPayload describes a service booking.
type ServiceOrderPayload struct {
	ServiceID string `json:"service_id"`
	Title     string `json:"title"`
	BuyerID   string `json:"buyer_id"`
	OrderID   string `json:"order_id"`
}

// ReviewPayload describes a received review.
type ReviewPayload struct {
	ReviewID   string `json:"review_id"`
	OrderID    string `json:"order_id"`
	ReviewerID string `json:"reviewer_id"`
	Rating     int    `json:"rating"`
}

// AnnouncementPayload is a platform-wide announcement.
type AnnouncementPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	ActionURL string `json:"action_url,omitempty"`
}
