package models

// NotificationModel is the durable record of a business event. The domain
// layer persists one of these before asking the realtime dispatcher to push
// a live nudge, so a missed live delivery is never data loss.
type NotificationModel struct {
	Base
	UserID    string `json:"user_id"    gorm:"index;not null"`
	Type      string `json:"type"       gorm:"index;not null"`
	Title     string `json:"title"`
	Message   string `json:"message"    gorm:"type:text"`
	Data      string `json:"data"       gorm:"type:longtext"`
	ActionURL string `json:"action_url"`
	Read      bool   `json:"read"       gorm:"index"`
}

func (NotificationModel) TableName() string { return "notifications" }
