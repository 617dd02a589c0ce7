package models

import "time"

// Role values assigned to platform accounts.
const (
	RoleAdmin  = "admin"
	RoleSeller = "seller"
	RoleBuyer  = "buyer"
)

// UserModel represents a platform account (seller, buyer or admin).
type UserModel struct {
	Base
	Username      string     `json:"username"        gorm:"uniqueIndex;not null"`
	Name          string     `json:"name"`
	Avatar        string     `json:"avatar"`
	Password      string     `json:"-"               gorm:"not null"`
	Mail          string     `json:"mail"`
	Role          string     `json:"role"            gorm:"index;default:buyer"`
	Premium       bool       `json:"premium"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

func (UserModel) TableName() string { return "users" }

// IsAdmin reports whether the account carries the admin role.
func (u *UserModel) IsAdmin() bool { return u.Role == RoleAdmin }
