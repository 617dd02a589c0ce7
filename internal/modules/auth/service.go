package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/linkora/core/internal/models"
	"github.com/linkora/core/internal/modules/session"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	errUserNotFound  = errors.New("user not found")
	errWrongPassword = errors.New("wrong password")
)

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
}

// Service handles the password login boundary: it verifies credentials and
// turns them into a session-bound access token.
type Service struct {
	db       *gorm.DB
	sessions *session.Service
}

// NewService creates the auth service.
func NewService(db *gorm.DB, sessions *session.Service) *Service {
	return &Service{db: db, sessions: sessions}
}

// Login verifies credentials and issues a token bound to a fresh session.
func (s *Service) Login(ctx context.Context, username, password string, device session.DeviceInfo) (*LoginResult, error) {
	var u models.UserModel
	if err := s.db.WithContext(ctx).
		Select("id, password, role").
		Where("username = ?", strings.TrimSpace(username)).
		First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			time.Sleep(3 * time.Second)
			return nil, errUserNotFound
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		time.Sleep(3 * time.Second)
		return nil, errWrongPassword
	}

	bundle, err := s.sessions.CreateTokenWithSession(ctx, u.ID, device)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_ = s.db.WithContext(ctx).Model(&models.UserModel{}).
		Where("id = ?", u.ID).
		Updates(map[string]interface{}{
			"last_login_time": &now,
			"last_login_ip":   device.IP,
		}).Error

	return &LoginResult{
		Token:     bundle.Token,
		SessionID: bundle.SessionID,
		UserID:    u.ID,
		Role:      u.Role,
	}, nil
}

// Logout destroys the calling session; live connections backed by it are
// force-closed through the session destroy hook.
func (s *Service) Logout(ctx context.Context, sessionID string) (bool, error) {
	return s.sessions.DestroySession(ctx, sessionID)
}

// LogoutAll revokes every session of the user.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.DestroyAllUserSessions(ctx, userID)
}

// Sessions lists the user's live sessions (device management view).
func (s *Service) Sessions(ctx context.Context, userID string) ([]session.Session, error) {
	return s.sessions.GetUserSessions(ctx, userID)
}

// RevokeSession destroys one of the user's own sessions. Revoking a session
// owned by someone else is reported as not found.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) (bool, error) {
	rec, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			return false, nil
		}
		return false, err
	}
	if rec.UserID != userID {
		return false, nil
	}
	return s.sessions.DestroySession(ctx, sessionID)
}

// RoleResolver returns a lookup of role attributes for the gateway's
// connect-time room assignment.
func (s *Service) RoleResolver() func(ctx context.Context, userID string) (bool, bool, error) {
	return func(ctx context.Context, userID string) (bool, bool, error) {
		var u models.UserModel
		if err := s.db.WithContext(ctx).
			Select("role, premium").
			Where("id = ?", userID).
			First(&u).Error; err != nil {
			return false, false, err
		}
		return u.IsAdmin(), u.Premium, nil
	}
}
