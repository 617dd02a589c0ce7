package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/linkora/core/internal/middleware"
	"github.com/linkora/core/internal/modules/session"
	"github.com/linkora/core/internal/pkg/response"
)

// LoginDTO is the login request body.
type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRoutes mounts the auth endpoints.
func RegisterRoutes(rg *gin.RouterGroup, svc *Service, authed gin.HandlerFunc, rateLimited gin.HandlerFunc) {
	grp := rg.Group("/auth")

	grp.POST("/login", rateLimited, func(c *gin.Context) {
		var dto LoginDTO
		if err := c.ShouldBindJSON(&dto); err != nil {
			response.BadRequest(c, "username and password are required")
			return
		}

		result, err := svc.Login(c.Request.Context(), dto.Username, dto.Password, deviceFromRequest(c))
		if err != nil {
			if errors.Is(err, errUserNotFound) || errors.Is(err, errWrongPassword) {
				response.UnauthorizedMsg(c, "invalid username or password")
				return
			}
			if errors.Is(err, session.ErrStoreUnavailable) {
				response.ServiceUnavailable(c, "session store unavailable")
				return
			}
			response.InternalError(c, err)
			return
		}
		response.OK(c, result)
	})

	grp.POST("/logout", authed, func(c *gin.Context) {
		if _, err := svc.Logout(c.Request.Context(), middleware.CurrentSessionID(c)); err != nil {
			response.InternalError(c, err)
			return
		}
		response.NoContent(c)
	})

	grp.POST("/logout-all", authed, func(c *gin.Context) {
		if err := svc.LogoutAll(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
			response.InternalError(c, err)
			return
		}
		response.NoContent(c)
	})

	grp.GET("/sessions", authed, func(c *gin.Context) {
		sessions, err := svc.Sessions(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			response.InternalError(c, err)
			return
		}
		current := middleware.CurrentSessionID(c)
		type sessionView struct {
			session.Session
			Current bool `json:"current"`
		}
		views := make([]sessionView, 0, len(sessions))
		for _, s := range sessions {
			views = append(views, sessionView{Session: s, Current: s.ID == current})
		}
		response.OK(c, views)
	})

	grp.DELETE("/sessions/:sid", authed, func(c *gin.Context) {
		found, err := svc.RevokeSession(c.Request.Context(), middleware.CurrentUserID(c), c.Param("sid"))
		if err != nil {
			response.InternalError(c, err)
			return
		}
		if !found {
			response.NotFoundMsg(c, "session not found")
			return
		}
		response.NoContent(c)
	})
}

func deviceFromRequest(c *gin.Context) session.DeviceInfo {
	ua := c.GetHeader("User-Agent")
	return session.DeviceInfo{
		UserAgent: ua,
		IP:        c.ClientIP(),
		Platform:  sniffPlatform(ua),
		Browser:   sniffBrowser(ua),
	}
}

func sniffPlatform(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "android"):
		return "android"
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"):
		return "ios"
	case strings.Contains(ua, "windows"):
		return "windows"
	case strings.Contains(ua, "mac os"):
		return "macos"
	case strings.Contains(ua, "linux"):
		return "linux"
	default:
		return ""
	}
}

func sniffBrowser(ua string) string {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "edg/"):
		return "edge"
	case strings.Contains(ua, "chrome/"):
		return "chrome"
	case strings.Contains(ua, "firefox/"):
		return "firefox"
	case strings.Contains(ua, "safari/"):
		return "safari"
	default:
		return ""
	}
}
