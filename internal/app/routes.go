package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkora/core/internal/middleware"
	"github.com/linkora/core/internal/modules/auth"
	"github.com/linkora/core/internal/modules/gateway/gateway"
	"github.com/linkora/core/internal/modules/gateway/notify"
	"github.com/linkora/core/internal/pkg/response"
	"github.com/redis/go-redis/v9"
)

func (a *App) registerRoutes() {
	root := a.router.Group("")

	authed := middleware.Auth(a.sessions)

	var rdb *redis.Client
	if a.rc != nil {
		rdb = a.rc.Raw()
	}
	auth.RegisterRoutes(root, a.authSvc, authed, middleware.RateLimit(rdb))
	gateway.RegisterRoutes(root, a.hub)

	root.POST("/realtime/announce", authed, a.adminOnly(), func(c *gin.Context) {
		var p notify.AnnouncementPayload
		if err := c.ShouldBindJSON(&p); err != nil || p.Title == "" {
			response.BadRequest(c, "title is required")
			return
		}
		a.notify.SystemAnnouncement(p)
		response.NoContent(c)
	})
}

// adminOnly gates a route on the caller's stored role, not on anything the
// token claims.
func (a *App) adminOnly() gin.HandlerFunc {
	resolve := a.authSvc.RoleResolver()
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		isAdmin, _, err := resolve(ctx, middleware.CurrentUserID(c))
		if err != nil || !isAdmin {
			response.Forbidden(c)
			return
		}
		c.Next()
	}
}
