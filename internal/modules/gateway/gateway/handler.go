package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}

// RegisterRoutes mounts socket.io and the stats endpoint.
func RegisterRoutes(rg *gin.RouterGroup, hub *Hub) {
	handler := gin.WrapH(hub.Handler())
	rg.Any("/socket.io", handler)
	rg.Any("/socket.io/*any", handler)

	rg.GET("/realtime/stats", func(c *gin.Context) {
		reg := hub.Registry()
		c.JSON(http.StatusOK, gin.H{
			"online_users": reg.OnlineUserCount(),
			"connections":  reg.ConnectionCount(),
			"admins":       reg.RoomSize(RoomRoleAdmin),
			"premium":      reg.RoomSize(RoomRolePremium),
		})
	})
}
