package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) ListNotifications(c *gin.Context) {
	resp, err := s.notificationSvc.ListByRecipient(c.Request.Context(), currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	resp, err := s.notificationSvc.MarkRead(c.Request.Context(), currentUserID(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteNotification(c *gin.Context) {
	if err := s.notificationSvc.Delete(c.Request.Context(), currentUserID(c), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// NotificationSocket upgrades the request and parks the connection on the
// hub until the peer goes away. Clients only receive; inbound frames are
// drained and dropped.
func (s *Server) NotificationSocket(c *gin.Context) {
	if s.hub == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	detach := s.hub.Register(currentUserID(c), conn)
	defer detach()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
