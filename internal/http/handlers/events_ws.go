package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"universo_lite/internal/auth"
	"universo_lite/internal/events"
	"universo_lite/internal/tenancy"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // same-origin deployments; tighten when serving cross-origin
	},
}

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// EventsWS streams change events for every cluster the caller belongs to.
func EventsWS(db *gorm.DB, hub *events.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		clusterIDs, err := tenancy.ClusterIDs(db, cl.UserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := hub.Subscribe(clusterIDs, 32)
		defer hub.Unsubscribe(sub)

		// Reader: the client sends nothing meaningful, but the read loop is
		// what notices a closed connection.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(ev); err != nil {
					return
				}
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}
}
