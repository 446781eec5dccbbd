package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/models"
)

func StudentHandler(hubs *Hubs) gin.HandlerFunc {
	return func(c *gin.Context) {
		if hubs == nil || hubs.Student == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "realtime not available"})
			return
		}
		p, ok := principalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !p.Roles.Has(models.RoleStudent) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newStudentClient(hubs.Student, conn, p.ID)
		if !hubs.Student.join(client) {
			conn.Close()
			return
		}

		go client.writePump()
		client.readPump()
		hubs.Student.leave(client)
		client.conn.Close()
	}
}
