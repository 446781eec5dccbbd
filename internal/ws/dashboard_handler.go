package ws

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

func principalFrom(c *gin.Context) (models.Principal, bool) {
	pVal, ok := c.Get("principal")
	if !ok {
		return models.Principal{}, false
	}
	p, ok := pVal.(models.Principal)
	return p, ok
}

// DashboardHandler streams interaction updates for the groups the caller
// instructs. ?group_id narrows the stream to one group.
func DashboardHandler(svc *services.Services, hub *DashboardHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principalFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		isAdmin := p.Roles.Has(models.RoleAdmin)
		if !isAdmin && !p.Roles.Has(models.RoleInstructor) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		only := strings.TrimSpace(c.Query("group_id"))
		allowAll := isAdmin && only == ""
		allowed := map[string]struct{}{}
		if !allowAll {
			if isAdmin {
				allowed[only] = struct{}{}
			} else {
				groups, err := svc.Roster.GroupsFor(c.Request.Context(), p.ID, models.EnrolInstructor)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
					return
				}
				for _, g := range groups {
					if only == "" || g.ID == only {
						allowed[g.ID] = struct{}{}
					}
				}
				if len(allowed) == 0 {
					c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no groups assigned"})
					return
				}
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newDashboardClient(hub, conn, allowed, allowAll)
		if !hub.join(client) {
			conn.Close()
			return
		}

		go client.writePump()
		client.readPump()
		hub.leave(client)
	}
}
