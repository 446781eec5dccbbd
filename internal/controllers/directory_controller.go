package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/middleware"
	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

type DirectoryController struct {
	Svc *services.Services
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func principalJSON(p models.Principal) gin.H {
	roles := p.Roles
	if roles == nil {
		roles = models.RoleSet{}
	}
	return gin.H{
		"id":             p.ID,
		"email":          p.Email,
		"username":       p.Username,
		"first_name":     p.FirstName,
		"last_name":      p.LastName,
		"preferred_name": p.PreferredName,
		"display_name":   p.DisplayName(),
		"roles":          roles,
		"last_seen_at":   p.LastSeenAt,
	}
}

// SignIn registers or refreshes the principal named by a verified token.
func (dc *DirectoryController) SignIn(c *gin.Context) {
	cVal, _ := c.Get("claims")
	claims, ok := cVal.(*middleware.Claims)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	p, err := dc.Svc.Directory.SignIn(c.Request.Context(), claims.Email, services.Profile{
		Username:  claims.PreferredUsername,
		FirstName: claims.GivenName,
		LastName:  claims.FamilyName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, principalJSON(*p))
}

func (dc *DirectoryController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, principalJSON(currentPrincipal(c)))
}

// ListPrincipals lists principals holding ?role= (default instructor).
func (dc *DirectoryController) ListPrincipals(c *gin.Context) {
	role := strings.ToLower(strings.TrimSpace(c.DefaultQuery("role", models.RoleInstructor)))
	if !IsValidRole(role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	rows, err := dc.Svc.Directory.ListByRole(c.Request.Context(), role)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, p := range rows {
		out = append(out, principalJSON(p))
	}
	paginate(c, out)
}

func (dc *DirectoryController) Promote(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := dc.Svc.Directory.Promote(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, principalJSON(*p))
}

func (dc *DirectoryController) Demote(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := dc.Svc.Directory.Demote(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, principalJSON(*p))
}
