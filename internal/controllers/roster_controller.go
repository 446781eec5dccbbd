package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

type RosterController struct {
	Svc *services.Services
}

type joinRequest struct {
	AccessCode string `json:"access_code" binding:"required"`
}

type assignRequest struct {
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email"`
}

// Join enrols the caller as a student through an access code.
func (rc *RosterController) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p := currentPrincipal(c)
	id, err := rc.Svc.Roster.EnrollStudent(c.Request.Context(), req.AccessCode, p.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "enrolled", "enrolment_id": id})
}

// AssignInstructor enrols an instructor, by id or email, in the group.
func (rc *RosterController) AssignInstructor(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	principalID := strings.TrimSpace(req.PrincipalID)
	if principalID == "" {
		if strings.TrimSpace(req.Email) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "principal_id or email is required"})
			return
		}
		p, err := rc.Svc.Directory.FindByEmail(c.Request.Context(), req.Email)
		if err != nil {
			writeError(c, err)
			return
		}
		principalID = p.ID
	}
	p, err := rc.Svc.Directory.GetPrincipal(c.Request.Context(), principalID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !p.Roles.Has(models.RoleInstructor) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal is not an instructor"})
		return
	}
	id, err := rc.Svc.Roster.EnrollInstructor(c.Request.Context(), groupID, p.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "assigned", "enrolment_id": id})
}

func (rc *RosterController) UnassignInstructor(c *gin.Context) {
	rc.remove(c, models.EnrolInstructor)
}

func (rc *RosterController) RemoveStudent(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: rc.Svc}).instructorOf(c, groupID) {
		return
	}
	rc.remove(c, models.EnrolStudent)
}

func (rc *RosterController) remove(c *gin.Context, kind models.EnrolKind) {
	groupID, ok := param(c, "id")
	if !ok {
		return
	}
	principalID, ok := param(c, "principal_id")
	if !ok {
		return
	}
	if err := rc.Svc.Roster.RemoveEnrolment(c.Request.Context(), groupID, principalID, kind); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unassigned"})
}

// UnassignAllInstructors clears every instructor enrolment of the group.
func (rc *RosterController) UnassignAllInstructors(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok {
		return
	}
	n, err := rc.Svc.Roster.RemoveAllInstructorEnrolmentsForGroup(c.Request.Context(), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unassigned", "removed": n})
}

func (rc *RosterController) UnassignInstructorEverywhere(c *gin.Context) {
	principalID, ok := param(c, "principal_id")
	if !ok {
		return
	}
	n, err := rc.Svc.Roster.RemoveAllInstructorEnrolmentsForPrincipal(c.Request.Context(), principalID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unassigned", "removed": n})
}

func (rc *RosterController) ListInstructors(c *gin.Context) {
	rc.list(c, models.EnrolInstructor)
}

func (rc *RosterController) ListStudents(c *gin.Context) {
	rc.list(c, models.EnrolStudent)
}

func (rc *RosterController) list(c *gin.Context, kind models.EnrolKind) {
	groupID, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: rc.Svc}).instructorOf(c, groupID) {
		return
	}
	rows, err := rc.Svc.Roster.ListEnrolments(c.Request.Context(), groupID, kind)
	if err != nil {
		writeError(c, err)
		return
	}
	type row struct {
		EnrolmentID string `json:"enrolment_id"`
		PrincipalID string `json:"principal_id"`
		Email       string `json:"email"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
		Kind        string `json:"kind"`
		EnrolledAt  string `json:"enrolled_at"`
	}
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		out = append(out, row{
			EnrolmentID: r.EnrolmentID,
			PrincipalID: r.PrincipalID,
			Email:       r.Email,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			Kind:        string(r.Kind),
			EnrolledAt:  r.EnrolledAt.Format(time.RFC3339),
		})
	}
	paginate(c, out)
}
