package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

// groupAccess guards group-scoped routes by enrolment.
type groupAccess struct {
	Svc *services.Services
}

// instructorOf passes admins and principals with an instructor enrolment in the group.
func (a groupAccess) instructorOf(c *gin.Context, groupID string) bool {
	p := currentPrincipal(c)
	if isAdmin(p) {
		return true
	}
	e, err := a.Svc.Roster.Membership(c.Request.Context(), groupID, p.ID)
	if err != nil {
		if services.IsCode(err, services.ErrorNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed for this group"})
			return false
		}
		writeError(c, err)
		return false
	}
	if e.Kind != models.EnrolInstructor {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed for this group"})
		return false
	}
	return true
}

// memberOf passes any enrolment in the group.
func (a groupAccess) memberOf(c *gin.Context, groupID string) bool {
	p := currentPrincipal(c)
	if _, err := a.Svc.Roster.Membership(c.Request.Context(), groupID, p.ID); err != nil {
		if services.IsCode(err, services.ErrorNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not enrolled in this group"})
			return false
		}
		writeError(c, err)
		return false
	}
	return true
}

// instructorOfPatient loads the patient and checks instructor access to its group.
func (a groupAccess) instructorOfPatient(c *gin.Context, patientID string) (*models.Patient, bool) {
	p, err := a.Svc.Catalog.GetPatient(c.Request.Context(), patientID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if !a.instructorOf(c, p.GroupID) {
		return nil, false
	}
	return p, true
}
