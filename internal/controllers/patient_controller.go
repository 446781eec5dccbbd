package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

type PatientController struct {
	Svc *services.Services
}

type patientRequest struct {
	Name             string      `json:"name" binding:"required"`
	Age              FlexibleInt `json:"age"`
	Gender           string      `json:"gender"`
	Prompt           string      `json:"prompt"`
	AutomatedScoring bool        `json:"automated_scoring"`
}

func (r patientRequest) input() services.PatientInput {
	return services.PatientInput{
		Name:             r.Name,
		Age:              r.Age.Int(),
		Gender:           r.Gender,
		Prompt:           r.Prompt,
		AutomatedScoring: r.AutomatedScoring,
	}
}

type reorderRequest struct {
	PatientIDs []string `json:"patient_ids" binding:"required"`
}

// patientJSON leaves the prompt out for students.
func patientJSON(p models.Patient, full bool) gin.H {
	out := gin.H{
		"id":                p.ID,
		"group_id":          p.GroupID,
		"name":              p.Name,
		"ordinal":           p.Ordinal,
		"age":               p.Age,
		"gender":            p.Gender,
		"automated_scoring": p.AutomatedScoring,
	}
	if full {
		out["prompt"] = p.Prompt
	}
	return out
}

func (pc *PatientController) access() groupAccess { return groupAccess{Svc: pc.Svc} }

// ListPatients serves instructors the full record and students the public fields.
func (pc *PatientController) ListPatients(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok {
		return
	}
	p := currentPrincipal(c)
	full := isAdmin(p)
	if !full {
		e, err := pc.Svc.Roster.Membership(c.Request.Context(), groupID, p.ID)
		if err != nil {
			if services.IsCode(err, services.ErrorNotFound) {
				c.JSON(http.StatusForbidden, gin.H{"error": "not enrolled in this group"})
				return
			}
			writeError(c, err)
			return
		}
		full = e.Kind == models.EnrolInstructor
	}
	rows, err := pc.Svc.Catalog.ListPatients(c.Request.Context(), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, p := range rows {
		out = append(out, patientJSON(p, full))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (pc *PatientController) CreatePatient(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok || !pc.access().instructorOf(c, groupID) {
		return
	}
	var req patientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := pc.Svc.Catalog.CreatePatient(c.Request.Context(), groupID, req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": id})
}

func (pc *PatientController) GetPatient(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok {
		return
	}
	p, ok := pc.access().instructorOfPatient(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, patientJSON(*p, true))
}

func (pc *PatientController) EditPatient(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok {
		return
	}
	if _, ok := pc.access().instructorOfPatient(c, id); !ok {
		return
	}
	var req patientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := pc.Svc.Catalog.EditPatient(c.Request.Context(), id, req.input()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (pc *PatientController) ReorderPatients(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok || !pc.access().instructorOf(c, groupID) {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ids, err := canonicalIDs(req.PatientIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid patient id"})
		return
	}
	if err := pc.Svc.Catalog.ReorderPatients(c.Request.Context(), groupID, ids); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reordered"})
}

func (pc *PatientController) DeletePatient(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok {
		return
	}
	if _, ok := pc.access().instructorOfPatient(c, id); !ok {
		return
	}
	if err := pc.Svc.Catalog.DeletePatient(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (pc *PatientController) ToggleAutomatedScoring(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok {
		return
	}
	if _, ok := pc.access().instructorOfPatient(c, id); !ok {
		return
	}
	on, err := pc.Svc.Scoring.ToggleAutomatedScoring(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"automated_scoring": on})
}
