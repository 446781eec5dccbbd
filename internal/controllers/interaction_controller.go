package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/repository"
	"github.com/zaqqye/simlab_backend/internal/services"
)

type InteractionController struct {
	Svc *services.Services
}

type verdictRequest struct {
	PatientID    string `json:"patient_id" binding:"required"`
	GroupID      string `json:"group_id" binding:"required"`
	PrincipalID  string `json:"principal_id"`
	StudentEmail string `json:"student_email"`
	Verdict      *bool  `json:"llm_verdict" binding:"required"`
}

// CompletionStatus is the instructor dashboard for one group.
func (ic *InteractionController) CompletionStatus(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: ic.Svc}).instructorOf(c, groupID) {
		return
	}
	rows, err := ic.Svc.Scoring.CompletionStatus(c.Request.Context(), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	type row struct {
		InteractionID string `json:"interaction_id"`
		PrincipalID   string `json:"principal_id"`
		Email         string `json:"email"`
		PatientID     string `json:"patient_id"`
		PatientName   string `json:"patient_name"`
		Score         int    `json:"score"`
		Completed     bool   `json:"completed"`
	}
	out := make([]row, 0, len(rows))
	completed := 0
	for _, r := range rows {
		if r.Completed {
			completed++
		}
		out = append(out, row{r.InteractionID, r.PrincipalID, r.Email, r.PatientID, r.PatientName, r.Score, r.Completed})
	}
	meta := gin.H{"total": len(out), "completed": completed}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": meta})
}

// Analytics aggregates student activity per patient for the group.
func (ic *InteractionController) Analytics(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: ic.Svc}).instructorOf(c, groupID) {
		return
	}
	rows, err := ic.Svc.Scoring.Analytics(c.Request.Context(), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (ic *InteractionController) ToggleCompleted(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok {
		return
	}
	cur, err := ic.Svc.Scoring.Lookup(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !(groupAccess{Svc: ic.Svc}).instructorOf(c, cur.GroupID) {
		return
	}
	done, err := ic.Svc.Scoring.ToggleCompleted(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": done})
}

// ApplyVerdict is called by the judging service after it grades a student reply.
func (ic *InteractionController) ApplyVerdict(c *gin.Context) {
	var req verdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	principalID := strings.TrimSpace(req.PrincipalID)
	if principalID == "" {
		if strings.TrimSpace(req.StudentEmail) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "principal_id or student_email is required"})
			return
		}
		p, err := ic.Svc.Directory.FindByEmail(c.Request.Context(), req.StudentEmail)
		if err != nil {
			writeError(c, err)
			return
		}
		principalID = p.ID
	}
	upd, err := ic.Svc.Scoring.ApplyVerdictFor(c.Request.Context(), principalID, req.PatientID, req.GroupID, *req.Verdict)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, upd)
}

func (ic *InteractionController) Verify(c *gin.Context) {
	groupID := strings.TrimSpace(c.Query("group_id"))
	if err := ic.Svc.Sync.Verify(c.Request.Context(), groupID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "consistent"})
}

func (ic *InteractionController) Reconcile(c *gin.Context) {
	groupID := strings.TrimSpace(c.Query("group_id"))
	rep, err := ic.Svc.Sync.Reconcile(c.Request.Context(), groupID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Events exposes the engagement ledger to analytics.
func (ic *InteractionController) Events(c *gin.Context) {
	limit := 200
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	rows, err := ic.Svc.Ledger.Events(c.Request.Context(), repository.EventFilter{
		PrincipalID: strings.TrimSpace(c.Query("principal_id")),
		GroupID:     strings.TrimSpace(c.Query("group_id")),
		EventType:   strings.TrimSpace(c.Query("event_type")),
		Limit:       limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, e := range rows {
		out = append(out, gin.H{
			"id":           e.ID,
			"principal_id": e.PrincipalID,
			"group_id":     e.GroupID,
			"patient_id":   e.PatientID,
			"enrolment_id": e.EnrolmentID,
			"event_type":   e.EventType,
			"timestamp":    e.Timestamp.Format(time.RFC3339),
			"detail":       e.Detail,
			"attributes":   e.Attributes,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "meta": gin.H{"total": len(out), "limit": limit}})
}
