package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

type GroupController struct {
	Svc *services.Services
}

type createGroupRequest struct {
	Name              string `json:"name" binding:"required"`
	Description       string `json:"description"`
	AccessCode        string `json:"access_code"`
	StudentSelfEnroll *bool  `json:"student_self_enroll"`
	SystemPrompt      string `json:"system_prompt"`
}

type accessRequest struct {
	StudentSelfEnroll *bool `json:"student_self_enroll" binding:"required"`
}

type promptRequest struct {
	SystemPrompt string `json:"system_prompt"`
}

// groupJSON hides the access code and prompt from students.
func groupJSON(g models.Group, full bool) gin.H {
	out := gin.H{
		"id":                  g.ID,
		"name":                g.Name,
		"description":         g.Description,
		"student_self_enroll": g.StudentSelfEnroll,
		"created_at":          g.CreatedAt,
		"updated_at":          g.UpdatedAt,
	}
	if full {
		out["access_code"] = g.AccessCode
		out["system_prompt"] = g.SystemPrompt
	}
	return out
}

// ListGroups returns every group to admins and the caller's own groups otherwise.
// ?q= filters by name.
func (gc *GroupController) ListGroups(c *gin.Context) {
	p := currentPrincipal(c)
	ctx := c.Request.Context()
	var (
		groups []models.Group
		err    error
	)
	if isAdmin(p) {
		groups, err = gc.Svc.Groups.ListGroups(ctx)
	} else {
		groups, err = gc.Svc.Roster.GroupsFor(ctx, p.ID, "")
	}
	if err != nil {
		writeError(c, err)
		return
	}
	instructing := map[string]bool{}
	if !isAdmin(p) {
		mine, err := gc.Svc.Roster.GroupsFor(ctx, p.ID, models.EnrolInstructor)
		if err != nil {
			writeError(c, err)
			return
		}
		for _, g := range mine {
			instructing[g.ID] = true
		}
	}
	qText := strings.ToLower(strings.TrimSpace(c.Query("q")))
	out := make([]gin.H, 0, len(groups))
	for _, g := range groups {
		if qText != "" && !strings.Contains(strings.ToLower(g.Name), qText) {
			continue
		}
		out = append(out, groupJSON(g, isAdmin(p) || instructing[g.ID]))
	}
	paginate(c, out)
}

func (gc *GroupController) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	open := true
	if req.StudentSelfEnroll != nil {
		open = *req.StudentSelfEnroll
	}
	g, err := gc.Svc.Groups.CreateGroup(c.Request.Context(), services.GroupInput{
		Name:              req.Name,
		Description:       req.Description,
		AccessCode:        req.AccessCode,
		StudentSelfEnroll: open,
		SystemPrompt:      req.SystemPrompt,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "created", "id": g.ID, "access_code": g.AccessCode})
}

func (gc *GroupController) GetGroup(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok {
		return
	}
	access := groupAccess{Svc: gc.Svc}
	if !access.instructorOf(c, id) {
		return
	}
	g, err := gc.Svc.Groups.GetGroup(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groupJSON(*g, true))
}

func (gc *GroupController) SetStudentAccess(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: gc.Svc}).instructorOf(c, id) {
		return
	}
	var req accessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := gc.Svc.Groups.SetStudentAccess(c.Request.Context(), id, *req.StudentSelfEnroll); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated", "student_self_enroll": *req.StudentSelfEnroll})
}

func (gc *GroupController) RegenerateAccessCode(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: gc.Svc}).instructorOf(c, id) {
		return
	}
	code, err := gc.Svc.Groups.RegenerateAccessCode(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_code": code})
}

func (gc *GroupController) UpdateSystemPrompt(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: gc.Svc}).instructorOf(c, id) {
		return
	}
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := gc.Svc.Groups.UpdateSystemPrompt(c.Request.Context(), id, req.SystemPrompt); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

func (gc *GroupController) PromptHistory(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: gc.Svc}).instructorOf(c, id) {
		return
	}
	rows, err := gc.Svc.Ledger.PreviousPrompts(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	paginate(c, rows)
}

func (gc *GroupController) DeleteGroup(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok {
		return
	}
	if err := gc.Svc.Groups.DeleteGroup(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
