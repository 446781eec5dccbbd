package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

type SessionController struct {
	Svc *services.Services
}

type openSessionRequest struct {
	Name string `json:"name"`
}

type updateSessionRequest struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}

type messageRequest struct {
	Content string `json:"content" binding:"required"`
}

func interactionJSON(it models.Interaction) gin.H {
	return gin.H{
		"id":            it.ID,
		"patient_id":    it.PatientID,
		"enrolment_id":  it.EnrolmentID,
		"score":         it.Score,
		"completed":     it.Completed,
		"last_accessed": it.LastAccessed.Format(time.RFC3339),
	}
}

func sessionJSON(s models.Session) gin.H {
	return gin.H{
		"id":             s.ID,
		"interaction_id": s.InteractionID,
		"name":           s.Name,
		"notes":          s.Notes,
		"last_accessed":  s.LastAccessed.Format(time.RFC3339),
	}
}

func messageJSON(m models.Message) gin.H {
	return gin.H{
		"id":         m.ID,
		"session_id": m.SessionID,
		"sender":     m.Sender,
		"content":    m.Content,
		"sent_at":    m.SentAt.Format(time.RFC3339),
	}
}

// ref resolves the caller's interaction coordinates from the route.
func (sc *SessionController) ref(c *gin.Context) (services.InteractionRef, bool) {
	groupID, ok := param(c, "id")
	if !ok {
		return services.InteractionRef{}, false
	}
	patientID, ok := param(c, "patient_id")
	if !ok {
		return services.InteractionRef{}, false
	}
	if !(groupAccess{Svc: sc.Svc}).memberOf(c, groupID) {
		return services.InteractionRef{}, false
	}
	return services.InteractionRef{PrincipalID: currentPrincipal(c).ID, GroupID: groupID, PatientID: patientID}, true
}

// owned resolves :id as a session of the caller.
func (sc *SessionController) owned(c *gin.Context) (string, bool) {
	id, ok := param(c, "id")
	if !ok {
		return "", false
	}
	if err := sc.Svc.Conversations.OwnsSession(c.Request.Context(), currentPrincipal(c).ID, id); err != nil {
		writeError(c, err)
		return "", false
	}
	return id, true
}

func (sc *SessionController) AccessPatient(c *gin.Context) {
	ref, ok := sc.ref(c)
	if !ok {
		return
	}
	view, err := sc.Svc.Conversations.AccessPatient(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}
	sessions := make([]gin.H, 0, len(view.Sessions))
	for _, s := range view.Sessions {
		sessions = append(sessions, sessionJSON(s))
	}
	c.JSON(http.StatusOK, gin.H{"interaction": interactionJSON(view.Interaction), "sessions": sessions})
}

func (sc *SessionController) OpenSession(c *gin.Context) {
	ref, ok := sc.ref(c)
	if !ok {
		return
	}
	var req openSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	sess, err := sc.Svc.Conversations.OpenSession(c.Request.Context(), ref, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionJSON(*sess))
}

func (sc *SessionController) UpdateSession(c *gin.Context) {
	id, ok := sc.owned(c)
	if !ok {
		return
	}
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == nil && req.Notes == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}
	ctx := c.Request.Context()
	if req.Name != nil {
		if err := sc.Svc.Conversations.RenameSession(ctx, id, *req.Name); err != nil {
			writeError(c, err)
			return
		}
	}
	if req.Notes != nil {
		if err := sc.Svc.Conversations.UpdateNotes(ctx, id, *req.Notes); err != nil {
			writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "session updated"})
}

func (sc *SessionController) DeleteSession(c *gin.Context) {
	id, ok := sc.owned(c)
	if !ok {
		return
	}
	if err := sc.Svc.Conversations.DeleteSession(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "session deleted"})
}

func (sc *SessionController) ListMessages(c *gin.Context) {
	id, ok := sc.owned(c)
	if !ok {
		return
	}
	rows, err := sc.Svc.Conversations.ListMessages(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, m := range rows {
		out = append(out, messageJSON(m))
	}
	paginate(c, out)
}

func (sc *SessionController) PostMessage(c *gin.Context) {
	id, ok := sc.owned(c)
	if !ok {
		return
	}
	sc.post(c, id, models.SenderStudent)
}

// PostReply stores a generated patient reply. Only the generation service calls it.
func (sc *SessionController) PostReply(c *gin.Context) {
	id, ok := param(c, "id")
	if !ok {
		return
	}
	sc.post(c, id, models.SenderAI)
}

func (sc *SessionController) post(c *gin.Context, sessionID, sender string) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := sc.Svc.Conversations.PostMessage(c.Request.Context(), sessionID, sender, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, messageJSON(*msg))
}

func (sc *SessionController) UndoLastMessage(c *gin.Context) {
	id, ok := sc.owned(c)
	if !ok {
		return
	}
	msg, err := sc.Svc.Conversations.UndoLastMessage(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageJSON(*msg))
}

// StudentTranscript shows an instructor one student's sessions and messages in
// the group, per patient. The student is named by ?principal_id or ?student_email.
func (sc *SessionController) StudentTranscript(c *gin.Context) {
	groupID, ok := param(c, "id")
	if !ok || !(groupAccess{Svc: sc.Svc}).instructorOf(c, groupID) {
		return
	}
	ctx := c.Request.Context()
	principalID := strings.TrimSpace(c.Query("principal_id"))
	if principalID == "" {
		email := strings.TrimSpace(c.Query("student_email"))
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "principal_id or student_email is required"})
			return
		}
		p, err := sc.Svc.Directory.FindByEmail(ctx, email)
		if err != nil {
			writeError(c, err)
			return
		}
		principalID = p.ID
	}
	rows, err := sc.Svc.Conversations.Transcript(ctx, groupID, principalID)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, pt := range rows {
		sessions := make([]gin.H, 0, len(pt.Sessions))
		for _, st := range pt.Sessions {
			msgs := make([]gin.H, 0, len(st.Messages))
			for _, m := range st.Messages {
				msgs = append(msgs, messageJSON(m))
			}
			s := sessionJSON(st.Session)
			s["messages"] = msgs
			sessions = append(sessions, s)
		}
		out = append(out, gin.H{
			"patient":     patientJSON(pt.Patient, true),
			"interaction": interactionJSON(pt.Interaction),
			"sessions":    sessions,
		})
	}
	c.JSON(http.StatusOK, gin.H{"principal_id": principalID, "data": out})
}
