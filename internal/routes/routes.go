package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/simlab_backend/internal/config"
	"github.com/zaqqye/simlab_backend/internal/controllers"
	"github.com/zaqqye/simlab_backend/internal/middleware"
	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
	"github.com/zaqqye/simlab_backend/internal/ws"
)

func Register(r *gin.Engine, svc *services.Services, hubs *ws.Hubs, cfg *config.Config) {
	// Controllers
	dirCtrl := &controllers.DirectoryController{Svc: svc}
	groupCtrl := &controllers.GroupController{Svc: svc}
	rosterCtrl := &controllers.RosterController{Svc: svc}
	patientCtrl := &controllers.PatientController{Svc: svc}
	interactionCtrl := &controllers.InteractionController{Svc: svc}
	sessionCtrl := &controllers.SessionController{Svc: svc}

	authCfg := middleware.AuthConfig{JWTSecret: cfg.JWTSecret}

	// Public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Sign-in only needs a valid identity token; the principal may not exist yet.
	auth := r.Group("/api/v1/auth", middleware.VerifyToken(authCfg))
	{
		auth.POST("/sign-in", dirCtrl.SignIn)
	}

	// Protected
	api := r.Group("/api/v1", middleware.AuthMiddleware(svc.Directory, authCfg))
	{
		api.GET("/me", dirCtrl.Me)
		api.GET("/groups", groupCtrl.ListGroups)

		// Admin-only
		admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
		{
			admin.GET("/principals", dirCtrl.ListPrincipals)
			admin.POST("/instructors/promote", dirCtrl.Promote)
			admin.POST("/instructors/demote", dirCtrl.Demote)
			admin.DELETE("/instructors/:principal_id/enrolments", rosterCtrl.UnassignInstructorEverywhere)

			admin.POST("/groups", groupCtrl.CreateGroup)
			admin.DELETE("/groups/:id", groupCtrl.DeleteGroup)
			admin.POST("/groups/:id/instructors", rosterCtrl.AssignInstructor)
			admin.DELETE("/groups/:id/instructors", rosterCtrl.UnassignAllInstructors)
			admin.DELETE("/groups/:id/instructors/:principal_id", rosterCtrl.UnassignInstructor)

			admin.GET("/interactions/verify", interactionCtrl.Verify)
			admin.POST("/interactions/reconcile", interactionCtrl.Reconcile)
			admin.GET("/events", interactionCtrl.Events)
		}

		// Instructor area (and admin); per-group access is checked in the controllers
		instructor := api.Group("/instructor", middleware.RequireRoles(models.RoleInstructor))
		{
			instructor.GET("/groups/:id", groupCtrl.GetGroup)
			instructor.PATCH("/groups/:id/access", groupCtrl.SetStudentAccess)
			instructor.POST("/groups/:id/access-code", groupCtrl.RegenerateAccessCode)
			instructor.PUT("/groups/:id/prompt", groupCtrl.UpdateSystemPrompt)
			instructor.GET("/groups/:id/prompt-history", groupCtrl.PromptHistory)
			instructor.GET("/groups/:id/instructors", rosterCtrl.ListInstructors)
			instructor.GET("/groups/:id/students", rosterCtrl.ListStudents)
			instructor.DELETE("/groups/:id/students/:principal_id", rosterCtrl.RemoveStudent)
			instructor.GET("/groups/:id/patients", patientCtrl.ListPatients)
			instructor.POST("/groups/:id/patients", patientCtrl.CreatePatient)
			instructor.PUT("/groups/:id/patients/order", patientCtrl.ReorderPatients)
			instructor.GET("/groups/:id/completion", interactionCtrl.CompletionStatus)
			instructor.GET("/groups/:id/analytics", interactionCtrl.Analytics)
			instructor.GET("/groups/:id/transcript", sessionCtrl.StudentTranscript)

			instructor.GET("/patients/:id", patientCtrl.GetPatient)
			instructor.PUT("/patients/:id", patientCtrl.EditPatient)
			instructor.DELETE("/patients/:id", patientCtrl.DeletePatient)
			instructor.POST("/patients/:id/automated-scoring", patientCtrl.ToggleAutomatedScoring)
			instructor.POST("/interactions/:id/completed", interactionCtrl.ToggleCompleted)
		}

		// Student area (and admin)
		student := api.Group("/student", middleware.RequireRoles(models.RoleStudent))
		{
			student.POST("/join", rosterCtrl.Join)
			student.GET("/groups/:id/patients", patientCtrl.ListPatients)
			student.GET("/groups/:id/patients/:patient_id", sessionCtrl.AccessPatient)
			student.POST("/groups/:id/patients/:patient_id/sessions", sessionCtrl.OpenSession)
			student.PATCH("/sessions/:id", sessionCtrl.UpdateSession)
			student.DELETE("/sessions/:id", sessionCtrl.DeleteSession)
			student.GET("/sessions/:id/messages", sessionCtrl.ListMessages)
			student.POST("/sessions/:id/messages", sessionCtrl.PostMessage)
			student.DELETE("/sessions/:id/messages/last", sessionCtrl.UndoLastMessage)
		}

		// Judge and generation services
		tech := api.Group("", middleware.RequireRoles(models.RoleTechAdmin))
		{
			tech.POST("/judge/verdicts", interactionCtrl.ApplyVerdict)
			tech.POST("/generation/sessions/:id/messages", sessionCtrl.PostReply)
		}

		// Realtime
		api.GET("/ws/dashboard", ws.DashboardHandler(svc, hubs.Dashboard))
		api.GET("/ws/student", ws.StudentHandler(hubs))
	}
}
