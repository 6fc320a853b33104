package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/taskgrid-dev/taskgrid/internal/config"
	"github.com/taskgrid-dev/taskgrid/internal/handlers"
	"github.com/taskgrid-dev/taskgrid/internal/middleware"
)

func NewRouter() *gin.Engine {
	r := gin.Default()

	// Add CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheck)
		api.GET("/ws/:project_id", middleware.AuthMiddleware(), handlers.WebSocket)
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.CreateUser)
			auth.POST("/login", handlers.LoginUser)
			auth.POST("/logout", handlers.LogoutUser)
			auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
			auth.PATCH("/me", middleware.AuthMiddleware(), handlers.UpdateUser)
			auth.DELETE("/me", middleware.AuthMiddleware(), handlers.DeleteUser)
		}

		projects := api.Group("/projects", middleware.AuthMiddleware())
		{
			projects.POST("", handlers.CreateProject)
			projects.GET("", handlers.ListProjects)
			projects.GET("/:project_id", handlers.GetProject)
			projects.PATCH("/:project_id", handlers.UpdateProject)
			projects.DELETE("/:project_id", handlers.DeleteProject)

			// Summary endpoint
			projects.GET("/:project_id/summary", handlers.GetProjectSummary)

			// Member endpoints
			projects.GET("/:project_id/members", handlers.ListMembers)
			projects.POST("/:project_id/members", handlers.AddMember)
			projects.PATCH("/:project_id/members/:user_id", handlers.UpdateMemberRole)
			projects.DELETE("/:project_id/members/:user_id", handlers.RemoveMember)

			// Task endpoints
			projects.POST("/:project_id/tasks", handlers.CreateTask)
			projects.GET("/:project_id/tasks", handlers.ListTasks)
			projects.GET("/:project_id/tasks/:task_id", handlers.GetTask)
			projects.PATCH("/:project_id/tasks/:task_id", handlers.UpdateTask)
			projects.DELETE("/:project_id/tasks/:task_id", handlers.DeleteTask)

			// Comment endpoints
			projects.POST("/:project_id/tasks/:task_id/comments", handlers.CreateComment)
			projects.GET("/:project_id/tasks/:task_id/comments", handlers.ListComments)
			projects.PATCH("/:project_id/tasks/:task_id/comments/:comment_id", handlers.UpdateComment)
			projects.DELETE("/:project_id/tasks/:task_id/comments/:comment_id", handlers.DeleteComment)
		}
	}

	return r
}
