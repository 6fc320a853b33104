package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskgrid-dev/taskgrid/db"
	"github.com/taskgrid-dev/taskgrid/internal/models"
	"github.com/taskgrid-dev/taskgrid/internal/permissions"
	"github.com/taskgrid-dev/taskgrid/internal/services"
	"github.com/taskgrid-dev/taskgrid/internal/utils"
	"github.com/taskgrid-dev/taskgrid/internal/validation"
	"gorm.io/gorm"
)

type CreateProjectRequest struct {
	Name           string   `json:"name" binding:"required"`
	Description    string   `json:"description"`
	SlackWebhook   string   `json:"slack_webhook"`
	DiscordWebhook string   `json:"discord_webhook"`
	Contributors   []string `json:"contributors" binding:"omitempty,dive,email"`
}

type UpdateProjectRequest struct {
	Name           string  `json:"name" binding:"required"`
	Description    string  `json:"description"`
	SlackWebhook   *string `json:"slack_webhook"`
	DiscordWebhook *string `json:"discord_webhook"`
}

type GetProjectResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     uint   `json:"owner_id"`
	Role        string `json:"role,omitempty"`
}

type ProjectSummaryResponse struct {
	Project     GetProjectResponse `json:"project"`
	TaskCounts  map[string]int64   `json:"task_counts"`
	Overdue     int64              `json:"overdue"`
	MemberCount int64              `json:"member_count"`
}

// requireProjectAccess loads the caller's visibility of a project. A project
// the user cannot see reports not-found, the same as a nonexistent id, so
// existence never leaks.
func requireProjectAccess(ctx *gin.Context, userID, projectID uint) bool {
	perm := permissions.NewEvaluator(db.DB)

	access, err := perm.HasProjectAccess(userID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate project access: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return false
	}

	if !access {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return false
	}

	return true
}

func CreateProject(ctx *gin.Context) {
	var body CreateProjectRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBindingError(err)})
		return
	}

	var fieldErrors []validation.FieldError

	if !services.IsWebhookURL(body.SlackWebhook) {
		fieldErrors = append(fieldErrors, validation.FieldError{
			Field: "slack_webhook", Message: "Must be an HTTP(S) URL",
		})
	}

	if !services.IsWebhookURL(body.DiscordWebhook) {
		fieldErrors = append(fieldErrors, validation.FieldError{
			Field: "discord_webhook", Message: "Must be an HTTP(S) URL",
		})
	}

	if len(fieldErrors) > 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	project := models.Project{
		Name:           body.Name,
		Description:    body.Description,
		SlackWebhook:   body.SlackWebhook,
		DiscordWebhook: body.DiscordWebhook,
		OwnerID:        userID,
	}

	// Project plus its initial contributor rows commit together or not at
	// all; readers never observe a half-initialized project.
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		for _, email := range body.Contributors {
			email = strings.ToLower(strings.TrimSpace(email))

			var contributor models.User

			if err := tx.Where("email = ?", email).First(&contributor).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					fieldErrors = append(fieldErrors, validation.FieldError{
						Field:   "contributors",
						Message: "No user with email " + email,
					})
					continue
				}
				return err
			}

			if contributor.ID == userID {
				continue
			}

			membership := models.ProjectMembership{
				UserID:    contributor.ID,
				ProjectID: project.ID,
				Role:      models.RoleContributor,
			}

			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		}

		if len(fieldErrors) > 0 {
			return gorm.ErrInvalidData
		}

		return nil
	})

	if err != nil && !errors.Is(err, gorm.ErrInvalidData) {
		log.Printf("Failed to create project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	if len(fieldErrors) > 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	ctx.JSON(http.StatusCreated, GetProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		OwnerID:     project.OwnerID,
		Role:        models.RoleOwner,
	})
}

func ListProjects(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var projects []models.Project

	memberProjects := db.DB.Model(&models.ProjectMembership{}).
		Select("project_id").
		Where("user_id = ?", userID)

	if err := db.DB.Where("owner_id = ? OR id IN (?)", userID, memberProjects).Find(&projects).Error; err != nil {
		log.Printf("Failed to list projects: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve projects"})
		return
	}

	perm := permissions.NewEvaluator(db.DB)
	response := make([]GetProjectResponse, 0, len(projects))

	for _, project := range projects {
		role := models.RoleOwner

		if project.OwnerID != userID {
			role, err = perm.ProjectRole(userID, project.ID)

			if err != nil {
				log.Printf("Failed to resolve project role: %v", err)
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve projects"})
				return
			}
		}

		response = append(response, GetProjectResponse{
			ID:          project.ID,
			Name:        project.Name,
			Description: project.Description,
			OwnerID:     project.OwnerID,
			Role:        role,
		})
	}

	ctx.JSON(http.StatusOK, response)
}

func GetProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		log.Printf("Failed to retrieve project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		return
	}

	role, err := permissions.NewEvaluator(db.DB).ProjectRole(userID, projectID)

	if err != nil {
		log.Printf("Failed to resolve project role: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		return
	}

	ctx.JSON(http.StatusOK, GetProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		OwnerID:     project.OwnerID,
		Role:        role,
	})
}

func UpdateProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateProjectRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBindingError(err)})
		return
	}

	var fieldErrors []validation.FieldError

	if body.SlackWebhook != nil && !services.IsWebhookURL(*body.SlackWebhook) {
		fieldErrors = append(fieldErrors, validation.FieldError{
			Field: "slack_webhook", Message: "Must be an HTTP(S) URL",
		})
	}

	if body.DiscordWebhook != nil && !services.IsWebhookURL(*body.DiscordWebhook) {
		fieldErrors = append(fieldErrors, validation.FieldError{
			Field: "discord_webhook", Message: "Must be an HTTP(S) URL",
		})
	}

	if len(fieldErrors) > 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	canModify, err := permissions.NewEvaluator(db.DB).CanModifyProject(userID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate project permission: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !canModify {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Only the owner or an admin can modify the project"})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		log.Printf("Failed to retrieve project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		return
	}

	project.Name = body.Name
	project.Description = body.Description

	if body.SlackWebhook != nil {
		project.SlackWebhook = *body.SlackWebhook
	}

	if body.DiscordWebhook != nil {
		project.DiscordWebhook = *body.DiscordWebhook
	}

	if err := db.DB.Save(&project).Error; err != nil {
		log.Printf("Failed to update project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	ctx.JSON(http.StatusOK, GetProjectResponse{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		OwnerID:     project.OwnerID,
	})
}

func DeleteProject(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	canDelete, err := permissions.NewEvaluator(db.DB).CanDeleteProject(userID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate project permission: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !canDelete {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Only the owner can delete the project"})
		return
	}

	// Memberships, tasks, assignments, and comments become unreachable with
	// the project; every child lookup goes through the project access check.
	if err := db.DB.Delete(&models.Project{}, projectID).Error; err != nil {
		log.Printf("Failed to delete project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func GetProjectSummary(ctx *gin.Context) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	projectID, err := utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err != nil {
		log.Printf("Failed to retrieve project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		return
	}

	taskCounts := make(map[string]int64)

	rows, err := db.DB.Model(&models.Task{}).
		Select("status, COUNT(*) AS count").
		Where("project_id = ?", projectID).
		Group("status").Rows()

	if err != nil {
		log.Printf("Failed to count tasks: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary"})
		return
	}

	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64

		if err := rows.Scan(&status, &count); err != nil {
			log.Printf("Failed to scan task counts: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary"})
			return
		}

		taskCounts[status] = count
	}

	var overdue int64

	if err := db.DB.Model(&models.Task{}).
		Where("project_id = ? AND due_date < ? AND status NOT IN ?", projectID, time.Now(),
			[]string{models.TaskStatusDone, models.TaskStatusCancelled}).
		Count(&overdue).Error; err != nil {
		log.Printf("Failed to count overdue tasks: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary"})
		return
	}

	var memberCount int64

	if err := db.DB.Model(&models.ProjectMembership{}).
		Where("project_id = ?", projectID).
		Count(&memberCount).Error; err != nil {
		log.Printf("Failed to count members: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build summary"})
		return
	}

	ctx.JSON(http.StatusOK, ProjectSummaryResponse{
		Project: GetProjectResponse{
			ID:          project.ID,
			Name:        project.Name,
			Description: project.Description,
			OwnerID:     project.OwnerID,
		},
		TaskCounts:  taskCounts,
		Overdue:     overdue,
		MemberCount: memberCount + 1, // owner is not a membership row
	})
}
