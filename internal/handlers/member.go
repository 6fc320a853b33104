package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskgrid-dev/taskgrid/db"
	"github.com/taskgrid-dev/taskgrid/internal/models"
	"github.com/taskgrid-dev/taskgrid/internal/permissions"
	"github.com/taskgrid-dev/taskgrid/internal/utils"
	"github.com/taskgrid-dev/taskgrid/internal/validation"
	"gorm.io/gorm"
)

type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

type MemberResponse struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// requireMemberManagement checks the owner-or-admin right behind every
// membership mutation. Assumes requireProjectAccess already passed.
func requireMemberManagement(ctx *gin.Context, userID, projectID uint) bool {
	canModify, err := permissions.NewEvaluator(db.DB).CanModifyProject(userID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate project permission: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return false
	}

	if !canModify {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Only the owner or an admin can manage members"})
		return false
	}

	return true
}

func ListMembers(ctx *gin.Context) {
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

	if err := db.DB.Preload("Owner").First(&project, projectID).Error; err != nil {
		log.Printf("Failed to retrieve project: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	var memberships []models.ProjectMembership

	if err := db.DB.Preload("User").Where("project_id = ?", projectID).Find(&memberships).Error; err != nil {
		log.Printf("Failed to retrieve memberships: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve members"})
		return
	}

	response := []MemberResponse{
		{
			UserID: project.OwnerID,
			Name:   project.Owner.Name,
			Email:  project.Owner.Email,
			Role:   models.RoleOwner,
		},
	}

	for _, membership := range memberships {
		response = append(response, MemberResponse{
			UserID: membership.UserID,
			Name:   membership.User.Name,
			Email:  membership.User.Email,
			Role:   membership.Role,
		})
	}

	ctx.JSON(http.StatusOK, response)
}

func AddMember(ctx *gin.Context) {
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

	var body AddMemberRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBindingError(err)})
		return
	}

	if body.Role == "" {
		body.Role = models.RoleContributor
	}

	if !models.IsMembershipRole(body.Role) {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": []validation.FieldError{
			{Field: "role", Message: "Role must be admin or contributor"},
		}})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	if !requireMemberManagement(ctx, userID, projectID) {
		return
	}

	var target models.User

	email := strings.ToLower(strings.TrimSpace(body.Email))

	if err := db.DB.Where("email = ?", email).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "No user with that email"})
		} else {
			log.Printf("Failed to look up user: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	owner, err := permissions.NewEvaluator(db.DB).IsProjectOwner(target.ID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate ownership: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if owner {
		ctx.JSON(http.StatusConflict, gin.H{"error": "The owner cannot be added as a member"})
		return
	}

	var existing models.ProjectMembership

	err = db.DB.Where("user_id = ? AND project_id = ?", target.ID, projectID).First(&existing).Error

	if err == nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": "User is already a member of this project"})
		return
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("Failed to look up membership: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	membership := models.ProjectMembership{
		UserID:    target.ID,
		ProjectID: projectID,
		Role:      body.Role,
	}

	if err := db.DB.Create(&membership).Error; err != nil {
		log.Printf("Failed to add member: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		return
	}

	ctx.JSON(http.StatusCreated, MemberResponse{
		UserID: target.ID,
		Name:   target.Name,
		Email:  target.Email,
		Role:   membership.Role,
	})
}

func UpdateMemberRole(ctx *gin.Context) {
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

	targetID, err := utils.GetUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateMemberRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBindingError(err)})
		return
	}

	if !models.IsMembershipRole(body.Role) {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": []validation.FieldError{
			{Field: "role", Message: "Role must be admin or contributor"},
		}})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	if !requireMemberManagement(ctx, userID, projectID) {
		return
	}

	owner, err := permissions.NewEvaluator(db.DB).IsProjectOwner(targetID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate ownership: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if owner {
		ctx.JSON(http.StatusConflict, gin.H{
			"error": "The owner's role cannot be changed",
			"code":  "CANNOT_REMOVE_OWNER",
		})
		return
	}

	var membership models.ProjectMembership

	if err := db.DB.Where("user_id = ? AND project_id = ?", targetID, projectID).First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User is not a member of this project"})
		} else {
			log.Printf("Failed to look up membership: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	membership.Role = body.Role

	if err := db.DB.Save(&membership).Error; err != nil {
		log.Printf("Failed to update member role: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member role"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Member role updated", "role": membership.Role})
}

func RemoveMember(ctx *gin.Context) {
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

	targetID, err := utils.GetUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	// Members may leave on their own; removing anyone else takes the
	// owner-or-admin right.
	if targetID != userID && !requireMemberManagement(ctx, userID, projectID) {
		return
	}

	// Checked explicitly before touching the memberships table: the owner
	// has no membership row, so the delete below would otherwise silently
	// match nothing instead of rejecting.
	owner, err := permissions.NewEvaluator(db.DB).IsProjectOwner(targetID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate ownership: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if owner {
		ctx.JSON(http.StatusConflict, gin.H{
			"error": "The owner cannot be removed from the project",
			"code":  "CANNOT_REMOVE_OWNER",
		})
		return
	}

	// Removing a user who is not a member is a no-op. Hard delete so the
	// (user_id, project_id) unique index does not block a later re-add.
	if err := db.DB.Unscoped().Where("user_id = ? AND project_id = ?", targetID, projectID).
		Delete(&models.ProjectMembership{}).Error; err != nil {
		log.Printf("Failed to remove member: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	ctx.Status(http.StatusNoContent)
}
