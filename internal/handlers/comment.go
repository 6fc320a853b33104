package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskgrid-dev/taskgrid/db"
	"github.com/taskgrid-dev/taskgrid/internal/models"
	"github.com/taskgrid-dev/taskgrid/internal/permissions"
	"github.com/taskgrid-dev/taskgrid/internal/utils"
	"github.com/taskgrid-dev/taskgrid/internal/validation"
	"gorm.io/gorm"
)

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

type CommentResponse struct {
	ID         uint      `json:"id"`
	TaskID     uint      `json:"task_id"`
	AuthorID   uint      `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func commentScope(ctx *gin.Context) (userID, projectID, taskID uint, ok bool) {
	userID, err := utils.GetCurrentUserID(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, 0, 0, false
	}

	projectID, err = utils.GetProjectID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, 0, false
	}

	taskID, err = utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return 0, 0, 0, false
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return 0, 0, 0, false
	}

	if _, ok := findProjectTask(ctx, projectID, taskID); !ok {
		return 0, 0, 0, false
	}

	return userID, projectID, taskID, true
}

func CreateComment(ctx *gin.Context) {
	var body CreateCommentRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBindingError(err)})
		return
	}

	userID, projectID, taskID, ok := commentScope(ctx)

	if !ok {
		return
	}

	comment := models.Comment{
		TaskID:   taskID,
		AuthorID: userID,
		Content:  body.Content,
	}

	if err := db.DB.Create(&comment).Error; err != nil {
		log.Printf("Failed to create comment: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	BroadcastProjectEvent(projectID, "comment_created", taskID)

	ctx.JSON(http.StatusCreated, CommentResponse{
		ID:        comment.ID,
		TaskID:    comment.TaskID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	})
}

func ListComments(ctx *gin.Context) {
	_, _, taskID, ok := commentScope(ctx)

	if !ok {
		return
	}

	var comments []models.Comment

	// Oldest first for threaded display.
	if err := db.DB.Preload("Author").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		log.Printf("Failed to list comments: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comments"})
		return
	}

	response := make([]CommentResponse, 0, len(comments))

	for _, comment := range comments {
		response = append(response, CommentResponse{
			ID:         comment.ID,
			TaskID:     comment.TaskID,
			AuthorID:   comment.AuthorID,
			AuthorName: comment.Author.Name,
			Content:    comment.Content,
			CreatedAt:  comment.CreatedAt,
		})
	}

	ctx.JSON(http.StatusOK, response)
}

func findTaskComment(ctx *gin.Context, taskID uint) (models.Comment, bool) {
	commentID, err := utils.GetCommentID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.Comment{}, false
	}

	var comment models.Comment

	if err := db.DB.Where("id = ? AND task_id = ?", commentID, taskID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		} else {
			log.Printf("Failed to retrieve comment: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve comment"})
		}
		return models.Comment{}, false
	}

	return comment, true
}

// UpdateComment is author-only; task-modify rights do not extend to editing
// someone else's words.
func UpdateComment(ctx *gin.Context) {
	var body UpdateCommentRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBindingError(err)})
		return
	}

	userID, projectID, taskID, ok := commentScope(ctx)

	if !ok {
		return
	}

	comment, ok := findTaskComment(ctx, taskID)

	if !ok {
		return
	}

	if comment.AuthorID != userID {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "Only the author can edit a comment"})
		return
	}

	comment.Content = body.Content

	if err := db.DB.Save(&comment).Error; err != nil {
		log.Printf("Failed to update comment: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update comment"})
		return
	}

	BroadcastProjectEvent(projectID, "comment_updated", taskID)

	ctx.JSON(http.StatusOK, CommentResponse{
		ID:        comment.ID,
		TaskID:    comment.TaskID,
		AuthorID:  comment.AuthorID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	})
}

// DeleteComment allows the author, or anyone with task-modify rights in the
// project.
func DeleteComment(ctx *gin.Context) {
	userID, projectID, taskID, ok := commentScope(ctx)

	if !ok {
		return
	}

	comment, ok := findTaskComment(ctx, taskID)

	if !ok {
		return
	}

	if comment.AuthorID != userID {
		canModify, err := permissions.NewEvaluator(db.DB).CanModifyTasks(userID, projectID)

		if err != nil {
			log.Printf("Failed to evaluate task permission: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if !canModify {
			ctx.JSON(http.StatusForbidden, gin.H{"error": "You cannot delete this comment"})
			return
		}
	}

	if err := db.DB.Delete(&comment).Error; err != nil {
		log.Printf("Failed to delete comment: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}

	BroadcastProjectEvent(projectID, "comment_deleted", taskID)

	ctx.Status(http.StatusNoContent)
}
