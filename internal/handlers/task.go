package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskgrid-dev/taskgrid/db"
	"github.com/taskgrid-dev/taskgrid/internal/models"
	"github.com/taskgrid-dev/taskgrid/internal/permissions"
	"github.com/taskgrid-dev/taskgrid/internal/services"
	"github.com/taskgrid-dev/taskgrid/internal/utils"
	"github.com/taskgrid-dev/taskgrid/internal/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CreateTaskRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"due_date"`
	Labels      []string `json:"labels"`
	Assignees   []uint   `json:"assignees"`
}

type UpdateTaskRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description *string   `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	DueDate     *string   `json:"due_date"`
	Labels      *[]string `json:"labels"`
	Assignees   *[]uint   `json:"assignees"`
}

type TaskResponse struct {
	ID          uint       `json:"id"`
	ProjectID   uint       `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	CreatorID   uint       `json:"creator_id"`
	Labels      []string   `json:"labels"`
	Assignees   []uint     `json:"assignees"`
	CreatedAt   time.Time  `json:"created_at"`
}

func taskToResponse(task models.Task) TaskResponse {
	var labels []string

	if len(task.Labels) > 0 {
		if err := json.Unmarshal(task.Labels, &labels); err != nil {
			labels = nil
		}
	}

	assignees := make([]uint, 0, len(task.Assignments))

	for _, assignment := range task.Assignments {
		assignees = append(assignees, assignment.UserID)
	}

	return TaskResponse{
		ID:          task.ID,
		ProjectID:   task.ProjectID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		CreatorID:   task.CreatorID,
		Labels:      labels,
		Assignees:   assignees,
		CreatedAt:   task.CreatedAt,
	}
}

// parseDueDate accepts a plain date or a full RFC 3339 timestamp.
func parseDueDate(raw string) (*time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}

	t, err := time.Parse(time.RFC3339, raw)

	if err != nil {
		return nil, errors.New("must be YYYY-MM-DD or RFC 3339")
	}

	return &t, nil
}

func marshalLabels(labels []string) (datatypes.JSON, error) {
	if labels == nil {
		return nil, nil
	}

	raw, err := json.Marshal(labels)

	if err != nil {
		return nil, err
	}

	return datatypes.JSON(raw), nil
}

func assigneeFieldErrors(err error) ([]validation.FieldError, bool) {
	var invalid *services.ErrInvalidAssignees

	if !errors.As(err, &invalid) {
		return nil, false
	}

	return []validation.FieldError{
		{Field: "assignees", Message: invalid.Error()},
	}, true
}

func CreateTask(ctx *gin.Context) {
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

	var body CreateTaskRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBindingError(err)})
		return
	}

	if body.Status == "" {
		body.Status = models.TaskStatusTodo
	}

	if body.Priority == "" {
		body.Priority = models.TaskPriorityMedium
	}

	// Field problems are collected exhaustively, not fail-fast.
	var fieldErrors []validation.FieldError

	if !models.IsTaskStatus(body.Status) {
		fieldErrors = append(fieldErrors, validation.FieldError{
			Field: "status", Message: "Must be one of todo, in_progress, done, cancelled",
		})
	}

	if !models.IsTaskPriority(body.Priority) {
		fieldErrors = append(fieldErrors, validation.FieldError{
			Field: "priority", Message: "Must be one of low, medium, high, urgent",
		})
	}

	var dueDate *time.Time

	if body.DueDate != "" {
		dueDate, err = parseDueDate(body.DueDate)

		if err != nil {
			fieldErrors = append(fieldErrors, validation.FieldError{
				Field: "due_date", Message: err.Error(),
			})
		}
	}

	if len(fieldErrors) > 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	canCreate, err := permissions.NewEvaluator(db.DB).CanCreateTasks(userID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate task permission: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !canCreate {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You cannot create tasks in this project"})
		return
	}

	labels, err := marshalLabels(body.Labels)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": []validation.FieldError{
			{Field: "labels", Message: "Invalid labels"},
		}})
		return
	}

	task := models.Task{
		ProjectID:   projectID,
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
		Priority:    body.Priority,
		DueDate:     dueDate,
		CreatorID:   userID,
		Labels:      labels,
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		assignees, err := services.ValidateAssignees(tx, projectID, body.Assignees)

		if err != nil {
			return err
		}

		if err := tx.Create(&task).Error; err != nil {
			return err
		}

		return services.SyncAssignments(tx, task.ID, assignees)
	})

	if err != nil {
		if fieldErrors, ok := assigneeFieldErrors(err); ok {
			ctx.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
			return
		}

		log.Printf("Failed to create task: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	if err := db.DB.Preload("Assignments").First(&task, task.ID).Error; err != nil {
		log.Printf("Failed to reload task: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	var project models.Project

	if err := db.DB.First(&project, projectID).Error; err == nil {
		creatorName := ""

		if user, err := utils.GetCurrentUser(ctx); err == nil {
			creatorName = user.Name
		}

		go func() {
			if err := services.SendTaskCreatedNotification(project, task, creatorName); err != nil {
				log.Printf("Failed to send task notification: %v", err)
			}
		}()
	}

	BroadcastProjectEvent(projectID, "task_created", task.ID)

	ctx.JSON(http.StatusCreated, taskToResponse(task))
}

func ListTasks(ctx *gin.Context) {
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

	query := db.DB.Preload("Assignments").
		Where("project_id = ?", projectID).
		Order(models.TaskPriorityOrder)

	if status := ctx.Query("status"); status != "" {
		if !models.IsTaskStatus(status) {
			ctx.JSON(http.StatusBadRequest, gin.H{"errors": []validation.FieldError{
				{Field: "status", Message: "Must be one of todo, in_progress, done, cancelled"},
			}})
			return
		}

		query = query.Where("status = ?", status)
	}

	if assignee := ctx.Query("assignee"); assignee != "" {
		assigneeID, err := strconv.ParseUint(assignee, 10, 32)

		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"errors": []validation.FieldError{
				{Field: "assignee", Message: "Must be a user id"},
			}})
			return
		}

		query = query.Where(
			"id IN (?)",
			db.DB.Model(&models.TaskAssignment{}).Select("task_id").Where("user_id = ?", uint(assigneeID)),
		)
	}

	var tasks []models.Task

	if err := query.Find(&tasks).Error; err != nil {
		log.Printf("Failed to list tasks: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tasks"})
		return
	}

	response := make([]TaskResponse, 0, len(tasks))

	for _, task := range tasks {
		response = append(response, taskToResponse(task))
	}

	ctx.JSON(http.StatusOK, response)
}

// findProjectTask loads a task scoped to the project in the URL. A task id
// from another project reports not-found.
func findProjectTask(ctx *gin.Context, projectID, taskID uint) (models.Task, bool) {
	var task models.Task

	err := db.DB.Preload("Assignments").
		Where("id = ? AND project_id = ?", taskID, projectID).
		First(&task).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		} else {
			log.Printf("Failed to retrieve task: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve task"})
		}
		return models.Task{}, false
	}

	return task, true
}

func GetTask(ctx *gin.Context) {
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

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	task, ok := findProjectTask(ctx, projectID, taskID)

	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, taskToResponse(task))
}

func UpdateTask(ctx *gin.Context) {
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

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateTaskRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": validation.FromBindingError(err)})
		return
	}

	var fieldErrors []validation.FieldError

	if body.Status != "" && !models.IsTaskStatus(body.Status) {
		fieldErrors = append(fieldErrors, validation.FieldError{
			Field: "status", Message: "Must be one of todo, in_progress, done, cancelled",
		})
	}

	if body.Priority != "" && !models.IsTaskPriority(body.Priority) {
		fieldErrors = append(fieldErrors, validation.FieldError{
			Field: "priority", Message: "Must be one of low, medium, high, urgent",
		})
	}

	var dueDate *time.Time
	clearDueDate := false

	if body.DueDate != nil {
		if *body.DueDate == "" {
			clearDueDate = true
		} else {
			dueDate, err = parseDueDate(*body.DueDate)

			if err != nil {
				fieldErrors = append(fieldErrors, validation.FieldError{
					Field: "due_date", Message: err.Error(),
				})
			}
		}
	}

	if len(fieldErrors) > 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	canModify, err := permissions.NewEvaluator(db.DB).CanModifyTasks(userID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate task permission: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !canModify {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You cannot modify tasks in this project"})
		return
	}

	task, ok := findProjectTask(ctx, projectID, taskID)

	if !ok {
		return
	}

	wasDone := task.Status == models.TaskStatusDone

	task.Title = body.Title

	if body.Description != nil {
		task.Description = *body.Description
	}

	if body.Status != "" {
		task.Status = body.Status
	}

	if body.Priority != "" {
		task.Priority = body.Priority
	}

	if clearDueDate {
		task.DueDate = nil
	} else if dueDate != nil {
		task.DueDate = dueDate
	}

	if body.Labels != nil {
		labels, err := marshalLabels(*body.Labels)

		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"errors": []validation.FieldError{
				{Field: "labels", Message: "Invalid labels"},
			}})
			return
		}

		task.Labels = labels
	}

	// The task write and the assignee reconcile commit together; a failure
	// anywhere leaves the prior assignee set fully intact.
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if body.Assignees != nil {
			assignees, err := services.ValidateAssignees(tx, projectID, *body.Assignees)

			if err != nil {
				return err
			}

			if err := services.SyncAssignments(tx, task.ID, assignees); err != nil {
				return err
			}
		}

		return tx.Omit("Assignments").Save(&task).Error
	})

	if err != nil {
		if fieldErrors, ok := assigneeFieldErrors(err); ok {
			ctx.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrors})
			return
		}

		log.Printf("Failed to update task: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	if err := db.DB.Preload("Assignments").First(&task, task.ID).Error; err != nil {
		log.Printf("Failed to reload task: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	if !wasDone && task.Status == models.TaskStatusDone {
		var project models.Project

		if err := db.DB.First(&project, projectID).Error; err == nil {
			completed := task

			go func() {
				if err := services.SendTaskCompletedNotification(project, completed); err != nil {
					log.Printf("Failed to send task notification: %v", err)
				}
			}()
		}
	}

	BroadcastProjectEvent(projectID, "task_updated", task.ID)

	ctx.JSON(http.StatusOK, taskToResponse(task))
}

func DeleteTask(ctx *gin.Context) {
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

	taskID, err := utils.GetTaskID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !requireProjectAccess(ctx, userID, projectID) {
		return
	}

	canModify, err := permissions.NewEvaluator(db.DB).CanModifyTasks(userID, projectID)

	if err != nil {
		log.Printf("Failed to evaluate task permission: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if !canModify {
		ctx.JSON(http.StatusForbidden, gin.H{"error": "You cannot modify tasks in this project"})
		return
	}

	task, ok := findProjectTask(ctx, projectID, taskID)

	if !ok {
		return
	}

	if err := db.DB.Delete(&task).Error; err != nil {
		log.Printf("Failed to delete task: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}

	BroadcastProjectEvent(projectID, "task_deleted", taskID)

	ctx.Status(http.StatusNoContent)
}
