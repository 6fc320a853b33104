// Package permissions answers "can this user perform this operation on this
// project" against the membership/ownership graph. Every check is a fresh
// read-only query; denial is a return value, never an error. Errors are
// reserved for storage failures.
package permissions

import (
	"errors"

	"github.com/taskgrid-dev/taskgrid/internal/models"
	"gorm.io/gorm"
)

type Evaluator struct {
	db *gorm.DB
}

func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db}
}

// projectOwnerID resolves a project's owner. A nonexistent project reports
// found == false rather than an error so predicates can fail closed.
func (e *Evaluator) projectOwnerID(projectID uint) (uint, bool, error) {
	var row struct{ OwnerID uint }

	err := e.db.Model(&models.Project{}).
		Select("owner_id").
		Where("id = ?", projectID).
		Take(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}

	if err != nil {
		return 0, false, err
	}

	return row.OwnerID, true, nil
}

// membershipRole is a single indexed lookup on (user_id, project_id).
func (e *Evaluator) membershipRole(userID, projectID uint) (string, bool, error) {
	var row struct{ Role string }

	err := e.db.Model(&models.ProjectMembership{}).
		Select("role").
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Take(&row).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return row.Role, true, nil
}

func (e *Evaluator) IsProjectOwner(userID, projectID uint) (bool, error) {
	ownerID, found, err := e.projectOwnerID(projectID)

	if err != nil || !found {
		return false, err
	}

	return ownerID == userID, nil
}

// IsProjectAdmin is true only for an explicit admin membership row. The
// owner does not satisfy this predicate; ownership is a distinct higher tier.
func (e *Evaluator) IsProjectAdmin(userID, projectID uint) (bool, error) {
	role, found, err := e.membershipRole(userID, projectID)

	if err != nil || !found {
		return false, err
	}

	return role == models.RoleAdmin, nil
}

func (e *Evaluator) HasProjectAccess(userID, projectID uint) (bool, error) {
	owner, err := e.IsProjectOwner(userID, projectID)

	if err != nil || owner {
		return owner, err
	}

	_, found, err := e.membershipRole(userID, projectID)

	if err != nil {
		return false, err
	}

	return found, nil
}

func (e *Evaluator) CanModifyProject(userID, projectID uint) (bool, error) {
	owner, err := e.IsProjectOwner(userID, projectID)

	if err != nil || owner {
		return owner, err
	}

	return e.IsProjectAdmin(userID, projectID)
}

func (e *Evaluator) CanDeleteProject(userID, projectID uint) (bool, error) {
	return e.IsProjectOwner(userID, projectID)
}

func (e *Evaluator) CanCreateTasks(userID, projectID uint) (bool, error) {
	return e.HasProjectAccess(userID, projectID)
}

// CanModifyTasks grants any project member mutation rights over any task in
// the project, not just the creator or an assignee.
func (e *Evaluator) CanModifyTasks(userID, projectID uint) (bool, error) {
	return e.HasProjectAccess(userID, projectID)
}

// ProjectRole resolves the user's effective role. Ownership wins over any
// membership row that might also exist; no relation yields the empty string.
func (e *Evaluator) ProjectRole(userID, projectID uint) (string, error) {
	ownerID, found, err := e.projectOwnerID(projectID)

	if err != nil {
		return "", err
	}

	if found && ownerID == userID {
		return models.RoleOwner, nil
	}

	role, _, err := e.membershipRole(userID, projectID)

	if err != nil {
		return "", err
	}

	return role, nil
}
