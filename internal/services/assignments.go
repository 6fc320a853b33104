package services

import (
	"fmt"

	"github.com/taskgrid-dev/taskgrid/internal/models"
	"gorm.io/gorm"
)

// ErrInvalidAssignees reports proposed assignee ids that are neither project
// members nor the owner. The whole assignment update is rejected when any id
// is invalid; there is no partial application.
type ErrInvalidAssignees struct {
	UserIDs []uint
}

func (e *ErrInvalidAssignees) Error() string {
	return fmt.Sprintf("users %v are not members of the project", e.UserIDs)
}

// ValidateAssignees checks that every proposed assignee belongs to the
// project (explicit membership or ownership) and returns the deduplicated
// set. Returns *ErrInvalidAssignees if any id has no relation to the project.
func ValidateAssignees(tx *gorm.DB, projectID uint, userIDs []uint) ([]uint, error) {
	deduped := make([]uint, 0, len(userIDs))
	seen := make(map[uint]bool, len(userIDs))

	for _, id := range userIDs {
		if !seen[id] {
			seen[id] = true
			deduped = append(deduped, id)
		}
	}

	if len(deduped) == 0 {
		return deduped, nil
	}

	var project struct{ OwnerID uint }

	if err := tx.Model(&models.Project{}).Select("owner_id").Where("id = ?", projectID).Take(&project).Error; err != nil {
		return nil, err
	}

	var memberIDs []uint

	if err := tx.Model(&models.ProjectMembership{}).
		Where("project_id = ? AND user_id IN ?", projectID, deduped).
		Pluck("user_id", &memberIDs).Error; err != nil {
		return nil, err
	}

	eligible := make(map[uint]bool, len(memberIDs)+1)
	eligible[project.OwnerID] = true

	for _, id := range memberIDs {
		eligible[id] = true
	}

	var invalid []uint

	for _, id := range deduped {
		if !eligible[id] {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return nil, &ErrInvalidAssignees{UserIDs: invalid}
	}

	return deduped, nil
}

// SyncAssignments replaces a task's persisted assignee set with the declared
// set: rows absent from the new set are deleted, missing rows are inserted,
// and the intersection is left untouched. Callers must run it inside a
// transaction so readers never observe a half-applied set.
func SyncAssignments(tx *gorm.DB, taskID uint, userIDs []uint) error {
	var existing []uint

	if err := tx.Model(&models.TaskAssignment{}).
		Where("task_id = ?", taskID).
		Pluck("user_id", &existing).Error; err != nil {
		return err
	}

	declared := make(map[uint]bool, len(userIDs))

	for _, id := range userIDs {
		declared[id] = true
	}

	current := make(map[uint]bool, len(existing))

	var removed []uint

	for _, id := range existing {
		current[id] = true

		if !declared[id] {
			removed = append(removed, id)
		}
	}

	if len(removed) > 0 {
		// Hard delete so the (task_id, user_id) unique index can accept a
		// future re-assignment of the same user.
		if err := tx.Unscoped().
			Where("task_id = ? AND user_id IN ?", taskID, removed).
			Delete(&models.TaskAssignment{}).Error; err != nil {
			return err
		}
	}

	var added []models.TaskAssignment

	for _, id := range userIDs {
		if !current[id] {
			added = append(added, models.TaskAssignment{TaskID: taskID, UserID: id})
		}
	}

	if len(added) > 0 {
		if err := tx.Create(&added).Error; err != nil {
			return err
		}
	}

	return nil
}
