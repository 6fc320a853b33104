package services

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/taskgrid-dev/taskgrid/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})

	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMembership{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.Comment{},
	)

	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

type fixture struct {
	db       *gorm.DB
	owner    models.User
	memberA  models.User
	memberB  models.User
	memberC  models.User
	stranger models.User
	project  models.Project
	task     models.Task
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := openTestDB(t)

	f := &fixture{db: db}

	f.owner = models.User{Name: "Owner", Email: "owner@example.com", PasswordHash: "x"}
	f.memberA = models.User{Name: "A", Email: "a@example.com", PasswordHash: "x"}
	f.memberB = models.User{Name: "B", Email: "b@example.com", PasswordHash: "x"}
	f.memberC = models.User{Name: "C", Email: "c@example.com", PasswordHash: "x"}
	f.stranger = models.User{Name: "Stranger", Email: "stranger@example.com", PasswordHash: "x"}

	for _, u := range []*models.User{&f.owner, &f.memberA, &f.memberB, &f.memberC, &f.stranger} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	f.project = models.Project{Name: "Apollo", OwnerID: f.owner.ID}

	if err := db.Create(&f.project).Error; err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	memberships := []models.ProjectMembership{
		{UserID: f.memberA.ID, ProjectID: f.project.ID, Role: models.RoleContributor},
		{UserID: f.memberB.ID, ProjectID: f.project.ID, Role: models.RoleContributor},
		{UserID: f.memberC.ID, ProjectID: f.project.ID, Role: models.RoleAdmin},
	}

	if err := db.Create(&memberships).Error; err != nil {
		t.Fatalf("failed to create memberships: %v", err)
	}

	f.task = models.Task{
		ProjectID: f.project.ID,
		Title:     "Ship it",
		Status:    models.TaskStatusTodo,
		Priority:  models.TaskPriorityMedium,
		CreatorID: f.owner.ID,
	}

	if err := db.Create(&f.task).Error; err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	return f
}

func (f *fixture) assigneeIDs(t *testing.T) []uint {
	t.Helper()

	var ids []uint

	if err := f.db.Model(&models.TaskAssignment{}).
		Where("task_id = ?", f.task.ID).
		Pluck("user_id", &ids).Error; err != nil {
		t.Fatalf("failed to read assignments: %v", err)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fixture) sync(t *testing.T, userIDs []uint) {
	t.Helper()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		return SyncAssignments(tx, f.task.ID, userIDs)
	})

	if err != nil {
		t.Fatalf("SyncAssignments failed: %v", err)
	}
}

func equalIDs(a, b []uint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSyncReplacesSet(t *testing.T) {
	f := newFixture(t)

	f.sync(t, []uint{f.memberA.ID, f.memberB.ID})

	want := []uint{f.memberA.ID, f.memberB.ID}
	if got := f.assigneeIDs(t); !equalIDs(got, want) {
		t.Fatalf("assignees = %v, want %v", got, want)
	}

	// {A,B} -> {B,C}: A's row deleted, C's inserted, B's untouched.
	var before models.TaskAssignment
	if err := f.db.Where("task_id = ? AND user_id = ?", f.task.ID, f.memberB.ID).First(&before).Error; err != nil {
		t.Fatalf("failed to read B's assignment: %v", err)
	}

	f.sync(t, []uint{f.memberB.ID, f.memberC.ID})

	want = []uint{f.memberB.ID, f.memberC.ID}
	if got := f.assigneeIDs(t); !equalIDs(got, want) {
		t.Fatalf("assignees = %v, want %v", got, want)
	}

	var after models.TaskAssignment
	if err := f.db.Where("task_id = ? AND user_id = ?", f.task.ID, f.memberB.ID).First(&after).Error; err != nil {
		t.Fatalf("failed to read B's assignment: %v", err)
	}

	if before.ID != after.ID {
		t.Errorf("B's unchanged row was recreated: id %d -> %d", before.ID, after.ID)
	}
}

func TestSyncEmptySetClearsAll(t *testing.T) {
	f := newFixture(t)

	f.sync(t, []uint{f.memberA.ID, f.memberB.ID})
	f.sync(t, nil)

	if got := f.assigneeIDs(t); len(got) != 0 {
		t.Fatalf("assignees = %v, want none", got)
	}
}

func TestSyncRollbackLeavesPriorSet(t *testing.T) {
	f := newFixture(t)

	f.sync(t, []uint{f.memberA.ID, f.memberB.ID})

	boom := errors.New("boom")

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := SyncAssignments(tx, f.task.ID, []uint{f.memberB.ID, f.memberC.ID}); err != nil {
			return err
		}
		// Simulated failure after the reconcile wrote its rows.
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("transaction error = %v, want %v", err, boom)
	}

	want := []uint{f.memberA.ID, f.memberB.ID}
	if got := f.assigneeIDs(t); !equalIDs(got, want) {
		t.Fatalf("assignees after rollback = %v, want %v", got, want)
	}
}

func TestValidateAssigneesRejectsStrangers(t *testing.T) {
	f := newFixture(t)

	_, err := ValidateAssignees(f.db, f.project.ID, []uint{f.memberA.ID, f.stranger.ID})

	var invalid *ErrInvalidAssignees

	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *ErrInvalidAssignees", err)
	}

	if !equalIDs(invalid.UserIDs, []uint{f.stranger.ID}) {
		t.Errorf("invalid ids = %v, want [%d]", invalid.UserIDs, f.stranger.ID)
	}
}

func TestValidateAssigneesAcceptsOwner(t *testing.T) {
	f := newFixture(t)

	got, err := ValidateAssignees(f.db, f.project.ID, []uint{f.owner.ID, f.memberA.ID})

	if err != nil {
		t.Fatalf("ValidateAssignees failed: %v", err)
	}

	if !equalIDs(got, []uint{f.owner.ID, f.memberA.ID}) {
		t.Errorf("valid ids = %v, want owner and member", got)
	}
}

func TestValidateAssigneesDeduplicates(t *testing.T) {
	f := newFixture(t)

	got, err := ValidateAssignees(f.db, f.project.ID, []uint{f.memberA.ID, f.memberA.ID, f.memberB.ID})

	if err != nil {
		t.Fatalf("ValidateAssignees failed: %v", err)
	}

	if !equalIDs(got, []uint{f.memberA.ID, f.memberB.ID}) {
		t.Errorf("deduped ids = %v, want [%d %d]", got, f.memberA.ID, f.memberB.ID)
	}
}

func TestInvalidAssigneeRejectsWholeUpdate(t *testing.T) {
	f := newFixture(t)

	f.sync(t, []uint{f.memberA.ID, f.memberB.ID})

	err := f.db.Transaction(func(tx *gorm.DB) error {
		assignees, err := ValidateAssignees(tx, f.project.ID, []uint{f.memberC.ID, f.stranger.ID})
		if err != nil {
			return err
		}
		return SyncAssignments(tx, f.task.ID, assignees)
	})

	var invalid *ErrInvalidAssignees

	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want *ErrInvalidAssignees", err)
	}

	want := []uint{f.memberA.ID, f.memberB.ID}
	if got := f.assigneeIDs(t); !equalIDs(got, want) {
		t.Fatalf("assignees after rejected update = %v, want %v", got, want)
	}
}
