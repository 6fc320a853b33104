package permissions

import (
	"path/filepath"
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
	db          *gorm.DB
	eval        *Evaluator
	owner       models.User
	admin       models.User
	contributor models.User
	stranger    models.User
	project     models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := openTestDB(t)

	f := &fixture{db: db, eval: NewEvaluator(db)}

	f.owner = models.User{Name: "Owner", Email: "owner@example.com", PasswordHash: "x"}
	f.admin = models.User{Name: "Admin", Email: "admin@example.com", PasswordHash: "x"}
	f.contributor = models.User{Name: "Contributor", Email: "contributor@example.com", PasswordHash: "x"}
	f.stranger = models.User{Name: "Stranger", Email: "stranger@example.com", PasswordHash: "x"}

	for _, u := range []*models.User{&f.owner, &f.admin, &f.contributor, &f.stranger} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	}

	f.project = models.Project{Name: "Apollo", OwnerID: f.owner.ID}

	if err := db.Create(&f.project).Error; err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	memberships := []models.ProjectMembership{
		{UserID: f.admin.ID, ProjectID: f.project.ID, Role: models.RoleAdmin},
		{UserID: f.contributor.ID, ProjectID: f.project.ID, Role: models.RoleContributor},
	}

	if err := db.Create(&memberships).Error; err != nil {
		t.Fatalf("failed to create memberships: %v", err)
	}

	return f
}

func mustBool(t *testing.T, got bool, err error, want bool, name string) {
	t.Helper()

	if err != nil {
		t.Fatalf("%s returned error: %v", name, err)
	}

	if got != want {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestOwnerPredicates(t *testing.T) {
	f := newFixture(t)

	access, err := f.eval.HasProjectAccess(f.owner.ID, f.project.ID)
	mustBool(t, access, err, true, "HasProjectAccess(owner)")

	modify, err := f.eval.CanModifyProject(f.owner.ID, f.project.ID)
	mustBool(t, modify, err, true, "CanModifyProject(owner)")

	del, err := f.eval.CanDeleteProject(f.owner.ID, f.project.ID)
	mustBool(t, del, err, true, "CanDeleteProject(owner)")

	create, err := f.eval.CanCreateTasks(f.owner.ID, f.project.ID)
	mustBool(t, create, err, true, "CanCreateTasks(owner)")

	tasks, err := f.eval.CanModifyTasks(f.owner.ID, f.project.ID)
	mustBool(t, tasks, err, true, "CanModifyTasks(owner)")

	role, err := f.eval.ProjectRole(f.owner.ID, f.project.ID)
	if err != nil {
		t.Fatalf("ProjectRole(owner) returned error: %v", err)
	}
	if role != models.RoleOwner {
		t.Errorf("ProjectRole(owner) = %q, want %q", role, models.RoleOwner)
	}
}

func TestOwnerIsNotAdmin(t *testing.T) {
	f := newFixture(t)

	// Ownership is a distinct tier above admin, not a superset of it.
	admin, err := f.eval.IsProjectAdmin(f.owner.ID, f.project.ID)
	mustBool(t, admin, err, false, "IsProjectAdmin(owner)")
}

func TestAdminPredicates(t *testing.T) {
	f := newFixture(t)

	admin, err := f.eval.IsProjectAdmin(f.admin.ID, f.project.ID)
	mustBool(t, admin, err, true, "IsProjectAdmin(admin)")

	modify, err := f.eval.CanModifyProject(f.admin.ID, f.project.ID)
	mustBool(t, modify, err, true, "CanModifyProject(admin)")

	del, err := f.eval.CanDeleteProject(f.admin.ID, f.project.ID)
	mustBool(t, del, err, false, "CanDeleteProject(admin)")

	owner, err := f.eval.IsProjectOwner(f.admin.ID, f.project.ID)
	mustBool(t, owner, err, false, "IsProjectOwner(admin)")

	role, err := f.eval.ProjectRole(f.admin.ID, f.project.ID)
	if err != nil {
		t.Fatalf("ProjectRole(admin) returned error: %v", err)
	}
	if role != models.RoleAdmin {
		t.Errorf("ProjectRole(admin) = %q, want %q", role, models.RoleAdmin)
	}
}

func TestContributorPredicates(t *testing.T) {
	f := newFixture(t)

	access, err := f.eval.HasProjectAccess(f.contributor.ID, f.project.ID)
	mustBool(t, access, err, true, "HasProjectAccess(contributor)")

	modify, err := f.eval.CanModifyProject(f.contributor.ID, f.project.ID)
	mustBool(t, modify, err, false, "CanModifyProject(contributor)")

	del, err := f.eval.CanDeleteProject(f.contributor.ID, f.project.ID)
	mustBool(t, del, err, false, "CanDeleteProject(contributor)")

	create, err := f.eval.CanCreateTasks(f.contributor.ID, f.project.ID)
	mustBool(t, create, err, true, "CanCreateTasks(contributor)")

	tasks, err := f.eval.CanModifyTasks(f.contributor.ID, f.project.ID)
	mustBool(t, tasks, err, true, "CanModifyTasks(contributor)")

	role, err := f.eval.ProjectRole(f.contributor.ID, f.project.ID)
	if err != nil {
		t.Fatalf("ProjectRole(contributor) returned error: %v", err)
	}
	if role != models.RoleContributor {
		t.Errorf("ProjectRole(contributor) = %q, want %q", role, models.RoleContributor)
	}
}

func TestNoRelation(t *testing.T) {
	f := newFixture(t)

	access, err := f.eval.HasProjectAccess(f.stranger.ID, f.project.ID)
	mustBool(t, access, err, false, "HasProjectAccess(stranger)")

	owner, err := f.eval.IsProjectOwner(f.stranger.ID, f.project.ID)
	mustBool(t, owner, err, false, "IsProjectOwner(stranger)")

	admin, err := f.eval.IsProjectAdmin(f.stranger.ID, f.project.ID)
	mustBool(t, admin, err, false, "IsProjectAdmin(stranger)")

	modify, err := f.eval.CanModifyProject(f.stranger.ID, f.project.ID)
	mustBool(t, modify, err, false, "CanModifyProject(stranger)")

	del, err := f.eval.CanDeleteProject(f.stranger.ID, f.project.ID)
	mustBool(t, del, err, false, "CanDeleteProject(stranger)")

	create, err := f.eval.CanCreateTasks(f.stranger.ID, f.project.ID)
	mustBool(t, create, err, false, "CanCreateTasks(stranger)")

	tasks, err := f.eval.CanModifyTasks(f.stranger.ID, f.project.ID)
	mustBool(t, tasks, err, false, "CanModifyTasks(stranger)")

	role, err := f.eval.ProjectRole(f.stranger.ID, f.project.ID)
	if err != nil {
		t.Fatalf("ProjectRole(stranger) returned error: %v", err)
	}
	if role != "" {
		t.Errorf("ProjectRole(stranger) = %q, want empty", role)
	}
}

func TestNonexistentProject(t *testing.T) {
	f := newFixture(t)

	const missing = 9999

	access, err := f.eval.HasProjectAccess(f.owner.ID, missing)
	mustBool(t, access, err, false, "HasProjectAccess(missing project)")

	owner, err := f.eval.IsProjectOwner(f.owner.ID, missing)
	mustBool(t, owner, err, false, "IsProjectOwner(missing project)")

	modify, err := f.eval.CanModifyProject(f.owner.ID, missing)
	mustBool(t, modify, err, false, "CanModifyProject(missing project)")

	role, err := f.eval.ProjectRole(f.owner.ID, missing)
	if err != nil {
		t.Fatalf("ProjectRole(missing project) returned error: %v", err)
	}
	if role != "" {
		t.Errorf("ProjectRole(missing project) = %q, want empty", role)
	}
}

func TestOwnerRolePrecedence(t *testing.T) {
	f := newFixture(t)

	// A stray membership row for the owner must not shadow ownership.
	stray := models.ProjectMembership{
		UserID:    f.owner.ID,
		ProjectID: f.project.ID,
		Role:      models.RoleContributor,
	}

	if err := f.db.Create(&stray).Error; err != nil {
		t.Fatalf("failed to create stray membership: %v", err)
	}

	role, err := f.eval.ProjectRole(f.owner.ID, f.project.ID)
	if err != nil {
		t.Fatalf("ProjectRole returned error: %v", err)
	}
	if role != models.RoleOwner {
		t.Errorf("ProjectRole = %q, want %q", role, models.RoleOwner)
	}
}
