package models

import "gorm.io/gorm"

// Project roles. Owner is computed from projects.owner_id and is never
// written to the memberships table; only RoleAdmin and RoleContributor are
// valid membership rows.
const (
	RoleOwner       = "owner"
	RoleAdmin       = "admin"
	RoleContributor = "contributor"
)

func IsMembershipRole(role string) bool {
	return role == RoleAdmin || role == RoleContributor
}

type ProjectMembership struct {
	gorm.Model

	UserID    uint   `gorm:"not null;uniqueIndex:idx_user_project"`
	ProjectID uint   `gorm:"not null;uniqueIndex:idx_user_project"`
	Role      string `gorm:"not null"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Project Project `gorm:"foreignKey:ProjectID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
