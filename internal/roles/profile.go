package roles

import (
	"strings"
	"time"
)

// Role is the authorization role stored for an identity.
type Role string

// RoleAdmin is the only role admitted to identity administration.
const RoleAdmin Role = "admin"

// Profile records the trusted role for a provider identity.
type Profile struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	Role      string    `gorm:"column:role;size:64;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing role profiles.
func (Profile) TableName() string {
	return "profiles"
}

// ParseRole normalizes a stored or configured role name.
func ParseRole(value string) Role {
	return Role(strings.ToLower(strings.TrimSpace(value)))
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
