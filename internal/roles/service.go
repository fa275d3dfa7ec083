package roles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrInsufficientPermissions indicates the caller has no admin profile.
	ErrInsufficientPermissions = errors.New("roles: insufficient permissions")
	// ErrProfileNotFound indicates no profile row exists for the identity.
	ErrProfileNotFound = errors.New("roles: profile not found")
	// ErrInvalidProfile indicates an empty identity or role was supplied.
	ErrInvalidProfile = errors.New("roles: invalid profile")
	// ErrProfileStore indicates the profile store could not be read.
	ErrProfileStore = errors.New("roles: profile store unavailable")
)

// ServiceConfig describes the dependencies required for role resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service reads roles from the trusted profile store. The store is reached with
// the server's own database handle, never with anything the caller supplied.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the role service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("roles: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// ResolveRole returns the caller's role when it is admin. A missing profile, a
// non-admin role and a store fault all fail with ErrInsufficientPermissions; the
// wrapped cause tells them apart for logging.
func (s *Service) ResolveRole(ctx context.Context, callerID string) (Role, error) {
	id := normalize(callerID)
	if id == "" {
		return "", fmt.Errorf("%w: %w", ErrInsufficientPermissions, ErrInvalidProfile)
	}

	var profile Profile
	err := s.db.WithContext(ctx).
		Select("id", "role").
		Where("id = ?", id).
		Take(&profile).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %w", ErrInsufficientPermissions, ErrProfileNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w: %w", ErrInsufficientPermissions, ErrProfileStore, err)
	}

	role := ParseRole(profile.Role)
	if role != RoleAdmin {
		return role, fmt.Errorf("%w: role %q", ErrInsufficientPermissions, role)
	}
	return role, nil
}

// AssignRole creates or updates the profile for the identity.
func (s *Service) AssignRole(ctx context.Context, identityID string, role Role) error {
	id := normalize(identityID)
	normalized := ParseRole(string(role))
	if id == "" || normalized == "" {
		return ErrInvalidProfile
	}

	var existing Profile
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(&Profile{
			ID:        id,
			Role:      string(normalized),
			CreatedAt: s.now(),
			UpdatedAt: s.now(),
		}).Error
	}
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&Profile{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"role": string(normalized), "updated_at": s.now()}).
		Error
}
