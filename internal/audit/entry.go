package audit

import "time"

// Outcome labels a processed deletion target.
type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	OutcomeFailed  Outcome = "failed"
)

// Entry is one processed target of a bulk deletion.
type Entry struct {
	ID        string    `gorm:"column:id;primaryKey;size:64;not null"`
	RequestID string    `gorm:"column:request_id;size:64;index"`
	ActorID   string    `gorm:"column:actor_id;size:190;not null;index"`
	TargetID  string    `gorm:"column:target_id;size:190;not null;index"`
	Outcome   Outcome   `gorm:"column:outcome;size:16;not null"`
	Reason    string    `gorm:"column:reason;size:1024"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

// TableName exposes the table backing the deletion journal.
func (Entry) TableName() string {
	return "identity_deletion_journal"
}
