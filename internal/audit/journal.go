package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultRecentLimit = 50

var errMissingDatabase = errors.New("audit: database connection required")

// Record is the caller-facing shape of a journal write.
type Record struct {
	RequestID string
	ActorID   string
	TargetID  string
	Outcome   Outcome
	Reason    string
}

// JournalConfig describes the dependencies of the journal.
type JournalConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Journal persists deletion outcomes.
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

// NewJournal constructs a journal backed by the provided database.
func NewJournal(cfg JournalConfig) (*Journal, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Journal{db: cfg.Database, now: clock}, nil
}

// Append writes all records in one transaction.
func (j *Journal) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	createdAt := j.now().UTC()
	entries := make([]Entry, 0, len(records))
	for _, record := range records {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("audit: entry id: %w", err)
		}
		entries = append(entries, Entry{
			ID:        id.String(),
			RequestID: record.RequestID,
			ActorID:   record.ActorID,
			TargetID:  record.TargetID,
			Outcome:   record.Outcome,
			Reason:    record.Reason,
			CreatedAt: createdAt,
		})
	}
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&entries).Error
	})
}

// Recent returns the newest entries first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	var entries []Entry
	err := j.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).
		Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
