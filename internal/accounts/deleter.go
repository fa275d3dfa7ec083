package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/audit"
	"go.uber.org/zap"
)

var (
	// ErrValidation marks a request rejected before any provider call.
	ErrValidation   = errors.New("accounts: invalid bulk delete request")
	ErrNoTargets    = fmt.Errorf("%w: target ids required", ErrValidation)
	ErrBlankTarget  = fmt.Errorf("%w: target ids must be non-empty strings", ErrValidation)
	ErrSelfDeletion = fmt.Errorf("%w: caller cannot delete their own account", ErrValidation)

	errMissingDirectory = errors.New("accounts: directory dependency required")
)

// Directory removes accounts one at a time.
type Directory interface {
	DeleteOne(ctx context.Context, accountID string) error
}

// Journal records processed targets.
type Journal interface {
	Append(ctx context.Context, records []audit.Record) error
}

// Request is a validated-on-entry bulk deletion.
type Request struct {
	RequestID string
	CallerID  string
	TargetIDs []string
}

// Outcome is the per-target result in processing order.
type Outcome struct {
	TargetID string
	Err      error
}

// Result aggregates a completed batch. Every distinct target lands in exactly
// one of Deleted or Failed.
type Result struct {
	Deleted  []string
	Failed   []string
	Outcomes []Outcome
}

// DeleterConfig describes the dependencies of the orchestrator.
type DeleterConfig struct {
	Directory Directory
	Strategy  Strategy
	Journal   Journal
	Logger    *zap.Logger
}

// Deleter drives best-effort bulk deletion against the directory.
type Deleter struct {
	directory Directory
	strategy  Strategy
	journal   Journal
	logger    *zap.Logger
}

// NewDeleter constructs the orchestrator. A nil strategy means sequential.
func NewDeleter(cfg DeleterConfig) (*Deleter, error) {
	if cfg.Directory == nil {
		return nil, errMissingDirectory
	}
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = Sequential{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deleter{
		directory: cfg.Directory,
		strategy:  strategy,
		journal:   cfg.Journal,
		logger:    logger,
	}, nil
}

// DeleteMany removes every distinct target, never stopping on an individual
// failure and never retrying. Once validation passes the batch runs to
// completion even if ctx is cancelled, since issued deletions cannot be undone.
func (d *Deleter) DeleteMany(ctx context.Context, request Request) (Result, error) {
	targets, err := validateTargets(request)
	if err != nil {
		return Result{}, err
	}

	batchCtx := context.WithoutCancel(ctx)
	errs := d.strategy.Run(batchCtx, targets, d.directory.DeleteOne)

	result := Result{
		Deleted:  make([]string, 0, len(targets)),
		Failed:   make([]string, 0),
		Outcomes: make([]Outcome, 0, len(targets)),
	}
	for index, id := range targets {
		outcome := Outcome{TargetID: id, Err: errs[index]}
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Err != nil {
			result.Failed = append(result.Failed, id)
			d.logger.Warn("account deletion failed",
				zap.String("request_id", request.RequestID),
				zap.String("target_id", id),
				zap.Error(outcome.Err),
			)
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}

	d.record(batchCtx, request, result)
	d.logger.Info("bulk deletion completed",
		zap.String("request_id", request.RequestID),
		zap.String("actor_id", request.CallerID),
		zap.Int("requested", len(request.TargetIDs)),
		zap.Int("deleted", len(result.Deleted)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (d *Deleter) record(ctx context.Context, request Request, result Result) {
	if d.journal == nil {
		return
	}
	records := make([]audit.Record, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		record := audit.Record{
			RequestID: request.RequestID,
			ActorID:   request.CallerID,
			TargetID:  outcome.TargetID,
			Outcome:   audit.OutcomeDeleted,
		}
		if outcome.Err != nil {
			record.Outcome = audit.OutcomeFailed
			record.Reason = outcome.Err.Error()
		}
		records = append(records, record)
	}
	if err := d.journal.Append(ctx, records); err != nil {
		d.logger.Error("failed to journal bulk deletion", zap.String("request_id", request.RequestID), zap.Error(err))
	}
}

// validateTargets deduplicates the ids, keeping first occurrences in order.
// Ids are passed on byte-exact; padding is never stripped because the
// provider would then act on a different identifier than the one reported.
func validateTargets(request Request) ([]string, error) {
	if len(request.TargetIDs) == 0 {
		return nil, ErrNoTargets
	}
	callerID := strings.TrimSpace(request.CallerID)
	for _, raw := range request.TargetIDs {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil, ErrBlankTarget
		}
		if callerID != "" && trimmed == callerID {
			return nil, ErrSelfDeletion
		}
	}
	return Distinct(request.TargetIDs), nil
}

// Distinct returns ids without duplicates, first occurrence wins.
func Distinct(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
