package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/directory"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNothingSelected   = errors.New("no accounts selected")
	ErrOwnAccountChosen  = errors.New("you cannot delete your own admin account")
	ErrMissingOperatorID = errors.New("operator id is required")
	ErrMissingAPI        = errors.New("management api is required")
)

// API is the management endpoint as seen by the workflow.
type API interface {
	List(ctx context.Context) ([]directory.Account, error)
	Delete(ctx context.Context, targetIDs []string) (Summary, error)
}

// Workflow keeps the operator's listing and selection in step with the endpoint.
type Workflow struct {
	api        API
	operatorID string
	selection  *Selection
	accounts   []directory.Account
}

func NewWorkflow(api API, operatorID string) (*Workflow, error) {
	if api == nil {
		return nil, ErrMissingAPI
	}
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return nil, ErrMissingOperatorID
	}
	return &Workflow{api: api, operatorID: operatorID, selection: NewSelection()}, nil
}

// Refresh replaces the listing with the endpoint's current view.
func (w *Workflow) Refresh(ctx context.Context) ([]directory.Account, error) {
	listed, err := w.api.List(ctx)
	if err != nil {
		return nil, err
	}
	w.accounts = listed
	return w.Accounts(), nil
}

func (w *Workflow) Accounts() []directory.Account {
	return append([]directory.Account(nil), w.accounts...)
}

func (w *Workflow) Selection() *Selection {
	return w.selection
}

// SelectAll selects every account in the current listing.
func (w *Workflow) SelectAll() {
	ids := make([]string, 0, len(w.accounts))
	for _, account := range w.accounts {
		ids = append(ids, account.ID)
	}
	w.selection.SelectAll(ids)
}

// SelectOthers selects every listed account except the operator's own.
func (w *Workflow) SelectOthers() {
	ids := make([]string, 0, len(w.accounts))
	for _, account := range w.accounts {
		if account.ID == w.operatorID {
			continue
		}
		ids = append(ids, account.ID)
	}
	w.selection.SelectAll(ids)
}

// DeleteSelected submits the selection unless it names the operator. On
// success the selection is cleared and the listing fetched again. A failed
// re-fetch is returned alongside the summary of the completed batch.
func (w *Workflow) DeleteSelected(ctx context.Context) (Summary, error) {
	if w.selection.Len() == 0 {
		return Summary{}, ErrNothingSelected
	}
	if w.selection.Contains(w.operatorID) {
		return Summary{}, ErrOwnAccountChosen
	}

	summary, err := w.api.Delete(ctx, w.selection.IDs())
	if err != nil {
		return Summary{}, err
	}
	w.selection.Clear()
	if _, err := w.Refresh(ctx); err != nil {
		return summary, fmt.Errorf("refresh after delete: %w", err)
	}
	return summary, nil
}

// CallerIDFromToken reads the subject of an access token without verifying
// it. The result only drives the own-account guard; the endpoint does the
// real verification.
func CallerIDFromToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return "", fmt.Errorf("read token subject: %w", err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrMissingOperatorID
	}
	return subject, nil
}
