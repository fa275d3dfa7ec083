package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/access"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/accounts"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/auth"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/directory"
	"github.com/MarcoPoloResearchLab/dormdesk/internal/roles"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	adminToken   = "admin-token"
	staffToken   = "staff-token"
	adminID      = "admin-1"
	staffID      = "staff-1"
	testRoute    = DefaultRoute
	jsonMimeType = "application/json"
)

type stubVerifier struct {
	mu      sync.Mutex
	callers map[string]auth.Caller
	calls   int
}

func (s *stubVerifier) Verify(_ context.Context, token string) (auth.Caller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	caller, ok := s.callers[token]
	if !ok {
		return auth.Caller{}, auth.ErrInvalidToken
	}
	return caller, nil
}

type stubResolver struct {
	roles map[string]roles.Role
}

func (s *stubResolver) ResolveRole(_ context.Context, callerID string) (roles.Role, error) {
	role, ok := s.roles[callerID]
	if !ok {
		return "", roles.ErrInsufficientPermissions
	}
	if role != roles.RoleAdmin {
		return role, roles.ErrInsufficientPermissions
	}
	return role, nil
}

type fakeDirectory struct {
	mu        sync.Mutex
	accounts  []directory.Account
	rejected  map[string]bool
	listErr   error
	panicMsg  string
	listCalls int
	deletes   []string
}

func (f *fakeDirectory) List(_ context.Context, pageSize int) ([]directory.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	listed := append([]directory.Account(nil), f.accounts...)
	if len(listed) > pageSize {
		listed = listed[:pageSize]
	}
	return listed, nil
}

func (f *fakeDirectory) DeleteOne(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, accountID)
	if f.rejected[accountID] {
		return &directory.UpstreamError{AccountID: accountID, StatusCode: http.StatusInternalServerError, Message: "refused"}
	}
	for index, account := range f.accounts {
		if account.ID == accountID {
			f.accounts = append(f.accounts[:index], f.accounts[index+1:]...)
			return nil
		}
	}
	return &directory.UpstreamError{AccountID: accountID, StatusCode: http.StatusNotFound, Message: "User not found"}
}

func (f *fakeDirectory) providerCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls + len(f.deletes)
}

type testHarness struct {
	handler   http.Handler
	verifier  *stubVerifier
	directory *fakeDirectory
}

func newTestHarness(t *testing.T, accountIDs ...string) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeDirectory{rejected: map[string]bool{}}
	for _, id := range accountIDs {
		fake.accounts = append(fake.accounts, directory.Account{ID: id, Email: stringPointer(id + "@example.com"), CreatedAt: created})
	}

	verifier := &stubVerifier{callers: map[string]auth.Caller{
		adminToken: {ID: adminID, Email: "warden@example.com"},
		staffToken: {ID: staffID, Email: "staff@example.com"},
	}}
	resolver := &stubResolver{roles: map[string]roles.Role{adminID: roles.RoleAdmin, staffID: "staff"}}
	gate, err := access.NewGate(verifier, resolver)
	if err != nil {
		t.Fatalf("failed to build gate: %v", err)
	}
	deleter, err := accounts.NewDeleter(accounts.DeleterConfig{Directory: fake, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build deleter: %v", err)
	}
	handler, err := NewHTTPHandler(Dependencies{
		Gate:      gate,
		Directory: fake,
		Deleter:   deleter,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testHarness{handler: handler, verifier: verifier, directory: fake}
}

func (h *testHarness) do(method, token, body string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, testRoute, http.NoBody)
	} else {
		request = httptest.NewRequest(method, testRoute, strings.NewReader(body))
		request.Header.Set("Content-Type", jsonMimeType)
	}
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error string `json:"error"`
	}
	decodeBody(t, recorder, &payload)
	return payload.Error
}

var errListingFailed = errors.New("provider listing failed: status 503")

func stringPointer(value string) *string {
	return &value
}
