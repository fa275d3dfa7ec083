package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const testServiceKey = "service-role-key"

type fakeProvider struct {
	mu       sync.Mutex
	accounts map[string]map[string]any
	order    []string
	deletes  []string
	lastPage string
	bodies   []string
}

func newFakeProvider(t *testing.T) (*fakeProvider, *Client) {
	t.Helper()
	provider := &fakeProvider{accounts: map[string]map[string]any{}}
	server := httptest.NewServer(provider)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{
		BaseURL:           server.URL,
		ServiceKey:        testServiceKey,
		HTTPClient:        server.Client(),
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return provider, client
}

func (p *fakeProvider) add(id string, fields map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	record := map[string]any{"id": id}
	for key, value := range fields {
		record[key] = value
	}
	p.accounts[id] = record
	p.order = append(p.order, id)
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") != testServiceKey || r.Header.Get("Authorization") != "Bearer "+testServiceKey {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"invalid service key"}`))
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == adminUsersPath:
		p.lastPage = r.URL.RawQuery
		users := make([]map[string]any, 0, len(p.order))
		for _, id := range p.order {
			if account, ok := p.accounts[id]; ok {
				users = append(users, account)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"users": users, "aud": "authenticated"})
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, adminUsersPath+"/"):
		id := strings.TrimPrefix(r.URL.Path, adminUsersPath+"/")
		raw, _ := io.ReadAll(r.Body)
		p.bodies = append(p.bodies, string(raw))
		p.deletes = append(p.deletes, id)
		if _, ok := p.accounts[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"msg":"User not found"}`))
			return
		}
		delete(p.accounts, id)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestClientListDecodesPublicAttributes(t *testing.T) {
	provider, client := newFakeProvider(t)
	provider.add("user-a", map[string]any{
		"email":              "a@example.com",
		"created_at":         "2026-01-02T03:04:05.123456Z",
		"last_sign_in_at":    "2026-02-02T03:04:05Z",
		"confirmed_at":       "2026-01-02T03:05:00Z",
		"encrypted_password": "should-never-surface",
		"app_metadata":       map[string]any{"provider": "email"},
	})
	provider.add("user-b", map[string]any{
		"created_at":   "2026-03-01T00:00:00Z",
		"banned_until": "2999-01-01T00:00:00Z",
	})
	provider.add("user-c", map[string]any{
		"email":      "",
		"created_at": "2026-03-02T00:00:00Z",
	})

	accounts, err := client.List(context.Background(), 5000)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if provider.lastPage != "page=1&per_page=1000" {
		t.Fatalf("expected first page clamped to 1000, got %q", provider.lastPage)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	first := accounts[0]
	if first.ID != "user-a" || first.EmailAddress() != "a@example.com" {
		t.Fatalf("unexpected first account %+v", first)
	}
	if first.LastSignInAt == nil || !first.Confirmed() || first.Banned() {
		t.Fatalf("unexpected optional attributes %+v", first)
	}
	second := accounts[1]
	if second.Email != nil || second.LastSignInAt != nil || !second.Banned() || second.Confirmed() {
		t.Fatalf("unexpected second account %+v", second)
	}
	if third := accounts[2]; third.Email == nil || *third.Email != "" {
		t.Fatalf("expected an empty email to stay distinct from an absent one, got %+v", third)
	}
}

func TestClientDeleteOneReportsUpstreamFailure(t *testing.T) {
	provider, client := newFakeProvider(t)
	provider.add("user-a", nil)
	ctx := context.Background()

	if err := client.DeleteOne(ctx, "user-a"); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if !strings.Contains(provider.bodies[0], `"should_soft_delete":false`) {
		t.Fatalf("expected hard delete body, got %q", provider.bodies[0])
	}

	err := client.DeleteOne(ctx, "user-a")
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected upstream error for already deleted account, got %v", err)
	}
	if upstream.StatusCode != http.StatusNotFound || upstream.AccountID != "user-a" || upstream.Message != "User not found" {
		t.Fatalf("unexpected upstream error %+v", upstream)
	}

	if err := client.DeleteOne(ctx, " "); !errors.Is(err, ErrMissingAccountID) {
		t.Fatalf("expected missing id error, got %v", err)
	}
	if len(provider.deletes) != 2 {
		t.Fatalf("expected blank id to skip the provider, got %d calls", len(provider.deletes))
	}
}

func TestClientListSurfacesProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer server.Close()
	client, err := NewClient(ClientConfig{BaseURL: server.URL, ServiceKey: testServiceKey})
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}

	_, err = client.List(context.Background(), 10)
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected upstream 503, got %v", err)
	}
	if !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("expected provider message in error, got %q", err.Error())
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(ClientConfig{ServiceKey: "k"}); !errors.Is(err, ErrMissingBaseURL) {
		t.Fatalf("expected missing base url error, got %v", err)
	}
	if _, err := NewClient(ClientConfig{BaseURL: "https://id.example.com"}); !errors.Is(err, ErrMissingServiceKey) {
		t.Fatalf("expected missing service key error, got %v", err)
	}
}
