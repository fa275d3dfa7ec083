package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testAnonKey = "public-anon-key"

func newProviderServer(t *testing.T, handler http.HandlerFunc) *ProviderVerifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	verifier, err := NewProviderVerifier(ProviderVerifierConfig{
		BaseURL:    server.URL + "/",
		AnonKey:    testAnonKey,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("failed to construct provider verifier: %v", err)
	}
	return verifier
}

func TestProviderVerifierResolvesCaller(t *testing.T) {
	verifier := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != providerUserPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != testAnonKey {
			t.Errorf("expected anon key header, got %q", r.Header.Get("apikey"))
		}
		if r.Header.Get("Authorization") != "Bearer user-token" {
			t.Errorf("expected caller token to be forwarded, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + testCallerID + `","email":"` + testCallerEmail + `","role":"authenticated","app_metadata":{}}`))
	})

	caller, err := verifier.Verify(context.Background(), "user-token")
	if err != nil {
		t.Fatalf("unexpected verification error: %v", err)
	}
	if caller.ID != testCallerID || caller.Email != testCallerEmail {
		t.Fatalf("unexpected caller %+v", caller)
	}
}

func TestProviderVerifierMapsFailures(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "rejected token", status: http.StatusUnauthorized, body: `{"msg":"invalid JWT"}`, wantErr: ErrInvalidToken},
		{name: "forbidden", status: http.StatusForbidden, body: ``, wantErr: ErrInvalidToken},
		{name: "provider outage", status: http.StatusBadGateway, wantErr: ErrProviderUnavailable},
		{name: "no subject", status: http.StatusOK, body: `{"email":"x@example.com"}`, wantErr: ErrMissingSubject},
		{name: "garbled body", status: http.StatusOK, body: `{`, wantErr: ErrInvalidToken},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			verifier := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(testCase.status)
				_, _ = w.Write([]byte(testCase.body))
			})
			if _, err := verifier.Verify(context.Background(), "user-token"); !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestProviderVerifierSkipsCallWithoutToken(t *testing.T) {
	calls := 0
	verifier := newProviderServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	if _, err := verifier.Verify(context.Background(), "  "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no provider calls, got %d", calls)
	}
}

func TestNewProviderVerifierValidatesConfig(t *testing.T) {
	if _, err := NewProviderVerifier(ProviderVerifierConfig{AnonKey: "a"}); !errors.Is(err, ErrMissingProviderURL) {
		t.Fatalf("expected missing url error, got %v", err)
	}
	if _, err := NewProviderVerifier(ProviderVerifierConfig{BaseURL: "https://id.example.com"}); !errors.Is(err, ErrMissingProviderAnonKey) {
		t.Fatalf("expected missing anon key error, got %v", err)
	}
}
