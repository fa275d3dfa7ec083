package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	providerUserPath       = "/auth/v1/user"
	defaultProviderTimeout = 10 * time.Second
)

var (
	ErrMissingProviderURL     = errors.New("auth: provider url required")
	ErrMissingProviderAnonKey = errors.New("auth: provider anon key required")
)

// ProviderVerifierConfig bundles configuration required to verify tokens with the identity provider.
type ProviderVerifierConfig struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client
}

// ProviderVerifier delegates token validation to the identity provider's user endpoint.
type ProviderVerifier struct {
	userURL    string
	anonKey    string
	httpClient *http.Client
}

// NewProviderVerifier constructs a verifier with validated configuration.
func NewProviderVerifier(cfg ProviderVerifierConfig) (*ProviderVerifier, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingProviderURL
	}
	anonKey := strings.TrimSpace(cfg.AnonKey)
	if anonKey == "" {
		return nil, ErrMissingProviderAnonKey
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultProviderTimeout}
	}
	return &ProviderVerifier{
		userURL:    baseURL + providerUserPath,
		anonKey:    anonKey,
		httpClient: httpClient,
	}, nil
}

type providerUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verify asks the provider who owns the token. Only the caller's own token and the
// public anon key are presented; no elevated credential is involved.
func (v *ProviderVerifier) Verify(ctx context.Context, token string) (Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Caller{}, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userURL, nil)
	if err != nil {
		return Caller{}, err
	}
	req.Header.Set("apikey", v.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Caller{}, fmt.Errorf("%w: provider rejected token (%s)", ErrInvalidToken, readProviderMessage(resp.Body))
	case resp.StatusCode >= http.StatusInternalServerError:
		return Caller{}, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	default:
		return Caller{}, fmt.Errorf("%w: provider returned status %d", ErrInvalidToken, resp.StatusCode)
	}

	var user providerUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return Caller{}, fmt.Errorf("%w: decode user: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return Caller{}, ErrMissingSubject
	}
	return Caller{ID: strings.TrimSpace(user.ID), Email: strings.TrimSpace(user.Email)}, nil
}

// readProviderMessage extracts the provider's error text, falling back to the raw body.
func readProviderMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no body"
	}
	var payload struct {
		Message          string `json:"msg"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		for _, candidate := range []string{payload.Message, payload.ErrorDescription, payload.Error} {
			if strings.TrimSpace(candidate) != "" {
				return strings.TrimSpace(candidate)
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
