package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	adminUsersPath       = "/auth/v1/admin/users"
	defaultClientTimeout = 10 * time.Second
	maxErrorBodyBytes    = 4096
)

// ClientConfig describes how to reach the provider's admin API.
type ClientConfig struct {
	BaseURL    string
	ServiceKey string
	HTTPClient *http.Client
	// RequestsPerSecond paces provider calls; zero disables pacing.
	RequestsPerSecond float64
}

// Client lists and deletes accounts through the provider's admin REST API
// using the server-held service key.
type Client struct {
	usersURL   string
	serviceKey string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient constructs an admin API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	serviceKey := strings.TrimSpace(cfg.ServiceKey)
	if serviceKey == "" {
		return nil, ErrMissingServiceKey
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Client{
		usersURL:   baseURL + adminUsersPath,
		serviceKey: serviceKey,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

type listUsersResponse struct {
	Users []Account `json:"users"`
}

// List returns the first page of accounts, at most MaxPageSize of them.
// Further pages are not requested.
func (c *Client) List(ctx context.Context, pageSize int) ([]Account, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	query := url.Values{}
	query.Set("page", "1")
	query.Set("per_page", strconv.Itoa(pageSize))

	resp, err := c.do(ctx, http.MethodGet, c.usersURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var payload listUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("directory: decode users: %w", err)
	}
	if len(payload.Users) > pageSize {
		payload.Users = payload.Users[:pageSize]
	}
	return payload.Users, nil
}

// DeleteOne hard-deletes a single account. Failures come back as *UpstreamError.
func (c *Client) DeleteOne(ctx context.Context, accountID string) error {
	id := strings.TrimSpace(accountID)
	if id == "" {
		return &UpstreamError{Err: ErrMissingAccountID}
	}

	body, err := json.Marshal(map[string]bool{"should_soft_delete": false})
	if err != nil {
		return &UpstreamError{AccountID: id, Err: err}
	}
	resp, err := c.do(ctx, http.MethodDelete, c.usersURL+"/"+url.PathEscape(id), body)
	if err != nil {
		return &UpstreamError{AccountID: id, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{AccountID: id, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func readErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message          string `json:"msg"`
		AltMessage       string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		for _, candidate := range []string{payload.Message, payload.AltMessage, payload.ErrorDescription, payload.Error} {
			if strings.TrimSpace(candidate) != "" {
				return strings.TrimSpace(candidate)
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
