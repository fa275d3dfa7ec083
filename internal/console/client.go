package console

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/dormdesk/internal/directory"
)

const (
	defaultClientTimeout = 30 * time.Second
	maxResponseBytes     = 8 << 20
)

var (
	ErrMissingEndpoint = errors.New("management endpoint is required")
	ErrMissingToken    = errors.New("operator token is required")
)

// RequestError is a non-2xx answer from the management endpoint.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("management endpoint returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("management endpoint returned status %d: %s", e.StatusCode, e.Message)
}

// Summary is the aggregate outcome of one delete request.
type Summary struct {
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d deleted, %d failed", len(s.Deleted), len(s.Failed))
}

// ClientConfig describes how to reach the management endpoint.
type ClientConfig struct {
	Endpoint   string
	Token      string
	HTTPClient *http.Client
}

// Client talks to the management endpoint with the operator's bearer token.
// It never holds or sends any other credential.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

// NewClient constructs a management endpoint client.
func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrMissingToken
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{endpoint: endpoint, token: token, httpClient: httpClient}, nil
}

type listPayload struct {
	Users []directory.Account `json:"users"`
}

type deletePayload struct {
	TargetIDs []string `json:"target_ids"`
}

type deleteResultPayload struct {
	Success bool     `json:"success"`
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

// List fetches the current account listing.
func (c *Client) List(ctx context.Context) ([]directory.Account, error) {
	var payload listPayload
	if err := c.do(ctx, http.MethodGet, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Users, nil
}

// Delete submits one batch and returns its aggregate outcome.
func (c *Client) Delete(ctx context.Context, targetIDs []string) (Summary, error) {
	body, err := json.Marshal(deletePayload{TargetIDs: targetIDs})
	if err != nil {
		return Summary{}, fmt.Errorf("encode delete request: %w", err)
	}
	var payload deleteResultPayload
	if err := c.do(ctx, http.MethodDelete, body, &payload); err != nil {
		return Summary{}, err
	}
	if !payload.Success {
		return Summary{}, &RequestError{StatusCode: http.StatusOK, Message: "batch was not reported as completed"}
	}
	return Summary{Deleted: payload.Deleted, Failed: payload.Failed}, nil
}

func (c *Client) do(ctx context.Context, method string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, c.endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, c.endpoint, err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &failure)
		return &RequestError{StatusCode: response.StatusCode, Message: failure.Error}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
