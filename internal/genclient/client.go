// Package genclient is the HTTP client for the draftforge code-generation API.
package genclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultBaseURL = "https://api.draftforge.dev"

// APIError is a structured error returned by the generation API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to the code-generation API.
type Client struct {
	HTTPClient *http.Client // Optional; uses http.DefaultClient if nil

	// BaseURL allows overriding the endpoint for testing.
	BaseURL string

	key string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return defaultBaseURL
}

// Verify checks an API key by making a minimal authenticated request.
// Returns nil if the key is valid, or an error describing the problem.
// API failures are returned as *APIError with the server's message.
func (c *Client) Verify(ctx context.Context, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL()+"/v1/account", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if json.Unmarshal(body, &errResp) != nil || errResp.Error.Message == "" {
		return &APIError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("unexpected response (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	apiErr := &APIError{
		Status: resp.StatusCode,
		Type:   errResp.Error.Type,
	}
	msg := errResp.Error.Message
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		apiErr.Message = "invalid API key: " + msg
	case http.StatusForbidden:
		apiErr.Message = "API key lacks required permissions: " + msg
	default:
		apiErr.Message = fmt.Sprintf("API error (%d): %s", resp.StatusCode, msg)
	}
	return apiErr
}

// Initialize verifies the key and configures the client to use it for
// subsequent requests.
func (c *Client) Initialize(ctx context.Context, apiKey string) error {
	if err := c.Verify(ctx, apiKey); err != nil {
		return err
	}
	c.key = apiKey
	return nil
}

// Authorized reports whether the client holds a verified key.
func (c *Client) Authorized() bool {
	return c.key != ""
}

// Deauthorize drops the client's key.
func (c *Client) Deauthorize() {
	c.key = ""
}

// ErrorDescription extracts the human-readable message from an
// initialization failure: the API's own message when the error is
// structured, the error's string form otherwise.
func ErrorDescription(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
