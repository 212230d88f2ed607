package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const sessionCookieName = "jwt"

// Client provides typed access to the profiles API. It keeps the session
// cookie in a cookie jar, so a successful Login authenticates later calls.
type Client struct {
	baseURL    *url.URL
	prefix     string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. A client without a
// cookie jar gets one.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithPrefix sets the API route prefix (default /api/v1).
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = "/" + strings.Trim(strings.TrimSpace(prefix), "/")
		if c.prefix == "/" {
			c.prefix = ""
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(strings.TrimRight(trimmed, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    parsed,
		prefix:     "/api/v1",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	if cli.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		cli.httpClient.Jar = jar
	}
	return cli, nil
}

// SessionToken returns the session token held in the cookie jar, if any.
func (c *Client) SessionToken() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == sessionCookieName {
			return cookie.Value
		}
	}
	return ""
}

// SetSessionToken restores a token saved from an earlier session.
func (c *Client) SetSessionToken(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	c.httpClient.Jar.SetCookies(c.baseURL, []*http.Cookie{{Name: sessionCookieName, Value: token, Path: "/"}})
}

// Issue is a field level validation failure reported by the API.
type Issue struct {
	Code     string   `json:"code"`
	Expected string   `json:"expected,omitempty"`
	Received string   `json:"received,omitempty"`
	Message  string   `json:"message"`
	Path     []string `json:"path"`
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
	Issues  []Issue
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	if len(e.Issues) > 0 {
		parts := make([]string, 0, len(e.Issues))
		for _, issue := range e.Issues {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(issue.Path, "."), issue.Message))
		}
		return fmt.Sprintf("api request failed (%d): %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL.String() + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp.StatusCode, resp.Body)
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(status int, body io.Reader) APIError {
	apiErr := APIError{Status: status}
	if body == nil {
		return apiErr
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Message string  `json:"message"`
		Errors  []Issue `json:"errors"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Message)
	apiErr.Issues = payload.Errors
	return apiErr
}

// Message is the body of the auth endpoints.
type Message struct {
	Message string `json:"message"`
}

// Profile reflects API user profile payloads.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Health is the payload of the health endpoint.
type Health struct {
	Status     string                    `json:"status"`
	Components map[string]map[string]any `json:"components"`
	Timestamp  string                    `json:"timestamp"`
}

// UpdateProfileInput lists the fields to change; nil fields are omitted.
type UpdateProfileInput struct {
	Email    *string `json:"email,omitempty"`
	Name     *string `json:"name,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Register creates an account and stores the returned session cookie.
func (c *Client) Register(ctx context.Context, email, password, name string) (Message, error) {
	payload := map[string]string{"email": email, "password": password}
	if strings.TrimSpace(name) != "" {
		payload["name"] = name
	}
	var resp Message
	err := c.do(ctx, http.MethodPost, c.prefix+"/register", payload, &resp)
	return resp, err
}

// Login authenticates and stores the returned session cookie.
func (c *Client) Login(ctx context.Context, email, password string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, c.prefix+"/login", map[string]string{"email": email, "password": password}, &resp)
	return resp, err
}

// Logout asks the API to clear the session cookie.
func (c *Client) Logout(ctx context.Context) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, c.prefix+"/logout", nil, &resp)
	return resp, err
}

// Health reports API and database health. A degraded service is returned
// as an APIError with status 503.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var resp Health
	err := c.do(ctx, http.MethodGet, c.prefix+"/health", nil, &resp)
	return resp, err
}

// ListProfiles returns one page of profiles.
func (c *Client) ListProfiles(ctx context.Context, limit, offset int) ([]Profile, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	path := c.prefix + "/user-profiles"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp []Profile
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetProfile fetches a single profile.
func (c *Client) GetProfile(ctx context.Context, id string) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, c.profilePath(id), nil, &resp)
	return resp, err
}

// UpdateProfile changes the given fields of a profile.
func (c *Client) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodPatch, c.profilePath(id), input, &resp)
	return resp, err
}

// DeleteProfile removes a profile and returns it.
func (c *Client) DeleteProfile(ctx context.Context, id string) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodDelete, c.profilePath(id), nil, &resp)
	return resp, err
}

func (c *Client) profilePath(id string) string {
	return c.prefix + "/user-profiles/" + url.PathEscape(strings.TrimSpace(id))
}
