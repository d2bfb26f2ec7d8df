package notifications

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

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/locationup/locationup-go/pkg/errors"
)

const requestBodyReadLimit int64 = 1024

// Client wraps the LocationUp backend notification REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	validate   *validator.Validate
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient builds the notification API client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification api base url is required")
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		validate:   validator.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return client, nil
}

// ListParams filters the point-in-time notification fetch.
type ListParams struct {
	Limit      int
	UnreadOnly bool
}

// List fetches the recipient's notifications, newest first.
func (c *Client) List(ctx context.Context, userID string, params ListParams) ([]Record, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	endpoint := c.buildURL("notifications", "user", userID)
	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.UnreadOnly {
		query.Set("unreadOnly", "true")
	}
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build list request")
	}

	var records []Record
	if err := c.do(req, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// MarkRead persists the read flag for a single notification.
func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	if strings.TrimSpace(notificationID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.buildURL("notifications", notificationID, "read"), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build mark-read request")
	}
	return c.do(req, nil)
}

// MarkAllRead persists the read flag for every notification of the user.
func (c *Client) MarkAllRead(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.buildURL("notifications", "user", userID, "read-all"), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build mark-all-read request")
	}
	return c.do(req, nil)
}

// Delete removes the notification server-side.
func (c *Client) Delete(ctx context.Context, notificationID string) error {
	if strings.TrimSpace(notificationID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.buildURL("notifications", notificationID), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build delete request")
	}
	return c.do(req, nil)
}

// SendTest asks the backend to push a canned test notification to the user.
func (c *Client) SendTest(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("notifications", "test", userID), nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build send-test request")
	}
	return c.do(req, nil)
}

// SendRequest describes a custom notification to push through the backend.
type SendRequest struct {
	UserID   string `json:"userId" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Severity string `json:"severity" validate:"omitempty,oneof=SUCCESS ERROR WARNING INFO URGENT"`
}

// SendCustom pushes a custom notification to the user via the backend.
func (c *Client) SendCustom(ctx context.Context, send SendRequest) error {
	if err := c.validate.Struct(send); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid send request")
	}

	payload, err := json.Marshal(send)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal send request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("notifications", "send"), bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build send request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "request failed")
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return nil
}

func (c *Client) buildURL(parts ...string) string {
	escaped := make([]string, 0, len(parts))
	for _, part := range parts {
		escaped = append(escaped, url.PathEscape(part))
	}
	return c.baseURL + "/api/" + strings.Join(escaped, "/")
}
