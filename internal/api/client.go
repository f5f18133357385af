// Package api is a client for the remote help-desk HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/models"
)

// Client talks to the help-desk API. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BaseURL    string        // e.g. http://localhost:5000/api
	Timeout    time.Duration // 0 = no timeout
	HTTPClient *http.Client  // optional; overrides Timeout
	Logger     zerolog.Logger
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api: base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("api: base url: %w", err)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		log:     opts.Logger,
	}, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// LoginResult is the body of a successful login.
type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// NewTicket is the form submitted to create a ticket.
type NewTicket struct {
	Subject     string
	Category    string
	Description string
	Priority    string      // optional
	Attachment  *Attachment // optional
}

// Attachment is a file uploaded with a new ticket.
type Attachment struct {
	Filename string
	Content  io.Reader
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// messageBody is the {message} envelope the API uses for most responses.
type messageBody struct {
	Message string `json:"message"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("api: login: %w", err)
	}
	var res LoginResult
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", "", "application/json", bytes.NewReader(body), &res); err != nil {
		return nil, err
	}
	if res.Token == "" {
		return nil, &APIError{Op: "login", Status: http.StatusOK, Message: "Login response did not include a token"}
	}
	return &res, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("api: register: %w", err)
	}
	var res messageBody
	if err := c.do(ctx, "register", http.MethodPost, "/auth/register", "", "application/json", bytes.NewReader(body), &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// ListTickets returns every ticket visible to the token's user. Role-based
// scoping happens on the server.
func (c *Client) ListTickets(ctx context.Context, token string) ([]models.Ticket, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	var tickets []models.Ticket
	if err := c.do(ctx, "list tickets", http.MethodGet, "/tickets", token, "", nil, &tickets); err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

// CreateTicket submits a multipart ticket form.
func (c *Client) CreateTicket(ctx context.Context, token string, t NewTicket) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"subject", t.Subject},
		{"category", t.Category},
		{"description", t.Description},
	}
	if t.Priority != "" {
		fields = append(fields, [2]string{"priority", t.Priority})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", fmt.Errorf("api: create ticket: %w", err)
		}
	}
	if t.Attachment != nil && t.Attachment.Content != nil {
		part, err := mw.CreateFormFile("attachment", t.Attachment.Filename)
		if err != nil {
			return "", fmt.Errorf("api: create ticket: %w", err)
		}
		if _, err := io.Copy(part, t.Attachment.Content); err != nil {
			return "", fmt.Errorf("api: create ticket: read attachment: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("api: create ticket: %w", err)
	}

	var res messageBody
	if err := c.do(ctx, "create ticket", http.MethodPost, "/tickets", token, mw.FormDataContentType(), &buf, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// UpdateStatus sets a ticket's status with PATCH /tickets/{id}/status.
func (c *Client) UpdateStatus(ctx context.Context, token string, id models.ID, status models.Status) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	body, err := json.Marshal(map[string]models.Status{"status": status})
	if err != nil {
		return "", fmt.Errorf("api: update status: %w", err)
	}
	var res messageBody
	path := "/tickets/" + url.PathEscape(string(id)) + "/status"
	if err := c.do(ctx, "update status", http.MethodPatch, path, token, "application/json", bytes.NewReader(body), &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// AddReply appends a reply with POST /tickets/{id}/reply.
func (c *Client) AddReply(ctx context.Context, token string, id models.ID, message string) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", fmt.Errorf("api: add reply: %w", err)
	}
	var res messageBody
	path := "/tickets/" + url.PathEscape(string(id)) + "/reply"
	if err := c.do(ctx, "add reply", http.MethodPost, path, token, "application/json", bytes.NewReader(body), &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

// Health queries GET /health. An "unhealthy" body is returned as-is with
// a nil error; the caller decides how to report it.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var hs HealthStatus
	if err := c.do(ctx, "health", http.MethodGet, "/health", "", "", nil, &hs); err != nil {
		return nil, err
	}
	return &hs, nil
}

// do performs one request. A non-2xx status becomes *APIError carrying the
// server's message; a failed round trip becomes *TransportError. On success
// the body is decoded into out when out is non-nil and the body is not empty.
func (c *Client) do(ctx context.Context, op, method, path, token, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: %s: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("op", op).Str("method", method).Str("path", path).Msg("api request failed")
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	c.log.Debug().Str("op", op).Str("method", method).Str("path", path).
		Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var mb messageBody
		_ = json.Unmarshal(data, &mb)
		return &APIError{Op: op, Status: resp.StatusCode, Message: mb.Message}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("api: %s: decode response: %w", op, err)
	}
	return nil
}
