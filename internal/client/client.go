// Package client is a typed HTTP client for the portal API.  It is used by
// portalctl and by the dashboard state in tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/utility-audit-portal/internal/model"
)

// APIError is a non-2xx answer from the portal.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.Status, e.Message, e.Field)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// Client talks to one portal instance.  It is not safe to change the token
// while requests are in flight.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SetToken sets the access token sent as a Bearer header.
func (c *Client) SetToken(tok string) { c.token = tok }

func (c *Client) Token() string { return c.token }

// User is the caller as reported by the session endpoints.
type User struct {
	ID    string     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type Token struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	User    User  `json:"user"`
	Access  Token `json:"access"`
	Refresh Token `json:"refresh"`
}

// MetricValues are the raw numeric strings entered for one sample.
type MetricValues struct {
	ElectricityUsage             string `json:"electricity_usage"`
	WaterUsage                   string `json:"water_usage"`
	ElectricitySavingsPercentage string `json:"electricity_savings_percentage"`
	WaterSavingsPercentage       string `json:"water_savings_percentage"`
	MeasurementDate              string `json:"measurement_date,omitempty"`
}

// Login signs in and keeps the access token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	c.token = out.Access.Token
	return &out, nil
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refresh_token": refreshToken}, &out); err != nil {
		return nil, err
	}
	c.token = out.Access.Token
	return &out, nil
}

// Logout ends the session and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
	c.token = ""
	return err
}

// Session returns the current user, or nil when the token is missing or
// no longer active.
func (c *Client) Session(ctx context.Context) (*User, error) {
	var out struct {
		User *User `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListReports lists visible reports, newest first.  clientID only narrows
// the owner's view.
func (c *Client) ListReports(ctx context.Context, clientID string) ([]model.Report, error) {
	path := "/api/v1/reports"
	if clientID != "" {
		path += "?client_id=" + url.QueryEscape(clientID)
	}
	var out struct {
		Reports []model.Report `json:"reports"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

// ListMetrics returns a report's samples in measurement order.
func (c *Client) ListMetrics(ctx context.Context, reportID string) ([]model.MetricSample, error) {
	var out struct {
		Metrics []model.MetricSample `json:"metrics"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(reportID)+"/metrics", nil, &out); err != nil {
		return nil, err
	}
	return out.Metrics, nil
}

// DownloadReport copies the report's file to w and returns the suggested
// file name.
func (c *Client) DownloadReport(ctx context.Context, reportID string, w io.Writer) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/reports/"+url.PathEscape(reportID)+"/file", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	name := reportID + ".pdf"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return name, nil
}

// UploadReport creates a report for clientID.  file may be nil.
func (c *Client) UploadReport(ctx context.Context, title, description, clientID, fileName string, file io.Reader) (*model.Report, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"title": title, "description": description, "client_id": clientID} {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(fw, file); err != nil {
			return nil, fmt.Errorf("read %s: %w", fileName, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/owner/reports", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out model.Report
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func (c *Client) AddMetric(ctx context.Context, reportID string, v MetricValues) (*model.MetricSample, error) {
	var out model.MetricSample
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/owner/reports/"+url.PathEscape(reportID)+"/metrics", v, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clients returns the owner's client roster.
func (c *Client) Clients(ctx context.Context) ([]model.RosterEntry, error) {
	var out struct {
		Clients []model.RosterEntry `json:"clients"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/owner/clients", nil, &out); err != nil {
		return nil, err
	}
	return out.Clients, nil
}

func (c *Client) CreateClient(ctx context.Context, email, password string) (*model.RosterEntry, error) {
	var out model.RosterEntry
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/owner/clients", map[string]string{"email": email, "password": password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends one message to the chat relay and returns the reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Reply string `json:"reply"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/functions/v1/chat", map[string]string{"message": message}, &out); err != nil {
		return "", err
	}
	return out.Data.Reply, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do sends the request and turns error statuses into *APIError.  The
// caller closes the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Field   string `json:"field"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Message = payload.Error
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
		apiErr.Field = payload.Field
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return nil, apiErr
}
