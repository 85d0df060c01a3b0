// Copyright (C) 2026 Keta Health (engineering@ketahealth.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package api is the HTTP client for the therapy backend.
//
// # Description
//
//	Thin typed wrapper over the backend's REST surface: auth, chat,
//	document upload, and document listing. Transport failures and
//	backend error envelopes are both surfaced as *APIError so callers
//	can branch on error class without string matching.
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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ketahealth/keta/pkg/logging"
)

// ====== Error Types ======

// ErrorType classifies API failures
type ErrorType string

const (
	// ErrorTypeConnection means the backend could not be reached at all
	ErrorTypeConnection ErrorType = "connection"

	// ErrorTypeAuth means the request was rejected for missing or bad credentials
	ErrorTypeAuth ErrorType = "auth"

	// ErrorTypeValidation means the backend rejected the request payload
	ErrorTypeValidation ErrorType = "validation"

	// ErrorTypeServer means the backend failed internally
	ErrorTypeServer ErrorType = "server"

	// ErrorTypeDecode means the response body could not be parsed
	ErrorTypeDecode ErrorType = "decode"
)

// APIError is a structured error from the backend client.
//
// # Description
//
//	Carries the failure class, the backend's own message when one was
//	returned, and a remediation hint suitable for direct display.
type APIError struct {
	Type        ErrorType
	Message     string
	Detail      string
	Remediation string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// IsAuthError reports whether err is an authentication failure
func IsAuthError(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Type == ErrorTypeAuth
}

// ====== Wire Types ======

// Identity describes the authenticated account as the backend reports it
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Role        string `json:"role"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	LastLoginAt string `json:"last_login_at,omitempty"`
}

// IsAdmin reports whether this identity can use admin endpoints
func (i Identity) IsAdmin() bool {
	return i.Role == "admin"
}

// RegisterRequest is the account-creation payload
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// DocumentPayload mirrors a knowledge-document record as the backend
// emits it. Field spellings vary across backend versions, so every
// observed variant is captured; normalization happens downstream.
type DocumentPayload struct {
	ID         string `json:"id"`
	DocID      string `json:"doc_id"`
	Filename   string `json:"filename"`
	FileNameJS string `json:"fileName"`
	Relevant   *bool  `json:"relevant"`
	UploadDate string `json:"uploadDate"`
	UploadedAt string `json:"upload_date"`
	CreatedAt  string `json:"created_at"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type chatResponse struct {
	Message  string `json:"message"`
	Response string `json:"response"`
}

type errorEnvelope struct {
	Detail json.RawMessage `json:"detail"`
}

// ====== Client ======

// HTTPClient abstracts the HTTP transport for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the therapy backend
type Client struct {
	baseURL string
	http    HTTPClient
	logger  *logging.Logger
}

// NewClient creates a Client for the given base URL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: timeout})
}

// NewClientWithHTTP creates a Client with an injected transport.
// Used in tests to substitute a mock.
func NewClientWithHTTP(baseURL string, httpClient HTTPClient) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logging.Default().With("component", "api"),
	}
}

// BaseURL returns the backend base URL this client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveBaseURL picks the backend URL from flag, environment, then
// config, in that order of precedence.
func ResolveBaseURL(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("KETA_BACKEND_URL"); env != "" {
		return env
	}
	if configValue != "" {
		return configValue
	}
	return "http://localhost:8000"
}

// ====== Auth ======

// Login exchanges credentials for a bearer token
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := map[string]string{"username": username, "password": password}

	var resp loginResponse
	if err := c.postJSON(ctx, "/api/auth/login", "", body, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &APIError{
			Type:        ErrorTypeDecode,
			Message:     "login response contained no token",
			Remediation: "The backend may be an incompatible version. Check the server logs.",
		}
	}

	c.logger.Info("login succeeded", "username", username)
	return resp.AccessToken, nil
}

// Register creates a new account. The caller is expected to Login
// afterwards; the backend does not return a token here.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.postJSON(ctx, "/api/auth/register", "", req, nil)
}

// Me fetches the identity behind a bearer token
func (c *Client) Me(ctx context.Context, token string) (*Identity, error) {
	httpReq, err := c.newRequest(ctx, http.MethodGet, "/api/auth/me", token, nil, "")
	if err != nil {
		return nil, err
	}

	var identity Identity
	if err := c.do(httpReq, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// ====== Chat ======

// Ask sends a chat query and returns the assistant's answer text.
// userID may be empty for authenticated calls; anonymous sessions
// pass the literal "anonymous".
func (c *Client) Ask(ctx context.Context, token, userID, query string) (string, error) {
	body := map[string]string{"query": query}
	if userID != "" {
		body["user_id"] = userID
	}

	var resp chatResponse
	if err := c.postJSON(ctx, "/api/chat/", token, body, &resp); err != nil {
		return "", err
	}

	if resp.Message != "" {
		return resp.Message, nil
	}
	return resp.Response, nil
}

// ====== Documents ======

// UploadDocument streams a file to the backend as multipart form data.
// Admin uploads feed the shared knowledge base; user uploads stay
// scoped to the account behind the token.
func (c *Client) UploadDocument(ctx context.Context, token string, admin bool, filename string, r io.Reader) error {
	endpoint := "/api/user-docs/upload"
	if admin {
		endpoint = "/api/admin/upload"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return &APIError{Type: ErrorTypeValidation, Message: "building upload form", Detail: err.Error()}
	}
	if _, err := io.Copy(part, r); err != nil {
		return &APIError{Type: ErrorTypeValidation, Message: "reading upload file", Detail: err.Error()}
	}
	if err := mw.Close(); err != nil {
		return &APIError{Type: ErrorTypeValidation, Message: "finalizing upload form", Detail: err.Error()}
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, endpoint, token, &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}

	c.logger.Info("uploading document", "filename", filepath.Base(filename), "admin", admin)
	return c.do(httpReq, nil)
}

// ListDocuments fetches knowledge-document records. When relevant is
// non-nil the backend filters server-side.
func (c *Client) ListDocuments(ctx context.Context, token string, relevant *bool) ([]DocumentPayload, error) {
	endpoint := "/api/user-docs/all-documents"
	if relevant != nil {
		q := url.Values{}
		q.Set("relevant", fmt.Sprintf("%t", *relevant))
		endpoint += "?" + q.Encode()
	}

	httpReq, err := c.newRequest(ctx, http.MethodGet, endpoint, token, nil, "")
	if err != nil {
		return nil, err
	}

	var docs []DocumentPayload
	if err := c.do(httpReq, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ====== Internals ======

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, &APIError{
			Type:    ErrorTypeValidation,
			Message: "building request",
			Detail:  err.Error(),
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &APIError{Type: ErrorTypeValidation, Message: "encoding request", Detail: err.Error()}
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, token, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// do executes the request, maps failures to *APIError, and decodes a
// successful body into out when out is non-nil.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "url", req.URL.String(), "error", err)
		return &APIError{
			Type:        ErrorTypeConnection,
			Message:     "cannot reach backend",
			Detail:      err.Error(),
			Remediation: fmt.Sprintf("Check that the backend is running at %s, or set --backend-url.", c.baseURL),
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Type: ErrorTypeDecode, Message: "reading response", Detail: err.Error()}
	}

	if resp.StatusCode >= 400 {
		return c.statusError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &APIError{
				Type:    ErrorTypeDecode,
				Message: "unexpected response format",
				Detail:  err.Error(),
			}
		}
	}
	return nil
}

// statusError maps an HTTP error status and its body to an *APIError.
// The backend wraps messages in a {"detail": ...} envelope; detail may
// be a string or a structured validation list.
func (c *Client) statusError(status int, body []byte) *APIError {
	detail := extractDetail(body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		msg := detail
		if msg == "" {
			msg = "authentication required"
		}
		return &APIError{
			Type:        ErrorTypeAuth,
			Message:     msg,
			Remediation: "Sign in with 'keta login' and try again.",
		}
	case status >= 400 && status < 500:
		msg := detail
		if msg == "" {
			msg = fmt.Sprintf("request rejected (HTTP %d)", status)
		}
		return &APIError{Type: ErrorTypeValidation, Message: msg}
	default:
		return &APIError{
			Type:        ErrorTypeServer,
			Message:     fmt.Sprintf("backend error (HTTP %d)", status),
			Detail:      detail,
			Remediation: "Try again shortly; if this persists check the backend logs.",
		}
	}
}

// extractDetail pulls a human-readable message out of a {"detail": ...}
// envelope. Returns "" when the body is not an envelope.
func extractDetail(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		return s
	}

	// Validation errors arrive as a list of objects with a "msg" field.
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
