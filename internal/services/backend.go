package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Backend is the HTTP core for the upstream booking API. It is
// explicitly constructed and injected; the per-session bearer token is
// passed with each request rather than held in package state.
type Backend struct {
	baseURL string
	client  *http.Client
}

// NewBackend constructs a Backend client for the given base URL.
func NewBackend(baseURL string, timeout time.Duration) *Backend {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// RequestOpts captures inputs for upstream API calls.
type RequestOpts struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
	Token  string
}

// Response bundles the raw upstream response.
type Response struct {
	Status int
	Body   []byte
	Header http.Header
}

// BackendError is the normalized error shape for any failed upstream
// call. Raw transport errors never cross this boundary.
type BackendError struct {
	Message string          `json:"message"`
	Status  int             `json:"status"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is an upstream 404 (or NOT_FOUND code).
func IsNotFound(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Status == http.StatusNotFound || be.Code == "NOT_FOUND"
	}
	return false
}

// IsAuthRequired reports whether err is an upstream 401.
func IsAuthRequired(err error) bool {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Status == http.StatusUnauthorized
	}
	return false
}

// IsAuthEndpoint reports whether the path belongs to the auth surface.
// A 401 from these endpoints must not invalidate the session, otherwise
// a failed login would log the user out in a loop.
func IsAuthEndpoint(path string) bool {
	p := strings.TrimLeft(path, "/")
	for _, prefix := range []string{"auth/", "bookings/otp"} {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	for _, frag := range []string{"login", "register", "otp", "password"} {
		if strings.Contains(p, frag) {
			return true
		}
	}
	return false
}

// Do performs an upstream request and returns the raw response
// regardless of status code. Connection-class failures on GET requests
// are retried exactly once; mutating requests are never retried.
func (b *Backend) Do(ctx context.Context, opts RequestOpts) (*Response, error) {
	if opts.Method == "" {
		return nil, errors.New("request method is required")
	}
	path := strings.TrimLeft(opts.Path, "/")
	if path == "" {
		return nil, errors.New("request path is required")
	}

	targetURL, err := b.makeURL(path, opts.Query)
	if err != nil {
		return nil, err
	}

	resp, err := b.execute(ctx, opts, targetURL)
	if err != nil {
		if opts.Method != http.MethodGet {
			return nil, &BackendError{Message: err.Error(), Status: 0, Code: "NETWORK"}
		}
		// One automatic retry for transient read failures.
		resp, err = b.execute(ctx, opts, targetURL)
		if err != nil {
			return nil, &BackendError{Message: err.Error(), Status: 0, Code: "NETWORK"}
		}
	}
	return resp, nil
}

// DoJSON performs a request, normalizes non-2xx responses into a
// BackendError, and unmarshals a successful body into out when out is
// non-nil.
func (b *Backend) DoJSON(ctx context.Context, opts RequestOpts, out any) error {
	resp, err := b.Do(ctx, opts)
	if err != nil {
		return err
	}

	if resp.Status < 200 || resp.Status >= 300 {
		return parseBackendError(resp.Status, resp.Body)
	}

	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return &BackendError{
				Message: fmt.Sprintf("unmarshal upstream response: %v", err),
				Status:  resp.Status,
				Code:    "BAD_RESPONSE",
			}
		}
	}
	return nil
}

func (b *Backend) execute(ctx context.Context, opts RequestOpts, targetURL string) (*Response, error) {
	var bodyReader io.Reader
	if opts.Body != nil {
		payload, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, targetURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{Status: resp.StatusCode, Body: respBody, Header: resp.Header}, nil
}

func (b *Backend) makeURL(path string, query map[string]string) (string, error) {
	u, err := url.Parse(b.baseURL + "/" + path)
	if err != nil {
		return "", fmt.Errorf("parse upstream URL: %w", err)
	}
	if len(query) > 0 {
		values := u.Query()
		for k, v := range query {
			values.Set(k, v)
		}
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

// parseBackendError normalizes the known upstream error body shapes.
func parseBackendError(status int, body []byte) *BackendError {
	be := &BackendError{Status: status, Message: http.StatusText(status)}

	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Code    string          `json:"code"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if len(body) > 0 {
			be.Message = strings.TrimSpace(string(body))
		}
		return be
	}

	if payload.Message != "" {
		be.Message = payload.Message
	}
	be.Code = payload.Code
	be.Data = payload.Data

	// "error" is either a plain string or a nested {message, code} object.
	if len(payload.Error) > 0 {
		var errStr string
		if json.Unmarshal(payload.Error, &errStr) == nil {
			if payload.Message == "" && errStr != "" {
				be.Message = errStr
			}
			return be
		}
		var nested struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil {
			if payload.Message == "" && nested.Message != "" {
				be.Message = nested.Message
			}
			if be.Code == "" {
				be.Code = nested.Code
			}
		}
	}
	return be
}
