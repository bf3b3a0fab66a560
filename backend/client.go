package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tuniway/tuniway-web/users"
)

// Backend route paths, relative to the configured base URL (which carries /api).
const (
	PathSignIn        = "/auth/signin"
	PathSignUp        = "/auth/signup"
	PathProfile       = "/users/profile/"
	PathUsers         = "/users/"
	maxResponseBytes  = 8 << 20 // profile pictures may be inline data URIs
	tracerName        = "github.com/tuniway/tuniway-web/backend"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Client is a typed client for the Tuniway REST endpoints the session layer
// consumes. The http.Client is expected to carry the authorization injector.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

// New creates a client. A nil httpClient falls back to http.DefaultClient.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tracer:  otel.Tracer(tracerName),
	}
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SignIn posts credentials to the signin endpoint.
func (c *Client) SignIn(ctx context.Context, creds users.Credentials) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, "backend.SignIn", http.MethodPost, PathSignIn, creds, &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, resp.validate()
}

// SignUp posts a new account to the signup endpoint.
func (c *Client) SignUp(ctx context.Context, reg users.Registration) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, "backend.SignUp", http.MethodPost, PathSignUp, reg.WithDefaults(), &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, resp.validate()
}

// Profile fetches the canonical profile for id.
func (c *Client) Profile(ctx context.Context, id int64) (users.Record, error) {
	var p profileResponse
	if err := c.do(ctx, "backend.Profile", http.MethodGet, PathProfile+strconv.FormatInt(id, 10), nil, &p); err != nil {
		return users.Record{}, err
	}
	return p.record()
}

// UpdateProfile applies patch to the account and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, id int64, patch users.Patch) (users.Record, error) {
	var p profileResponse
	if err := c.do(ctx, "backend.UpdateProfile", http.MethodPut, PathUsers+strconv.FormatInt(id, 10), patch, &p); err != nil {
		return users.Record{}, err
	}
	return p.record()
}

func (c *Client) do(ctx context.Context, spanName, method, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)

	err := c.roundTrip(ctx, method, path, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug().Err(err).Str("method", method).Str("path", path).Msg("backend call failed")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("[backend %s] encode body: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("[backend %s] new request: %w", path, err)
	}
	req.Header.Set("Accept", contentTypeJSON)
	if body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("[backend %s] %w", path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("[backend %s] read body: %w", path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{Status: res.StatusCode, Message: errorMessage(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("[backend %s] decode response: %w", path, err)
	}
	return nil
}

// errorMessage extracts the backend's message field, falling back to the raw
// body when it is short plain text.
func errorMessage(data []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		return m.Error
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		return ""
	}
	return text
}
