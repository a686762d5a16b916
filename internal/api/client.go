// Package api is the terminal's client for the ComandaWeb REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errors returned by the client.
var (
	ErrNotAuthenticated = errors.New("user not authenticated")
	ErrUnauthorized     = errors.New("session expired, log in again")
	ErrTimeout          = errors.New("request timed out, try again")
	ErrNoRoutePrefix    = errors.New("backend answered no known route prefix")
)

const defaultForbiddenMessage = "access denied: you do not have permission for this action"

// ForbiddenError is a 403 from the backend's role check.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string { return e.Message }

// Error is any other non-2xx answer.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// TokenSource yields the bearer token of a live session, or an error when
// there is none. Satisfied by *auth.Manager.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to one backend. The route prefix is fixed once by Negotiate or
// SetPrefix and never negotiated again per call.
type Client struct {
	baseURL        string
	prefix         string
	timeout        time.Duration
	http           *http.Client
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
}

// New creates a Client. tokens may be set later with SetTokenSource.
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
		tokens:  tokens,
	}
}

func (c *Client) SetTokenSource(ts TokenSource) { c.tokens = ts }

// OnUnauthorized registers the hook run when an authenticated call gets a 401.
func (c *Client) OnUnauthorized(fn func(ctx context.Context)) { c.onUnauthorized = fn }

// SetPrefix fixes the route prefix ("/sistema" or ""). "/" means no prefix.
func (c *Client) SetPrefix(p string) {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	c.prefix = p
}

func (c *Client) Prefix() string { return c.prefix }

// prefixCandidates are tried in order: namespaced first, then bare.
var prefixCandidates = []string{"/sistema", ""}

// Negotiate queries the backend once for its order route and keeps the first
// prefix that does not answer 404.
func (c *Client) Negotiate(ctx context.Context) (string, error) {
	var lastErr error
	for _, p := range prefixCandidates {
		status, err := c.tryRoute(ctx, c.baseURL+p+"/pedidos")
		if err != nil {
			lastErr = err
			continue
		}
		if status != http.StatusNotFound {
			c.prefix = p
			return p, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %w", ErrNoRoutePrefix, lastErr)
	}
	return "", ErrNoRoutePrefix
}

func (c *Client) tryRoute(ctx context.Context, url string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return resp.StatusCode, nil
}

// do is the authenticated fetch: no token means no request at all.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.tokens == nil {
		return ErrNotAuthenticated
	}
	token, err := c.tokens.Token(ctx)
	if err != nil || token == "" {
		return ErrNotAuthenticated
	}
	return c.send(ctx, method, c.baseURL+c.prefix+path, token, body, out)
}

func (c *Client) send(ctx context.Context, method, url, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && token != "":
		log.Printf("WARNING: %s %s answered 401, forcing logout", method, url)
		if c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		msg := errorMessage(data)
		if msg == "" {
			msg = defaultForbiddenMessage
		}
		return &ForbiddenError{Message: msg}
	case resp.StatusCode >= 300:
		return &Error{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// errorMessage extracts {"error": ...} or {"message": ...} from a failed body.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}
