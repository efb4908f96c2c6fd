// Package github implements remote.Store on top of the repository contents
// REST API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/remote"
)

const (
	DefaultBaseURL = "https://api.github.com"
	apiVersion     = "2022-11-28"
	maxErrorBody   = 64 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	Owner             string
	Repo              string
	Token             string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to the contents API of a single repository.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ remote.Store = (*Client)(nil)

// New creates a Client. A zero RequestsPerSecond disables pacing.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
	}
}

type contentResponse struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type blobResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type putBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type apiError struct {
	Message string `json:"message"`
}

// Get fetches path at branch. Files too large for inline content are read
// through the blob endpoint.
func (c *Client) Get(ctx context.Context, path, branch string) (*remote.File, error) {
	target := c.contentsURL(path)
	if branch != "" {
		target += "?" + url.Values{"ref": {branch}}.Encode()
	}
	var cr contentResponse
	if err := c.do(ctx, http.MethodGet, target, path, nil, &cr); err != nil {
		return nil, err
	}
	if cr.Type != "" && cr.Type != "file" {
		return nil, fmt.Errorf("%w: %s is a %s, not a file", apperr.ErrFormat, path, cr.Type)
	}

	if cr.Encoding == "none" {
		var br blobResponse
		blobURL := fmt.Sprintf("%s/repos/%s/%s/git/blobs/%s", c.cfg.BaseURL,
			url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo), cr.SHA)
		if err := c.do(ctx, http.MethodGet, blobURL, path, nil, &br); err != nil {
			return nil, err
		}
		cr.Content, cr.Encoding = br.Content, br.Encoding
	}

	return &remote.File{
		Path:     path,
		Content:  cr.Content,
		Encoding: cr.Encoding,
		Version:  cr.SHA,
	}, nil
}

// Put writes req.Content and returns the new blob sha.
func (c *Client) Put(ctx context.Context, req remote.PutRequest) (string, error) {
	body, err := json.Marshal(putBody{
		Message: req.Message,
		Content: base64.StdEncoding.EncodeToString(req.Content),
		Branch:  req.Branch,
		SHA:     req.Version,
	})
	if err != nil {
		return "", fmt.Errorf("github: marshal put body: %w", err)
	}
	var pr putResponse
	if err := c.do(ctx, http.MethodPut, c.contentsURL(req.Path), req.Path, body, &pr); err != nil {
		var ce *apperr.ConflictError
		if errors.As(err, &ce) {
			ce.Expected = req.Version
		}
		return "", err
	}
	return pr.Content.SHA, nil
}

// Exists reports whether path exists on branch.
func (c *Client) Exists(ctx context.Context, path, branch string) (bool, error) {
	_, err := c.Get(ctx, path, branch)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (c *Client) contentsURL(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.cfg.BaseURL,
		url.PathEscape(c.cfg.Owner), url.PathEscape(c.cfg.Repo), strings.Join(parts, "/"))
}

func (c *Client) do(ctx context.Context, method, rawURL, path string, body []byte, out any) error {
	if c.cfg.Token == "" {
		return fmt.Errorf("%w: no access token configured", apperr.ErrAuth)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrNetwork, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", "newsdesk")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", apperr.ErrNetwork, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("github: request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("took", time.Since(start)))

	if resp.StatusCode >= 300 {
		return statusError(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response for %s: %v", apperr.ErrFormat, path, err)
	}
	return nil
}

func statusError(resp *http.Response, path string) error {
	var ae apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &ae) != nil || ae.Message == "" {
		ae.Message = strings.TrimSpace(string(raw))
	}
	msg := ae.Message
	if msg == "" {
		msg = resp.Status
	}

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", apperr.ErrAuth, msg)
	case code == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || strings.Contains(strings.ToLower(msg), "rate limit") {
			return fmt.Errorf("%w: %s", apperr.ErrRateLimit, msg)
		}
		return fmt.Errorf("%w: %s", apperr.ErrAuth, msg)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", apperr.ErrRateLimit, msg)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %s", apperr.ErrNotFound, path, msg)
	case code == http.StatusConflict:
		return &apperr.ConflictError{Path: path, Message: msg}
	case code == http.StatusUnprocessableEntity && strings.Contains(msg, "sha"):
		return &apperr.ConflictError{Path: path, Message: msg}
	case code >= 500:
		return fmt.Errorf("%w: %s: %s", apperr.ErrNetwork, resp.Status, msg)
	default:
		return fmt.Errorf("github: %s %s: %s", resp.Status, path, msg)
	}
}
