// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gerrors "github.com/codeguardian-bot/codeguardian/pkg/errors"
	"github.com/codeguardian-bot/codeguardian/pkg/observability"
	"github.com/codeguardian-bot/codeguardian/pkg/version"
)

const (
	// DefaultGitHubAPI is the public GitHub REST endpoint.
	DefaultGitHubAPI = "https://api.github.com"

	perPage      = 100
	maxFilePages = 30 // GitHub stops listing PR files at 3000
	maxErrorBody = 4 << 10
)

// GitHubOptions configures the GitHub adapter.
type GitHubOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     observability.Logger
	Clock      func() time.Time
}

// GitHub implements Upstream and Commenter over the GitHub REST API.
type GitHub struct {
	baseURL string
	token   string
	client  *http.Client
	logger  observability.Logger
	now     func() time.Time
}

var (
	_ Upstream  = (*GitHub)(nil)
	_ Commenter = (*GitHub)(nil)
)

// NewGitHub creates a GitHub adapter. The base URL must be http(s) and may
// not point into a private network.
func NewGitHub(opts GitHubOptions) (*GitHub, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGitHubAPI
	}
	if err := validateBaseURL(opts.BaseURL); err != nil {
		return nil, gerrors.ConfigError("invalid github api url", err)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &GitHub{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		client:  opts.HTTPClient,
		logger:  opts.Logger.With(observability.String("component", "github")),
		now:     opts.Clock,
	}, nil
}

type ghUser struct {
	Login string `json:"login"`
}

type ghRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

type ghPull struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	User      ghUser    `json:"user"`
	Head      ghRef     `json:"head"`
	Base      ghRef     `json:"base"`
	CreatedAt time.Time `json:"created_at"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

type ghFile struct {
	Filename         string `json:"filename"`
	PreviousFilename string `json:"previous_filename"`
	Status           string `json:"status"`
	Additions        int    `json:"additions"`
	Deletions        int    `json:"deletions"`
	Patch            string `json:"patch"`
}

type ghComment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User ghUser `json:"user"`
}

// PullRequest fetches PR metadata.
func (g *GitHub) PullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	var pr ghPull
	if err := g.getJSON(ctx, fmt.Sprintf("/repos/%s/pulls/%d", repo, number), &pr); err != nil {
		return nil, err
	}

	out := &PullRequest{
		Number:    pr.Number,
		Title:     pr.Title,
		Body:      pr.Body,
		Author:    pr.User.Login,
		State:     pr.State,
		BaseSHA:   pr.Base.SHA,
		HeadSHA:   pr.Head.SHA,
		BaseRef:   pr.Base.Ref,
		HeadRef:   pr.Head.Ref,
		HTMLURL:   pr.HTMLURL,
		CreatedAt: pr.CreatedAt,
	}
	for _, l := range pr.Labels {
		out.Labels = append(out.Labels, l.Name)
	}
	return out, nil
}

// ChangedFiles lists the files of a PR, following pagination.
func (g *GitHub) ChangedFiles(ctx context.Context, repo string, number int) ([]File, error) {
	var files []File
	for page := 1; page <= maxFilePages; page++ {
		var batch []ghFile
		path := fmt.Sprintf("/repos/%s/pulls/%d/files?per_page=%d&page=%d", repo, number, perPage, page)
		if err := g.getJSON(ctx, path, &batch); err != nil {
			return nil, err
		}
		for _, f := range batch {
			files = append(files, File{
				Path:         f.Filename,
				PreviousPath: f.PreviousFilename,
				Status:       f.Status,
				Additions:    f.Additions,
				Deletions:    f.Deletions,
				Patch:        f.Patch,
			})
		}
		if len(batch) < perPage {
			break
		}
	}
	return files, nil
}

// FileContent returns raw file bytes at ref.
func (g *GitHub) FileContent(ctx context.Context, repo, path, ref string) ([]byte, error) {
	apiPath := fmt.Sprintf("/repos/%s/contents/%s?ref=%s", repo, escapePath(path), url.QueryEscape(ref))
	resp, err := g.do(ctx, http.MethodGet, apiPath, nil, "application/vnd.github.raw+json")
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gerrors.TransientError("read file content", err)
	}
	return data, nil
}

// CoverageReport returns a coverage report committed to the repository.
func (g *GitHub) CoverageReport(ctx context.Context, repo, path, ref string) ([]byte, error) {
	data, err := g.FileContent(ctx, repo, path, ref)
	if err != nil {
		return nil, fmt.Errorf("coverage report %s: %w", path, err)
	}
	return data, nil
}

// UpsertComment edits the issue comment that contains marker, or creates a
// new comment when none does.
func (g *GitHub) UpsertComment(ctx context.Context, repo string, number int, marker, body string) error {
	id, err := g.findComment(ctx, repo, number, marker)
	if err != nil {
		return err
	}

	payload := map[string]string{"body": body}
	if id != 0 {
		g.logger.Debug("updating review comment", observability.Any("comment_id", id))
		resp, err := g.do(ctx, http.MethodPatch, fmt.Sprintf("/repos/%s/issues/comments/%d", repo, id), payload, "")
		if err != nil {
			return err
		}
		drainAndClose(resp.Body)
		return nil
	}

	resp, err := g.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number), payload, "")
	if err != nil {
		return err
	}
	drainAndClose(resp.Body)
	return nil
}

func (g *GitHub) findComment(ctx context.Context, repo string, number int, marker string) (int64, error) {
	for page := 1; ; page++ {
		var batch []ghComment
		path := fmt.Sprintf("/repos/%s/issues/%d/comments?per_page=%d&page=%d", repo, number, perPage, page)
		if err := g.getJSON(ctx, path, &batch); err != nil {
			return 0, err
		}
		for _, c := range batch {
			if strings.Contains(c.Body, marker) {
				return c.ID, nil
			}
		}
		if len(batch) < perPage {
			return 0, nil
		}
	}
}

func (g *GitHub) getJSON(ctx context.Context, path string, out any) error {
	resp, err := g.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return gerrors.TransientError("decode "+trimQuery(path), err)
	}
	return nil
}

// do performs one request and maps non-2xx responses to typed errors. The
// caller owns the returned body.
func (g *GitHub) do(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if accept == "" {
		accept = "application/vnd.github+json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, gerrors.TransientError(fmt.Sprintf("%s %s", method, trimQuery(path)), err)
	}

	g.logger.Debug("github response",
		observability.String("method", method),
		observability.String("path", trimQuery(path)),
		observability.Int("status", resp.StatusCode))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer drainAndClose(resp.Body)
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return nil, g.statusError(method, path, resp, strings.TrimSpace(string(msg)))
}

// statusError maps an unsuccessful response to the error taxonomy.
func (g *GitHub) statusError(method, path string, resp *http.Response, body string) error {
	what := fmt.Sprintf("%s %s: status %d", method, trimQuery(path), resp.StatusCode)
	if body != "" {
		what += ": " + body
	}

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized:
		return gerrors.FatalError("authentication failed", errors.New(what))
	case code == http.StatusNotFound:
		return gerrors.FatalError(what, ErrNotFound)
	case code == http.StatusTooManyRequests:
		return &gerrors.RateLimitError{StatusCode: code, RetryAfter: g.retryAfter(resp.Header), Message: what}
	case code == http.StatusForbidden && isRateLimited(resp.Header, body):
		return &gerrors.RateLimitError{StatusCode: code, RetryAfter: g.retryAfter(resp.Header), Message: what}
	case code >= 500:
		return gerrors.TransientError(what, nil)
	default:
		return gerrors.FatalError(what, nil)
	}
}

func isRateLimited(h http.Header, body string) bool {
	if h.Get("Retry-After") != "" || h.Get("X-RateLimit-Remaining") == "0" {
		return true
	}
	return strings.Contains(strings.ToLower(body), "rate limit")
}

// retryAfter reads the wait hint from Retry-After (seconds) or
// X-RateLimit-Reset (unix epoch seconds).
func (g *GitHub) retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if wait := time.Unix(epoch, 0).Sub(g.now()); wait > 0 {
				return wait
			}
		}
	}
	return 0
}

func escapePath(p string) string {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func trimQuery(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
