/* Copyright (c) 2025 Trackmart Authors
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"

    "github.com/cenkalti/backoff/v4"
    "github.com/example/trackmart/internal/config"
    "github.com/rs/zerolog"
)

// Client talks to the Jira Cloud REST API (v3) with basic auth
// (email + API token). Every call carries the configured timeout.
type Client struct {
    baseURL string
    email   string
    token   string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: strings.TrimRight(cfg.JiraBaseURL, "/"),
        email:   cfg.JiraEmail,
        token:   cfg.JiraAPIToken,
        http:    &http.Client{Timeout: cfg.HTTPTimeout},
        log:     log,
    }
}

func (c *Client) apiURL(path string, q url.Values) string {
    u := c.baseURL + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

type httpStatusError struct {
    status int
    body   string
}

func (e *httpStatusError) Error() string {
    return fmt.Sprintf("jira api status=%d body=%s", e.status, e.body)
}

func (c *Client) doGET(ctx context.Context, u string, out any) error {
    if c.baseURL == "" { return errors.New("jira: empty baseURL") }
    op := func() error {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
        if err != nil { return backoff.Permanent(err) }
        req.Header.Set("Accept", "application/json")
        req.SetBasicAuth(c.email, c.token)
        resp, err := c.http.Do(req)
        if err != nil { return err }
        defer resp.Body.Close()
        if resp.StatusCode >= 300 {
            b, _ := io.ReadAll(resp.Body)
            herr := &httpStatusError{status: resp.StatusCode, body: strings.TrimSpace(string(b))}
            // retry on 429/5xx only
            if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 { return herr }
            return backoff.Permanent(herr)
        }
        if err := json.NewDecoder(resp.Body).Decode(out); err != nil { return backoff.Permanent(err) }
        return nil
    }
    bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
    return backoff.Retry(op, bo)
}

// ListProjects returns all projects visible to the credentials.
func (c *Client) ListProjects(ctx context.Context) ([]map[string]any, error) {
    var out []map[string]any
    if err := c.doGET(ctx, c.apiURL("/rest/api/3/project", nil), &out); err != nil { return nil, err }
    return out, nil
}

func (c *Client) ListIssueTypes(ctx context.Context) ([]map[string]any, error) {
    var out []map[string]any
    if err := c.doGET(ctx, c.apiURL("/rest/api/3/issuetype", nil), &out); err != nil { return nil, err }
    return out, nil
}

func (c *Client) ListStatuses(ctx context.Context) ([]map[string]any, error) {
    var out []map[string]any
    if err := c.doGET(ctx, c.apiURL("/rest/api/3/status", nil), &out); err != nil { return nil, err }
    return out, nil
}

// SearchIssues fetches one page of a project's issues with embedded
// worklogs. Callers advance startAt by the page length until accumulated
// results reach total or a page comes back empty.
func (c *Client) SearchIssues(ctx context.Context, projectKey string, startAt, max int) ([]map[string]any, int, error) {
    if projectKey == "" { return nil, 0, errors.New("jira: empty project key") }
    q := url.Values{}
    q.Set("jql", fmt.Sprintf("project = %s ORDER BY updated DESC", projectKey))
    q.Set("expand", "changelog")
    q.Set("fields", "*all")
    q.Set("startAt", fmt.Sprint(startAt))
    q.Set("maxResults", fmt.Sprint(max))
    var out struct {
        Issues []map[string]any `json:"issues"`
        Total  int              `json:"total"`
    }
    if err := c.doGET(ctx, c.apiURL("/rest/api/3/search/jql", q), &out); err != nil { return nil, 0, err }
    return out.Issues, out.Total, nil
}

// FetchUser resolves a full user payload by account id.
func (c *Client) FetchUser(ctx context.Context, accountID string) (map[string]any, error) {
    if accountID == "" { return nil, errors.New("jira: empty account id") }
    q := url.Values{}
    q.Set("accountId", accountID)
    var out map[string]any
    if err := c.doGET(ctx, c.apiURL("/rest/api/3/user", q), &out); err != nil { return nil, err }
    return out, nil
}

// CountProjects probes the projects endpoint, used by the healthcheck.
func (c *Client) CountProjects(ctx context.Context) (int, error) {
    projects, err := c.ListProjects(ctx)
    if err != nil { return 0, err }
    return len(projects), nil
}
