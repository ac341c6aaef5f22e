// Package github provides a client for the GitHub Actions REST API and an
// adapter exposing it as a source.MetadataSource.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ghtrace/src/source"
)

const (
	// APIBaseURL is the base URL for the GitHub REST API.
	APIBaseURL = "https://api.github.com"

	// PerPage is the page size requested on every listing call. 100 is
	// GitHub's maximum.
	PerPage = 100
)

// Client is a GitHub Actions API client. A zero token issues
// unauthenticated requests, which share a much smaller rate-limit budget.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new GitHub Actions client.
func NewClient(token string) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: APIBaseURL,
	}
}

// ListWorkflows fetches one page of a repository's workflow definitions.
func (c *Client) ListWorkflows(ctx context.Context, owner, repo string, page int) (*WorkflowsResponse, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/workflows?per_page=%d&page=%d",
		c.baseURL, owner, repo, PerPage, page)

	var out WorkflowsResponse
	if err := c.get(ctx, url, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWorkflowRuns fetches one page of a workflow's runs, most recent first.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo string, workflowID int64, page int) (*WorkflowRunsResponse, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/workflows/%d/runs?per_page=%d&page=%d",
		c.baseURL, owner, repo, workflowID, PerPage, page)

	var out WorkflowRunsResponse
	if err := c.get(ctx, url, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRunJobs fetches one page of a run's jobs.
func (c *Client) ListRunJobs(ctx context.Context, owner, repo string, runID int64, page int) (*WorkflowJobsResponse, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/runs/%d/jobs?per_page=%d&page=%d",
		c.baseURL, owner, repo, runID, PerPage, page)

	var out WorkflowJobsResponse
	if err := c.get(ctx, url, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJob fetches a single job, including its ordered step sequence.
func (c *Client) GetJob(ctx context.Context, owner, repo string, jobID int64) (*WorkflowJob, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/actions/jobs/%d", c.baseURL, owner, repo, jobID)

	var out WorkflowJob
	if err := c.get(ctx, url, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get issues a GET request and decodes the JSON response, mapping failures
// onto the source error taxonomy.
func (c *Client) get(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &source.TransientError{Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// classifyStatus maps a non-200 response onto the source error taxonomy.
// GitHub reports an exhausted rate limit as 403 with X-RateLimit-Remaining
// set to 0, and secondary limits as 429 with a Retry-After header.
func classifyStatus(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: GitHub API error 401: %s", source.ErrUnauthorized, string(body))

	case resp.StatusCode == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" || resp.Header.Get("Retry-After") != "" {
			return &source.RateLimitError{RetryAfter: retryAfter(resp)}
		}
		return fmt.Errorf("%w: GitHub API error 403: %s", source.ErrUnauthorized, string(body))

	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GitHub API error 404: %s", source.ErrNotFound, string(body))

	case resp.StatusCode == http.StatusTooManyRequests:
		return &source.RateLimitError{RetryAfter: retryAfter(resp)}

	case resp.StatusCode >= 500:
		return &source.TransientError{
			Cause: fmt.Errorf("GitHub API error %d: %s", resp.StatusCode, string(body)),
		}

	default:
		return fmt.Errorf("GitHub API error %d: %s", resp.StatusCode, string(body))
	}
}

// retryAfter reads the Retry-After or X-RateLimit-Reset hint, zero if absent.
func retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if s := resp.Header.Get("X-RateLimit-Reset"); s != "" {
		if reset, err := strconv.ParseInt(s, 10, 64); err == nil {
			if d := time.Until(time.Unix(reset, 0)); d > 0 {
				return d
			}
		}
	}
	return 0
}
