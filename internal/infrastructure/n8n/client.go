// Package n8n implements the runtime adapter against the n8n public REST API.
package n8n

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"driftline/internal/errs"
	"driftline/internal/ports"
)

// Client talks to one n8n instance. All requests carry the API key header and
// the configured timeout; paging of the workflow listing is handled here.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

var _ ports.RuntimeAdapter = (*Client)(nil)

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type workflowListPage struct {
	Data       []workflowSummary `json:"data"`
	NextCursor string            `json:"nextCursor"`
}

type workflowSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Active    bool       `json:"active"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

func (c *Client) GetWorkflows(ctx context.Context) ([]ports.RuntimeWorkflowSummary, error) {
	var out []ports.RuntimeWorkflowSummary
	cursor := ""

	for {
		endpoint := c.baseURL + "/api/v1/workflows?limit=100"
		if cursor != "" {
			endpoint += "&cursor=" + url.QueryEscape(cursor)
		}

		body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		var page workflowListPage
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, errs.Wrap(err, "decode workflow listing")
		}

		for _, wf := range page.Data {
			out = append(out, ports.RuntimeWorkflowSummary{
				ID:        wf.ID,
				Name:      wf.Name,
				Active:    wf.Active,
				UpdatedAt: wf.UpdatedAt,
			})
		}

		if page.NextCursor == "" {
			return out, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) GetWorkflow(ctx context.Context, id string) (map[string]any, error) {
	body, err := c.get(ctx, c.baseURL+"/api/v1/workflows/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var definition map[string]any
	if err := json.Unmarshal(body, &definition); err != nil {
		return nil, errs.Wrapf(err, "decode workflow %s", id)
	}

	// n8n wraps single-workflow responses in a data envelope on some
	// versions; unwrap when present.
	if data, ok := definition["data"].(map[string]any); ok && len(definition) == 1 {
		return data, nil
	}
	return definition, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.Wrap(err, "build request")
	}
	req.Header.Set("X-N8N-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrapf(ports.ErrRuntimeUnavailable, "%s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errs.Wrapf(ports.ErrRuntimeNotFound, "%s", endpoint)
	case resp.StatusCode >= 400:
		return nil, errs.Wrapf(ports.ErrRuntimeUnavailable, "%s: %s", endpoint, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, errs.Wrap(err, "read response body")
	}
	return body, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("n8n(%s)", c.baseURL)
}
