package employee

import (
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

// ErrUnavailable marks a failed call to the employee directory service.
var ErrUnavailable = errors.New("employee search unavailable")

// Client proxies lookups to the remote employee directory. The upstream
// payload is relayed as-is; this layer adds only auth passthrough.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Search queries by name or position. bearerToken is the caller's own
// session token, forwarded so the directory can apply its own access rules.
func (c *Client) Search(ctx context.Context, searchType, query, bearerToken string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("type", searchType)
	params.Set("query", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request failed: %w", err)
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: malformed response", ErrUnavailable)
	}
	return json.RawMessage(raw), nil
}
