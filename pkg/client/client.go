// Package client provides a Go client for the delegation deployments API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a deployments API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new client. apiKey is only needed to trigger runs.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			// triggering a run waits for the whole validation
			Timeout: 5 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Versions lists registry versions
type Versions struct {
	Versions []string `json:"versions"`
	Latest   string   `json:"latest"`
}

// VersionDetail describes one registry version
type VersionDetail struct {
	Version string         `json:"version"`
	Latest  bool           `json:"latest"`
	Chains  []ChainSummary `json:"chains"`
}

// ChainSummary is a chain within a version
type ChainSummary struct {
	ChainID   uint64 `json:"chainId"`
	Key       string `json:"key,omitempty"`
	Name      string `json:"name"`
	Contracts int    `json:"contracts"`
}

// Deployment is the contract set of a version on one chain
type Deployment struct {
	Version   string     `json:"version"`
	ChainID   uint64     `json:"chainId"`
	ChainName string     `json:"chainName"`
	Contracts []Contract `json:"contracts"`
}

// Contract is a named address
type Contract struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Chain is a chain catalog entry
type Chain struct {
	ChainID        uint64   `json:"chainId"`
	Key            string   `json:"key"`
	Name           string   `json:"name"`
	RPCURL         string   `json:"rpcUrl"`
	Overridden     bool     `json:"overridden"`
	Testnet        bool     `json:"testnet"`
	CurrencySymbol string   `json:"currencySymbol"`
	Versions       []string `json:"versions"`
}

// Run is a recorded validation run
type Run struct {
	ID              string     `json:"id"`
	Version         string     `json:"version"`
	Passed          bool       `json:"passed"`
	TriggeredBy     string     `json:"triggeredBy"`
	ChainsFailed    int        `json:"chainsFailed"`
	ContractsFailed int        `json:"contractsFailed"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      time.Time  `json:"finishedAt"`
	DurationMS      int64      `json:"durationMs"`
	Chains          []ChainRun `json:"chains,omitempty"`
}

// ChainRun is the outcome of one chain in a run
type ChainRun struct {
	ChainID    uint64        `json:"chainId"`
	Name       string        `json:"name"`
	RPCURL     string        `json:"rpcUrl,omitempty"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	DurationMS int64         `json:"durationMs"`
	Contracts  []ContractRun `json:"contracts"`
}

// ContractRun is the outcome of one contract check
type ContractRun struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	CodeSize int    `json:"codeSize,omitempty"`
	CodeHash string `json:"codeHash,omitempty"`
}

// ListRunsOptions filters and pages run listings
type ListRunsOptions struct {
	Version string
	Passed  *bool
	Limit   int
	Cursor  string
}

// ListRunsResponse is the response for listing runs
type ListRunsResponse struct {
	Data       []Run      `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination contains pagination info
type Pagination struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"hasMore"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Identity describes the caller as seen by the server
type Identity struct {
	AuthRequired bool   `json:"authRequired"`
	KeyID        string `json:"keyId,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Health checks the server health endpoint
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// WhoAmI checks the configured API key against the server
func (c *Client) WhoAmI(ctx context.Context) (*Identity, error) {
	var resp Identity
	if err := c.get(ctx, "/api/v1/auth/whoami", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Versions lists registry versions
func (c *Client) Versions(ctx context.Context) (*Versions, error) {
	var resp Versions
	if err := c.get(ctx, "/api/v1/versions", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version gets one version; "latest" resolves to the highest
func (c *Client) Version(ctx context.Context, version string) (*VersionDetail, error) {
	var resp VersionDetail
	if err := c.get(ctx, "/api/v1/versions/"+url.PathEscape(version), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Deployment gets the contracts of a version on a chain (id or key)
func (c *Client) Deployment(ctx context.Context, version, chain string) (*Deployment, error) {
	var resp Deployment
	path := fmt.Sprintf("/api/v1/versions/%s/chains/%s", url.PathEscape(version), url.PathEscape(chain))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chains lists the chain catalog
func (c *Client) Chains(ctx context.Context) ([]Chain, error) {
	var resp struct {
		Data []Chain `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/chains", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Chain gets one catalog entry by id or key
func (c *Client) Chain(ctx context.Context, chain string) (*Chain, error) {
	var resp Chain
	if err := c.get(ctx, "/api/v1/chains/"+url.PathEscape(chain), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListRuns lists recorded runs, newest first
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOptions) (*ListRunsResponse, error) {
	q := url.Values{}
	if opts.Version != "" {
		q.Set("version", opts.Version)
	}
	if opts.Passed != nil {
		q.Set("passed", strconv.FormatBool(*opts.Passed))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		q.Set("cursor", opts.Cursor)
	}

	path := "/api/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListRunsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRun gets a run with its chain results
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var resp Run
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LatestRun gets the newest run, optionally for one version
func (c *Client) LatestRun(ctx context.Context, version string) (*Run, error) {
	path := "/api/v1/runs/latest"
	if version != "" {
		path += "?version=" + url.QueryEscape(version)
	}

	var resp Run
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TriggerRun starts a validation on the server and waits for its result
func (c *Client) TriggerRun(ctx context.Context, version string) (*Run, error) {
	var resp Run
	body := map[string]string{}
	if version != "" {
		body["version"] = version
	}
	if err := c.post(ctx, "/api/v1/runs", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error.Code == "" {
		return &APIError{Status: resp.StatusCode, Code: "HTTP_" + strconv.Itoa(resp.StatusCode), Message: resp.Status}
	}
	errResp.Error.Status = resp.StatusCode
	return &errResp.Error
}
