package wanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tcsc-project/tcsc/pkg/clock"
	"github.com/tcsc-project/tcsc/pkg/errors"
	"github.com/tcsc-project/tcsc/pkg/logging"
)

const defaultHTTPTimeout = 30 * time.Second

// Credentials are exchanged for an access token at {URL}/api/session
type Credentials struct {
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type ClientOptions struct {
	// AccessKey is a static bearer token; it takes precedence over Credentials
	AccessKey   string
	Credentials *Credentials
	HTTPClient  *http.Client
	Clock       clock.Clock
}

// Client talks to the check service. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	accessKey   string
	credentials *Credentials
	clock       clock.Clock
	logger      logging.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(baseURL string, options ClientOptions, logger logging.Logger) (*Client, error) {
	normalizedURL, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	if options.Credentials != nil {
		if err := options.Credentials.validate(); err != nil {
			return nil, err
		}
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Client{
		baseURL:     normalizedURL,
		httpClient:  httpClient,
		accessKey:   options.AccessKey,
		credentials: options.Credentials,
		clock:       clk,
		logger:      logger,
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.NewValidationError("service URL is required", nil)
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", errors.NewValidationError("invalid service URL", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.NewValidationError(fmt.Sprintf("invalid service URL: %s", raw), nil)
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""

	return strings.TrimSuffix(parsed.String(), "/"), nil
}

// Fetch issues a GET and returns the response whatever its status
func (c *Client) Fetch(ctx context.Context, endpoint string) (*Response, error) {
	return c.request(ctx, http.MethodGet, endpoint, nil)
}

// Submit POSTs payload as JSON and returns the response whatever its status
func (c *Client) Submit(ctx context.Context, endpoint string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewInternalError("could not encode request body", err)
	}
	return c.request(ctx, http.MethodPost, endpoint, body)
}

func (c *Client) request(ctx context.Context, method, endpoint string, body []byte) (*Response, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	target := c.baseURL + endpoint

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.NewConnectionError(fmt.Sprintf("could not build request for %q", target), err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debugf("%s REQUEST\n\tURL: %s\n\theaders: %s\n\tdata: %s",
		method, target, redactHeaders(req.Header), string(body))
	resp, err := c.do(req)
	if err != nil {
		c.logger.Debugf("%s %s failed: %v", method, target, err)
		return nil, errors.NewConnectionError(fmt.Sprintf("error connecting to %q", target), err)
	}

	c.logger.Debugf("%s RESPONSE\n\tURL: %s\n\thttp status: %d\n\tresponse: %s",
		method, target, resp.StatusCode, string(resp.Body))
	return resp, nil
}

func (c *Client) do(req *http.Request) (*Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

func redactHeaders(h http.Header) string {
	parts := make([]string, 0, len(h))
	for key, values := range h {
		value := strings.Join(values, ",")
		if strings.EqualFold(key, "Authorization") {
			value = "Bearer ***"
		}
		parts = append(parts, key+": "+value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := c.Fetch(ctx, endpoint)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return resp.StatusError()
	}
	return resp.Decode(out)
}

// Catalog returns the check catalog
func (c *Client) Catalog(ctx context.Context) (*Catalog, error) {
	var catalog Catalog
	if err := c.getJSON(ctx, CatalogPath, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Executions lists the executions known to the service
func (c *Client) Executions(ctx context.Context) (*ExecutionList, error) {
	var list ExecutionList
	if err := c.getJSON(ctx, ExecutionsPath, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Execution returns a single execution
func (c *Client) Execution(ctx context.Context, executionID string) (*Execution, error) {
	var execution Execution
	if err := c.getJSON(ctx, ExecutionPath(executionID), &execution); err != nil {
		return nil, err
	}
	return &execution, nil
}

// StartExecution submits an execution request. Unlike Submit every
// non-2xx answer is an error.
func (c *Client) StartExecution(ctx context.Context, request ExecutionRequest) error {
	resp, err := c.Submit(ctx, StartExecutionPath, request)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return resp.StatusError()
	}
	return nil
}

// Health returns the health document; "database" is "pass" when healthy
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := c.getJSON(ctx, HealthPath, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Readiness returns the readiness document; "ready" is true when ready
func (c *Client) Readiness(ctx context.Context) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := c.getJSON(ctx, ReadinessPath, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Operational reports whether the service is healthy and ready.
// Any failure to reach it counts as not operational.
func (c *Client) Operational(ctx context.Context) bool {
	health, err := c.Health(ctx)
	if err != nil {
		c.logger.Debugf("health check failed: %v", err)
		return false
	}
	if health["database"] != "pass" {
		return false
	}
	ready, err := c.Readiness(ctx)
	if err != nil {
		c.logger.Debugf("readiness check failed: %v", err)
		return false
	}
	return ready["ready"] == true
}
