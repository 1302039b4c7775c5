package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ochronus/goustream/internal/services/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultBaseURL  = "https://api.video.ibm.com"
	DefaultTokenURL = "https://video.ibm.com/oauth2/token"
	defaultTimeout  = 30 * time.Second

	// maxErrorBody bounds how much of a failed response ends up in a RequestError.
	maxErrorBody = 4 << 10
)

// Credentials selects how requests are authorized. A non-empty AccessToken
// is used as is; otherwise a token is obtained with the client credentials
// grant and refreshed when it expires.
type Credentials struct {
	AccessToken  string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// TokenSource builds the oauth2 token source for creds.
func (c Credentials) TokenSource(ctx context.Context) oauth2.TokenSource {
	if c.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: c.AccessToken,
			TokenType:   "Bearer",
		})
	}

	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := &clientcredentials.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       c.Scopes,
	}
	return cfg.TokenSource(ctx)
}

// HTTPClient returns an *http.Client that authorizes every request with creds.
func HTTPClient(ctx context.Context, creds Credentials, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := oauth2.NewClient(ctx, creds.TokenSource(ctx))
	client.Timeout = timeout
	return client
}

// Client is the Requester used against the live API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
	logger     logrus.FieldLogger
}

var _ Requester = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithRetry replaces the retry policy for idempotent requests.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for baseURL. httpClient is expected to add
// authorization itself (see HTTPClient).
func NewClient(baseURL string, httpClient *http.Client, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthRequest performs one authenticated call and decodes the JSON object it
// returns. path may be relative to the base URL or absolute, which is how
// paging locators arrive. GET, PUT and DELETE are retried on transient
// statuses; POST is not.
func (c *Client) AuthRequest(ctx context.Context, method, path string, form url.Values) (Response, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	cfg := c.retry
	if !idempotent(method) {
		cfg.MaxAttempts = 1
	}

	var result Response
	err = retry.Do(ctx, cfg, func(attempt int) error {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"method":  method,
				"url":     target,
				"attempt": attempt + 1,
			}).Debug("retrying request")
		}

		resp, err := c.do(ctx, method, target, form)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) do(ctx context.Context, method, target string, form url.Values) (Response, error) {
	var body io.Reader
	if len(form) > 0 {
		if method == http.MethodPost || method == http.MethodPut {
			body = strings.NewReader(form.Encode())
		} else {
			target = withQuery(target, form)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	c.logger.WithFields(logrus.Fields{"method": method, "url": target}).Debug("api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		reqErr := &RequestError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(snippet)),
			RetryAfter: retry.RetryAfter(resp.Header.Get("Retry-After"), 0),
		}
		if retry.RetryableStatus(resp.StatusCode) {
			return nil, &retry.RetryableError{Err: reqErr, After: reqErr.RetryAfter}
		}
		return nil, reqErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Response{}, nil
	}

	var result Response
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%s %s: decoding response: %w", method, target, err)
	}
	if result == nil {
		result = Response{}
	}
	return result, nil
}

func (c *Client) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty request path")
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if _, err := url.Parse(path); err != nil {
			return "", fmt.Errorf("invalid request url %q: %w", path, err)
		}
		return path, nil
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/"), nil
}

func withQuery(target string, form url.Values) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + form.Encode()
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}
