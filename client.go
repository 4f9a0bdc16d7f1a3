package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const serviceName = "Identity"

// DefaultMaxRetries bounds how often an idempotent read is retried.
const DefaultMaxRetries = 3

type Option func(c *Client) error

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client == nil {
			return errors.New("identity: nil http client")
		}
		c.hc = client
		return nil
	}
}

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) error {
		c.logger = logger.Named("identity")
		return nil
	}
}

// WithAccessToken sets the bearer token sent with every request.
func WithAccessToken(s string) Option {
	return func(c *Client) error {
		c.accessToken = s
		return nil
	}
}

// WithTenant selects the tenant the requests act upon.
func WithTenant(s string) Option {
	return func(c *Client) error {
		c.tenant = s
		return nil
	}
}

// WithMaxRetries sets how many times a failed GET is retried. Mutating
// requests are never retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) error {
		if n < 0 {
			return errors.Errorf("identity: negative max retries %d", n)
		}
		c.maxRetries = n
		return nil
	}
}

func withBackoff(b backoff.Backoff) Option {
	return func(c *Client) error {
		c.backoff = b
		return nil
	}
}

type Client struct {
	hc          *http.Client
	logger      *zap.SugaredLogger
	url         url.URL
	accessToken string
	tenant      string
	maxRetries  int
	backoff     backoff.Backoff
}

func Open(serviceURL url.URL, opts ...Option) (*Client, error) {
	if serviceURL.Scheme != "http" && serviceURL.Scheme != "https" {
		return nil, errors.Errorf("identity: invalid service url scheme %q", serviceURL.Scheme)
	}
	if serviceURL.Host == "" {
		return nil, errors.New("identity: invalid service url host")
	}
	c := Client{
		hc:         http.DefaultClient,
		logger:     zap.NewNop().Sugar(),
		url:        serviceURL,
		maxRetries: DefaultMaxRetries,
		backoff: backoff.Backoff{
			Min:    100 * time.Millisecond,
			Max:    5 * time.Second,
			Jitter: true,
		},
	}
	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (c *Client) WithOpts(opts ...Option) (*Client, error) {
	newC := *c
	for _, opt := range opts {
		if err := opt(&newC); err != nil {
			return nil, err
		}
	}
	return &newC, nil
}

func (c *Client) doGET(
	ctx context.Context,
	path string,
	params url.Values,
	output interface{}) (*http.Response, error) {
	bckoff := c.backoff
	for attempt := 0; ; attempt++ {
		req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
		if err != nil {
			return nil, err
		}

		startTime := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() == nil && attempt < c.maxRetries {
				c.logger.Warnf("Request error, will retry: %s", err)
				if err := sleepContext(ctx, bckoff.Duration()); err != nil {
					return nil, errors.Wrapf(err, "GET request to %s cancelled", req.URL)
				}
				continue
			}
			return nil, errors.Wrapf(err, "GET request to %s failed", req.URL)
		}

		err, ok := c.checkResponse(req, resp, startTime)
		if ok {
			_ = resp.Body.Close()
			if isRetryable(err) && attempt < c.maxRetries {
				c.logger.Warnf("Response error, will retry: %s", err)
				if err := sleepContext(ctx, bckoff.Duration()); err != nil {
					return resp, errors.Wrapf(err, "GET request to %s cancelled", req.URL)
				}
				continue
			}
			return resp, err
		}

		err = decodeResponseAsJSON(resp, resp.Body, output)
		_ = resp.Body.Close()
		if err != nil {
			if attempt < c.maxRetries {
				c.logger.Warnf("Response error, will retry: %s", err)
				if err := sleepContext(ctx, bckoff.Duration()); err != nil {
					return resp, errors.Wrapf(err, "GET request to %s cancelled", req.URL)
				}
				continue
			}
			return resp, err
		}
		return resp, nil
	}
}

// doJSON sends a single mutating request. Failures are returned as is.
func (c *Client) doJSON(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	input interface{},
	output interface{}) (*http.Response, error) {
	var body io.Reader
	if input != nil {
		b, err := json.Marshal(input)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, params, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	startTime := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request to %s failed", method, req.URL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	err, ok := c.checkResponse(req, resp, startTime)
	if ok {
		return resp, err
	}
	return resp, decodeResponseAsJSON(resp, resp.Body, output)
}

func (c *Client) newRequest(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	body io.Reader) (*http.Request, error) {
	url := c.formatURL(path, params)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if k := c.accessToken; k != "" {
		req.Header.Set("Authorization", "Bearer "+k)
	}
	if t := c.tenant; t != "" {
		req.Header.Set("__tenant", t)
	}

	return req, nil
}

// formatURL joins the already escaped path to the service URL.
func (c *Client) formatURL(path string, params url.Values) string {
	u := c.url
	u.RawPath = "/api" + path
	p, err := url.PathUnescape(u.RawPath)
	if err != nil {
		p, u.RawPath = u.RawPath, ""
	}
	u.Path = p
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) checkResponse(
	req *http.Request,
	resp *http.Response,
	startTime time.Time) (error, bool) {
	c.logger.Infow(req.Method,
		"url", req.URL.String(),
		"time", time.Since(startTime).Seconds(),
		"status", resp.StatusCode)
	return errorFromResponse(req, resp, serviceName)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
