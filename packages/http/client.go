package http

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultConnectTimeout is the connect timeout of requests created by a Client
	DefaultConnectTimeout = 30 * time.Second
)

// Client creates Requests that share default settings. Every Request still
// gets its own connection handle; a Client holds no connection itself, so it
// may be shared between goroutines.
type Client struct {
	connectTimeout time.Duration
	followRedirect bool
	maxRedirects   int
	cookies        bool
	validateSSL    bool
	proxyURL       string
	baseDir        string
	verbose        bool
	defaultHeaders map[string]string
	limiter        *rate.Limiter
	log            zerolog.Logger
	metrics        *Metrics
	newConn        func() Conn
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		connectTimeout: DefaultConnectTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
		log:            zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithConnectTimeout sets the connect timeout. Requests carry whole
// seconds, so any fraction is rounded up; 0 waits indefinitely.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

// WithCookies turns on cookie capture for every created request.
func WithCookies(enabled bool) ClientOption {
	return func(c *Client) {
		c.cookies = enabled
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithUploadDir restricts "@path" file uploads to dir.
func WithUploadDir(dir string) ClientOption {
	return func(c *Client) {
		c.baseDir = dir
	}
}

// WithRateLimit caps the number of hops per second across all requests of
// the client. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithVerbose(verbose bool) ClientOption {
	return func(c *Client) {
		c.verbose = verbose
	}
}

func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

func WithClientMetrics(m *Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithConnFactory replaces the NetConn used for new requests.
func WithConnFactory(f func() Conn) ClientOption {
	return func(c *Client) {
		c.newConn = f
	}
}

func (c *Client) conn() Conn {
	if c.newConn != nil {
		return c.newConn()
	}
	return NewNetConn(
		WithConnProxy(c.proxyURL),
		WithConnValidateSSL(c.validateSSL),
		WithConnRateLimiter(c.limiter),
		WithConnLogger(c.log),
		WithConnBaseDir(c.baseDir),
	)
}

// NewRequest creates a request with the client's defaults applied. An empty
// method means GET; an empty rawURL leaves the URL unset.
func (c *Client) NewRequest(method, rawURL string) (*Request, error) {
	if method == "" {
		method = MethodGet.String()
	}
	opts := []RequestOption{
		WithConn(c.conn()),
		WithMethod(method),
		WithLogger(c.log),
		WithMetrics(c.metrics),
	}
	if rawURL != "" {
		opts = append(opts, WithURL(rawURL))
	}

	req, err := NewRequest(opts...)
	if err != nil {
		return nil, err
	}

	if err := req.AddHeaders(c.defaultHeaders); err != nil {
		_ = req.Close()
		return nil, err
	}
	if err := req.SetConnectTimeout(int((c.connectTimeout + time.Second - 1) / time.Second)); err != nil {
		_ = req.Close()
		return nil, err
	}
	if c.followRedirect {
		if err := req.EnableRedirects(c.maxRedirects); err != nil {
			_ = req.Close()
			return nil, err
		}
	}
	if c.cookies {
		req.EnableCookies()
	}
	if c.verbose {
		req.EnableVerbose()
	}

	return req, nil
}

// Do creates a request, lets configure adjust it, sends it and releases it.
func (c *Client) Do(ctx context.Context, method, rawURL string, configure func(*Request) error) (*Response, error) {
	req, err := c.NewRequest(method, rawURL)
	if err != nil {
		return nil, err
	}
	defer req.Close()

	if configure != nil {
		if err := configure(req); err != nil {
			return nil, err
		}
	}

	return req.Send(ctx)
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, MethodGet.String(), url, func(r *Request) error {
		return r.AddHeaders(headers)
	})
}

// Post sends fields as form data; pass a JSON-able map or struct through Do
// and SetJSON for JSON bodies.
func (c *Client) Post(ctx context.Context, url string, fields map[string]string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, MethodPost.String(), url, func(r *Request) error {
		if err := r.AddHeaders(headers); err != nil {
			return err
		}
		return r.AddPostFields(fields)
	})
}

func (c *Client) Put(ctx context.Context, url string, data any, headers map[string]string) (*Response, error) {
	return c.Do(ctx, MethodPut.String(), url, func(r *Request) error {
		if err := r.AddHeaders(headers); err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		return r.SetJSON(data)
	})
}

func (c *Client) Delete(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, MethodDelete.String(), url, func(r *Request) error {
		return r.AddHeaders(headers)
	})
}

func (c *Client) Head(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, MethodHead.String(), url, func(r *Request) error {
		return r.AddHeaders(headers)
	})
}
