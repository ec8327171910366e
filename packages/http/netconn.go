package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxIdleConns is the maximum number of idle connections kept by a NetConn
	DefaultMaxIdleConns = 10
	// DefaultIdleConnTimeout is how long idle connections stay open
	DefaultIdleConnTimeout = 90 * time.Second
)

// NetConn implements Conn on top of net/http. Redirects are never followed at
// this level; the engine decides.
type NetConn struct {
	client    *http.Client
	transport *http.Transport
	limiter   *rate.Limiter
	log       zerolog.Logger

	proxyURL    string
	validateSSL bool
	baseDir     string

	url            string
	connectTimeout time.Duration
	headers        []string
	cookie         string
	method         string
	body           *Body
	verbose        bool
	closed         bool
}

type NetConnOption func(*NetConn)

// WithConnProxy routes requests through a proxy.
func WithConnProxy(proxyURL string) NetConnOption {
	return func(c *NetConn) {
		c.proxyURL = proxyURL
	}
}

// WithConnValidateSSL enables or disables certificate verification.
func WithConnValidateSSL(validate bool) NetConnOption {
	return func(c *NetConn) {
		c.validateSSL = validate
	}
}

// WithConnRateLimiter makes every Exec wait on the limiter first.
func WithConnRateLimiter(l *rate.Limiter) NetConnOption {
	return func(c *NetConn) {
		c.limiter = l
	}
}

func WithConnLogger(l zerolog.Logger) NetConnOption {
	return func(c *NetConn) {
		c.log = l
	}
}

// WithConnBaseDir restricts file uploads to paths below dir.
func WithConnBaseDir(dir string) NetConnOption {
	return func(c *NetConn) {
		c.baseDir = dir
	}
}

func NewNetConn(opts ...NetConnOption) *NetConn {
	c := &NetConn{
		validateSSL: true,
		method:      http.MethodGet,
		log:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.transport = &http.Transport{
		DialContext:         c.dial,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConns,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	if !c.validateSSL {
		c.transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			c.transport.Proxy = http.ProxyURL(proxyURL)
		}
	} else {
		c.transport.Proxy = http.ProxyFromEnvironment
	}

	c.client = &http.Client{
		Transport: c.transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c
}

func (c *NetConn) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: c.connectTimeout, KeepAlive: 30 * time.Second}
	return d.DialContext(ctx, network, addr)
}

func (c *NetConn) SetURL(url string) {
	c.url = url
}

func (c *NetConn) SetTimeout(d time.Duration) {
	c.connectTimeout = d
}

func (c *NetConn) SetHeaders(lines []string) {
	c.headers = append([]string(nil), lines...)
}

func (c *NetConn) SetCookie(cookie string) {
	c.cookie = cookie
}

func (c *NetConn) UseGet() {
	c.method = http.MethodGet
}

func (c *NetConn) UsePost() {
	c.method = http.MethodPost
}

func (c *NetConn) UseHead() {
	c.method = http.MethodHead
}

func (c *NetConn) SetCustomMethod(verb string) {
	c.method = verb
}

func (c *NetConn) SetBody(body *Body) {
	c.body = body
}

func (c *NetConn) SetVerbose(on bool) {
	c.verbose = on
}

// Exec sends the configured request and returns the response framed as raw
// HTTP/1.x bytes: status line, header lines, blank line, body.
func (c *NetConn) Exec(ctx context.Context) (*RawResult, error) {
	if c.closed {
		return nil, &ConnError{Code: CodeUnknown, Message: "connection handle released", Err: ErrClosed}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, connError(err)
		}
	}

	req, err := c.buildRequest(ctx)
	if err != nil {
		return nil, err
	}

	if c.verbose {
		c.logRequest(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, connError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnError{Code: CodeRecvError, Message: err.Error(), Err: err}
	}

	var raw bytes.Buffer
	fmt.Fprintf(&raw, "HTTP/%d.%d %s\r\n", resp.ProtoMajor, resp.ProtoMinor, resp.Status)
	_ = resp.Header.Write(&raw)
	raw.WriteString("\r\n")
	raw.Write(body)

	if c.verbose {
		c.log.Debug().
			Str("status", resp.Status).
			Str("proto", resp.Proto).
			Int("bytes", len(body)).
			Msg("< response")
	}

	return &RawResult{Raw: raw.Bytes(), StatusCode: resp.StatusCode}, nil
}

func (c *NetConn) buildRequest(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	var contentType string

	if c.body != nil && c.method != http.MethodGet && c.method != http.MethodHead {
		if c.body.Fields != nil {
			multipartBody, ct, err := BuildMultipartBody(c.body.Fields, c.baseDir)
			if err != nil {
				return nil, &ConnError{Code: CodeSendError, Message: err.Error(), Err: err}
			}
			body = multipartBody
			contentType = ct
		} else {
			body = strings.NewReader(c.body.Raw)
		}
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, body)
	if err != nil {
		return nil, &ConnError{Code: CodeBadURL, Message: err.Error(), Err: err}
	}

	for _, line := range c.headers {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if strings.EqualFold(name, "Host") {
			req.Host = value
			continue
		}
		req.Header.Set(name, value)
	}

	if c.cookie != "" {
		req.Header.Add("Cookie", c.cookie)
	}

	// Multipart needs its own boundary, so it wins over a caller's type.
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return req, nil
}

func (c *NetConn) logRequest(req *http.Request) {
	ev := c.log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String())
	for name := range req.Header {
		ev = ev.Str("header."+name, req.Header.Get(name))
	}
	ev.Msg("> request")
}

// Close releases idle connections. Further Exec calls fail.
func (c *NetConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.transport.CloseIdleConnections()
	return nil
}

// connError classifies a net/http failure with a libcurl-style code.
func connError(err error) *ConnError {
	return &ConnError{Code: classify(err), Message: err.Error(), Err: err}
}

func classify(err error) int {
	var dnsErr *net.DNSError
	var netErr net.Error
	var opErr *net.OpError
	var certErr *tls.CertificateVerificationError
	var headerErr tls.RecordHeaderError
	var authErr x509.UnknownAuthorityError
	var hostErr x509.HostnameError

	switch {
	case errors.As(err, &dnsErr):
		return CodeResolveHost
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return CodeTimeout
	case errors.As(err, &certErr), errors.As(err, &headerErr), errors.As(err, &authErr), errors.As(err, &hostErr):
		return CodeTLS
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return CodeConnect
	case strings.Contains(err.Error(), "unsupported protocol scheme"):
		return CodeUnsupportedProtocol
	}
	return CodeUnknown
}

// validatePathWithinBase checks that the resolved path stays within the base directory
// to prevent path traversal attacks
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}

// BuildMultipartBody creates a multipart form data body from a field map.
// Values of the form "@path" are uploaded as files.
func BuildMultipartBody(fields map[string]string, baseDir string) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, name := range sortedKeys(fields) {
		value := fields[name]
		if filePath, ok := strings.CutPrefix(value, "@"); ok && filePath != "" {
			if !filepath.IsAbs(filePath) && baseDir != "" {
				filePath = filepath.Join(baseDir, filePath)
			}

			if err := validatePathWithinBase(filePath, baseDir); err != nil {
				return nil, "", err
			}

			file, err := os.Open(filePath)
			if err != nil {
				return nil, "", err
			}

			part, err := writer.CreateFormFile(name, filepath.Base(filePath))
			if err != nil {
				file.Close()
				return nil, "", err
			}

			_, err = io.Copy(part, file)
			file.Close()
			if err != nil {
				return nil, "", err
			}
			continue
		}

		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}
