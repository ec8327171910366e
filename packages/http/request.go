package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRedirects is the hop limit used by EnableRedirects callers
	// that have no preference.
	DefaultMaxRedirects = 20
)

// Request holds everything needed to send one logical request, possibly
// spanning several redirect hops. A Request owns its Conn: call Close when
// done with it.
//
// A Request is not safe for concurrent use; use one instance per goroutine.
type Request struct {
	engine *Engine
	conn   Conn

	method  Method
	rawURL  string
	url     *url.URL
	headers map[string]string

	cookieNames []string
	cookies     map[string]*Cookie

	postFields map[string]string
	json       json.RawMessage
	params     map[string]string

	cookiesEnabled bool
	autoFollow     bool
	maxRedirects   int
	connectTimeout int
	verbose        bool

	digest *DigestAuthCredentials
	aws    *AWSAuthCredentials

	response *Response

	log     zerolog.Logger
	metrics *Metrics
}

// RequestOption configures a Request during construction.
type RequestOption func(*Request) error

// WithURL sets the target URL.
func WithURL(rawURL string) RequestOption {
	return func(r *Request) error {
		return r.SetURL(rawURL)
	}
}

// WithMethod sets the method.
func WithMethod(method string) RequestOption {
	return func(r *Request) error {
		return r.SetMethod(method)
	}
}

// WithConn hands a connection to the request. The request takes ownership
// and closes it on Close or on construction failure.
func WithConn(c Conn) RequestOption {
	return func(r *Request) error {
		if c == nil {
			return invalidArgument("nil connection")
		}
		r.conn = c
		return nil
	}
}

func WithLogger(l zerolog.Logger) RequestOption {
	return func(r *Request) error {
		r.log = l
		return nil
	}
}

func WithMetrics(m *Metrics) RequestOption {
	return func(r *Request) error {
		r.metrics = m
		return nil
	}
}

// NewRequest creates a GET request. Without WithConn a NetConn with default
// settings is acquired.
func NewRequest(opts ...RequestOption) (*Request, error) {
	r := &Request{
		method:       MethodGet,
		headers:      make(map[string]string),
		cookies:      make(map[string]*Cookie),
		postFields:   make(map[string]string),
		params:       make(map[string]string),
		maxRedirects: DefaultMaxRedirects,
		response:     emptyResponse(),
		log:          zerolog.Nop(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			if r.conn != nil {
				_ = r.conn.Close()
			}
			return nil, err
		}
	}

	if r.conn == nil {
		r.conn = NewNetConn(WithConnLogger(r.log))
	}
	r.engine = NewEngine(r.conn, r.log, r.metrics)

	return r, nil
}

// Close releases the connection handle. It is safe to call more than once.
func (r *Request) Close() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// Send transmits the request, following redirects if enabled, and returns
// the final response. Without a URL it returns an empty response (code 0)
// and no error.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	if r.conn == nil {
		return nil, &RequestError{Message: "connection handle released", Err: ErrClosed}
	}
	return r.engine.Send(ctx, r)
}

// SetMethod validates and sets the method.
func (r *Request) SetMethod(method string) error {
	m, err := ParseMethod(method)
	if err != nil {
		return err
	}
	r.method = m
	return nil
}

func (r *Request) Method() Method {
	return r.method
}

// SetURL parses and stores the URL. The raw string is kept as given.
func (r *Request) SetURL(rawURL string) error {
	if rawURL == "" {
		return invalidArgument("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return invalidArgument("invalid URL, got: %s", rawURL)
	}
	r.rawURL = rawURL
	r.url = u
	return nil
}

// URL returns the raw URL, updated to the last Location when redirects were
// followed.
func (r *Request) URL() string {
	return r.rawURL
}

func (r *Request) HasURL() bool {
	return r.url != nil
}

// targetURL appends the encoded query parameters to the raw URL.
func (r *Request) targetURL() string {
	if len(r.params) == 0 {
		return r.rawURL
	}
	values := make(url.Values, len(r.params))
	for k, v := range r.params {
		values.Set(k, v)
	}
	return r.rawURL + "?" + values.Encode()
}

// SetConnectTimeout sets the connect timeout in seconds; 0 waits indefinitely.
func (r *Request) SetConnectTimeout(seconds int) error {
	if seconds < 0 {
		return invalidArgument("negative connect timeout: %d", seconds)
	}
	r.connectTimeout = seconds
	return nil
}

func (r *Request) ConnectTimeout() int {
	return r.connectTimeout
}

// EnableVerbose makes the connection log every request and response it
// handles at debug level.
func (r *Request) EnableVerbose() {
	r.verbose = true
}

func (r *Request) DisableVerbose() {
	r.verbose = false
}

// AddHeaders merges headers into the request; for a repeated name the new
// value replaces the old one.
func (r *Request) AddHeaders(headers map[string]string) error {
	for k, v := range headers {
		if strings.TrimSpace(k) == "" {
			return invalidArgument("empty header name")
		}
		r.headers[k] = v
	}
	return nil
}

// SetHeaders replaces all headers.
func (r *Request) SetHeaders(headers map[string]string) error {
	r.headers = make(map[string]string)
	return r.AddHeaders(headers)
}

func (r *Request) UnsetHeader(name string) {
	delete(r.headers, name)
}

// Header returns the header value or "" when not set.
func (r *Request) Header(name string) string {
	return r.headers[name]
}

func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// headerLines formats headers as "Name: value" in name order.
func (r *Request) headerLines(extra map[string]string) []string {
	merged := r.Headers()
	for k, v := range extra {
		merged[k] = v
	}
	lines := make([]string, 0, len(merged))
	for _, k := range sortedKeys(merged) {
		lines = append(lines, k+": "+merged[k])
	}
	return lines
}

// AddCookies adds cookies, replacing any with the same name. Accepted shapes:
// *Cookie, Cookie, []*Cookie, map[string]string, map[string]*Cookie and
// map[string]any whose values are strings or cookies. Plain string values
// become cookies named by their key.
func (r *Request) AddCookies(cookies any) error {
	switch v := cookies.(type) {
	case *Cookie:
		if v == nil {
			return invalidArgument("nil cookie")
		}
		r.putCookie(v)
	case Cookie:
		r.putCookie(&v)
	case []*Cookie:
		for _, c := range v {
			if c != nil {
				r.putCookie(c)
			}
		}
	case map[string]string:
		for _, name := range sortedKeys(v) {
			r.putCookie(NewCookie(name, v[name]))
		}
	case map[string]*Cookie:
		for _, name := range sortedKeys(v) {
			if c := v[name]; c != nil {
				r.putCookie(c)
			}
		}
	case map[string]any:
		for _, name := range sortedKeys(v) {
			switch val := v[name].(type) {
			case *Cookie:
				r.putCookie(val)
			case Cookie:
				r.putCookie(&val)
			case string:
				r.putCookie(NewCookie(name, val))
			default:
				return invalidArgument("cookie %q: string or Cookie required, got %T", name, val)
			}
		}
	default:
		return invalidArgument("cookie or cookie map required, got %T", cookies)
	}
	return nil
}

// SetCookies replaces all cookies.
func (r *Request) SetCookies(cookies any) error {
	r.cookieNames = nil
	r.cookies = make(map[string]*Cookie)
	return r.AddCookies(cookies)
}

func (r *Request) putCookie(c *Cookie) {
	if c == nil || c.Name == "" {
		return
	}
	if _, ok := r.cookies[c.Name]; !ok {
		r.cookieNames = append(r.cookieNames, c.Name)
	}
	r.cookies[c.Name] = c.Clone()
}

// Cookies returns the stored cookies in insertion order.
func (r *Request) Cookies() []*Cookie {
	out := make([]*Cookie, 0, len(r.cookieNames))
	for _, name := range r.cookieNames {
		out = append(out, r.cookies[name])
	}
	return out
}

func (r *Request) Cookie(name string) (*Cookie, bool) {
	c, ok := r.cookies[name]
	return c, ok
}

// cookieHeader joins the cookies that may be sent to the current URL.
func (r *Request) cookieHeader() string {
	if r.url == nil {
		return ""
	}
	var parts []string
	for _, c := range r.Cookies() {
		if c.matches(r.url.Scheme, r.url.Hostname(), r.url.Path) {
			parts = append(parts, c.String())
		}
	}
	return strings.Join(parts, "; ")
}

func (r *Request) EnableCookies() {
	r.cookiesEnabled = true
}

func (r *Request) DisableCookies() {
	r.cookiesEnabled = false
}

func (r *Request) CookiesEnabled() bool {
	return r.cookiesEnabled
}

// AddPostFields merges form fields. Values are stored in their fmt.Sprint
// form.
func (r *Request) AddPostFields(fields any) error {
	m, err := stringMap(fields)
	if err != nil {
		return err
	}
	for k, v := range m {
		r.postFields[k] = v
	}
	return nil
}

// SetPostFields replaces all form fields.
func (r *Request) SetPostFields(fields any) error {
	m, err := stringMap(fields)
	if err != nil {
		return err
	}
	r.postFields = m
	return nil
}

func (r *Request) PostFields() map[string]string {
	out := make(map[string]string, len(r.postFields))
	for k, v := range r.postFields {
		out[k] = v
	}
	return out
}

// SetJSON sets a JSON body. data must be a map or struct; it is encoded
// immediately so encoding errors surface here. A JSON body takes precedence
// over post fields and forces Content-Type: application/json.
func (r *Request) SetJSON(data any) error {
	rv := reflect.ValueOf(data)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Map && rv.Kind() != reflect.Struct {
		return invalidArgument("JSON must be a map or struct, got %T", data)
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return invalidArgument("cannot encode JSON: %v", err)
	}
	r.json = encoded
	return nil
}

// ClearJSON removes the JSON body.
func (r *Request) ClearJSON() {
	r.json = nil
}

// JSON returns the encoded JSON body or nil.
func (r *Request) JSON() json.RawMessage {
	return r.json
}

// AddParams merges URL query parameters.
func (r *Request) AddParams(params any) error {
	m, err := stringMap(params)
	if err != nil {
		return err
	}
	for k, v := range m {
		r.params[k] = v
	}
	return nil
}

// SetParams replaces all URL query parameters.
func (r *Request) SetParams(params any) error {
	m, err := stringMap(params)
	if err != nil {
		return err
	}
	r.params = m
	return nil
}

func (r *Request) Params() map[string]string {
	out := make(map[string]string, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

// EnableRedirects turns on automatic following of 301, 302 and 303
// responses. A send that takes limit hops fails with ErrMaxRedirects,
// whatever the final status.
func (r *Request) EnableRedirects(limit int) error {
	if limit < 0 {
		return invalidArgument("negative redirect limit: %d", limit)
	}
	r.autoFollow = true
	r.maxRedirects = limit
	return nil
}

func (r *Request) DisableRedirects() {
	r.autoFollow = false
}

func (r *Request) RedirectsEnabled() bool {
	return r.autoFollow
}

func (r *Request) MaxRedirects() int {
	return r.maxRedirects
}

// SetBasicAuth sets an Authorization header with basic credentials.
func (r *Request) SetBasicAuth(username, password string) {
	creds := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	r.headers["Authorization"] = "Basic " + creds
}

// SetBearerToken sets an Authorization header with a bearer token.
func (r *Request) SetBearerToken(token string) {
	r.headers["Authorization"] = "Bearer " + token
}

// SetDigestAuth answers a 401 digest challenge once per hop with the given
// credentials.
func (r *Request) SetDigestAuth(username, password string) {
	r.digest = &DigestAuthCredentials{Username: username, Password: password}
}

// SetAWSAuth signs every hop with AWS Signature Version 4.
func (r *Request) SetAWSAuth(creds AWSAuthCredentials) {
	r.aws = &creds
}

// Response returns the last response received, or an empty one before the
// first send.
func (r *Request) Response() *Response {
	return r.response
}

func (r *Request) ResponseCode() int {
	return r.response.Code()
}

func (r *Request) ResponseBody() string {
	return r.response.Body()
}

func (r *Request) ResponseHeader(name string) string {
	return r.response.Header(name)
}

func (r *Request) ResponseHeaders() map[string]string {
	return r.response.Headers()
}

func (r *Request) ResponseCookies() []*Cookie {
	return r.response.Cookies()
}

func (r *Request) connectTimeoutDuration() time.Duration {
	return time.Duration(r.connectTimeout) * time.Second
}

// stringMap converts any map with string keys into map[string]string.
func stringMap(v any) (map[string]string, error) {
	switch m := v.(type) {
	case map[string]string:
		out := make(map[string]string, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, nil
	case url.Values:
		out := make(map[string]string, len(m))
		for k := range m {
			out[k] = m.Get(k)
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, invalidArgument("map with string keys required, got %T", v)
	}
	out := make(map[string]string, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = fmt.Sprint(iter.Value().Interface())
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
