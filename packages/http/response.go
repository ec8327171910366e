package http

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Response is one parsed HTTP response. It is immutable after construction;
// only the decoded body is computed lazily and cached.
type Response struct {
	code     int
	headers  map[string]string
	cookies  []*Cookie
	rawBody  []byte
	duration time.Duration

	decodeOnce sync.Once
	decoded    string
}

// NewResponse parses a raw header block (one "Name: value" per line) and
// keeps body untouched. Set-Cookie lines become cookies and are left out of
// the header map; for other duplicate names the last line wins.
func NewResponse(code int, header string, body []byte) *Response {
	r := &Response{
		code:    code,
		headers: make(map[string]string),
		rawBody: body,
	}

	for _, line := range strings.Split(header, "\n") {
		key, value, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok || key == "" || value == "" {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		if strings.EqualFold(key, "Set-Cookie") {
			if c := ParseSetCookie(value); c != nil {
				r.cookies = append(r.cookies, c)
			}
			continue
		}
		r.headers[key] = value
	}

	return r
}

func emptyResponse() *Response {
	return NewResponse(0, "", nil)
}

func (r *Response) withDuration(d time.Duration) *Response {
	r.duration = d
	return r
}

// Code returns the status code; 0 means nothing was sent.
func (r *Response) Code() int {
	return r.code
}

// Headers returns a copy of the response headers, Set-Cookie excluded.
func (r *Response) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

// Header does an exact, case-sensitive lookup.
func (r *Response) Header(name string) string {
	return r.headers[name]
}

// HeaderOr returns the header value or def when the header is absent.
func (r *Response) HeaderOr(name, def string) string {
	if v, ok := r.headers[name]; ok {
		return v
	}
	return def
}

// Cookies returns the cookies from Set-Cookie headers in arrival order.
func (r *Response) Cookies() []*Cookie {
	out := make([]*Cookie, len(r.cookies))
	copy(out, r.cookies)
	return out
}

// Body returns the body decoded to UTF-8. See decodeBody for the charset
// detection order.
func (r *Response) Body() string {
	r.decodeOnce.Do(func() {
		r.decoded = decodeBody(r.rawBody, r.HeaderOr("Content-Type", ""), r.HeaderOr("Content-Encoding", ""))
	})
	return r.decoded
}

// RawBody returns the body bytes exactly as received.
func (r *Response) RawBody() []byte {
	return r.rawBody
}

// Duration is the time spent in the connection call that produced r.
func (r *Response) Duration() time.Duration {
	return r.duration
}

func (r *Response) DurationMs() int64 {
	return r.duration.Milliseconds()
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

// JSON returns the value at a gjson path of the decoded body.
func (r *Response) JSON(path string) gjson.Result {
	return gjson.Get(r.Body(), path)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal([]byte(r.Body()), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Response) IsSuccess() bool {
	return r.code >= 200 && r.code < 300
}

func (r *Response) IsRedirect() bool {
	return r.code >= 300 && r.code < 400
}

func (r *Response) IsClientError() bool {
	return r.code >= 400 && r.code < 500
}

func (r *Response) IsServerError() bool {
	return r.code >= 500
}

// SplitRaw separates a raw response into its header block and body. Interim
// blocks such as "HTTP/1.1 100 Continue" are skipped by keeping only the part
// after the last "\r\n\r\nHTTP/" boundary.
func SplitRaw(raw []byte) (string, []byte) {
	const interim = "\r\n\r\nHTTP/"
	s := string(raw)
	if i := strings.LastIndex(s, interim); i >= 0 {
		s = s[i+4:]
	}
	header, body, _ := strings.Cut(s, "\r\n\r\n")
	return header, []byte(body)
}
