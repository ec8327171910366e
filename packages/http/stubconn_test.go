package http

import (
	"context"
	"fmt"
	"time"
)

// sentCall is what a stubConn saw at Exec time.
type sentCall struct {
	url     string
	timeout time.Duration
	headers []string
	cookie  string
	method  string
	body    *Body
	verbose bool
}

type stubReply struct {
	raw  string
	code int
	err  error
}

// stubConn records every Exec and answers from a fixed script. Once the
// script is exhausted the last reply repeats.
type stubConn struct {
	current sentCall
	calls   []sentCall
	replies []stubReply
	closed  int
}

func newStubConn(replies ...stubReply) *stubConn {
	return &stubConn{replies: replies, current: sentCall{method: "GET"}}
}

func reply(code int, headers ...string) stubReply {
	return replyBody(code, "", headers...)
}

func replyBody(code int, body string, headers ...string) stubReply {
	raw := fmt.Sprintf("HTTP/1.1 %d Status\r\n", code)
	for _, h := range headers {
		raw += h + "\r\n"
	}
	raw += "\r\n" + body
	return stubReply{raw: raw, code: code}
}

func (s *stubConn) SetURL(url string)           { s.current.url = url }
func (s *stubConn) SetTimeout(d time.Duration)  { s.current.timeout = d }
func (s *stubConn) SetHeaders(lines []string)   { s.current.headers = append([]string(nil), lines...) }
func (s *stubConn) SetCookie(cookie string)     { s.current.cookie = cookie }
func (s *stubConn) UseGet()                     { s.current.method = "GET" }
func (s *stubConn) UsePost()                    { s.current.method = "POST" }
func (s *stubConn) UseHead()                    { s.current.method = "HEAD" }
func (s *stubConn) SetCustomMethod(verb string) { s.current.method = verb }
func (s *stubConn) SetBody(body *Body)          { s.current.body = body }
func (s *stubConn) SetVerbose(on bool)          { s.current.verbose = on }

func (s *stubConn) Exec(ctx context.Context) (*RawResult, error) {
	s.calls = append(s.calls, s.current)
	if len(s.replies) == 0 {
		return &RawResult{Raw: []byte("HTTP/1.1 200 OK\r\n\r\n"), StatusCode: 200}, nil
	}
	idx := len(s.calls) - 1
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	r := s.replies[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &RawResult{Raw: []byte(r.raw), StatusCode: r.code}, nil
}

func (s *stubConn) Close() error {
	s.closed++
	return nil
}

// header returns the value of name in the call's header lines.
func (c sentCall) header(name string) (string, bool) {
	prefix := name + ": "
	for _, line := range c.headers {
		if len(line) >= len(prefix) && line[:len(prefix)] == prefix {
			return line[len(prefix):], true
		}
	}
	return "", false
}
