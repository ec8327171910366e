package http

import (
	"context"
	"time"
)

// Body is the payload handed to a Conn. Raw is sent verbatim; Fields, when
// non-nil, is sent as one form part per entry. A field value starting with
// "@" names a local file to upload.
type Body struct {
	Raw    string
	Fields map[string]string
}

// RawResult is what a successful Exec returns: the complete response as
// received on the wire and the final status code.
type RawResult struct {
	Raw        []byte
	StatusCode int
}

// Conn is a connection handle owned by exactly one Request. Settings persist
// between calls until overwritten; the engine sets all of them on every hop.
//
// A call that produces no usable result must return a *ConnError so the code
// and message reach the caller unchanged.
type Conn interface {
	SetURL(url string)
	// SetTimeout limits the connect phase; zero waits indefinitely.
	SetTimeout(d time.Duration)
	// SetHeaders replaces the outgoing headers with preformatted
	// "Name: value" lines.
	SetHeaders(lines []string)
	// SetCookie sets the Cookie header value; empty sends none.
	SetCookie(cookie string)
	UseGet()
	UsePost()
	UseHead()
	// SetCustomMethod overrides the verb for methods without native support.
	SetCustomMethod(verb string)
	// SetBody sets the request payload; nil sends none.
	SetBody(body *Body)
	SetVerbose(on bool)
	Exec(ctx context.Context) (*RawResult, error)
	Close() error
}
