package http

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned by setters for malformed input
	ErrInvalidArgument = errors.New("httphelper: invalid argument")

	// ErrMaxRedirects marks a send that ran out of redirect hops
	ErrMaxRedirects = errors.New("httphelper: maximum redirects reached")

	// ErrClosed is returned when sending through a released connection
	ErrClosed = errors.New("httphelper: connection closed")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// RequestError is returned when a send fails at the transport level or when
// the redirect limit is exhausted. Code and Message are the connection's
// error code and message, unchanged.
type RequestError struct {
	Code    int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code != 0 {
		return fmt.Sprintf("request failed [%d]: %s", e.Code, e.Message)
	}
	return "request failed: " + e.Message
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func maxRedirectsError(limit int) *RequestError {
	return &RequestError{
		Message: fmt.Sprintf("maximum of %d redirects reached", limit),
		Err:     ErrMaxRedirects,
	}
}

// Connection error codes. The numbering matches libcurl so that messages
// stay familiar to users of curl-based clients.
const (
	CodeUnknown             = 0
	CodeUnsupportedProtocol = 1
	CodeBadURL              = 3
	CodeResolveHost         = 6
	CodeConnect             = 7
	CodeTimeout             = 28
	CodeTLS                 = 35
	CodeSendError           = 55
	CodeRecvError           = 56
)

// ConnError is the failure reported by a Conn when a call produced no usable
// result.
type ConnError struct {
	Code    int
	Message string
	Err     error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("conn error [%d]: %s", e.Code, e.Message)
}

func (e *ConnError) Unwrap() error {
	return e.Err
}

// asRequestError converts a Conn failure into a RequestError keeping the
// code and message verbatim.
func asRequestError(err error) *RequestError {
	var re *RequestError
	if errors.As(err, &re) {
		return re
	}
	var ce *ConnError
	if errors.As(err, &ce) {
		return &RequestError{Code: ce.Code, Message: ce.Message, Err: err}
	}
	return &RequestError{Message: err.Error(), Err: err}
}
