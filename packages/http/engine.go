package http

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Engine drives a Request through its Conn: it applies URL, cookies,
// headers, method and body, executes the call, parses the response and
// follows redirects.
type Engine struct {
	conn    Conn
	log     zerolog.Logger
	metrics *Metrics
	now     func() time.Time
}

func NewEngine(conn Conn, log zerolog.Logger, metrics *Metrics) *Engine {
	return &Engine{
		conn:    conn,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

// isRedirectCode reports whether the engine follows the status. The method
// is switched to GET for all three, 301 and 302 included.
func isRedirectCode(code int) bool {
	return code == 301 || code == 302 || code == 303
}

// Send runs the hop loop. Each hop produces a new Response which replaces
// the request's current one. A failure at any hop ends the chain.
func (e *Engine) Send(ctx context.Context, r *Request) (*Response, error) {
	if !r.HasURL() {
		return emptyResponse(), nil
	}

	hops := 0
	var authExtra map[string]string
	digestTried := false
	contentType, hasContentType := r.headers["Content-Type"]

	for {
		resp, err := e.roundTrip(ctx, r, hops, authExtra)
		if err != nil {
			return nil, err
		}
		r.response = resp

		if r.cookiesEnabled {
			for _, c := range resp.Cookies() {
				r.putCookie(c)
			}
		}

		if r.digest != nil && resp.Code() == 401 && !digestTried {
			digestTried = true
			header, err := digestAuthorization(r.digest, foldHeader(resp, "WWW-Authenticate"), r.method, r.targetURL())
			if err != nil {
				return nil, &RequestError{Message: err.Error(), Err: err}
			}
			if header != "" {
				e.log.Debug().Str("url", r.rawURL).Msg("answering digest challenge")
				authExtra = map[string]string{"Authorization": header}
				// The answer must carry the same body as the challenged call.
				if hasContentType && hops == 0 {
					r.headers["Content-Type"] = contentType
				}
				continue
			}
		}

		// A chain that has used its whole budget fails even when the last
		// hop answered with a final status.
		if r.autoFollow && hops >= r.maxRedirects && (hops > 0 || isRedirectCode(resp.Code())) {
			e.log.Warn().Int("max_redirects", r.maxRedirects).Str("url", r.rawURL).Msg("redirect limit reached")
			e.metrics.incError("max_redirects")
			return nil, maxRedirectsError(r.maxRedirects)
		}

		if !r.autoFollow || !isRedirectCode(resp.Code()) {
			return resp, nil
		}

		location := foldHeader(resp, "Location")
		if location == "" {
			return resp, nil
		}

		next, err := resolveLocation(r.url, location)
		if err != nil {
			return nil, err
		}

		previous := r.rawURL
		if err := r.SetURL(next); err != nil {
			return nil, err
		}
		r.method = MethodGet
		r.headers["Referer"] = previous
		hops++
		authExtra = nil
		digestTried = false

		e.metrics.incRedirect()
		e.log.Debug().
			Int("status", resp.Code()).
			Str("from", previous).
			Str("to", next).
			Int("hop", hops).
			Msg("following redirect")
	}
}

// roundTrip performs one hop.
func (e *Engine) roundTrip(ctx context.Context, r *Request, hop int, authExtra map[string]string) (*Response, error) {
	target := r.targetURL()

	if r.json != nil {
		r.headers["Content-Type"] = "application/json"
	}

	body := r.body()

	extra := make(map[string]string, len(authExtra)+4)
	for k, v := range authExtra {
		extra[k] = v
	}
	if r.aws != nil {
		payloadHash := PayloadHash("")
		if body != nil {
			if body.Fields != nil {
				payloadHash = UnsignedPayload
			} else {
				payloadHash = PayloadHash(body.Raw)
			}
		}
		signed, err := SignAWS(r.aws, r.method.String(), target, payloadHash, e.now())
		if err != nil {
			r.UnsetHeader("Content-Type")
			return nil, &RequestError{Message: err.Error(), Err: err}
		}
		for k, v := range signed {
			extra[k] = v
		}
	}

	e.conn.SetURL(target)
	e.conn.SetTimeout(r.connectTimeoutDuration())
	e.conn.SetCookie(r.cookieHeader())
	e.conn.SetHeaders(r.headerLines(extra))
	e.conn.SetVerbose(r.verbose)

	switch r.method {
	case MethodGet:
		e.conn.UseGet()
	case MethodPost:
		e.conn.UsePost()
	case MethodHead:
		e.conn.UseHead()
	case MethodPut, MethodDelete:
		e.conn.SetCustomMethod(r.method.String())
	default:
		r.UnsetHeader("Content-Type")
		return nil, invalidArgument("unknown method: %q", r.method)
	}
	e.conn.SetBody(body)

	e.log.Debug().
		Str("method", r.method.String()).
		Str("url", target).
		Int("hop", hop).
		Msg("sending request")

	start := e.now()
	raw, err := e.conn.Exec(ctx)
	duration := e.now().Sub(start)

	// Content-Type is per call; it must not leak into the next send.
	r.UnsetHeader("Content-Type")

	if err != nil {
		e.metrics.incError("transport")
		reqErr := asRequestError(err)
		e.log.Debug().Err(err).Int("code", reqErr.Code).Str("url", target).Msg("request failed")
		return nil, reqErr
	}

	header, rawBody := SplitRaw(raw.Raw)
	resp := NewResponse(raw.StatusCode, header, rawBody).withDuration(duration)

	e.metrics.observe(r.method, resp.Code(), duration)
	e.log.Debug().
		Int("status", resp.Code()).
		Dur("duration", duration).
		Int("hop", hop).
		Msg("response received")

	return resp, nil
}

// body selects the payload: JSON over post fields; fields are URL-encoded
// when the Content-Type says so and sent as form parts otherwise. GET and
// HEAD never carry a body.
func (r *Request) body() *Body {
	if !r.method.hasBody() {
		return nil
	}
	if r.json != nil {
		return &Body{Raw: string(r.json)}
	}
	if len(r.postFields) == 0 {
		return nil
	}
	if strings.Contains(strings.ToLower(r.headers["Content-Type"]), "urlencoded") {
		values := make(url.Values, len(r.postFields))
		for k, v := range r.postFields {
			values.Set(k, v)
		}
		return &Body{Raw: values.Encode()}
	}
	return &Body{Fields: r.PostFields()}
}

// resolveLocation turns a Location header into the next URL. A value
// starting with "/" keeps scheme, credentials, host and port of current and
// replaces everything after them.
func resolveLocation(current *url.URL, location string) (string, error) {
	loc := strings.TrimSpace(location)

	switch {
	case strings.HasPrefix(loc, "//"):
		if current.Scheme == "" {
			return loc, nil
		}
		return current.Scheme + ":" + loc, nil
	case strings.HasPrefix(loc, "/"):
		var b strings.Builder
		if current.Scheme != "" {
			b.WriteString(current.Scheme + "://")
		}
		if current.User != nil {
			if _, ok := current.User.Password(); ok {
				b.WriteString(current.User.String() + "@")
			}
		}
		b.WriteString(current.Host)
		b.WriteString(loc)
		return b.String(), nil
	}

	ref, err := url.Parse(loc)
	if err != nil {
		return "", invalidArgument("invalid Location, got: %s", location)
	}
	if ref.IsAbs() {
		return loc, nil
	}
	return current.ResolveReference(ref).String(), nil
}

// foldHeader looks a header up ignoring case. Connections may canonicalise
// names (WWW-Authenticate arrives as Www-Authenticate from net/http).
func foldHeader(resp *Response, name string) string {
	if v, ok := resp.headers[name]; ok {
		return v
	}
	for k, v := range resp.headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
