package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/abdul-hamid-achik/httphelper/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/httphelper/packages/core/config"
	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/abdul-hamid-achik/httphelper/packages/reqfile"
)

// RequestIDHeader is sent with a fresh uuid when --request-id is set.
const RequestIDHeader = "X-Request-ID"

// requestFlags shapes one request. They are shared by send and bench.
type requestFlags struct {
	method     string
	headers    []string
	data       []string
	jsonFields []string
	params     []string
	cookies    []string
	file       string
	user       string
	bearer     string
	digest     bool
	requestID  bool

	location       bool
	maxRedirects   int
	cookiesEnabled bool
	connectTimeout int
	proxy          string
	insecure       bool
	uploadDir      string
	rateLimit      float64
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.method, "request", "X", "", "Request method: GET, POST, PUT, DELETE, HEAD")
	fs.StringArrayVarP(&f.headers, "header", "H", nil, "Header \"Name: value\" (repeatable)")
	fs.StringArrayVarP(&f.data, "data", "d", nil, "Form field key=value; value @path uploads a file (repeatable)")
	fs.StringArrayVar(&f.jsonFields, "json", nil, "JSON body field path=value; dotted paths nest (repeatable)")
	fs.StringArrayVar(&f.params, "param", nil, "Query parameter key=value (repeatable)")
	fs.StringArrayVarP(&f.cookies, "cookie", "b", nil, "Cookie name=value (repeatable)")
	fs.StringVarP(&f.file, "file", "f", "", "YAML request file")
	fs.StringVarP(&f.user, "user", "u", "", "Credentials user:password for basic auth")
	fs.StringVar(&f.bearer, "bearer", "", "Bearer token")
	fs.BoolVar(&f.digest, "digest", false, "Use digest auth with --user credentials")
	fs.BoolVar(&f.requestID, "request-id", false, "Send a fresh "+RequestIDHeader+" header")

	fs.BoolVarP(&f.location, "location", "L", false, "Follow 301/302/303 redirects; -L=false disables the config default")
	fs.IntVar(&f.maxRedirects, "max-redirects", 0, "Redirect limit (implies --location)")
	fs.BoolVar(&f.cookiesEnabled, "cookies", false, "Capture Set-Cookie across redirects")
	fs.IntVar(&f.connectTimeout, "connect-timeout", 0, "Connect timeout in seconds")
	fs.StringVar(&f.proxy, "proxy", getEnvString("HTTPHELPER_PROXY", ""), "Proxy URL (env: HTTPHELPER_PROXY)")
	fs.BoolVarP(&f.insecure, "insecure", "k", false, "Disable SSL certificate validation")
	fs.StringVar(&f.uploadDir, "upload-dir", "", "Restrict @path uploads to this directory")
	fs.Float64Var(&f.rateLimit, "rate-limit", 0, "Limit hops to this many per second")
}

// overrides turns explicitly set flags into a config layer.
func (f *requestFlags) overrides(cmd *cobra.Command) *config.Config {
	fs := cmd.Flags()
	c := &config.Config{
		ConnectTimeout: f.connectTimeout,
		MaxRedirects:   f.maxRedirects,
		Proxy:          f.proxy,
		UploadDir:      f.uploadDir,
		RateLimit:      f.rateLimit,
	}
	if fs.Changed("location") {
		c.FollowRedirects = config.BoolPtr(f.location)
	}
	if f.maxRedirects > 0 {
		c.FollowRedirects = config.BoolPtr(true)
	}
	if fs.Changed("cookies") {
		c.EnableCookies = config.BoolPtr(f.cookiesEnabled)
	}
	if f.insecure {
		c.ValidateSSL = config.BoolPtr(false)
	}
	return c
}

// newClient builds a client from the session config with flag overrides.
func (f *requestFlags) newClient(cmd *cobra.Command, s *session) (*http.Client, *config.Config) {
	cfg := s.cfg.Merge(f.overrides(cmd))
	return http.NewClient(cfg.ClientOptions(s.log.Logger, s.metrics)...), cfg
}

// build creates a request from the client, the request file and the flags,
// in that order of precedence. rawURL may be empty when the file sets it.
func (f *requestFlags) build(client *http.Client, file *reqfile.File, rawURL string) (*http.Request, error) {
	req, err := client.NewRequest("", "")
	if err != nil {
		return nil, err
	}

	if err := f.apply(req, file, rawURL); err != nil {
		_ = req.Close()
		return nil, err
	}
	return req, nil
}

func (f *requestFlags) apply(req *http.Request, file *reqfile.File, rawURL string) error {
	if file != nil {
		if err := file.Apply(req); err != nil {
			return err
		}
	}

	if rawURL != "" {
		if err := req.SetURL(rawURL); err != nil {
			return err
		}
	}
	if !req.HasURL() {
		return fmt.Errorf("%w: no URL given", http.ErrInvalidArgument)
	}

	method := strings.ToUpper(f.method)
	if method == "" && (file == nil || file.Method == "") && (len(f.data) > 0 || len(f.jsonFields) > 0) {
		method = http.MethodPost.String()
	}
	if method != "" {
		if err := req.SetMethod(method); err != nil {
			return err
		}
	}

	headers, err := parseHeaders(f.headers)
	if err != nil {
		return err
	}
	if err := req.AddHeaders(headers); err != nil {
		return err
	}
	if f.requestID {
		if err := req.AddHeaders(map[string]string{RequestIDHeader: uuid.NewString()}); err != nil {
			return err
		}
	}

	for _, set := range []struct {
		pairs []string
		add   func(any) error
	}{
		{f.data, req.AddPostFields},
		{f.params, req.AddParams},
		{f.cookies, req.AddCookies},
	} {
		if len(set.pairs) == 0 {
			continue
		}
		kv, err := parsePairs(set.pairs)
		if err != nil {
			return err
		}
		if err := set.add(kv); err != nil {
			return err
		}
	}

	if len(f.jsonFields) > 0 {
		body, err := buildJSON(f.jsonFields)
		if err != nil {
			return err
		}
		if err := req.SetJSON(body); err != nil {
			return err
		}
	}

	if f.bearer != "" {
		req.SetBearerToken(f.bearer)
	}
	if f.user != "" {
		user, pass, _ := strings.Cut(f.user, ":")
		if f.digest {
			req.SetDigestAuth(user, pass)
		} else {
			req.SetBasicAuth(user, pass)
		}
	}

	return nil
}

// authorize fetches the access token of an oauth2 request file and sends it
// as a bearer token. --bearer and --user take precedence.
func (f *requestFlags) authorize(ctx context.Context, tokens *oauth2.Provider, file *reqfile.File, req *http.Request) error {
	if file == nil || f.bearer != "" || f.user != "" {
		return nil
	}
	cfg := file.Auth.OAuth2()
	if cfg == nil {
		return nil
	}
	token, err := tokens.Token(ctx, cfg)
	if err != nil {
		return err
	}
	req.SetBearerToken(token.AccessToken)
	return nil
}

// parseHeaders splits "Name: value" flags.
func parseHeaders(lines []string) (map[string]string, error) {
	headers := make(map[string]string, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: header must be \"Name: value\", got %q", http.ErrInvalidArgument, line)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// parsePairs splits key=value flags.
func parsePairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", http.ErrInvalidArgument, pair)
		}
		out[key] = value
	}
	return out, nil
}

// buildJSON assembles a JSON object from path=value flags. Values that are
// valid JSON are inserted raw and everything else as a string.
func buildJSON(fields []string) (map[string]any, error) {
	doc := "{}"
	for _, field := range fields {
		path, value, ok := strings.Cut(field, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("%w: expected path=value, got %q", http.ErrInvalidArgument, field)
		}

		var err error
		if isRawJSON(value) {
			doc, err = sjson.SetRaw(doc, path, value)
		} else {
			doc, err = sjson.Set(doc, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: json field %q: %v", http.ErrInvalidArgument, path, err)
		}
	}

	obj, ok := gjson.Parse(doc).Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: json body is not an object", http.ErrInvalidArgument)
	}
	return obj, nil
}

func isRawJSON(value string) bool {
	return strings.TrimSpace(value) != "" && gjson.Valid(value)
}
