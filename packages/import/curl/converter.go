// Package curl converts curl command lines into request files.
package curl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/abdul-hamid-achik/httphelper/packages/reqfile"
)

var ErrNoURL = errors.New("no URL found in curl command")

// Converter converts curl commands to request files.
type Converter struct {
	maxRedirects int
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithMaxRedirects sets the redirect limit written for -L. curl's own
// default of 50 is never carried over.
func WithMaxRedirects(n int) Option {
	return func(c *Converter) {
		c.maxRedirects = n
	}
}

// NewConverter creates a new curl converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		maxRedirects: http.DefaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is one converted command. Settings a request file cannot hold are
// reported instead of dropped silently.
type Result struct {
	File     *reqfile.File
	Insecure bool
	Proxy    string
	Ignored  []string
}

type parsed struct {
	method   string
	url      string
	headers  map[string]string
	cookies  map[string]string
	data     []string
	form     map[string]string
	user     string
	digest   bool
	get      bool
	location bool
	maxRedir int
	timeout  int
	insecure bool
	proxy    string
	ignored  []string
}

// Convert parses one curl command.
func (c *Converter) Convert(curlCmd string) (*Result, error) {
	p, err := c.parse(curlCmd)
	if err != nil {
		return nil, err
	}
	return c.toFile(p)
}

// ConvertReader converts every command in r. Lines ending in a backslash
// continue on the next line; blank lines and # comments are skipped.
func (c *Converter) ConvertReader(r io.Reader) ([]*Result, error) {
	var commands []string
	var current strings.Builder
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, "\\") {
			current.WriteString(strings.TrimSuffix(line, "\\"))
			current.WriteString(" ")
			continue
		}

		current.WriteString(line)
		commands = append(commands, current.String())
		current.Reset()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read commands: %w", err)
	}

	if current.Len() > 0 {
		commands = append(commands, current.String())
	}

	results := make([]*Result, 0, len(commands))
	for i, cmd := range commands {
		res, err := c.Convert(cmd)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// ConvertFile converts a file containing curl commands.
func (c *Converter) ConvertFile(path string) ([]*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return c.ConvertReader(file)
}

func (c *Converter) parse(curlCmd string) (*parsed, error) {
	p := &parsed{
		headers: make(map[string]string),
		cookies: make(map[string]string),
		form:    make(map[string]string),
	}

	curlCmd = strings.TrimSpace(curlCmd)
	if curlCmd == "curl" {
		return nil, ErrNoURL
	}
	curlCmd = strings.TrimPrefix(curlCmd, "curl ")

	tokens := tokenize(curlCmd)

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		value := func() (string, error) {
			if i+1 >= len(tokens) {
				return "", fmt.Errorf("missing value for %s", token)
			}
			i++
			return tokens[i], nil
		}

		switch token {
		case "-X", "--request":
			v, err := value()
			if err != nil {
				return nil, err
			}
			p.method = strings.ToUpper(v)

		case "-H", "--header":
			v, err := value()
			if err != nil {
				return nil, err
			}
			name, val, ok := strings.Cut(v, ":")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			val = strings.TrimSpace(val)
			if strings.EqualFold(name, "Cookie") {
				parseCookies(val, p.cookies)
				continue
			}
			p.headers[name] = val

		case "-d", "--data", "--data-raw", "--data-binary", "--data-ascii", "--data-urlencode":
			v, err := value()
			if err != nil {
				return nil, err
			}
			p.data = append(p.data, v)

		case "-F", "--form":
			v, err := value()
			if err != nil {
				return nil, err
			}
			name, val, ok := strings.Cut(v, "=")
			if !ok {
				return nil, fmt.Errorf("form field must be name=value, got %q", v)
			}
			p.form[name] = val

		case "-u", "--user":
			v, err := value()
			if err != nil {
				return nil, err
			}
			p.user = v

		case "--digest":
			p.digest = true

		case "-G", "--get":
			p.get = true

		case "-k", "--insecure":
			p.insecure = true

		case "-L", "--location":
			p.location = true

		case "--max-redirs":
			v, err := value()
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid --max-redirs %q", v)
			}
			p.maxRedir = n

		case "--connect-timeout":
			v, err := value()
			if err != nil {
				return nil, err
			}
			secs, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid --connect-timeout %q", v)
			}
			p.timeout = int(secs + 0.999)

		case "-x", "--proxy":
			v, err := value()
			if err != nil {
				return nil, err
			}
			p.proxy = v

		case "-A", "--user-agent":
			v, err := value()
			if err != nil {
				return nil, err
			}
			p.headers["User-Agent"] = v

		case "-e", "--referer":
			v, err := value()
			if err != nil {
				return nil, err
			}
			p.headers["Referer"] = v

		case "-b", "--cookie":
			v, err := value()
			if err != nil {
				return nil, err
			}
			parseCookies(v, p.cookies)

		case "--url":
			v, err := value()
			if err != nil {
				return nil, err
			}
			p.url = v

		default:
			if strings.HasPrefix(token, "-") {
				p.ignored = append(p.ignored, token)
				if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
					i++
				}
				continue
			}
			if p.url == "" && isURL(token) {
				p.url = token
			}
		}
	}

	if p.url == "" {
		return nil, ErrNoURL
	}

	return p, nil
}

func (c *Converter) toFile(p *parsed) (*Result, error) {
	f := &reqfile.File{
		Name:    generateName(p.url, p.effectiveMethod()),
		Method:  p.effectiveMethod(),
		URL:     p.url,
		Headers: nonEmpty(p.headers),
		Cookies: nonEmpty(p.cookies),
	}

	body := strings.Join(p.data, "&")
	switch {
	case p.get && len(p.data) > 0:
		params, err := parseForm(body)
		if err != nil {
			return nil, err
		}
		f.Params = params
	case len(p.form) > 0:
		f.Form = p.form
	case body != "" && isJSONObject(body):
		obj, _ := gjson.Parse(body).Value().(map[string]any)
		f.JSON = obj
		if k := headerKey(f.Headers, "Content-Type"); k != "" && strings.Contains(f.Headers[k], "json") {
			delete(f.Headers, k)
			f.Headers = nonEmpty(f.Headers)
		}
	case body != "":
		form, err := parseForm(body)
		if err != nil {
			return nil, err
		}
		f.Form = form
		if headerKey(f.Headers, "Content-Type") == "" {
			if f.Headers == nil {
				f.Headers = make(map[string]string)
			}
			f.Headers["Content-Type"] = "application/x-www-form-urlencoded"
		}
	}

	if p.location || p.maxRedir > 0 {
		n := c.maxRedirects
		if p.maxRedir > 0 {
			n = p.maxRedir
		}
		f.Redirects = &n
	}
	if p.timeout > 0 {
		t := p.timeout
		f.Timeout = &t
	}

	if p.user != "" {
		user, pass, _ := strings.Cut(p.user, ":")
		typ := "basic"
		if p.digest {
			typ = "digest"
		}
		f.Auth = &reqfile.Auth{Type: typ, Username: user, Password: pass}
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return &Result{
		File:     f,
		Insecure: p.insecure,
		Proxy:    p.proxy,
		Ignored:  p.ignored,
	}, nil
}

// effectiveMethod applies curl's rules: -X wins, -G forces GET, and data or
// form fields imply POST.
func (p *parsed) effectiveMethod() string {
	switch {
	case p.method != "":
		return p.method
	case p.get:
		return http.MethodGet.String()
	case len(p.data) > 0 || len(p.form) > 0:
		return http.MethodPost.String()
	}
	return http.MethodGet.String()
}

func parseCookies(header string, into map[string]string) {
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		into[name] = value
	}
}

func parseForm(body string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("data must be key=value pairs or a JSON object, got %q", pair)
		}
		out[key] = value
	}
	return out, nil
}

func isJSONObject(body string) bool {
	return gjson.Valid(body) && gjson.Parse(body).IsObject()
}

func headerKey(headers map[string]string, name string) string {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return ""
}

func nonEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}

// tokenize splits a curl command into tokens, respecting quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				escaped = true
			}
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
			} else {
				current.WriteRune(r)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
			} else {
				current.WriteRune(r)
			}
		case ' ', '\t':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "${")
}

var namePattern = regexp.MustCompile(`^(?:https?://)?[^/]*(/[^?#]*)?`)

// generateName builds a request name such as "get_users_123".
func generateName(url, method string) string {
	path := "/"
	if m := namePattern.FindStringSubmatch(url); len(m) > 1 && m[1] != "" {
		path = m[1]
	}

	path = strings.Trim(path, "/")
	if path == "" {
		path = "root"
	}

	path = strings.ReplaceAll(path, "/", "_")
	path = strings.ReplaceAll(path, "-", "_")

	return strings.ToLower(method) + "_" + path
}
