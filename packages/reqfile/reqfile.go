package reqfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/httphelper/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/httphelper/packages/core/env"
	"github.com/abdul-hamid-achik/httphelper/packages/http"
)

var ErrInvalidFile = errors.New("invalid request file")

// File is one request definition.
type File struct {
	Path string `yaml:"-"`

	Name    string            `yaml:"name,omitempty"`
	Method  string            `yaml:"method,omitempty"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Params  map[string]string `yaml:"params,omitempty"`
	Cookies map[string]string `yaml:"cookies,omitempty"`
	Form    map[string]string `yaml:"form,omitempty"`
	JSON    map[string]any    `yaml:"json,omitempty"`

	// Redirects is the redirect limit; 0 disables following and nil keeps
	// the request's current setting.
	Redirects      *int  `yaml:"redirects,omitempty"`
	CookiesEnabled *bool `yaml:"cookies_enabled,omitempty"`
	Timeout        *int  `yaml:"timeout,omitempty"`

	Auth *Auth `yaml:"auth,omitempty"`

	// Captures maps names to capture expressions evaluated on the response.
	Captures map[string]string `yaml:"captures,omitempty"`
	// Schema is a JSON schema file the response body must satisfy, relative
	// to the request file.
	Schema string `yaml:"schema,omitempty"`
}

// Auth selects one authentication scheme.
type Auth struct {
	Type      string `yaml:"type"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	Token     string `yaml:"token,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Service   string `yaml:"service,omitempty"`

	// oauth2 only. The token is fetched by the caller before Apply.
	TokenURL     string   `yaml:"token_url,omitempty"`
	ClientID     string   `yaml:"client_id,omitempty"`
	ClientSecret string   `yaml:"client_secret,omitempty"`
	Scopes       []string `yaml:"scopes,omitempty"`
	GrantType    string   `yaml:"grant_type,omitempty"`
}

// OAuth2 returns the token settings of an oauth2 auth block, or nil for
// any other scheme.
func (a *Auth) OAuth2() *oauth2.Config {
	if a == nil || !strings.EqualFold(a.Type, "oauth2") {
		return nil
	}
	return &oauth2.Config{
		TokenURL:     a.TokenURL,
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		Scopes:       a.Scopes,
		Username:     a.Username,
		Password:     a.Password,
		GrantType:    oauth2.GrantType(a.GrantType),
	}
}

// Load reads, expands and validates a request file.
func Load(path string) (*File, error) {
	return LoadWithExpander(path, env.NewExpander())
}

// LoadWithExpander is Load with a caller-provided variable expander.
func LoadWithExpander(path string, expander *env.Expander) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path

	if expander != nil {
		f.Expand(expander)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return f, nil
}

// Parse decodes a request file without expanding or validating it.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return &f, nil
}

// Expand replaces ${VAR} references in every string value.
func (f *File) Expand(e *env.Expander) {
	f.Method = e.Expand(f.Method)
	f.URL = e.Expand(f.URL)
	f.Headers = e.ExpandAll(f.Headers)
	f.Params = e.ExpandAll(f.Params)
	f.Cookies = e.ExpandAll(f.Cookies)
	f.Form = e.ExpandAll(f.Form)
	f.Schema = e.Expand(f.Schema)
	if f.JSON != nil {
		f.JSON = expandValue(e, f.JSON).(map[string]any)
	}
	if f.Auth != nil {
		a := f.Auth
		a.Username = e.Expand(a.Username)
		a.Password = e.Expand(a.Password)
		a.Token = e.Expand(a.Token)
		a.AccessKey = e.Expand(a.AccessKey)
		a.SecretKey = e.Expand(a.SecretKey)
		a.Region = e.Expand(a.Region)
		a.Service = e.Expand(a.Service)
		a.TokenURL = e.Expand(a.TokenURL)
		a.ClientID = e.Expand(a.ClientID)
		a.ClientSecret = e.Expand(a.ClientSecret)
	}
}

func expandValue(e *env.Expander, v any) any {
	switch val := v.(type) {
	case string:
		return e.Expand(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandValue(e, item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(e, item)
		}
		return out
	default:
		return v
	}
}

// Validate checks the file for values no request would accept.
func (f *File) Validate() error {
	if strings.TrimSpace(f.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidFile)
	}
	if f.Method != "" {
		if _, err := http.ParseMethod(f.Method); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
	}
	if f.JSON != nil && len(f.Form) > 0 {
		return fmt.Errorf("%w: json and form are mutually exclusive", ErrInvalidFile)
	}
	if f.Redirects != nil && *f.Redirects < 0 {
		return fmt.Errorf("%w: redirects cannot be negative", ErrInvalidFile)
	}
	if f.Timeout != nil && *f.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", ErrInvalidFile)
	}
	if f.Auth != nil {
		switch strings.ToLower(f.Auth.Type) {
		case "basic", "digest", "bearer", "aws":
		case "oauth2":
			if err := f.Auth.OAuth2().Validate(); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidFile, err)
			}
		default:
			return fmt.Errorf("%w: unknown auth type %q", ErrInvalidFile, f.Auth.Type)
		}
	}
	return nil
}

// SchemaPath resolves Schema against the directory of the request file.
func (f *File) SchemaPath() string {
	if f.Schema == "" || filepath.IsAbs(f.Schema) || f.Path == "" {
		return f.Schema
	}
	return filepath.Join(filepath.Dir(f.Path), f.Schema)
}

// Apply configures req from the file. Values already set on req are kept
// unless the file sets the same key.
func (f *File) Apply(req *http.Request) error {
	if f.Method != "" {
		if err := req.SetMethod(f.Method); err != nil {
			return err
		}
	}
	if err := req.SetURL(f.URL); err != nil {
		return err
	}
	if err := req.AddHeaders(f.Headers); err != nil {
		return err
	}
	if len(f.Params) > 0 {
		if err := req.AddParams(f.Params); err != nil {
			return err
		}
	}
	if len(f.Cookies) > 0 {
		if err := req.AddCookies(f.Cookies); err != nil {
			return err
		}
	}
	if len(f.Form) > 0 {
		if err := req.AddPostFields(f.Form); err != nil {
			return err
		}
	}
	if f.JSON != nil {
		if err := req.SetJSON(f.JSON); err != nil {
			return err
		}
	}

	if f.Redirects != nil {
		if *f.Redirects == 0 {
			req.DisableRedirects()
		} else if err := req.EnableRedirects(*f.Redirects); err != nil {
			return err
		}
	}
	if f.CookiesEnabled != nil {
		if *f.CookiesEnabled {
			req.EnableCookies()
		} else {
			req.DisableCookies()
		}
	}
	if f.Timeout != nil {
		if err := req.SetConnectTimeout(*f.Timeout); err != nil {
			return err
		}
	}

	if f.Auth != nil {
		a := f.Auth
		switch strings.ToLower(a.Type) {
		case "basic":
			req.SetBasicAuth(a.Username, a.Password)
		case "bearer":
			req.SetBearerToken(a.Token)
		case "digest":
			req.SetDigestAuth(a.Username, a.Password)
		case "aws":
			req.SetAWSAuth(http.AWSAuthCredentials{
				AccessKey: a.AccessKey,
				SecretKey: a.SecretKey,
				Region:    a.Region,
				Service:   a.Service,
			})
		}
	}

	return nil
}

// Marshal encodes the file as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Save writes the file as YAML.
func (f *File) Save(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
