package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/httphelper/packages/core/env"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file settings.
const EnvPrefix = "HTTPHELPER_"

// ErrInvalidConfig is returned for configuration values out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the httphelper configuration
type Config struct {
	ConnectTimeout  int               `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty"` // seconds
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	EnableCookies   *bool             `json:"enableCookies,omitempty" yaml:"enableCookies,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	UploadDir       string            `json:"uploadDir,omitempty" yaml:"uploadDir,omitempty"`
	RateLimit       float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	LogLevel        string            `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFile         string            `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	CookieJar       string            `json:"cookieJar,omitempty" yaml:"cookieJar,omitempty"` // sqlite file
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// BoolPtr is exported version of boolPtr for external use
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetEnableCookies returns the cookie capture setting, defaulting to false
func (c *Config) GetEnableCookies() bool {
	return getBool(c.EnableCookies, false)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".httphelper.json",
	"httphelper.json",
	".httphelper.yaml",
	".httphelper.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile loads configuration from a specific file. ${VAR}
// references in string values are expanded from the process environment.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	config.Expand(env.NewExpander())

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return config, nil
}

// Expand replaces ${VAR} references in every string setting.
func (c *Config) Expand(e *env.Expander) {
	c.Proxy = e.Expand(c.Proxy)
	c.UploadDir = e.Expand(c.UploadDir)
	c.LogLevel = e.Expand(c.LogLevel)
	c.LogFile = e.Expand(c.LogFile)
	c.CookieJar = e.Expand(c.CookieJar)
	c.Headers = e.ExpandAll(c.Headers)
}

// Validate checks numeric ranges and the log level.
func (c *Config) Validate() error {
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("%w: connectTimeout must not be negative, got %d", ErrInvalidConfig, c.ConnectTimeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("%w: maxRedirects must not be negative, got %d", ErrInvalidConfig, c.MaxRedirects)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rateLimit must not be negative, got %g", ErrInvalidConfig, c.RateLimit)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("%w: unknown logLevel %q", ErrInvalidConfig, c.LogLevel)
		}
	}
	return nil
}

// FromEnv builds a partial config from HTTPHELPER_* variables, suitable as
// the argument of Merge. Unparseable values are reported as errors.
func FromEnv() (*Config, error) {
	vars := env.LoadSystemEnv(EnvPrefix)
	c := &Config{}

	for name, value := range vars {
		var err error
		switch name {
		case "CONNECT_TIMEOUT":
			c.ConnectTimeout, err = strconv.Atoi(value)
		case "FOLLOW_REDIRECTS":
			c.FollowRedirects, err = parseBoolPtr(value)
		case "MAX_REDIRECTS":
			c.MaxRedirects, err = strconv.Atoi(value)
		case "COOKIES":
			c.EnableCookies, err = parseBoolPtr(value)
		case "VALIDATE_SSL":
			c.ValidateSSL, err = parseBoolPtr(value)
		case "PROXY":
			c.Proxy = value
		case "UPLOAD_DIR":
			c.UploadDir = value
		case "RATE_LIMIT":
			c.RateLimit, err = strconv.ParseFloat(value, 64)
		case "VERBOSE":
			c.Verbose, err = parseBoolPtr(value)
		case "LOG_LEVEL":
			c.LogLevel = value
		case "LOG_FILE":
			c.LogFile = value
		case "COOKIE_JAR":
			c.CookieJar = value
		case "NO_COLOR":
			c.NoColor, err = parseBoolPtr(value)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s%s=%q", ErrInvalidConfig, EnvPrefix, name, value)
		}
	}

	return c, nil
}

func parseBoolPtr(s string) (*bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return boolPtr(b), nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c
	if c.Headers != nil {
		result.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			result.Headers[k] = v
		}
	}

	if other.ConnectTimeout > 0 {
		result.ConnectTimeout = other.ConnectTimeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.UploadDir != "" {
		result.UploadDir = other.UploadDir
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.LogFile != "" {
		result.LogFile = other.LogFile
	}
	if other.CookieJar != "" {
		result.CookieJar = other.CookieJar
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.EnableCookies != nil {
		result.EnableCookies = other.EnableCookies
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range other.Headers {
			result.Headers[k] = v
		}
	}

	return &result
}

// SaveConfig saves the configuration to a file, as YAML for .yaml/.yml
// paths and JSON otherwise.
func (c *Config) SaveConfig(path string) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
