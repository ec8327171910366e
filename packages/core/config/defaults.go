package config

const (
	// DefaultConnectTimeout is the connect timeout in seconds
	DefaultConnectTimeout = 30
	// DefaultMaxRedirects is the redirect hop limit
	DefaultMaxRedirects = 20
	// DefaultLogLevel is used when no level is configured
	DefaultLogLevel = "warn"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout:  DefaultConnectTimeout,
		FollowRedirects: boolPtr(true),
		MaxRedirects:    DefaultMaxRedirects,
		EnableCookies:   boolPtr(false),
		ValidateSSL:     boolPtr(true),
		Proxy:           "",
		Headers:         nil,
		RateLimit:       0,
		Verbose:         boolPtr(false),
		LogLevel:        DefaultLogLevel,
		NoColor:         boolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.ConnectTimeout == defaults.ConnectTimeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetEnableCookies() == defaults.GetEnableCookies() &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == defaults.Proxy &&
		len(c.Headers) == 0 &&
		c.UploadDir == defaults.UploadDir &&
		c.RateLimit == defaults.RateLimit &&
		c.GetVerbose() == defaults.GetVerbose() &&
		c.LogLevel == defaults.LogLevel &&
		c.LogFile == defaults.LogFile &&
		c.CookieJar == defaults.CookieJar &&
		c.GetNoColor() == defaults.GetNoColor()
}
