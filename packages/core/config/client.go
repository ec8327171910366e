package config

import (
	"time"

	httphelper "github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/rs/zerolog"
)

// ClientOptions translates the configuration into http client options.
func (c *Config) ClientOptions(log zerolog.Logger, metrics *httphelper.Metrics) []httphelper.ClientOption {
	opts := []httphelper.ClientOption{
		httphelper.WithConnectTimeout(time.Duration(c.ConnectTimeout) * time.Second),
		httphelper.WithFollowRedirects(c.GetFollowRedirects()),
		httphelper.WithCookies(c.GetEnableCookies()),
		httphelper.WithValidateSSL(c.GetValidateSSL()),
		httphelper.WithVerbose(c.GetVerbose()),
		httphelper.WithClientLogger(log),
		httphelper.WithClientMetrics(metrics),
	}
	if c.MaxRedirects > 0 {
		opts = append(opts, httphelper.WithMaxRedirects(c.MaxRedirects))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, httphelper.WithDefaultHeaders(c.Headers))
	}
	if c.Proxy != "" {
		opts = append(opts, httphelper.WithProxy(c.Proxy))
	}
	if c.UploadDir != "" {
		opts = append(opts, httphelper.WithUploadDir(c.UploadDir))
	}
	if c.RateLimit > 0 {
		opts = append(opts, httphelper.WithRateLimit(c.RateLimit, 1))
	}
	return opts
}
