// Package oauth2 fetches OAuth2 access tokens for request files that use
// "oauth2" auth. Tokens travel through the same request engine as every
// other call and are cached until shortly before they expire.
package oauth2

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/httphelper/packages/http"
)

var ErrTokenRequest = errors.New("token request failed")

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	ClientCredentials GrantType = "client_credentials"
	// Password is the resource owner password grant
	Password GrantType = "password"
)

// expirySkew is subtracted from expires_in to absorb clock skew.
const expirySkew = 30 * time.Second

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Username     string
	Password     string
	GrantType    GrantType
}

// Validate reports a missing token URL or an unsupported grant type.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("%w: oauth2 requires a token URL", http.ErrInvalidArgument)
	}
	switch c.grantType() {
	case ClientCredentials:
	case Password:
		if c.Username == "" {
			return fmt.Errorf("%w: oauth2 password grant requires a username", http.ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: unsupported OAuth2 grant type: %s", http.ErrInvalidArgument, c.GrantType)
	}
	return nil
}

func (c *Config) grantType() GrantType {
	if c.GrantType == "" {
		return ClientCredentials
	}
	return c.GrantType
}

func (c *Config) cacheKey() string {
	return fmt.Sprintf("%s:%s:%s:%s", c.TokenURL, c.ClientID, c.Username, strings.Join(c.Scopes, ","))
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Scope        string
	ExpiresAt    time.Time
}

// Expired reports whether the token is unusable at now. A token without
// expiry never expires.
func (t *Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(t.ExpiresAt)
}

// Provider handles OAuth2 token acquisition
type Provider struct {
	client *http.Client
	mu     sync.Mutex
	tokens map[string]*Token
	now    func() time.Time
}

// NewProvider creates a provider that sends token requests through client.
func NewProvider(client *http.Client) *Provider {
	return &Provider{
		client: client,
		tokens: make(map[string]*Token),
		now:    time.Now,
	}
}

// Token returns a cached token for cfg or fetches a new one.
func (p *Provider) Token(ctx context.Context, cfg *Config) (*Token, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := cfg.cacheKey()
	p.mu.Lock()
	cached := p.tokens[key]
	p.mu.Unlock()
	if cached != nil && !cached.Expired(p.now()) {
		return cached, nil
	}

	fields := map[string]string{"grant_type": string(cfg.grantType())}
	if cfg.grantType() == Password {
		fields["username"] = cfg.Username
		fields["password"] = cfg.Password
	}
	if len(cfg.Scopes) > 0 {
		fields["scope"] = strings.Join(cfg.Scopes, " ")
	}

	token, err := p.fetch(ctx, cfg, fields)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.tokens[key] = token
	p.mu.Unlock()

	return token, nil
}

// Refresh exchanges a refresh token for a new access token and caches it.
func (p *Provider) Refresh(ctx context.Context, cfg *Config, refreshToken string) (*Token, error) {
	token, err := p.fetch(ctx, cfg, map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.tokens[cfg.cacheKey()] = token
	p.mu.Unlock()

	return token, nil
}

// Forget drops every cached token.
func (p *Provider) Forget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = make(map[string]*Token)
}

func (p *Provider) fetch(ctx context.Context, cfg *Config, fields map[string]string) (*Token, error) {
	resp, err := p.client.Do(ctx, http.MethodPost.String(), cfg.TokenURL, func(r *http.Request) error {
		if err := r.AddHeaders(map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
			"Accept":       "application/json",
		}); err != nil {
			return err
		}
		if cfg.ClientID != "" && cfg.ClientSecret != "" {
			r.SetBasicAuth(cfg.ClientID, cfg.ClientSecret)
		}
		return r.AddPostFields(fields)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}

	if resp.Code() != 200 {
		if code := resp.JSON("error").String(); code != "" {
			return nil, fmt.Errorf("%w: %s - %s", ErrTokenRequest, code, resp.JSON("error_description").String())
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrTokenRequest, resp.Code(), resp.Body())
	}

	access := resp.JSON("access_token")
	if !access.Exists() || access.String() == "" {
		return nil, fmt.Errorf("%w: response has no access_token", ErrTokenRequest)
	}

	token := &Token{
		AccessToken:  access.String(),
		TokenType:    resp.JSON("token_type").String(),
		RefreshToken: resp.JSON("refresh_token").String(),
		Scope:        resp.JSON("scope").String(),
	}
	if secs := resp.JSON("expires_in").Int(); secs > 0 {
		token.ExpiresAt = p.now().Add(time.Duration(secs) * time.Second)
	}

	return token, nil
}
