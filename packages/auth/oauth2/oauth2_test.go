package oauth2

import (
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/httphelper/packages/http"
)

func tokenServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		atomic.AddInt32(hits, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		user, pass, ok := r.BasicAuth()
		if !ok || user != "app" || pass != "s3cret" {
			w.WriteHeader(nethttp.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"bad credentials"}`))
			return
		}

		switch r.PostForm.Get("grant_type") {
		case "client_credentials":
			assert.Equal(t, "read write", r.PostForm.Get("scope"))
			_, _ = w.Write([]byte(`{"access_token":"cc-token","token_type":"Bearer","expires_in":3600}`))
		case "password":
			assert.Equal(t, "alice", r.PostForm.Get("username"))
			assert.Equal(t, "pw", r.PostForm.Get("password"))
			_, _ = w.Write([]byte(`{"access_token":"pw-token","token_type":"Bearer","refresh_token":"r1"}`))
		case "refresh_token":
			assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
			_, _ = w.Write([]byte(`{"access_token":"refreshed","token_type":"Bearer"}`))
		default:
			w.WriteHeader(nethttp.StatusBadRequest)
			_, _ = w.Write([]byte(`not json`))
		}
	}))
}

func TestProvider_ClientCredentials(t *testing.T) {
	var hits int32
	server := tokenServer(t, &hits)
	defer server.Close()

	p := NewProvider(http.NewClient())
	cfg := &Config{
		TokenURL:     server.URL,
		ClientID:     "app",
		ClientSecret: "s3cret",
		Scopes:       []string{"read", "write"},
	}

	token, err := p.Token(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "cc-token", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.False(t, token.ExpiresAt.IsZero())

	again, err := p.Token(context.Background(), cfg)
	require.NoError(t, err)
	assert.Same(t, token, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "cached token is reused")

	p.Forget()
	_, err = p.Token(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestProvider_ExpiredTokenIsRefetched(t *testing.T) {
	var hits int32
	server := tokenServer(t, &hits)
	defer server.Close()

	p := NewProvider(http.NewClient())
	now := time.Now()
	p.now = func() time.Time { return now }
	cfg := &Config{TokenURL: server.URL, ClientID: "app", ClientSecret: "s3cret", Scopes: []string{"read", "write"}}

	_, err := p.Token(context.Background(), cfg)
	require.NoError(t, err)

	now = now.Add(3600*time.Second - expirySkew)
	_, err = p.Token(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestProvider_PasswordAndRefresh(t *testing.T) {
	var hits int32
	server := tokenServer(t, &hits)
	defer server.Close()

	p := NewProvider(http.NewClient())
	cfg := &Config{
		TokenURL:     server.URL,
		ClientID:     "app",
		ClientSecret: "s3cret",
		Username:     "alice",
		Password:     "pw",
		GrantType:    Password,
	}

	token, err := p.Token(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "pw-token", token.AccessToken)
	assert.Equal(t, "r1", token.RefreshToken)
	assert.True(t, token.ExpiresAt.IsZero())
	assert.False(t, token.Expired(time.Now().Add(24*time.Hour)))

	refreshed, err := p.Refresh(context.Background(), cfg, token.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", refreshed.AccessToken)

	cached, err := p.Token(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", cached.AccessToken)
}

func TestProvider_Errors(t *testing.T) {
	var hits int32
	server := tokenServer(t, &hits)
	defer server.Close()

	p := NewProvider(http.NewClient())

	_, err := p.Token(context.Background(), &Config{TokenURL: server.URL, ClientID: "app", ClientSecret: "wrong"})
	require.ErrorIs(t, err, ErrTokenRequest)
	assert.Contains(t, err.Error(), "invalid_client - bad credentials")

	_, err = p.Token(context.Background(), &Config{TokenURL: "http://127.0.0.1:1", ClientID: "app", ClientSecret: "s3cret"})
	require.ErrorIs(t, err, ErrTokenRequest)
	var reqErr *http.RequestError
	assert.ErrorAs(t, err, &reqErr)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"client credentials by default", Config{TokenURL: "https://auth.example.com/token"}, false},
		{"missing token url", Config{}, true},
		{"password without username", Config{TokenURL: "https://auth.example.com/token", GrantType: Password}, true},
		{"unknown grant", Config{TokenURL: "https://auth.example.com/token", GrantType: "implicit"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, http.ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
