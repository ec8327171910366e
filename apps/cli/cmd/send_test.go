package cmd

import (
	"bytes"
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/httphelper/packages/capture"
	"github.com/abdul-hamid-achik/httphelper/packages/cookiestore"
	"github.com/abdul-hamid-achik/httphelper/packages/http"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/json", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Trace", "abc")
		_, _ = w.Write([]byte(`{"user":{"name":"bob","id":7},"tags":["a","b"]}`))
	})
	mux.HandleFunc("/missing", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.Error(w, "nope", nethttp.StatusNotFound)
	})
	mux.HandleFunc("/login", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.SetCookie(w, &nethttp.Cookie{Name: "session", Value: "s-1", Path: "/"})
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/whoami", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		c, err := r.Cookie("session")
		if err != nil {
			nethttp.Error(w, "anonymous", nethttp.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(c.Value))
	})
	mux.HandleFunc("/token", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "app" || pass != "s3cret" {
			nethttp.Error(w, `{"error":"invalid_client"}`, nethttp.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":60}`))
	})
	mux.HandleFunc("/secure", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Authorization")))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestSender(out *bytes.Buffer, rawURL string, opts sendOptions) *sender {
	return &sender{
		client:    http.NewClient(),
		flags:     &requestFlags{},
		opts:      opts,
		rawURL:    rawURL,
		out:       out,
		log:       zerolog.Nop(),
		cookieJar: opts.cookieJar,
	}
}

func TestSenderPrintsBody(t *testing.T) {
	server := newTestServer(t)
	var out bytes.Buffer

	err := newTestSender(&out, server.URL+"/json", sendOptions{}).run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, `{"user":{"name":"bob","id":7},"tags":["a","b"]}`+"\n", out.String())
}

func TestSenderInclude(t *testing.T) {
	server := newTestServer(t)
	var out bytes.Buffer

	err := newTestSender(&out, server.URL+"/json", sendOptions{include: true}).run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "HTTP 200 OK\n")
	assert.Contains(t, out.String(), "X-Trace: abc\n")
	assert.Contains(t, out.String(), "Content-Type: application/json\n")
}

func TestSenderQuery(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		query string
		want  string
	}{
		{"user.name", "bob\n"},
		{"user", `{"id":7,"name":"bob"}` + "\n"},
		{"tags.#", "2\n"},
		{"header X-Trace", "abc\n"},
		{"status", "200\n"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var out bytes.Buffer
			err := newTestSender(&out, server.URL+"/json", sendOptions{query: tt.query}).run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestSenderQueryNoMatch(t *testing.T) {
	server := newTestServer(t)
	var out bytes.Buffer

	err := newTestSender(&out, server.URL+"/json", sendOptions{query: "user.email"}).run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCode(err))
}

func TestSenderCaptures(t *testing.T) {
	server := newTestServer(t)
	var out bytes.Buffer

	opts := sendOptions{captures: []string{"name=body user.name", "trace=header X-Trace", "gone=body nothing"}}
	err := newTestSender(&out, server.URL+"/json", opts).run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "\ngone: <not found>\nname: bob\ntrace: abc\n")
}

func TestSenderNon2xx(t *testing.T) {
	server := newTestServer(t)
	var out bytes.Buffer

	err := newTestSender(&out, server.URL+"/missing", sendOptions{}).run(context.Background())
	require.Error(t, err)

	assert.Equal(t, ExitFailure, exitCode(err))
	assert.Equal(t, "", err.Error())
	assert.Equal(t, "nope\n", out.String())
}

func TestSenderSchema(t *testing.T) {
	server := newTestServer(t)
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{"type":"object","required":["user"]}`), 0644))
	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"type":"object","required":["email"]}`), 0644))

	var out bytes.Buffer
	err := newTestSender(&out, server.URL+"/json", sendOptions{schema: valid}).run(context.Background())
	assert.NoError(t, err)

	err = newTestSender(&out, server.URL+"/json", sendOptions{schema: invalid}).run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCode(err))
	var schemaErr *capture.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
}

func TestSenderCookieJar(t *testing.T) {
	server := newTestServer(t)
	jarPath := filepath.Join(t.TempDir(), "jar.db")
	var out bytes.Buffer

	err := newTestSender(&out, server.URL+"/whoami", sendOptions{cookieJar: jarPath}).run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCode(err))

	out.Reset()
	err = newTestSender(&out, server.URL+"/login", sendOptions{cookieJar: jarPath}).run(context.Background())
	require.NoError(t, err)

	out.Reset()
	err = newTestSender(&out, server.URL+"/whoami", sendOptions{cookieJar: jarPath}).run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s-1\n", out.String())

	store, err := cookiestore.Open(jarPath)
	require.NoError(t, err)
	defer store.Close()
	hosts, err := store.Hosts()
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, hosts)
}

func TestSenderRequestFile(t *testing.T) {
	server := newTestServer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "req.yaml")
	content := "url: " + server.URL + "/json\ncaptures:\n  id: body user.id\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	var out bytes.Buffer
	s := newTestSender(&out, "", sendOptions{})
	s.flags = &requestFlags{file: path}
	require.NoError(t, s.run(context.Background()))

	assert.Contains(t, out.String(), "\nid: 7\n")
}

func TestSenderOAuth2RequestFile(t *testing.T) {
	server := newTestServer(t)
	path := filepath.Join(t.TempDir(), "req.yaml")
	content := "url: " + server.URL + "/secure\nauth:\n  type: oauth2\n  token_url: " + server.URL + "/token\n  client_id: app\n  client_secret: s3cret\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	var out bytes.Buffer
	s := newTestSender(&out, "", sendOptions{})
	s.flags = &requestFlags{file: path}
	require.NoError(t, s.run(context.Background()))
	assert.Equal(t, "Bearer tok-1\n", out.String())

	out.Reset()
	s.flags = &requestFlags{file: path, bearer: "manual"}
	require.NoError(t, s.run(context.Background()))
	assert.Equal(t, "Bearer manual\n", out.String())
}

func TestSenderInvalidRequestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.yaml")
	require.NoError(t, os.WriteFile(path, []byte("method: GET\n"), 0644))

	var out bytes.Buffer
	s := newTestSender(&out, "", sendOptions{})
	s.flags = &requestFlags{file: path}

	err := s.run(context.Background())
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestSenderConnectionRefused(t *testing.T) {
	server := httptest.NewServer(nethttp.NotFoundHandler())
	addr := server.URL
	server.Close()

	var out bytes.Buffer
	err := newTestSender(&out, addr, sendOptions{}).run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, exitCode(err))
}

func TestPrintError(t *testing.T) {
	var out bytes.Buffer
	printError(&out, &capture.SchemaError{Violations: []string{"email is required"}})

	assert.Contains(t, out.String(), "Error: schema validation failed: email is required\n")
	assert.Contains(t, out.String(), "  - email is required\n")
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "example.com", hostOf("https://example.com:8443/a"))
	assert.Equal(t, "", hostOf("::bad"))
}
