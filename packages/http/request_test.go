package http

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T) *Request {
	t.Helper()
	req, err := NewRequest(WithConn(newStubConn()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = req.Close() })
	return req
}

func TestNewRequest_Defaults(t *testing.T) {
	req := newTestRequest(t)

	assert.Equal(t, MethodGet, req.Method())
	assert.False(t, req.HasURL())
	assert.False(t, req.CookiesEnabled())
	assert.False(t, req.RedirectsEnabled())
	assert.Equal(t, DefaultMaxRedirects, req.MaxRedirects())
	assert.Equal(t, 0, req.ConnectTimeout())
	assert.Equal(t, 0, req.ResponseCode())
	assert.Empty(t, req.Headers())
	assert.Empty(t, req.Cookies())
	assert.Nil(t, req.JSON())
}

func TestNewRequest_OptionErrorClosesConn(t *testing.T) {
	conn := newStubConn()

	req, err := NewRequest(WithConn(conn), WithMethod("PATCH"))

	assert.Nil(t, req)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 1, conn.closed)
}

func TestNewRequest_NilConn(t *testing.T) {
	_, err := NewRequest(WithConn(nil))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewRequest_DefaultConn(t *testing.T) {
	req, err := NewRequest()
	require.NoError(t, err)
	defer req.Close()

	assert.IsType(t, &NetConn{}, req.conn)
}

func TestRequest_SetMethod(t *testing.T) {
	req := newTestRequest(t)

	for _, m := range Methods {
		require.NoError(t, req.SetMethod(m.String()))
		assert.Equal(t, m, req.Method())
	}

	for _, bad := range []string{"PATCH", "get", "", "OPTIONS"} {
		err := req.SetMethod(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument, bad)
	}
	assert.Equal(t, MethodDelete, req.Method())
}

func TestRequest_SetURL(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.SetURL("http://a.com/x?y=1"))
	assert.True(t, req.HasURL())
	assert.Equal(t, "http://a.com/x?y=1", req.URL())

	assert.ErrorIs(t, req.SetURL(""), ErrInvalidArgument)
	err := req.SetURL("not a url::::")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "not a url::::")
	assert.Equal(t, "http://a.com/x?y=1", req.URL())
}

func TestRequest_SetConnectTimeout(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.SetConnectTimeout(10))
	assert.Equal(t, 10, req.ConnectTimeout())
	assert.ErrorIs(t, req.SetConnectTimeout(-1), ErrInvalidArgument)
	assert.Equal(t, 10, req.ConnectTimeout())
}

func TestRequest_Headers(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.AddHeaders(map[string]string{"A": "1", "B": "2"}))
	require.NoError(t, req.AddHeaders(map[string]string{"A": "3"}))
	assert.Equal(t, map[string]string{"A": "3", "B": "2"}, req.Headers())

	require.NoError(t, req.SetHeaders(map[string]string{"C": "4"}))
	assert.Equal(t, map[string]string{"C": "4"}, req.Headers())

	req.UnsetHeader("C")
	assert.Equal(t, "", req.Header("C"))

	assert.ErrorIs(t, req.AddHeaders(map[string]string{" ": "x"}), ErrInvalidArgument)

	headers := req.Headers()
	headers["Mutated"] = "1"
	assert.Equal(t, "", req.Header("Mutated"))
}

func TestRequest_HeaderLines(t *testing.T) {
	req := newTestRequest(t)
	require.NoError(t, req.AddHeaders(map[string]string{"X-B": "2", "X-A": "1"}))

	lines := req.headerLines(map[string]string{"X-A": "override", "X-C": "3"})

	assert.Equal(t, []string{"X-A: override", "X-B: 2", "X-C: 3"}, lines)
	assert.Equal(t, "1", req.Header("X-A"))
}

func TestRequest_AddCookiesShapes(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.AddCookies(NewCookie("a", "1")))
	require.NoError(t, req.AddCookies(Cookie{Name: "b", Value: "2"}))
	require.NoError(t, req.AddCookies([]*Cookie{NewCookie("c", "3"), nil}))
	require.NoError(t, req.AddCookies(map[string]string{"d": "4"}))
	require.NoError(t, req.AddCookies(map[string]*Cookie{"e": NewCookie("e", "5")}))
	require.NoError(t, req.AddCookies(map[string]any{"f": "6", "g": NewCookie("g", "7")}))

	var names []string
	for _, c := range req.Cookies() {
		names = append(names, c.String())
	}
	assert.Equal(t, []string{"a=1", "b=2", "c=3", "d=4", "e=5", "f=6", "g=7"}, names)
}

func TestRequest_AddCookiesReplacesByName(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.AddCookies(map[string]string{"a": "1"}))
	require.NoError(t, req.AddCookies(NewCookie("a", "2")))

	cookies := req.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "2", cookies[0].Value)
}

func TestRequest_AddCookiesStoresCopy(t *testing.T) {
	req := newTestRequest(t)
	c := NewCookie("a", "1")
	require.NoError(t, req.AddCookies(c))

	c.Value = "changed"

	stored, ok := req.Cookie("a")
	require.True(t, ok)
	assert.Equal(t, "1", stored.Value)
}

func TestRequest_AddCookiesInvalid(t *testing.T) {
	req := newTestRequest(t)

	assert.ErrorIs(t, req.AddCookies("a=1"), ErrInvalidArgument)
	assert.ErrorIs(t, req.AddCookies(42), ErrInvalidArgument)
	assert.ErrorIs(t, req.AddCookies((*Cookie)(nil)), ErrInvalidArgument)
	assert.ErrorIs(t, req.AddCookies(map[string]any{"a": 1}), ErrInvalidArgument)
}

func TestRequest_SetCookies(t *testing.T) {
	req := newTestRequest(t)
	require.NoError(t, req.AddCookies(map[string]string{"a": "1", "b": "2"}))

	require.NoError(t, req.SetCookies(map[string]string{"c": "3"}))

	require.Len(t, req.Cookies(), 1)
	_, ok := req.Cookie("a")
	assert.False(t, ok)
}

func TestRequest_CookieToggle(t *testing.T) {
	req := newTestRequest(t)

	req.EnableCookies()
	assert.True(t, req.CookiesEnabled())
	req.DisableCookies()
	assert.False(t, req.CookiesEnabled())
}

func TestRequest_PostFields(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.AddPostFields(map[string]any{"n": 42, "b": true, "s": "x"}))
	assert.Equal(t, map[string]string{"n": "42", "b": "true", "s": "x"}, req.PostFields())

	require.NoError(t, req.AddPostFields(url.Values{"s": {"y", "z"}}))
	assert.Equal(t, "y", req.PostFields()["s"])

	require.NoError(t, req.SetPostFields(map[string]string{"only": "1"}))
	assert.Equal(t, map[string]string{"only": "1"}, req.PostFields())

	assert.ErrorIs(t, req.AddPostFields("a=1"), ErrInvalidArgument)
	assert.ErrorIs(t, req.AddPostFields(map[int]string{1: "a"}), ErrInvalidArgument)
}

func TestRequest_SetJSON(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.SetJSON(map[string]any{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, string(req.JSON()))

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, req.SetJSON(&payload{Name: "x"}))
	assert.JSONEq(t, `{"name":"x"}`, string(req.JSON()))

	assert.ErrorIs(t, req.SetJSON("text"), ErrInvalidArgument)
	assert.ErrorIs(t, req.SetJSON([]int{1}), ErrInvalidArgument)
	assert.ErrorIs(t, req.SetJSON(nil), ErrInvalidArgument)
	assert.ErrorIs(t, req.SetJSON(map[string]any{"f": func() {}}), ErrInvalidArgument)
	assert.JSONEq(t, `{"name":"x"}`, string(req.JSON()))

	req.ClearJSON()
	assert.Nil(t, req.JSON())
}

func TestRequest_Params(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.AddParams(map[string]string{"a": "1"}))
	require.NoError(t, req.AddParams(map[string]int{"b": 2}))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, req.Params())

	require.NoError(t, req.SetParams(map[string]string{"c": "3"}))
	assert.Equal(t, map[string]string{"c": "3"}, req.Params())

	assert.ErrorIs(t, req.AddParams([]string{"a"}), ErrInvalidArgument)
}

func TestRequest_TargetURL(t *testing.T) {
	req := newTestRequest(t)
	require.NoError(t, req.SetURL("http://a.com/x"))
	assert.Equal(t, "http://a.com/x", req.targetURL())

	require.NoError(t, req.AddParams(map[string]string{"q": "a&b"}))
	assert.Equal(t, "http://a.com/x?q=a%26b", req.targetURL())
}

func TestRequest_Redirects(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.EnableRedirects(5))
	assert.True(t, req.RedirectsEnabled())
	assert.Equal(t, 5, req.MaxRedirects())

	assert.ErrorIs(t, req.EnableRedirects(-1), ErrInvalidArgument)
	assert.Equal(t, 5, req.MaxRedirects())

	req.DisableRedirects()
	assert.False(t, req.RedirectsEnabled())
}

func TestRequest_Auth(t *testing.T) {
	req := newTestRequest(t)

	req.SetBasicAuth("user", "pass")
	assert.Equal(t, "Basic dXNlcjpwYXNz", req.Header("Authorization"))

	req.SetBearerToken("tok")
	assert.Equal(t, "Bearer tok", req.Header("Authorization"))
}
