package cmd

import (
	"bytes"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/httphelper/packages/cookiestore"
	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/abdul-hamid-achik/httphelper/packages/reqfile"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "httphelper version dev")
}

func TestSendCommand(t *testing.T) {
	server := newTestServer(t)

	out, _, err := execute(t, "send", server.URL+"/json", "--query", "user.name", "--no-color")
	require.NoError(t, err)
	assert.Equal(t, "bob\n", out)
	require.NotNil(t, app)
	assert.True(t, app.cfg.GetNoColor())
}

func TestSendCommandUsage(t *testing.T) {
	_, _, err := execute(t, "send")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, _, err = execute(t, "send", "--no-such-flag")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestBenchCommand(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("pong"))
	}))
	defer server.Close()

	out, _, err := execute(t, "bench", server.URL, "-n", "5", "--rate", "0", "-c", "2", "--output", "json")
	require.NoError(t, err)

	require.True(t, gjson.Valid(out), out)
	assert.Equal(t, int64(5), gjson.Get(out, "requests.total").Int())
	assert.Equal(t, int64(5), gjson.Get(out, "statuses.200").Int())
	assert.NotEmpty(t, gjson.Get(out, "runId").String())
	// One probe build plus five sends; the probe is never sent.
	assert.Equal(t, int64(5), hits.Load())

	_, _, err = execute(t, "bench", server.URL, "-n", "2", "--rate", "0", "-c", "1", "--output", "json", "--threshold", "rps>100000000")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCode(err))
}

func TestBenchCommandBadThreshold(t *testing.T) {
	_, _, err := execute(t, "bench", "http://127.0.0.1:1", "--threshold", "p75<1s")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestInitAndValidate(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	initCmd.SetOut(&out)
	defer initCmd.SetOut(nil)

	require.NoError(t, initProject(initCmd, dir))
	assert.FileExists(t, filepath.Join(dir, ".httphelper.yaml"))
	assert.FileExists(t, filepath.Join(dir, "example.yaml"))

	err := initProject(initCmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	f, err := reqfile.Load(filepath.Join(dir, "example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts", f.URL)

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "example.yaml")}, files)

	out.Reset()
	validateCmd.SetOut(&out)
	defer validateCmd.SetOut(nil)
	require.NoError(t, validateCommand(validateCmd, []string{dir}))
	assert.Contains(t, out.String(), "Valid: ")
}

func TestValidateCommandFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("method: PATCH\nurl: http://x\n"), 0644))

	var out bytes.Buffer
	validateCmd.SetOut(&out)
	validateCmd.SetErr(&out)
	defer validateCmd.SetOut(nil)
	defer validateCmd.SetErr(nil)

	err := validateCommand(validateCmd, []string{dir})
	require.Error(t, err)
	assert.Equal(t, ExitFailure, exitCode(err))
	assert.Contains(t, out.String(), "bad.yaml")
}

func TestCookiesCommands(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "jar.db")
	store, err := cookiestore.Open(jar)
	require.NoError(t, err)
	secure := http.NewCookie("sid", "abc")
	secure.Secure = true
	secure.Path = "/"
	require.NoError(t, store.Save("example.com", []*http.Cookie{secure, http.NewCookie("lang", "en")}))
	require.NoError(t, store.Close())

	cookieJarFlag = jar
	defer func() { cookieJarFlag = "" }()

	var out bytes.Buffer
	cookiesListCmd.SetOut(&out)
	defer cookiesListCmd.SetOut(nil)
	require.NoError(t, cookiesListCommand(cookiesListCmd, nil))
	assert.Equal(t, "example.com\n  lang=en\n  sid=abc  (path=/; secure)\n", out.String())

	out.Reset()
	cookiesClearCmd.SetOut(&out)
	defer cookiesClearCmd.SetOut(nil)
	require.NoError(t, cookiesClearCommand(cookiesClearCmd, []string{"example.com"}))
	assert.Equal(t, "Deleted 2 cookie(s) for example.com\n", out.String())
}

func TestImportCurlCommand(t *testing.T) {
	t.Cleanup(func() { importOutputFlag, importFromFlag, importMaxRedirectsFlag = "", "", 0 })

	out, stderr, err := execute(t, "import", "curl", `curl -k -u admin:pw -d "name=bob" https://api.example.com/users`)
	require.NoError(t, err)
	assert.Contains(t, out, "method: POST\n")
	assert.Contains(t, out, "url: https://api.example.com/users\n")
	assert.Contains(t, out, "type: basic\n")
	assert.Contains(t, stderr, "post_users: -k is a client setting")

	dir := t.TempDir()
	from := filepath.Join(dir, "commands.sh")
	require.NoError(t, os.WriteFile(from, []byte("curl https://api.example.com/users\ncurl -L https://api.example.com/users\n"), 0644))
	outDir := filepath.Join(dir, "requests")

	out, _, err = execute(t, "import", "curl", "--from", from, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Created: "+filepath.Join(outDir, "get_users.yaml"))
	assert.Contains(t, out, "Created: "+filepath.Join(outDir, "get_users_2.yaml"))

	f, err := reqfile.Load(filepath.Join(outDir, "get_users_2.yaml"))
	require.NoError(t, err)
	require.NotNil(t, f.Redirects)
	assert.Equal(t, 20, *f.Redirects)

	importFromFlag = ""
	importOutputFlag = ""
	_, _, err = execute(t, "import", "curl", "curl -X GET")
	assert.Equal(t, ExitUsageError, exitCode(err))
}
