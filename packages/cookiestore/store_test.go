package cookiestore

import (
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "jar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("sqlite:")
	assert.Error(t, err)
}

func TestOpen_PrefixedPath(t *testing.T) {
	store, err := Open("sqlite://" + filepath.Join(t.TempDir(), "jar.db"))
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}

func TestSaveAndLoad(t *testing.T) {
	store := openTestStore(t)

	sid := http.NewCookie("sid", "abc")
	sid.Path = "/"
	sid.HTTPOnly = true
	sid.Set("Priority", "High")
	theme := http.NewCookie("theme", "dark")

	require.NoError(t, store.Save("a.com", []*http.Cookie{theme, sid, nil, {Name: ""}}))

	cookies, err := store.Load("a.com")
	require.NoError(t, err)
	require.Len(t, cookies, 2)

	assert.Equal(t, "sid", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)
	assert.True(t, cookies[0].HTTPOnly)
	assert.Equal(t, map[string]string{"Priority": "High"}, cookies[0].Extra)
	assert.Equal(t, "theme", cookies[1].Name)
}

func TestSave_Upsert(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Save("a.com", []*http.Cookie{http.NewCookie("sid", "1")}))
	require.NoError(t, store.Save("a.com", []*http.Cookie{http.NewCookie("sid", "2")}))

	cookies, err := store.Load("a.com")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "2", cookies[0].Value)
}

func TestLoad_IsolatedByHost(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save("a.com", []*http.Cookie{http.NewCookie("x", "1")}))
	require.NoError(t, store.Save("b.com", []*http.Cookie{http.NewCookie("y", "2")}))

	cookies, err := store.Load("b.com")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "y", cookies[0].Name)

	none, err := store.Load("c.com")
	require.NoError(t, err)
	assert.Empty(t, none)

	hosts, err := store.Hosts()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com"}, hosts)
}

func TestDelete(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Save("a.com", []*http.Cookie{http.NewCookie("x", "1"), http.NewCookie("y", "2")}))

	n, err := store.Delete("a.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	cookies, err := store.Load("a.com")
	require.NoError(t, err)
	assert.Empty(t, cookies)
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jar.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Save("a.com", []*http.Cookie{http.NewCookie("sid", "keep")}))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	cookies, err := reopened.Load("a.com")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "keep", cookies[0].Value)
}
