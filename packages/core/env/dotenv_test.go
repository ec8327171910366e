package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDotEnv(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected map[string]string
	}{
		{
			name:     "simple key-value",
			content:  "API_KEY=secret123",
			expected: map[string]string{"API_KEY": "secret123"},
		},
		{
			name:    "multiple keys",
			content: "KEY1=value1\nKEY2=value2\nKEY3=value3",
			expected: map[string]string{
				"KEY1": "value1",
				"KEY2": "value2",
				"KEY3": "value3",
			},
		},
		{
			name:     "double quoted value",
			content:  `API_KEY="secret with spaces"`,
			expected: map[string]string{"API_KEY": "secret with spaces"},
		},
		{
			name:     "single quoted value",
			content:  `API_KEY='secret with spaces'`,
			expected: map[string]string{"API_KEY": "secret with spaces"},
		},
		{
			name:     "export prefix",
			content:  "export PROXY=http://proxy:3128",
			expected: map[string]string{"PROXY": "http://proxy:3128"},
		},
		{
			name:     "comments are skipped",
			content:  "# This is a comment\nAPI_KEY=secret",
			expected: map[string]string{"API_KEY": "secret"},
		},
		{
			name:     "whitespace trimmed",
			content:  "  API_KEY  =  secret  ",
			expected: map[string]string{"API_KEY": "secret"},
		},
		{
			name:     "value with equals sign",
			content:  "TOKEN=a=b=c",
			expected: map[string]string{"TOKEN": "a=b=c"},
		},
		{
			name:     "line without equals skipped",
			content:  "JUSTAWORD\nKEY=v",
			expected: map[string]string{"KEY": "v"},
		},
		{
			name:     "empty file",
			content:  "",
			expected: map[string]string{},
		},
		{
			name:     "inline comment not supported",
			content:  "API_KEY=secret # this is included",
			expected: map[string]string{"API_KEY": "secret # this is included"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envFile := writeEnvFile(t, t.TempDir(), ".env", tt.content)

			result, err := LoadDotEnv(envFile)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadDotEnvFileNotFound(t *testing.T) {
	_, err := LoadDotEnv("/nonexistent/path/.env")
	assert.Error(t, err)
}

func TestLoadAndExportDotEnv(t *testing.T) {
	t.Setenv("HTTPHELPER_TEST_EXISTING", "from-os")
	envFile := writeEnvFile(t, t.TempDir(), ".env",
		"HTTPHELPER_TEST_EXISTING=from-file\nHTTPHELPER_TEST_NEW=new")
	t.Cleanup(func() { os.Unsetenv("HTTPHELPER_TEST_NEW") })

	vars, err := LoadAndExportDotEnv(envFile)

	require.NoError(t, err)
	assert.Equal(t, "from-file", vars["HTTPHELPER_TEST_EXISTING"])
	assert.Equal(t, "from-os", os.Getenv("HTTPHELPER_TEST_EXISTING"))
	assert.Equal(t, "new", os.Getenv("HTTPHELPER_TEST_NEW"))
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	base := writeEnvFile(t, dir, ".env", "A=1\nB=2")
	local := writeEnvFile(t, dir, ".env.local", "B=3")

	vars, err := LoadFiles(base, filepath.Join(dir, "missing.env"), local)

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "3"}, vars)
}

func TestLoadSystemEnv(t *testing.T) {
	t.Setenv("HTTPHELPER_PROXY", "http://p")
	t.Setenv("HTTPHELPER_", "ignored")

	vars := LoadSystemEnv("HTTPHELPER_")

	assert.Equal(t, "http://p", vars["PROXY"])
	_, ok := vars[""]
	assert.False(t, ok)
}
