package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whoamiServer(t *testing.T, validKey string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/whoami" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("X-API-Key") != validKey {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"code":"UNAUTHORIZED","message":"Invalid API key"}}`)
			return
		}
		io.WriteString(w, `{"authRequired":true,"keyId":"0123456789ab"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthLoginStatusLogout(t *testing.T) {
	isolate(t)
	srv := whoamiServer(t, "dd_key_abcdefghijklmnop")

	out, err := execute(t, "--server", srv.URL, "auth", "login", "--key", "dd_key_abcdefghijklmnop")
	require.NoError(t, err)
	assert.Contains(t, out, "Authenticated to "+srv.URL)
	assert.Contains(t, out, "dd_key_a...mnop")

	info, err := os.Stat(credentialsFilePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	creds, err := loadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "0123456789ab", creds.Servers[srv.URL].KeyID)

	out, err = execute(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, srv.URL)
	assert.Contains(t, out, "id: 0123456789ab")

	out, err = execute(t, "--server", srv.URL, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out from "+srv.URL)
	assert.Empty(t, getCredential(srv.URL))

	out, err = execute(t, "--server", srv.URL, "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "No credentials found")
}

func TestAuthLoginPromptsForKey(t *testing.T) {
	isolate(t)
	srv := whoamiServer(t, "dd_key_fromstdin1234")

	cmd := newRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader("dd_key_fromstdin1234\n"))
	cmd.SetArgs([]string{"--server", srv.URL, "auth", "login"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Enter API key for "+srv.URL)
	assert.Equal(t, "dd_key_fromstdin1234", getCredential(srv.URL))
}

func TestAuthLoginRejectsInvalidKey(t *testing.T) {
	isolate(t)
	srv := whoamiServer(t, "dd_key_good")

	_, err := execute(t, "--server", srv.URL, "auth", "login", "--key", "dd_key_bad")
	assert.ErrorContains(t, err, "invalid API key")

	_, err = os.Stat(credentialsFilePath())
	assert.True(t, os.IsNotExist(err))

	_, err = execute(t, "--server", srv.URL, "auth", "login")
	assert.ErrorContains(t, err, "cannot be empty")
}

func TestAuthStatusEmpty(t *testing.T) {
	isolate(t)

	out, err := execute(t, "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Not authenticated to any servers")
}

func TestAuthLogoutAll(t *testing.T) {
	isolate(t)
	require.NoError(t, saveCredential("http://a.example", ServerCredential{APIKey: "dd_key_a"}))
	require.NoError(t, saveCredential("http://b.example", ServerCredential{APIKey: "dd_key_b"}))

	creds, err := loadCredentials()
	require.NoError(t, err)
	assert.Len(t, creds.Servers, 2)

	out, err := execute(t, "auth", "logout", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "All credentials cleared")

	_, err = loadCredentials()
	assert.True(t, os.IsNotExist(err))
}

func TestCredentialsFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".delegation-deployments", "credentials"), credentialsFilePath())
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"dd_key_abcdefghijklmnop", "dd_key_a...mnop"},
		{"short", "****"},
		{"12345678", "****"},
		{"123456789", "12345678...6789"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskAPIKey(tt.key))
		})
	}
}
