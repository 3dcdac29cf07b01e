package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azaanlabs/kioskd/internal/config"
	"github.com/azaanlabs/kioskd/internal/tokenfile"
)

// writeCLIConfig writes a config file pointing at the given backend URL and
// returns its path.
func writeCLIConfig(t *testing.T, baseURL string, extra string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[server]\nbase_url = \"" + baseURL + "\"\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestPairCommand_SavesToken(t *testing.T) {
	resetFlags(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/devices/pair", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ABC123", body["code"])
		assert.Equal(t, "lobby display", body["device_name"])

		_ = json.NewEncoder(w).Encode(map[string]string{"token": "device-token-1"})
	}))
	defer srv.Close()

	cfgPath := writeCLIConfig(t, srv.URL, "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "pair", "ABC123", "--name", "lobby display"})
	require.NoError(t, cmd.Execute())

	tok, meta, err := tokenfile.Load(config.DefaultTokenPath())
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "device-token-1", tok.AccessToken)
	assert.Equal(t, "lobby display", meta["device_name"])
	assert.NotEmpty(t, meta["paired_at"])
}

func TestPairCommand_RejectedCode(t *testing.T) {
	resetFlags(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"unknown code"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	cfgPath := writeCLIConfig(t, srv.URL, "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "pair", "WRONG"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pairing failed")

	// No token file is left behind after a failed pairing.
	tok, _, err := tokenfile.Load(config.DefaultTokenPath())
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestPairCommand_RequiresCode(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"pair"})

	assert.Error(t, cmd.Execute())
}
