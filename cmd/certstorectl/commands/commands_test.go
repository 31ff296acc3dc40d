package commands

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/internal/buildinfo"
	"github.com/certforge/certstore/internal/cli/credentials"
	"github.com/certforge/certstore/pkg/storage"
)

type cannedRoute struct {
	status int
	body   any
}

type recorded struct {
	method string
	path   string
	query  string
	body   []byte
}

// fakeServer answers "METHOD /path" keys with canned JSON and records
// every request.
func fakeServer(t *testing.T, routes map[string]cannedRoute) (*httptest.Server, *[]recorded) {
	t.Helper()
	var seen []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = append(seen, recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: body})

		rt, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if rt.status == 0 {
			rt.status = http.StatusOK
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rt.status)
		_ = json.NewEncoder(w).Encode(rt.body)
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

// execute runs certstorectl with an empty contexts file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(credentials.EnvConfigPath, "")
	return run(t, args...)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestLs_JSON(t *testing.T) {
	server, seen := fakeServer(t, map[string]cannedRoute{
		"GET /api/v1/storage/children": {body: []storage.StorageItem{
			{Path: "public/seals", Name: "seals", Kind: storage.KindDirectory},
			{Path: "public/logo.png", Name: "logo.png", Kind: storage.KindFile, Size: 512},
		}},
	})

	out, err := execute(t, "ls", "public", "--server", server.URL, "--token", "t", "-o", "json")
	require.NoError(t, err)

	var items []storage.StorageItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 2)
	assert.True(t, items[0].IsDir())
	assert.Equal(t, int64(512), items[1].Size)

	require.Len(t, *seen, 1)
	assert.Equal(t, "path=public", (*seen)[0].query)
}

func TestInfo_FallsBackToFolder(t *testing.T) {
	server, seen := fakeServer(t, map[string]cannedRoute{
		"GET /api/v1/storage/files/info": {status: http.StatusBadRequest, body: map[string]any{
			"title":  "Bad Request",
			"status": 400,
			"detail": `"templates" is a folder`,
			"kind":   "InvalidInput",
		}},
		"GET /api/v1/storage/folders/info": {body: storage.StorageItem{
			Path: "templates", Name: "templates", Kind: storage.KindDirectory, IsFromBucket: true,
		}},
	})

	out, err := execute(t, "info", "templates", "--server", server.URL, "--token", "t", "-o", "json")
	require.NoError(t, err)

	var item storage.StorageItem
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.True(t, item.IsDir())
	assert.True(t, item.IsFromBucket)
	assert.Len(t, *seen, 2)
}

func TestRm_ReportsPartialFailure(t *testing.T) {
	server, seen := fakeServer(t, map[string]cannedRoute{
		"POST /api/v1/storage/items/delete": {body: storage.BulkOperationResult{
			SuccessCount:    1,
			FailureCount:    1,
			SuccessfulItems: []storage.StorageItem{{Path: "public/old.png", Name: "old.png", Kind: storage.KindFile}},
			Errors: []storage.BulkError{
				{Path: "public/seal.png", Kind: storage.KindInUse, Message: "used by 2 templates"},
			},
		}},
	})

	out, err := execute(t, "rm", "-y", "public/old.png", "public/seal.png",
		"--server", server.URL, "--token", "t", "-o", "table", "--no-color")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 item(s) failed")
	assert.Contains(t, out, "Deleted 1 of 2 item(s)")
	assert.Contains(t, out, "public/seal.png")
	assert.Contains(t, out, "InUse")

	var body struct {
		Items []string `json:"items"`
	}
	require.Len(t, *seen, 1)
	require.NoError(t, json.Unmarshal((*seen)[0].body, &body))
	assert.Equal(t, []string{"public/old.png", "public/seal.png"}, body.Items)
}

func TestMv_LastArgumentIsDestination(t *testing.T) {
	server, seen := fakeServer(t, map[string]cannedRoute{
		"POST /api/v1/storage/items/move": {body: storage.BulkOperationResult{
			SuccessCount:    2,
			SuccessfulItems: []storage.StorageItem{
				{Path: "archive/a.pdf", Name: "a.pdf", Kind: storage.KindFile},
				{Path: "archive/b.pdf", Name: "b.pdf", Kind: storage.KindFile},
			},
		}},
	})

	_, err := execute(t, "mv", "templates/a.pdf", "templates/b.pdf", "archive",
		"--server", server.URL, "--token", "t", "-o", "json")
	require.NoError(t, err)

	var body struct {
		Items       []string `json:"items"`
		Destination string   `json:"destination"`
	}
	require.Len(t, *seen, 1)
	require.NoError(t, json.Unmarshal((*seen)[0].body, &body))
	assert.Equal(t, []string{"templates/a.pdf", "templates/b.pdf"}, body.Items)
	assert.Equal(t, "archive", body.Destination)
}

func TestPerms_SendsOnlyGivenFlags(t *testing.T) {
	server, seen := fakeServer(t, map[string]cannedRoute{
		"PUT /api/v1/storage/permissions": {body: storage.Succeeded(
			&storage.StorageItem{Path: "public/seals", Kind: storage.KindDirectory}, "Permissions updated")},
	})

	_, err := execute(t, "perms", "public/seals", "--allow-uploads=false",
		"--server", server.URL, "--token", "t", "-o", "json")
	require.NoError(t, err)

	var body struct {
		Path        string          `json:"path"`
		Permissions map[string]bool `json:"permissions"`
	}
	require.Len(t, *seen, 1)
	require.NoError(t, json.Unmarshal((*seen)[0].body, &body))
	assert.Equal(t, "public/seals", body.Path)
	assert.Equal(t, map[string]bool{"allowUploads": false}, body.Permissions)
}

func TestUsageRelease(t *testing.T) {
	server, seen := fakeServer(t, map[string]cannedRoute{
		"DELETE /api/v1/storage/usage/references/templates/42": {body: map[string]any{
			"removed": 3,
			"message": "Removed 3 usage records",
			"success": true,
		}},
	})

	out, err := execute(t, "usage", "release", "--table", "templates", "--ref", "42",
		"--server", server.URL, "--token", "t", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"removed": 3`)
	require.Len(t, *seen, 1)
}

func TestLogin_StoresTokenClaims(t *testing.T) {
	server, _ := fakeServer(t, map[string]cannedRoute{
		"GET /api/v1/storage/stats": {body: map[string]any{"path": "", "totalFiles": 0}},
	})

	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "alice",
		"role": "admin",
		"exp":  expires.Unix(),
	}).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	_, err = execute(t, "login", "--server", server.URL+"/", "--token", token, "--name", "dev", "-o", "table", "--no-color")
	require.NoError(t, err)

	store, err := credentials.NewStore()
	require.NoError(t, err)
	assert.Equal(t, "dev", store.GetCurrentContextName())

	ctx, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, server.URL, ctx.ServerURL)
	assert.Equal(t, "alice", ctx.Subject)
	assert.Equal(t, "admin", ctx.Role)
	assert.True(t, ctx.ExpiresAt.Equal(expires))
}

func TestLogin_RejectsExpiredToken(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	_, err = execute(t, "login", "--server", "http://127.0.0.1:1", "--token", token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in, dir, name string
	}{
		{"public/seals", "public", "seals"},
		{"templates", "", "templates"},
		{"/templates/2024/spring/", "templates/2024", "spring"},
	}
	for _, tt := range tests {
		dir, name := splitPath(tt.in)
		if dir != tt.dir || name != tt.name {
			t.Errorf("splitPath(%q) = (%q, %q), want (%q, %q)", tt.in, dir, name, tt.dir, tt.name)
		}
	}
}

func TestVersion(t *testing.T) {
	build = buildinfo.Info{Version: "2.0.1", Commit: "feedfacecafe", Date: "2026-03-04T05:06:07Z"}
	t.Cleanup(func() { build = buildinfo.Unstamped; versionShort = false })

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "certstorectl 2.0.1 (feedfacecafe, built 2026-03-04T05:06:07Z)\n"), out)

	out, err = execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "2.0.1\n", out)
}

func TestUserAgentCarriesVersion(t *testing.T) {
	build = buildinfo.Info{Version: "2.0.1"}
	t.Cleanup(func() { build = buildinfo.Unstamped })

	var agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(server.Close)

	_, err := execute(t, "ls", "public", "--server", server.URL, "--token", "t", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "certstorectl/2.0.1", agent)
}

func TestContextCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contexts.json")
	t.Setenv(credentials.EnvConfigPath, path)

	store, err := credentials.NewStoreAt(path)
	require.NoError(t, err)
	require.NoError(t, store.SetContext("certs.example.com:8080", &credentials.Context{ServerURL: "https://certs.example.com:8080", Token: "t1"}))
	require.NoError(t, store.SetContext("staging", &credentials.Context{ServerURL: "https://staging.example.com"}))

	_, err = run(t, "context", "rename", "certs.example.com:8080", "prod", "--no-color")
	require.NoError(t, err)
	_, err = run(t, "context", "rename", "staging", "prod", "--no-color")
	require.ErrorIs(t, err, credentials.ErrContextExists)

	out, err := run(t, "context", "current", "-o", "json")
	require.NoError(t, err)
	var cur map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cur))
	assert.Equal(t, "prod", cur["name"])
	assert.Equal(t, true, cur["logged_in"])
	assert.NotContains(t, out, "t1", "tokens are never printed")

	_, err = run(t, "context", "use", "staging", "--no-color")
	require.NoError(t, err)
	_, err = run(t, "logout", "--no-color")
	require.NoError(t, err)

	out, err = run(t, "context", "list", "-o", "json")
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "prod", list[0]["name"])
	assert.Equal(t, false, list[0]["current"])
	assert.Equal(t, "staging", list[1]["name"])
	assert.Equal(t, true, list[1]["current"])

	_, err = run(t, "context", "delete", "prod", "--force", "--no-color")
	require.NoError(t, err)
	reloaded, err := credentials.NewStoreAt(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"staging"}, reloaded.ListContexts())
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, "completion", "fish")
	require.NoError(t, err)
	assert.Contains(t, out, "certstorectl")

	_, err = execute(t, "completion", "cmd.exe")
	assert.Error(t, err)
}
