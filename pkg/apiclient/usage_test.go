package apiclient

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckUsage(t *testing.T) {
	var sent pathRequest
	server := newTestServer(t, map[string]route{
		"POST /api/v1/storage/usage/check": {body: UsageCheck{
			FilePath:          "public/bg.png",
			IsInUse:           true,
			Usages:            []UsageRecord{{ReferenceTable: "template", UsageType: "template-background"}},
			DeleteBlockReason: "File is in use by: template (template-background)",
		}},
	}, func(_ *http.Request, body []byte) { _ = json.Unmarshal(body, &sent) })

	check, err := New(server.URL).CheckUsage("public/bg.png")
	require.NoError(t, err)
	assert.True(t, check.IsInUse)
	assert.False(t, check.CanDelete)
	assert.Equal(t, "public/bg.png", sent.FilePath)
}

func TestRegisterUsage(t *testing.T) {
	server := newTestServer(t, map[string]route{
		"POST /api/v1/storage/usage/register": {body: UsageResult{
			Success: true,
			Message: "Usage registered",
			Usage:   &UsageRecord{ID: "u1", FilePath: "public/bg.png"},
		}},
	}, nil)

	res, err := New(server.URL).RegisterUsage(RegisterUsageRequest{
		FilePath:       "public/bg.png",
		ReferenceID:    "42",
		ReferenceTable: "template",
		UsageType:      "template-background",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", res.Usage.ID)
}

func TestDeregisterReference_EscapesSegments(t *testing.T) {
	var rawPath string
	server := newTestServer(t, map[string]route{
		"DELETE /api/v1/storage/usage/references/template/a b": {body: UsageResult{Success: true, Removed: 2}},
	}, func(r *http.Request, _ []byte) { rawPath = r.URL.EscapedPath() })

	res, err := New(server.URL).DeregisterReference("template", "a b")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, "/api/v1/storage/usage/references/template/a%20b", rawPath)
}

func TestFileUsage(t *testing.T) {
	server := newTestServer(t, map[string]route{
		"GET /api/v1/storage/usage": {body: []UsageRecord{{ID: "u1"}, {ID: "u2"}}},
	}, nil)

	records, err := New(server.URL).FileUsage("public/bg.png")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
