package buildinfo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withVersion(t *testing.T, version, commit, built string) {
	t.Helper()
	ov, oc, ob := Version, Commit, BuildTime
	Version, Commit, BuildTime = version, commit, built
	t.Cleanup(func() { Version, Commit, BuildTime = ov, oc, ob })
}

func TestGet(t *testing.T) {
	withVersion(t, "v0.3.0", "1a2b3c4", "2026-02-11T18:00:00Z")

	info := Get()
	assert.Equal(t, Name, info.Name)
	assert.Equal(t, "v0.3.0", info.Version)
	assert.Equal(t, "1a2b3c4", info.Commit)
	assert.Equal(t, "2026-02-11T18:00:00Z", info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestString(t *testing.T) {
	withVersion(t, "v0.3.0", "1a2b3c4", "2026-02-11T18:00:00Z")
	assert.Equal(t, "v0.3.0 (1a2b3c4, 2026-02-11T18:00:00Z)", String())
}

func TestDefaults(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "unknown", Commit)
}

func TestHandler(t *testing.T) {
	withVersion(t, "v0.3.0", "1a2b3c4", "2026-02-11T18:00:00Z")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "v0.3.0", got.Version)
}
