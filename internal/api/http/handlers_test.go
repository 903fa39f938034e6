package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/domain/pool"
	"github.com/glintapp/overlay/internal/platform/headless"
	"github.com/glintapp/overlay/internal/shared/types"
)

func newRouter(t *testing.T) (*gin.Engine, *pool.Pool, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := headless.New()
	p := pool.New(backend, types.DefaultWindowTable(), zap.NewNop())
	crashDir := t.TempDir()

	router := gin.New()
	NewHandlers(p, backend, crashDir, "1.0.0").Register(router)
	return router, p, crashDir
}

func get(t *testing.T, router *gin.Engine, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealth(t *testing.T) {
	router, _, _ := newRouter(t)
	code, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.0.0", body["version"])
}

func TestWindowsSnapshot(t *testing.T) {
	router, p, _ := newRouter(t)
	h, err := p.Create(types.WindowHeader)
	require.NoError(t, err)
	h.Window.ShowInactive()

	code, body := get(t, router, "/windows")
	assert.Equal(t, http.StatusOK, code)
	windows := body["windows"].(map[string]any)
	require.Contains(t, windows, "header")
	header := windows["header"].(map[string]any)
	assert.Equal(t, true, header["visible"])
}

func TestDisplays(t *testing.T) {
	router, _, _ := newRouter(t)
	code, body := get(t, router, "/displays")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["displays"], 1)
}

func TestCrashesListsNewestFirst(t *testing.T) {
	router, _, crashDir := newRouter(t)
	for _, name := range []string{"crash-01A.json", "crash-01B.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(crashDir, name), []byte("{}"), 0o644))
	}

	code, body := get(t, router, "/crashes")
	assert.Equal(t, http.StatusOK, code)
	reports := body["reports"].([]any)
	require.Len(t, reports, 2)
	assert.Equal(t, "crash-01B.json", reports[0])
	assert.Equal(t, "crash-01A.json", reports[1])
}

func TestCrashesEmptyWhenStoreMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	backend := headless.New()
	p := pool.New(backend, types.DefaultWindowTable(), zap.NewNop())
	router := gin.New()
	NewHandlers(p, backend, "/nonexistent/crashes", "1.0.0").Register(router)

	code, body := get(t, router, "/crashes")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["reports"])
}
