// Package http exposes the local diagnostic endpoints: health, live
// window state, display topology, and the crash-report index.
package http

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/glintapp/overlay/internal/domain/pool"
	"github.com/glintapp/overlay/internal/platform"
	"github.com/glintapp/overlay/internal/shared/types"
)

// Handlers serves the diagnostic API.
type Handlers struct {
	pool     *pool.Pool
	backend  platform.Backend
	crashDir string
	started  time.Time
	version  string
}

// NewHandlers creates the handler set.
func NewHandlers(p *pool.Pool, backend platform.Backend, crashDir, version string) *Handlers {
	return &Handlers{
		pool:     p,
		backend:  backend,
		crashDir: crashDir,
		started:  time.Now(),
		version:  version,
	}
}

// Register mounts the routes.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/windows", h.Windows)
	r.GET("/displays", h.Displays)
	r.GET("/crashes", h.Crashes)
}

// Health reports liveness and uptime.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Windows reports the live window snapshot.
func (h *Handlers) Windows(c *gin.Context) {
	snap := h.pool.Snapshot(func(b types.Bounds) int {
		d, ok := h.backend.DisplayNearest(b)
		if !ok {
			return 0
		}
		return d.ID
	})
	c.JSON(http.StatusOK, gin.H{"windows": snap})
}

// Displays reports the current display topology.
func (h *Handlers) Displays(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"displays": h.backend.Displays()})
}

// Crashes lists stored crash reports newest-first. ULID filenames
// sort chronologically, so the listing needs no file reads.
func (h *Handlers) Crashes(c *gin.Context) {
	entries, err := os.ReadDir(h.crashDir)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"reports": []string{}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "crash store unreadable"})
		return
	}
	reports := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		reports = append(reports, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(reports)))
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}
