package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"cruzeta-api/internal/cache"
	"cruzeta-api/internal/policy"
	"cruzeta-api/internal/service"
	"cruzeta-api/pkg/response"
)

// StatsProvider reports backend statistics.
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles user administration and system stats.
type AdminHandler struct {
	users     *service.UserService
	store     StatsProvider
	cache     cache.Cache
	storeType string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(users *service.UserService, store StatsProvider, c cache.Cache, storeType string) *AdminHandler {
	return &AdminHandler{
		users:     users,
		store:     store,
		cache:     c,
		storeType: storeType,
		startTime: time.Now(),
	}
}

// ListUsers handles GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}

	users, err := h.users.List(r.Context(), actor)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.List(w, users)
}

// CreateUser handles POST /api/v1/admin/users
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	var body service.NewUser
	if !decodeJSON(w, r, &body) {
		return
	}

	user, err := h.users.Create(r.Context(), actor, body)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, user)
}

type roleBody struct {
	Role string `json:"role"`
}

// SetRole handles PUT /api/v1/admin/users/{id}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body roleBody
	if !decodeJSON(w, r, &body) {
		return
	}

	user, err := h.users.SetRole(r.Context(), actor, id, body.Role)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, user)
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrAbort(w, r)
	if !ok {
		return
	}
	if err := policy.Require(actor, policy.Admin); err != nil {
		response.Error(w, err)
		return
	}

	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if storeStats, err := h.store.GetStats(ctx); err == nil {
		storeStats["status"] = "connected"
		stats["store"] = storeStats
	} else {
		stats["store"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	if cacheStats, err := h.cache.Stats(ctx); err == nil {
		stats["cache"] = cacheStats
	} else {
		stats["cache"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
