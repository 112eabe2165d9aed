package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/service"
	"github.com/stemsi/exstem-kiosk/internal/session"
)

const pingTimeout = 2 * time.Second

// Pinger checks the storage connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler reports process and storage health.
type SystemHandler struct {
	backend        string
	store          Pinger
	sessionService *service.ExamSessionService
	monitorService *service.MonitorService
	startTime      time.Time
	log            zerolog.Logger
}

func NewSystemHandler(
	backend string,
	store Pinger,
	sessionService *service.ExamSessionService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *SystemHandler {
	return &SystemHandler{
		backend:        backend,
		store:          store,
		sessionService: sessionService,
		monitorService: monitorService,
		startTime:      time.Now(),
		log:            log.With().Str("component", "system_handler").Logger(),
	}
}

type systemStatus struct {
	Uptime        string `json:"uptime"`
	StoreBackend  string `json:"store_backend"`
	StoreOK       bool   `json:"store_ok"`
	StoreError    string `json:"store_error,omitempty"`
	Sessions      int    `json:"sessions"`
	InSession     int    `json:"in_session"`
	Finished      int    `json:"finished"`
	MonitorQueued int    `json:"monitor_queued"`
	Goroutines    int    `json:"goroutines"`
	HeapAlloc     uint64 `json:"heap_alloc"`
	NumGC         uint32 `json:"num_gc"`
	GoVersion     string `json:"go_version"`
}

// Health godoc
// GET /health
// Reports whether the store answers. 503 when it does not.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Health check failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

// Status godoc
// GET /api/v1/admin/system
func (h *SystemHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	st := systemStatus{
		Uptime:        time.Since(h.startTime).Truncate(time.Second).String(),
		StoreBackend:  h.backend,
		StoreOK:       true,
		MonitorQueued: h.monitorService.Pending(),
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
	}
	if err := h.store.Ping(ctx); err != nil {
		st.StoreOK = false
		st.StoreError = err.Error()
	}

	for _, s := range h.sessionService.List("") {
		st.Sessions++
		switch s.Status {
		case session.StatusInSession:
			st.InSession++
		case session.StatusFinished:
			st.Finished++
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	st.HeapAlloc = ms.HeapAlloc
	st.NumGC = ms.NumGC

	response.Success(c, http.StatusOK, st)
}
