package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/service"
)

const keepAliveInterval = 30 * time.Second

type MonitorHandler struct {
	publisher      *service.PublisherService
	sessionService *service.ExamSessionService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

func NewMonitorHandler(
	publisher *service.PublisherService,
	sessionService *service.ExamSessionService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		publisher:      publisher,
		sessionService: sessionService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSSE godoc
// GET /api/v1/admin/monitor?exam_id=
// Streams joins, integrity log lines and submissions of one exam. Defaults to
// the published exam.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	examID := c.Query("exam_id")
	if examID == "" {
		cfg, err := h.publisher.Current(reqCtx)
		if err != nil {
			response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
			return
		}
		if cfg.Exam == nil {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		examID = cfg.Exam.Meta.ExamID
	}

	sub, err := h.monitorService.Subscribe(reqCtx, examID)
	if err != nil {
		h.log.Error().Err(err).Str("exam_id", examID).Msg("Subscribe to monitor feed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	// Sessions hosted here; the feed below also carries other instances.
	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"exam_id":  examID,
			"sessions": h.sessionService.List(examID),
		},
	})
	c.Writer.Flush()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	h.log.Info().Str("exam_id", examID).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID).Msg("Admin disconnected from live monitor SSE")
			return

		case payload, ok := <-sub.C():
			if !ok {
				return
			}
			// Forward raw JSON directly
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(payload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()

		case <-keepAliveTicker.C:
			c.Writer.Write([]byte("data: "))
			c.Writer.Write(pingPayload)
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
		}
	}
}
