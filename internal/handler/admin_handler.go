package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/model"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/service"
	"github.com/stemsi/exstem-kiosk/internal/validator"
)

// Download names of the admin exports.
const (
	ConfigFileName      = "exam-config.json"
	SubmissionsFileName = "submissions.csv"
)

// AdminHandler handles publishing and exports.
type AdminHandler struct {
	publisher      *service.PublisherService
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(publisher *service.PublisherService, sessionService *service.ExamSessionService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		publisher:      publisher,
		sessionService: sessionService,
		log:            log.With().Str("component", "admin_handler").Logger(),
	}
}

// Publish godoc
// POST /api/v1/admin/publish
// Validates an exam definition and publishes it with its settings.
func (h *AdminHandler) Publish(c *gin.Context) {
	var req model.PublishRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.publisher.Publish(c.Request.Context(), req.ExamJSON, req.AccessCode, req.MaxViolations, req.VoiceHint)
	if err != nil {
		var defErr *service.DefinitionError
		if errors.As(err, &defErr) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidDefinition, defErr.Fields)
			return
		}
		h.log.Error().Err(err).Msg("Publish failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}

	response.Success(c, http.StatusCreated, out)
}

// GetPublished godoc
// GET /api/v1/admin/publish
// Returns the published exam and settings. Missing parts are null.
func (h *AdminHandler) GetPublished(c *gin.Context) {
	cfg, err := h.publisher.Current(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Load published exam")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}
	response.Success(c, http.StatusOK, cfg)
}

// ClearPublished godoc
// DELETE /api/v1/admin/publish
// Unpublishes the exam. Submissions are kept.
func (h *AdminHandler) ClearPublished(c *gin.Context) {
	if err := h.publisher.ClearPublished(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("Clear published exam")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"cleared": true})
}

// ExportConfig godoc
// GET /api/v1/admin/export/config
// Downloads {settings, exam} as JSON.
func (h *AdminHandler) ExportConfig(c *gin.Context) {
	raw, err := h.publisher.ExportConfig(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Export config")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+ConfigFileName+`"`)
	c.Data(http.StatusOK, "application/json", raw)
}

// ExportSubmissions godoc
// GET /api/v1/admin/export/submissions.csv
// Downloads one CSV row per submission.
func (h *AdminHandler) ExportSubmissions(c *gin.Context) {
	raw, err := h.publisher.ExportSubmissionsCSV(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoSubmissions) {
			response.Fail(c, http.StatusNotFound, response.ErrNoSubmissions)
			return
		}
		h.log.Error().Err(err).Msg("Export submissions")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+SubmissionsFileName+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", raw)
}

// ListSubmissions godoc
// GET /api/v1/admin/submissions?page=1&per_page=20
// Lists recorded submissions, newest first.
func (h *AdminHandler) ListSubmissions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	subs, pagination, err := h.publisher.ListSubmissionsPage(c.Request.Context(), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("List submissions")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, subs, pagination)
}

// ListSessions godoc
// GET /api/v1/admin/sessions?exam_id=
// Lists sessions hosted by this server.
func (h *AdminHandler) ListSessions(c *gin.Context) {
	response.Success(c, http.StatusOK, h.sessionService.List(c.Query("exam_id")))
}
