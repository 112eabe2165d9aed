package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/form"
	"github.com/stemsi/exstem-kiosk/internal/middleware"
	"github.com/stemsi/exstem-kiosk/internal/model"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/session"
	"github.com/stemsi/exstem-kiosk/internal/validator"
)

// ResultFileName is the download name of a finished session's submission.
const ResultFileName = "exam-result.json"

// StudentPortalHandler handles the exam-taking endpoints of one session.
type StudentPortalHandler struct {
	log zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(log zerolog.Logger) *StudentPortalHandler {
	return &StudentPortalHandler{
		log: log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// GetSession godoc
// GET /api/v1/student/session
// Returns status, remaining time and the integrity log.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	a := middleware.GetSession(c)
	response.Success(c, http.StatusOK, a.Controller.Snapshot())
}

// GetPaper godoc
// GET /api/v1/student/paper
// Returns the exam in display order with the answers held so far.
func (h *StudentPortalHandler) GetPaper(c *gin.Context) {
	a := middleware.GetSession(c)
	paper, err := a.Controller.Paper()
	if err != nil {
		response.Fail(c, http.StatusConflict, response.ErrNotInSession)
		return
	}
	response.Success(c, http.StatusOK, paper)
}

// SetAnswer godoc
// PUT /api/v1/student/answers/:field
// Writes one form field. A null value clears it.
func (h *StudentPortalHandler) SetAnswer(c *gin.Context) {
	a := middleware.GetSession(c)

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	field := c.Param("field")
	if err := a.Controller.SetAnswer(field, req.Value); err != nil {
		writeAnswerError(c, field, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"field": field, "value": req.Value})
}

func writeAnswerError(c *gin.Context, field string, err error) {
	switch {
	case errors.Is(err, session.ErrNotInSession):
		response.Fail(c, http.StatusConflict, response.ErrNotInSession)
	case errors.Is(err, form.ErrUnknownField), errors.Is(err, form.ErrInvalidValue):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidAnswer, map[string]string{field: err.Error()})
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// Save godoc
// POST /api/v1/student/save
// Writes a draft on demand.
func (h *StudentPortalHandler) Save(c *gin.Context) {
	a := middleware.GetSession(c)
	if err := a.Controller.ManualSave(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, session.ErrNotInSession):
			response.Fail(c, http.StatusConflict, response.ErrNotInSession)
		default:
			h.log.Warn().Err(err).Str("session_id", a.ID).Msg("Manual save failed")
			response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"saved": true})
}

// ReportEvent godoc
// POST /api/v1/student/events
// Feeds a browser integrity event to the monitor. The reaction tells the
// client what to prevent and whether the exam was auto-submitted.
func (h *StudentPortalHandler) ReportEvent(c *gin.Context) {
	a := middleware.GetSession(c)

	var req model.IntegrityEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	kind, err := session.ParseEventKind(req.Kind)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownEvent)
		return
	}

	reaction, err := a.Controller.HandleEvent(c.Request.Context(), kind)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", a.ID).Msg("Auto-submit not persisted")
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable, reaction)
		return
	}
	response.Success(c, http.StatusOK, reaction)
}

// Submit godoc
// POST /api/v1/student/submit
// Grades and records the session. Submitting twice returns the first result.
func (h *StudentPortalHandler) Submit(c *gin.Context) {
	a := middleware.GetSession(c)
	sub, err := a.Controller.Submit(c.Request.Context(), false)
	writeSubmission(c, h.log, a.ID, sub, err)
}

// RetrySubmit godoc
// POST /api/v1/student/submit/retry
// Persists a submission whose first write failed.
func (h *StudentPortalHandler) RetrySubmit(c *gin.Context) {
	a := middleware.GetSession(c)
	sub, err := a.Controller.RetryPersist(c.Request.Context())
	writeSubmission(c, h.log, a.ID, sub, err)
}

func writeSubmission(c *gin.Context, log zerolog.Logger, sessionID string, sub *model.Submission, err error) {
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, sub)
	case errors.Is(err, session.ErrNotInSession):
		response.Fail(c, http.StatusConflict, response.ErrNotInSession)
	case errors.Is(err, session.ErrStorageUnavailable):
		log.Error().Err(err).Str("session_id", sessionID).Msg("Submission not persisted")
		response.FailWithData(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable, sub)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// DownloadResult godoc
// GET /api/v1/student/result
// Returns the submission as a downloadable JSON file.
func (h *StudentPortalHandler) DownloadResult(c *gin.Context) {
	a := middleware.GetSession(c)
	sub, ok := a.Controller.Result()
	if !ok {
		response.Fail(c, http.StatusConflict, response.ErrResultNotReady)
		return
	}

	raw, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+ResultFileName+`"`)
	c.Data(http.StatusOK, "application/json", raw)
}
