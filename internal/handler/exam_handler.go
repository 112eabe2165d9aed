package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/service"
)

// ExamHandler serves the public lobby view of the published exam.
type ExamHandler struct {
	publisher *service.PublisherService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(publisher *service.PublisherService) *ExamHandler {
	return &ExamHandler{publisher: publisher}
}

// GetPublishedExam godoc
// GET /api/v1/exam
// Returns the title and duration of the published exam, without questions or
// the access code.
func (h *ExamHandler) GetPublishedExam(c *gin.Context) {
	cfg, err := h.publisher.Current(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		return
	}
	if cfg.Exam == nil || cfg.Settings == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"meta":           cfg.Exam.Meta,
		"question_count": len(cfg.Exam.Questions),
		"total_points":   cfg.Exam.TotalPoints(),
	})
}
