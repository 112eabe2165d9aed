package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/model"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/service"
	"github.com/stemsi/exstem-kiosk/internal/session"
	"github.com/stemsi/exstem-kiosk/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	authService *service.AuthService,
	sessionService *service.ExamSessionService,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
		log:            log.With().Str("component", "auth_handler").Logger(),
	}
}

// StudentLogin godoc
// POST /api/v1/auth/student/login
// Checks the access code against the published exam, starts a session and
// returns a token bound to it.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req model.StudentLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, snap, err := h.sessionService.Start(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidUser):
			response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidUser, map[string]string{
				"name": "must not be blank",
				"id":   "must not be blank",
			})
		case errors.Is(err, session.ErrInvalidAccessCode):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidAccessCode)
		case errors.Is(err, session.ErrStorageUnavailable):
			h.log.Error().Err(err).Msg("Student login failed")
			response.Fail(c, http.StatusServiceUnavailable, response.ErrStorageUnavailable)
		default:
			h.log.Error().Err(err).Msg("Student login failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	token, err := h.authService.GenerateStudentToken(a.ID, a.User.ID, a.ExamID)
	if err != nil {
		h.log.Error().Err(err).Msg("Issue student token")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token":      token,
		"session_id": a.ID,
		"session":    snap,
	})
}

// AdminLogin godoc
// POST /api/v1/auth/admin/login
// Checks the admin password and returns a JWT.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req model.AdminLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, err := h.authService.AdminLogin(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAdminDisabled):
			response.Fail(c, http.StatusForbidden, response.ErrAdminDisabled)
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"token": token})
}
