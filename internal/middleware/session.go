package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/service"
)

// ContextKeySession is the Gin context key for the caller's exam session.
const ContextKeySession = "exam_session"

// RequireActiveSession resolves the session named by the student token. A
// token whose session was reaped or lost in a restart is rejected.
func RequireActiveSession(sessions *service.ExamSessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		a, err := sessions.Get(claims.SessionID)
		if err != nil {
			response.AbortFail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}

		c.Set(ContextKeySession, a)
		c.Set(response.ContextKeySessionID, a.ID)
		c.Next()
	}
}

// GetSession retrieves the exam session resolved by RequireActiveSession.
func GetSession(c *gin.Context) *service.ActiveSession {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return nil
	}
	a, _ := val.(*service.ActiveSession)
	return a
}
