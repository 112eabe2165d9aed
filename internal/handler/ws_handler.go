package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-kiosk/internal/form"
	"github.com/stemsi/exstem-kiosk/internal/logger"
	"github.com/stemsi/exstem-kiosk/internal/middleware"
	"github.com/stemsi/exstem-kiosk/internal/response"
	"github.com/stemsi/exstem-kiosk/internal/service"
	"github.com/stemsi/exstem-kiosk/internal/session"
	ws "github.com/stemsi/exstem-kiosk/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the student session stream.
type WSHandler struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) write(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteTyped(w.conn, v)
}

func (w *wsConn) fail(code response.ErrCode) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ws.WriteError(w.conn, string(code), response.GetMessage(code))
}

// SessionStream godoc
// WS /ws/v1/student/stream
// Pushes tick, log, speak, fullscreen and finished events and accepts answer,
// save, submit, event and ping actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	a := middleware.GetSession(c)
	if a == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := logger.Session(h.log, a.ID, a.ExamID, a.User.ID)
	wsLog.Info().Msg("Student connected")

	out := &wsConn{conn: conn}
	events, cancel := a.Subscribe()
	defer cancel()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for e := range events {
			if err := out.write(ws.FromSessionEvent(e)); err != nil {
				wsLog.Debug().Err(err).Msg("Push failed")
				return
			}
		}
	}()

	for {
		raw, err := ws.ReadMessage(conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		h.dispatch(c.Request.Context(), a, out, wsLog, raw)
	}

	cancel()
	<-pumpDone
}

func (h *WSHandler) dispatch(ctx context.Context, a *service.ActiveSession, out *wsConn, wsLog zerolog.Logger, raw []byte) {
	action, err := ws.DecodeAction(raw)
	if err != nil {
		out.fail(response.ErrInvalidPayload)
		return
	}

	switch action {
	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			out.fail(response.ErrInvalidPayload)
			return
		}
		if err := a.Controller.SetAnswer(req.Field, req.Value); err != nil {
			switch {
			case errors.Is(err, session.ErrNotInSession):
				out.fail(response.ErrNotInSession)
			case errors.Is(err, form.ErrUnknownField), errors.Is(err, form.ErrInvalidValue):
				out.fail(response.ErrInvalidAnswer)
			default:
				out.fail(response.ErrInternal)
			}
			return
		}
		out.write(ws.SavedResponse{Event: ws.EventSaved, Field: req.Field})

	case ws.ActionSave:
		if err := a.Controller.ManualSave(ctx); err != nil {
			if errors.Is(err, session.ErrNotInSession) {
				out.fail(response.ErrNotInSession)
				return
			}
			wsLog.Warn().Err(err).Msg("Manual save failed")
			out.fail(response.ErrStorageUnavailable)
			return
		}
		out.write(ws.SavedResponse{Event: ws.EventSaved})

	case ws.ActionEvent:
		var req ws.EventRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			out.fail(response.ErrInvalidPayload)
			return
		}
		kind, err := session.ParseEventKind(req.Kind)
		if err != nil {
			out.fail(response.ErrUnknownEvent)
			return
		}
		reaction, err := a.Controller.HandleEvent(ctx, kind)
		out.write(ws.ReactionResponse{Event: ws.EventReaction, Reaction: reaction})
		if err != nil {
			wsLog.Error().Err(err).Msg("Auto-submit not persisted")
			out.fail(response.ErrStorageUnavailable)
		}

	case ws.ActionSubmit:
		// The finished event reaches the client through the subscription.
		if _, err := a.Controller.Submit(ctx, false); err != nil {
			if errors.Is(err, session.ErrStorageUnavailable) {
				wsLog.Error().Err(err).Msg("Submission not persisted")
				out.fail(response.ErrStorageUnavailable)
				return
			}
			out.fail(response.ErrNotInSession)
		}

	case ws.ActionPing:
		out.write(ws.PongResponse{Event: ws.EventPong})

	default:
		wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
		out.fail(response.ErrInvalidPayload)
	}
}
