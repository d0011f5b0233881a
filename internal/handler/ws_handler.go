package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-rmib/internal/service"
	"github.com/stemsi/exstem-rmib/internal/validator"
	ws "github.com/stemsi/exstem-rmib/internal/websocket"
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

// WSHandler streams the kiosk session to connected pages.
type WSHandler struct {
	svc      *service.SessionService
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(svc *service.SessionService, hub *ws.Hub, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		svc:      svc,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session
// Upgrades to WebSocket; every action is answered by view and notice events
// broadcast to all connected pages.
func (h *WSHandler) SessionStream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	client := h.hub.Register(conn)
	defer h.hub.Unregister(client)

	wsLog := h.log.With().Str("remote", c.ClientIP()).Logger()
	wsLog.Info().Msg("Page connected")

	// A (re)connecting page first gets the current state.
	if err := client.Send(ws.ViewResponse{Event: ws.EventView, View: h.svc.View()}); err != nil {
		return
	}

	for {
		var req ws.ActionRequest
		err := ws.ReadJSON(conn, &req)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		if err := h.respond(c.Request.Context(), client, &req, wsLog); err != nil {
			wsLog.Debug().Err(err).Msg("Write failed, closing")
			break
		}
	}
}

// respond applies one action and writes its direct reply, if any. The
// returned error is always a write failure on the connection.
func (h *WSHandler) respond(ctx context.Context, client *ws.Client, req *ws.ActionRequest, log zerolog.Logger) error {
	if fields := validator.Struct(req); fields != nil {
		var msg string
		for field, m := range fields {
			msg = field + ": " + m
			break
		}
		return client.Send(ws.ErrorResponse{Event: ws.EventError, Error: msg})
	}

	if req.Action == ws.ActionPing {
		return client.Send(ws.PongResponse{Event: ws.EventPong})
	}

	if err := dispatch(ctx, h.svc, req); err != nil {
		log.Debug().Err(err).Str("action", string(req.Action)).Msg("Action failed")
		return client.Send(ws.ErrorFor(err))
	}

	if req.Action == ws.ActionSubmit {
		announceSubmit(h.hub, h.svc)
	}
	return nil
}
