package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-rmib/internal/response"
	"github.com/stemsi/exstem-rmib/internal/service"
	"github.com/stemsi/exstem-rmib/internal/validator"
	ws "github.com/stemsi/exstem-rmib/internal/websocket"
)

// SessionHandler serves the kiosk session over plain HTTP.
type SessionHandler struct {
	svc *service.SessionService
	hub *ws.Hub
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc *service.SessionService, hub *ws.Hub) *SessionHandler {
	return &SessionHandler{svc: svc, hub: hub}
}

// GetSession godoc
// GET /api/v1/session
// Returns the current view, unload guard and submit result.
func (h *SessionHandler) GetSession(c *gin.Context) {
	response.Success(c, http.StatusOK, stateOf(h.svc))
}

// GetCategories godoc
// GET /api/v1/session/categories
func (h *SessionHandler) GetCategories(c *gin.Context) {
	response.Success(c, http.StatusOK, h.svc.Session().Categories())
}

// StartSession godoc
// POST /api/v1/session/start
func (h *SessionHandler) StartSession(c *gin.Context) {
	if err := h.svc.Start(c.Request.Context()); err != nil {
		response.FailWithError(c, err)
		return
	}
	response.Success(c, http.StatusOK, stateOf(h.svc))
}

// PostAction godoc
// POST /api/v1/session/actions
// Body: {"action": "set_value", "category": "outdoor", "value": 3}
func (h *SessionHandler) PostAction(c *gin.Context) {
	var req ws.ActionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := dispatch(c.Request.Context(), h.svc, &req); err != nil {
		response.FailWithError(c, err)
		return
	}
	if req.Action == ws.ActionSubmit {
		announceSubmit(h.hub, h.svc)
	}
	response.Success(c, http.StatusOK, stateOf(h.svc))
}
