package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-rmib/internal/rmib"
)

// Response is the standardized API response envelope.
type Response struct {
	Data     interface{} `json:"data"`
	Error    *ErrorBody  `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

// ErrorBody represents a structured error response.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Issues  []rmib.Issue      `json:"issues,omitempty"`
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// ────────────────────────────────────────────────────────────────────────────
// Helper builders
// ────────────────────────────────────────────────────────────────────────────

// Success sends a successful JSON response with the given status code and data.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Data:     data,
		Metadata: buildMetadata(c),
	})
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, Response{
		Data:     nil,
		Error:    &ErrorBody{Code: code, Message: GetMessage(code)},
		Metadata: buildMetadata(c),
	})
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, Response{
		Data:     nil,
		Error:    &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields},
		Metadata: buildMetadata(c),
	})
}

// FailWithError maps a session or store error onto a status and error code.
// Validation issues and server-provided messages are passed through.
func FailWithError(c *gin.Context, err error) {
	status, body := errorBody(err)
	c.JSON(status, Response{
		Data:     nil,
		Error:    body,
		Metadata: buildMetadata(c),
	})
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, Response{
		Data:     nil,
		Error:    &ErrorBody{Code: code, Message: GetMessage(code)},
		Metadata: buildMetadata(c),
	})
}

// ────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ────────────────────────────────────────────────────────────────────────────

func errorBody(err error) (int, *ErrorBody) {
	var (
		ve  *rmib.ValidationError
		ne  *rmib.NetworkError
		die *rmib.DataIntegrityError
	)

	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, &ErrorBody{Code: ErrInvalidEntry, Message: ve.Error(), Issues: ve.Issues}
	case errors.Is(err, rmib.ErrNotActive):
		return http.StatusConflict, simple(ErrSessionNotStarted)
	case errors.Is(err, rmib.ErrSubmitInProgress):
		return http.StatusConflict, simple(ErrSubmitInProgress)
	case errors.Is(err, rmib.ErrSessionClosed):
		return http.StatusConflict, simple(ErrSessionClosed)
	case errors.As(err, &ne):
		return http.StatusBadGateway, simple(ErrUpstreamUnavailable)
	case errors.As(err, &die):
		return http.StatusBadGateway, &ErrorBody{Code: ErrUpstreamRejected, Message: die.Error()}
	default:
		return http.StatusInternalServerError, simple(ErrInternal)
	}
}

func simple(code ErrCode) *ErrorBody {
	return &ErrorBody{Code: code, Message: GetMessage(code)}
}

func buildMetadata(c *gin.Context) Metadata {
	reqID, _ := c.Get(ContextKeyRequestID)
	id, ok := reqID.(string)
	if !ok || id == "" {
		id = uuid.New().String() // Fallback if middleware not applied
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
