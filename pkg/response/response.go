package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/crime-report-api/pkg/errors"
)

const exposeInternalKey = "expose_internal_errors"

// Envelope represents the common response contract.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// ErrorDetail toggles whether 5xx messages carry the wrapped cause for the rest of the request.
func ErrorDetail(expose bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(exposeInternalKey, expose)
		c.Next()
	}
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data}
	if len(meta) > 0 && len(meta[0]) > 0 {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		appErr = publicInternal(c, appErr)
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func publicInternal(c *gin.Context, appErr *appErrors.Error) *appErrors.Error {
	message := appErrors.ErrInternal.Message
	if exposeInternal(c) {
		message = appErr.Error()
	}
	return &appErrors.Error{Code: appErr.Code, Status: appErr.Status, Message: message}
}

func exposeInternal(c *gin.Context) bool {
	value, ok := c.Get(exposeInternalKey)
	if !ok {
		return false
	}
	expose, _ := value.(bool)
	return expose
}
