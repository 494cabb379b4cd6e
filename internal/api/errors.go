package api

import (
	"alcyxob/motion-coach/internal/aiclient"
	"alcyxob/motion-coach/internal/logger"
	"alcyxob/motion-coach/internal/service"
	"alcyxob/motion-coach/internal/validation"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

var notFoundErrors = []error{
	service.ErrUserNotFound,
	service.ErrExerciseNotFound,
	service.ErrClientNotFound,
	service.ErrProcessedDataNotFound,
	service.ErrVideoNotFound,
	service.ErrReferenceNotFound,
	service.ErrAnalysisNotFound,
}

var conflictErrors = []error{
	service.ErrAnalysisInProgress,
	service.ErrIdempotencyInFlight,
}

// respondError answers the errors a handler knows about. Anything else is attached to
// the context for ErrorHandler.
func respondError(c *gin.Context, err error) {
	var (
		fieldErr *validation.FieldError
		inputErr *service.InputError
		upstream *aiclient.UpstreamError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &fieldErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fieldErr.Message, "field": fieldErr.Field, "rule": fieldErr.Rule})
	case errors.As(err, &inputErr):
		abortWithError(c, http.StatusBadRequest, inputErr.Error())
	case errors.As(err, &tooLarge):
		abortWithError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	case errors.Is(err, service.ErrAuthenticationFailed):
		abortWithError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbidden), errors.Is(err, service.ErrAdminSignupDisabled):
		abortWithError(c, http.StatusForbidden, err.Error())
	case isAny(err, notFoundErrors):
		abortWithError(c, http.StatusNotFound, err.Error())
	case isAny(err, conflictErrors):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.As(err, &upstream):
		respondUpstream(c, upstream)
	case errors.Is(err, aiclient.ErrInvalidResponse):
		abortWithError(c, http.StatusBadGateway, "invalid response from AI service")
	default:
		_ = c.Error(err)
		c.Abort()
	}
}

// respondUpstream relays the status and body of a failed AI call.
func respondUpstream(c *gin.Context, e *aiclient.UpstreamError) {
	status := e.StatusCode
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	mediaType, _, _ := mime.ParseMediaType(e.ContentType)
	if mediaType == "application/json" && json.Valid(e.Body) {
		c.Data(status, "application/json; charset=utf-8", e.Body)
		c.Abort()
		return
	}
	msg := string(e.Body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	abortWithError(c, status, msg)
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// ErrorHandler renders errors attached with c.Error as 500. Details are exposed only in
// development.
func ErrorHandler(log *logger.Logger, development bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		log.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", c.Errors.String())
		if c.Writer.Written() {
			return
		}
		body := gin.H{"error": "internal server error"}
		if development {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

// Recovery turns panics into the same 500 answer.
func Recovery(log *logger.Logger, development bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered", "method", c.Request.Method, "path", c.Request.URL.Path, "panic", recovered)
		body := gin.H{"error": "internal server error"}
		if development {
			body["detail"] = fmt.Sprint(recovered)
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}
