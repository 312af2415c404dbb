package handler

import (
	"errors"
	"net/http"

	"github.com/arjunpratapdas/contractiq/pkg/logger"
	"github.com/arjunpratapdas/contractiq/service"
	"github.com/gin-gonic/gin"
)

var kindStatus = map[string]int{
	service.KindValidation:  http.StatusBadRequest,
	service.KindBusy:        http.StatusConflict,
	service.KindNotFound:    http.StatusNotFound,
	service.KindTransport:   http.StatusBadGateway,
	service.KindMalformed:   http.StatusBadGateway,
	service.KindServer:      http.StatusBadGateway,
	service.KindInternal:    http.StatusInternalServerError,
	service.KindUnavailable: http.StatusServiceUnavailable,
}

// respondError writes the error envelope for err and aborts the request
func respondError(c *gin.Context, err error) {
	kind, retryable := service.Classify(err)
	status := kindStatus[kind]
	msg := err.Error()

	var (
		validationErr *service.ValidationError
		analysisErr   *service.AnalysisError
	)
	switch {
	case errors.As(err, &validationErr):
		msg = validationErr.Message
	case kind == service.KindServer && errors.As(err, &analysisErr):
		msg = analysisErr.Detail
	case kind == service.KindInternal:
		logger.Error(c.Request.Context(), "request failed", "error", err)
		msg = "Internal server error"
	}

	body := gin.H{
		"success":   false,
		"error":     msg,
		"kind":      kind,
		"retryable": retryable,
	}
	if validationErr != nil && validationErr.Field != "" {
		body["field"] = validationErr.Field
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success":   false,
		"error":     msg,
		"kind":      service.KindValidation,
		"retryable": false,
	})
}
