package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/THEROER/DoubleLife/internal/core/domain"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// lifecycleErrorCases covers the errors returned by session lifecycle operations.
var lifecycleErrorCases = []ErrorCase{
	{Err: domain.ErrAlreadyActive, Status: http.StatusConflict, Message: "doublelife session already active"},
	{Err: domain.ErrNoActiveSession, Status: http.StatusNotFound, Message: "no active doublelife session"},
	{Err: domain.ErrNoEligibleProfile, Status: http.StatusForbidden, Message: "no eligible doublelife profile"},
	{Err: domain.ErrSystemDisabled, Status: http.StatusServiceUnavailable, Message: "doublelife is disabled"},
	{Err: domain.ErrGrantServiceUnavailable, Status: http.StatusServiceUnavailable, Message: "permission service unavailable"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
