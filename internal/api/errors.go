package api

import (
	"errors"
	"net/http"

	"alcyxob/coach-scheduling/internal/calendar"
	"alcyxob/coach-scheduling/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respondServiceError maps the service error taxonomy onto HTTP statuses.
// Store and notifier failures are logged and reported without detail.
func respondServiceError(c *gin.Context, err error) {
	var taken *service.SlotTakenError
	switch {
	case errors.As(err, &taken):
		available := taken.Available
		if available == nil {
			available = []calendar.Slot{}
		}
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":          err.Error(),
			"availableSlots": available,
		})
	case errors.Is(err, service.ErrInvalidArgument):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		abortWithError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSlotTaken),
		errors.Is(err, service.ErrRuleConflict),
		errors.Is(err, service.ErrAlreadyScheduled):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrNotifierFailed):
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("dependency unavailable")
		abortWithError(c, http.StatusServiceUnavailable, "Service temporarily unavailable, retry later")
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("unexpected handler error")
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}

// pathObjectID parses a hex ObjectID path parameter, answering 400 itself
// when it is malformed.
func pathObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+param+" format.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// callerID reads the authenticated user, answering 401 itself on failure.
func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
		return primitive.NilObjectID, false
	}
	return id, true
}
