package api

import (
	"net/http"
	"time"

	"alcyxob/coach-scheduling/internal/service"

	"github.com/gin-gonic/gin"
)

// SweepHandler lets an external scheduler trigger the reminder sweep.
type SweepHandler struct {
	reminderService service.ReminderService
	now             func() time.Time
}

func NewSweepHandler(reminderService service.ReminderService, now func() time.Time) *SweepHandler {
	if now == nil {
		now = time.Now
	}
	return &SweepHandler{reminderService: reminderService, now: now}
}

// RunSweep godoc
// @Summary Run one reminder sweep
// @Tags Internal
// @Produce json
// @Param X-Sweep-Token header string true "Shared sweep token"
// @Success 200 {object} service.SweepResult
// @Failure 503 {object} gin.H "Record store unavailable"
// @Router /internal/reminders/sweep [post]
func (h *SweepHandler) RunSweep(c *gin.Context) {
	result, err := h.reminderService.RunReminderSweep(c.Request.Context(), h.now())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
