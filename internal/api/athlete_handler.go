package api

import (
	"net/http"

	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/service"

	"github.com/gin-gonic/gin"
)

type AthleteHandler struct {
	planService service.PlanService
}

func NewAthleteHandler(planService service.PlanService) *AthleteHandler {
	return &AthleteHandler{planService: planService}
}

// --- DTOs ---
type MaterializeRequest struct {
	StartDate string `json:"startDate" binding:"required"`
	WeekCount int    `json:"weekCount" binding:"required,min=1"`
}

type ScheduleQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

type UpdateInstanceRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

// MaterializePlan godoc
// @Summary Put the first weeks of a plan on my calendar
// @Tags Athlete
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MaterializeRequest true "Start date and number of weeks"
// @Success 201 {array} domain.ScheduledInstance
// @Failure 400 {object} gin.H "Bad start date or more weeks than the plan has"
// @Failure 404 {object} gin.H "Plan not found"
// @Failure 409 {object} gin.H "Plan already scheduled on those dates"
// @Router /athlete/plans/{planId}/materialize [post]
func (h *AthleteHandler) MaterializePlan(c *gin.Context) {
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}
	var req MaterializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	athleteID, ok := callerID(c)
	if !ok {
		return
	}

	instances, err := h.planService.MaterializePlan(c.Request.Context(), athleteID, planID, req.StartDate, req.WeekCount)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, instances)
}

// GetSchedule godoc
// @Summary List my scheduled sessions
// @Tags Athlete
// @Produce json
// @Security BearerAuth
// @Param from query string false "First date (YYYY-MM-DD)"
// @Param to query string false "Last date (YYYY-MM-DD)"
// @Success 200 {array} domain.ScheduledInstance
// @Router /athlete/schedule [get]
func (h *AthleteHandler) GetSchedule(c *gin.Context) {
	var q ScheduleQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	athleteID, ok := callerID(c)
	if !ok {
		return
	}

	instances, err := h.planService.ListInstances(c.Request.Context(), athleteID, q.From, q.To)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if instances == nil {
		instances = []domain.ScheduledInstance{}
	}
	c.JSON(http.StatusOK, instances)
}

func (h *AthleteHandler) UpdateInstance(c *gin.Context) {
	instanceID, ok := pathObjectID(c, "instanceId")
	if !ok {
		return
	}
	var req UpdateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	athleteID, ok := callerID(c)
	if !ok {
		return
	}

	inst, err := h.planService.SetInstanceCompleted(c.Request.Context(), athleteID, instanceID, *req.Completed)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (h *AthleteHandler) DeleteInstance(c *gin.Context) {
	instanceID, ok := pathObjectID(c, "instanceId")
	if !ok {
		return
	}
	athleteID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.planService.DeleteInstance(c.Request.Context(), athleteID, instanceID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
