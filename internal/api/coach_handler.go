package api

import (
	"net/http"

	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/service"

	"github.com/gin-gonic/gin"
)

// CoachHandler serves calendar, rule, appointment and plan management for the
// authenticated coach.
type CoachHandler struct {
	availabilityService service.AvailabilityService
	bookingService      service.BookingService
	planService         service.PlanService
}

func NewCoachHandler(
	availabilityService service.AvailabilityService,
	bookingService service.BookingService,
	planService service.PlanService,
) *CoachHandler {
	return &CoachHandler{
		availabilityService: availabilityService,
		bookingService:      bookingService,
		planService:         planService,
	}
}

// --- DTOs ---
type CreateCalendarRequest struct {
	Name string `json:"name" binding:"required"`
}

type AppointmentRangeQuery struct {
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}

// --- Calendars ---

// CreateCalendar godoc
// @Summary Create a bookable calendar
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param calendar body CreateCalendarRequest true "Calendar name"
// @Success 201 {object} domain.Calendar
// @Router /coach/calendars [post]
func (h *CoachHandler) CreateCalendar(c *gin.Context) {
	var req CreateCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}

	cal, err := h.availabilityService.CreateCalendar(c.Request.Context(), coachID, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cal)
}

// GetCalendars godoc
// @Summary List my calendars
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Calendar
// @Router /coach/calendars [get]
func (h *CoachHandler) GetCalendars(c *gin.Context) {
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	cals, err := h.availabilityService.ListCalendars(c.Request.Context(), coachID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if cals == nil {
		cals = []domain.Calendar{}
	}
	c.JSON(http.StatusOK, cals)
}

// --- Availability Rules ---

// AddRule godoc
// @Summary Open a weekly availability window
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param rule body service.RuleInput true "Weekday (1=Mon..7=Sun), window and slot length"
// @Success 201 {object} domain.AvailabilityRule
// @Failure 409 {object} gin.H "Calendar already has a rule for that weekday"
// @Router /coach/calendars/{calendarId}/rules [post]
func (h *CoachHandler) AddRule(c *gin.Context) {
	calendarID, ok := pathObjectID(c, "calendarId")
	if !ok {
		return
	}
	var req service.RuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}

	rule, err := h.availabilityService.AddRule(c.Request.Context(), coachID, calendarID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *CoachHandler) GetRules(c *gin.Context) {
	calendarID, ok := pathObjectID(c, "calendarId")
	if !ok {
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	rules, err := h.availabilityService.ListRules(c.Request.Context(), coachID, calendarID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if rules == nil {
		rules = []domain.AvailabilityRule{}
	}
	c.JSON(http.StatusOK, rules)
}

func (h *CoachHandler) DeleteRule(c *gin.Context) {
	calendarID, ok := pathObjectID(c, "calendarId")
	if !ok {
		return
	}
	ruleID, ok := pathObjectID(c, "ruleId")
	if !ok {
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.availabilityService.DeleteRule(c.Request.Context(), coachID, calendarID, ruleID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Appointments ---

// GetAppointments godoc
// @Summary List active bookings of a calendar
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Param from query string true "First date (YYYY-MM-DD)"
// @Param to query string true "Last date (YYYY-MM-DD)"
// @Success 200 {array} AppointmentResponse
// @Router /coach/calendars/{calendarId}/appointments [get]
func (h *CoachHandler) GetAppointments(c *gin.Context) {
	calendarID, ok := pathObjectID(c, "calendarId")
	if !ok {
		return
	}
	var q AppointmentRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}

	appts, err := h.bookingService.ListAppointments(c.Request.Context(), coachID, calendarID, q.From, q.To)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapAppointments(appts))
}

func (h *CoachHandler) GetAppointment(c *gin.Context) {
	appointmentID, ok := pathObjectID(c, "appointmentId")
	if !ok {
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	appt, err := h.bookingService.GetAppointment(c.Request.Context(), coachID, appointmentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapAppointment(appt))
}

// CancelAppointment godoc
// @Summary Cancel a booking and free its slot
// @Tags Coach
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AppointmentResponse
// @Failure 404 {object} gin.H "No such appointment on the caller's calendars"
// @Router /coach/appointments/{appointmentId}/cancel [post]
func (h *CoachHandler) CancelAppointment(c *gin.Context) {
	appointmentID, ok := pathObjectID(c, "appointmentId")
	if !ok {
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}
	appt, err := h.bookingService.CancelAppointment(c.Request.Context(), coachID, appointmentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapAppointment(appt))
}

// --- Plan Templates ---

// CreatePlan godoc
// @Summary Author a weekly plan template
// @Tags Coach
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body service.PlanTemplateInput true "Plan weeks and sessions"
// @Success 201 {object} domain.PlanTemplate
// @Router /coach/plans [post]
func (h *CoachHandler) CreatePlan(c *gin.Context) {
	var req service.PlanTemplateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	coachID, ok := callerID(c)
	if !ok {
		return
	}

	plan, err := h.planService.CreatePlanTemplate(c.Request.Context(), coachID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}
