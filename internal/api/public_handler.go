package api

import (
	"fmt"
	"net/http"
	"time"

	"alcyxob/coach-scheduling/internal/calendar"
	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/service"

	"github.com/gin-gonic/gin"
)

// defaultHorizonDays is the slot listing length when the caller omits "to".
const defaultHorizonDays = 7

// PublicHandler serves the unauthenticated booking page.
type PublicHandler struct {
	availabilityService service.AvailabilityService
	bookingService      service.BookingService
	maxHorizonDays      int
	now                 func() time.Time
}

func NewPublicHandler(
	availabilityService service.AvailabilityService,
	bookingService service.BookingService,
	maxHorizonDays int,
	now func() time.Time,
) *PublicHandler {
	if now == nil {
		now = time.Now
	}
	return &PublicHandler{
		availabilityService: availabilityService,
		bookingService:      bookingService,
		maxHorizonDays:      maxHorizonDays,
		now:                 now,
	}
}

// --- DTOs ---
type BookAppointmentRequest struct {
	Date        string `json:"date" binding:"required"`
	Time        string `json:"time" binding:"required"`
	BookerName  string `json:"bookerName" binding:"required"`
	BookerEmail string `json:"bookerEmail" binding:"required"`
	Notes       string `json:"notes"`
}

type SlotsResponse struct {
	From  string          `json:"from"`
	To    string          `json:"to"`
	Slots []calendar.Slot `json:"slots"`
}

// GetSlots godoc
// @Summary List open slots of a coach's calendar
// @Tags Public
// @Produce json
// @Param from query string false "First date (YYYY-MM-DD), default today"
// @Param to query string false "Last date (YYYY-MM-DD), default from + 6 days"
// @Success 200 {object} SlotsResponse
// @Failure 400 {object} gin.H "Malformed dates or horizon too long"
// @Failure 404 {object} gin.H "Calendar not found"
// @Router /coaches/{coachId}/calendars/{calendarId}/slots [get]
func (h *PublicHandler) GetSlots(c *gin.Context) {
	coachID, ok := pathObjectID(c, "coachId")
	if !ok {
		return
	}
	calendarID, ok := pathObjectID(c, "calendarId")
	if !ok {
		return
	}

	from := calendar.DateOf(calendar.Naive(h.now()))
	if raw := c.Query("from"); raw != "" {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		from = d
	}
	to := from.AddDays(defaultHorizonDays - 1)
	if raw := c.Query("to"); raw != "" {
		d, err := calendar.ParseDate(raw)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		to = d
	}
	if days := from.DaysUntil(to) + 1; h.maxHorizonDays > 0 && days > h.maxHorizonDays {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Horizon of %d days exceeds the maximum of %d", days, h.maxHorizonDays))
		return
	}

	slots, err := h.availabilityService.ResolveSlots(c.Request.Context(), coachID, calendarID, from.String(), to.String())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if slots == nil {
		slots = []calendar.Slot{}
	}
	c.JSON(http.StatusOK, SlotsResponse{From: from.String(), To: to.String(), Slots: slots})
}

// BookAppointment godoc
// @Summary Book one slot
// @Tags Public
// @Accept json
// @Produce json
// @Param booking body BookAppointmentRequest true "Slot and booker details"
// @Success 201 {object} domain.Appointment
// @Failure 400 {object} gin.H "Invalid input or slot not offered"
// @Failure 404 {object} gin.H "Calendar not found"
// @Failure 409 {object} gin.H "Slot taken; body carries availableSlots"
// @Failure 503 {object} gin.H "Record store unavailable"
// @Router /coaches/{coachId}/calendars/{calendarId}/appointments [post]
func (h *PublicHandler) BookAppointment(c *gin.Context) {
	coachID, ok := pathObjectID(c, "coachId")
	if !ok {
		return
	}
	calendarID, ok := pathObjectID(c, "calendarId")
	if !ok {
		return
	}
	var req BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	appt, err := h.bookingService.Book(c.Request.Context(), service.BookingRequest{
		CoachID:     coachID,
		CalendarID:  calendarID,
		Date:        req.Date,
		Time:        req.Time,
		BookerName:  req.BookerName,
		BookerEmail: req.BookerEmail,
		Notes:       req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapAppointment(appt))
}

// AppointmentResponse is what a booker sees; ownership fields stay internal.
type AppointmentResponse struct {
	ID              string                   `json:"id"`
	CalendarID      string                   `json:"calendarId"`
	Date            string                   `json:"date"`
	Time            string                   `json:"time"`
	DurationMinutes int                      `json:"durationMinutes"`
	BookerName      string                   `json:"bookerName"`
	BookerEmail     string                   `json:"bookerEmail"`
	Notes           string                   `json:"notes,omitempty"`
	Status          domain.AppointmentStatus `json:"status"`
	ReminderSentAt  *time.Time               `json:"reminderSentAt,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
}

func mapAppointment(a *domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID.Hex(),
		CalendarID:      a.CalendarID.Hex(),
		Date:            a.Date,
		Time:            a.Time,
		DurationMinutes: a.DurationMinutes,
		BookerName:      a.BookerName,
		BookerEmail:     a.BookerEmail,
		Notes:           a.Notes,
		Status:          a.Status,
		ReminderSentAt:  a.ReminderSentAt,
		CreatedAt:       a.CreatedAt,
	}
}

func mapAppointments(appts []domain.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, mapAppointment(&appts[i]))
	}
	return out
}
