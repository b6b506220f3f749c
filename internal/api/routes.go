package api

import (
	"net/http"
	"time"

	"alcyxob/coach-scheduling/internal/domain"
	"alcyxob/coach-scheduling/internal/service"

	"github.com/gin-gonic/gin"
)

// RouterConfig carries the HTTP layer's settings.
type RouterConfig struct {
	JWTSecret      string
	SweepToken     string // empty closes the sweep trigger
	MaxHorizonDays int
	Metrics        http.Handler // served on /metrics when set
	Now            func() time.Time
}

func SetupRoutes(
	router *gin.Engine,
	cfg RouterConfig,
	availabilityService service.AvailabilityService,
	bookingService service.BookingService,
	planService service.PlanService,
	reminderService service.ReminderService,
) {
	publicHandler := NewPublicHandler(availabilityService, bookingService, cfg.MaxHorizonDays, cfg.Now)
	coachHandler := NewCoachHandler(availabilityService, bookingService, planService)
	athleteHandler := NewAthleteHandler(planService)
	sweepHandler := NewSweepHandler(reminderService, cfg.Now)

	authMiddleware := AuthMiddleware(cfg.JWTSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	router.POST("/internal/reminders/sweep", SweepTokenMiddleware(cfg.SweepToken), sweepHandler.RunSweep)

	apiV1 := router.Group("/api/v1")

	// --- Public booking page ---
	publicGroup := apiV1.Group("/coaches/:coachId/calendars/:calendarId")
	{
		publicGroup.GET("/slots", publicHandler.GetSlots)
		publicGroup.POST("/appointments", publicHandler.BookAppointment)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := getUserRoleFromContext(c)
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role})
		})

		// --- Coach Specific Routes ---
		coachGroup := protected.Group("/coach")
		coachGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			coachGroup.POST("/calendars", coachHandler.CreateCalendar)
			coachGroup.GET("/calendars", coachHandler.GetCalendars)

			coachGroup.POST("/calendars/:calendarId/rules", coachHandler.AddRule)
			coachGroup.GET("/calendars/:calendarId/rules", coachHandler.GetRules)
			coachGroup.DELETE("/calendars/:calendarId/rules/:ruleId", coachHandler.DeleteRule)

			coachGroup.GET("/calendars/:calendarId/appointments", coachHandler.GetAppointments)
			coachGroup.GET("/appointments/:appointmentId", coachHandler.GetAppointment)
			coachGroup.POST("/appointments/:appointmentId/cancel", coachHandler.CancelAppointment)

			coachGroup.POST("/plans", coachHandler.CreatePlan)
		}

		// --- Athlete Specific Routes ---
		athleteGroup := protected.Group("/athlete")
		athleteGroup.Use(RoleMiddleware(domain.RoleAthlete))
		{
			athleteGroup.POST("/plans/:planId/materialize", athleteHandler.MaterializePlan)
			athleteGroup.GET("/schedule", athleteHandler.GetSchedule)
			athleteGroup.PATCH("/schedule/:instanceId", athleteHandler.UpdateInstance)
			athleteGroup.DELETE("/schedule/:instanceId", athleteHandler.DeleteInstance)
		}
	}
}
