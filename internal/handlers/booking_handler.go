package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/collegetransit/booking-service/internal/middleware"
	"github.com/collegetransit/booking-service/internal/models"
	"github.com/collegetransit/booking-service/internal/services"
	"github.com/collegetransit/booking-service/internal/utils"
	"github.com/collegetransit/booking-service/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// IdempotencyKeyHeader lets clients retry a create without double-booking
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// BookingAuditor records booking events for the audit trail
type BookingAuditor interface {
	LogBookingEvent(ctx context.Context, event services.AuditEvent) error
	EventsForBooking(ctx context.Context, bookingID string, limit int) ([]services.AuditRecord, error)
}

// BookingRateLimiter throttles booking creation per rider and client IP
type BookingRateLimiter interface {
	CheckBookingRateLimit(ctx context.Context, riderID, ip string) error
}

// BookingHandler serves the seat-booking API
type BookingHandler struct {
	bookings      *services.BookingService
	queries       *services.BookingQueryService
	availability  *services.SeatAvailabilityService
	auditService  BookingAuditor
	rateLimiter   BookingRateLimiter
	mobile        *validator.MobileValidator
	statsLookback time.Duration
	logger        logrus.FieldLogger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	bookings *services.BookingService,
	queries *services.BookingQueryService,
	availability *services.SeatAvailabilityService,
	auditService BookingAuditor,
	rateLimiter BookingRateLimiter,
	statsLookback time.Duration,
	logger logrus.FieldLogger,
) *BookingHandler {
	return &BookingHandler{
		bookings:      bookings,
		queries:       queries,
		availability:  availability,
		auditService:  auditService,
		rateLimiter:   rateLimiter,
		mobile:        validator.NewMobileValidator(),
		statsLookback: statsLookback,
		logger:        logger,
	}
}

// RegisterRoutes mounts the booking endpoints under rg, all behind auth
func (h *BookingHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	bookings := rg.Group("/bookings", auth)
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleDriver)
	admin := middleware.RequireRole(models.RoleAdmin)

	bookings.POST("", h.CreateBooking)
	bookings.GET("", h.ListBookings)
	bookings.GET("/mine", h.GetMyBookings)
	bookings.GET("/stats", admin, h.GetStats)
	bookings.GET("/bus/:vehicle_id/date/:date", h.GetVehicleBookings)
	bookings.GET("/bus/:vehicle_id/date/:date/seats", h.GetSeatAvailability)
	bookings.GET("/:id", h.GetBooking)
	bookings.GET("/:id/audit", admin, h.GetBookingAudit)
	bookings.PUT("/:id/cancel", h.CancelBooking)
	bookings.PUT("/:id/complete", staff, h.CompleteBooking)
	bookings.PUT("/:id/no-show", staff, h.MarkNoShow)
}

// CreateBooking reserves a seat for the authenticated rider
// @Summary Create a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client retry key"
// @Param request body models.CreateBookingRequest true "Booking request"
// @Success 201 {object} models.BookingResponse "Booking created"
// @Success 200 {object} models.BookingResponse "Replayed for a repeated Idempotency-Key"
// @Failure 400 {object} map[string]interface{} "Invalid request or seat unavailable"
// @Failure 404 {object} map[string]interface{} "Vehicle or schedule not found"
// @Failure 429 {object} map[string]interface{} "Too many bookings"
// @Security BearerAuth
// @Router /api/v1/bookings [post]
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	idempotencyKey := c.GetHeader(IdempotencyKeyHeader)
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key must be at most 255 characters"})
		return
	}

	travelDate, err := models.ParseTravelDate(req.TravelDate, h.availability.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	passenger := req.PassengerDetails
	phone, err := h.mobile.Validate(passenger.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	passenger.Phone = phone

	in := services.CreateBookingInput{
		RiderID:         userCtx.UserID,
		VehicleID:       req.VehicleID,
		ScheduleID:      req.ScheduleID,
		SeatNumber:      req.SeatNumber,
		TravelDate:      travelDate,
		Passenger:       passenger,
		PaymentMethod:   lo.FromPtr(req.PaymentMethod),
		PaymentDetails:  req.PaymentDetails,
		BoardingPoint:   req.BoardingPoint,
		DropPoint:       req.DropPoint,
		SpecialRequests: req.SpecialRequests,
		Notes:           req.Notes,
		IdempotencyKey:  idempotencyKey,
	}

	// retries of a recorded request replay without counting against the limit
	result, err := h.bookings.Replay(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if result == nil {
		if h.rateLimiter != nil {
			if err := h.rateLimiter.CheckBookingRateLimit(c.Request.Context(), userCtx.UserID, utils.ClientIP(c)); err != nil {
				h.respondError(c, err)
				return
			}
		}

		result, err = h.bookings.Create(c.Request.Context(), in)
		if err != nil {
			h.respondError(c, err)
			return
		}
	}

	if result.Replayed {
		h.safeLogBookingEvent(c, services.AuditActionBookingReplayed, result.Booking.ID, map[string]interface{}{
			"idempotency_key": idempotencyKey,
		})
		c.JSON(http.StatusOK, gin.H{
			"message": "Booking already created for this Idempotency-Key",
			"booking": h.response(result.Booking),
		})
		return
	}

	h.safeLogBookingEvent(c, services.AuditActionBookingCreated, result.Booking.ID, map[string]interface{}{
		"vehicle_id":  result.Booking.VehicleID,
		"seat_number": result.Booking.SeatNumber,
		"amount":      result.Booking.Amount,
	})
	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created successfully",
		"booking": h.response(result.Booking),
	})
}

// ListBookings searches bookings with pagination. Non-admins only see their own.
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param status query string false "Booking status"
// @Param payment_status query string false "Payment status"
// @Param vehicle_id query string false "Vehicle"
// @Param date query string false "Travel date (YYYY-MM-DD)"
// @Param rider_id query string false "Rider (admin only)"
// @Security BearerAuth
// @Router /api/v1/bookings [get]
func (h *BookingHandler) ListBookings(c *gin.Context) {
	userCtx, ok := h.requireUser(c)
	if !ok {
		return
	}

	filter, err := h.parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !userCtx.IsAdmin() {
		filter.RiderID = lo.ToPtr(userCtx.UserID)
	} else if riderID := c.Query("rider_id"); riderID != "" {
		if _, err := uuid.Parse(riderID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rider_id"})
			return
		}
		filter.RiderID = lo.ToPtr(riderID)
	}

	page, err := h.queries.Search(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings":   h.responses(page.Bookings),
		"pagination": page.Pagination,
	})
}

// GetMyBookings lists the caller's bookings, newest travel date first
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	userCtx, ok := h.requireUser(c)
	if !ok {
		return
	}

	status, err := parseStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bookings, err := h.queries.FindByRider(c.Request.Context(), userCtx.UserID, status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": h.responses(bookings),
		"count":    len(bookings),
	})
}

// GetBooking returns one booking the caller may see
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, ok := h.requireUser(c)
	if !ok {
		return
	}

	bookingID, ok := h.bookingIDParam(c)
	if !ok {
		return
	}

	booking, err := h.queries.GetByID(c.Request.Context(), bookingID, actorFor(userCtx))
	if err != nil {
		if errors.Is(err, services.ErrAccessDenied) {
			h.safeLogBookingEvent(c, services.AuditActionAccessDenied, bookingID, map[string]interface{}{"operation": "get"})
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"booking": h.response(booking)})
}

// GetBookingAudit returns the audit trail for a booking (admin only)
func (h *BookingHandler) GetBookingAudit(c *gin.Context) {
	bookingID, ok := h.bookingIDParam(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
		return
	}

	events, err := h.auditService.EventsForBooking(c.Request.Context(), bookingID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

// CancelBooking cancels a booking and reports the refund owed
// @Summary Cancel a booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param request body models.CancelBookingRequest false "Cancellation reason"
// @Success 200 {object} map[string]interface{} "Booking cancelled"
// @Failure 400 {object} map[string]interface{} "Wrong state or cancellation window closed"
// @Failure 403 {object} map[string]interface{} "Not the booking's rider"
// @Failure 404 {object} map[string]interface{} "Booking not found"
// @Security BearerAuth
// @Router /api/v1/bookings/{id}/cancel [put]
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	userCtx, ok := h.requireUser(c)
	if !ok {
		return
	}

	bookingID, ok := h.bookingIDParam(c)
	if !ok {
		return
	}

	var req models.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	booking, err := h.bookings.Cancel(c.Request.Context(), bookingID, actorFor(userCtx), req.Reason)
	if err != nil {
		if errors.Is(err, services.ErrAccessDenied) {
			h.safeLogBookingEvent(c, services.AuditActionAccessDenied, bookingID, map[string]interface{}{"operation": "cancel"})
		}
		h.respondError(c, err)
		return
	}

	refund := booking.Cancellation.RefundAmount
	h.safeLogBookingEvent(c, services.AuditActionBookingCancelled, booking.ID, map[string]interface{}{
		"refund_amount": refund,
		"reason":        lo.FromPtr(req.Reason),
	})
	c.JSON(http.StatusOK, gin.H{
		"message":       "Booking cancelled successfully",
		"booking":       h.response(booking),
		"refund_amount": refund,
	})
}

// CompleteBooking marks a booking as travelled (admin or driver)
func (h *BookingHandler) CompleteBooking(c *gin.Context) {
	h.transition(c, h.bookings.Complete, services.AuditActionBookingCompleted, "Booking marked as completed")
}

// MarkNoShow marks a booking whose rider did not board (admin or driver)
func (h *BookingHandler) MarkNoShow(c *gin.Context) {
	h.transition(c, h.bookings.MarkNoShow, services.AuditActionBookingNoShow, "Booking marked as no-show")
}

func (h *BookingHandler) transition(
	c *gin.Context,
	apply func(ctx context.Context, bookingID string) (*models.Booking, error),
	action, message string,
) {
	bookingID, ok := h.bookingIDParam(c)
	if !ok {
		return
	}

	booking, err := apply(c.Request.Context(), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.safeLogBookingEvent(c, action, booking.ID, nil)
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"booking": h.response(booking),
	})
}

// GetVehicleBookings lists confirmed bookings on a vehicle for a date, by seat.
// Admins and drivers see the whole manifest, riders only their own bookings.
func (h *BookingHandler) GetVehicleBookings(c *gin.Context) {
	userCtx, ok := h.requireUser(c)
	if !ok {
		return
	}

	vehicleID, ok := h.vehicleIDParam(c)
	if !ok {
		return
	}

	date, err := models.ParseTravelDate(c.Param("date"), h.availability.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bookings, err := h.queries.FindByVehicleAndDate(c.Request.Context(), vehicleID, date)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !userCtx.IsAdmin() && !models.HasRole(userCtx.Roles, models.RoleDriver) {
		bookings = lo.Filter(bookings, func(b models.Booking, _ int) bool {
			return b.IsOwnedBy(userCtx.UserID)
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"bookings": h.responses(bookings),
		"count":    len(bookings),
	})
}

// GetSeatAvailability returns free and held seats on a vehicle for a date
func (h *BookingHandler) GetSeatAvailability(c *gin.Context) {
	vehicleID, ok := h.vehicleIDParam(c)
	if !ok {
		return
	}

	date, err := models.ParseTravelDate(c.Param("date"), h.availability.Location())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	availability, err := h.availability.Availability(c.Request.Context(), vehicleID, date)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// GetStats aggregates bookings by status over a travel-date range (admin only).
// Without start_date/end_date it covers the configured lookback ending today.
func (h *BookingHandler) GetStats(c *gin.Context) {
	loc := h.availability.Location()
	today := models.NewTravelDay(h.bookings.Now(), loc)

	end := today
	if value := c.Query("end_date"); value != "" {
		day, err := models.ParseTravelDay(value, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		end = day
	}

	start := models.NewTravelDay(end.Start.Add(-h.statsLookback), loc)
	if value := c.Query("start_date"); value != "" {
		day, err := models.ParseTravelDay(value, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		start = day
	}

	stats, err := h.queries.StatsByDateRange(c.Request.Context(), start.Start, end.End)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *BookingHandler) parseFilter(c *gin.Context) (models.BookingFilter, error) {
	var filter models.BookingFilter

	if value := c.Query("page"); value != "" {
		page, err := strconv.Atoi(value)
		if err != nil || page < 1 {
			return filter, errors.New("page must be a positive integer")
		}
		filter.Page = page
	}
	if value := c.Query("limit"); value != "" {
		limit, err := strconv.Atoi(value)
		if err != nil || limit < 1 {
			return filter, errors.New("limit must be a positive integer")
		}
		filter.Limit = limit
	}

	status, err := parseStatus(c.Query("status"))
	if err != nil {
		return filter, err
	}
	filter.Status = status

	if value := c.Query("payment_status"); value != "" {
		paymentStatus := models.PaymentStatus(value)
		if !paymentStatus.IsValid() {
			return filter, errors.New("invalid payment_status")
		}
		filter.PaymentStatus = &paymentStatus
	}

	if value := c.Query("vehicle_id"); value != "" {
		if _, err := uuid.Parse(value); err != nil {
			return filter, errors.New("invalid vehicle_id")
		}
		filter.VehicleID = lo.ToPtr(value)
	}

	if value := c.Query("date"); value != "" {
		day, err := models.ParseTravelDay(value, h.availability.Location())
		if err != nil {
			return filter, err
		}
		filter.TravelDay = &day
	}

	return filter, nil
}

func parseStatus(value string) (*models.BookingStatus, error) {
	if value == "" {
		return nil, nil
	}
	status := models.BookingStatus(value)
	if !status.IsValid() {
		return nil, errors.New("invalid status")
	}
	return &status, nil
}

func (h *BookingHandler) requireUser(c *gin.Context) (middleware.UserContext, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return userCtx, exists
}

// bookingIDParam reads the :id path parameter. An id that is not a UUID cannot
// name a booking and is reported as not found.
func (h *BookingHandler) bookingIDParam(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, services.ErrBookingNotFound)
		return "", false
	}
	return id.String(), true
}

// vehicleIDParam reads the :vehicle_id path parameter, reporting a malformed id as an unknown vehicle
func (h *BookingHandler) vehicleIDParam(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("vehicle_id"))
	if err != nil {
		h.respondError(c, services.ErrVehicleNotFound)
		return "", false
	}
	return id.String(), true
}

func actorFor(userCtx middleware.UserContext) services.Actor {
	return services.Actor{ID: userCtx.UserID, IsAdmin: userCtx.IsAdmin()}
}

func (h *BookingHandler) response(b *models.Booking) models.BookingResponse {
	return models.NewBookingResponse(b, h.bookings.Now(), h.bookings.Policy().CancellationCutoff)
}

func (h *BookingHandler) responses(bookings []models.Booking) []models.BookingResponse {
	return lo.Map(bookings, func(b models.Booking, i int) models.BookingResponse {
		return h.response(&bookings[i])
	})
}
