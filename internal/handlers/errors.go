package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/collegetransit/booking-service/internal/services"
	"github.com/collegetransit/booking-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	err    error
	status int
	code   string
}

// bookingErrors maps service failures to HTTP responses
var bookingErrors = []errorResponse{
	{services.ErrVehicleNotFound, http.StatusNotFound, "VEHICLE_NOT_FOUND"},
	{services.ErrScheduleNotFound, http.StatusNotFound, "SCHEDULE_NOT_FOUND"},
	{services.ErrBookingNotFound, http.StatusNotFound, "BOOKING_NOT_FOUND"},
	{services.ErrScheduleVehicleMismatch, http.StatusBadRequest, "SCHEDULE_VEHICLE_MISMATCH"},
	{services.ErrSeatUnavailable, http.StatusBadRequest, "SEAT_UNAVAILABLE"},
	{services.ErrDuplicateBooking, http.StatusBadRequest, "DUPLICATE_BOOKING"},
	{services.ErrTravelDateInPast, http.StatusBadRequest, "TRAVEL_DATE_IN_PAST"},
	{services.ErrInvalidStateForCancellation, http.StatusBadRequest, "INVALID_STATE_FOR_CANCELLATION"},
	{services.ErrCancellationWindowClosed, http.StatusBadRequest, "CANCELLATION_WINDOW_CLOSED"},
	{services.ErrInvalidStateForTransition, http.StatusBadRequest, "INVALID_STATE_FOR_TRANSITION"},
	{services.ErrInvalidDateRange, http.StatusBadRequest, "INVALID_DATE_RANGE"},
	{services.ErrAccessDenied, http.StatusForbidden, "ACCESS_DENIED"},
	{services.ErrIdempotencyKeyReused, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED"},
	{services.ErrSeatLockTimeout, http.StatusConflict, "SEAT_LOCK_TIMEOUT"},
}

func (h *BookingHandler) respondError(c *gin.Context, err error) {
	var rateLimitErr *services.RateLimitError
	if errors.As(err, &rateLimitErr) {
		retryAfter := int(math.Ceil(time.Until(rateLimitErr.RetryAfter).Seconds()))
		c.Header("Retry-After", strconv.Itoa(max(retryAfter, 1)))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       rateLimitErr.Message,
			"code":        "RATE_LIMITED",
			"retry_after": rateLimitErr.RetryAfter,
		})
		return
	}

	for _, resp := range bookingErrors {
		if errors.Is(err, resp.err) {
			c.JSON(resp.status, gin.H{"error": resp.err.Error(), "code": resp.code})
			return
		}
	}

	h.logger.WithError(err).WithFields(logrus.Fields{
		"path":           c.FullPath(),
		"correlation_id": utils.CorrelationIDFromContext(c.Request.Context()),
	}).Error("Booking request failed")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "code": "INTERNAL_ERROR"})
}
