package handlers

import (
	"github.com/collegetransit/booking-service/internal/middleware"
	"github.com/collegetransit/booking-service/internal/services"
	"github.com/collegetransit/booking-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// safeLogBookingEvent writes an audit event without failing the request
func (h *BookingHandler) safeLogBookingEvent(c *gin.Context, action, bookingID string, details map[string]interface{}) {
	if h.auditService == nil {
		return
	}

	userCtx, _ := middleware.GetUserContext(c)
	err := h.auditService.LogBookingEvent(c.Request.Context(), services.AuditEvent{
		ActorID:   userCtx.UserID,
		Action:    action,
		BookingID: bookingID,
		IPAddress: utils.ClientIP(c),
		UserAgent: utils.UserAgent(c),
		Details:   details,
	})
	if err != nil {
		h.logger.WithError(err).WithField("action", action).Error("Audit log failed")
	}
}
