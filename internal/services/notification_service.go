package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/collegetransit/booking-service/internal/metrics"
	"github.com/collegetransit/booking-service/internal/utils"
	"github.com/sirupsen/logrus"
)

// NotificationKind names a rider-facing booking event
type NotificationKind string

const (
	NotificationBookingConfirmed NotificationKind = "booking_confirmed"
	NotificationBookingCancelled NotificationKind = "booking_cancelled"
)

// Notifier delivers booking events to riders. Delivery is best effort: a
// failed notification never undoes the booking change that caused it.
type Notifier interface {
	Notify(ctx context.Context, riderID string, kind NotificationKind, payload map[string]interface{}) error
}

// BookingNotification is the message body published for each event
type BookingNotification struct {
	RiderID    string                 `json:"rider_id"`
	Kind       NotificationKind       `json:"kind"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NotificationService publishes booking notifications onto a watermill topic
type NotificationService struct {
	publisher message.Publisher
	topic     string
	logger    logrus.FieldLogger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(publisher message.Publisher, topic string, logger logrus.FieldLogger) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// Notify publishes one notification for riderID
func (s *NotificationService) Notify(ctx context.Context, riderID string, kind NotificationKind, payload map[string]interface{}) error {
	title, text := describeNotification(kind, payload)
	body, err := json.Marshal(BookingNotification{
		RiderID:    riderID,
		Kind:       kind,
		Title:      title,
		Message:    text,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set("kind", string(kind))
	msg.Metadata.Set("rider_id", riderID)
	if correlationID := utils.CorrelationIDFromContext(ctx); correlationID != "" {
		msg.Metadata.Set("correlation_id", correlationID)
	}
	msg.SetContext(ctx)

	if err := s.publisher.Publish(s.topic, msg); err != nil {
		metrics.NotificationsFailed.WithLabelValues(string(kind)).Inc()
		return fmt.Errorf("failed to publish %s notification: %w", kind, err)
	}

	s.logger.WithFields(logrus.Fields{
		"rider_id":   riderID,
		"kind":       kind,
		"message_id": msg.UUID,
	}).Debug("Booking notification published")
	return nil
}

func describeNotification(kind NotificationKind, payload map[string]interface{}) (string, string) {
	switch kind {
	case NotificationBookingConfirmed:
		return "Booking Confirmed", fmt.Sprintf("Your booking for seat %v on %v has been confirmed. Ticket: %v",
			payload["seat_number"], payload["travel_date"], payload["ticket_number"])
	case NotificationBookingCancelled:
		return "Booking Cancelled", fmt.Sprintf("Your booking has been cancelled. Refund amount: ₹%.2f",
			payload["refund_amount"])
	}
	return "Booking Update", "Your booking has been updated."
}

// LogPublisher is a message.Publisher that writes messages to the log instead
// of a broker. It backs the "log" notification publisher in development.
type LogPublisher struct {
	logger logrus.FieldLogger
}

// NewLogPublisher creates a new LogPublisher
func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs each message
func (p *LogPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		p.logger.WithFields(logrus.Fields{
			"topic":      topic,
			"message_id": msg.UUID,
			"metadata":   msg.Metadata,
			"payload":    string(msg.Payload),
		}).Info("Notification")
	}
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error {
	return nil
}

// WatermillLogger adapts a logrus logger to watermill.LoggerAdapter
type WatermillLogger struct {
	entry *logrus.Entry
}

// NewWatermillLogger creates a new WatermillLogger
func NewWatermillLogger(logger logrus.FieldLogger) *WatermillLogger {
	return &WatermillLogger{entry: logger.WithField("component", "watermill")}
}

func (l *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).WithError(err).Error(msg)
}

func (l *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.entry.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (l *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &WatermillLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
