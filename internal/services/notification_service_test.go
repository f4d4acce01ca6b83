package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/collegetransit/booking-service/internal/utils"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_Notify(t *testing.T) {
	logger, _ := test.NewNullLogger()
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 10}, NewWatermillLogger(logger))
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "booking-notifications")
	require.NoError(t, err)

	service := NewNotificationService(pubSub, "booking-notifications", logger)
	ctx = utils.ContextWithCorrelationID(ctx, "corr-1")

	err = service.Notify(ctx, riderA, NotificationBookingCancelled, map[string]interface{}{
		"booking_id":    "b-1",
		"refund_amount": 80.0,
	})
	require.NoError(t, err)

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, string(NotificationBookingCancelled), msg.Metadata.Get("kind"))
		assert.Equal(t, riderA, msg.Metadata.Get("rider_id"))
		assert.Equal(t, "corr-1", msg.Metadata.Get("correlation_id"))

		var body BookingNotification
		require.NoError(t, json.Unmarshal(msg.Payload, &body))
		assert.Equal(t, "Booking Cancelled", body.Title)
		assert.Equal(t, "Your booking has been cancelled. Refund amount: ₹80.00", body.Message)
		assert.Equal(t, "b-1", body.Payload["booking_id"])
	case <-time.After(time.Second):
		t.Fatal("notification was not published")
	}
}

func TestLogPublisher(t *testing.T) {
	logger, hook := test.NewNullLogger()
	publisher := NewLogPublisher(logger)

	service := NewNotificationService(publisher, "booking-notifications", logger)
	err := service.Notify(context.Background(), riderA, NotificationBookingConfirmed, map[string]interface{}{
		"seat_number":   1,
		"travel_date":   "2025-06-01",
		"ticket_number": "TKT000001",
	})
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Notification", entry.Message)
	assert.Equal(t, "booking-notifications", entry.Data["topic"])
	assert.Contains(t, entry.Data["payload"], "Ticket: TKT000001")
	assert.NoError(t, publisher.Close())
}

func TestWatermillLogger_With(t *testing.T) {
	logger, hook := test.NewNullLogger()
	adapter := NewWatermillLogger(logger).With(watermill.LogFields{"topic": "t"})
	adapter.Info("published", watermill.LogFields{"n": 1})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "watermill", entry.Data["component"])
	assert.Equal(t, "t", entry.Data["topic"])
	assert.Equal(t, 1, entry.Data["n"])
}
