package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/collegetransit/booking-service/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuditService(t *testing.T) (*AuditService, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := database.NewPostgresDB(sqlx.NewDb(mockDB, "sqlmock"))
	return NewAuditService(db), mock
}

func TestAuditService_LogBookingEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		service, mock := setupAuditService(t)

		mock.ExpectExec("INSERT INTO booking_audit_logs").
			WithArgs(sqlmock.AnyArg(), riderA, AuditActionBookingCancelled, "b-1", "203.0.113.7", "curl/8.0", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := service.LogBookingEvent(ctx, AuditEvent{
			ActorID:   riderA,
			Action:    AuditActionBookingCancelled,
			BookingID: "b-1",
			IPAddress: "203.0.113.7",
			UserAgent: "curl/8.0",
			Details:   map[string]interface{}{"refund_amount": 80.0},
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Booking id omitted", func(t *testing.T) {
		service, mock := setupAuditService(t)

		mock.ExpectExec("INSERT INTO booking_audit_logs").
			WithArgs(sqlmock.AnyArg(), riderA, AuditActionAccessDenied, nil, "", "", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := service.LogBookingEvent(ctx, AuditEvent{ActorID: riderA, Action: AuditActionAccessDenied})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database error", func(t *testing.T) {
		service, mock := setupAuditService(t)

		mock.ExpectExec("INSERT INTO booking_audit_logs").WillReturnError(errors.New("connection refused"))

		err := service.LogBookingEvent(ctx, AuditEvent{ActorID: riderA, Action: AuditActionBookingCreated})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to log audit event")
	})
}

func TestAuditService_EventsForBooking(t *testing.T) {
	service, mock := setupAuditService(t)
	createdAt := time.Date(2025, 5, 31, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "actor_id", "action", "booking_id", "ip_address", "user_agent", "details", "created_at"}).
		AddRow("e-2", riderA, AuditActionBookingCancelled, "b-1", "203.0.113.7", "curl/8.0", []byte(`{"refund_amount":80}`), createdAt).
		AddRow("e-1", riderA, AuditActionBookingCreated, "b-1", "203.0.113.7", "curl/8.0", []byte(`{}`), createdAt.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM booking_audit_logs WHERE booking_id = \\$1").
		WithArgs("b-1", 20).
		WillReturnRows(rows)

	records, err := service.EventsForBooking(context.Background(), "b-1", 20)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, AuditActionBookingCancelled, records[0].Action)
	assert.JSONEq(t, `{"refund_amount":80}`, string(records[0].Details))
	assert.NoError(t, mock.ExpectationsWereMet())
}
