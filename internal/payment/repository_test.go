package payment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_RecordAttempt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO payment_attempts").
			WithArgs(uint(10), "rzp_pay_1", "captured", int64(20000), []byte(`{}`)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.RecordAttempt(context.Background(), &Attempt{
			OrderID:     10,
			PaymentRef:  "rzp_pay_1",
			Status:      "captured",
			AmountMinor: 20000,
			RawPayload:  json.RawMessage(`{}`),
		})
		assert.NoError(t, err)
	})

	t.Run("Error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO payment_attempts").
			WillReturnError(errors.New("db error"))

		err := repo.RecordAttempt(context.Background(), &Attempt{OrderID: 10})
		assert.Error(t, err)
	})
}

func TestRepository_SaveConfirmationEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	payload := json.RawMessage(`{"razorpay_payment_id":"rzp_pay_1"}`)

	t.Run("FirstDelivery", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO payment_events").
			WithArgs("RAZORPAY", "rzp_pay_1", "rzp_order_1", true, []byte(payload)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

		id, dup, err := repo.SaveConfirmationEvent(
			context.Background(), "RAZORPAY", "rzp_pay_1", "rzp_order_1", payload, true,
		)
		assert.NoError(t, err)
		assert.False(t, dup)
		assert.Equal(t, int64(5), id)
	})

	t.Run("ReplayIsDuplicate", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO payment_events").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, dup, err := repo.SaveConfirmationEvent(
			context.Background(), "RAZORPAY", "rzp_pay_1", "rzp_order_1", payload, true,
		)
		assert.NoError(t, err)
		assert.True(t, dup)
	})
}

func TestRepository_ListAttemptsByOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	rows := sqlmock.NewRows([]string{"id", "order_id", "payment_ref", "status", "amount_minor", "created_at"}).
		AddRow(1, 10, "rzp_pay_1", "failed", 20000, time.Now()).
		AddRow(2, 10, "rzp_pay_2", "captured", 20000, time.Now())

	mock.ExpectQuery("SELECT (.+) FROM payment_attempts").
		WithArgs(uint(10)).
		WillReturnRows(rows)

	attempts, err := repo.ListAttemptsByOrder(context.Background(), 10)
	assert.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "failed", attempts[0].Status)
	assert.Equal(t, "captured", attempts[1].Status)
}

func TestRepository_MarkEventProcessed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectExec("UPDATE payment_events").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkEventProcessed(context.Background(), 5))
}
