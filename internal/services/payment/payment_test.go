package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/camballey/tucan/internal/models"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, msg any) error {
	return m.Called(ctx, routingKey, msg).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFare(t *testing.T) {
	tests := []struct {
		r    float64
		want string
	}{
		{r: 0, want: "1.00"},
		{r: 0.5, want: "3.50"},
		{r: 0.123456, want: "1.62"},
		{r: 0.9, want: "5.50"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fare(tt.r).StringFixed(2))
	}
}

func TestTerminal_Run(t *testing.T) {
	term := NewTerminal(WithDelays(time.Millisecond, time.Millisecond), WithRandom(func() float64 { return 0.5 }))
	assert.Equal(t, StateIdle, term.Status().State)

	fare, err := term.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3.50", fare.StringFixed(2))

	st := term.Status()
	assert.Equal(t, StateSuccess, st.State)
	require.NotNil(t, st.Fare)
	assert.True(t, st.Fare.Equal(fare))

	term.Reset()
	assert.Equal(t, TerminalStatus{State: StateIdle}, term.Status())
}

func TestTerminal_RunCancelled(t *testing.T) {
	term := NewTerminal(WithDelays(time.Hour, time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := term.Run(ctx)
		done <- err
	}()

	assert.Eventually(t, func() bool {
		return term.Status().State == StateScanning
	}, time.Second, 5*time.Millisecond)

	_, err := term.Run(context.Background())
	require.ErrorIs(t, err, ErrTerminalBusy)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateIdle, term.Status().State)
}

func TestDesk_RequestExpires(t *testing.T) {
	d := NewDesk(nil, newNoopLogger(), WithTimeout(20*time.Millisecond))
	defer d.Close()

	st := d.StartPaymentRequest(context.Background())
	assert.True(t, st.DriverWaiting)
	assert.True(t, st.PassengerActive)

	assert.Eventually(t, func() bool {
		return d.Status() == DeskStatus{}
	}, time.Second, 5*time.Millisecond)
}

func TestDesk_ExpiredRequestRecordsFailure(t *testing.T) {
	pub := &mockPublisher{}
	now := time.Date(2024, 5, 2, 7, 5, 0, 0, time.UTC)
	d := NewDesk(pub, newNoopLogger(), WithTimeout(20*time.Millisecond), WithClock(func() time.Time { return now }))
	defer d.Close()

	failed := make(chan models.PaymentNotification, 1)
	pub.On("Publish", mock.Anything, RoutingRequested, mock.Anything).Return(nil).Once()
	pub.On("Publish", mock.Anything, RoutingFailed, mock.MatchedBy(func(n models.PaymentNotification) bool {
		return n.Type == models.NotificationFailed
	})).Run(func(args mock.Arguments) {
		failed <- args.Get(2).(models.PaymentNotification)
	}).Return(errors.New("broker down")).Once()

	d.StartPaymentRequest(context.Background())

	var n models.PaymentNotification
	select {
	case n = <-failed:
	case <-time.After(time.Second):
		t.Fatal("payment.failed was not published")
	}
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "07:05", n.Timestamp)
	assert.Equal(t, DeskStatus{}, d.Status())

	// ошибка публикации не мешает локальному уведомлению
	list := d.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)
	assert.Equal(t, models.NotificationFailed, list[0].Type)
	pub.AssertExpectations(t)
}

func TestDesk_PaidRequestDoesNotExpire(t *testing.T) {
	pub := &mockPublisher{}
	d := NewDesk(pub, newNoopLogger(), WithTimeout(30*time.Millisecond))
	defer d.Close()

	pub.On("Publish", mock.Anything, RoutingRequested, mock.Anything).Return(nil).Once()
	pub.On("Publish", mock.Anything, RoutingCompleted, mock.Anything).Return(nil).Once()

	d.StartPaymentRequest(context.Background())
	_, err := d.ProcessPassengerPayment(context.Background(), decimal.RequireFromString("2.5"), "T-1234", "Ana")
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	list := d.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationCompleted, list[0].Type)
	pub.AssertNotCalled(t, "Publish", mock.Anything, RoutingFailed, mock.Anything)
	pub.AssertExpectations(t)
}

func TestDesk_RestartedRequestKeepsWaiting(t *testing.T) {
	d := NewDesk(nil, newNoopLogger(), WithTimeout(200*time.Millisecond))
	defer d.Close()

	d.StartPaymentRequest(context.Background())
	time.Sleep(120 * time.Millisecond)
	d.StartPaymentRequest(context.Background())
	time.Sleep(120 * time.Millisecond)

	// первый таймер уже сработал бы, но перезапуск его отменил
	assert.True(t, d.Status().DriverWaiting)
}

func TestDesk_ProcessPassengerPayment(t *testing.T) {
	pub := &mockPublisher{}
	now := time.Date(2024, 5, 2, 7, 5, 0, 0, time.UTC)
	d := NewDesk(pub, newNoopLogger(), WithClock(func() time.Time { return now }))
	defer d.Close()

	pub.On("Publish", mock.Anything, RoutingRequested, mock.MatchedBy(func(n models.PaymentNotification) bool {
		return n.Type == models.NotificationRequest
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, RoutingCompleted, mock.MatchedBy(func(n models.PaymentNotification) bool {
		return n.Type == models.NotificationCompleted && n.CardID == "T-1234"
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, RoutingCompleted, mock.Anything).Return(errors.New("broker down")).Once()

	d.StartPaymentRequest(context.Background())
	first, err := d.ProcessPassengerPayment(context.Background(), decimal.RequireFromString("2.5"), "T-1234", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "07:05", first.Timestamp)
	assert.Equal(t, "2.50", first.Amount.StringFixed(2))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, DeskStatus{}, d.Status())

	// ошибка публикации не мешает локальному уведомлению
	second, err := d.ProcessPassengerPayment(context.Background(), decimal.RequireFromString("3"), "T-9999", "Luis")
	require.NoError(t, err)

	list := d.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	pub.AssertExpectations(t)

	d.ClearNotifications()
	assert.Empty(t, d.Notifications())
}

func TestDesk_RejectsNonPositiveAmount(t *testing.T) {
	d := NewDesk(nil, newNoopLogger())
	_, err := d.ProcessPassengerPayment(context.Background(), decimal.Zero, "T-1", "Ana")
	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.Empty(t, d.Notifications())
}
