package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

// RequestTimeout время ожидания оплаты после запроса водителя.
const RequestTimeout = 30 * time.Second

// Ключи маршрутизации уведомлений.
const (
	RoutingRequested = "payment.requested"
	RoutingCompleted = "payment.completed"
	RoutingFailed    = "payment.failed"
)

// publishTimeout ограничивает публикацию из таймера, где нет контекста запроса.
const publishTimeout = 5 * time.Second

var ErrInvalidAmount = errors.New("amount must be positive")

// Publisher отправляет уведомления во внешнюю шину.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// DeskStatus флаги ожидания оплаты.
type DeskStatus struct {
	DriverWaiting   bool `json:"driver_waiting"`
	PassengerActive bool `json:"passenger_active"`
}

// Desk касса водителя.
type Desk struct {
	pub     Publisher
	log     *slog.Logger
	now     func() time.Time
	timeout time.Duration

	mu            sync.Mutex
	status        DeskStatus
	timer         *time.Timer
	notifications []models.PaymentNotification
}

// DeskOption настройка кассы.
type DeskOption func(*Desk)

// WithTimeout время жизни запроса оплаты.
func WithTimeout(timeout time.Duration) DeskOption {
	return func(d *Desk) { d.timeout = timeout }
}

// WithClock подменяет часы для отметок времени.
func WithClock(now func() time.Time) DeskOption {
	return func(d *Desk) { d.now = now }
}

// NewDesk создаёт кассу. pub может быть nil: тогда уведомления только локальные.
func NewDesk(pub Publisher, log *slog.Logger, opts ...DeskOption) *Desk {
	d := &Desk{
		pub:     pub,
		log:     log,
		now:     time.Now,
		timeout: RequestTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StartPaymentRequest выставляет флаги ожидания и публикует запрос оплаты.
// Через timeout без оплаты флаги сбрасываются, а в начало списка
// добавляется уведомление payment_failed. Повторный запрос перезапускает отсчёт.
func (d *Desk) StartPaymentRequest(ctx context.Context) DeskStatus {
	d.mu.Lock()
	d.status = DeskStatus{DriverWaiting: true, PassengerActive: true}
	if d.timer != nil {
		d.timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d.timeout, func() { d.expire(timer) })
	d.timer = timer
	status := d.status
	d.mu.Unlock()

	d.publish(ctx, RoutingRequested, models.PaymentNotification{
		ID:        uuid.NewString(),
		Type:      models.NotificationRequest,
		Amount:    decimal.Zero,
		Timestamp: d.now().Format("15:04"),
	})
	return status
}

func (d *Desk) expire(timer *time.Timer) {
	d.mu.Lock()
	if d.timer != timer {
		d.mu.Unlock()
		return
	}
	n := models.PaymentNotification{
		ID:        uuid.NewString(),
		Type:      models.NotificationFailed,
		Amount:    decimal.Zero,
		Timestamp: d.now().Format("15:04"),
	}
	d.status = DeskStatus{}
	d.timer = nil
	d.notifications = append([]models.PaymentNotification{n}, d.notifications...)
	d.mu.Unlock()

	d.log.Info("payment request expired")

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	d.publish(ctx, RoutingFailed, n)
}

// publish отправляет уведомление во внешнюю шину; ошибка только логируется,
// уведомление уже учтено локально.
func (d *Desk) publish(ctx context.Context, routingKey string, n models.PaymentNotification) {
	if d.pub == nil {
		return
	}
	if err := d.pub.Publish(ctx, routingKey, n); err != nil {
		d.log.Error("failed to publish payment notification",
			slog.String("routing_key", routingKey),
			sl.Err(err),
		)
	}
}

// ProcessPassengerPayment регистрирует оплату пассажира: уведомление
// добавляется в начало списка, флаги ожидания сбрасываются.
func (d *Desk) ProcessPassengerPayment(ctx context.Context, amount decimal.Decimal, cardID, passengerName string) (models.PaymentNotification, error) {
	const op = "payment.ProcessPassengerPayment"

	if !amount.IsPositive() {
		return models.PaymentNotification{}, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	n := models.PaymentNotification{
		ID:            uuid.NewString(),
		Type:          models.NotificationCompleted,
		Amount:        amount.Round(2),
		CardID:        strings.TrimSpace(cardID),
		PassengerName: strings.TrimSpace(passengerName),
		Timestamp:     d.now().Format("15:04"),
	}

	d.mu.Lock()
	d.notifications = append([]models.PaymentNotification{n}, d.notifications...)
	d.status = DeskStatus{}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	d.log.Info("payment received",
		slog.String("card_id", n.CardID),
		slog.String("amount", n.Amount.StringFixed(2)),
	)

	d.publish(ctx, RoutingCompleted, n)
	return n, nil
}

// Status флаги ожидания.
func (d *Desk) Status() DeskStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Notifications уведомления, новые первыми.
func (d *Desk) Notifications() []models.PaymentNotification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.notifications)
}

// ClearNotifications очищает список уведомлений.
func (d *Desk) ClearNotifications() {
	d.mu.Lock()
	d.notifications = nil
	d.mu.Unlock()
}

// Close останавливает таймер запроса.
func (d *Desk) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
