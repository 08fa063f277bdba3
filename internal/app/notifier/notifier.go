// Package notifier потребляет уведомления кассы водителя из RabbitMQ.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/camballey/tucan/internal/config"
	"github.com/camballey/tucan/internal/lib/rabbitmq"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/models"
)

type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "notifier.New"
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("%s: rabbitmq_url is not set", op)
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.PaymentsExchange, rabbitmq.PaymentQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &App{
		conn:   conn,
		ch:     ch,
		logger: logger,
	}, nil
}

// Handle разбирает уведомление. Битое сообщение не возвращается в очередь.
func (a *App) Handle(body []byte) error {
	var n models.PaymentNotification
	if err := json.Unmarshal(body, &n); err != nil {
		a.logger.Error("malformed payment notification", sl.Err(err))
		return nil
	}
	a.logger.Info("payment notification",
		slog.String("id", n.ID),
		slog.String("type", string(n.Type)),
		slog.String("amount", n.Amount.StringFixed(2)),
		slog.String("card_id", n.CardID),
		slog.String("passenger", n.PassengerName),
		slog.String("timestamp", n.Timestamp),
	)
	return nil
}

func (a *App) Run(ctx context.Context) error {
	for _, q := range rabbitmq.PaymentQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, q.QueueName, a.Handle); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("payment notifier shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
