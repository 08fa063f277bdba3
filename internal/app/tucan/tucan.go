package tucan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/camballey/tucan/internal/cache"
	"github.com/camballey/tucan/internal/config"
	"github.com/camballey/tucan/internal/gateway/direct"
	"github.com/camballey/tucan/internal/gateway/supabase"
	"github.com/camballey/tucan/internal/lib/jwt"
	"github.com/camballey/tucan/internal/lib/rabbitmq"
	"github.com/camballey/tucan/internal/lib/sl"
	"github.com/camballey/tucan/internal/migrations"
	"github.com/camballey/tucan/internal/services/cards"
	"github.com/camballey/tucan/internal/services/locale"
	"github.com/camballey/tucan/internal/services/payment"
	"github.com/camballey/tucan/internal/services/session"
	"github.com/camballey/tucan/internal/storage"
)

// gateway объединяет то, что нужно менеджерам сессии и карт.
type gateway interface {
	session.Gateway
	cards.Gateway
}

// App контекст приложения: всё, что раньше было глобальным, живёт здесь.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	cache    *cache.Cache
	amqpConn *amqp.Connection
	pub      *rabbitmq.Publisher

	session  *session.Manager
	cards    *cards.Manager
	locale   *locale.Service
	terminal *payment.Terminal
	desk     *payment.Desk

	unfollow func()
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	const op = "tucan.New"

	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	gw, err := a.newGateway(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var pub payment.Publisher
	if cfg.RabbitMQURL != "" {
		a.amqpConn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.Retries, cfg.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(a.amqpConn, rabbitmq.PaymentsExchange, rabbitmq.PaymentQueues())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.pub = rabbitmq.NewPublisher(ch, rabbitmq.PaymentsExchange)
		pub = a.pub
	} else {
		logger.Info("rabbitmq is not configured, payment notifications stay local")
	}

	a.session = session.New(gw, a.cache, logger)
	a.cards = cards.New(gw, cfg.Cards.Limit, logger)
	if err := a.cards.LoadSchema(ctx); err != nil {
		// без схемы карты создаются только с обязательными колонками
		logger.Warn("failed to load card schema", sl.Err(err))
	}

	a.locale, err = locale.New(a.cache, cfg.Locale.Default, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.terminal = payment.NewTerminal()
	a.desk = payment.NewDesk(pub, logger)

	a.unfollow = a.session.Subscribe(a.followOwner)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Services{
		Session:  a.session,
		Cards:    a.cards,
		Locale:   a.locale,
		Terminal: a.terminal,
		Desk:     a.desk,
	}, rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst))

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return a, nil
}

func (a *App) newGateway(ctx context.Context, cfg *config.Config) (gateway, error) {
	switch cfg.Mode {
	case config.GatewayDirect:
		db, err := storage.New(ctx, cfg.StorageConnectionString)
		if err != nil {
			return nil, err
		}
		a.db = db
		if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			return nil, err
		}
		version := direct.VersionFromMigrations(func() (uint, bool, error) {
			return migrations.Version(db.DB)
		})
		tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
		return direct.New(db, tokens, cfg.RefreshTTL, a.logger, direct.WithSchemaVersion(version)), nil
	case config.GatewaySupabase:
		return supabase.New(cfg.URL, cfg.AnonKey, cfg.TimeoutGateway, a.logger), nil
	}
	return nil, fmt.Errorf("unknown gateway mode %q", cfg.Mode)
}

// followOwner переключает коллекцию карт на пользователя из снимка.
func (a *App) followOwner(snap session.Snapshot) {
	userID := snap.UserID()
	if userID == a.cards.Owner() {
		return
	}
	a.cards.SetOwner(userID)
	if userID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.cards.Refresh(ctx); err != nil {
			a.logger.Warn("failed to load cards", sl.UserID(userID), sl.Err(err))
		}
	}()
}

// Run восстанавливает сессию и язык, затем обслуживает мост до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	if err := a.session.Init(ctx); err != nil {
		return err
	}
	a.logger.Info("language detected", slog.String("code", a.locale.Detect(ctx)))

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}

// Close освобождает ресурсы в обратном порядке. Повторный вызов безопасен.
func (a *App) Close() {
	if a.unfollow != nil {
		a.unfollow()
		a.unfollow = nil
	}
	if a.desk != nil {
		a.desk.Close()
	}
	if a.terminal != nil {
		a.terminal.Reset()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq channel", sl.Err(err))
		}
		a.pub = nil
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Error("failed to close rabbitmq connection", sl.Err(err))
		}
		a.amqpConn = nil
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
		a.cache = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
		a.db = nil
	}
}
