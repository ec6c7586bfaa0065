// internal/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	router "astrolive/internal/api"
	"astrolive/internal/api/handler"
	"astrolive/internal/config"
	"astrolive/internal/events"
	"astrolive/internal/presence"
	"astrolive/internal/repository"
	"astrolive/internal/repository/memory"
	"astrolive/internal/repository/postgres"
	"astrolive/internal/service"
	"astrolive/internal/session"
	"astrolive/internal/transport/ws"
	"astrolive/internal/util"
	"astrolive/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// Connections, nil when the matching backend is not configured.
	DB    *sqlx.DB
	Redis *redis.Client
	NATS  *nats.Conn

	// Repositories
	Profiles      repository.ProfileRepository
	Availability  repository.AvailabilityRepository
	Consultations repository.ConsultationRepository

	// Services
	Ledger     service.LedgerService
	Accounts   service.AccountService
	Presence   presence.Registry
	Publisher  events.Publisher
	Hub        *ws.Hub
	Guard      *session.AvailabilityGuard
	Biller     *session.Biller
	Negotiator *session.Negotiator

	// Scheduler drives billing ticks and request expiry. Defaults to wall-clock time.
	Scheduler session.Scheduler

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize loads configuration from the environment and builds the application.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.Build(ctx, cfg)
}

// Build initializes all application components from cfg.
func (app *Application) Build(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg
	util.InitLogger(cfg.LogLevel)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "store", cfg.StoreBackend, "presence", cfg.PresenceBackend)

	if err := app.initStore(ctx); err != nil {
		return err
	}
	if err := app.initPresence(ctx); err != nil {
		return err
	}
	if err := app.initPublisher(); err != nil {
		return err
	}

	app.Ledger = service.NewBreakerLedger(app.Ledger, service.BreakerConfig{
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		OpenTimeout:         cfg.Breaker.OpenTimeout,
	}, app.Logger)
	app.Accounts = service.NewAccountService(app.Profiles, app.Ledger)
	if err := app.Accounts.EnsureOperator(ctx, cfg.Billing.OperatorAccountID); err != nil {
		return fmt.Errorf("failed to provision operator account: %w", err)
	}
	app.Logger.Info("Services initialized.")

	if app.Scheduler == nil {
		app.Scheduler = session.TickerScheduler{}
	}
	app.Hub = ws.NewHub(app.Logger)
	notifier := events.NewNotifier(app.Presence, app.Hub, app.Logger)
	app.Guard = session.NewAvailabilityGuard(app.Availability)
	app.Biller = session.NewBiller(app.Ledger, app.Profiles, app.Guard, session.NewRegistry(), app.Scheduler,
		notifier, app.Publisher, session.BillingConfig{
			Interval:          cfg.Billing.Interval,
			ProviderShare:     cfg.Billing.ProviderShare,
			OperatorAccountID: cfg.Billing.OperatorAccountID,
			MoneyPlaces:       cfg.Billing.MoneyPlaces,
		}, app.Logger)
	app.Negotiator = session.NewNegotiator(app.Profiles, app.Consultations, app.Guard, app.Presence, notifier,
		app.Publisher, app.Biller, app.Scheduler, cfg.Negotiation.RequestTimeout, app.Logger)
	app.Logger.Info("Session engine initialized.", "billing_interval", cfg.Billing.Interval.String())

	app.HTTPHandler = router.NewRouter(router.Handlers{
		Wallets:       handler.NewWalletHandler(app.Accounts, app.Ledger, app.Logger),
		Providers:     handler.NewProviderHandler(app.Accounts, app.Guard, app.Negotiator, app.Logger),
		Consultations: handler.NewConsultationHandler(app.Negotiator, app.Logger),
		Sessions:      handler.NewSessionHandler(app.Biller, app.Logger),
		WebSocket:     ws.NewHandler(app.Hub, app.Profiles, app.Presence, app.Guard, app.Negotiator, app.Biller, app.Logger),
	})
	app.Logger.Info("HTTP router and handlers initialized.")
	return nil
}

func (app *Application) initStore(ctx context.Context) error {
	if app.Config.StoreBackend == config.BackendMemory {
		profiles := memory.NewProfileStore()
		app.Profiles = profiles
		app.Availability = profiles
		app.Consultations = memory.NewConsultationStore()
		app.Ledger = service.NewMemoryLedger()
		app.Logger.Warn("Using in-memory storage; balances are lost on restart.")
		return nil
	}

	database, err := db.NewPostgresDB(ctx, app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	if app.Config.DBMigrate {
		if err := postgres.RunMigrations(ctx, database, "up"); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		app.Logger.Info("Database migrations applied.")
	}

	profiles := postgres.NewProfileRepository(database)
	app.Profiles = profiles
	app.Availability = profiles
	app.Consultations = postgres.NewConsultationRepository(database)
	app.Ledger = service.NewLedgerService(
		database, // DBTxBeginner
		database, // DBExecutor
		postgres.NewWalletRepository(),
		postgres.NewTransactionRepository(),
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
	)
	app.Logger.Info("Repositories initialized.")
	return nil
}

func (app *Application) initPresence(ctx context.Context) error {
	if app.Config.PresenceBackend != config.BackendRedis {
		app.Presence = presence.NewMemoryRegistry()
		return nil
	}
	client, err := presence.ConnectRedis(ctx, app.Config.Redis.Addr, app.Config.Redis.Password, app.Config.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.Redis = client
	app.Presence = presence.NewRedisRegistry(client, presence.DefaultRedisKey)
	app.Logger.Info("Redis presence registry connected.", "addr", app.Config.Redis.Addr)
	return nil
}

func (app *Application) initPublisher() error {
	if app.Config.NATSURL == "" {
		app.Publisher = events.NoopPublisher{}
		return nil
	}
	conn, err := events.ConnectNATS(app.Config.NATSURL, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	app.NATS = conn
	app.Publisher = events.NewNATSPublisher(conn, events.DefaultSubjectPrefix)
	app.Logger.Info("NATS event publisher connected.", "url", app.Config.NATSURL)
	return nil
}

// Shutdown ends every live session and closes application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Biller != nil {
		app.Biller.Shutdown(ctx)
	}
	if app.Hub != nil {
		app.Hub.CloseAll()
	}

	var errs []error
	if app.NATS != nil {
		if err := app.NATS.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain nats connection: %w", err))
		}
	}
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database connection: %w", err))
		} else {
			app.Logger.Info("Database connection closed.")
		}
	}
	if err := errors.Join(errs...); err != nil {
		app.Logger.Error("Application shutdown incomplete", "error", err)
		return err
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
