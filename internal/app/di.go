// Package app provides the dependency injection container for assembling
// application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"sync"

	auditUseCase "github.com/medvault/phivault/internal/audit/usecase"
	"github.com/medvault/phivault/internal/config"
	cryptoDomain "github.com/medvault/phivault/internal/crypto/domain"
	cryptoHTTP "github.com/medvault/phivault/internal/crypto/http"
	cryptoService "github.com/medvault/phivault/internal/crypto/service"
	cryptoUseCase "github.com/medvault/phivault/internal/crypto/usecase"
	"github.com/medvault/phivault/internal/database"
	internalHTTP "github.com/medvault/phivault/internal/http"
	"github.com/medvault/phivault/internal/metrics"
	recordsHTTP "github.com/medvault/phivault/internal/records/http"
	recordsService "github.com/medvault/phivault/internal/records/service"
	recordsUseCase "github.com/medvault/phivault/internal/records/usecase"
	rotationHTTP "github.com/medvault/phivault/internal/rotation/http"
	rotationUseCase "github.com/medvault/phivault/internal/rotation/usecase"
)

// Container holds all application dependencies and provides methods to access
// them. Components are created lazily on first access.
type Container struct {
	config *config.Config

	logger    *slog.Logger
	db        *sql.DB
	txManager database.TxManager

	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	keySupplier    cryptoService.KeySupplier
	keyVersionRepo cryptoUseCase.KeyVersionRepository
	keyUseCase     cryptoUseCase.KeyUseCase
	keyRing        *cryptoDomain.KeyRing
	codec          cryptoService.Codec
	keyHandler     *cryptoHTTP.KeyHandler

	recordRepo    recordsUseCase.RecordRepository
	fieldAdapter  *recordsService.FieldAdapter
	recordUseCase recordsUseCase.RecordUseCase
	recordHandler *recordsHTTP.RecordHandler

	rotationJobRepo rotationUseCase.RotationJobRepository
	auditEventRepo  auditUseCase.EventRepository
	auditEmitter    auditUseCase.Emitter
	rotationUC      rotationUseCase.RotationUseCase
	rotationHandler *rotationHTTP.RotationHandler

	httpServer    *internalHTTP.Server
	metricsServer *internalHTTP.MetricsServer

	loggerInit          sync.Once
	dbInit              sync.Once
	txManagerInit       sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	keySupplierInit     sync.Once
	keyVersionRepoInit  sync.Once
	keyUseCaseInit      sync.Once
	keyRingInit         sync.Once
	codecInit           sync.Once
	keyHandlerInit      sync.Once
	recordRepoInit      sync.Once
	fieldAdapterInit    sync.Once
	recordUseCaseInit   sync.Once
	recordHandlerInit   sync.Once
	rotationJobRepoInit sync.Once
	auditEventRepoInit  sync.Once
	auditEmitterInit    sync.Once
	rotationUCInit      sync.Once
	rotationHandlerInit sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once

	mu         sync.Mutex
	initErrors map[string]error
}

// NewContainer creates a new dependency injection container with the provided
// configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// storeInitError records a component initialization failure.
func (c *Container) storeInitError(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initErrors[name] = err
}

// initError returns a previously recorded initialization failure.
func (c *Container) initError(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

// Logger returns the configured logger instance.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

func (c *Container) initLogger() *slog.Logger {
	var level slog.Level
	switch c.config.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// DB returns the database connection, creating and configuring it on first
// access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := database.Connect(database.Config{
			Driver:             c.config.DBDriver,
			ConnectionString:   c.config.DBConnectionString,
			MaxOpenConnections: c.config.DBMaxOpenConnections,
			MaxIdleConnections: c.config.DBMaxIdleConnections,
			ConnMaxLifetime:    c.config.DBConnMaxLifetime,
		})
		if err != nil {
			c.storeInitError("db", err)
			return
		}
		c.db = db
	})
	if err := c.initError("db"); err != nil {
		return nil, err
	}
	return c.db, nil
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeInitError("txManager", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if err := c.initError("txManager"); err != nil {
		return nil, err
	}
	return c.txManager, nil
}

// MetricsProvider returns the Prometheus metrics provider, or nil when
// metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.storeInitError("metricsProvider", err)
			return
		}
		c.metricsProvider = provider
	})
	if err := c.initError("metricsProvider"); err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. A no-op
// implementation is returned when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.storeInitError("businessMetrics", err)
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}

		bm, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.storeInitError("businessMetrics", err)
			return
		}
		c.businessMetrics = bm
	})
	if err := c.initError("businessMetrics"); err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the main API HTTP server with its router configured.
func (c *Container) HTTPServer() (*internalHTTP.Server, error) {
	c.httpServerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.storeInitError("httpServer", err)
			return
		}

		recordHandler, err := c.RecordHandler()
		if err != nil {
			c.storeInitError("httpServer", err)
			return
		}

		keyHandler, err := c.KeyHandler()
		if err != nil {
			c.storeInitError("httpServer", err)
			return
		}

		rotationHandler, err := c.RotationHandler()
		if err != nil {
			c.storeInitError("httpServer", err)
			return
		}

		routerConfig := internalHTTP.RouterConfig{
			RecordHandler:    recordHandler,
			KeyHandler:       keyHandler,
			RotationHandler:  rotationHandler,
			CORSEnabled:      c.config.CORSEnabled,
			CORSAllowOrigins: c.config.CORSAllowOrigins,
		}

		provider, err := c.MetricsProvider()
		if err != nil {
			c.storeInitError("httpServer", err)
			return
		}
		if provider != nil {
			routerConfig.MetricsMiddleware = metrics.HTTPMetricsMiddleware(
				provider.MeterProvider(),
				c.config.MetricsNamespace,
			)
		}

		server := internalHTTP.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
		server.SetupRouter(routerConfig)
		c.httpServer = server
	})
	if err := c.initError("httpServer"); err != nil {
		return nil, err
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics HTTP server, or nil when
// metrics are disabled.
func (c *Container) MetricsServer() (*internalHTTP.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.storeInitError("metricsServer", err)
			return
		}
		if provider == nil {
			return
		}

		c.metricsServer = internalHTTP.NewMetricsServer(
			c.config.ServerHost,
			c.config.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	if err := c.initError("metricsServer"); err != nil {
		return nil, err
	}
	return c.metricsServer, nil
}

// Shutdown releases all container resources: key material, the key supplier,
// the metrics provider and the database connection.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if c.keyRing != nil {
		c.keyRing.Close()
	}

	switch supplier := c.keySupplier.(type) {
	case *cryptoService.EnvKeySupplier:
		supplier.Close()
	case *cryptoService.KeeperKeySupplier:
		if err := supplier.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
