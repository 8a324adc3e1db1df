package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"vendorse/internal/auth"
	"vendorse/internal/cache"
	"vendorse/internal/config"
	"vendorse/internal/controller"
	"vendorse/internal/files"
	"vendorse/internal/logger"
	"vendorse/internal/metrics"
	"vendorse/internal/notify"
	"vendorse/internal/repository"
	"vendorse/internal/router"
	"vendorse/internal/service"

	"go.uber.org/zap"
)

const (
	statsCachePrefix = "vendorse:"
	shutdownTimeout  = 10 * time.Second
)

type App struct {
	repo       *repository.Repository
	cache      *cache.Cache
	service    *service.Service
	controller *controller.Controller
	metrics    *metrics.Metrics
	log        *zap.Logger
	stopSig    chan os.Signal
	cfg        *config.Config
	closeOnce  sync.Once

	Done chan struct{}
}

type option func(*App)

func WithConfig(cfg *config.Config) option {
	return func(app *App) {
		app.cfg = cfg
	}
}

func WithLogger(log *zap.Logger) option {
	return func(app *App) {
		app.log = log
	}
}

func NewApp(opts ...option) (*App, error) {
	var err error
	ctx := context.Background()

	app := &App{
		stopSig: make(chan os.Signal, 2),
		Done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.cfg == nil {
		cfg, err := config.NewConfig()
		if err != nil {
			return nil, err
		}
		app.cfg = cfg
	}

	if app.log == nil {
		app.log, err = logger.New(app.cfg.LogLevel, app.cfg.LogFormat)
		if err != nil {
			return nil, err
		}
	}

	app.repo, err = repository.NewRepository(ctx, nil, &app.cfg.PostgresConfig, app.log)
	if err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokens(app.cfg.JWTSecret, app.cfg.JWTIssuer, app.cfg.TokenTTL)
	if err != nil {
		app.repo.Close()
		return nil, err
	}

	app.metrics = metrics.New()
	svcOpts := []service.Option{
		service.WithTokens(tokens),
		service.WithPasswords(auth.NewPasswords(app.cfg.BcryptCost)),
		service.WithMetrics(app.metrics),
		service.WithLogger(app.log),
	}

	if app.cfg.RedisConfig.Addr != "" {
		app.cache = cache.New(cache.NewRedisClient(app.cfg.RedisConfig), statsCachePrefix, app.cfg.StatsTTL)
		err = app.cache.Ping(ctx)
		if err != nil {
			app.log.Warn("redis is unreachable, stats will be served uncached until it recovers", zap.Error(err))
		}
		svcOpts = append(svcOpts, service.WithCache(app.cache))
	}

	if app.cfg.TopicARN != "" {
		publisher, err := notify.NewSNSPublisher(ctx, app.cfg.Region, app.cfg.TopicARN)
		if err != nil {
			app.Close()
			return nil, err
		}
		svcOpts = append(svcOpts, service.WithPublisher(publisher))
	}

	// A nil interface keeps the file routes answering 503.
	var fileService controller.FileService
	storage, err := files.NewS3(ctx, app.cfg.StorageConfig)
	if err != nil {
		app.log.Warn("file storage disabled", zap.Error(err))
	} else {
		fileService = storage
	}

	app.service = service.NewService(service.FromRepository(app.repo), svcOpts...)
	app.controller = controller.NewController(app.service, fileService, app.log)

	return app, nil
}

func (app *App) Handler() http.Handler {
	return router.NewRouter(app.controller, app.metrics, app.cfg.RateLimitConfig, app.log)
}

func (app *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		signal.Notify(app.stopSig, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
		sig := <-app.stopSig
		app.log.Info("received signal", zap.String("signal", sig.String()))
		cancel()
	}()

	server := http.Server{
		Addr:              app.cfg.ServerAddress,
		Handler:           app.Handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	app.log.Info("server started, listening for connections", zap.String("address", app.cfg.ServerAddress))
	<-ctx.Done()

	timeout, tcancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer tcancel()
	app.log.Info("shutting down http server")
	err := server.Shutdown(timeout)
	if err != nil {
		app.log.Warn("http server shutdown error", zap.Error(err))
	}

	app.Close()

	close(app.Done)
	app.log.Info("exiting app")
	app.log.Sync()
}

// Close releases the database pool and the cache client. Later calls do nothing.
func (app *App) Close() {
	app.closeOnce.Do(app.close)
}

func (app *App) close() {
	app.log.Info("closing repository")
	err := app.repo.Close()
	if err != nil {
		app.log.Error("repository closing error", zap.Error(err))
	}

	if app.cache != nil {
		err = app.cache.Close()
		if err != nil {
			app.log.Error("cache closing error", zap.Error(err))
		}
	}
}
