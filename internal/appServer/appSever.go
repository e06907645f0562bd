package appServer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gabrie-lhilarion/spacemania/config"
	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/database/memory"
	repository "github.com/gabrie-lhilarion/spacemania/internal/database/postgres"
	cache "github.com/gabrie-lhilarion/spacemania/internal/database/redis"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/gabrie-lhilarion/spacemania/internal/service"
	"github.com/gabrie-lhilarion/spacemania/internal/transport"
	"github.com/gabrie-lhilarion/spacemania/internal/worker"
	"github.com/gabrie-lhilarion/spacemania/pkg/kafka"
	"github.com/gabrie-lhilarion/spacemania/pkg/postgres"
	"github.com/gabrie-lhilarion/spacemania/pkg/queue"
	"github.com/gabrie-lhilarion/spacemania/pkg/rabbitmq"
	"github.com/gabrie-lhilarion/spacemania/pkg/redis"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(logrus.StandardLogger().WriterLevel(logrus.ErrorLevel), "", 0),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// App is the wired application: the HTTP router plus the background
// components it owns.
type App struct {
	Router           http.Handler
	BookingService   service.BookingService
	WorkspaceService service.WorkspaceService

	completion *worker.BookingCompletionWorker
	taskQueue  *queue.RedisQueue
	rabbit     *rabbitmq.Publisher
	closers    []func() error
}

// Build wires storage, publishers and handlers from cfg without starting
// any goroutine.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}

	policy, err := entity.ParseOccupancyPolicy(cfg.Booking.Occupancy)
	if err != nil {
		return nil, err
	}

	workspaces, bookings, err := app.buildStorage(ctx, cfg, policy)
	if err != nil {
		app.Close()
		return nil, err
	}

	var redisClient *goredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, redisClient.Close)

		workspaces = cache.NewWorkspaceCache(workspaces, redisClient, cfg.Booking.WorkspaceCacheTTL)
	}

	publisher, dlq, err := app.buildPublishers(cfg, redisClient)
	if err != nil {
		app.Close()
		return nil, err
	}

	calculator := service.NewAvailabilityCalculator(workspaces, bookings, policy)
	app.BookingService = service.NewBookingService(bookings, calculator, publisher, service.BookingConfig{
		AdvanceNotice:          cfg.Booking.AdvanceNotice,
		DefaultPageSize:        cfg.Booking.DefaultPageSize,
		MaxPageSize:            cfg.Booking.MaxPageSize,
		MaxSpecialRequestChars: cfg.Booking.MaxSpecialRequestChars,
	}, time.Now)
	app.WorkspaceService = service.NewWorkspaceService(workspaces)

	app.completion = worker.NewBookingCompletionWorker(app.BookingService, cfg.Worker.CompletionInterval)

	var queueHandler *transport.QueueHandler
	if dlq != nil {
		queueHandler = transport.NewQueueHandler(dlq)
	}

	if cfg.Server.Mode == "release" || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app.Router = transport.InitRoutes(
		transport.RouterConfig{
			JWTSecret:      cfg.JWT.Secret,
			RequestTimeout: cfg.Server.RequestTimeout,
			Health:         app.health,
		},
		transport.NewBookingHandler(app.BookingService),
		transport.NewWorkspaceHandler(app.WorkspaceService),
		queueHandler,
	)

	logrus.WithFields(logrus.Fields{
		"storage":   cfg.Storage.Driver,
		"occupancy": policy,
		"redis":     cfg.Redis.Enabled,
	}).Info("Application wired")

	return app, nil
}

func (a *App) buildStorage(ctx context.Context, cfg *config.Config, policy entity.OccupancyPolicy) (database.WorkspaceRepository, database.BookingRepository, error) {
	switch cfg.Storage.Driver {
	case "memory":
		workspaces := memory.NewWorkspaceRepository(time.Now)
		return workspaces, memory.NewBookingRepository(workspaces, policy, time.Now), nil

	case "postgres":
		db, err := postgres.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)

		err = postgres.RunMigrations(ctx, db, postgres.MigrationOptions{
			ExclusiveBookings: policy == entity.OccupancyExclusive,
		})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewWorkspaceRepository(db, time.Now), repository.NewBookingRepository(db, policy, time.Now), nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// buildPublishers assembles the configured event sinks. The DLQ handler is
// returned for the admin routes when the Redis task queue is enabled.
func (a *App) buildPublishers(cfg *config.Config, redisClient *goredis.Client) (service.EventPublisher, queue.DLQHandler, error) {
	var publishers service.MultiPublisher
	var dlq queue.DLQHandler

	notifications := cfg.Notifications

	if notifications.RedisQueue.Enabled {
		if redisClient == nil {
			return nil, nil, errors.New("redis task queue requires redis")
		}

		queueCfg := queue.DefaultRedisQueueConfig()
		queueCfg.MainQueue = notifications.RedisQueue.Queue
		queueCfg.DelayedQueue = notifications.RedisQueue.Queue + ":delayed"
		queueCfg.ProcessingQueue = notifications.RedisQueue.Queue + ":processing"
		queueCfg.DLQ = notifications.RedisQueue.DLQ
		queueCfg.MaxRetries = notifications.RedisQueue.MaxRetries
		queueCfg.BaseDelay = notifications.RedisQueue.BaseDelay

		dlqHandler := queue.NewDefaultDLQHandler(redisClient, queueCfg.DLQ, queueCfg.MainQueue)
		retryManager := queue.NewRetryManager(queueCfg.MaxRetries, queueCfg.BaseDelay)

		a.taskQueue = queue.NewRedisQueue(redisClient, queueCfg, retryManager, dlqHandler)
		publishers = append(publishers, service.NewQueueAdapter(a.taskQueue))
		dlq = dlqHandler
	}

	if notifications.RabbitMQ.Enabled {
		rabbit, err := rabbitmq.NewPublisher(rabbitmq.Config{
			URL:          notifications.RabbitMQ.URL,
			ExchangeName: notifications.RabbitMQ.Exchange,
		})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, rabbit.Close)
		a.rabbit = rabbit
		publishers = append(publishers, service.NewRabbitPublisher(rabbit))
	}

	if notifications.Kafka.Enabled {
		producer := kafka.NewProducer(notifications.Kafka.Brokers, notifications.Kafka.Topic, notifications.Kafka.WriteTimeout)
		a.closers = append(a.closers, producer.Close)
		publishers = append(publishers, service.NewKafkaPublisher(producer))
	}

	switch len(publishers) {
	case 0:
		logrus.Warn("No event publisher configured, booking events are dropped")
		return nil, nil, nil
	case 1:
		return publishers[0], dlq, nil
	}
	return publishers, dlq, nil
}

// health reports the background components. A closed RabbitMQ connection or an
// unreachable task queue marks the service degraded.
func (a *App) health(ctx context.Context) (gin.H, bool) {
	components := gin.H{"completion_worker": a.completion.GetStats()}
	healthy := true

	if a.taskQueue != nil {
		stats, err := a.taskQueue.GetQueueStats(ctx)
		if err != nil {
			logrus.WithError(err).Warn("Task queue health check failed")
			components["task_queue"] = gin.H{"error": "unavailable"}
			healthy = false
		} else {
			components["task_queue"] = stats
		}
	}

	if a.rabbit != nil {
		if err := a.rabbit.HealthCheck(); err != nil {
			logrus.WithError(err).Warn("RabbitMQ health check failed")
			components["rabbitmq"] = "unavailable"
			healthy = false
		} else {
			components["rabbitmq"] = "ok"
		}
	}

	return components, healthy
}

// Start launches the background components. They stop when ctx is done.
func (a *App) Start(ctx context.Context) error {
	go a.completion.Start(ctx)

	if a.taskQueue != nil {
		if err := a.taskQueue.Subscribe(ctx, service.NotificationHandler(service.LogNotifier{})); err != nil {
			return err
		}
	}
	return nil
}

// Close releases everything Build acquired, in reverse order.
func (a *App) Close() {
	if a.taskQueue != nil {
		a.taskQueue.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logrus.WithError(err).Warn("Error during shutdown")
		}
	}
	a.closers = nil
}

func ConfigureLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func NewServer(cfg *config.Config) {

	ConfigureLogging(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := Build(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	if err := app.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start background workers: %v", err)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, app.Router); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.WithField("addr", cfg.GetServerAddress()).Info("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Info("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
	cancel()
}
