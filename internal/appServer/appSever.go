package appServer

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SnowyCoder/queuify/config"
	repository "github.com/SnowyCoder/queuify/internal/database/postgres"
	redisCache "github.com/SnowyCoder/queuify/internal/database/redis"
	"github.com/SnowyCoder/queuify/internal/service"
	"github.com/SnowyCoder/queuify/internal/transport"
	"github.com/SnowyCoder/queuify/internal/worker"

	"github.com/SnowyCoder/queuify/pkg/postgres"
	"github.com/SnowyCoder/queuify/pkg/queue"
	"github.com/SnowyCoder/queuify/pkg/redis"
	"github.com/SnowyCoder/queuify/pkg/scheduler"
	"github.com/SnowyCoder/queuify/pkg/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},           // ban on outdate TLS certificate
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags), // os.Stderr can be replaced with ElsasticSearch in the feature
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(cfg *config.Config) {

	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(logrus.InfoLevel)
	// Initialize database
	db, err := postgres.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run database migrations
	if err := postgres.RunMigrations(db); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	queueRepo := repository.NewQueueRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize Telegram bot
	var telegramBot *telegram.Bot
	if cfg.Telegram.BotToken != "" {
		telegramBot = telegram.NewBot(cfg.Telegram.BotToken)
		logrus.Info("Telegram bot initialized")
	} else {
		logrus.Warn("Telegram bot token not provided, notifications disabled")
	}

	// Availability cache
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	cacheTTL := cfg.App.AvailabilityCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	availabilityCache := redisCache.NewCacheRepository(redisClient, cacheTTL)

	var redisQueue queue.Queue
	var taskPublisher service.TaskPublisher

	if cfg.Redis.URL != "" {
		redisConfig := &queue.RedisQueueConfig{
			Addr:     cfg.Redis.URL,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}

		retryManager := queue.NewRetryManager(3, 5*time.Second)
		dlqHandler := queue.NewDefaultDLQHandler(redisClient, "queuify:dlq")

		q, err := queue.NewRedisQueue(redisConfig, retryManager, dlqHandler)
		if err != nil {
			logrus.Errorf("Failed to initialize Redis queue: %v. Continuing without queue...", err)
		} else {
			logrus.Info("Redis queue initialized")
			redisQueue = q
			// Создаем адаптер для очереди
			taskPublisher = service.NewQueueAdapter(redisQueue)
		}
	}

	// Initialize services
	queueService := service.NewQueueService(queueRepo, ticketRepo, availabilityCache)
	ticketService := service.NewTicketService(ticketRepo, queueRepo, userRepo, availabilityCache, taskPublisher, telegramBot)
	userService := service.NewUserService(userRepo, telegramBot)

	// Initialize task handler if queue is available
	if redisQueue != nil {
		var botForTasks queue.TelegramBot
		if telegramBot != nil {
			botForTasks = telegramBot
		}
		taskHandler := queue.NewTaskHandler(ticketService, queueService, userService, botForTasks)

		// Start queue consumer
		go func() {
			ctx := context.Background()
			if err := redisQueue.Subscribe(ctx, taskHandler.HandleTask); err != nil {
				logrus.Errorf("Queue subscriber error: %v", err)
			}
		}()
		logrus.Info("Queue subscriber started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize and start stale cancel scheduler
	if taskPublisher != nil {
		staleScheduler := scheduler.NewScheduler(taskPublisher, time.Hour)
		go staleScheduler.Start(ctx)
		logrus.Info("Stale cancel scheduler started")
	}

	// Initialize stale ticket worker
	staleInterval := time.Duration(cfg.Worker.StaleCancelInterval) * time.Minute
	if staleInterval <= 0 {
		staleInterval = 30 * time.Minute
	}
	staleWorker := worker.NewStaleTicketWorker(ticketService, staleInterval)
	go staleWorker.Start(ctx)
	logrus.Info("Stale ticket worker started")

	// Initialize handlers
	queueHandler := transport.NewQueueHandler(queueService)
	ticketHandler := transport.NewTicketHandler(ticketService)
	userHandler := transport.NewUserHandler(userService)

	// Setup HTTP server
	if cfg.Server.Env == "production" || cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := new(Server)
	go func() {
		if err := srv.Run(cfg, transport.InitRoutes(queueHandler, ticketHandler, userHandler)); err != nil {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	if err := srv.Shutdown(context.Background()); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}
}
