package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"tahseel/config"
	"tahseel/middleware"
	"tahseel/models"
	"tahseel/routes"
	"tahseel/utils"
	"tahseel/worker"
)

func main() {
	logger := log.New(os.Stdout, "TAHSEEL: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Sentry, when configured
	if dsn := config.AppConfig.SentryDSN; dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if config.AppConfig.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	// Business calendar shared by the executor, the scheduler and the
	// calendar endpoints
	var holidays []models.Holiday
	if err := config.DB.Order("date ASC").Find(&holidays).Error; err != nil {
		logger.Fatalf("Failed to load holiday table: %v", err)
	}
	oracle := utils.NewCalendarOracle(models.DefaultUAECalendar(), holidays, models.DubaiPrayerTimes)

	// Outbound transport: direct SMTP or the messaging gateway webhook
	var dispatcher utils.Dispatcher
	if config.AppConfig.Dispatcher == "webhook" {
		dispatcher = utils.NewWebhookDispatcher(
			config.AppConfig.GatewayURL,
			config.AppConfig.GatewayToken,
			logrus.StandardLogger(),
		)
	} else {
		dispatcher = utils.NewReminderMailer(utils.SMTPConfig{
			Host:      config.AppConfig.SMTPHost,
			Port:      config.AppConfig.SMTPPort,
			Username:  config.AppConfig.SMTPUsername,
			Password:  config.AppConfig.SMTPPassword,
			FromEmail: config.AppConfig.FromEmail,
			FromName:  config.AppConfig.FromName,
		}, logrus.StandardLogger())
	}

	executor := utils.NewSequenceExecutor(
		utils.NewGormStore(config.DB),
		dispatcher,
		oracle,
		logrus.StandardLogger(),
	)

	// Redis client for execution locks, shared with the rate limiter storage
	var redisClient *redis.Client
	if config.AppConfig.Redis.Enabled {
		redisClient = middleware.NewRedisStorage(config.AppConfig.Redis).Client()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scheduler drives sleeping executions; it also retries crashed ones once
	schedulerWorker := worker.NewSchedulerWorker(
		config.DB,
		executor,
		redisClient,
		log.New(os.Stdout, "SCHEDULER: ", log.LstdFlags),
		time.Duration(config.AppConfig.SchedulerIntervalSeconds)*time.Second,
		config.AppConfig.SchedulerPoolSize,
	)
	go func() {
		schedulerWorker.RetryErroredExecutions(ctx)
		schedulerWorker.Start(ctx)
	}()

	// Reply worker makes customer_responded observable
	replyWorker := worker.NewReplyWorker(
		config.DB,
		log.New(os.Stdout, "REPLY: ", log.LstdFlags),
		time.Duration(config.AppConfig.ReplyPollMinutes)*time.Minute,
	)
	go replyWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, executor, oracle)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
