package app

import (
	"context"
	"log"
	"time"

	"commentengine/internal/config"
	"commentengine/internal/middleware"
	"commentengine/internal/model"
	"commentengine/internal/moderation"
	"commentengine/internal/repository"
	"commentengine/internal/service"
	"commentengine/internal/util"
	"commentengine/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func NewRouter(cfg *config.Config) *gin.Engine {
	// Set Gin mode
	if cfg.ServerPort == "5000" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// Custom binding validations
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("reportreason", func(fl validator.FieldLevel) bool {
			return model.ValidReportReason(fl.Field().String())
		})
	}

	// CORS middleware
	r.Use(corsMiddleware(cfg.ClientURL))

	// Rate limiting middleware (if enabled)
	if cfg.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		r.Use(rateLimiter.Middleware())
		log.Printf("Rate limiting enabled: %d req/sec, burst: %d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}

	// Auto migrate
	if err := repository.AutoMigrate(db); err != nil {
		panic("Failed to migrate database: " + err.Error())
	}

	// Initialize Redis with retry logic
	redisClient := initRedisWithRetry(cfg)

	// Initialize RabbitMQ with retry logic
	rabbitMQ := initRabbitMQWithRetry(cfg)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db, redisClient)
	reportRepo := repository.NewReportRepository(db, redisClient)
	resultRepo := repository.NewModerationResultRepository(db)
	notificationRepo := repository.NewNotificationRepository(db, redisClient)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("WebSocket hub started")

	// Moderation pipeline: lexicon plus external classifier
	lexicon := initLexicon(cfg)
	var classifier moderation.Classifier
	if cfg.Moderation.ClassifierURL != "" {
		classifier = moderation.NewHTTPClassifier(
			cfg.Moderation.ClassifierURL,
			cfg.Moderation.ClassifierAPIKey,
			cfg.Moderation.ClassifierTimeout,
		)
		log.Println("External classifier configured")
	} else {
		log.Println("No classifier configured; all comments will queue for review unless hard-blocked or auto-rejected by lexicon")
	}

	// Initialize services. A nil Redis client must stay a nil Cache interface.
	var cache service.Cache
	if redisClient != nil {
		cache = redisClient
	}
	moderationService := service.NewModerationService(lexicon, classifier, resultRepo, userRepo, cfg.Moderation)
	notificationService := service.NewNotificationService(notificationRepo, cache, rabbitMQ, wsHub, cfg)
	commentService := service.NewCommentService(commentRepo, postRepo, userRepo, moderationService, notificationService, wsHub, cache, cfg)
	reportService := service.NewReportService(reportRepo, commentRepo, notificationService, wsHub, cfg)
	queueService := service.NewQueueService(commentRepo, reportRepo, resultRepo, moderationService, notificationService, wsHub, cache)

	// Notification worker pushes queued notifications to the hub
	if rabbitMQ != nil {
		worker := service.NewNotificationWorker(rabbitMQ, wsHub)
		if err := worker.Start(context.Background()); err != nil {
			log.Printf("Warning: Failed to start notification worker: %v", err)
		} else {
			log.Println("Notification worker started successfully")
		}
	} else {
		log.Println("Notification worker not started - RabbitMQ connection failed. Notifications fall back to direct push.")
	}

	// Retention sweep for expired notifications
	go notificationService.RunRetentionSweep(context.Background(), time.Hour)

	// Gateway backing websocket client calls
	gateway := service.NewRealtimeGateway(commentService, queueService, notificationService, userRepo, postRepo)

	// Initialize handlers
	commentHandler := NewCommentHandler(commentService)
	reportHandler := NewReportHandler(reportService)
	moderationHandler := NewModerationHandler(queueService)
	notificationHandler := NewNotificationHandler(notificationService)

	endpointLimit := middleware.EndpointRateLimit(redisClient, cfg.RateLimitPerEndpoint, cfg.RateLimitWindow)

	// API routes
	api := r.Group("/api/v1")
	{
		// Post comment routes
		posts := api.Group("/posts")
		{
			// Public routes
			posts.GET("/:id/comments", commentHandler.GetCommentsByPost)
			posts.GET("/:id/comments/stats", commentHandler.GetCommentStats)
		}

		// Comment routes
		comments := api.Group("/comments")
		{
			// Public routes
			comments.GET("/:id", commentHandler.GetComment)
			comments.GET("/:id/thread", commentHandler.GetThread)

			// Protected routes
			comments.Use(middleware.Auth(cfg.JWTSecret))
			{
				comments.POST("", endpointLimit, commentHandler.CreateComment)
				comments.DELETE("/:id", commentHandler.DeleteComment)
			}
		}

		// Report routes
		reports := api.Group("/reports")
		reports.Use(middleware.Auth(cfg.JWTSecret))
		{
			reports.POST("", endpointLimit, reportHandler.SubmitReport)
		}

		// Moderation routes (moderator or admin only)
		mod := api.Group("/moderation")
		mod.Use(middleware.Auth(cfg.JWTSecret))
		mod.Use(middleware.RequireModerator())
		{
			mod.GET("/queue", moderationHandler.ListQueue)
			mod.POST("/actions", moderationHandler.BulkAction)
			mod.GET("/stats", moderationHandler.GetModerationStats)
			mod.GET("/comments/:id/history", moderationHandler.GetModerationHistory)
			mod.GET("/comments/:id/reports", reportHandler.ListReportsByComment)
			mod.GET("/reports", reportHandler.ListOpenReports)
			mod.POST("/reports/:id/dismiss", reportHandler.DismissReport)
			mod.POST("/reports/:id/confirm", reportHandler.ConfirmReport)
		}

		// Notification routes
		notifications := api.Group("/notifications")
		notifications.Use(middleware.Auth(cfg.JWTSecret))
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.GET("/unread/count", notificationHandler.GetUnreadCount)
			notifications.PUT("/:id/read", notificationHandler.MarkAsRead)
			notifications.PUT("/read-all", notificationHandler.MarkAllAsRead)
		}
	}

	// WebSocket route
	r.GET("/ws", func(c *gin.Context) {
		websocket.ServeWS(wsHub, gateway, cfg.JWTSecret)(c.Writer, c.Request)
	})

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

func initDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = "host=" + cfg.PostgresHost +
			" port=" + cfg.PostgresPort +
			" user=" + cfg.PostgresUser +
			" password=" + cfg.PostgresPassword +
			" dbname=" + cfg.PostgresDB +
			" sslmode=" + cfg.PostgresSSLMode
	}

	// TranslateError maps the unique-index violation on duplicate reports to
	// gorm.ErrDuplicatedKey.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func initLexicon(cfg *config.Config) *moderation.Lexicon {
	if cfg.Moderation.LexiconFile == "" {
		log.Println("No lexicon file configured; sensitive-word scanning disabled")
		return moderation.NewLexicon(nil)
	}
	lexicon, err := moderation.LoadLexiconFile(cfg.Moderation.LexiconFile)
	if err != nil {
		log.Printf("Warning: Failed to load lexicon file: %v. Sensitive-word scanning disabled.", err)
		return moderation.NewLexicon(nil)
	}
	return lexicon
}

// initRabbitMQWithRetry attempts to connect to RabbitMQ with exponential backoff retry
func initRabbitMQWithRetry(cfg *config.Config) *util.RabbitMQClient {
	maxRetries := 10
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		rabbitMQ, err := util.NewRabbitMQClient(cfg)
		if err == nil {
			log.Printf("RabbitMQ connected successfully on attempt %d", attempt)
			return rabbitMQ
		}

		if attempt < maxRetries {
			// Calculate delay with exponential backoff
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}

			log.Printf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to RabbitMQ after %d attempts: %v. Notifications will push directly via WebSocket.", maxRetries, err)
		}
	}

	return nil
}

// initRedisWithRetry attempts to connect to Redis with exponential backoff retry
func initRedisWithRetry(cfg *config.Config) *util.RedisClient {
	maxRetries := 10
	initialDelay := 2 * time.Second
	maxDelay := 30 * time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		redisClient, err := util.NewRedisClient(cfg)
		if err == nil {
			log.Printf("Redis connected successfully on attempt %d", attempt)
			return redisClient
		}

		if attempt < maxRetries {
			// Calculate delay with exponential backoff
			delay := initialDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxDelay {
				delay = maxDelay
			}

			log.Printf("Failed to connect to Redis (attempt %d/%d): %v. Retrying in %v...", attempt, maxRetries, err, delay)
			time.Sleep(delay)
		} else {
			log.Printf("Warning: Failed to connect to Redis after %d attempts: %v. Caching will be disabled.", maxRetries, err)
			log.Println("Note: Application will continue without Redis caching")
		}
	}

	return nil
}

func corsMiddleware(clientURL string) gin.HandlerFunc {
	// Allowed origins (whitelist)
	allowedOrigins := []string{
		clientURL, // Default from config
		"http://localhost:3000",
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is in whitelist
		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				break
			}
		}

		// If origin is allowed, set it; otherwise, use default
		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", clientURL)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
