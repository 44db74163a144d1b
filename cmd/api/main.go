package main

import (
	"os"

	_ "backoffice/api/swagger" // swagger docs
	"backoffice/internal/config"
	"backoffice/internal/database"
	"backoffice/internal/handler"
	"backoffice/internal/logger"
	"backoffice/internal/metrics"
	"backoffice/internal/middleware"
	"backoffice/internal/repository"
	"backoffice/internal/service"
	"backoffice/internal/storage"
	"backoffice/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           HR Back-Office API
// @version         1.0
// @description     Employee change requests and HR review.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load("configs/.env")
	log := logger.New("info", "text", os.Stdout)
	if err != nil {
		log.WithError(err).Fatal("Configuration failed")
	}
	log = logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.Database.DSN(), log)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	log.Info("Connected to PostgreSQL successfully.")

	store, err := storage.NewDiskStore(cfg.Storage.Root, []byte(cfg.Storage.SigningKey), cfg.Storage.PublicURL)
	if err != nil {
		log.WithError(err).Fatal("Object storage setup failed")
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)

	clock := service.SystemClock()
	submissionService := service.NewSubmissionService(employeeRepo, changeRequestRepo, auditRepo, txManager, wsHub, clock, log)
	documentService := service.NewDocumentService(employeeRepo, changeRequestRepo, auditRepo, txManager, store, cfg.Storage.URLTTL, wsHub, clock, log)
	executor := service.NewExecutor(employeeRepo, auditRepo)
	reviewService := service.NewReviewService(employeeRepo, changeRequestRepo, auditRepo, txManager, executor, store, cfg.Storage.URLTTL, wsHub, clock, log)
	auditService := service.NewAuditService(auditRepo)
	statisticsService := service.NewStatisticsService(statisticsRepo)

	// Initialize Handlers
	changeRequestHandler := handler.NewChangeRequestHandler(submissionService, documentService)
	reviewHandler := handler.NewReviewHandler(reviewService)
	auditHandler := handler.NewAuditHandler(auditService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)
	fileHandler := handler.NewFileHandler(store)

	// Set up Gin Router
	router := gin.New()
	router.MaxMultipartMemory = service.MaxDocumentSize + 1<<20
	router.Use(logger.Middleware(log), gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Request-ID"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})
	router.GET(cfg.MetricsPath, metrics.Handler())

	secret := []byte(cfg.JWTSecret)

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, secret)
	})

	// API Routing
	fileHandler.RegisterRoutes(router.Group(""))

	api := router.Group("")
	api.Use(middleware.Authenticate(secret))
	changeRequestHandler.RegisterRoutes(api)
	reviewHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)
	statisticsHandler.RegisterRoutes(api)

	log.Infof("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}
