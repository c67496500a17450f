package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ielts_exam_backend/internal/config"
	"ielts_exam_backend/internal/controller"
	"ielts_exam_backend/internal/middleware"
	"ielts_exam_backend/internal/repository"
	"ielts_exam_backend/internal/service"
	"ielts_exam_backend/pkg/configwatcher"
	"ielts_exam_backend/pkg/database"
	"ielts_exam_backend/pkg/logger"
	"ielts_exam_backend/pkg/monitoring"
	"ielts_exam_backend/pkg/security"
	"ielts_exam_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	stopWatcher     context.CancelFunc
	configCallbacks []func(*config.Config)
}

type repositories struct {
	examSession *repository.ExamSessionRepository
}

type services struct {
	rotator     *service.CredentialRotator
	gateway     *service.GenerationGateway
	content     *service.ContentGenerator
	scoring     *service.ScoringService
	analysis    *service.AnalysisService
	archiver    *service.ReportArchiver
	statusCache *service.StatusCache
	examSession *service.ExamSessionService
}

type controllers struct {
	examSession *controller.ExamSessionController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		examSession: repository.NewExamSessionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	provider, err := service.NewProvider(cfg.AI)
	if err != nil {
		return nil, err
	}
	s.rotator, err = service.NewCredentialRotator(cfg.AI.APIKey, cfg.AI.APIKeyBackup, cfg.AI.Cooldown())
	if err != nil {
		return nil, err
	}

	s.gateway = service.NewGenerationGateway(s.rotator, provider, cfg.AI)
	s.content = service.NewContentGenerator(s.gateway)
	s.scoring = service.NewScoringService(s.gateway)
	s.analysis = service.NewAnalysisService(s.gateway, cfg.Exam.AnalysisLanguage)
	s.archiver = service.NewReportArchiver(service.NewStorageProvider(&cfg.Storage))
	s.statusCache = service.NewStatusCache(rdb, time.Duration(cfg.Redis.StatusTTL)*time.Second)

	s.examSession = service.NewExamSessionService(
		repos.examSession,
		s.content,
		s.scoring,
		s.analysis,
		s.archiver,
		s.statusCache,
		cfg.Exam,
	)
	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		examSession: controller.NewExamSessionController(s.examSession),
		health:      controller.NewHealthController(db, rdb, s.rotator),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	if cfg.RateLimit.MaxRequests > 0 && cfg.RateLimit.WindowMinutes > 0 {
		router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))
	}

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// watchConfig 配置文件变更时通知所有回调
func (a *App) watchConfig() {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatcher = cancel

	file := filepath.Join(a.Config.ConfigDir, "config.yaml")
	if _, err := os.Stat(file); err != nil {
		logger.Log.Info("未找到配置文件，跳过热加载", zap.String("file", file))
		return
	}

	go func() {
		err := configwatcher.WatchConfig(ctx, file, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Error("配置热加载已停止", zap.Error(err))
		}
	}()
}

// reloadCredentials 密钥变化时重建轮换器状态
func (a *App) reloadCredentials(newCfg *config.Config) {
	if a.Config.AI.SameCredentials(newCfg.AI) {
		return
	}
	if err := a.services.rotator.Reconfigure(newCfg.AI.APIKey, newCfg.AI.APIKeyBackup); err != nil {
		logger.Log.Error("AI 密钥热加载失败，保留原配置", zap.Error(err))
		return
	}
	a.Config.AI.APIKey = newCfg.AI.APIKey
	a.Config.AI.APIKeyBackup = newCfg.AI.APIKeyBackup
	logger.Log.Info("AI 密钥已热加载")
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	gormLevel := gormlogger.Warn
	if cfg.Server.Mode == gin.DebugMode {
		gormLevel = gormlogger.Info
	}
	db, err := database.InitDB(&cfg.Database, gormLevel)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	if cfg.ForceMigrate || cfg.Server.Mode == gin.DebugMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
		logger.Log.Info("Database migrated")
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("ielts-exam-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers)

	app.RegisterConfigCallback(app.reloadCredentials)
	app.watchConfig()

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	if a.stopWatcher != nil {
		a.stopWatcher()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	logger.Log.Info("Server exiting")
}
