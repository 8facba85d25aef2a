// Package main 是服务端的入口点
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/cache"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/config"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/handler"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/middleware"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/model"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/repository"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/service"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/internal/websocket"
	"github.com/arsalanarghavan/puzzlingcrm-sub000/pkg/jwt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}

	// 自动迁移数据库表
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		log.Fatalf("Failed to init redis: %v", err)
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	entryRepo := repository.NewEntryRepository(db)

	// 初始化 Service 层
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	projectService := service.NewProjectService(projectRepo)
	timerService := service.NewTimerService(sessionRepo, entryRepo, projectRepo, redisCache)
	entryService := service.NewEntryService(entryRepo, projectRepo)
	reportService := service.NewReportService(entryRepo)

	// 初始化 WebSocket Hub，并接管计时事件推送
	wsHub := websocket.NewHub(timerService)
	timerService.SetNotifier(wsHub)
	go wsHub.Run() // 在单独的 goroutine 中运行

	// 启动过期会话回收器
	// 忘记停止的会话超过阈值后会被强制关闭并生成工时记录
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaper := service.NewReaper(timerService, cfg.Timer.ReapInterval, cfg.Timer.StaleThreshold)
	go reaper.Run(reaperCtx)

	// 初始化 Handler 层
	authHandler := handler.NewAuthHandler(authService)
	projectHandler := handler.NewProjectHandler(projectService)
	timerHandler := handler.NewTimerHandler(timerService)
	entryHandler := handler.NewEntryHandler(entryService)
	reportHandler := handler.NewReportHandler(reportService)
	wsHandler := websocket.NewHandler(wsHub, jwtService)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	router := gin.New()

	// 全局中间件
	router.Use(gin.Recovery())                          // 恢复 panic
	router.Use(middleware.LoggerMiddleware())           // 请求日志
	router.Use(middleware.CORSMiddleware(cfg.Server.CORS)) // CORS

	// 注册路由
	registerRoutes(router, jwtService, redisCache, authHandler, projectHandler, timerHandler, entryHandler, reportHandler, wsHandler)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// 先停止回收器，避免关闭期间再触发扫描
	stopReaper()

	// 创建关闭上下文，设置超时
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// 关闭 Redis 连接
	if err := redisCache.Close(); err != nil {
		log.Printf("Failed to close redis: %v", err)
	}

	log.Println("Server exited")
}

// initDatabase 初始化数据库连接
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	// 构建 DSN (Data Source Name)
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.MySQL.Username,
		cfg.MySQL.Password,
		cfg.MySQL.Host,
		cfg.MySQL.Port,
		cfg.MySQL.Database,
		cfg.MySQL.Charset,
	)

	// 配置 GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	// 连接数据库
	// TranslateError 把 MySQL 的唯一键冲突翻译成 gorm.ErrDuplicatedKey，
	// 存储层靠它识别"用户已有活跃会话"和重复生成的工时记录
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MySQL.MaxLifetime) * time.Second)

	log.Println("Database connected successfully")
	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&model.User{},
		&model.Project{},
		&model.Task{},
		&model.TimeSession{},
		&model.TimeEntry{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// registerRoutes 注册所有路由
func registerRoutes(
	router *gin.Engine,
	jwtService *jwt.JWTService,
	redisCache *cache.RedisCache,
	authHandler *handler.AuthHandler,
	projectHandler *handler.ProjectHandler,
	timerHandler *handler.TimerHandler,
	entryHandler *handler.EntryHandler,
	reportHandler *handler.ReportHandler,
	wsHandler *websocket.Handler,
) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 路由组
	v1 := router.Group("/api/v1")

	// 认证相关（无需登录）
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken) // 刷新 Token
	}

	// 登出需要携带有效 Token
	v1.POST("/auth/logout", middleware.AuthMiddleware(jwtService, redisCache), authHandler.Logout)

	// 计时器相关（需要登录）
	timer := v1.Group("/timer")
	timer.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		timer.POST("/start", timerHandler.Start)
		timer.POST("/:id/pause", timerHandler.Pause)
		timer.POST("/:id/resume", timerHandler.Resume)
		timer.POST("/:id/stop", timerHandler.Stop)
		timer.GET("/active", timerHandler.GetActive)
	}

	// 工时记录相关（需要登录）
	entries := v1.Group("/entries")
	entries.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		entries.POST("", entryHandler.CreateEntry)
		entries.GET("", entryHandler.ListEntries)
		entries.GET("/:id", entryHandler.GetEntry)
		entries.PUT("/:id", entryHandler.UpdateEntry)
		entries.DELETE("/:id", entryHandler.DeleteEntry)
	}

	// 报表相关（需要登录）
	reports := v1.Group("/reports")
	reports.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		reports.GET("", reportHandler.Report)
	}

	// 项目/任务相关（需要登录）
	projects := v1.Group("/projects")
	projects.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		projects.POST("", projectHandler.CreateProject)
		projects.GET("", projectHandler.ListProjects)
		projects.POST("/:id/tasks", projectHandler.CreateTask)
		projects.GET("/:id/tasks", projectHandler.ListTasks)
	}

	// WebSocket 路由
	wsHandler.RegisterRoutes(router)
}
