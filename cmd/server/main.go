package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/oakline/procure/internal/config"
	"github.com/oakline/procure/internal/middleware"
	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/handler"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/oakline/procure/internal/workflow/service"
	"github.com/oakline/procure/internal/workflow/sse"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 构建信息，由 -ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting procure workflow service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 初始化Redis（通知去重快路径，连不上时降级为纯DB去重）
	rdb := initRedis(cfg.Redis)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		zapLogger.Warn("Redis unavailable, notification dedup falls back to database only", zap.Error(err))
		rdb = nil
	}

	// 迁移
	if err := migrate(db); err != nil {
		zapLogger.Fatal("Database migration failed", zap.Error(err))
	}
	zapLogger.Info("Database migration completed")

	// 装配
	hub := sse.NewHub(zapLogger)
	repos := repository.NewRepositories(db, zapLogger)
	services := service.NewServices(db, repos, repos.Directory, rdb, hub, zapLogger)
	handlers := handler.NewHandlers(services, hub)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.BranchApprovalRule{},
		&entity.PurchaseRequest{},
		&entity.PurchaseRequestItem{},
		&entity.Approval{},
		&entity.Assignment{},
		&entity.RFQ{},
		&entity.Quotation{},
		&entity.QuotationItem{},
		&entity.BudgetException{},
		&entity.SupplierSelection{},
		&entity.Notification{},
		&entity.AuditLog{},
	); err != nil {
		return err
	}

	// AutoMigrate 不支持部分唯一索引，用原始SQL兜底（幂等）
	migrations := []string{
		// 同用户同对象同类型的未读通知唯一
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_wf_notifications_unread_dedup
		   ON wf_notifications (user_id, related_id, related_type, type)
		   WHERE status = 'unread'`,
		// 行号在单内唯一
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_wf_pr_items_line
		   ON wf_pr_items (pr_id, line_no)`,
	}
	for _, sql := range migrations {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("migration failed (%s): %w", sql, err)
		}
	}
	return nil
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	{
		// SSE 实时推送（需要认证，支持 query param token）
		sseGroup := v1.Group("/sse")
		sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			sseGroup.GET("/events", h.SSE.Stream)
		}

		// 需要认证的接口
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			// 采购申请
			prs := authorized.Group("/purchase-requests")
			{
				prs.GET("", h.PR.ListPRs)
				prs.GET("/pending", h.PR.ListPending)
				prs.GET("/:id", h.PR.GetPR)
				prs.GET("/:id/detail", h.PR.GetPRDetail)
				prs.POST("", middleware.RequireRole("requestor"), h.PR.CreatePR)
				prs.PUT("/:id", middleware.RequireRole("requestor"), h.PR.UpdatePR)
				prs.DELETE("/:id", middleware.RequireRole("requestor"), h.PR.DeletePR)
				prs.POST("/:id/submit", middleware.RequireRole("requestor"), h.PR.SubmitPR)
				prs.POST("/:id/resubmit", middleware.RequireRole("requestor"), h.PR.ResubmitPR)
				prs.POST("/:id/cancel", middleware.RequireRole("requestor"), h.PR.CancelPR)

				// 一级审批（直属上级）
				prs.POST("/:id/manager-approve", middleware.RequireRole("manager"), h.Approval.ManagerApprove)
				prs.POST("/:id/manager-reject", middleware.RequireRole("manager"), h.Approval.ManagerReject)
				prs.POST("/:id/manager-return", middleware.RequireRole("manager"), h.Approval.ManagerReturn)
				prs.POST("/:id/request-info", middleware.RequireRole("manager"), h.Approval.RequestInfo)

				// 二级审批（分支经理）
				prs.POST("/:id/branch-approve", middleware.RequireRole("branch_manager"), h.Approval.BranchManagerApprove)
				prs.POST("/:id/branch-reject", middleware.RequireRole("branch_manager"), h.Approval.BranchManagerReject)
				prs.POST("/:id/branch-return", middleware.RequireRole("branch_manager"), h.Approval.BranchManagerReturn)

				// 分派
				prs.POST("/:id/assign", middleware.RequireRole("buyer_leader"), h.Assignment.Assign)
				prs.GET("/:id/assignments", h.Assignment.ListAssignments)

				// 询价与选标
				prs.POST("/:id/rfq", middleware.RequireRole("buyer"), h.RFQ.OpenRFQ)
				prs.GET("/:id/rfq", h.RFQ.GetRFQ)
				prs.POST("/:id/select-supplier", middleware.RequireRole("buyer_leader"), h.Budget.SelectSupplier)

				// 付款
				prs.POST("/:id/payment-done", middleware.RequireRole("finance"), h.PR.MarkPaymentDone)
			}

			// 报价
			rfqs := authorized.Group("/rfqs")
			{
				rfqs.POST("/:id/quotations", middleware.RequireRole("buyer"), h.RFQ.AddQuotation)
			}
			quotations := authorized.Group("/quotations")
			{
				quotations.PUT("/:id/status", middleware.RequireRole("buyer"), h.RFQ.SetQuotationStatus)
			}

			// 超预算裁决
			exceptions := authorized.Group("/budget-exceptions")
			{
				exceptions.GET("/:id", h.Budget.GetException)
				exceptions.POST("/:id/approve", middleware.RequireRole("branch_manager"), h.Budget.ApproveException)
				exceptions.POST("/:id/reject", middleware.RequireRole("branch_manager"), h.Budget.RejectException)
				exceptions.POST("/:id/request-negotiation", middleware.RequireRole("branch_manager"), h.Budget.RequestNegotiation)
			}

			// 通知
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.POST("/:id/read", h.Notification.MarkRead)
			}
		}
	}
}
