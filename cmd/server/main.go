// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smiling-nurse-go/internal/config"
	"smiling-nurse-go/internal/handler"
	"smiling-nurse-go/internal/middleware"
	"smiling-nurse-go/internal/model"
	"smiling-nurse-go/internal/repository"
	"smiling-nurse-go/internal/service"
	"smiling-nurse-go/pkg/database"
	"smiling-nurse-go/pkg/kafka"
	"smiling-nurse-go/pkg/llm"
	"smiling-nurse-go/pkg/log"
	"smiling-nurse-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和 Kafka 生产者
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	kafka.InitProducer(cfg.Kafka)

	// 4. 自动迁移数据库表结构
	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.DailyRecord{},
		&model.ChatSession{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 5. 初始化 Repository
	userRepository := repository.NewUserRepository(database.DB)
	recordRepository := repository.NewRecordRepository(database.DB)
	chatSessionRepository := repository.NewChatSessionRepository(database.DB)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepository, jwtManager)
	recordService := service.NewRecordService(recordRepository)
	statsService := service.NewStatsService(database.RDB)
	analysisService := service.NewAnalysisService(userRepository, recordRepository, statsService, llmClient)
	chatService := service.NewChatService(
		chatSessionRepository,
		recordRepository,
		statsService,
		llmClient,
		cfg.Chat.EndThreshold,
		time.Duration(cfg.Chat.SessionTTLMinutes)*time.Minute,
	)

	// 7. 启动后台 Kafka 消费者，维护统计快照
	go kafka.StartConsumer(cfg.Kafka, statsService)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.PUT("/me", handler.NewUserHandler(userService).UpdateProfile)
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Record 路由组，需要认证
		records := apiV1.Group("/records")
		records.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			recordHandler := handler.NewRecordHandler(recordService, statsService)
			records.POST("", recordHandler.Submit)
			records.GET("", recordHandler.List)
			records.GET("/summary", recordHandler.Summary)
			records.GET("/export", recordHandler.Export)
			records.GET("/:id", recordHandler.Get)
		}

		// AI 分析路由组，需要认证
		ai := apiV1.Group("/ai")
		ai.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			aiHandler := handler.NewAIHandler(analysisService)
			ai.POST("/records/:id/analysis", aiHandler.AnalyzeDaily)
			ai.POST("/statistics/analysis", aiHandler.AnalyzeStatistics)
			ai.POST("/advice", aiHandler.GetAdvice)
		}

		// 建议对话路由组，需要认证
		chat := apiV1.Group("/chat")
		chat.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			chatHandler := handler.NewChatHandler(chatService)
			chat.POST("/session", chatHandler.Start)
			chat.GET("/session/:id", chatHandler.Info)
			chat.POST("/session/:id/message", chatHandler.Message)
			chat.POST("/session/:id/end", chatHandler.End)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
