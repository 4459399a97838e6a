package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hgj313/hr2-sub000/config"
	"github.com/hgj313/hr2-sub000/internal/api/handler"
	"github.com/hgj313/hr2-sub000/internal/api/router"
	"github.com/hgj313/hr2-sub000/internal/personnel"
	"github.com/hgj313/hr2-sub000/internal/repository"
	"github.com/hgj313/hr2-sub000/internal/scheduling"
	"github.com/hgj313/hr2-sub000/internal/service"
	"github.com/hgj313/hr2-sub000/pkg/database"
	"github.com/hgj313/hr2-sub000/pkg/lock"
	applogger "github.com/hgj313/hr2-sub000/pkg/logger"
	"github.com/hgj313/hr2-sub000/pkg/metrics"
	"github.com/hgj313/hr2-sub000/pkg/mqtt"
	"github.com/hgj313/hr2-sub000/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径，留空时在 ./config 与当前目录查找 config.yaml")
	flag.Parse()

	// 1. 加载配置（只用于初始化日志，热更新在日志就绪后开启）
	bootCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&bootCfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 2.1 监听配置文件，排班参数变更后热更新
	var current atomic.Pointer[service.Service]
	cfg, err := config.Watch(*configPath, logger, func(next *config.Config) {
		if svc := current.Load(); svc != nil {
			svc.UpdateOptions(scheduling.OptionsFromConfig(&next.Scheduling))
		}
	})
	if err != nil {
		logger.Fatal("加载配置失败", zap.Error(err))
	}

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("personnel_mode", cfg.Personnel.Mode),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时使用进程内锁，且关闭限流）
	var locker lock.Locker = lock.NewMutexMap()
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，排班锁仅在本进程内生效", zap.Error(err))
		rdb = nil
	} else {
		lockLogger := applogger.Component(logger, "lock")
		locker = &lock.Fallback{
			Primary:   rdb.NewLocker(cfg.Scheduling.LockTTL, cfg.Scheduling.LockWait),
			Secondary: locker,
			OnFallback: func(key string, err error) {
				metrics.LockFallbacks.Inc()
				lockLogger.Warn("Redis 锁不可用，降级为进程内锁", zap.String("key", key), zap.Error(err))
			},
		}
	}

	// 5. 事件发布（可选）
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT, applogger.Component(logger, "mqtt"))
		if err != nil {
			logger.Warn("MQTT 连接失败，领域事件将不会发布", zap.Error(err))
		} else {
			publisher = client
		}
	}

	// 6. 人员目录
	directory, err := personnel.New(&cfg.Personnel, applogger.Component(logger, "personnel"))
	if err != nil {
		logger.Fatal("初始化人员目录失败", zap.Error(err))
	}

	// 7. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(service.Deps{
		Repo:      repo,
		Directory: directory,
		Locker:    locker,
		Publisher: publisher,
		Options:   scheduling.OptionsFromConfig(&cfg.Scheduling),
		Logger:    applogger.Component(logger, "service"),
	})
	current.Store(svc)
	h := handler.NewHandler(svc)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 批量检测与 ICS 订阅拉取耗时较长
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	publisher.Close()

	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}

	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
