// @title           URA Call Bridge API
// @version         1.0
// @description     Asterisk AMI bridge: agent event stream, hangup by call id and call record reconciliation

// @BasePath  /api
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"ura-call-bridge/internal/app/routes"
	"ura-call-bridge/internal/domain/services"
	"ura-call-bridge/internal/domain/services/container"
	"ura-call-bridge/internal/infrastructure/ami"
	"ura-call-bridge/internal/infrastructure/config"
	"ura-call-bridge/internal/infrastructure/database"
	Logger "ura-call-bridge/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		Logger.Error("服务异常退出: %v", err)
		_ = Logger.Close()
		os.Exit(1)
	}
	_ = Logger.Close()
}

func run() error {
	// 初始化日志配置
	if err := Logger.SetupLogger(); err != nil {
		return fmt.Errorf("初始化日志配置失败: %w", err)
	}

	// 加载.env文件
	if err := godotenv.Load(); err != nil {
		Logger.Warning("无法加载.env文件: %v", err)
	} else {
		Logger.Info("成功加载.env文件")
	}

	// 获取配置
	cfg := config.GetConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}
	if err := Logger.SetupLoggerWithOptions(Logger.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: true}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	// 创建数据库连接池
	pool, err := database.NewConnectionPool(cfg)
	if err != nil {
		return fmt.Errorf("无法创建数据库连接池: %w", err)
	}
	defer pool.Close()
	if err := pool.Migrate(cfg.DBMigrationMode); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	redisService := setupRedis(cfg)
	if redisService != nil {
		defer redisService.Close()
	}

	manager := ami.NewManager(ami.Options{
		Addr:           cfg.GetAMIAddr(),
		Username:       cfg.AMIUsername,
		Secret:         cfg.AMIPassword,
		DialTimeout:    cfg.AMIDialTimeout,
		ActionTimeout:  cfg.AMIActionTimeout,
		MaxRetries:     cfg.AMIMaxRetries,
		InitialBackoff: cfg.AMIInitialBackoff,
		MaxBackoff:     cfg.AMIMaxBackoff,
		MaxElapsed:     cfg.AMIMaxRetryElapsed,
	})

	serviceContainer := container.NewServiceContainer(cfg, pool.GetDB(), pool, manager, redisService)
	svc := serviceContainer.Services()

	r := routes.SetupRouter(serviceContainer, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 请求上下文随服务关闭取消，websocket 连接据此退出
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	printSystemInfo(pool)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := manager.Run(gctx); err != nil {
			return fmt.Errorf("AMI 连接失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return svc.Pipeline.Run(gctx)
	})
	if svc.MQTTEvent != nil {
		g.Go(func() error {
			return svc.MQTTEvent.Run(gctx)
		})
	}
	if cfg.ReconcileEnabled {
		g.Go(func() error {
			return svc.Reconcile.Run(gctx)
		})
	}
	g.Go(func() error {
		Logger.Info("服务器启动在: http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		Logger.Info("正在关闭服务...")
		svc.Hangup.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭 HTTP 服务失败: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	Logger.Info("服务已停止")
	return nil
}

// setupRedis Redis 不可用时只做进程内对账互斥
func setupRedis(cfg *config.Config) services.InterfaceRedisService {
	if !cfg.RedisEnabled {
		return nil
	}
	redisService := services.NewRedisService(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisService.Ping(ctx); err != nil {
		Logger.Warning("[Redis] 无法连接到 %s: %v，对账只在本实例内互斥", cfg.GetRedisAddr(), err)
		_ = redisService.Close()
		return nil
	}
	Logger.Info("[Redis] 已连接到 %s", cfg.GetRedisAddr())
	return redisService
}

// printSystemInfo 打印系统信息
func printSystemInfo(pool *database.ConnectionPool) {
	stats, err := pool.Stats()
	if err == nil {
		Logger.Info("数据库连接池状态: %+v", stats)
	}

	Logger.Info("系统CPU核心数: %d", runtime.NumCPU())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	Logger.Info("系统内存使用: Alloc=%v MiB, Sys=%v MiB", m.Alloc/1024/1024, m.Sys/1024/1024)
}
