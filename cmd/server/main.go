// QueKou 人员缺口分析引擎服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quekou/quekou/internal/config"
	"github.com/quekou/quekou/internal/database"
	"github.com/quekou/quekou/internal/handler"
	"github.com/quekou/quekou/internal/metrics"
	"github.com/quekou/quekou/internal/middleware"
	"github.com/quekou/quekou/internal/repository"
	"github.com/quekou/quekou/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	// 打印版本信息
	fmt.Printf("QueKou 缺口分析引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 可选的数据库连接：未配置时仅支持请求内联数据
	var attendanceRepo *repository.AttendanceRepository
	var resultRepo *repository.ResultRepository
	if cfg.Database.Enabled {
		db, err := database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库初始化失败")
		}
		defer db.Close()
		attendanceRepo = repository.NewAttendanceRepository(db)
		resultRepo = repository.NewResultRepository(db)
	} else {
		logger.Info().Msg("数据库未启用，仅支持请求内联考勤数据")
	}

	// 创建处理器
	analysisHandler := handler.NewAnalysisHandler(cfg, attendanceRepo, resultRepo)

	// 创建 HTTP 服务器
	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"quekou"}`))
	})

	// 版本信息端点
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API v1 端点
	// ========================================

	// API 根路由
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "QueKou 缺口分析引擎 API v1",
			"endpoints": {
				"analysis": {
					"run": "POST /api/v1/analysis/run",
					"scenarios": "POST /api/v1/analysis/scenarios"
				}
			}
		}`))
	})

	// 缺口分析 API
	mux.HandleFunc("/api/v1/analysis/run", analysisHandler.Run)

	// 多场景比较 API
	mux.HandleFunc("/api/v1/analysis/scenarios", analysisHandler.Scenarios)

	// ========================================
	// 监控端点
	// ========================================

	// Prometheus 指标端点
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	// ========================================
	// 中间件
	// ========================================

	// 中间件执行顺序：requestID -> accessLog -> handler
	root := middleware.Chain(mux, middleware.RequestID, middleware.AccessLog)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.API.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}
