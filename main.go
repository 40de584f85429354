package main

import (
	"clientrisk-service/api"
	"clientrisk-service/logger"
	"clientrisk-service/service"
	"clientrisk-service/service/config"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 客户风险分析服务：导入客户文件，计算信用评分与风险等级，检测异常客户
func main() {
	configManager := config.NewConfigManager()
	if err := configManager.LoadConfig(); err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	cfg := configManager.GetConfig()

	logger.InitLogger(cfg.Logging.Level)

	if err := service.Init(cfg); err != nil {
		log.Fatalf("服务初始化失败: %v", err)
	}

	mux := chi.NewRouter()

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if cfg.Server.BaseContext != "" {
		mux.Route(cfg.Server.BaseContext, func(r chi.Router) {
			subMux := r.(*chi.Mux)
			api.InitRoute(subMux)
			r.Handle("/metrics", promhttp.Handler())
		})
	} else {
		api.InitRoute(mux)
		mux.Handle("/metrics", promhttp.Handler())
	}

	s := daprd.NewServiceWithMux(":"+strconv.Itoa(cfg.Server.Port), mux)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		slog.Info("收到退出信号，正在停止服务")
		if err := s.Stop(); err != nil {
			slog.Error("停止HTTP服务失败", "error", err)
		}
	}()

	slog.Info("服务启动", "port", cfg.Server.Port, "base_context", cfg.Server.BaseContext)
	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("error: %v", err)
	}
	service.Shutdown()
}
