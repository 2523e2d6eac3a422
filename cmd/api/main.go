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

	"validation-gateway/internal/config"
	"validation-gateway/internal/gateway"
	"validation-gateway/internal/handler"
	"validation-gateway/internal/limiter"
	"validation-gateway/internal/logger"
	"validation-gateway/internal/sanitizer"
	"validation-gateway/internal/scrubber"
)

func main() {
	// Carregar configurações
	configLoader := config.NewConfigLoader()
	cfg, err := configLoader.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	serverConfig := configLoader.GetConfig()

	// Inicializar logger
	appLogger := logger.NewLogger(serverConfig.LogLevel, serverConfig.LogFormat)
	appLogger.Info("Starting Validation Gateway API", map[string]interface{}{
		"version":   "1.0.0",
		"log_level": serverConfig.LogLevel,
		"port":      serverConfig.ServerPort,
	})

	// Inicializar os três componentes do gateway
	rateLimiter, err := limiter.NewSlidingWindowLimiter(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}

	messageSanitizer := sanitizer.NewSanitizer(appLogger)
	piiScrubber := scrubber.NewScrubber(appLogger)
	reviewSink := gateway.NewLoggingReviewSink(appLogger)

	validationGateway := gateway.NewValidationGateway(
		rateLimiter,
		messageSanitizer,
		piiScrubber,
		reviewSink,
		appLogger,
	)

	// Inicializar handlers
	handlers := handler.NewHandlers(validationGateway, rateLimiter, cfg, appLogger)

	// Configurar Gin
	if serverConfig.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	// Middleware de logging customizado
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.TimeStamp.Format("2006/01/02 - 15:04:05"),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))

	// Configurar rotas
	handlers.SetupRoutes(router)

	// Tarefa de manutenção: o gateway não agenda o próprio cleanup, então
	// o processo hospedeiro varre o ledger periodicamente para limitar a
	// memória com muitos callers distintos
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go func() {
		maxAge := 2 * time.Duration(cfg.WindowSeconds) * time.Second
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rateLimiter.Cleanup(cleanupCtx, maxAge)
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	// Configurar servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", serverConfig.ServerPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Iniciar servidor em goroutine
	go func() {
		appLogger.Info("Starting HTTP server", map[string]interface{}{
			"port": serverConfig.ServerPort,
			"addr": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Failed to start server", err, nil)
			os.Exit(1)
		}
	}()

	// Aguardar sinais de interrupção
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	appLogger.Info("🚀 Validation Gateway API is running!", map[string]interface{}{
		"port": serverConfig.ServerPort,
		"endpoints": []string{
			"GET  /health",
			"GET  /metrics",
			"POST /chat          (validated)",
			"GET  /admin/status",
			"POST /admin/reset",
			"POST /admin/cleanup",
		},
		"rate_limits": map[string]interface{}{
			"max_requests":     cfg.MaxRequests,
			"window_seconds":   cfg.WindowSeconds,
			"burst_allowance":  cfg.BurstAllowance,
			"cooldown_seconds": cfg.CooldownSeconds,
			"track_by_session": cfg.TrackBySession,
		},
	})

	// Bloquear até receber sinal
	<-quit
	appLogger.Info("Shutting down server...", nil)

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", err, nil)
		os.Exit(1)
	}

	appLogger.Info("Server stopped gracefully", nil)
}
