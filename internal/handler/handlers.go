package handler

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"validation-gateway/internal/domain"
	"validation-gateway/internal/logger"
	"validation-gateway/internal/middleware"
)

// Handlers contém os handlers da API
type Handlers struct {
	gateway   domain.Gateway
	limiter   domain.RateLimiter
	config    *domain.RateLimitConfig
	logger    domain.Logger
	startTime time.Time
}

// NewHandlers cria uma nova instância dos handlers
func NewHandlers(
	gateway domain.Gateway,
	limiter domain.RateLimiter,
	config *domain.RateLimitConfig,
	log domain.Logger,
) *Handlers {
	return &Handlers{
		gateway:   gateway,
		limiter:   limiter,
		config:    config,
		logger:    log,
		startTime: time.Now(),
	}
}

// SetupRoutes configura as rotas da API
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Middleware de validação para rotas que carregam mensagem
	validationMiddleware := middleware.NewValidationMiddleware(h.gateway, h.config, h.logger)

	// Rotas públicas (sem validação)
	router.GET("/health", h.HealthHandler)
	router.GET("/metrics", h.MetricsHandler)

	// Rotas de chat protegidas pelo gateway
	protected := router.Group("/")
	protected.Use(validationMiddleware)
	{
		protected.POST("/chat", h.ChatHandler)
	}

	// Rotas administrativas (sem validação)
	admin := router.Group("/admin")
	{
		admin.GET("/status", h.AdminStatusHandler)
		admin.POST("/reset", h.AdminResetHandler)
		admin.POST("/cleanup", h.AdminCleanupHandler)
	}
}

// HealthHandler implementa health check básico
func (h *Handlers) HealthHandler(c *gin.Context) {
	response := gin.H{
		"status":    "healthy",
		"service":   "Validation Gateway API",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	c.JSON(http.StatusOK, response)
}

// ChatHandler representa o pipeline downstream do agente: só recebe
// mensagens já admitidas e sanitizadas pelo middleware. Aqui apenas ecoa
// uma resposta stub no lugar da invocação real do agente.
func (h *Handlers) ChatHandler(c *gin.Context) {
	ctx := c.Request.Context()

	sanitized := c.GetString(middleware.ContextKeySanitizedMessage)
	decision := c.GetString(middleware.ContextKeyDecision)
	callerKey := c.GetString(middleware.ContextKeyCallerKey)

	if h.logger != nil {
		log := h.logger.WithContext(ctx)

		// Texto de mensagem só toca o log depois de passar pelo scrubber
		scrubbed := h.gateway.Scrubber().Scrub(sanitized)
		log.Debug("Chat message delivered downstream", map[string]interface{}{
			"caller_key":       logger.MaskKey(callerKey),
			"decision":         decision,
			"scrubbed_message": scrubbed.ScrubbedText,
			"pii_found":        scrubbed.PIIFound,
		})
	}

	response := gin.H{
		"reply":     "Thanks for your message! A barista bot will be right with you.",
		"decision":  decision,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if decision == string(domain.DecisionFlagged) {
		response["review"] = "your message was queued for review"
	}

	c.JSON(http.StatusOK, response)
}

// MetricsHandler implementa endpoint de métricas do sistema
func (h *Handlers) MetricsHandler(c *gin.Context) {
	uptime := time.Since(h.startTime)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := gin.H{
		"service":        "Validation Gateway API",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"system": gin.H{
			"go_version":   runtime.Version(),
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": formatBytes(m.Alloc),
			"memory_total": formatBytes(m.TotalAlloc),
			"memory_sys":   formatBytes(m.Sys),
			"gc_runs":      m.NumGC,
		},
	}

	c.JSON(http.StatusOK, response)
}

// AdminStatusHandler retorna o snapshot de admissão de uma chave
func (h *Handlers) AdminStatusHandler(c *gin.Context) {
	ctx := c.Request.Context()

	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "key parameter is required",
		})
		return
	}

	if h.logger != nil {
		log := h.logger.WithContext(ctx)
		log.Debug("Admin status endpoint accessed", map[string]interface{}{
			"key": logger.MaskKey(key),
		})
	}

	stats := h.limiter.GetStats(ctx, key)

	response := gin.H{
		"key":         stats.Key,
		"limit":       stats.Limit,
		"current":     stats.CurrentCount,
		"remaining":   stats.Remaining,
		"in_cooldown": stats.InCooldown,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	if stats.InCooldown {
		response["cooldown_remaining"] = stats.CooldownRemaining
	}

	c.JSON(http.StatusOK, response)
}

// AdminResetRequest representa o corpo da requisição para reset
type AdminResetRequest struct {
	Key string `json:"key" binding:"required"`
}

// AdminResetHandler limpa histórico e cooldown de uma chave
func (h *Handlers) AdminResetHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req AdminResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	req.Key = strings.TrimSpace(req.Key)

	if h.logger != nil {
		log := h.logger.WithContext(ctx)
		log.Info("Admin reset endpoint accessed", map[string]interface{}{
			"key": logger.MaskKey(req.Key),
		})
	}

	h.limiter.Reset(ctx, req.Key)

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Rate limit reset successfully",
		"key":       logger.MaskKey(req.Key),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// AdminCleanupRequest representa o corpo da requisição para cleanup
type AdminCleanupRequest struct {
	MaxAgeSeconds int `json:"max_age_seconds" binding:"required"`
}

// AdminCleanupHandler varre o ledger removendo chaves inativas
func (h *Handlers) AdminCleanupHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req AdminCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	if req.MaxAgeSeconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": "max_age_seconds must be greater than 0",
		})
		return
	}

	removed := h.limiter.Cleanup(ctx, time.Duration(req.MaxAgeSeconds)*time.Second)

	if h.logger != nil {
		log := h.logger.WithContext(ctx)
		log.Info("Admin cleanup executed", map[string]interface{}{
			"max_age_seconds": req.MaxAgeSeconds,
			"removed_keys":    removed,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"removed_keys": removed,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

// formatBytes formata bytes em formato legível
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return strconv.FormatUint(bytes, 10) + " B"
	}

	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return strconv.FormatFloat(float64(bytes)/float64(div), 'f', 1, 64) + " " + "KMGTPE"[exp:exp+1] + "B"
}
