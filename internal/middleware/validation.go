package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"validation-gateway/internal/domain"
	"validation-gateway/internal/logger"
)

// Chaves do contexto gin preenchidas para os handlers downstream
const (
	ContextKeySanitizedMessage = "sanitized_message"
	ContextKeyDecision         = "gateway_decision"
	ContextKeyThreatLevel      = "threat_level"
	ContextKeyCallerKey        = "caller_key"
)

// chatRequest é o corpo esperado nas rotas que carregam mensagem
type chatRequest struct {
	Message string `json:"message"`
}

// ValidationMiddleware injeta o gateway de validação na frente das rotas
// de chat: extrai a identidade do caller, roda o pipeline e só deixa
// passar mensagens admitidas e sanitizadas.
type ValidationMiddleware struct {
	gateway domain.Gateway
	config  *domain.RateLimitConfig
	logger  domain.Logger
}

// NewValidationMiddleware cria uma nova instância do middleware
func NewValidationMiddleware(
	gateway domain.Gateway,
	config *domain.RateLimitConfig,
	log domain.Logger,
) gin.HandlerFunc {
	middleware := &ValidationMiddleware{
		gateway: gateway,
		config:  config,
		logger:  log,
	}

	return middleware.Handle
}

// Handle é o handler principal do middleware
func (m *ValidationMiddleware) Handle(c *gin.Context) {
	// O gateway em si nunca trava; o timeout cobre o round trip da camada
	// de requisição como um todo
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	requestID := m.getRequestID(c)
	sessionID := strings.TrimSpace(c.GetHeader("X-Session-ID"))
	clientIP := m.extractClientIP(c)

	ctx = logger.ContextWithRequestInfo(ctx, requestID, sessionID, clientIP, c.GetHeader("User-Agent"))

	log := m.logger
	if log != nil {
		log = log.WithContext(ctx)
	}

	// Chave de admissão: session id ou origem de rede, conforme config
	callerKey := m.callerKey(sessionID, clientIP)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if log != nil {
			log.Debug("Malformed chat request body", map[string]interface{}{
				"request_id": requestID,
			})
		}

		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request body must be JSON with a message field",
		})
		c.Abort()
		return
	}

	result := m.gateway.Process(ctx, callerKey, req.Message)

	// Headers informativos de rate limiting em toda resposta
	if result.RateLimit != nil {
		m.setRateLimitHeaders(c, result.RateLimit)
	}

	switch result.Decision {
	case domain.DecisionRateDenied:
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(result.RetryAfter))
		}

		response := gin.H{
			"error":   "rate_limit_exceeded",
			"message": result.Message,
		}
		if result.RateLimit != nil {
			response["details"] = gin.H{
				"limit":         result.RateLimit.Limit,
				"remaining":     result.RateLimit.Remaining,
				"reset_seconds": result.RateLimit.ResetSeconds,
				"retry_after":   result.RetryAfter,
			}
		}

		c.JSON(http.StatusTooManyRequests, response)
		c.Abort()
		return

	case domain.DecisionBlocked:
		// Resposta genérica: nomes de padrões internos e valores casados
		// nunca ecoam de volta para o caller
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "message_rejected",
			"message": result.Message,
		})
		c.Abort()
		return
	}

	// FORWARDED ou FLAGGED: entrega a variante sanitizada ao handler
	c.Set(ContextKeySanitizedMessage, result.SanitizedMessage)
	c.Set(ContextKeyDecision, string(result.Decision))
	c.Set(ContextKeyThreatLevel, result.ThreatLevel.String())
	c.Set(ContextKeyCallerKey, callerKey)

	c.Next()
}

// callerKey seleciona a identidade de admissão conforme a configuração
func (m *ValidationMiddleware) callerKey(sessionID, clientIP string) string {
	if m.config.TrackBySession && sessionID != "" {
		return "session:" + sessionID
	}
	return "origin:" + clientIP
}

// extractClientIP extrai o IP do cliente considerando proxies e load balancers
func (m *ValidationMiddleware) extractClientIP(c *gin.Context) string {
	// Prioridade: X-Forwarded-For > X-Real-IP > RemoteAddr

	// X-Forwarded-For pode conter múltiplos IPs separados por vírgula;
	// o primeiro é o IP original do cliente
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if clientIP != "" {
				return clientIP
			}
		}
	}

	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback para RemoteAddr (remove porta se presente)
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	return c.Request.RemoteAddr
}

// setRateLimitHeaders define headers informativos de rate limiting
func (m *ValidationMiddleware) setRateLimitHeaders(c *gin.Context, result *domain.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.Itoa(result.ResetSeconds))
}

// getRequestID obtém ou gera um Request ID para tracking
func (m *ValidationMiddleware) getRequestID(c *gin.Context) string {
	if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
		return requestID
	}

	requestID := uuid.New().String()
	c.Header("X-Request-ID", requestID)
	return requestID
}
