package gateway

import (
	"context"

	"validation-gateway/internal/domain"
	"validation-gateway/internal/logger"
)

// ValidationGateway implementa a interface domain.Gateway orquestrando os
// três mecanismos cooperantes que cercam toda mensagem inbound: verificação
// de admissão, classificação adversarial e redação de PII para qualquer
// texto que vá para log ou auditoria.
//
// Máquina de estados por mensagem:
// RECEIVED → RATE_CHECKED → {ADMITTED | RATE_DENIED} →
// (se ADMITTED) SANITIZED → {FORWARDED | FLAGGED | BLOCKED}
type ValidationGateway struct {
	limiter    domain.RateLimiter
	sanitizer  domain.Sanitizer
	scrubber   domain.Scrubber
	reviewSink domain.ReviewSink
	logger     domain.Logger
}

// NewValidationGateway cria uma nova instância do gateway
func NewValidationGateway(
	limiter domain.RateLimiter,
	sanitizer domain.Sanitizer,
	scrubber domain.Scrubber,
	reviewSink domain.ReviewSink,
	log domain.Logger,
) domain.Gateway {
	return &ValidationGateway{
		limiter:    limiter,
		sanitizer:  sanitizer,
		scrubber:   scrubber,
		reviewSink: reviewSink,
		logger:     log,
	}
}

// Process executa o pipeline completo de validação para uma mensagem.
// Negação e bloqueio são resultados normais; nenhum defeito interno dos
// detectores escapa para o caminho da requisição.
func (g *ValidationGateway) Process(ctx context.Context, key, message string) *domain.GatewayResult {
	log := g.logger
	if log != nil {
		log = log.WithContext(ctx)
	}

	// RATE_CHECKED: negação é terminal, sanitização não roda
	rateResult := g.limiter.Check(ctx, key)
	if !rateResult.Allowed {
		if log != nil {
			log.Info("Message rate denied", map[string]interface{}{
				"caller_key":  logger.MaskKey(key),
				"reason":      rateResult.Reason,
				"retry_after": rateResult.RetryAfter,
			})
		}

		return &domain.GatewayResult{
			Decision:   domain.DecisionRateDenied,
			RateLimit:  rateResult,
			RetryAfter: rateResult.RetryAfter,
			Message:    "too many requests, please retry later",
		}
	}

	// ADMITTED: classifica e limpa a mensagem
	analysis := g.sanitizer.Analyze(message)

	result := &domain.GatewayResult{
		ThreatLevel:      analysis.ThreatLevel,
		PatternsDetected: analysis.PatternsDetected,
		RateLimit:        rateResult,
	}

	switch {
	case analysis.ShouldBlock:
		// BLOCKED é terminal: nada alcança o pipeline downstream. A
		// resposta carrega apenas um texto genérico, nunca nomes de
		// padrões internos ou valores casados.
		result.Decision = domain.DecisionBlocked
		result.Message = "request could not be processed"

		g.audit(ctx, log, "Message blocked by sanitizer", key, analysis)

	case analysis.ShouldFlagForReview:
		// FLAGGED segue adiante, mas emite um sinal de revisão para o
		// colaborador de auditoria; casos borderline vão para revisão
		// humana em vez de admissão ou bloqueio silenciosos
		result.Decision = domain.DecisionFlagged
		result.SanitizedMessage = analysis.SanitizedMessage

		g.emitReviewSignal(ctx, key, analysis)
		g.audit(ctx, log, "Message flagged for review", key, analysis)

	default:
		result.Decision = domain.DecisionForwarded
		result.SanitizedMessage = analysis.SanitizedMessage

		if log != nil {
			log.Debug("Message forwarded", map[string]interface{}{
				"caller_key":   logger.MaskKey(key),
				"threat_level": analysis.ThreatLevel.String(),
			})
		}
	}

	return result
}

// Scrubber expõe o redator para chamadores que emitem texto de log
func (g *ValidationGateway) Scrubber() domain.Scrubber {
	return g.scrubber
}

// audit registra um evento de auditoria; o texto da mensagem passa pelo
// scrubber antes de tocar qualquer campo de log
func (g *ValidationGateway) audit(ctx context.Context, log domain.Logger, msg, key string, analysis *domain.SanitizationResult) {
	if log == nil {
		return
	}

	scrubbed := g.scrubber.Scrub(analysis.SanitizedMessage)

	log.Warn(msg, map[string]interface{}{
		"caller_key":        logger.MaskKey(key),
		"threat_level":      analysis.ThreatLevel.String(),
		"patterns_detected": analysis.PatternsDetected,
		"scrubbed_message":  scrubbed.ScrubbedText,
		"pii_found":         scrubbed.PIIFound,
		"original_length":   scrubbed.OriginalLength,
	})
}

// emitReviewSignal entrega o sinal de revisão ao colaborador externo
func (g *ValidationGateway) emitReviewSignal(ctx context.Context, key string, analysis *domain.SanitizationResult) {
	if g.reviewSink == nil {
		return
	}

	scrubbed := g.scrubber.Scrub(analysis.SanitizedMessage)

	g.reviewSink.SubmitForReview(ctx, &domain.ReviewSignal{
		CallerKey:        key,
		ThreatLevel:      analysis.ThreatLevel,
		PatternsDetected: analysis.PatternsDetected,
		ScrubbedMessage:  scrubbed.ScrubbedText,
		OriginalLength:   scrubbed.OriginalLength,
	})
}
