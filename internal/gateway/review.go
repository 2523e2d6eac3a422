package gateway

import (
	"context"

	"validation-gateway/internal/domain"
	"validation-gateway/internal/logger"
)

// LoggingReviewSink implementa domain.ReviewSink registrando os sinais de
// revisão no logger estruturado. É o sink padrão quando nenhum colaborador
// de auditoria externo foi plugado; o texto que chega aqui já está redigido.
type LoggingReviewSink struct {
	logger domain.Logger
}

// NewLoggingReviewSink cria um sink de revisão baseado em log
func NewLoggingReviewSink(log domain.Logger) *LoggingReviewSink {
	return &LoggingReviewSink{logger: log}
}

// SubmitForReview registra o sinal de revisão
func (s *LoggingReviewSink) SubmitForReview(ctx context.Context, signal *domain.ReviewSignal) {
	if s.logger == nil || signal == nil {
		return
	}

	s.logger.Warn("Review signal emitted", map[string]interface{}{
		"event_type":        "review_signal",
		"caller_key":        logger.MaskKey(signal.CallerKey),
		"threat_level":      signal.ThreatLevel.String(),
		"patterns_detected": signal.PatternsDetected,
		"scrubbed_message":  signal.ScrubbedMessage,
		"original_length":   signal.OriginalLength,
	})
}
