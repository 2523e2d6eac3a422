package domain

import (
	"context"
	"time"
)

// RateLimiter define a interface de controle de admissão por chave.
// Todas as operações devem ser seguras sob invocação concorrente,
// inclusive para a mesma chave.
type RateLimiter interface {
	// Check decide se uma nova requisição é admitida para a chave.
	// Negação é um resultado normal, nunca um erro.
	Check(ctx context.Context, key string) *RateLimitResult

	// Reset limpa histórico e cooldown de uma chave (override administrativo)
	Reset(ctx context.Context, key string)

	// GetStats retorna um snapshot do estado da chave sem mutar o ledger
	GetStats(ctx context.Context, key string) *KeyStats

	// Cleanup remove chaves cujo histórico inteiro precede o cutoff e
	// retorna quantas chaves foram removidas
	Cleanup(ctx context.Context, maxAge time.Duration) int
}

// Sanitizer define a interface do classificador de intenção adversarial.
// Implementações devem ser funções puras sobre a mensagem: sem estado
// mutável compartilhado, seguras para concorrência ilimitada.
type Sanitizer interface {
	// Analyze classifica a mensagem e produz a variante limpa
	Analyze(message string) *SanitizationResult

	// DetectPromptInjection é a visão booleana conveniente de Analyze
	DetectPromptInjection(message string) (bool, ThreatLevel)
}

// Scrubber define a interface do redator de dados sensíveis.
// Nunca falha para nenhuma entrada de texto.
type Scrubber interface {
	// Scrub substitui spans de PII por tokens de redação e reporta
	// apenas categorias e contagens, nunca os valores casados
	Scrub(text string) *ScrubResult
}

// Gateway define a composição de validação executada em toda mensagem
// inbound antes de qualquer confiança ser estendida a ela.
type Gateway interface {
	// Process executa rate check → sanitização → decisão de roteamento
	Process(ctx context.Context, key, message string) *GatewayResult

	// Scrubber expõe o redator para chamadores que emitem texto de log
	Scrubber() Scrubber
}

// ReviewSink recebe sinais de revisão para mensagens sinalizadas.
// A entrega (auditoria, alerta) é responsabilidade do colaborador externo.
type ReviewSink interface {
	SubmitForReview(ctx context.Context, signal *ReviewSignal)
}

// Logger define a interface para logging estruturado
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
	WithContext(ctx context.Context) Logger
}

// ConfigLoader define a interface para carregamento de configurações
type ConfigLoader interface {
	LoadConfig() (*RateLimitConfig, error)
	Reload() error
}
