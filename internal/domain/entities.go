package domain

// ThreatLevel define os níveis de severidade de uma mensagem adversarial.
// A ordem importa: o nível final de uma mensagem é o máximo entre todas as
// categorias de padrões que casaram.
type ThreatLevel int

const (
	ThreatNone ThreatLevel = iota
	ThreatLow
	ThreatMedium
	ThreatHigh
	ThreatCritical
)

// String retorna o rótulo usado em logs e respostas da API.
func (t ThreatLevel) String() string {
	switch t {
	case ThreatNone:
		return "none"
	case ThreatLow:
		return "low"
	case ThreatMedium:
		return "medium"
	case ThreatHigh:
		return "high"
	case ThreatCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Max retorna o mais severo entre os dois níveis.
func (t ThreatLevel) Max(other ThreatLevel) ThreatLevel {
	if other > t {
		return other
	}
	return t
}

// RateLimitConfig define as regras de admissão do rate limiter.
// Carregada uma vez no startup e tratada como somente leitura depois disso.
type RateLimitConfig struct {
	MaxRequests     int  `json:"max_requests"`     // requisições permitidas por janela
	WindowSeconds   int  `json:"window_seconds"`   // janela deslizante em segundos
	BurstAllowance  int  `json:"burst_allowance"`  // requisições extras toleradas acima do limite
	CooldownSeconds int  `json:"cooldown_seconds"` // duração do bloqueio após violação
	TrackBySession  bool `json:"track_by_session"` // session id vs. origem de rede como chave
}

// RateLimitResult representa o resultado de uma verificação de admissão.
type RateLimitResult struct {
	Allowed      bool   `json:"allowed"`
	CurrentCount int    `json:"current_count"`
	Limit        int    `json:"limit"`
	Remaining    int    `json:"remaining"`
	ResetSeconds int    `json:"reset_seconds"`
	RetryAfter   int    `json:"retry_after,omitempty"` // segundos, presente apenas quando negado
	Reason       string `json:"reason,omitempty"`      // presente apenas quando negado
}

// KeyStats representa um snapshot somente leitura do estado de uma chave.
type KeyStats struct {
	Key               string `json:"key"`
	CurrentCount      int    `json:"current_count"`
	Limit             int    `json:"limit"`
	Remaining         int    `json:"remaining"`
	InCooldown        bool   `json:"in_cooldown"`
	CooldownRemaining int    `json:"cooldown_remaining,omitempty"` // segundos
}

// SanitizationResult representa o resultado da análise de uma mensagem.
// PatternsDetected carrega apenas rótulos de categoria, nunca o texto casado.
type SanitizationResult struct {
	OriginalMessage     string      `json:"original_message"`
	SanitizedMessage    string      `json:"sanitized_message"`
	ThreatLevel         ThreatLevel `json:"threat_level"`
	PatternsDetected    []string    `json:"patterns_detected"`
	ShouldBlock         bool        `json:"should_block"`
	ShouldFlagForReview bool        `json:"should_flag_for_review"`
	Explanation         string      `json:"explanation,omitempty"`
}

// ScrubResult reporta o que foi redigido sem re-expor os valores:
// apenas o tamanho da entrada, rótulos de categoria e a contagem.
type ScrubResult struct {
	OriginalLength int      `json:"original_length"`
	ScrubbedText   string   `json:"scrubbed_text"`
	PIIFound       []string `json:"pii_found"`
	ScrubCount     int      `json:"scrub_count"`
}

// Decision é a decisão de roteamento do gateway para uma mensagem.
type Decision string

const (
	DecisionForwarded  Decision = "forwarded"
	DecisionFlagged    Decision = "flagged"
	DecisionBlocked    Decision = "blocked"
	DecisionRateDenied Decision = "rate_denied"
)

// GatewayResult representa o resultado completo do pipeline de validação.
type GatewayResult struct {
	Decision         Decision         `json:"decision"`
	SanitizedMessage string           `json:"sanitized_message,omitempty"`
	ThreatLevel      ThreatLevel      `json:"threat_level"`
	PatternsDetected []string         `json:"patterns_detected,omitempty"`
	RateLimit        *RateLimitResult `json:"rate_limit,omitempty"`
	RetryAfter       int              `json:"retry_after,omitempty"` // segundos, apenas RATE_DENIED
	Message          string           `json:"message,omitempty"`     // texto genérico para o usuário em negações
}

// ReviewSignal é emitido para mensagens sinalizadas para revisão humana.
// O texto da mensagem já passou pelo PII scrubber.
type ReviewSignal struct {
	CallerKey        string      `json:"caller_key"`
	ThreatLevel      ThreatLevel `json:"threat_level"`
	PatternsDetected []string    `json:"patterns_detected"`
	ScrubbedMessage  string      `json:"scrubbed_message"`
	OriginalLength   int         `json:"original_length"`
}
