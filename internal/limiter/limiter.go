package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"validation-gateway/internal/domain"
	"validation-gateway/internal/logger"
)

// SlidingWindowLimiter implementa a interface domain.RateLimiter usando
// uma janela deslizante em memória com tolerância a burst e cooldown
// punitivo para ofensores reincidentes.
//
// O ledger de admissão (históricos de timestamps e mapa de cooldowns) é
// propriedade exclusiva desta instância; todo acesso passa por uma única
// seção crítica, que é suficiente porque as operações são baratas.
type SlidingWindowLimiter struct {
	config *domain.RateLimitConfig
	logger domain.Logger

	mutex     sync.Mutex
	history   map[string][]time.Time // chave -> timestamps dentro da janela
	cooldowns map[string]time.Time   // chave -> bloqueado até

	// now é injetável para testes com relógio simulado
	now func() time.Time
}

// NewSlidingWindowLimiter cria uma nova instância do limiter.
// Configuração inválida é a única classe de erro fatal: um limiter com
// janela zero bloquearia todo o tráfego ou admitiria tráfego ilimitado.
func NewSlidingWindowLimiter(config *domain.RateLimitConfig, log domain.Logger) (*SlidingWindowLimiter, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}

	l := &SlidingWindowLimiter{
		config:    config,
		logger:    log,
		history:   make(map[string][]time.Time),
		cooldowns: make(map[string]time.Time),
		now:       time.Now,
	}

	if log != nil {
		log.Info("Sliding window limiter initialized", map[string]interface{}{
			"max_requests":     config.MaxRequests,
			"window_seconds":   config.WindowSeconds,
			"burst_allowance":  config.BurstAllowance,
			"cooldown_seconds": config.CooldownSeconds,
			"track_by_session": config.TrackBySession,
		})
	}

	return l, nil
}

// validateConfig valida os campos numéricos da configuração
func validateConfig(config *domain.RateLimitConfig) error {
	if config == nil {
		return fmt.Errorf("config must not be nil")
	}
	if config.MaxRequests <= 0 {
		return fmt.Errorf("max_requests must be greater than 0")
	}
	if config.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be greater than 0")
	}
	if config.BurstAllowance < 0 {
		return fmt.Errorf("burst_allowance must not be negative")
	}
	if config.CooldownSeconds <= 0 {
		return fmt.Errorf("cooldown_seconds must be greater than 0")
	}
	return nil
}

// Check decide se uma nova requisição é admitida para a chave.
// A verificação e o registro acontecem na mesma seção crítica: sob
// chamadas concorrentes para a mesma chave, o número de admissões dentro
// de qualquer janela nunca excede max_requests + burst_allowance.
func (l *SlidingWindowLimiter) Check(ctx context.Context, key string) *domain.RateLimitResult {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	window := time.Duration(l.config.WindowSeconds) * time.Second

	// Cooldown ativo domina a janela: nega imediatamente
	if until, exists := l.cooldowns[key]; exists {
		if now.Before(until) {
			remaining := secondsUntil(now, until)

			if l.logger != nil {
				l.logger.Info("Request denied during cooldown", map[string]interface{}{
					"caller_key":  logger.MaskKey(key),
					"retry_after": remaining,
				})
			}

			return &domain.RateLimitResult{
				Allowed:      false,
				CurrentCount: l.countInWindow(key, now),
				Limit:        l.config.MaxRequests,
				Remaining:    0,
				ResetSeconds: l.resetSeconds(key, now),
				RetryAfter:   remaining,
				Reason:       "cooldown active",
			}
		}
		// Cooldown expirou, remove
		delete(l.cooldowns, key)
	}

	// Remove do histórico tudo que saiu da janela
	l.pruneLocked(key, now.Add(-window))

	// Burst absorve picos legítimos curtos sem acionar punição
	capacity := l.config.MaxRequests + l.config.BurstAllowance
	if len(l.history[key]) < capacity {
		l.history[key] = append(l.history[key], now)

		currentCount := len(l.history[key])
		// Remaining é anunciado apenas contra o limite base; a capacidade
		// de burst não é divulgada como folga
		remaining := l.config.MaxRequests - currentCount
		if remaining < 0 {
			remaining = 0
		}

		if l.logger != nil {
			l.logger.Debug("Request admitted", map[string]interface{}{
				"caller_key":    logger.MaskKey(key),
				"current_count": currentCount,
				"limit":         l.config.MaxRequests,
				"remaining":     remaining,
			})
		}

		return &domain.RateLimitResult{
			Allowed:      true,
			CurrentCount: currentCount,
			Limit:        l.config.MaxRequests,
			Remaining:    remaining,
			ResetSeconds: l.resetSeconds(key, now),
		}
	}

	// Abuso sustentado vira lockout rígido e com prazo definido, mais
	// barato de raciocinar e mais difícil de sondar que um soft limit
	until := now.Add(time.Duration(l.config.CooldownSeconds) * time.Second)
	l.cooldowns[key] = until

	if l.logger != nil {
		l.logger.Warn("Rate limit exceeded, cooldown applied", map[string]interface{}{
			"caller_key":       logger.MaskKey(key),
			"current_count":    len(l.history[key]),
			"limit":            l.config.MaxRequests,
			"cooldown_seconds": l.config.CooldownSeconds,
		})
	}

	return &domain.RateLimitResult{
		Allowed:      false,
		CurrentCount: len(l.history[key]),
		Limit:        l.config.MaxRequests,
		Remaining:    0,
		ResetSeconds: l.resetSeconds(key, now),
		RetryAfter:   l.config.CooldownSeconds,
		Reason:       "rate limit exceeded",
	}
}

// Reset limpa histórico e cooldown de uma chave (override administrativo)
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	delete(l.history, key)
	delete(l.cooldowns, key)

	if l.logger != nil {
		l.logger.Info("Rate limit reset", map[string]interface{}{
			"caller_key": logger.MaskKey(key),
		})
	}
}

// GetStats retorna um snapshot do estado de uma chave sem mutar o ledger;
// polling de observabilidade nunca altera resultados de admissão.
func (l *SlidingWindowLimiter) GetStats(ctx context.Context, key string) *domain.KeyStats {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	count := l.countInWindow(key, now)

	remaining := l.config.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}

	stats := &domain.KeyStats{
		Key:          key,
		CurrentCount: count,
		Limit:        l.config.MaxRequests,
		Remaining:    remaining,
	}

	if until, exists := l.cooldowns[key]; exists && now.Before(until) {
		stats.InCooldown = true
		stats.CooldownRemaining = secondsUntil(now, until)
	}

	return stats
}

// Cleanup varre o ledger removendo chaves cujo histórico inteiro (e
// cooldown) precede o cutoff, e retorna quantas chaves foram removidas.
// Existe para limitar memória em processos de vida longa servindo muitos
// callers distintos; o agendamento é responsabilidade de quem integra.
func (l *SlidingWindowLimiter) Cleanup(ctx context.Context, maxAge time.Duration) int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.now()
	cutoff := now.Add(-maxAge)
	removed := 0

	for key, timestamps := range l.history {
		if len(timestamps) > 0 && timestamps[len(timestamps)-1].After(cutoff) {
			continue
		}
		// Uma chave ainda em cooldown não é varrida: remover o cooldown
		// equivaleria a um reset não intencional
		if until, exists := l.cooldowns[key]; exists && until.After(cutoff) {
			continue
		}
		delete(l.history, key)
		delete(l.cooldowns, key)
		removed++
	}

	// Chaves que só têm cooldown registrado (negadas sem histórico restante)
	for key, until := range l.cooldowns {
		if _, exists := l.history[key]; exists {
			continue
		}
		if until.After(cutoff) {
			continue
		}
		delete(l.cooldowns, key)
		removed++
	}

	if removed > 0 && l.logger != nil {
		l.logger.Debug("Admission ledger cleanup completed", map[string]interface{}{
			"removed_keys": removed,
			"max_age":      maxAge.String(),
		})
	}

	return removed
}

// pruneLocked descarta do histórico da chave tudo anterior ao início da
// janela. Deve ser chamado com o mutex adquirido.
func (l *SlidingWindowLimiter) pruneLocked(key string, windowStart time.Time) {
	timestamps, exists := l.history[key]
	if !exists {
		return
	}

	// Timestamps são append-only, então o slice está ordenado; basta
	// achar o primeiro ainda dentro da janela
	firstValid := len(timestamps)
	for i, ts := range timestamps {
		if ts.After(windowStart) {
			firstValid = i
			break
		}
	}

	if firstValid == 0 {
		return
	}

	l.history[key] = append([]time.Time(nil), timestamps[firstValid:]...)
}

// countInWindow conta as entradas da chave dentro da janela ativa sem
// modificar o histórico. Deve ser chamado com o mutex adquirido.
func (l *SlidingWindowLimiter) countInWindow(key string, now time.Time) int {
	windowStart := now.Add(-time.Duration(l.config.WindowSeconds) * time.Second)

	count := 0
	for _, ts := range l.history[key] {
		if ts.After(windowStart) {
			count++
		}
	}
	return count
}

// resetSeconds calcula quando a janela da chave limpa naturalmente.
// Histórico vazio retorna a janela inteira, não zero. Deve ser chamado
// com o mutex adquirido.
func (l *SlidingWindowLimiter) resetSeconds(key string, now time.Time) int {
	window := time.Duration(l.config.WindowSeconds) * time.Second
	windowStart := now.Add(-window)

	for _, ts := range l.history[key] {
		if ts.After(windowStart) {
			return secondsUntil(now, ts.Add(window))
		}
	}

	return l.config.WindowSeconds
}

// secondsUntil retorna os segundos entre now e until, arredondando para
// cima para nunca anunciar um retry antecipado.
func secondsUntil(now, until time.Time) int {
	d := until.Sub(now)
	if d <= 0 {
		return 0
	}

	seconds := int(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	return seconds
}
