package sanitizer

import (
	"fmt"
	"regexp"
	"strings"

	"validation-gateway/internal/domain"
)

// Rótulos das categorias de ataque conhecidas
const (
	CategoryInstructionOverride    = "instruction_override"
	CategoryRoleImpersonation      = "role_impersonation"
	CategorySystemPromptExtraction = "system_prompt_extraction"
	CategoryControlInjection       = "control_injection"
	CategoryJailbreak              = "jailbreak"
)

const filteredMarker = "[filtered]"

// categorySpec descreve uma categoria como dado: rótulo, severidade e
// expressões. Adicionar uma nova categoria de ataque nunca toca a
// lógica de orquestração.
type categorySpec struct {
	label    string
	level    domain.ThreatLevel
	patterns []string
}

// categorySpecs define as categorias na ordem de avaliação
var categorySpecs = []categorySpec{
	{
		label: CategoryInstructionOverride,
		level: domain.ThreatHigh,
		patterns: []string{
			`(?i)(ignore|disregard|forget|skip|bypass|override)\s+(all\s+)?(previous|above|prior|earlier|system)\s+(instructions?|rules?|context|prompts?|directives?)`,
			`(?i)(new|updated)\s+instructions?\s*:`,
			`(?i)system\s*:\s*you\s+(are|will|must|should)`,
			`(?i)your\s+(new\s+)?(instructions?|rules?)\s+(are|is)\s*:`,
		},
	},
	{
		label: CategoryRoleImpersonation,
		level: domain.ThreatHigh,
		patterns: []string{
			`(?i)you\s+are\s+(now|actually|really)\s+`,
			`(?i)(pretend|imagine)\s+(to\s+be|you\s+are)\s+(a|an|the)\s+`,
			`(?i)act\s+(as|like)\s+(a|an|the)\s+`,
			`(?i)roleplay\s+as\s+`,
			`(?i)from\s+now\s+on\s+you\s+(are|will\s+be)\s+`,
		},
	},
	{
		label: CategorySystemPromptExtraction,
		level: domain.ThreatMedium,
		patterns: []string{
			`(?i)(show|reveal|display|output|print|echo)\s+(me\s+)?(all\s+)?(your|the)\s+(system\s+)?(instructions?|prompts?|rules?|configuration|settings)`,
			`(?i)what\s+(are|were)\s+(your|the)\s+(original\s+)?(instructions?|prompts?|rules?)`,
			`(?i)(repeat|recite)\s+(your\s+)?(system\s+)?(instructions?|prompts?)`,
			`(?i)your\s+system\s+prompt`,
		},
	},
	{
		label: CategoryControlInjection,
		level: domain.ThreatMedium,
		patterns: []string{
			"[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]",
			`(?i)</?(system|user|assistant|human|ai)>`,
			`(?i)\[/?(system|instructions?|context)\]`,
			`(?i)###\s*(system|instruction|context|end)`,
			`(?i)---\s*(end|stop|new)\s*(of\s+)?(instructions?|context)`,
		},
	},
	{
		label: CategoryJailbreak,
		level: domain.ThreatCritical,
		patterns: []string{
			`(?i)pretend\s+(that\s+)?you\s+(have|had)\s+no\s+(restrictions?|limitations?|rules?|filters?|guidelines?)`,
			`(?i)(you\s+have|with|without\s+any)\s+no\s+(restrictions?|limitations?|filters?)`,
			`(?i)do\s+anything\s+now`,
			`(?i)(developer|god|jailbreak|unrestricted)\s+mode`,
			`(?i)(ignore|bypass|disable)\s+(your\s+)?(safety|ethical|content)\s+(guidelines?|constraints?|filters?|polic(y|ies))`,
			`(?i)(ignore|disregard)\s+(all\s+)?(previous|prior)\s+(instructions?|rules?)\b.{0,120}\b(reveal|show|display|print|tell|leak)\b`,
		},
	},
}

// controlCharPattern remove caracteres de controle escondidos na limpeza
var controlCharPattern = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")

// patternCategory é uma categoria com as expressões já compiladas
type patternCategory struct {
	label    string
	level    domain.ThreatLevel
	patterns []*regexp.Regexp
}

// Sanitizer implementa a interface domain.Sanitizer com um conjunto
// imutável de categorias pré-compiladas. Analyze é uma função pura da
// mensagem: sem estado mutável entre chamadas, segura para concorrência
// ilimitada sem sincronização.
type Sanitizer struct {
	categories []patternCategory
}

// NewSanitizer compila o conjunto de categorias. Uma expressão malformada
// não pode virar negação de serviço para tráfego legítimo: ela é logada
// e descartada, e a categoria segue com as expressões restantes.
func NewSanitizer(log domain.Logger) *Sanitizer {
	categories := make([]patternCategory, 0, len(categorySpecs))

	for _, spec := range categorySpecs {
		compiled := make([]*regexp.Regexp, 0, len(spec.patterns))
		for _, expr := range spec.patterns {
			re, err := regexp.Compile(expr)
			if err != nil {
				if log != nil {
					log.Error("Skipping malformed sanitizer pattern", err, map[string]interface{}{
						"category": spec.label,
					})
				}
				continue
			}
			compiled = append(compiled, re)
		}
		categories = append(categories, patternCategory{
			label:    spec.label,
			level:    spec.level,
			patterns: compiled,
		})
	}

	return &Sanitizer{categories: categories}
}

// Analyze classifica a mensagem contra todas as categorias e produz a
// variante limpa. Entrada vazia ou malformada não é erro: retorna nível
// NONE e a mensagem inalterada.
func (s *Sanitizer) Analyze(message string) *domain.SanitizationResult {
	result := &domain.SanitizationResult{
		OriginalMessage:  message,
		SanitizedMessage: message,
		ThreatLevel:      domain.ThreatNone,
		PatternsDetected: []string{},
	}

	if message == "" {
		return result
	}

	sanitized := message
	for _, category := range s.categories {
		matched := false
		for _, re := range category.patterns {
			if !re.MatchString(sanitized) && !re.MatchString(message) {
				continue
			}
			matched = true
			// Neutraliza o span casado mantendo o resto da mensagem
			sanitized = re.ReplaceAllString(sanitized, filteredMarker)
		}

		if matched {
			result.PatternsDetected = append(result.PatternsDetected, category.label)
			result.ThreatLevel = result.ThreatLevel.Max(category.level)
		}
	}

	// Caracteres de controle são sempre removidos, casando categoria ou não
	sanitized = controlCharPattern.ReplaceAllString(sanitized, "")

	result.SanitizedMessage = sanitized
	result.ShouldBlock = result.ThreatLevel >= domain.ThreatHigh
	result.ShouldFlagForReview = result.ThreatLevel == domain.ThreatMedium

	if len(result.PatternsDetected) > 0 {
		result.Explanation = fmt.Sprintf("matched %d attack categories: %s",
			len(result.PatternsDetected), strings.Join(result.PatternsDetected, ", "))
	}

	return result
}

// DetectPromptInjection é a visão booleana conveniente de Analyze
func (s *Sanitizer) DetectPromptInjection(message string) (bool, domain.ThreatLevel) {
	result := s.Analyze(message)
	return len(result.PatternsDetected) > 0, result.ThreatLevel
}
