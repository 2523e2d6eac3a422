package scrubber

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"validation-gateway/internal/domain"
)

// Rótulos das categorias de PII detectadas
const (
	CategoryCreditCard        = "credit_card"
	CategoryEmail             = "email"
	CategoryPhone             = "phone"
	CategoryIPAddress         = "ip_address"
	CategoryOrderReference    = "order_reference"
	CategoryCustomerReference = "customer_reference"
)

// detectorSpec descreve um detector como dado: categoria + expressão.
// A ordem é mais-específico-primeiro: padrões de cartão antes de padrões
// genéricos de telefone, para que um valor seja atribuído a exatamente
// uma categoria e não seja redigido duas vezes.
type detectorSpec struct {
	category string
	pattern  string
}

var detectorSpecs = []detectorSpec{
	{CategoryCreditCard, `\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`},
	{CategoryEmail, `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`},
	{CategoryPhone, `\b(\+?\d{1,2}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`},
	{CategoryIPAddress, `\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`},
	{CategoryOrderReference, `(?i)\b(ord|order)[-_]?\d{4,}\b`},
	{CategoryCustomerReference, `(?i)\b(cust|customer)[-_]?\d{4,}\b`},
}

type detector struct {
	category string
	pattern  *regexp.Regexp
}

// Scrubber implementa a interface domain.Scrubber substituindo spans de
// PII por tokens de redação determinísticos e não reversíveis.
//
// Política de redação: duas ocorrências do mesmo valor dentro de um mesmo
// payload viram o mesmo token (digest sha256 truncado), permitindo
// correlação sem recuperar o original. O salt é sorteado por processo,
// então tokens não são estáveis entre restarts e não servem para
// re-identificação de longo prazo.
type Scrubber struct {
	detectors []detector
	salt      []byte
}

// NewScrubber cria um scrubber com salt sorteado para este processo
func NewScrubber(log domain.Logger) *Scrubber {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil && log != nil {
		// rand.Read de crypto/rand não falha em plataformas suportadas;
		// se falhar, o salt zerado ainda redige, só perde a rotação
		log.Error("Failed to draw scrubber salt", err, nil)
	}
	return NewScrubberWithSalt(salt, log)
}

// NewScrubberWithSalt cria um scrubber com salt fixo, para integradores
// que precisam de correlação de tokens durável entre processos.
func NewScrubberWithSalt(salt []byte, log domain.Logger) *Scrubber {
	detectors := make([]detector, 0, len(detectorSpecs))

	for _, spec := range detectorSpecs {
		re, err := regexp.Compile(spec.pattern)
		if err != nil {
			// Um detector defeituoso vira "sem match", nunca uma falha
			// no caminho da requisição
			if log != nil {
				log.Error("Skipping malformed PII detector", err, map[string]interface{}{
					"category": spec.category,
				})
			}
			continue
		}
		detectors = append(detectors, detector{category: spec.category, pattern: re})
	}

	return &Scrubber{detectors: detectors, salt: salt}
}

// Scrub substitui spans de PII por tokens de categoria e reporta apenas
// rótulos, contagens e o tamanho da entrada, nunca os valores casados.
// Não falha para nenhuma entrada, inclusive texto já redigido ou binário.
func (s *Scrubber) Scrub(text string) *domain.ScrubResult {
	result := &domain.ScrubResult{
		OriginalLength: utf8.RuneCountInString(text),
		ScrubbedText:   text,
		PIIFound:       []string{},
	}

	if text == "" {
		return result
	}

	scrubbed := text
	for _, d := range s.detectors {
		count := 0
		scrubbed = d.pattern.ReplaceAllStringFunc(scrubbed, func(match string) string {
			count++
			return s.redactionToken(d.category, match)
		})

		if count > 0 {
			result.PIIFound = append(result.PIIFound, d.category)
			result.ScrubCount += count
		}
	}

	result.ScrubbedText = scrubbed
	return result
}

// redactionToken deriva o token de substituição para um valor casado:
// digest sha256 do salt + valor, truncado para 8 hex. O mesmo valor gera
// o mesmo token dentro do processo; o valor não é recuperável.
func (s *Scrubber) redactionToken(category, value string) string {
	h := sha256.New()
	h.Write(s.salt)
	h.Write([]byte(value))
	digest := hex.EncodeToString(h.Sum(nil))[:8]

	return fmt.Sprintf("[%s:%s]", strings.ToUpper(category), digest)
}
