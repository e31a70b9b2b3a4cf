package firewall

import (
	"strings"

	"github.com/xela07ax/shieldforce/internal/infra"
)

// Коды причин блокировки. Наружу уходят только они — никаких
// стектрейсов и внутренних деталей (стабильный контракт для вызывающих).
const (
	ReasonInstructionOverride = "instruction_override"
	ReasonPayloadTooLarge     = "payload_too_large"
	ReasonHTMLInjection       = "html_injection"
)

// Verdict — результат проверки текста. Matched == false означает "чисто":
// совпадение — исключительный путь, а не дефолт.
type Verdict struct {
	Matched     bool
	SignatureID string // Конкретная фраза/тег, которые сработали
	Reason      string // Машиночитаемый код для ответа и аудита
}

// Firewall — stateless Pattern Matcher. Прогоняет текст через упорядоченный
// список сигнатур и два структурных чека. Никаких side effects, никаких panic
// на кривом вводе: баг одной сигнатуры может «провалить» только её саму.
type Firewall struct {
	maxPayload int
	signatures []string // уже в lower-case, порядок фиксирован
	tags       []string
}

func New(cfg infra.FirewallConfig) *Firewall {
	f := &Firewall{
		maxPayload: cfg.MaxPayloadBytes,
		signatures: make([]string, 0, len(cfg.Signatures)),
		tags:       make([]string, 0, len(cfg.BlockedTags)),
	}
	for _, s := range cfg.Signatures {
		f.signatures = append(f.signatures, strings.ToLower(s))
	}
	for _, t := range cfg.BlockedTags {
		f.tags = append(f.tags, strings.ToLower(t))
	}
	return f
}

// Check — детерминированный прогон: размер → сигнатуры по порядку → разметка.
// Первое совпадение побеждает, результат воспроизводим.
func (f *Firewall) Check(text string) Verdict {
	// Структурный чек №1: жесткий лимит размера (до любых строковых операций)
	if len(text) > f.maxPayload {
		return Verdict{Matched: true, SignatureID: "max_payload", Reason: ReasonPayloadTooLarge}
	}

	lower := strings.ToLower(text)

	// Сигнатуры prompt-injection (instruction/role/safety override)
	for _, sig := range f.signatures {
		if strings.Contains(lower, sig) {
			return Verdict{Matched: true, SignatureID: sig, Reason: ReasonInstructionOverride}
		}
	}

	// Структурный чек №2: запрещенная разметка
	for _, tag := range f.tags {
		if strings.Contains(lower, tag) {
			return Verdict{Matched: true, SignatureID: tag, Reason: ReasonHTMLInjection}
		}
	}

	return Verdict{}
}
