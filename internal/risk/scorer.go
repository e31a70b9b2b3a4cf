package risk

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/xela07ax/shieldforce/internal/baseline"
	"github.com/xela07ax/shieldforce/internal/classifier"
	"github.com/xela07ax/shieldforce/internal/domain"
	"github.com/xela07ax/shieldforce/internal/infra"
	"github.com/xela07ax/shieldforce/internal/redact"
	"go.uber.org/zap"
)

// Risk Scorer: три аддитивных компонента (детерминированные правила,
// поведение, опциональная семантика), каждый со своим капом, сумма
// зажимается в 0..100. Секрет в исходящем теле — это не просто штраф,
// а безусловный карантин поверх любой численной суммы.

const maxScore = 100

// Input — контекст одного egress-решения.
type Input struct {
	AgentID string
	URL     string
	Method  string
	Body    string
	Purpose string
	Flags   []baseline.Flag // вычислены ДО обновления baseline
}

// Assessment — итог скоринга.
type Assessment struct {
	Score     int
	Reasons   []string
	Action    domain.Action
	SecretHit bool // секрет в теле: карантин независимо от Score
}

// Длинный base64-ран — эвристика упаковки данных на вынос.
var base64BlobRe = regexp.MustCompile(`[A-Za-z0-9+/]{200,}={0,2}`)

type Scorer struct {
	cfg      infra.RiskConfig
	clfCfg   infra.ClassifierConfig
	clf      *classifier.Client // nil = выключен
	denylist map[string]struct{}
	logger   *zap.Logger
}

func NewScorer(cfg infra.RiskConfig, clfCfg infra.ClassifierConfig, clf *classifier.Client, logger *zap.Logger) *Scorer {
	deny := make(map[string]struct{}, len(cfg.DenylistDomains))
	for _, d := range cfg.DenylistDomains {
		deny[strings.ToLower(d)] = struct{}{}
	}
	return &Scorer{
		cfg:      cfg,
		clfCfg:   clfCfg,
		clf:      clf,
		denylist: deny,
		logger:   logger.Named("scorer"),
	}
}

// Score собирает компоненты и выбирает действие по порогам из конфига.
func (s *Scorer) Score(ctx context.Context, in Input) Assessment {
	var reasons []string

	detScore, detReasons, secretHit := s.scoreDeterministic(in)
	reasons = append(reasons, detReasons...)

	behavScore, behavReasons := s.scoreBehavior(in)
	reasons = append(reasons, behavReasons...)

	semScore, semReasons := s.scoreSemantic(ctx, in)
	reasons = append(reasons, semReasons...)

	total := detScore + behavScore + semScore
	if total > maxScore {
		total = maxScore
	}

	return Assessment{
		Score:     total,
		Reasons:   reasons,
		Action:    s.action(total, secretHit),
		SecretHit: secretHit,
	}
}

// scoreDeterministic — фиксированные правила. Независимы от состояния,
// воспроизводимы, кап — maxScore.
func (s *Scorer) scoreDeterministic(in Input) (int, []string, bool) {
	score := 0
	var reasons []string
	secretHit := false

	dom := ExtractDomain(in.URL)

	if _, denied := s.denylist[dom]; denied {
		score += s.cfg.DenylistPenalty
		reasons = append(reasons, "denylisted_domain:"+dom)
	}

	for _, tld := range s.cfg.SuspiciousTLDs {
		if strings.HasSuffix(dom, tld) {
			score += s.cfg.TLDPenalty
			reasons = append(reasons, "suspicious_tld:"+tld)
			break
		}
	}

	// Секрет в исходящем теле: сразу потолок + флаг карантина
	if redact.Found(in.Body) {
		score = maxScore
		secretHit = true
		reasons = append(reasons, "secret_pattern")
	}

	if base64BlobRe.MatchString(in.Body) {
		score += s.cfg.BlobPenalty
		reasons = append(reasons, "base64_blob")
	}

	if len(in.Body) > s.cfg.LargeBodyBytes {
		score += s.cfg.LargeBodyPenalty
		reasons = append(reasons, "large_payload")
	}

	// Read-only глагол с большим телом — классический признак выноса данных
	if strings.EqualFold(in.Method, "GET") && len(in.Body) > s.cfg.GetBodyBytes {
		score += s.cfg.GetBodyPenalty
		reasons = append(reasons, "get_with_large_body")
	}

	if isInternalHost(dom) {
		score += s.cfg.InternalPenalty
		reasons = append(reasons, "internal_ip")
	}

	purpose := strings.ToLower(in.Purpose)
	for _, word := range s.cfg.SuspiciousWords {
		if strings.Contains(purpose, word) {
			score += s.cfg.PurposePenalty
			reasons = append(reasons, "suspicious_purpose")
			break
		}
	}

	if score > maxScore {
		score = maxScore
	}
	return score, reasons, secretHit
}

// scoreBehavior — фиксированный штраф за каждый поведенческий флаг, свой кап.
func (s *Scorer) scoreBehavior(in Input) (int, []string) {
	score := 0
	var reasons []string

	for _, f := range in.Flags {
		switch f {
		case baseline.FlagNewDomain:
			score += s.cfg.NewDomainPenalty
			reasons = append(reasons, "new_domain:"+ExtractDomain(in.URL))
		case baseline.FlagNewEndpoint:
			score += s.cfg.NewAPIPenalty
			reasons = append(reasons, fmt.Sprintf("new_api:%s:%s", strings.ToUpper(in.Method), ExtractDomain(in.URL)))
		case baseline.FlagOversized:
			score += s.cfg.OversizedPenalty
			reasons = append(reasons, string(baseline.FlagOversized))
		case baseline.FlagFrequencySpike:
			score += s.cfg.FrequencyPenalty
			reasons = append(reasons, string(baseline.FlagFrequencySpike))
		case baseline.FlagOddHour:
			score += s.cfg.OddHourPenalty
			reasons = append(reasons, string(baseline.FlagOddHour))
		}
	}

	if score > s.cfg.BehaviorCap {
		score = s.cfg.BehaviorCap
	}
	return score, reasons
}

// scoreSemantic — мнение внешнего классификатора. Недоступность коллаборатора
// никогда не блокирует пайплайн: таймаут/ошибка = нулевой вклад (Fail-Open).
func (s *Scorer) scoreSemantic(ctx context.Context, in Input) (int, []string) {
	if s.clf == nil {
		return 0, nil
	}

	// Классификатору уходит только отредактированная сводка
	redacted, _ := redact.Scan(in.Body)
	summary := fmt.Sprintf("%s %s purpose=%s body=%s", in.Method, ExtractDomain(in.URL), in.Purpose, redacted)

	verdict, err := s.clf.Classify(ctx, summary)
	if err != nil {
		// Низкая severity осознанно: это деградация обогащения, не инцидент
		s.logger.Debug("classifier unavailable, fail-open", zap.Error(err))
		return 0, nil
	}

	score := 0
	var reasons []string
	switch verdict.Level {
	case classifier.LevelLow:
		score += s.clfCfg.LowPenalty
	case classifier.LevelMedium:
		score += s.clfCfg.MediumPenalty
	case classifier.LevelHigh:
		score += s.clfCfg.HighPenalty
	}
	if score > 0 {
		reasons = append(reasons, "semantic_risk:"+string(verdict.Level))
	}
	if verdict.Obfuscation {
		score += s.clfCfg.ObfuscationPenalty
		reasons = append(reasons, "semantic_obfuscation")
	}

	if score > s.cfg.SemanticCap {
		score = s.cfg.SemanticCap
	}
	return score, reasons
}

// action маппит итоговый балл в действие. Секрет — всегда карантин.
func (s *Scorer) action(score int, secretHit bool) domain.Action {
	switch {
	case secretHit:
		return domain.ActionQuarantine
	case score >= s.cfg.QuarantineCutoff:
		return domain.ActionQuarantine
	case score >= s.cfg.BlockThreshold:
		return domain.ActionBlock
	case score >= s.cfg.WatchThreshold:
		return domain.ActionWatch
	default:
		return domain.ActionAllow
	}
}

// ExtractDomain достает хост назначения из URL (без порта).
// На кривом вводе возвращает вход как есть — скоринг не должен падать.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	host := u.Hostname()
	if host == "" {
		// "pastebin.com/raw" без схемы парсится в Path
		host = strings.SplitN(u.Path, "/", 2)[0]
	}
	return strings.ToLower(host)
}

// isInternalHost ловит localhost и приватные диапазоны — агенту нечего
// делать во внутреннем периметре через egress-шлюз.
func isInternalHost(host string) bool {
	if host == "localhost" || host == "0.0.0.0" {
		return true
	}
	for _, prefix := range []string{"127.", "192.168.", "10.", "172.16."} {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	return false
}
