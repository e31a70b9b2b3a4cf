package redact

import "regexp"

// Сканер секретов. Один и тот же для обоих направлений: входящий текст
// чистится до попадания к агенту, исходящие тела — до записи в лог и до
// отправки внешнему классификатору. Сырые секреты эти границы не пересекают.

// Kind — тип найденной credential-shaped подстроки.
type Kind string

const (
	KindAWSKey     Kind = "aws_key"
	KindAPIKey     Kind = "api_key"
	KindPrivateKey Kind = "private_key"
	KindJWT        Kind = "jwt_token"
)

// Match — одно срабатывание детектора. Только тип и позиция в исходном
// тексте; само значение наружу не отдаем никогда.
type Match struct {
	Kind  Kind
	Start int
	End   int
}

// Скомпилированные шаблоны. Набор фиксированный, порядок прогона — тоже.
var (
	// AWS Access Key ID
	awsKeyRe = regexp.MustCompile(`AKIA[0-9A-Z]{16}`)

	// Присвоения вида api_key=..., token: "...", password=...
	apiKeyRe = regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password)\s*[:=]\s*"?([A-Za-z0-9_\-]{12,})"?`)

	// PEM-блоки приватных ключей
	pemRe = regexp.MustCompile(`-----BEGIN (?:RSA )?PRIVATE KEY-----`)

	// JWT: три base64url-секции, первые две начинаются с eyJ
	jwtRe = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
)

// detectors задает порядок прогона и плейсхолдеры замен.
var detectors = []struct {
	kind        Kind
	re          *regexp.Regexp
	replacement string
}{
	{KindAWSKey, awsKeyRe, "[REDACTED_AWS_KEY]"},
	{KindAPIKey, apiKeyRe, "${1}=[REDACTED_API_KEY]"},
	{KindPrivateKey, pemRe, "[REDACTED_PRIVATE_KEY]"},
	{KindJWT, jwtRe, "[REDACTED_JWT]"},
}

// Scan находит все credential-shaped подстроки и возвращает текст с заменами
// плюс список срабатываний (позиции — по исходному тексту).
func Scan(text string) (string, []Match) {
	var matches []Match
	masked := text

	for _, d := range detectors {
		for _, loc := range d.re.FindAllStringIndex(text, -1) {
			matches = append(matches, Match{Kind: d.kind, Start: loc[0], End: loc[1]})
		}
		// Заменяем в уже замаскированной копии: детекторы независимы,
		// и более ранний плейсхолдер не должен «съедаться» поздним
		masked = d.re.ReplaceAllString(masked, d.replacement)
	}

	return masked, matches
}

// Kinds — дедуплицированный список типов для логов (в порядке детекторов).
func Kinds(matches []Match) []string {
	seen := make(map[Kind]bool, len(matches))
	var kinds []string
	for _, d := range detectors {
		for _, m := range matches {
			if m.Kind == d.kind && !seen[m.Kind] {
				seen[m.Kind] = true
				kinds = append(kinds, string(m.Kind))
			}
		}
	}
	return kinds
}

// Found — быстрый путь для Risk Scorer: есть ли секрет вообще.
func Found(text string) bool {
	for _, d := range detectors {
		if d.re.MatchString(text) {
			return true
		}
	}
	return false
}
