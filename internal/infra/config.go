package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации всей платформы ShieldForce.
type Config struct {
	Ingress    ServerConfig     `mapstructure:"ingress"`
	Egress     ServerConfig     `mapstructure:"egress"`
	Console    ServerConfig     `mapstructure:"console"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Firewall   FirewallConfig   `mapstructure:"firewall"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Baseline   BaselineConfig   `mapstructure:"baseline"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig описывает настройки одного HTTP-сервера (у каждой плоскости свой).
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub и реестр карантина).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит ключи подписи Capability-грантов и настройки входной
// аутентификации. RSA-пара общая: Ingress подписывает закрытым ключом,
// агент и даунстрим-ресурсы проверяют открытым.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // Только для Ingress и Console
	GrantTTL       time.Duration `mapstructure:"grant_ttl"`        // Короткий горизонт жизни гранта
	TokenTTL       time.Duration `mapstructure:"token_ttl"`        // Операторские токены Console
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PublicKey      []byte
	PrivateKey     []byte

	// RBAC: API-ключ вызывающей стороны -> список разрешенных агентов ("*" = все)
	CallerKeys map[string][]string `mapstructure:"caller_keys"`
}

// FirewallConfig — сигнатуры Pattern Matcher'а и структурные лимиты.
type FirewallConfig struct {
	MaxPayloadBytes int      `mapstructure:"max_payload_bytes"`
	Signatures      []string `mapstructure:"signatures"`   // Фразы prompt-injection (первое совпадение решает)
	BlockedTags     []string `mapstructure:"blocked_tags"` // Запрещенная разметка
}

// RiskConfig — штрафы и пороги Risk Scorer'а.
// Пороги обязаны сохранять порядок ALLOW < WATCH < BLOCK < QUARANTINE.
type RiskConfig struct {
	DenylistDomains  []string `mapstructure:"denylist_domains"`
	SuspiciousTLDs   []string `mapstructure:"suspicious_tlds"`
	SuspiciousWords  []string `mapstructure:"suspicious_words"` // Слова в purpose, намекающие на эксфильтрацию
	DenylistPenalty  int      `mapstructure:"denylist_penalty"`
	TLDPenalty       int      `mapstructure:"tld_penalty"`
	BlobPenalty      int      `mapstructure:"blob_penalty"`
	LargeBodyPenalty int      `mapstructure:"large_body_penalty"`
	LargeBodyBytes   int      `mapstructure:"large_body_bytes"`
	GetBodyPenalty   int      `mapstructure:"get_body_penalty"`
	GetBodyBytes     int      `mapstructure:"get_body_bytes"`
	InternalPenalty  int      `mapstructure:"internal_penalty"`
	PurposePenalty   int      `mapstructure:"purpose_penalty"`

	// Штрафы за поведенческие флаги (см. baseline.Flags)
	NewDomainPenalty int `mapstructure:"new_domain_penalty"`
	NewAPIPenalty    int `mapstructure:"new_api_penalty"`
	OversizedPenalty int `mapstructure:"oversized_penalty"`
	FrequencyPenalty int `mapstructure:"frequency_penalty"`
	OddHourPenalty   int `mapstructure:"odd_hour_penalty"`
	BehaviorCap      int `mapstructure:"behavior_cap"`
	SemanticCap      int `mapstructure:"semantic_cap"`

	WatchThreshold   int `mapstructure:"watch_threshold"`
	BlockThreshold   int `mapstructure:"block_threshold"`
	QuarantineCutoff int `mapstructure:"quarantine_cutoff"`
}

// BaselineConfig — настройки Behavior DNA (холодный старт и множители отклонений).
type BaselineConfig struct {
	MinSamples      int     `mapstructure:"min_samples"`
	HourMinSamples  int     `mapstructure:"hour_min_samples"`
	FrequencyFactor float64 `mapstructure:"frequency_factor"` // во сколько раз выше среднего = всплеск
	PayloadFactor   float64 `mapstructure:"payload_factor"`   // во сколько раз выше max = аномалия
	HourDeviation   int     `mapstructure:"hour_deviation"`   // допустимое отклонение по часам (±, по кругу)
}

// ClassifierConfig — опциональный внешний семантический классификатор.
// Пустой URL = выключен; решение ядра от него не зависит (Fail-Open).
type ClassifierConfig struct {
	URL                string        `mapstructure:"url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	LowPenalty         int           `mapstructure:"low_penalty"`
	MediumPenalty      int           `mapstructure:"medium_penalty"`
	HighPenalty        int           `mapstructure:"high_penalty"`
	ObfuscationPenalty int           `mapstructure:"obfuscation_penalty"`
}

// EngineConfig содержит специфичные настройки для Data Plane.
type EngineConfig struct {
	AuditBufferSize    int           `mapstructure:"audit_buffer_size"`
	AuditFlushInterval time.Duration `mapstructure:"audit_flush_interval"`
	AgentURL           string        `mapstructure:"agent_url"` // Куда Ingress форвардит очищенный текст

	// Настройки Circuit Breaker и ретраев для исходящих (upstream) вызовов
	CBMaxRequests   uint32        `mapstructure:"cb_max_requests"`
	CBInterval      time.Duration `mapstructure:"cb_interval"`
	CBTimeout       time.Duration `mapstructure:"cb_timeout"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	UpstreamRPS     float64       `mapstructure:"upstream_rps"`
	UpstreamBurst   int           `mapstructure:"upstream_burst"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: EGRESS_PORT=9000 перекроет egress.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Загрузка ключей из Файла ИЛИ из ENV
	// Сначала проверяем, не лежит ли сам PEM-ключ в ENV (для Docker/K8s)
	// Если нет — читаем файл по указанному пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	// 7. Валидация порядка порогов. Ломаный набор правил — это Fatal на старте,
	// тихо деградировать на правилах безопасности нельзя.
	if err := cfg.Risk.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate проверяет инвариант порядка действий: ALLOW < WATCH < BLOCK < QUARANTINE.
func (r *RiskConfig) Validate() error {
	if r.WatchThreshold <= 0 || r.BlockThreshold <= r.WatchThreshold || r.QuarantineCutoff <= r.BlockThreshold {
		return fmt.Errorf("risk thresholds must be ordered: 0 < watch(%d) < block(%d) < quarantine(%d)",
			r.WatchThreshold, r.BlockThreshold, r.QuarantineCutoff)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ingress.port", 8001)
	v.SetDefault("ingress.metrics_port", 9001)
	v.SetDefault("ingress.read_timeout", 5*time.Second)
	v.SetDefault("ingress.write_timeout", 30*time.Second)
	v.SetDefault("egress.port", 9000)
	v.SetDefault("egress.metrics_port", 9090)
	v.SetDefault("egress.read_timeout", 5*time.Second)
	v.SetDefault("egress.write_timeout", 60*time.Second)
	v.SetDefault("console.port", 8000)
	v.SetDefault("console.read_timeout", 5*time.Second)
	v.SetDefault("console.write_timeout", 10*time.Second)

	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("auth.grant_ttl", 5*time.Minute)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("firewall.max_payload_bytes", 10_000)
	v.SetDefault("firewall.signatures", defaultSignatures)
	v.SetDefault("firewall.blocked_tags", []string{"<script>", "<iframe>", "<object>", "<embed>"})

	v.SetDefault("risk.denylist_domains", defaultDenylist)
	v.SetDefault("risk.suspicious_tlds", []string{".tk", ".ml", ".ga", ".cf", ".gq"})
	v.SetDefault("risk.suspicious_words", []string{"backup", "export", "dump", "exfiltrate", "leak"})
	v.SetDefault("risk.denylist_penalty", 70)
	v.SetDefault("risk.tld_penalty", 15)
	v.SetDefault("risk.blob_penalty", 15)
	v.SetDefault("risk.large_body_penalty", 20)
	v.SetDefault("risk.large_body_bytes", 100_000)
	v.SetDefault("risk.get_body_penalty", 10)
	v.SetDefault("risk.get_body_bytes", 1000)
	v.SetDefault("risk.internal_penalty", 25)
	v.SetDefault("risk.purpose_penalty", 10)
	v.SetDefault("risk.new_domain_penalty", 30)
	v.SetDefault("risk.new_api_penalty", 20)
	v.SetDefault("risk.oversized_penalty", 20)
	v.SetDefault("risk.frequency_penalty", 25)
	v.SetDefault("risk.odd_hour_penalty", 10)
	v.SetDefault("risk.behavior_cap", 50)
	v.SetDefault("risk.semantic_cap", 40)
	v.SetDefault("risk.watch_threshold", 40)
	v.SetDefault("risk.block_threshold", 60)
	v.SetDefault("risk.quarantine_cutoff", 80)

	v.SetDefault("baseline.min_samples", 10)
	v.SetDefault("baseline.hour_min_samples", 15)
	v.SetDefault("baseline.frequency_factor", 5.0)
	v.SetDefault("baseline.payload_factor", 3.0)
	v.SetDefault("baseline.hour_deviation", 3)

	v.SetDefault("classifier.timeout", 800*time.Millisecond)
	v.SetDefault("classifier.low_penalty", 10)
	v.SetDefault("classifier.medium_penalty", 25)
	v.SetDefault("classifier.high_penalty", 40)
	v.SetDefault("classifier.obfuscation_penalty", 10)

	v.SetDefault("engine.audit_buffer_size", 10000)
	v.SetDefault("engine.audit_flush_interval", 500*time.Millisecond)
	v.SetDefault("engine.agent_url", "http://agent:7000")
	v.SetDefault("engine.cb_max_requests", 3)
	v.SetDefault("engine.cb_interval", 5*time.Second)
	v.SetDefault("engine.cb_timeout", 30*time.Second)
	v.SetDefault("engine.upstream_timeout", 30*time.Second)
	v.SetDefault("engine.upstream_rps", 100.0)
	v.SetDefault("engine.upstream_burst", 20)
}

// defaultSignatures — базовый набор фраз prompt-injection.
// Порядок важен: первое совпадение побеждает, результат воспроизводим.
var defaultSignatures = []string{
	"ignore previous instructions",
	"ignore previous",
	"ignore all previous",
	"disregard previous",
	"forget previous",
	"reveal system prompt",
	"show system prompt",
	"print system prompt",
	"system prompt",
	"show config",
	"dump memory",
	"print your instructions",
	"what are your instructions",
	"disable safety",
	"bypass",
	"jailbreak",
	"sudo mode",
	"developer mode",
	"god mode",
	"admin mode",
	"root access",
}

// defaultDenylist — известные домены эксфильтрации/файлообменники.
var defaultDenylist = []string{
	"pastebin.com",
	"filebin.net",
	"ipfs.io",
	"transfer.sh",
	"file.io",
	"0x0.st",
	"uguu.se",
	"catbox.moe",
	"anonfiles.com",
	"mega.nz",
}

// loadKeyResource — универсальный хелпер архитектора
func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV (Base64 или PEM)
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	// Иначе читаем файл по пути из конфига
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
