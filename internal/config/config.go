package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ScholarshipScanner/internal/matching"
)

const (
	defaultTimezone   = "America/Sao_Paulo"
	configPathEnv     = "SCHOLARSHIP_SCANNER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	llmAPIKeysEnv     = "LLM_API_KEYS"
	llmModelEnv       = "LLM_MODEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
	dryRunEnv         = "DRY_RUN"
)

// Reconcile modes.
const (
	ModeBatch = "batch"
	ModeRow   = "row"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Source        SourceConfig       `yaml:"source"`
	LLM           LLMConfig          `yaml:"llm"`
	Notifications NotificationConfig `yaml:"notifications"`
	Matching      MatchingConfig     `yaml:"matching"`
	Reconcile     ReconcileConfig    `yaml:"reconcile"`
	DryRun        bool               `yaml:"dryRun"`
}

// LoggingConfig selects slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SourceConfig groups the announcement portals and crawl pacing.
type SourceConfig struct {
	UserAgent string        `yaml:"userAgent"`
	Pause     time.Duration `yaml:"pause"`
	Sites     []SiteConfig  `yaml:"sites"`
}

// SiteConfig describes a single portal with its scanner strategy.
type SiteConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	URL     string            `yaml:"url"`
	Pages   int               `yaml:"pages"`
	Options map[string]string `yaml:"options"`
}

// LLMConfig defines how to contact the OpenAI-compatible extraction endpoint.
type LLMConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	APIKeys        []string      `yaml:"apiKeys"`
	SystemPrompt   string        `yaml:"systemPrompt"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxAttempts    int           `yaml:"maxAttempts"`
	Pause          time.Duration `yaml:"pause"`
	ChunkChars     int           `yaml:"chunkChars"`
	UsageThreshold int           `yaml:"usageThreshold"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	Endpoint string `yaml:"endpoint"`
}

// MatchingConfig carries matcher cutoffs and title filter vocabularies.
type MatchingConfig struct {
	Thresholds  matching.Thresholds `yaml:"thresholds"`
	StopWords   []string            `yaml:"stopWords"`
	Boilerplate []string            `yaml:"boilerplate"`
}

// TermFilter builds the title filter, falling back to built-in vocabularies.
func (m MatchingConfig) TermFilter() *matching.TermFilter {
	stop, boiler := m.StopWords, m.Boilerplate
	if len(stop) == 0 {
		stop = matching.DefaultStopWords
	}
	if len(boiler) == 0 {
		boiler = matching.DefaultBoilerplate
	}
	return matching.NewTermFilter(stop, boiler)
}

// ReconcileConfig picks the reconciliation strategy for result documents.
type ReconcileConfig struct {
	Mode string `yaml:"mode"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.Matching.Thresholds = cfg.Matching.Thresholds.WithDefaults()

	if len(cfg.Source.Sites) == 0 {
		cfg.Source.Sites = defaultConfig().Source.Sites
	}
	if cfg.Reconcile.Mode != ModeRow {
		cfg.Reconcile.Mode = ModeBatch
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(llmAPIKeysEnv); v != "" {
		c.LLM.APIKeys = SplitKeys(v)
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(dryRunEnv); v != "" {
		if dry, err := strconv.ParseBool(v); err == nil {
			c.DryRun = dry
		} else {
			log.Printf("config: ignoring %s=%q: %v", dryRunEnv, v, err)
		}
	}
}

// SplitKeys parses a comma-separated key list, dropping blanks.
func SplitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to UTC", tz)
		loc = time.UTC
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Schema != "" {
		base.Database.Schema = override.Database.Schema
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Source.UserAgent != "" {
		base.Source.UserAgent = override.Source.UserAgent
	}
	if override.Source.Pause > 0 {
		base.Source.Pause = override.Source.Pause
	}
	if len(override.Source.Sites) > 0 {
		base.Source.Sites = override.Source.Sites
	}

	base.LLM = mergeLLM(base.LLM, override.LLM)

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.Endpoint != "" {
		base.Notifications.Telegram.Endpoint = override.Notifications.Telegram.Endpoint
	}

	base.Matching.Thresholds = override.Matching.Thresholds
	if len(override.Matching.StopWords) > 0 {
		base.Matching.StopWords = override.Matching.StopWords
	}
	if len(override.Matching.Boilerplate) > 0 {
		base.Matching.Boilerplate = override.Matching.Boilerplate
	}

	if override.Reconcile.Mode != "" {
		base.Reconcile.Mode = override.Reconcile.Mode
	}
	base.DryRun = base.DryRun || override.DryRun

	return base
}

func mergeLLM(base, override LLMConfig) LLMConfig {
	if override.Endpoint != "" {
		base.Endpoint = override.Endpoint
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if len(override.APIKeys) > 0 {
		base.APIKeys = override.APIKeys
	}
	if override.SystemPrompt != "" {
		base.SystemPrompt = override.SystemPrompt
	}
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	if override.MaxAttempts > 0 {
		base.MaxAttempts = override.MaxAttempts
	}
	if override.Pause > 0 {
		base.Pause = override.Pause
	}
	if override.ChunkChars > 0 {
		base.ChunkChars = override.ChunkChars
	}
	if override.UsageThreshold > 0 {
		base.UsageThreshold = override.UsageThreshold
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{CronExpression: "0 */6 * * *", Timezone: defaultTimezone},
		Source: SourceConfig{
			UserAgent: "ScholarshipScanner/1.0",
			Pause:     5 * time.Second,
			Sites: []SiteConfig{
				{
					Name:    "uenf-editais",
					Scanner: "uenf",
					URL:     "https://uenf.br/portal/editais",
					Pages:   5,
				},
			},
		},
		LLM: LLMConfig{
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
			Model:          "gemini-2.5-flash",
			SystemPrompt:   "You extract structured data from Brazilian university scholarship announcements.",
			Timeout:        10 * time.Minute,
			MaxAttempts:    3,
			Pause:          5 * time.Second,
			ChunkChars:     6000,
			UsageThreshold: 100,
		},
		Matching: MatchingConfig{
			Thresholds:  matching.DefaultThresholds(),
			StopWords:   matching.DefaultStopWords,
			Boilerplate: matching.DefaultBoilerplate,
		},
		Reconcile: ReconcileConfig{Mode: ModeBatch},
	}
}
