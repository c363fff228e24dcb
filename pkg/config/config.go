package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Moderation ModerationConfig
	Escalation EscalationConfig
	Dedup      DedupConfig
	Dashboard  DashboardConfig
	Evidence   EvidenceConfig
	Exports    ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ModerationConfig points the gateway at the external text-analysis service.
type ModerationConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// EscalationConfig governs the SLA window and the breach sweep cadence.
// The SLA window is uniform across categories and urgency scores.
// ChainOverrides holds comma-separated role lists keyed by the category part
// of ESCALATION_CHAIN_<CATEGORY> env vars; empty vars leave the default chain.
type EscalationConfig struct {
	SLAWindow      time.Duration
	SweepInterval  time.Duration
	SweepEnabled   bool
	ChainOverrides map[string][]string
}

// DedupConfig tunes near-duplicate clustering of incoming reports.
type DedupConfig struct {
	SimilarityThreshold float64
	CandidateLimit      int
}

// DashboardConfig governs stats exposure and cache tuning.
type DashboardConfig struct {
	CacheTTL time.Duration
}

// EvidenceConfig controls evidence storage & signed references.
type EvidenceConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
}

// ExportsConfig toggles admin issue exports.
type ExportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 7*24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Moderation = ModerationConfig{
		BaseURL: v.GetString("MODERATION_BASE_URL"),
		Model:   v.GetString("MODERATION_MODEL"),
		Timeout: parseDuration(v.GetString("MODERATION_TIMEOUT"), 20*time.Second),
	}

	cfg.Escalation = EscalationConfig{
		SLAWindow:      parseDuration(v.GetString("ESCALATION_SLA_WINDOW"), 48*time.Hour),
		SweepInterval:  parseDuration(v.GetString("ESCALATION_SWEEP_INTERVAL"), 10*time.Minute),
		SweepEnabled:   v.GetBool("ESCALATION_SWEEP_ENABLED"),
		ChainOverrides: chainOverrides(v),
	}

	cfg.Dedup = DedupConfig{
		SimilarityThreshold: v.GetFloat64("DEDUP_SIMILARITY_THRESHOLD"),
		CandidateLimit:      v.GetInt("DEDUP_CANDIDATE_LIMIT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 2*time.Minute),
	}

	maxEvidenceSize := v.GetInt64("EVIDENCE_MAX_FILE_SIZE")
	if maxEvidenceSize <= 0 {
		maxEvidenceSize = 10 * 1024 * 1024
	}
	cfg.Evidence = EvidenceConfig{
		StorageDir:       v.GetString("EVIDENCE_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("EVIDENCE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("EVIDENCE_SIGNED_URL_TTL"), 24*time.Hour),
		MaxFileSizeBytes: maxEvidenceSize,
	}

	cfg.Exports = ExportsConfig{
		Enabled: v.GetBool("ENABLE_EXPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "campus_voice")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "campus-voice-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MODERATION_BASE_URL", "http://localhost:11434")
	v.SetDefault("MODERATION_MODEL", "moderation-small")
	v.SetDefault("MODERATION_TIMEOUT", "20s")

	v.SetDefault("ESCALATION_SLA_WINDOW", "48h")
	v.SetDefault("ESCALATION_SWEEP_INTERVAL", "10m")
	v.SetDefault("ESCALATION_SWEEP_ENABLED", true)

	v.SetDefault("DEDUP_SIMILARITY_THRESHOLD", 0.6)
	v.SetDefault("DEDUP_CANDIDATE_LIMIT", 100)

	v.SetDefault("DASHBOARD_CACHE_TTL", "2m")

	v.SetDefault("EVIDENCE_STORAGE_DIR", "./evidence")
	v.SetDefault("EVIDENCE_SIGNED_URL_SECRET", "dev_evidence_secret")
	v.SetDefault("EVIDENCE_SIGNED_URL_TTL", "24h")
	v.SetDefault("EVIDENCE_MAX_FILE_SIZE", 10*1024*1024)

	v.SetDefault("ENABLE_EXPORTS", true)
}

func chainOverrides(v *viper.Viper) map[string][]string {
	overrides := make(map[string][]string)
	for _, category := range []string{"ACADEMICS", "HOSTEL", "INFRASTRUCTURE", "FOOD", "TRANSPORTATION", "OTHER"} {
		if roles := splitAndTrim(v.GetString("ESCALATION_CHAIN_" + category)); len(roles) > 0 {
			overrides[category] = roles
		}
	}
	return overrides
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
