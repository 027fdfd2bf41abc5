package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/peai-backend/internal/data/db"
	"github.com/yungbote/peai-backend/internal/platform/envutil"
	"github.com/yungbote/peai-backend/internal/platform/llm"
	"github.com/yungbote/peai-backend/internal/platform/logger"
	"github.com/yungbote/peai-backend/internal/platform/tokens"
)

// ConfigFileEnv names a YAML file whose keys fill in unset environment variables.
const ConfigFileEnv = "PEAI_CONFIG"

type Config struct {
	Port    string
	LogMode string

	DB db.Config

	LLM llm.Config

	RedisAddr        string
	ValidityMonths   int
	PublicBaseURL    string
	AdaptedPDFDir    string
	MaterialMaxToken int
	SweepInterval    time.Duration
	CORSOrigins      []string

	OtelEnabled    bool
	MetricsEnabled bool
	ServiceName    string
	Environment    string
}

// LoadConfig overlays the PEAI_CONFIG file onto the environment, then reads
// every key through envutil. Variables already set in the environment win.
func LoadConfig(log *logger.Logger) (Config, error) {
	if path := envutil.String(ConfigFileEnv, ""); path != "" {
		n, err := overlayFile(path)
		if err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("Loaded config file", "path", path, "keys", n)
		}
	}

	cfg := Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "development"),
		DB: db.Config{
			Driver:           envutil.String("DB_DRIVER", db.DriverPostgres),
			PostgresHost:     envutil.String("POSTGRES_HOST", "localhost"),
			PostgresPort:     envutil.String("POSTGRES_PORT", "5432"),
			PostgresUser:     envutil.String("POSTGRES_USER", "postgres"),
			PostgresPassword: envutil.String("POSTGRES_PASSWORD", ""),
			PostgresName:     envutil.String("POSTGRES_NAME", "peai"),
			PostgresSSLMode:  envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath:       envutil.String("SQLITE_PATH", "peai.db"),
		},
		LLM: llm.Config{
			Provider:        envutil.String("GENAI_PROVIDER", llm.ProviderGemini),
			Timeout:         time.Duration(envutil.Int("GENAI_TIMEOUT_SECONDS", 120)) * time.Second,
			MaxOutputTokens: envutil.Int("GENAI_MAX_OUTPUT_TOKENS", 0),
			GeminiAPIKey:    envutil.String("GEMINI_API_KEY", ""),
			GeminiModel:     envutil.String("GEMINI_MODEL", "gemini-2.5-flash"),
			OpenAIAPIKey:    envutil.String("OPENAI_API_KEY", ""),
			OpenAIBaseURL:   envutil.String("OPENAI_BASE_URL", ""),
			OpenAIModel:     envutil.String("OPENAI_MODEL", ""),
			AnthropicAPIKey: envutil.String("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  envutil.String("ANTHROPIC_MODEL", ""),
		},
		RedisAddr:        envutil.String("REDIS_ADDR", ""),
		ValidityMonths:   envutil.Int("PEI_VALIDITY_MONTHS", 12),
		PublicBaseURL:    envutil.String("PUBLIC_BASE_URL", "http://localhost:3000"),
		AdaptedPDFDir:    envutil.String("ADAPTED_PDF_DIR", "data/adapted"),
		MaterialMaxToken: envutil.Int("MATERIAL_MAX_TOKENS", tokens.DefaultMaterialTokens),
		SweepInterval:    envutil.Duration("PEI_SWEEP_INTERVAL", 6*time.Hour),
		CORSOrigins:      splitList(envutil.String("CORS_ORIGINS", "")),
		OtelEnabled:      envutil.Bool("OTEL_ENABLED", false),
		MetricsEnabled:   envutil.Bool("METRICS_ENABLED", false),
		ServiceName:      envutil.String("OTEL_SERVICE_NAME", "peai-backend"),
		Environment:      envutil.String("APP_ENV", "development"),
	}
	if t := envutil.String("GENAI_TEMPERATURE", ""); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return Config{}, fmt.Errorf("GENAI_TEMPERATURE: %w", err)
		}
		cfg.LLM.Temperature = &v
	}
	if cfg.ValidityMonths <= 0 {
		return Config{}, fmt.Errorf("PEI_VALIDITY_MONTHS must be positive, got %d", cfg.ValidityMonths)
	}
	return cfg, nil
}

// overlayFile sets each top-level key of the YAML file as an environment
// variable unless it is already present. It returns the number of keys applied.
func overlayFile(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	applied := 0
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if key == "" || envutil.Set(key) {
			continue
		}
		var s string
		switch val := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			s = strings.Join(parts, ",")
		default:
			s = fmt.Sprint(val)
		}
		if err := os.Setenv(key, s); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
