// Package conf loads process configuration from environment variables
// (optionally overlaid on a YAML file), merging onto documented defaults.
package conf

import (
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/kestrelhq/respond/internal/log"
	"github.com/kestrelhq/respond/internal/tracing"
)

// Config is the process-wide configuration for the gateway.
type Config struct {
	Host string `conf:"host" yaml:"host" json:"host"`
	Port int    `conf:"port" yaml:"port" json:"port"`

	RequestTimeout    time.Duration `conf:"request_timeout" yaml:"request_timeout" json:"request_timeout"`
	LLMRequestTimeout time.Duration `conf:"llm_request_timeout" yaml:"llm_request_timeout" json:"llm_request_timeout"`

	APIKeys []string `conf:"api_keys" yaml:"api_keys" json:"api_keys"`

	DatabaseURL string `conf:"database_url" yaml:"database_url" json:"database_url"`

	BackgroundWorkers  int           `conf:"background_workers" yaml:"background_workers" json:"background_workers"`
	CheckpointDebounce time.Duration `conf:"checkpoint_debounce" yaml:"checkpoint_debounce" json:"checkpoint_debounce"`

	Anthropic      ProviderCredentials `conf:"anthropic" yaml:"anthropic" json:"anthropic"`
	OpenAICompat   ProviderCredentials `conf:"openai_compat" yaml:"openai_compat" json:"openai_compat"`
	S3             S3Config            `conf:"s3" yaml:"s3" json:"s3"`
	Log            log.Config          `conf:"log" yaml:"log" json:"log"`
	Trace          tracing.Config      `conf:"trace" yaml:"trace" json:"trace"`
	CORSAllowedAll bool                `conf:"cors_allow_all" yaml:"cors_allow_all" json:"cors_allow_all"`
}

type ProviderCredentials struct {
	APIKey  string   `conf:"api_key" yaml:"api_key" json:"api_key"`
	BaseURL string   `conf:"base_url" yaml:"base_url" json:"base_url"`
	Models  []string `conf:"models" yaml:"models" json:"models"`
}

type S3Config struct {
	Bucket          string `conf:"bucket" yaml:"bucket" json:"bucket"`
	Region          string `conf:"region" yaml:"region" json:"region"`
	AccessKeyID     string `conf:"access_key_id" yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `conf:"secret_access_key" yaml:"secret_access_key" json:"secret_access_key"`
	Endpoint        string `conf:"endpoint" yaml:"endpoint" json:"endpoint"`
}

// Default returns the baseline configuration merged onto by Load.
func Default() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8090,
		RequestTimeout:     30 * time.Second,
		LLMRequestTimeout:  5 * time.Minute,
		BackgroundWorkers:  8,
		CheckpointDebounce: time.Second,
		Anthropic: ProviderCredentials{
			Models: []string{
				"claude-opus-4-1-responses",
				"claude-sonnet-4-5-responses",
				"claude-haiku-4-5-responses",
			},
		},
		OpenAICompat: ProviderCredentials{
			Models: []string{
				"gpt-4o-responses",
				"gpt-4o-mini-responses",
			},
		},
		Log:   log.DefaultConfig(),
		Trace: tracing.DefaultConfig(),
	}
}

// Load reads configuration from environment variables (RESPOND_* prefix) and
// an optional config file, merging the result onto Default().
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RESPOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("respond")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/respond")

	bindEnvAliases(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) { c.TagName = "conf" }); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(v, &cfg)

	merged := Default()
	if err := mergo.Merge(&merged, cfg, mergo.WithOverride); err != nil {
		return Config{}, err
	}

	return merged, nil
}

func bindEnvAliases(v *viper.Viper) {
	aliases := map[string]string{
		"api_keys":               "API_KEYS",
		"database_url":           "DATABASE_URL",
		"anthropic.api_key":      "ANTHROPIC_API_KEY",
		"anthropic.base_url":     "ANTHROPIC_BASE_URL",
		"openai_compat.api_key":  "OPENAI_COMPAT_API_KEY",
		"openai_compat.base_url": "OPENAI_COMPAT_BASE_URL",
		"s3.bucket":              "S3_BUCKET",
		"s3.region":              "S3_REGION",
		"s3.access_key_id":       "S3_ACCESS_KEY_ID",
		"s3.secret_access_key":   "S3_SECRET_ACCESS_KEY",
		"s3.endpoint":            "S3_ENDPOINT",
		"host":                   "HOST",
		"port":                   "PORT",
		"request_timeout":        "REQUEST_TIMEOUT",
		"llm_request_timeout":    "LLM_REQUEST_TIMEOUT",
		"background_workers":     "BACKGROUND_WORKERS",
		"checkpoint_debounce":    "CHECKPOINT_DEBOUNCE",
		"log.level":              "LOG_LEVEL",
		"log.format":             "LOG_FORMAT",
	}

	for key, env := range aliases {
		_ = v.BindEnv(key, env)
	}
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if csv := v.GetString("api_keys"); csv != "" {
		cfg.APIKeys = splitCSV(csv)
	}
}

func splitCSV(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
