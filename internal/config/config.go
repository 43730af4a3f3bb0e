// Package config loads alchemist settings from config.yaml and the
// environment using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// EnvPrefix is prepended to every config key when read from the
	// environment: llm.model becomes CV_ALCHEMIST_LLM_MODEL.
	EnvPrefix = "CV_ALCHEMIST"
)

// Config keys.
const (
	KeyStoreBackend   = "store.backend"
	KeyStoreDataDir   = "store.data_dir"
	KeyStoreRedisURL  = "store.redis_url"
	KeyStoreResultTTL = "store.result_ttl"
	KeyLLMModel       = "llm.model"
	KeyLLMProject     = "llm.project"
	KeyLLMLocation    = "llm.location"
	KeyLLMRateLimit   = "llm.rate_limit"
	KeyLLMBurst       = "llm.burst"
	KeyStripeAPIKey   = "stripe.api_key"
	KeyAppDir         = "app.dir"
	KeyAppMaxUploadMB = "app.max_upload_mb"
	KeyLogLevel       = "log.level"
)

// Defaults.
const (
	DefaultModel       = "gemini-2.0-flash-lite-001"
	DefaultLocation    = "us-central1"
	DefaultRateLimit   = 2.0
	DefaultBurst       = 5
	DefaultMaxUploadMB = 10
	DefaultLogLevel    = "info"
)

// Settings validation errors.
var (
	ErrRateLimitInvalid = errors.New("llm.rate_limit must be positive")
	ErrBurstInvalid     = errors.New("llm.burst must be at least 1")
	ErrUploadInvalid    = errors.New("app.max_upload_mb must be at least 1")
	ErrLogLevelUnknown  = errors.New("unknown log.level")
)

// LLM holds model selection and request throttling.
type LLM struct {
	Model     string  `mapstructure:"model" yaml:"model"`
	Project   string  `mapstructure:"project" yaml:"project,omitempty"`
	Location  string  `mapstructure:"location" yaml:"location"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst"`
}

// Stripe holds the payment processor credentials.
type Stripe struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
}

// App holds application file locations and request limits.
type App struct {
	Dir         string `mapstructure:"dir" yaml:"dir,omitempty"`
	MaxUploadMB int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// Log holds logger settings.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Settings is the decoded configuration shared by the master and workers.
type Settings struct {
	Store  types.Config `mapstructure:"store" yaml:"store"`
	LLM    LLM          `mapstructure:"llm" yaml:"llm"`
	Stripe Stripe       `mapstructure:"stripe" yaml:"stripe,omitempty"`
	App    App          `mapstructure:"app" yaml:"app"`
	Log    Log          `mapstructure:"log" yaml:"log"`
}

// Default returns Settings populated with built-in defaults.
func Default() Settings {
	return Settings{
		Store: types.Config{
			Backend:   types.BackendSQLite,
			ResultTTL: types.DefaultResultTTL,
		},
		LLM: LLM{
			Model:     DefaultModel,
			Location:  DefaultLocation,
			RateLimit: DefaultRateLimit,
			Burst:     DefaultBurst,
		},
		App: App{MaxUploadMB: DefaultMaxUploadMB},
		Log: Log{Level: DefaultLogLevel},
	}
}

// Validate checks the settings and the embedded store config.
func (s Settings) Validate() error {
	if err := s.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if s.LLM.RateLimit <= 0 {
		return ErrRateLimitInvalid
	}
	if s.LLM.Burst < 1 {
		return ErrBurstInvalid
	}
	if s.App.MaxUploadMB < 1 {
		return ErrUploadInvalid
	}
	switch strings.ToLower(s.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrLogLevelUnknown, s.Log.Level)
	}
	return nil
}

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# CV Alchemist configuration
# Every key can be overridden by CV_ALCHEMIST_<SECTION>_<KEY>.

store:
  # memory, sqlite or redis. sqlite is shared by every worker on the host.
  backend: sqlite
  # data_dir:
  # redis_url: redis://localhost:6379/0
  result_ttl: 24h

llm:
  model: gemini-2.0-flash-lite-001
  location: us-central1
  # project: (default: GOOGLE_CLOUD_PROJECT or application default credentials)
  rate_limit: 2
  burst: 5

app:
  # dir: (default: working directory)
  max_upload_mb: 10

log:
  level: info
`

// Load reads config.yaml from configDir, layering environment overrides on
// top. It creates the config directory and a default config.yaml on first
// run. A missing config.yaml is not an error.
func Load(configDir string) (*Settings, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := newViper()
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

// FromEnv builds Settings from defaults and environment variables only.
// Workers use it when the master hands them no config directory.
func FromEnv() (*Settings, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault(KeyStoreBackend, d.Store.Backend)
	v.SetDefault(KeyStoreDataDir, "")
	v.SetDefault(KeyStoreRedisURL, "")
	v.SetDefault(KeyStoreResultTTL, d.Store.ResultTTL)
	v.SetDefault(KeyLLMModel, d.LLM.Model)
	v.SetDefault(KeyLLMProject, "")
	v.SetDefault(KeyLLMLocation, d.LLM.Location)
	v.SetDefault(KeyLLMRateLimit, d.LLM.RateLimit)
	v.SetDefault(KeyLLMBurst, d.LLM.Burst)
	v.SetDefault(KeyStripeAPIKey, "")
	v.SetDefault(KeyAppDir, "")
	v.SetDefault(KeyAppMaxUploadMB, d.App.MaxUploadMB)
	v.SetDefault(KeyLogLevel, d.Log.Level)

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Platform names win over the prefixed form.
	_ = v.BindEnv(KeyStripeAPIKey, "STRIPE_API_KEY", EnvPrefix+"_STRIPE_API_KEY")
	_ = v.BindEnv(KeyLLMProject, "GOOGLE_CLOUD_PROJECT", EnvPrefix+"_LLM_PROJECT")
	return v
}

func decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	s.Log.Level = strings.ToLower(s.Log.Level)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DefaultYAML returns the content Load writes on first run.
func DefaultYAML() string {
	return defaultConfigYAML
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// Path returns the config.yaml location inside configDir.
func Path(configDir string) string {
	return filepath.Join(configDir, configFileExt)
}

