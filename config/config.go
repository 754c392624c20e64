package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goliatone/go-approval"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Token    TokenConfig    `mapstructure:"token"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Google   GoogleConfig   `mapstructure:"google"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Debug           bool          `mapstructure:"debug"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type TokenConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   []string      `mapstructure:"audience"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type ApprovalConfig struct {
	AdminAllowList     []string `mapstructure:"admin_allow_list"`
	ResubmissionPolicy string   `mapstructure:"resubmission_policy"`
	ValidatePayload    bool     `mapstructure:"validate_payload"`
}

type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
	JWKSURL  string `mapstructure:"jwks_url"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

var _ approval.Config = (*Config)(nil)

// Loader reads configuration and keeps the viper instance around so the
// file can be watched for changes.
type Loader struct {
	v       *viper.Viper
	envFile string

	mu      sync.Mutex
	current *Config
}

type Option func(*Loader)

// WithConfigFile reads an explicit file instead of searching the default paths.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		if path != "" {
			l.v.SetConfigFile(path)
		}
	}
}

// WithEnvFile loads a dotenv file before reading the environment.
func WithEnvFile(path string) Option {
	return func(l *Loader) {
		l.envFile = path
	}
}

func NewLoader(opts ...Option) *Loader {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug", false)
	v.SetDefault("database.dsn", "file:approval.db?cache=shared")
	v.SetDefault("token.signing_key", "")
	v.SetDefault("token.issuer", "go-approval")
	v.SetDefault("token.audience", []string{"go-approval"})
	v.SetDefault("token.expiration", "1h")
	v.SetDefault("approval.admin_allow_list", []string{})
	v.SetDefault("approval.resubmission_policy", string(approval.ResubmitOverwrite))
	v.SetDefault("approval.validate_payload", false)
	v.SetDefault("google.client_id", "")
	v.SetDefault("google.jwks_url", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("logging.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/go-approval")

	v.SetEnvPrefix("APPROVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	l := &Loader{v: v}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Load is a shortcut for NewLoader(opts...).Load().
func Load(opts ...Option) (*Config, error) {
	return NewLoader(opts...).Load()
}

func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Watch calls fn with the freshly decoded config every time the config file
// changes. Invalid edits are reported through onError and keep the previous
// config in place.
func (l *Loader) Watch(fn func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}

		l.mu.Lock()
		l.current = cfg
		l.mu.Unlock()

		if fn != nil {
			fn(cfg)
		}
	})
	l.v.WatchConfig()
}

// Current returns the last successfully loaded config.
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Token.SigningKey == "" {
		return fmt.Errorf("token.signing_key is required")
	}
	if c.Token.Expiration <= 0 {
		return fmt.Errorf("token.expiration must be positive")
	}
	switch approval.ResubmissionPolicy(strings.ToLower(strings.TrimSpace(c.Approval.ResubmissionPolicy))) {
	case approval.ResubmitOverwrite, approval.ResubmitReject:
	default:
		return fmt.Errorf("approval.resubmission_policy must be %q or %q", approval.ResubmitOverwrite, approval.ResubmitReject)
	}
	return nil
}

func (c *Config) GetSigningKey() string {
	return c.Token.SigningKey
}

func (c *Config) GetIssuer() string {
	return c.Token.Issuer
}

func (c *Config) GetAudience() []string {
	return c.Token.Audience
}

func (c *Config) GetTokenExpiration() time.Duration {
	return c.Token.Expiration
}

func (c *Config) GetAdminAllowList() []string {
	return c.Approval.AdminAllowList
}

func (c *Config) GetResubmissionPolicy() string {
	return c.Approval.ResubmissionPolicy
}

func (c *Config) GetValidatePayload() bool {
	return c.Approval.ValidatePayload
}
