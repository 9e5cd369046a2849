package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "KAKEIBO"

	// DefaultSessionSecret only exists so a fresh checkout boots; the
	// server warns while it is in use.
	DefaultSessionSecret   = "kakeibo-development-session-secret-change-me"
	DefaultAdminUsername   = "admin"
	DefaultAdminPassword   = "r246"
	DefaultSessionCookie   = "kakeibo_session"
	DefaultSQLiteSource    = "data/expenses.db"
	DefaultRateLimitWindow = 15 * time.Minute
)

type Config struct {
	AppEnv    string          `mapstructure:"app_env" validate:"required,oneof=development production test"`
	Server    ServerConfig    `mapstructure:"http_server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	TrustProxy        bool          `mapstructure:"trust_proxy"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	Source          string        `mapstructure:"source" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
}

type SecurityConfig struct {
	AdminUsername   string `mapstructure:"admin_username" validate:"required"`
	DefaultPassword string `mapstructure:"default_password" validate:"required"`
	BCryptCost      int    `mapstructure:"bcrypt_cost" validate:"required,min=4,max=15"`
	SessionSecret   string `mapstructure:"session_secret" validate:"required,min=32"`
	CookieName      string `mapstructure:"cookie_name" validate:"required"`
	CookieSecure    bool   `mapstructure:"cookie_secure"`
}

type SessionConfig struct {
	Store         string        `mapstructure:"store" validate:"required,oneof=memory redis"`
	TTL           time.Duration `mapstructure:"ttl" validate:"required,min=1m"`
	Rolling       bool          `mapstructure:"rolling"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required,min=1s"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"min=0"`
	KeyPrefix string `mapstructure:"key_prefix"`

	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type RateLimitConfig struct {
	Window        time.Duration `mapstructure:"window" validate:"required,min=1s"`
	GlobalMax     int           `mapstructure:"global_max" validate:"required,min=1"`
	LoginMax      int           `mapstructure:"login_max" validate:"required,min=1"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"required,min=1s"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SetDefaults registers every key so env overrides reach Unmarshal even
// when config.yml omits the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_env", "development")

	v.SetDefault("http_server.port", 3000)
	v.SetDefault("http_server.allowed_origins", "")
	v.SetDefault("http_server.trust_proxy", false)
	v.SetDefault("http_server.read_header_timeout", 5*time.Second)
	v.SetDefault("http_server.read_timeout", 15*time.Second)
	v.SetDefault("http_server.idle_timeout", 60*time.Second)
	v.SetDefault("http_server.write_timeout", 15*time.Second)
	v.SetDefault("http_server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.source", DefaultSQLiteSource)
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 15*time.Minute)

	v.SetDefault("security.admin_username", DefaultAdminUsername)
	v.SetDefault("security.default_password", DefaultAdminPassword)
	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.session_secret", DefaultSessionSecret)
	v.SetDefault("security.cookie_name", DefaultSessionCookie)
	v.SetDefault("security.cookie_secure", false)

	v.SetDefault("session.store", "memory")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.rolling", false)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key_prefix", "kakeibo:session:")
	v.SetDefault("session.redis.dial_timeout", "5s")

	v.SetDefault("rate_limit.window", DefaultRateLimitWindow)
	v.SetDefault("rate_limit.global_max", 100)
	v.SetDefault("rate_limit.login_max", 5)
	v.SetDefault("rate_limit.sweep_interval", time.Minute)

	v.SetDefault("logging.level", "info")
}

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// APP_ENV is also honoured, it selects env-only loading in cmd
	_ = v.BindEnv("app_env", EnvPrefix+"_APP_ENV", "APP_ENV")
	return v
}

// LoadConfig reads config.yml from path (optional), then .env, then
// KAKEIBO_* environment variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, err
	}

	v := newViper()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	return unmarshalConfig(v)
}

// LoadConfigFromEnv ignores config files entirely, for container
// deployments where everything arrives through the environment.
func LoadConfigFromEnv() (*Config, error) {
	return unmarshalConfig(newViper())
}

func loadDotEnv(path string) error {
	err := godotenv.Load(filepath.Join(path, ".env"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}
	return &cfg, nil
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New()

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("session config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	for _, origin := range c.Origins() {
		if origin == "*" {
			continue
		}
		if _, err := url.Parse(origin); err != nil {
			return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

// Origins splits the comma separated allowed_origins list.
func (c *ServerConfig) Origins() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

var dsnPassword = regexp.MustCompile(`password=('[^']*'|\S+)`)

// RedactedDSN is the source with any password masked, for logging.
func (c *DatabaseConfig) RedactedDSN() string {
	if c.Driver == "sqlite" {
		return c.Source
	}
	if u, err := url.Parse(c.Source); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return dsnPassword.ReplaceAllString(c.Source, "password=xxxxx")
}

func (c *SessionConfig) Validate() error {
	if c.Store == "redis" && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when store is redis")
	}
	return nil
}
