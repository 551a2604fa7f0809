package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSessionSecret is only meant for local development; main warns when it is in use.
const DefaultSessionSecret = "default-very-insecure-session-secret"

type Config struct {
	HTTPPort     int                `mapstructure:"http_port"`
	GRPCPort     int                `mapstructure:"grpc_port"`
	LogLevel     string             `mapstructure:"log_level"`
	ServiceName  string             `mapstructure:"service_name"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Admin        AdminConfig        `mapstructure:"admin"`
	Session      SessionConfig      `mapstructure:"session"`
	CookieBanner CookieBannerConfig `mapstructure:"cookie_banner"`
	Consul       ConsulConfig       `mapstructure:"consul"`
}

type DatabaseConfig struct {
	// Driver is one of postgres, mysql or sqlite.
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// AdminConfig is the account seeded on an empty users table.
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type SessionConfig struct {
	Secret       string        `mapstructure:"secret"`
	Backend      string        `mapstructure:"backend"` // memory or database
	Timeout      time.Duration `mapstructure:"timeout"`
	CookieName   string        `mapstructure:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type CookieBannerConfig struct {
	Name string `mapstructure:"name"`
}

type ConsulConfig struct {
	// Address of the Consul agent. Registration is skipped when empty.
	Address string `mapstructure:"address"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8080)
	v.SetDefault("grpc_port", 50051)
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "acronym-center")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "host=localhost user=vapor password=password dbname=vapor port=5432 sslmode=disable")

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.password", "password")

	v.SetDefault("session.secret", DefaultSessionSecret) // CHANGE THIS IN PRODUCTION
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.timeout", 24*time.Hour)
	v.SetDefault("session.cookie_name", "acronyms_session")
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("cookie_banner.name", "cookies-accepted")
	v.SetDefault("consul.address", "")
}

// Load reads config.yaml from the given search paths (or . and ./config when
// none are given) and applies ACRONYMS_* environment overrides. A missing
// file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides, e.g. ACRONYMS_DATABASE_URL
	v.SetEnvPrefix("ACRONYMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the rest of the application cannot work with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Session.Backend {
	case "memory", "database":
	default:
		return fmt.Errorf("unsupported session backend %q", c.Session.Backend)
	}
	if c.Session.Timeout <= 0 {
		return errors.New("session timeout must be positive")
	}
	if c.Session.Secret == "" {
		return errors.New("session secret is required")
	}
	return nil
}

// InitConfig fills AppConfig and panics when the configuration cannot be used.
func InitConfig() {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Errorf("fatal error loading config: %w", err))
	}
	AppConfig = *cfg
}
