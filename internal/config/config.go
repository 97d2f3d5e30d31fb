package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`

	Server struct {
		Address      string        `mapstructure:"address"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Storage struct {
		Driver string `mapstructure:"driver"`
		Seed   bool   `mapstructure:"seed"`
	} `mapstructure:"storage"`
	DB struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"db"`
	Backend struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"backend"`
	Execution struct {
		StepDelay     time.Duration `mapstructure:"step_delay"`
		SettleDelay   time.Duration `mapstructure:"settle_delay"`
		FallbackGrace time.Duration `mapstructure:"fallback_grace"`
		DefaultMode   string        `mapstructure:"default_mode"`
	} `mapstructure:"execution"`
	Auth struct {
		Username        string `mapstructure:"username"`
		Password        string `mapstructure:"password"`
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Runner struct {
		Address        string        `mapstructure:"address"`
		RemoteURL      string        `mapstructure:"remote_url"`
		Headless       bool          `mapstructure:"headless"`
		StepTimeout    time.Duration `mapstructure:"step_timeout"`
		AllowedOrigins []string      `mapstructure:"allowed_origins"`
	} `mapstructure:"runner"`

	// ConfigFile is the file the values were read from, empty when none was found.
	ConfigFile string `mapstructure:"-"`
}

// OIDCEnabled reports whether an OpenID Connect provider is configured.
func (c *Config) OIDCEnabled() bool {
	return c.Auth.OktaDomain != "" && c.Auth.ClientID != ""
}

// DSN returns the PostgreSQL connection string for the db section.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "DEV")
	v.SetDefault("server.address", ":8090")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.seed", true)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "autoflow")
	v.SetDefault("db.name", "autoflow")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("backend.url", "http://localhost:8080")
	v.SetDefault("backend.timeout", 5*time.Minute)
	v.SetDefault("execution.step_delay", 800*time.Millisecond)
	v.SetDefault("execution.settle_delay", 500*time.Millisecond)
	v.SetDefault("execution.fallback_grace", 3*time.Second)
	v.SetDefault("execution.default_mode", "SIMULATED")
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "admin")
	// Keys without a meaningful default are still registered so that
	// AutomaticEnv can populate them during Unmarshal.
	for _, key := range []string{
		"db.password",
		"auth.okta_domain", "auth.client_id", "auth.client_secret",
		"auth.redirect_url", "auth.swagger_client_id",
		"tls.cert_file", "tls.key_file",
		"runner.remote_url",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("dev_mode_bypass", false)
	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.hostnames", []string{})
	v.SetDefault("runner.address", ":8080")
	v.SetDefault("runner.headless", true)
	v.SetDefault("runner.step_timeout", 30*time.Second)
	v.SetDefault("runner.allowed_origins", []string{"*"})
}

// LoadConfig loads the configuration from a file and the environment. When
// path is empty, config.yaml is searched in . and ./config and may be absent.
// Environment variables use the AUTOFLOW_ prefix, e.g. AUTOFLOW_BACKEND_URL.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("AUTOFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.ConfigFile = v.ConfigFileUsed()

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)
	config.Backend.URL = strings.TrimRight(strings.TrimSpace(config.Backend.URL), "/")

	return &config, nil
}

// normalizeOktaIssuer ensures the provided Okta issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact.
func normalizeOktaIssuer(input string) string {
	iss := strings.TrimSpace(input)
	if strings.HasSuffix(iss, "/") {
		iss = strings.TrimRight(iss, "/")
	}
	return iss
}
