// Package config loads the immutable process configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	MailTransportLog  = "log"
	MailTransportSMTP = "smtp"
	MailTransportAMQP = "amqp"
)

// Config is built once by Load and must not be modified afterwards
type Config struct {
	Environment string
	HTTPPort    string
	GRPCPort    string
	DatabaseURL string
	CORSOrigins []string
	TrustProxy  bool

	JWT  JWTConfig
	Log  LogConfig
	Mail MailConfig
}

type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
	Issuer    string
}

type LogConfig struct {
	Level  string
	Format string
}

type MailConfig struct {
	Transport   string
	FromName    string
	FromAddress string
	SMTP        SMTPConfig
	AMQP        AMQPConfig
}

type SMTPConfig struct {
	Host   string
	Port   int
	User   string
	Pass   string
	Secure bool
}

type AMQPConfig struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string
}

// IsDevelopment reports whether relaxed startup checks apply
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// envBindings maps config keys to the environment variables the service has always read
var envBindings = map[string]string{
	"environment":           "ENVIRONMENT",
	"http_port":             "HTTP_PORT",
	"grpc_port":             "GRPC_PORT",
	"database_url":          "DATABASE_URL",
	"cors_origin":           "CORS_ORIGIN",
	"trust_proxy":           "TRUST_PROXY",
	"jwt.secret":            "JWT_SECRET_KEY",
	"jwt.expires_in":        "JWT_EXPIRES_IN",
	"jwt.issuer":            "JWT_ISSUER",
	"log.level":             "LOG_LEVEL",
	"log.format":            "LOG_FORMAT",
	"mail.transport":        "MAIL_TRANSPORT",
	"mail.from_name":        "MAIL_FROM_NAME",
	"mail.from_address":     "MAIL_FROM_ADDRESS",
	"mail.smtp.host":        "SMTP_HOST",
	"mail.smtp.port":        "SMTP_PORT",
	"mail.smtp.user":        "SMTP_USER",
	"mail.smtp.pass":        "SMTP_PASS",
	"mail.smtp.secure":      "SMTP_SECURE",
	"mail.amqp.url":         "AMQP_URL",
	"mail.amqp.exchange":    "MAIL_EXCHANGE",
	"mail.amqp.queue":       "MAIL_QUEUE",
	"mail.amqp.routing_key": "MAIL_ROUTING_KEY",
}

// LoadDotenv loads the first .env found in the working directory or its parents.
// Variables already present in the environment win.
func LoadDotenv() string {
	for _, p := range []string{".env", filepath.Join("..", ".env"), filepath.Join("..", "..", ".env")} {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// Load reads configuration from the environment and an optional config file
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("http_port", "8080")
	v.SetDefault("grpc_port", "9081")
	v.SetDefault("cors_origin", "http://localhost:4200")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("jwt.expires_in", "1d")
	v.SetDefault("jwt.issuer", "taskhub-identity")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("mail.transport", MailTransportLog)
	v.SetDefault("mail.from_name", "SimplCase")
	v.SetDefault("mail.smtp.host", "smtp.gmail.com")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.secure", false)
	v.SetDefault("mail.amqp.exchange", "mail")
	v.SetDefault("mail.amqp.queue", "mail.outbound")
	v.SetDefault("mail.amqp.routing_key", "mail.send")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config bind %s: %w", key, err)
		}
	}

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/taskhub-identity")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	expiresIn, err := ParseDuration(v.GetString("jwt.expires_in"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRES_IN: %w", err)
	}

	cfg := &Config{
		Environment: strings.ToLower(v.GetString("environment")),
		HTTPPort:    v.GetString("http_port"),
		GRPCPort:    v.GetString("grpc_port"),
		DatabaseURL: v.GetString("database_url"),
		CORSOrigins: splitOrigins(v.GetString("cors_origin")),
		TrustProxy:  v.GetBool("trust_proxy"),
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			ExpiresIn: expiresIn,
			Issuer:    v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Mail: MailConfig{
			Transport:   strings.ToLower(v.GetString("mail.transport")),
			FromName:    v.GetString("mail.from_name"),
			FromAddress: v.GetString("mail.from_address"),
			SMTP: SMTPConfig{
				Host:   v.GetString("mail.smtp.host"),
				Port:   v.GetInt("mail.smtp.port"),
				User:   v.GetString("mail.smtp.user"),
				Pass:   v.GetString("mail.smtp.pass"),
				Secure: v.GetBool("mail.smtp.secure"),
			},
			AMQP: AMQPConfig{
				URL:        v.GetString("mail.amqp.url"),
				Exchange:   v.GetString("mail.amqp.exchange"),
				Queue:      v.GetString("mail.amqp.queue"),
				RoutingKey: v.GetString("mail.amqp.routing_key"),
			},
		},
	}
	if cfg.Mail.FromAddress == "" {
		cfg.Mail.FromAddress = cfg.Mail.SMTP.User
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.ExpiresIn <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRES_IN must be positive"))
	}

	switch c.Mail.Transport {
	case MailTransportLog:
		if !c.IsDevelopment() {
			errs = append(errs, errors.New("MAIL_TRANSPORT=log is only allowed in development"))
		}
	case MailTransportSMTP:
		if c.Mail.SMTP.Host == "" || c.Mail.SMTP.Port == 0 {
			errs = append(errs, errors.New("SMTP_HOST and SMTP_PORT are required for smtp transport"))
		}
		if c.Mail.FromAddress == "" {
			errs = append(errs, errors.New("MAIL_FROM_ADDRESS or SMTP_USER is required for smtp transport"))
		}
	case MailTransportAMQP:
		if c.Mail.AMQP.URL == "" {
			errs = append(errs, errors.New("AMQP_URL is required for amqp transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_TRANSPORT %q", c.Mail.Transport))
	}

	if !c.IsDevelopment() {
		if len(c.JWT.Secret) < 32 {
			errs = append(errs, errors.New("JWT_SECRET_KEY must be at least 32 bytes"))
		}
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required"))
		}
	}

	return errors.Join(errs...)
}

// ParseDuration accepts Go durations plus a day suffix ("1d", "7d") and bare seconds
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, p := range strings.Split(raw, ",") {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
