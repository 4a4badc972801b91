package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cost-control-api/internal/logging"

	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string `yaml:"environment"`
	ListenAddr  string `yaml:"listen_addr"`

	DatabaseDSN      string `yaml:"db_dsn"`
	DatabaseSecret   string `yaml:"database_secret_arn"`
	RDSProxyEndpoint string `yaml:"rds_proxy_endpoint"`
	DatabaseSSLMode  string `yaml:"db_sslmode"`

	AWSRegion  string `yaml:"aws_region"`
	VaultAddr  string `yaml:"vault_addr"`
	VaultToken string `yaml:"-"`

	JWTSecret   string        `yaml:"-"`
	JWTIssuer   string        `yaml:"jwt_iss"`
	JWTAudience string        `yaml:"jwt_aud"`
	JWTExpiry   time.Duration `yaml:"jwt_expiry"`

	LogLevel      string        `yaml:"log_level"`
	LogJSON       bool          `yaml:"log_json"`
	EnableMetrics bool          `yaml:"enable_metrics"`
	EnableSwagger bool          `yaml:"enable_swagger"`
	DrainDuration time.Duration `yaml:"drain_duration"`

	ImportMappingPath string `yaml:"import_mapping_path"`
}

func defaults() *Config {
	return &Config{
		Environment:     "development",
		ListenAddr:      ":8080",
		DatabaseSSLMode: "require",
		AWSRegion:       "us-east-1",
		JWTSecret:       defaultJWTSecret,
		JWTIssuer:       "cost-control-api",
		JWTAudience:     "cost-control-api",
		JWTExpiry:       24 * time.Hour,
		LogLevel:        "info",
		DrainDuration:   5 * time.Second,
	}
}

// Load reads configuration from the environment.
func Load() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile overlays a YAML file on the defaults. Environment variables
// still take precedence. Secrets are never read from the file.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// LoadAndValidate loads from path when given, otherwise from the
// environment alone, and validates the result.
func LoadAndValidate(path ...string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if len(path) > 0 && path[0] != "" {
		if cfg, err = LoadFile(path[0]); err != nil {
			return nil, err
		}
	} else {
		cfg = Load()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Environment, "ENVIRONMENT")
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.DatabaseDSN, "DB_DSN")
	setString(&c.DatabaseSecret, "DATABASE_SECRET_ARN")
	setString(&c.RDSProxyEndpoint, "RDS_PROXY_ENDPOINT")
	setString(&c.DatabaseSSLMode, "DB_SSLMODE")
	setString(&c.AWSRegion, "AWS_REGION")
	setString(&c.VaultAddr, "VAULT_ADDR")
	setString(&c.VaultToken, "VAULT_TOKEN")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.JWTIssuer, "JWT_ISS")
	setString(&c.JWTAudience, "JWT_AUD")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.ImportMappingPath, "IMPORT_MAPPING_PATH")

	// Parse JWT expiry from environment if provided
	if v := os.Getenv("JWT_EXPIRY"); v != "" {
		if expiry, err := time.ParseDuration(v); err == nil {
			c.JWTExpiry = expiry
		}
	}
	if v := os.Getenv("DRAIN_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.DrainDuration = time.Duration(secs) * time.Second
		}
	}
	setBool(&c.LogJSON, "LOG_JSON")
	setBool(&c.EnableMetrics, "ENABLE_METRICS")
	setBool(&c.EnableSwagger, "ENABLE_SWAGGER")
}

func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" && c.DatabaseSecret == "" {
		errs = append(errs, errors.New("either DB_DSN or DATABASE_SECRET_ARN is required"))
	}
	if strings.HasPrefix(c.DatabaseSecret, "vault://") && c.VaultAddr == "" && c.DatabaseDSN == "" {
		errs = append(errs, errors.New("VAULT_ADDR is required for vault:// secret references"))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET cannot be empty"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters long"))
	}
	if c.IsProduction() && c.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be changed from the default in production"))
	}
	if c.JWTIssuer == "" {
		errs = append(errs, errors.New("JWT_ISS cannot be empty"))
	}
	if c.JWTAudience == "" {
		errs = append(errs, errors.New("JWT_AUD cannot be empty"))
	}
	switch {
	case c.JWTExpiry <= 0:
		errs = append(errs, errors.New("JWT_EXPIRY must be positive"))
	case c.JWTExpiry < time.Minute:
		errs = append(errs, errors.New("JWT_EXPIRY must be at least 1 minute"))
	case c.JWTExpiry > 30*24*time.Hour:
		errs = append(errs, errors.New("JWT_EXPIRY cannot exceed 30 days"))
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.DrainDuration < 0 {
		errs = append(errs, errors.New("DRAIN_SECONDS cannot be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
