package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/surgeo/internal/db"
)

// Config holds the full application configuration.
type Config struct {
	Data       DataConfig       `yaml:"data" mapstructure:"data"`
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the probability tables.
type DataConfig struct {
	Source      string        `yaml:"source" mapstructure:"source" validate:"oneof=file sqlite postgres"`
	Dir         string        `yaml:"dir" mapstructure:"dir"`
	SnapshotDir string        `yaml:"snapshot_dir" mapstructure:"snapshot_dir"`
	SQLitePath  string        `yaml:"sqlite_path" mapstructure:"sqlite_path" validate:"required_if=Source sqlite"`
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url" validate:"required_if=Source postgres"`
	Schema      string        `yaml:"schema" mapstructure:"schema" validate:"required"`
	Manifest    string        `yaml:"manifest" mapstructure:"manifest"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ModelConfig configures estimation behaviour.
type ModelConfig struct {
	MissingPolicy string `yaml:"missing_policy" mapstructure:"missing_policy" validate:"oneof=nan national"`
	Precision     int    `yaml:"precision" mapstructure:"precision" validate:"gte=-1,lte=17"`
}

// InputConfig configures how batch files are read.
type InputConfig struct {
	Columns ColumnConfig `yaml:"default_columns" mapstructure:"default_columns"`
}

// ColumnConfig names the input columns read for each proxy.
type ColumnConfig struct {
	Surname   string `yaml:"surname" mapstructure:"surname" validate:"required"`
	FirstName string `yaml:"first_name" mapstructure:"first_name" validate:"required"`
	ZCTA      string `yaml:"zcta" mapstructure:"zcta" validate:"required"`
	State     string `yaml:"state" mapstructure:"state" validate:"required"`
	County    string `yaml:"county" mapstructure:"county" validate:"required"`
	Tract     string `yaml:"tract" mapstructure:"tract" validate:"required"`
}

// TractColumns returns the state, county and tract column names in
// positional order.
func (c ColumnConfig) TractColumns() []string {
	return []string{c.State, c.County, c.Tract}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port" validate:"gte=1,lte=65535"`
	RateLimit   float64  `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gt=0"`
	Burst       int      `yaml:"burst" mapstructure:"burst" validate:"gte=1"`
	MaxBatch    int      `yaml:"max_batch" mapstructure:"max_batch" validate:"gte=1"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background health checker run by serve.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
	MissingRateThreshold float64 `yaml:"missing_rate_threshold" mapstructure:"missing_rate_threshold" validate:"gte=0,lte=1"`
	MinRows              int64   `yaml:"min_rows" mapstructure:"min_rows" validate:"gte=0"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type section struct {
	name string
	v    any
}

// Validate checks the sections a command depends on. Mode is one of "run",
// "serve" or "tables".
func (c *Config) Validate(mode string) error {
	sections := []section{
		{"data", &c.Data},
		{"model", &c.Model},
		{"log", &c.Log},
	}
	switch mode {
	case "run":
		sections = append(sections, section{"input", &c.Input})
	case "serve":
		sections = append(sections, section{"server", &c.Server}, section{"monitoring", &c.Monitoring})
	case "tables":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var errs []string
	for _, sec := range sections {
		err := validate.Struct(sec.v)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrapf(err, "config: validate %s", sec.name)
		}
		for _, fe := range verrs {
			errs = append(errs, describe(sec.name, fe))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func describe(name string, fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Sprintf("%s.%s must satisfy %s (got %v)", name, path, rule, fe.Value())
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SURGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("data.source", "file")
	v.SetDefault("data.dir", "./data")
	v.SetDefault("data.snapshot_dir", "")
	v.SetDefault("data.sqlite_path", "surgeo.db")
	v.SetDefault("data.database_url", "")
	v.SetDefault("data.schema", "bisg")
	v.SetDefault("data.manifest", "manifest.yaml")
	v.SetDefault("data.pool.max_conns", 4)
	v.SetDefault("data.pool.min_conns", 0)
	v.SetDefault("data.pool.connect_attempts", 3)
	v.SetDefault("model.missing_policy", "nan")
	v.SetDefault("model.precision", 4)
	v.SetDefault("input.default_columns.surname", "name")
	v.SetDefault("input.default_columns.first_name", "first_name")
	v.SetDefault("input.default_columns.zcta", "zcta5")
	v.SetDefault("input.default_columns.state", "state")
	v.SetDefault("input.default_columns.county", "county")
	v.SetDefault("input.default_columns.tract", "tract")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 50)
	v.SetDefault("server.burst", 100)
	v.SetDefault("server.max_batch", 100000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.missing_rate_threshold", 0.25)
	v.SetDefault("monitoring.min_rows", 100)
	v.SetDefault("monitoring.webhook_url", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
