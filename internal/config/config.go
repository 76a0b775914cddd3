package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"songdwh/internal/catalog"
	"songdwh/internal/common"
	"songdwh/pkg/errors"
)

// Config is the resolved configuration of one run
type Config struct {
	Dialect   string          `mapstructure:"dialect" yaml:"dialect"`
	Warehouse WarehouseConfig `mapstructure:"warehouse" yaml:"warehouse"`
	IAMRole   IAMRoleConfig   `mapstructure:"iam_role" yaml:"iam_role"`
	S3        S3Config        `mapstructure:"s3" yaml:"s3"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// WarehouseConfig holds connection settings. Host/Port apply to redshift
// and postgres, Account/Warehouse/Role to snowflake.
type WarehouseConfig struct {
	Host             string        `mapstructure:"host" yaml:"host"`
	Port             int           `mapstructure:"port" yaml:"port"`
	Database         string        `mapstructure:"database" yaml:"database"`
	Schema           string        `mapstructure:"schema" yaml:"schema,omitempty"`
	User             string        `mapstructure:"user" yaml:"user"`
	Password         string        `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode          string        `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
	Account          string        `mapstructure:"account" yaml:"account,omitempty"`
	Warehouse        string        `mapstructure:"warehouse" yaml:"warehouse,omitempty"`
	Role             string        `mapstructure:"role" yaml:"role,omitempty"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" yaml:"statement_timeout"`
}

// IAMRoleConfig is the role the warehouse assumes to read the bucket
type IAMRoleConfig struct {
	ARN string `mapstructure:"arn" yaml:"arn"`
}

// S3Config locates the raw JSON sources
type S3Config struct {
	LogData  string `mapstructure:"log_data" yaml:"log_data"`
	SongData string `mapstructure:"song_data" yaml:"song_data"`
	Region   string `mapstructure:"region" yaml:"region,omitempty"`
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LoadOptions controls where configuration is read from
type LoadOptions struct {
	// Path is an explicit config file; YAML, or INI for .cfg/.ini files.
	Path string
	// Flags are bound over file and environment values when set.
	Flags *pflag.FlagSet
}

const (
	EnvPrefix       = "SONGDWH"
	DefaultFileName = "config.yaml"
	LocalFileName   = "songdwh"
	RedshiftPort    = 5439
	PostgresPort    = 5432
)

// boundFlags maps command-line flags onto config keys.
var boundFlags = map[string]string{
	"dialect":    "dialect",
	"log-level":  "logging.level",
	"log-format": "logging.format",
}

// legacyKeys maps the INI layout of dwh.cfg onto config keys.
var legacyKeys = map[string][]string{
	"warehouse.host":     {"cluster.host"},
	"warehouse.database": {"cluster.db_name"},
	"warehouse.user":     {"cluster.db_user"},
	"warehouse.password": {"cluster.db_password"},
	"warehouse.port":     {"cluster.db_port"},
	"iam_role.arn":       {"iam_role.arn", "dwh.dwh_iam_role_arn"},
	"s3.log_data":        {"s3.log_data"},
	"s3.song_data":       {"s3.song_data"},
	"s3.region":          {"s3.region", "cluster.region", "dwh.dwh_region"},
}

// GetConfigPath returns the per-user configuration directory
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".songdwh")
}

// GetConfigFile returns the per-user configuration file
func GetConfigFile() string {
	return filepath.Join(GetConfigPath(), DefaultFileName)
}

// Save writes cfg as YAML. The password is never written; it belongs in
// the keyring or the environment.
func Save(cfg *Config, path string) error {
	path, err := common.CleanPath(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid config file path")
	}

	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *cfg
	out.Warehouse.Password = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, common.FilePermissionSecure); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists reports whether the per-user config file is present
func Exists() bool {
	return FileExists(GetConfigFile())
}

// FileExists reports whether path names an existing file
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// discoverConfig returns the first config file found in the working
// directory or the per-user directory
func discoverConfig() string {
	for _, candidate := range []string{LocalFileName + ".yaml", GetConfigFile()} {
		if FileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", catalog.DialectRedshift)
	v.SetDefault("warehouse.host", "")
	v.SetDefault("warehouse.port", 0)
	v.SetDefault("warehouse.database", "")
	v.SetDefault("warehouse.schema", "")
	v.SetDefault("warehouse.user", "")
	v.SetDefault("warehouse.password", "")
	v.SetDefault("warehouse.sslmode", "require")
	v.SetDefault("warehouse.account", "")
	v.SetDefault("warehouse.warehouse", "")
	v.SetDefault("warehouse.role", "")
	v.SetDefault("warehouse.connect_timeout", 30*time.Second)
	v.SetDefault("warehouse.statement_timeout", time.Duration(0))
	v.SetDefault("iam_role.arn", "")
	v.SetDefault("s3.log_data", "")
	v.SetDefault("s3.song_data", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load resolves configuration from file, environment and flags, in
// increasing order of precedence.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	legacy := false
	path := opts.Path
	if path == "" {
		path = discoverConfig()
	}

	if path != "" {
		clean, err := common.CleanPath(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid config file path").
				WithContext("path", path)
		}
		v.SetConfigFile(clean)
		if ext := strings.ToLower(filepath.Ext(clean)); ext == ".cfg" || ext == ".ini" {
			v.SetConfigType("ini")
			legacy = true
		}

		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound, "Failed to read configuration").
				WithContext("path", clean)
		}
	}

	if opts.Flags != nil {
		for flag, key := range boundFlags {
			if f := opts.Flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to bind flag").
						WithContext("flag", flag)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to decode configuration")
	}

	if legacy {
		if err := applyLegacy(v, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.Dialect = strings.ToLower(strings.TrimSpace(cfg.Dialect))
	if cfg.Warehouse.Port == 0 {
		cfg.Warehouse.Port = defaultPort(cfg.Dialect)
	}

	return &cfg, nil
}

// applyLegacy fills fields left empty by the new layout from dwh.cfg keys.
// configparser files often quote values, so surrounding quotes are dropped.
func applyLegacy(v *viper.Viper, cfg *Config) error {
	targets := map[string]*string{
		"warehouse.host":     &cfg.Warehouse.Host,
		"warehouse.database": &cfg.Warehouse.Database,
		"warehouse.user":     &cfg.Warehouse.User,
		"warehouse.password": &cfg.Warehouse.Password,
		"iam_role.arn":       &cfg.IAMRole.ARN,
		"s3.log_data":        &cfg.S3.LogData,
		"s3.song_data":       &cfg.S3.SongData,
		"s3.region":          &cfg.S3.Region,
	}

	for key, field := range targets {
		*field = Unquote(*field)
		if *field != "" {
			continue
		}
		if value, ok := legacyValue(v, key); ok {
			*field = value
		}
	}

	if cfg.Warehouse.Port == 0 {
		if value, ok := legacyValue(v, "warehouse.port"); ok {
			var port int
			if _, err := fmt.Sscanf(value, "%d", &port); err != nil {
				return errors.ValidationError("warehouse.port", value, "not a number")
			}
			cfg.Warehouse.Port = port
		}
	}

	return nil
}

func legacyValue(v *viper.Viper, key string) (string, bool) {
	for _, legacyKey := range legacyKeys[key] {
		if !v.IsSet(legacyKey) {
			continue
		}
		if value := Unquote(v.GetString(legacyKey)); value != "" {
			return value, true
		}
	}
	return "", false
}

// Unquote strips one pair of matching surrounding quotes
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func defaultPort(dialect string) int {
	switch dialect {
	case catalog.DialectPostgres:
		return PostgresPort
	case catalog.DialectSnowflake:
		return 0
	}
	return RedshiftPort
}

// LoadParams returns the values staging loads are rendered with
func (c *Config) LoadParams() catalog.LoadParams {
	return catalog.LoadParams{
		RoleARN:  c.IAMRole.ARN,
		SongData: c.S3.SongData,
		LogData:  c.S3.LogData,
		Region:   c.S3.Region,
	}
}

type requirement struct {
	key   string
	value string
}

// Validate checks that the settings needed to connect are present
func (c *Config) Validate() error {
	dialect, err := catalog.DialectByName(c.Dialect)
	if err != nil {
		return err
	}

	required := []requirement{
		{"warehouse.database", c.Warehouse.Database},
		{"warehouse.user", c.Warehouse.User},
	}

	switch dialect.Name() {
	case catalog.DialectSnowflake:
		required = append(required,
			requirement{"warehouse.account", c.Warehouse.Account},
			requirement{"warehouse.warehouse", c.Warehouse.Warehouse},
			requirement{"warehouse.password", c.Warehouse.Password},
		)
	case catalog.DialectRedshift:
		required = append(required,
			requirement{"warehouse.host", c.Warehouse.Host},
			requirement{"warehouse.password", c.Warehouse.Password},
		)
	default:
		required = append(required, requirement{"warehouse.host", c.Warehouse.Host})
	}

	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.ConfigError(fmt.Sprintf("%s is required for dialect %s", r.key, dialect.Name()), r.key)
		}
	}

	if dialect.Name() != catalog.DialectSnowflake && (c.Warehouse.Port <= 0 || c.Warehouse.Port > 65535) {
		return errors.ValidationError("warehouse.port", c.Warehouse.Port, "must be between 1 and 65535")
	}

	return c.LoadParams().Validate(dialect)
}
