package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"songdwh/internal/catalog"
	"songdwh/pkg/errors"
)

const sampleYAML = `dialect: redshift
warehouse:
  host: dwhcluster.abc123.us-west-2.redshift.amazonaws.com
  database: dwh
  user: dwhuser
  password: Passw0rd
  statement_timeout: 15m
iam_role:
  arn: arn:aws:iam::123456789012:role/dwhRole
s3:
  log_data: s3://udacity-dend/log_data
  song_data: s3://udacity-dend/song_data
  region: us-west-2
logging:
  level: debug
`

const legacyCfg = `[CLUSTER]
HOST='dwhcluster.abc123.us-west-2.redshift.amazonaws.com'
DB_NAME='dwh'
DB_USER='dwhuser'
DB_PASSWORD='Passw0rd'
DB_PORT=5439

[DWH]
DWH_IAM_ROLE_ARN='arn:aws:iam::123456789012:role/dwhRole'

[S3]
LOG_DATA='s3://udacity-dend/log_data'
LOG_JSONPATH='s3://udacity-dend/log_json_path.json'
SONG_DATA='s3://udacity-dend/song_data'
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// isolate keeps the developer's own config and environment out of a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestGetConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".songdwh"), GetConfigPath())
	assert.Equal(t, filepath.Join(home, ".songdwh", "config.yaml"), GetConfigFile())
}

func TestLoadYAML(t *testing.T) {
	isolate(t)
	path := writeFile(t, "songdwh.yaml", sampleYAML)

	cfg, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)

	assert.Equal(t, catalog.DialectRedshift, cfg.Dialect)
	assert.Equal(t, "dwh", cfg.Warehouse.Database)
	assert.Equal(t, RedshiftPort, cfg.Warehouse.Port)
	assert.Equal(t, 15*time.Minute, cfg.Warehouse.StatementTimeout)
	assert.Equal(t, 30*time.Second, cfg.Warehouse.ConnectTimeout)
	assert.Equal(t, "require", cfg.Warehouse.SSLMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	params := cfg.LoadParams()
	assert.Equal(t, "arn:aws:iam::123456789012:role/dwhRole", params.RoleARN)
	assert.Equal(t, "s3://udacity-dend/log_data", params.LogData)
	assert.Equal(t, "s3://udacity-dend/song_data", params.SongData)
	assert.Equal(t, "us-west-2", params.Region)

	assert.NoError(t, cfg.Validate())
}

func TestLoadLegacyINI(t *testing.T) {
	isolate(t)
	path := writeFile(t, "dwh.cfg", legacyCfg)

	cfg, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "dwhcluster.abc123.us-west-2.redshift.amazonaws.com", cfg.Warehouse.Host)
	assert.Equal(t, "dwh", cfg.Warehouse.Database)
	assert.Equal(t, "dwhuser", cfg.Warehouse.User)
	assert.Equal(t, "Passw0rd", cfg.Warehouse.Password)
	assert.Equal(t, 5439, cfg.Warehouse.Port)
	assert.Equal(t, "arn:aws:iam::123456789012:role/dwhRole", cfg.IAMRole.ARN)
	assert.Equal(t, "s3://udacity-dend/log_data", cfg.S3.LogData)
	assert.Equal(t, "s3://udacity-dend/song_data", cfg.S3.SongData)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	isolate(t)
	path := writeFile(t, "songdwh.yaml", sampleYAML)
	t.Setenv("SONGDWH_S3_LOG_DATA", "s3://other-bucket/log_data")
	t.Setenv("SONGDWH_WAREHOUSE_PORT", "5440")

	cfg, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)

	assert.Equal(t, "s3://other-bucket/log_data", cfg.S3.LogData)
	assert.Equal(t, 5440, cfg.Warehouse.Port)
}

func TestLoadFlagsOverride(t *testing.T) {
	isolate(t)
	path := writeFile(t, "songdwh.yaml", sampleYAML)

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("dialect", "", "")
	fs.String("log-level", "", "")
	fs.String("log-format", "", "")
	require.NoError(t, fs.Parse([]string{"--dialect", "Postgres", "--log-format", "json"}))

	cfg, err := Load(LoadOptions{Path: path, Flags: fs})
	require.NoError(t, err)

	assert.Equal(t, catalog.DialectPostgres, cfg.Dialect)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, catalog.DialectRedshift, cfg.Dialect)
	assert.Equal(t, RedshiftPort, cfg.Warehouse.Port)
	assert.Error(t, cfg.Validate())
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("songdwh.yaml", []byte(sampleYAML), 0600))

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "dwhuser", cfg.Warehouse.User)
}

func TestLoadSearchesHomeDirectory(t *testing.T) {
	isolate(t)
	require.NoError(t, os.MkdirAll(GetConfigPath(), 0700))
	require.NoError(t, os.WriteFile(GetConfigFile(), []byte(sampleYAML), 0600))
	assert.True(t, Exists())

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "dwhuser", cfg.Warehouse.User)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(LoadOptions{Path: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.GetErrorCode(err))
}

func TestDefaultPorts(t *testing.T) {
	isolate(t)
	t.Setenv("SONGDWH_DIALECT", "postgres")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, PostgresPort, cfg.Warehouse.Port)
}

func validConfig() Config {
	return Config{
		Dialect: catalog.DialectRedshift,
		Warehouse: WarehouseConfig{
			Host:     "dwhcluster.example.com",
			Port:     5439,
			Database: "dwh",
			User:     "dwhuser",
			Password: "secret",
		},
		IAMRole: IAMRoleConfig{ARN: "arn:aws:iam::123456789012:role/dwhRole"},
		S3: S3Config{
			LogData:  "s3://udacity-dend/log_data",
			SongData: "s3://udacity-dend/song_data",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantCode errors.ErrorCode
		errorMsg string
	}{
		{"valid", func(c *Config) {}, "", ""},
		{"unknown dialect", func(c *Config) { c.Dialect = "bigquery" }, errors.ErrCodeUnknownDialect, "bigquery"},
		{"missing host", func(c *Config) { c.Warehouse.Host = "" }, errors.ErrCodeConfigMissing, "warehouse.host"},
		{"missing password", func(c *Config) { c.Warehouse.Password = "" }, errors.ErrCodeConfigMissing, "warehouse.password"},
		{"missing database", func(c *Config) { c.Warehouse.Database = "" }, errors.ErrCodeConfigMissing, "warehouse.database"},
		{"bad port", func(c *Config) { c.Warehouse.Port = 70000 }, errors.ErrCodeValidationFailed, "warehouse.port"},
		{"missing role", func(c *Config) { c.IAMRole.ARN = "" }, errors.ErrCodeConfigMissing, "iam_role.arn"},
		{"missing log data", func(c *Config) { c.S3.LogData = "" }, errors.ErrCodeConfigMissing, "s3.log_data"},
		{"postgres without password or role", func(c *Config) {
			c.Dialect = catalog.DialectPostgres
			c.Warehouse.Password = ""
			c.IAMRole.ARN = ""
		}, "", ""},
		{"snowflake missing account", func(c *Config) {
			c.Dialect = catalog.DialectSnowflake
			c.Warehouse.Warehouse = "COMPUTE_WH"
		}, errors.ErrCodeConfigMissing, "warehouse.account"},
		{"snowflake valid", func(c *Config) {
			c.Dialect = catalog.DialectSnowflake
			c.Warehouse.Host = ""
			c.Warehouse.Port = 0
			c.Warehouse.Account = "xy12345.us-east-1"
			c.Warehouse.Warehouse = "COMPUTE_WH"
		}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestUnquote(t *testing.T) {
	assert.Equal(t, "s3://bucket/x", Unquote("'s3://bucket/x'"))
	assert.Equal(t, "s3://bucket/x", Unquote(`"s3://bucket/x"`))
	assert.Equal(t, "'mixed\"", Unquote("'mixed\""))
	assert.Equal(t, "plain", Unquote("  plain "))
	assert.Equal(t, "'", Unquote("'"))
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	cfg := validConfig()
	cfg.Warehouse.ConnectTimeout = 10 * time.Second
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, Save(&cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := Load(LoadOptions{Path: path})
	require.NoError(t, err)
	assert.Equal(t, cfg.Warehouse.Host, loaded.Warehouse.Host)
	assert.Equal(t, cfg.S3, loaded.S3)
	assert.Equal(t, 10*time.Second, loaded.Warehouse.ConnectTimeout)
	assert.Empty(t, loaded.Warehouse.Password)
	assert.Equal(t, "secret", cfg.Warehouse.Password)
}

func TestKeyringPassword(t *testing.T) {
	keyring.MockInit()

	cfg := validConfig()
	cfg.Warehouse.Password = ""

	require.NoError(t, ResolvePassword(&cfg))
	assert.Empty(t, cfg.Warehouse.Password)

	require.NoError(t, StorePassword(cfg.Warehouse, "from-keyring"))
	require.NoError(t, ResolvePassword(&cfg))
	assert.Equal(t, "from-keyring", cfg.Warehouse.Password)

	explicit := validConfig()
	require.NoError(t, ResolvePassword(&explicit))
	assert.Equal(t, "secret", explicit.Warehouse.Password)

	require.NoError(t, DeletePassword(cfg.Warehouse))
	require.NoError(t, DeletePassword(cfg.Warehouse))

	cfg.Warehouse.Password = ""
	require.NoError(t, ResolvePassword(&cfg))
	assert.Empty(t, cfg.Warehouse.Password)
}

func TestStorePasswordNeedsUser(t *testing.T) {
	keyring.MockInit()

	err := StorePassword(WarehouseConfig{}, "x")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigMissing, errors.GetErrorCode(err))
}

func TestKeyringUser(t *testing.T) {
	w := WarehouseConfig{User: "dwhuser", Host: "cluster", Database: "dwh"}
	assert.Equal(t, "dwhuser@cluster/dwh", w.KeyringUser())

	w = WarehouseConfig{User: "loader", Account: "xy12345", Database: "DWH"}
	assert.Equal(t, "loader@xy12345/DWH", w.KeyringUser())
}
