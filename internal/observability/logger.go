// Package observability builds the structured logger shared by the CLI,
// the warehouse session and the ETL runner.
package observability

import (
	stderrors "errors"
	"io"
	"net/url"
	"os"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"songdwh/pkg/errors"
)

// Log output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level   string
	Format  string
	Output  io.Writer
	Service string
	Version string
}

// NewLogger creates a zap logger writing to config.Output, stderr by default
func NewLogger(config LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(config.Level))
	if err != nil {
		return nil, errors.ValidationError("logging.level", config.Level, "expected debug, info, warn or error")
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(config.Format)) {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case FormatConsole, "":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, errors.ValidationError("logging.format", config.Format, "expected console or json")
	}

	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(output), zap.NewAtomicLevelAt(level))
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	var fields []zap.Field
	if config.Service != "" {
		fields = append(fields, zap.String("service", config.Service))
	}
	if config.Version != "" {
		fields = append(fields, zap.String("version", config.Version))
	}
	return logger.With(fields...), nil
}

// RedactDSN masks the password of a connection string before it is logged
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// ErrorFields expands an application error into log fields. Context keys
// listed in skip are left out, as is the SQL text.
func ErrorFields(err error, skip ...string) []zap.Field {
	if err == nil {
		return nil
	}
	fields := []zap.Field{
		zap.Error(err),
		zap.String("error_code", string(errors.GetErrorCode(err))),
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		keys := make([]string, 0, len(appErr.Context))
		for key := range appErr.Context {
			if key == "query" || slices.Contains(skip, key) {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fields = append(fields, zap.Any(key, appErr.Context[key]))
		}
	}
	return fields
}
