// Package warehouse owns the database session statements are executed on.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/snowflakedb/gosnowflake"
	"go.uber.org/zap"

	"songdwh/internal/catalog"
	"songdwh/internal/config"
	"songdwh/internal/observability"
	"songdwh/pkg/errors"
)

// Result describes one executed statement
type Result struct {
	Statement    catalog.Statement
	RowsAffected int64
	Duration     time.Duration
}

// Service executes catalog statements against one warehouse session
type Service struct {
	db        *sql.DB
	config    *config.Config
	logger    *zap.Logger
	connected bool
}

// NewService creates a new warehouse service
func NewService(cfg *config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		config: cfg,
		logger: logger.Named("warehouse"),
	}
}

// NewServiceWithDB wraps an already open database handle
func NewServiceWithDB(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Service {
	s := NewService(cfg, logger)
	s.db = db
	s.connected = true
	return s
}

// ValidateConfig checks the connection settings for the configured dialect
func (s *Service) ValidateConfig() error {
	if s.config == nil {
		return errors.New(errors.ErrCodeConfigInvalid, "No configuration loaded")
	}
	return s.config.Validate()
}

// Connect opens the session and verifies it with a ping
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}
	if err := s.ValidateConfig(); err != nil {
		return err
	}

	db, err := s.open()
	if err != nil {
		return err
	}

	// Statements must observe each other's effects in order.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx := ctx
	if timeout := s.config.Warehouse.ConnectTimeout; timeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return s.connectError(err)
	}

	s.db = db
	s.connected = true
	s.logger.Info("Connected to warehouse",
		zap.String("dialect", s.config.Dialect),
		zap.String("endpoint", s.endpoint()),
		zap.String("database", s.config.Warehouse.Database))
	return nil
}

func (s *Service) open() (*sql.DB, error) {
	dsn, err := BuildDSN(s.config)
	if err != nil {
		return nil, err
	}

	if s.config.Dialect == catalog.DialectSnowflake {
		db, err := sql.Open("snowflake", dsn)
		if err != nil {
			return nil, errors.ConnectionError("Failed to open Snowflake connection", err).
				WithContext("account", s.config.Warehouse.Account)
		}
		return db, nil
	}

	connConfig, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid connection settings").
			WithContext("dsn", observability.RedactDSN(dsn))
	}
	return stdlib.OpenDB(*connConfig), nil
}

func (s *Service) connectError(err error) error {
	if authFailed(err) {
		return errors.New(errors.ErrCodeAuthenticationFailed, "Authentication failed").
			WithContext("user", s.config.Warehouse.User).
			WithContext("endpoint", s.endpoint()).
			WithSuggestions(
				"Verify warehouse.user and the password",
				"Store the password with 'songdwh credentials set'",
			)
	}
	if connectTimedOut(err) {
		return errors.Wrap(err, errors.ErrCodeConnectionTimeout, "Timed out connecting to warehouse").
			WithContext("endpoint", s.endpoint()).
			WithContext("timeout", s.config.Warehouse.ConnectTimeout.String()).
			WithSuggestions(
				"Check that the cluster is reachable from this network",
				"Raise warehouse.connect_timeout",
			)
	}
	return errors.ConnectionError("Failed to connect to warehouse", err).
		WithContext("dialect", s.config.Dialect).
		WithContext("endpoint", s.endpoint())
}

func (s *Service) endpoint() string {
	if s.config.Dialect == catalog.DialectSnowflake {
		return s.config.Warehouse.Account
	}
	return fmt.Sprintf("%s:%d", s.config.Warehouse.Host, s.config.Warehouse.Port)
}

// Close closes the session
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Execute runs statements in order and stops at the first failure. The
// results of the statements that completed are returned with the error;
// earlier statements are not rolled back.
func (s *Service) Execute(ctx context.Context, statements []catalog.Statement) ([]Result, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeNotConnected, "Not connected to warehouse").
			WithSuggestions("Call Connect() before executing statements")
	}

	results := make([]Result, 0, len(statements))
	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return results, errors.Wrap(err, errors.ErrCodeCancelled, "Run cancelled").
				WithContext("phase", string(stmt.Phase)).
				WithContext("table", stmt.Table)
		}

		result, err := s.exec(ctx, stmt)
		if err != nil {
			return results, s.statementError(stmt, i, len(statements), err)
		}

		s.logger.Debug("Statement executed",
			zap.String("phase", string(stmt.Phase)),
			zap.String("table", stmt.Table),
			zap.Int("index", i+1),
			zap.Int64("rows", result.RowsAffected),
			zap.Duration("duration", result.Duration))
		results = append(results, result)
	}
	return results, nil
}

func (s *Service) exec(ctx context.Context, stmt catalog.Statement) (Result, error) {
	if timeout := s.config.Warehouse.StatementTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx, stmt.SQL)
	if err != nil {
		return Result{}, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		rows = -1
	}
	return Result{Statement: stmt, RowsAffected: rows, Duration: time.Since(start)}, nil
}

func (s *Service) statementError(stmt catalog.Statement, index, total int, cause error) error {
	var err *errors.AppError
	if stmt.Phase == catalog.PhaseCopy {
		err = errors.LoadError(stmt.Table, stmt.SQL, cause)
	} else {
		err = errors.SQLError(
			fmt.Sprintf("Failed to execute %s statement for %s", stmt.Phase, stmt.Table),
			stmt.SQL,
			cause,
		).WithContext("table", stmt.Table)
	}
	for key, value := range driverDetails(cause) {
		_ = err.WithContext(key, value)
	}
	return err.
		WithContext("phase", string(stmt.Phase)).
		WithContext("statement_index", index+1).
		WithContext("total_statements", total)
}

// BuildDSN renders the driver connection string for cfg
func BuildDSN(cfg *config.Config) (string, error) {
	dialect, err := catalog.DialectByName(cfg.Dialect)
	if err != nil {
		return "", err
	}
	w := cfg.Warehouse

	switch dialect.Name() {
	case catalog.DialectSnowflake:
		dsn, err := gosnowflake.DSN(&gosnowflake.Config{
			Account:      w.Account,
			User:         w.User,
			Password:     w.Password,
			Database:     w.Database,
			Schema:       w.Schema,
			Warehouse:    w.Warehouse,
			Role:         w.Role,
			LoginTimeout: w.ConnectTimeout,
		})
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeConfigInvalid, "Invalid Snowflake settings").
				WithContext("account", w.Account)
		}
		return dsn, nil

	default:
		query := url.Values{}
		if w.SSLMode != "" {
			query.Set("sslmode", w.SSLMode)
		}
		if w.ConnectTimeout > 0 {
			query.Set("connect_timeout", strconv.Itoa(int(w.ConnectTimeout.Seconds())))
		}
		if w.Schema != "" {
			query.Set("search_path", w.Schema)
		}

		u := url.URL{
			Scheme:   "postgres",
			Host:     fmt.Sprintf("%s:%d", w.Host, w.Port),
			Path:     "/" + w.Database,
			RawQuery: query.Encode(),
		}
		if w.Password != "" {
			u.User = url.UserPassword(w.User, w.Password)
		} else {
			u.User = url.User(w.User)
		}
		return u.String(), nil
	}
}
