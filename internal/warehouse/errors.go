package warehouse

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/snowflakedb/gosnowflake"
)

// SQLSTATE classes reported by Redshift and PostgreSQL for bad logins
const (
	sqlStateInvalidPassword      = "28P01"
	sqlStateInvalidAuthorization = "28000"
)

// Snowflake reports bad credentials with this error number
const snowflakeIncorrectLogin = 390100

func authFailed(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == sqlStateInvalidPassword || pgErr.Code == sqlStateInvalidAuthorization
	}

	var sfErr *gosnowflake.SnowflakeError
	if stderrors.As(err, &sfErr) {
		return sfErr.Number == snowflakeIncorrectLogin
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "password authentication failed") ||
		strings.Contains(lower, "incorrect username or password")
}

func connectTimedOut(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

// driverDetails extracts the server-side diagnostics a driver attached
func driverDetails(err error) map[string]interface{} {
	details := make(map[string]interface{})

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		details["sqlstate"] = pgErr.Code
		if pgErr.Detail != "" {
			details["detail"] = pgErr.Detail
		}
		if pgErr.Hint != "" {
			details["hint"] = pgErr.Hint
		}
		return details
	}

	var sfErr *gosnowflake.SnowflakeError
	if stderrors.As(err, &sfErr) {
		details["sqlstate"] = sfErr.SQLState
		if sfErr.QueryID != "" {
			details["query_id"] = sfErr.QueryID
		}
	}
	return details
}
