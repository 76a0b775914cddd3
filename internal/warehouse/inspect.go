package warehouse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"songdwh/internal/catalog"
	"songdwh/pkg/errors"
)

// TableStatus reports whether a catalog table exists and how many rows it holds
type TableStatus struct {
	Table  string
	Kind   catalog.TableKind
	Exists bool
	Rows   int64
}

// Inspect counts the rows of every given table. Tables that do not exist
// are reported rather than treated as errors.
func (s *Service) Inspect(ctx context.Context, tables []catalog.Table) ([]TableStatus, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeNotConnected, "Not connected to warehouse").
			WithSuggestions("Call Connect() before inspecting tables")
	}

	statuses := make([]TableStatus, 0, len(tables))
	for _, t := range tables {
		status := TableStatus{Table: t.Name, Kind: t.Kind}

		query := fmt.Sprintf("SELECT COUNT(*) FROM information_schema.tables WHERE LOWER(table_name) = %s AND table_schema = current_schema()",
			catalog.QuoteLiteral(t.Name))
		var found int
		if err := s.db.QueryRowContext(ctx, query).Scan(&found); err != nil {
			return statuses, errors.SQLError("Failed to look up table", query, err).
				WithContext("table", t.Name)
		}
		status.Exists = found > 0

		if status.Exists {
			query = "SELECT COUNT(*) FROM " + t.Name
			if err := s.db.QueryRowContext(ctx, query).Scan(&status.Rows); err != nil {
				return statuses, errors.SQLError("Failed to count rows", query, err).
					WithContext("table", t.Name)
			}
		}

		s.logger.Debug("Table inspected",
			zap.String("table", t.Name),
			zap.Bool("exists", status.Exists),
			zap.Int64("rows", status.Rows))
		statuses = append(statuses, status)
	}
	return statuses, nil
}
