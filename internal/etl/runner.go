// Package etl sequences the catalog phases into the two pipeline steps:
// building the schema and loading it.
package etl

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"songdwh/internal/catalog"
	"songdwh/internal/observability"
	"songdwh/internal/warehouse"
	"songdwh/pkg/errors"
)

// Executor runs statements in order, stopping at the first failure
type Executor interface {
	Execute(ctx context.Context, statements []catalog.Statement) ([]warehouse.Result, error)
}

// Operation names a runner entry point
type Operation string

const (
	OperationCreateTables     Operation = "create-tables"
	OperationLoadAndTransform Operation = "etl"
	OperationFullRefresh      Operation = "run"
)

var operationPhases = map[Operation][]catalog.Phase{
	OperationCreateTables:     {catalog.PhaseDrop, catalog.PhaseCreate},
	OperationLoadAndTransform: {catalog.PhaseCopy, catalog.PhaseInsert},
	OperationFullRefresh:      catalog.Phases,
}

// Report summarizes a run. Results holds every statement that completed,
// including those before a failure.
type Report struct {
	RunID     string
	Operation Operation
	Dialect   string
	Results   []warehouse.Result
	StartedAt time.Time
	Duration  time.Duration
}

// Statements returns the number of statements that completed
func (r *Report) Statements() int {
	return len(r.Results)
}

// RowsAffected sums the rows reported by the driver, skipping unknowns
func (r *Report) RowsAffected() int64 {
	var total int64
	for _, res := range r.Results {
		if res.RowsAffected > 0 {
			total += res.RowsAffected
		}
	}
	return total
}

// Runner executes the catalog phases of one operation
type Runner struct {
	catalog  *catalog.Catalog
	executor Executor
	logger   *zap.Logger
}

// NewRunner creates a runner over a rendered catalog
func NewRunner(c *catalog.Catalog, executor Executor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		catalog:  c,
		executor: executor,
		logger:   logger.Named("etl"),
	}
}

// CreateTables drops and recreates every table
func (r *Runner) CreateTables(ctx context.Context) (*Report, error) {
	return r.Run(ctx, OperationCreateTables)
}

// LoadAndTransform loads both staging tables then populates the star schema
func (r *Runner) LoadAndTransform(ctx context.Context) (*Report, error) {
	return r.Run(ctx, OperationLoadAndTransform)
}

// FullRefresh rebuilds the schema and loads it
func (r *Runner) FullRefresh(ctx context.Context) (*Report, error) {
	return r.Run(ctx, OperationFullRefresh)
}

// Run executes the phases of op in order
func (r *Runner) Run(ctx context.Context, op Operation) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Operation: op,
		Dialect:   r.catalog.Dialect().Name(),
		StartedAt: time.Now(),
	}
	logger := r.logger.With(
		zap.String("run_id", report.RunID),
		zap.String("operation", string(op)),
		zap.String("dialect", report.Dialect),
	)
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	phases, ok := operationPhases[op]
	if !ok {
		return report, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("Unknown operation %q", op))
	}

	logger.Info("Run started", zap.Int("phases", len(phases)))

	for _, phase := range phases {
		statements, err := r.catalog.Phase(phase)
		if err != nil {
			return report, err
		}

		started := time.Now()
		logger.Info("Phase started", zap.String("phase", string(phase)), zap.Int("statements", len(statements)))

		results, err := r.executor.Execute(ctx, statements)
		report.Results = append(report.Results, results...)
		if err != nil {
			// Earlier statements are already applied.
			var appErr *errors.AppError
			if len(report.Results) > 0 && stderrors.As(err, &appErr) {
				_ = appErr.WithSeverity(errors.SeverityCritical)
			}
			fields := append([]zap.Field{
				zap.String("phase", string(phase)),
				zap.Int("completed", len(results)),
			}, observability.ErrorFields(err, "phase")...)
			logger.Error("Phase failed", fields...)
			return report, err
		}

		logger.Info("Phase completed",
			zap.String("phase", string(phase)),
			zap.Int("statements", len(results)),
			zap.Duration("duration", time.Since(started)))
	}

	logger.Info("Run completed",
		zap.Int("statements", report.Statements()),
		zap.Int64("rows", report.RowsAffected()),
		zap.Duration("duration", time.Since(report.StartedAt)))
	return report, nil
}
