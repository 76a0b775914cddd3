package catalog

import (
	"fmt"
	"sort"
	"strings"

	"songdwh/pkg/errors"
)

// DateField is a calendar component extracted from an event timestamp
type DateField string

const (
	FieldHour    DateField = "hour"
	FieldDay     DateField = "day"
	FieldWeek    DateField = "week"
	FieldMonth   DateField = "month"
	FieldYear    DateField = "year"
	FieldWeekday DateField = "weekday"
)

// Dialect renders the SQL that differs between warehouse engines.
type Dialect interface {
	// Name is the identifier used in configuration and on the command line.
	Name() string
	// ColumnType maps a logical column type to the engine's type name.
	ColumnType(t ColumnType) string
	CreateTable(t *Table) string
	DropTable(t *Table) string
	// EpochMillis converts an epoch-millisecond expression to a timestamp.
	EpochMillis(expr string) string
	// DatePart extracts a calendar field from a timestamp expression.
	DatePart(field DateField, ts string) string
	// LoadTemplate names the embedded template used for staging loads.
	LoadTemplate() string
	// RequiresRole reports whether staging loads need an access role.
	RequiresRole() bool
}

const (
	DialectRedshift  = "redshift"
	DialectPostgres  = "postgres"
	DialectSnowflake = "snowflake"
)

var dialects = map[string]Dialect{
	DialectRedshift:  Redshift{},
	DialectPostgres:  Postgres{},
	DialectSnowflake: Snowflake{},
}

// DialectByName returns the dialect registered under name
func DialectByName(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownDialect, fmt.Sprintf("Unknown dialect %q", name)).
			WithContext("dialect", name).
			WithSuggestions(fmt.Sprintf("Use one of: %s", strings.Join(DialectNames(), ", ")))
	}
	return d, nil
}

// DialectNames lists the registered dialects
func DialectNames() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// columnDef renders "name type" padded for readability.
func columnDef(d Dialect, c Column) string {
	return fmt.Sprintf("%-16s %s", c.Name, d.ColumnType(c.Type))
}

func dropTable(t *Table) string {
	stmt := "DROP TABLE IF EXISTS " + t.Name
	if t.DropCascade {
		stmt += " CASCADE"
	}
	return stmt
}

func createTable(t *Table, column func(Column) string, trailer string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(t.Name)
	b.WriteString(" (\n")
	for i, c := range t.Columns {
		b.WriteString("    ")
		b.WriteString(column(c))
		if i < len(t.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	if trailer != "" {
		b.WriteString(" ")
		b.WriteString(trailer)
	}
	return b.String()
}

// Redshift is the reference dialect: distribution and sort key hints,
// COPY from S3 with an IAM role.
type Redshift struct{}

func (Redshift) Name() string { return DialectRedshift }

func (Redshift) ColumnType(t ColumnType) string { return string(t) }

func (d Redshift) CreateTable(t *Table) string {
	column := func(c Column) string {
		def := columnDef(d, c)
		if c.Identity {
			def += " IDENTITY(0,1)"
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		if t.SortKey == c.Name {
			def += " sortkey"
		}
		if t.DistStyle == DistKey && t.DistKey == c.Name {
			def += " distkey"
		}
		return def
	}

	trailer := ""
	if t.DistStyle == DistAll {
		trailer = "diststyle all"
	}
	return createTable(t, column, trailer)
}

func (Redshift) DropTable(t *Table) string { return dropTable(t) }

func (Redshift) EpochMillis(expr string) string {
	return fmt.Sprintf("(timestamp 'epoch' + CAST(%s AS bigint) / 1000 * interval '1 second')", expr)
}

func (Redshift) DatePart(field DateField, ts string) string {
	return pgDatePart(field, ts)
}

func (Redshift) LoadTemplate() string { return "copy_redshift.sql.tmpl" }

func (Redshift) RequiresRole() bool { return true }

// Postgres renders the schema for a plain PostgreSQL database, used for
// local runs and integration tests. Staging loads read newline-delimited
// JSON from a server-side file.
type Postgres struct{}

func (Postgres) Name() string { return DialectPostgres }

func (Postgres) ColumnType(t ColumnType) string { return string(t) }

func (d Postgres) CreateTable(t *Table) string {
	column := func(c Column) string {
		def := columnDef(d, c)
		if c.Identity {
			def += " GENERATED BY DEFAULT AS IDENTITY (START WITH 0 MINVALUE 0)"
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		return def
	}
	return createTable(t, column, "")
}

func (Postgres) DropTable(t *Table) string { return dropTable(t) }

func (Postgres) EpochMillis(expr string) string {
	return Redshift{}.EpochMillis(expr)
}

func (Postgres) DatePart(field DateField, ts string) string {
	return pgDatePart(field, ts)
}

func (Postgres) LoadTemplate() string { return "copy_postgres.sql.tmpl" }

func (Postgres) RequiresRole() bool { return false }

func pgDatePart(field DateField, ts string) string {
	if field == FieldWeekday {
		return fmt.Sprintf("CAST(CAST(EXTRACT(dow FROM %s) AS int) AS text)", ts)
	}
	return fmt.Sprintf("CAST(EXTRACT(%s FROM %s) AS int)", field, ts)
}

// Snowflake has no distribution styles; sort keys become clustering keys.
type Snowflake struct{}

func (Snowflake) Name() string { return DialectSnowflake }

func (Snowflake) ColumnType(t ColumnType) string {
	switch t {
	case TypeText:
		return "VARCHAR"
	case TypeInt:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeFloat:
		return "FLOAT"
	}
	return strings.ToUpper(string(t))
}

func (d Snowflake) CreateTable(t *Table) string {
	column := func(c Column) string {
		def := columnDef(d, c)
		if c.Identity {
			def += " IDENTITY(0,1)"
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		return def
	}

	trailer := ""
	if t.SortKey != "" {
		trailer = fmt.Sprintf("CLUSTER BY (%s)", t.SortKey)
	}
	return createTable(t, column, trailer)
}

func (Snowflake) DropTable(t *Table) string { return dropTable(t) }

func (Snowflake) EpochMillis(expr string) string {
	return fmt.Sprintf("TO_TIMESTAMP_NTZ(CAST(%s AS BIGINT), 3)", expr)
}

func (Snowflake) DatePart(field DateField, ts string) string {
	switch field {
	case FieldWeek:
		return fmt.Sprintf("WEEKOFYEAR(%s)", ts)
	case FieldWeekday:
		return fmt.Sprintf("CAST(DAYOFWEEK(%s) AS VARCHAR)", ts)
	}
	return fmt.Sprintf("CAST(EXTRACT(%s FROM %s) AS INTEGER)", strings.ToUpper(string(field)), ts)
}

func (Snowflake) LoadTemplate() string { return "copy_snowflake.sql.tmpl" }

func (Snowflake) RequiresRole() bool { return true }
