// Package catalog declares the star-schema tables of the song-play
// warehouse and renders, per dialect, the four ordered statement lists a
// runner executes for a full refresh: drop, create, copy and insert.
package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"songdwh/pkg/errors"
)

//go:embed sql/*.sql.tmpl
var templateFS embed.FS

const (
	// Sentinel replaces identity fields of logged-out events and missing
	// coordinates.
	Sentinel = "N/A"

	// LoggedOut is the auth value of events without an authenticated user.
	LoggedOut = "Logged Out"

	// EventJSONPaths maps event log documents onto staging_events columns.
	EventJSONPaths = "s3://udacity-dend/log_json_path.json"

	// AutoJSONPaths lets COPY match JSON keys to column names.
	AutoJSONPaths = "auto"
)

// Phase is one step of a full refresh
type Phase string

const (
	PhaseDrop   Phase = "drop"
	PhaseCreate Phase = "create"
	PhaseCopy   Phase = "copy"
	PhaseInsert Phase = "insert"
)

// Phases is the required execution order.
var Phases = []Phase{PhaseDrop, PhaseCreate, PhaseCopy, PhaseInsert}

// ParsePhase converts a name into a Phase
func ParsePhase(name string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Phases {
		if p == known {
			return p, nil
		}
	}
	return "", errors.New(errors.ErrCodeUnknownPhase, fmt.Sprintf("Unknown phase %q", name)).
		WithSuggestions("Use one of: drop, create, copy, insert")
}

// Statement is one executable SQL statement and the table it targets
type Statement struct {
	Phase Phase  `yaml:"phase" json:"phase"`
	Table string `yaml:"table" json:"table"`
	SQL   string `yaml:"sql" json:"sql"`
}

// LoadParams are the resolved values staging loads are rendered with
type LoadParams struct {
	RoleARN  string
	SongData string
	LogData  string
	Region   string
}

// Validate checks the parameters a dialect needs for its load statements
func (p LoadParams) Validate(d Dialect) error {
	if d.RequiresRole() && strings.TrimSpace(p.RoleARN) == "" {
		return errors.ConfigError("Access role for staging loads is not configured", "iam_role.arn")
	}
	if strings.TrimSpace(p.SongData) == "" {
		return errors.ConfigError("Song data location is not configured", "s3.song_data")
	}
	if strings.TrimSpace(p.LogData) == "" {
		return errors.ConfigError("Log data location is not configured", "s3.log_data")
	}
	return nil
}

// Catalog holds the rendered statement lists for one dialect
type Catalog struct {
	dialect Dialect
	lists   map[Phase][]Statement
}

type loadData struct {
	Table     *Table
	Source    string
	RoleARN   string
	JSONPaths string
	Region    string
}

// New renders every statement for the dialect. Rendering is pure: nothing
// is read from the environment.
func New(d Dialect, params LoadParams) (*Catalog, error) {
	if d == nil {
		return nil, errors.New(errors.ErrCodeUnknownDialect, "No dialect given")
	}
	if err := params.Validate(d); err != nil {
		return nil, err
	}

	tmpl, err := parseTemplates(d)
	if err != nil {
		return nil, err
	}

	for _, t := range schema {
		if err := checkKeys(t); err != nil {
			return nil, err
		}
	}

	c := &Catalog{dialect: d, lists: make(map[Phase][]Statement, len(Phases))}

	for _, t := range schema {
		c.add(PhaseDrop, t.Name, d.DropTable(t))
	}
	for _, t := range schema {
		c.add(PhaseCreate, t.Name, d.CreateTable(t))
	}

	loads := []loadData{
		{Table: &stagingEvents, Source: params.LogData, RoleARN: params.RoleARN, JSONPaths: EventJSONPaths, Region: params.Region},
		{Table: &stagingSongs, Source: params.SongData, RoleARN: params.RoleARN, JSONPaths: AutoJSONPaths, Region: params.Region},
	}
	for _, data := range loads {
		sql, err := render(tmpl, d.LoadTemplate(), data)
		if err != nil {
			return nil, err
		}
		c.add(PhaseCopy, data.Table.Name, sql)
	}

	inserts := []string{TableUsers, TableSongs, TableArtists, TableTime, TableSongplays}
	for _, table := range inserts {
		sql, err := render(tmpl, "insert_"+table+".sql.tmpl", nil)
		if err != nil {
			return nil, err
		}
		c.add(PhaseInsert, table, sql)
	}

	return c, nil
}

// checkKeys verifies that distribution and sort keys name declared columns
func checkKeys(t *Table) error {
	for _, key := range []string{t.DistKey, t.SortKey} {
		if key == "" {
			continue
		}
		if _, ok := t.Column(key); !ok {
			return errors.New(errors.ErrCodeTemplate, fmt.Sprintf("Table %s has no column %s", t.Name, key)).
				WithContext("table", t.Name)
		}
	}
	if t.DistStyle == DistKey && t.DistKey == "" {
		return errors.New(errors.ErrCodeTemplate, fmt.Sprintf("Table %s is key-distributed without a distkey", t.Name)).
			WithContext("table", t.Name)
	}
	return nil
}

func (c *Catalog) add(p Phase, table, sql string) {
	c.lists[p] = append(c.lists[p], Statement{Phase: p, Table: table, SQL: strings.TrimSpace(sql)})
}

// Dialect returns the dialect the catalog was rendered for
func (c *Catalog) Dialect() Dialect {
	return c.dialect
}

// DropStatements drops every table, the fact table with CASCADE
func (c *Catalog) DropStatements() []Statement {
	return c.list(PhaseDrop)
}

// CreateStatements creates every table if it does not exist
func (c *Catalog) CreateStatements() []Statement {
	return c.list(PhaseCreate)
}

// CopyStatements bulk-load both staging tables
func (c *Catalog) CopyStatements() []Statement {
	return c.list(PhaseCopy)
}

// InsertStatements populate the dimension tables, then the fact table
func (c *Catalog) InsertStatements() []Statement {
	return c.list(PhaseInsert)
}

// Phase returns the ordered statements of one phase
func (c *Catalog) Phase(p Phase) ([]Statement, error) {
	if _, err := ParsePhase(string(p)); err != nil {
		return nil, err
	}
	return c.list(p), nil
}

// All returns every statement in execution order
func (c *Catalog) All() []Statement {
	var all []Statement
	for _, p := range Phases {
		all = append(all, c.lists[p]...)
	}
	return all
}

func (c *Catalog) list(p Phase) []Statement {
	return append([]Statement(nil), c.lists[p]...)
}

func parseTemplates(d Dialect) (*template.Template, error) {
	funcs := template.FuncMap{
		"quote": QuoteLiteral,
		"join":  strings.Join,
		"text": func(expr string) string {
			return fmt.Sprintf("CAST(%s AS %s)", expr, d.ColumnType(TypeText))
		},
		"authorized": func(expr string) string {
			return fmt.Sprintf("CASE WHEN se.auth NOT LIKE %s THEN CAST(%s AS %s) ELSE CAST(%s AS %s) END",
				QuoteLiteral(LoggedOut), expr, d.ColumnType(TypeText), QuoteLiteral(Sentinel), d.ColumnType(TypeText))
		},
		"present": func(expr string) string {
			return fmt.Sprintf("CASE WHEN %s IS NOT NULL THEN CAST(%s AS %s) ELSE CAST(%s AS %s) END",
				expr, expr, d.ColumnType(TypeText), QuoteLiteral(Sentinel), d.ColumnType(TypeText))
		},
		"epochMillis": d.EpochMillis,
		"datePart": func(field string, ts string) string {
			return d.DatePart(DateField(field), ts)
		},
		"jsonField": func(doc string, c Column) string {
			value := fmt.Sprintf("%s->>%s", doc, QuoteLiteral(c.JSONKey))
			if c.Type.Numeric() {
				return fmt.Sprintf("CAST(NULLIF(%s, '') AS %s)", value, d.ColumnType(c.Type))
			}
			return value
		},
	}

	tmpl, err := template.New("catalog").Funcs(funcs).Option("missingkey=error").ParseFS(templateFS, "sql/*.sql.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTemplate, "Failed to parse statement templates")
	}
	return tmpl, nil
}

func render(tmpl *template.Template, name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeTemplate, fmt.Sprintf("Failed to render %s", name)).
			WithContext("template", name)
	}
	return buf.String(), nil
}

// QuoteLiteral renders s as a single-quoted SQL string literal
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
