package catalog

// ColumnType is the logical type of a column, mapped to a physical type by
// each dialect.
type ColumnType string

const (
	TypeText   ColumnType = "text"
	TypeInt    ColumnType = "int"
	TypeBigInt ColumnType = "bigint"
	TypeFloat  ColumnType = "float"
)

// Numeric reports whether values of this type are numbers.
func (t ColumnType) Numeric() bool {
	return t == TypeInt || t == TypeBigInt || t == TypeFloat
}

// TableKind classifies a table within the star schema
type TableKind string

const (
	KindStaging   TableKind = "staging"
	KindDimension TableKind = "dimension"
	KindFact      TableKind = "fact"
)

// DistStyle is the row distribution hint of a table
type DistStyle string

const (
	DistDefault DistStyle = ""
	DistAll     DistStyle = "all"
	DistKey     DistStyle = "key"
)

// Column describes one column of a table
type Column struct {
	Name     string
	Type     ColumnType
	NotNull  bool
	Identity bool
	// JSONKey is the source document field a staging column is loaded from.
	JSONKey string
}

// Table describes one table of the warehouse
type Table struct {
	Name      string
	Kind      TableKind
	Columns   []Column
	DistStyle DistStyle
	DistKey   string
	SortKey   string
	// DropCascade drops dependent objects along with the table.
	DropCascade bool
}

// ColumnNames returns the column names in declaration order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

const (
	TableStagingEvents = "staging_events"
	TableStagingSongs  = "staging_songs"
	TableSongplays     = "songplays"
	TableUsers         = "users"
	TableSongs         = "songs"
	TableArtists       = "artists"
	TableTime          = "time"
)

var stagingEvents = Table{
	Name: TableStagingEvents,
	Kind: KindStaging,
	Columns: []Column{
		{Name: "artist", Type: TypeText, JSONKey: "artist"},
		{Name: "auth", Type: TypeText, JSONKey: "auth"},
		{Name: "firstName", Type: TypeText, JSONKey: "firstName"},
		{Name: "gender", Type: TypeText, JSONKey: "gender"},
		{Name: "itemInSession", Type: TypeInt, JSONKey: "itemInSession"},
		{Name: "lastName", Type: TypeText, JSONKey: "lastName"},
		{Name: "length", Type: TypeFloat, JSONKey: "length"},
		{Name: "level", Type: TypeText, JSONKey: "level"},
		{Name: "location", Type: TypeText, JSONKey: "location"},
		{Name: "method", Type: TypeText, JSONKey: "method"},
		{Name: "page", Type: TypeText, JSONKey: "page"},
		{Name: "registration", Type: TypeText, JSONKey: "registration"},
		{Name: "sessionId", Type: TypeInt, JSONKey: "sessionId"},
		{Name: "song", Type: TypeText, JSONKey: "song"},
		{Name: "status", Type: TypeInt, JSONKey: "status"},
		{Name: "ts", Type: TypeBigInt, JSONKey: "ts"},
		{Name: "userAgent", Type: TypeText, JSONKey: "userAgent"},
		{Name: "userId", Type: TypeInt, JSONKey: "userId"},
	},
}

var stagingSongs = Table{
	Name: TableStagingSongs,
	Kind: KindStaging,
	Columns: []Column{
		{Name: "num_songs", Type: TypeInt, JSONKey: "num_songs"},
		{Name: "artist_id", Type: TypeText, JSONKey: "artist_id"},
		{Name: "artist_latitude", Type: TypeText, JSONKey: "artist_latitude"},
		{Name: "artist_longitude", Type: TypeText, JSONKey: "artist_longitude"},
		{Name: "artist_location", Type: TypeText, JSONKey: "artist_location"},
		{Name: "artist_name", Type: TypeText, JSONKey: "artist_name"},
		{Name: "song_id", Type: TypeText, JSONKey: "song_id"},
		{Name: "title", Type: TypeText, JSONKey: "title"},
		{Name: "duration", Type: TypeFloat, JSONKey: "duration"},
		{Name: "year", Type: TypeInt, JSONKey: "year"},
	},
}

var songplays = Table{
	Name: TableSongplays,
	Kind: KindFact,
	Columns: []Column{
		{Name: "songplay_id", Type: TypeInt, NotNull: true, Identity: true},
		{Name: "start_time", Type: TypeBigInt, NotNull: true},
		{Name: "user_id", Type: TypeText, NotNull: true},
		{Name: "level", Type: TypeText},
		{Name: "song_id", Type: TypeText},
		{Name: "artist_id", Type: TypeText},
		{Name: "session_id", Type: TypeText, NotNull: true},
		{Name: "location", Type: TypeText},
		{Name: "user_agent", Type: TypeText},
	},
	DistStyle:   DistKey,
	DistKey:     "songplay_id",
	SortKey:     "songplay_id",
	DropCascade: true,
}

var users = Table{
	Name: TableUsers,
	Kind: KindDimension,
	Columns: []Column{
		{Name: "user_id", Type: TypeText},
		{Name: "first_name", Type: TypeText, NotNull: true},
		{Name: "last_name", Type: TypeText, NotNull: true},
		{Name: "gender", Type: TypeText},
		{Name: "level", Type: TypeText},
	},
	DistStyle: DistAll,
}

var songs = Table{
	Name: TableSongs,
	Kind: KindDimension,
	Columns: []Column{
		{Name: "song_id", Type: TypeText, NotNull: true},
		{Name: "title", Type: TypeText, NotNull: true},
		{Name: "artist_id", Type: TypeText},
		{Name: "year", Type: TypeInt},
		{Name: "duration", Type: TypeFloat, NotNull: true},
	},
	DistStyle: DistAll,
}

var artists = Table{
	Name: TableArtists,
	Kind: KindDimension,
	Columns: []Column{
		{Name: "artist_id", Type: TypeText, NotNull: true},
		{Name: "name", Type: TypeText, NotNull: true},
		{Name: "location", Type: TypeText},
		{Name: "latitude", Type: TypeText},
		{Name: "longitude", Type: TypeText},
	},
	DistStyle: DistAll,
	SortKey:   "artist_id",
}

var timeTable = Table{
	Name: TableTime,
	Kind: KindDimension,
	Columns: []Column{
		{Name: "start_time", Type: TypeBigInt, NotNull: true},
		{Name: "hour", Type: TypeInt},
		{Name: "day", Type: TypeInt},
		{Name: "week", Type: TypeInt},
		{Name: "month", Type: TypeInt},
		{Name: "year", Type: TypeInt},
		{Name: "weekday", Type: TypeText},
	},
	DistStyle: DistAll,
	SortKey:   "start_time",
}

// schema is the full table set in drop/create order.
var schema = []*Table{
	&stagingEvents,
	&stagingSongs,
	&songplays,
	&users,
	&songs,
	&artists,
	&timeTable,
}

// Tables returns the staging and warehouse tables in drop/create order.
func Tables() []Table {
	out := make([]Table, len(schema))
	for i, t := range schema {
		out[i] = *t
		out[i].Columns = append([]Column(nil), t.Columns...)
	}
	return out
}

// LookupTable returns the table definition with the given name
func LookupTable(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
