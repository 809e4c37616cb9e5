package query

// sortKey is an orderable expression.
type sortKey struct {
	expr     string
	nullable bool
}

// groupKey is a grouping expression. Nullable keys are coalesced into the
// unknown bucket; day keys bucket a millisecond timestamp by local calendar day.
type groupKey struct {
	expr     string
	nullable bool
	day      bool
}

// Table describes a queryable table: its projection and which expressions
// each spec field may reference. Caller input never reaches the SQL text;
// it only selects among these expressions.
type Table struct {
	Name       string
	Columns    []string
	IDColumn   string
	Searchable []string
	Dimensions map[Dimension]string
	Sorts      map[string]sortKey
	Groups     map[string]groupKey
	DateColumn string

	DefaultSort string
	DefaultDir  Direction
}

// History is the URI history table.
var History = &Table{
	Name: "uri_history",
	Columns: []string{
		"id", "uri_string", "host", "timestamp", "source", "action",
		"chosen_browser_package", "associated_host_rule_id", "event_id",
	},
	IDColumn:   "id",
	Searchable: []string{"uri_string", "host", "chosen_browser_package"},
	Dimensions: map[Dimension]string{
		DimSource:  "source",
		DimAction:  "action",
		DimBrowser: "chosen_browser_package",
		DimHost:    "host",
	},
	Sorts: map[string]sortKey{
		"timestamp": {expr: "timestamp"},
		"host":      {expr: "host"},
		"uri":       {expr: "uri_string"},
		"source":    {expr: "source"},
		"action":    {expr: "action"},
		"browser":   {expr: "chosen_browser_package", nullable: true},
	},
	Groups: map[string]groupKey{
		"date":    {expr: "timestamp", day: true},
		"host":    {expr: "host"},
		"source":  {expr: "source"},
		"action":  {expr: "action"},
		"browser": {expr: "chosen_browser_package", nullable: true},
	},
	DateColumn:  "timestamp",
	DefaultSort: "timestamp",
	DefaultDir:  Desc,
}

// HostRules is the host rule table.
var HostRules = &Table{
	Name: "host_rules",
	Columns: []string{
		"id", "host", "status", "folder_id", "preferred_browser_package",
		"is_preference_enabled", "created_at", "updated_at",
	},
	IDColumn:   "id",
	Searchable: []string{"host", "preferred_browser_package"},
	Dimensions: map[Dimension]string{
		DimStatus:  "status",
		DimHost:    "host",
		DimBrowser: "preferred_browser_package",
		DimFolder:  "folder_id",
	},
	Sorts: map[string]sortKey{
		"host":    {expr: "host"},
		"status":  {expr: "status"},
		"created": {expr: "created_at"},
		"updated": {expr: "updated_at"},
		"browser": {expr: "preferred_browser_package", nullable: true},
	},
	Groups: map[string]groupKey{
		"status":  {expr: "status"},
		"browser": {expr: "preferred_browser_package", nullable: true},
		"folder":  {expr: "CAST(folder_id AS TEXT)", nullable: true},
		"date":    {expr: "updated_at", day: true},
	},
	DateColumn:  "updated_at",
	DefaultSort: "host",
	DefaultDir:  Asc,
}
