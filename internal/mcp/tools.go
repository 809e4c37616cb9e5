package mcp

import "github.com/mark3labs/mcp-go/mcp"

var browseOptions = []mcp.ToolOption{
	mcp.WithString("search", mcp.Description("Case-insensitive substring matched against the searchable columns")),
	mcp.WithObject("filters", mcp.Description("Map of dimension to accepted values, e.g. {\"action\": [\"DISMISSED\"]}")),
	mcp.WithObject("date_range", mcp.Description("Inclusive {start, end} in Unix milliseconds")),
	mcp.WithString("sort_field", mcp.Description("Column to sort items by")),
	mcp.WithString("sort_dir", mcp.Enum("asc", "desc")),
	mcp.WithString("group_by", mcp.Description("Field to group items by; also returns per-group counts")),
	mcp.WithString("group_dir", mcp.Enum("asc", "desc")),
	mcp.WithNumber("limit", mcp.Description("Page size")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithBoolean("include_date_counts", mcp.Description("Also return per-day counts")),
}

func browseTool(name, description string) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, browseOptions...)
	return mcp.NewTool(name, opts...)
}

// Folder tools

var folderCreateToolDef = mcp.NewTool("folder_create",
	mcp.WithDescription("Create a bookmark or block folder"),
	mcp.WithString("name", mcp.Required(), mcp.Description("Folder name, unique among siblings")),
	mcp.WithString("type", mcp.Required(), mcp.Enum("BOOKMARK", "BLOCK")),
	mcp.WithNumber("parent_folder_id", mcp.Description("Parent folder; omit to create a root")),
)

var folderUpdateToolDef = mcp.NewTool("folder_update",
	mcp.WithDescription("Rename, retype or move a folder. Reserved roots may only be renamed"),
	mcp.WithNumber("id", mcp.Required()),
	mcp.WithString("name", mcp.Required()),
	mcp.WithString("type", mcp.Required(), mcp.Enum("BOOKMARK", "BLOCK")),
	mcp.WithNumber("parent_folder_id", mcp.Description("New parent; omit to make the folder a root")),
)

var folderDeleteToolDef = mcp.NewTool("folder_delete",
	mcp.WithDescription("Delete a folder. Non-empty folders require force_cascade"),
	mcp.WithNumber("id", mcp.Required()),
	mcp.WithBoolean("force_cascade", mcp.Description("Delete descendants and detach their host rules")),
)

var folderGetToolDef = mcp.NewTool("folder_get",
	mcp.WithDescription("Get one folder"),
	mcp.WithNumber("id", mcp.Required()),
)

var folderListToolDef = mcp.NewTool("folder_list",
	mcp.WithDescription("List child folders of a parent, or root folders of a type"),
	mcp.WithNumber("parent_folder_id"),
	mcp.WithString("type", mcp.Enum("BOOKMARK", "BLOCK")),
	mcp.WithBoolean("all", mcp.Description("Every folder of the type, not just roots")),
)

var folderHierarchyToolDef = mcp.NewTool("folder_hierarchy",
	mcp.WithDescription("Get the path from the root down to a folder"),
	mcp.WithNumber("id", mcp.Required()),
)

var folderDetachRulesToolDef = mcp.NewTool("folder_detach_rules",
	mcp.WithDescription("Move every host rule out of a folder without deleting them"),
	mcp.WithNumber("folder_id", mcp.Required()),
)

// Host rule tools

var ruleSaveToolDef = mcp.NewTool("rule_save",
	mcp.WithDescription("Create or replace the rule for a host"),
	mcp.WithString("host", mcp.Required()),
	mcp.WithString("status", mcp.Required(), mcp.Enum("NONE", "BOOKMARKED", "BLOCKED")),
	mcp.WithNumber("folder_id", mcp.Description("Folder matching the status (bookmark or block)")),
	mcp.WithString("preferred_browser_package"),
	mcp.WithBoolean("is_preference_enabled"),
)

var ruleGetToolDef = mcp.NewTool("rule_get",
	mcp.WithDescription("Get a host rule by id or host"),
	mcp.WithNumber("id"),
	mcp.WithString("host"),
)

var ruleDeleteToolDef = mcp.NewTool("rule_delete",
	mcp.WithDescription("Delete a host rule by id or host"),
	mcp.WithNumber("id"),
	mcp.WithString("host"),
)

var ruleMoveToolDef = mcp.NewTool("rule_move",
	mcp.WithDescription("Move a host rule into a folder, or out of any folder"),
	mcp.WithNumber("host_rule_id", mcp.Required()),
	mcp.WithNumber("destination_folder_id", mcp.Description("Omit to clear the folder")),
)

var ruleListToolDef = mcp.NewTool("rule_list",
	mcp.WithDescription("List host rules by status or folder"),
	mcp.WithString("status", mcp.Enum("NONE", "BOOKMARKED", "BLOCKED")),
	mcp.WithNumber("folder_id"),
	mcp.WithBoolean("root_only", mcp.Description("Only rules of the status that sit in no folder")),
)

var ruleSearchToolDef = browseTool("rule_search", "Filter, sort and group host rules")

// Interception tools

var uriInterceptToolDef = mcp.NewTool("uri_intercept",
	mcp.WithDescription("Decide what happens to an intercepted URI"),
	mcp.WithString("uri", mcp.Required()),
	mcp.WithString("source", mcp.Enum("INTENT", "CLIPBOARD", "SHARE", "MANUAL")),
)

var uriRecordToolDef = mcp.NewTool("uri_record",
	mcp.WithDescription("Record what the user did with a URI shown in the picker"),
	mcp.WithString("uri", mcp.Required()),
	mcp.WithString("host", mcp.Description("Defaults to the URI's host")),
	mcp.WithString("source", mcp.Enum("INTENT", "CLIPBOARD", "SHARE", "MANUAL")),
	mcp.WithString("action", mcp.Required(),
		mcp.Enum("OPENED_ONCE", "OPENED_ALWAYS", "BOOKMARKED", "BLOCKED_BY_USER", "DISMISSED")),
	mcp.WithString("chosen_browser_package"),
	mcp.WithNumber("rule_id"),
	mcp.WithString("event_id", mcp.Description("Event id of the decision being answered")),
)

// History tools

var historyQueryToolDef = browseTool("history_query", "Filter, sort and group URI history")

var historyGetToolDef = mcp.NewTool("history_get",
	mcp.WithDescription("Get one history record"),
	mcp.WithNumber("id", mcp.Required()),
)

var historyDeleteToolDef = mcp.NewTool("history_delete",
	mcp.WithDescription("Delete one history record"),
	mcp.WithNumber("id", mcp.Required()),
)

var historyClearToolDef = mcp.NewTool("history_clear",
	mcp.WithDescription("Delete all history"),
)

var historyPurgeToolDef = mcp.NewTool("history_purge",
	mcp.WithDescription("Delete history older than a number of days"),
	mcp.WithNumber("older_than_days", mcp.Required()),
)

// Usage tools

var usageStatsToolDef = mcp.NewTool("usage_stats",
	mcp.WithDescription("Browser launch counts, most used first"),
)
