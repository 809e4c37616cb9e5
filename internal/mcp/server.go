package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/intercept"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/query"
	"github.com/hpungsan/hostgate/internal/usage"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"folder_create": {
		def:     folderCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderCreate },
	},
	"folder_update": {
		def:     folderUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderUpdate },
	},
	"folder_delete": {
		def:     folderDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderDelete },
	},
	"folder_get": {
		def:     folderGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderGet },
	},
	"folder_list": {
		def:     folderListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderList },
	},
	"folder_hierarchy": {
		def:     folderHierarchyToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderHierarchy },
	},
	"folder_detach_rules": {
		def:     folderDetachRulesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFolderDetachRules },
	},
	"rule_save": {
		def:     ruleSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleSave },
	},
	"rule_get": {
		def:     ruleGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleGet },
	},
	"rule_delete": {
		def:     ruleDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleDelete },
	},
	"rule_move": {
		def:     ruleMoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleMove },
	},
	"rule_list": {
		def:     ruleListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleList },
	},
	"rule_search": {
		def:     ruleSearchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRuleSearch },
	},
	"uri_intercept": {
		def:     uriInterceptToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleIntercept },
	},
	"uri_record": {
		def:     uriRecordToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRecord },
	},
	"history_query": {
		def:     historyQueryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryQuery },
	},
	"history_get": {
		def:     historyGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryGet },
	},
	"history_delete": {
		def:     historyDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryDelete },
	},
	"history_clear": {
		def:     historyClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryClear },
	},
	"history_purge": {
		def:     historyPurgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHistoryPurge },
	},
	"usage_stats": {
		def:     usageStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUsageStats },
	},
}

// AllToolNames returns every valid tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Deps are the services the tools operate on.
type Deps struct {
	Store   *db.Store
	Config  *config.Config
	Log     logger.Logger
	Query   *query.Builder
	Engine  *intercept.Engine
	Counter usage.Counter
}

// NewServer creates a new MCP server with hostgate tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"hostgate",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps)

	disabled := make(map[string]bool)
	for _, name := range deps.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}
