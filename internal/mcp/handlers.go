package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/intercept"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/ops"
	"github.com/hpungsan/hostgate/internal/query"
	"github.com/hpungsan/hostgate/internal/usage"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store   *db.Store
	cfg     *config.Config
	log     logger.Logger
	qb      *query.Builder
	engine  *intercept.Engine
	counter usage.Counter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps) *Handlers {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	qb := deps.Query
	if qb == nil {
		qb = query.NewBuilder(log, cfg.UnknownGroupLabel)
	}
	engine := deps.Engine
	if engine == nil {
		engine = intercept.New(deps.Store, deps.Store, deps.Counter, log)
	}
	return &Handlers{
		store:   deps.Store,
		cfg:     cfg,
		log:     log,
		qb:      qb,
		engine:  engine,
		counter: deps.Counter,
	}
}

// Request types for each tool

// FolderCreateRequest represents the arguments for folder_create.
type FolderCreateRequest struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	ParentFolderID *int64 `json:"parent_folder_id,omitempty"`
}

// FolderUpdateRequest represents the arguments for folder_update.
type FolderUpdateRequest struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	ParentFolderID *int64 `json:"parent_folder_id,omitempty"`
}

// FolderDeleteRequest represents the arguments for folder_delete.
type FolderDeleteRequest struct {
	ID           int64 `json:"id"`
	ForceCascade bool  `json:"force_cascade,omitempty"`
}

// FolderIDRequest addresses one folder.
type FolderIDRequest struct {
	ID int64 `json:"id"`
}

// FolderListRequest represents the arguments for folder_list.
type FolderListRequest struct {
	ParentFolderID *int64 `json:"parent_folder_id,omitempty"`
	Type           string `json:"type,omitempty"`
	All            bool   `json:"all,omitempty"`
}

// FolderDetachRulesRequest represents the arguments for folder_detach_rules.
type FolderDetachRulesRequest struct {
	FolderID int64 `json:"folder_id"`
}

// RuleSaveRequest represents the arguments for rule_save.
type RuleSaveRequest struct {
	Host                    string  `json:"host"`
	Status                  string  `json:"status"`
	FolderID                *int64  `json:"folder_id,omitempty"`
	PreferredBrowserPackage *string `json:"preferred_browser_package,omitempty"`
	IsPreferenceEnabled     bool    `json:"is_preference_enabled,omitempty"`
}

// RuleRefRequest addresses one rule by id or host.
type RuleRefRequest struct {
	ID   int64  `json:"id,omitempty"`
	Host string `json:"host,omitempty"`
}

// RuleMoveRequest represents the arguments for rule_move.
type RuleMoveRequest struct {
	HostRuleID          int64  `json:"host_rule_id"`
	DestinationFolderID *int64 `json:"destination_folder_id,omitempty"`
}

// RuleListRequest represents the arguments for rule_list.
type RuleListRequest struct {
	Status   string `json:"status,omitempty"`
	FolderID *int64 `json:"folder_id,omitempty"`
	RootOnly bool   `json:"root_only,omitempty"`
}

// BrowseRequest represents the arguments for rule_search and history_query.
// Raw SQL fragments are not accepted over this transport.
type BrowseRequest struct {
	Search            string              `json:"search,omitempty"`
	Filters           map[string][]string `json:"filters,omitempty"`
	DateRange         *query.DateRange    `json:"date_range,omitempty"`
	SortField         string              `json:"sort_field,omitempty"`
	SortDir           string              `json:"sort_dir,omitempty"`
	GroupBy           string              `json:"group_by,omitempty"`
	GroupDir          string              `json:"group_dir,omitempty"`
	Limit             int                 `json:"limit,omitempty"`
	Offset            int                 `json:"offset,omitempty"`
	IncludeDateCounts bool                `json:"include_date_counts,omitempty"`
}

// toInput converts the request into ops.BrowseInput.
func (r BrowseRequest) toInput() (ops.BrowseInput, error) {
	sortDir, err := query.ParseDirection(r.SortDir)
	if err != nil {
		return ops.BrowseInput{}, errors.NewValidation("sort_dir: " + err.Error())
	}
	groupDir, err := query.ParseDirection(r.GroupDir)
	if err != nil {
		return ops.BrowseInput{}, errors.NewValidation("group_dir: " + err.Error())
	}

	var filters map[query.Dimension][]string
	if len(r.Filters) > 0 {
		filters = make(map[query.Dimension][]string, len(r.Filters))
		for dim, values := range r.Filters {
			filters[query.Dimension(dim)] = values
		}
	}

	return ops.BrowseInput{
		Spec: query.Spec{
			Search:    r.Search,
			Filters:   filters,
			DateRange: r.DateRange,
			SortField: r.SortField,
			SortDir:   sortDir,
			GroupBy:   r.GroupBy,
			GroupDir:  groupDir,
		},
		Limit:             r.Limit,
		Offset:            r.Offset,
		IncludeDateCounts: r.IncludeDateCounts,
	}, nil
}

// Folder handlers

// HandleFolderCreate handles the folder_create tool call.
func (h *Handlers) HandleFolderCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderCreateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.CreateFolder(ctx, h.store, ops.CreateFolderInput{
		Name:           input.Name,
		Type:           input.Type,
		ParentFolderID: input.ParentFolderID,
	})
	if err != nil {
		return h.fail("folder_create", err), nil
	}

	return successResult(result)
}

// HandleFolderUpdate handles the folder_update tool call.
func (h *Handlers) HandleFolderUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderUpdateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.UpdateFolder(ctx, h.store, ops.UpdateFolderInput{
		ID:             input.ID,
		Name:           input.Name,
		Type:           input.Type,
		ParentFolderID: input.ParentFolderID,
	})
	if err != nil {
		return h.fail("folder_update", err), nil
	}

	return successResult(result)
}

// HandleFolderDelete handles the folder_delete tool call.
func (h *Handlers) HandleFolderDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderDeleteRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteFolder(ctx, h.store, h.log, ops.DeleteFolderInput{
		ID:           input.ID,
		ForceCascade: input.ForceCascade,
	})
	if err != nil {
		return h.fail("folder_delete", err), nil
	}

	return successResult(result)
}

// HandleFolderGet handles the folder_get tool call.
func (h *Handlers) HandleFolderGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderIDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.GetFolder(ctx, h.store, ops.GetFolderInput{ID: input.ID})
	if err != nil {
		return h.fail("folder_get", err), nil
	}

	return successResult(result)
}

// HandleFolderList handles the folder_list tool call.
func (h *Handlers) HandleFolderList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ListFolders(ctx, h.store, ops.ListFoldersInput{
		ParentFolderID: input.ParentFolderID,
		Type:           input.Type,
		All:            input.All,
	})
	if err != nil {
		return h.fail("folder_list", err), nil
	}

	return successResult(result)
}

// HandleFolderHierarchy handles the folder_hierarchy tool call.
func (h *Handlers) HandleFolderHierarchy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderIDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.GetFolderHierarchy(ctx, h.store, ops.GetFolderHierarchyInput{ID: input.ID})
	if err != nil {
		return h.fail("folder_hierarchy", err), nil
	}

	return successResult(result)
}

// HandleFolderDetachRules handles the folder_detach_rules tool call.
func (h *Handlers) HandleFolderDetachRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderDetachRulesRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ClearFolderAssociation(ctx, h.store, ops.ClearFolderAssociationInput{FolderID: input.FolderID})
	if err != nil {
		return h.fail("folder_detach_rules", err), nil
	}

	return successResult(result)
}

// Host rule handlers

// HandleRuleSave handles the rule_save tool call.
func (h *Handlers) HandleRuleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleSaveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SaveHostRule(ctx, h.store, ops.SaveHostRuleInput{
		Host:                    input.Host,
		Status:                  input.Status,
		FolderID:                input.FolderID,
		PreferredBrowserPackage: input.PreferredBrowserPackage,
		IsPreferenceEnabled:     input.IsPreferenceEnabled,
	})
	if err != nil {
		return h.fail("rule_save", err), nil
	}

	return successResult(result)
}

// HandleRuleGet handles the rule_get tool call.
func (h *Handlers) HandleRuleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleRefRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.GetHostRule(ctx, h.store, ops.GetHostRuleInput{ID: input.ID, Host: input.Host})
	if err != nil {
		return h.fail("rule_get", err), nil
	}

	return successResult(result)
}

// HandleRuleDelete handles the rule_delete tool call.
func (h *Handlers) HandleRuleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleRefRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteHostRule(ctx, h.store, ops.DeleteHostRuleInput{ID: input.ID, Host: input.Host})
	if err != nil {
		return h.fail("rule_delete", err), nil
	}

	return successResult(result)
}

// HandleRuleMove handles the rule_move tool call.
func (h *Handlers) HandleRuleMove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleMoveRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.MoveHostRuleToFolder(ctx, h.store, ops.MoveHostRuleInput{
		HostRuleID:          input.HostRuleID,
		DestinationFolderID: input.DestinationFolderID,
	})
	if err != nil {
		return h.fail("rule_move", err), nil
	}

	return successResult(result)
}

// HandleRuleList handles the rule_list tool call.
func (h *Handlers) HandleRuleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RuleListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ListHostRules(ctx, h.store, ops.ListHostRulesInput{
		Status:   input.Status,
		FolderID: input.FolderID,
		RootOnly: input.RootOnly,
	})
	if err != nil {
		return h.fail("rule_list", err), nil
	}

	return successResult(result)
}

// HandleRuleSearch handles the rule_search tool call.
func (h *Handlers) HandleRuleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BrowseRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	browse, err := input.toInput()
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SearchHostRules(ctx, h.store, h.qb, h.cfg, browse)
	if err != nil {
		return h.fail("rule_search", err), nil
	}

	return successResult(result)
}

// Result helpers

// fail logs internal faults with their cause before rendering the result.
func (h *Handlers) fail(tool string, err error) *mcp.CallToolResult {
	if errors.Internal(err) {
		h.log.Error("tool failed", logger.String("tool", tool), logger.Error(err))
	}
	return errorResult(err)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Store and unknown faults never expose their details.
func errorResult(err error) *mcp.CallToolResult {
	appErr := errors.Wrap(err)

	message := appErr.Message
	if _, direct := err.(*errors.AppError); !direct && !errors.Internal(appErr) {
		// keep caller context added by wrapping
		message = err.Error()
	}

	errorObj := map[string]any{
		"code":    appErr.Code,
		"message": message,
	}
	if !errors.Internal(appErr) && appErr.Details != nil {
		errorObj["details"] = appErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
