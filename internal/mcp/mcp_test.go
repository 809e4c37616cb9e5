package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/ops"
	"github.com/hpungsan/hostgate/internal/usage"
)

// testSetup creates a seeded temporary database and handler set.
func testSetup(t *testing.T) (*Handlers, Deps) {
	t.Helper()

	store, err := db.Open(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, ops.EnsureDefaultFolders(context.Background(), store, logger.NewNop()))

	deps := Deps{
		Store:   store,
		Config:  config.DefaultConfig(),
		Log:     logger.NewNop(),
		Counter: usage.NewSQLiteCounter(store),
	}
	h := NewHandlers(deps)
	t.Cleanup(h.engine.Wait)
	return h, deps
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), makeRequest(args))
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestHandleFolderCreate(t *testing.T) {
	h, _ := testSetup(t)

	tests := []struct {
		name      string
		args      map[string]any
		errorCode errors.ErrorCode
	}{
		{
			name: "root folder",
			args: map[string]any{"name": "Work", "type": "BOOKMARK"},
		},
		{
			name: "child of default root",
			args: map[string]any{"name": "News", "type": "block", "parent_folder_id": domain.DefaultBlockRootID},
		},
		{
			name:      "missing name",
			args:      map[string]any{"type": "BOOKMARK"},
			errorCode: errors.ErrValidation,
		},
		{
			name:      "unknown type",
			args:      map[string]any{"name": "x", "type": "archive"},
			errorCode: errors.ErrValidation,
		},
		{
			name:      "parent of other type",
			args:      map[string]any{"name": "x", "type": "BOOKMARK", "parent_folder_id": domain.DefaultBlockRootID},
			errorCode: errors.ErrValidation,
		},
		{
			name:      "missing parent",
			args:      map[string]any{"name": "x", "type": "BOOKMARK", "parent_folder_id": 999},
			errorCode: errors.ErrNotFound,
		},
		{
			name:      "sibling name taken",
			args:      map[string]any{"name": "Work", "type": "BOOKMARK"},
			errorCode: errors.ErrConflict,
		},
		{
			name:      "malformed argument",
			args:      map[string]any{"name": "x", "type": "BOOKMARK", "parent_folder_id": "one"},
			errorCode: errors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, h.HandleFolderCreate, tt.args)
			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			output := parseOutput(t, result)
			assert.NotZero(t, output["id"])
		})
	}
}

func TestFolderLifecycle(t *testing.T) {
	h, _ := testSetup(t)

	created := parseOutput(t, call(t, h.HandleFolderCreate, map[string]any{
		"name": "Work", "type": "BOOKMARK", "parent_folder_id": domain.DefaultBookmarkRootID,
	}))
	workID := created["id"].(float64)

	child := parseOutput(t, call(t, h.HandleFolderCreate, map[string]any{
		"name": "Docs", "type": "BOOKMARK", "parent_folder_id": workID,
	}))
	docsID := child["id"].(float64)

	path := parseOutput(t, call(t, h.HandleFolderHierarchy, map[string]any{"id": docsID}))["path"].([]any)
	require.Len(t, path, 3)
	assert.Equal(t, float64(domain.DefaultBookmarkRootID), path[0].(map[string]any)["id"])
	assert.Equal(t, docsID, path[2].(map[string]any)["id"])

	listed := parseOutput(t, call(t, h.HandleFolderList, map[string]any{"parent_folder_id": workID}))["folders"].([]any)
	require.Len(t, listed, 1)
	assert.Equal(t, "Docs", listed[0].(map[string]any)["name"])

	// Moving a folder under its own descendant is rejected
	result := call(t, h.HandleFolderUpdate, map[string]any{
		"id": workID, "name": "Work", "type": "BOOKMARK", "parent_folder_id": docsID,
	})
	assertErrorCode(t, result, errors.ErrValidation)

	// Reserved roots cannot move
	result = call(t, h.HandleFolderUpdate, map[string]any{
		"id": domain.DefaultBookmarkRootID, "name": "Bookmarks", "type": "BOOKMARK", "parent_folder_id": workID,
	})
	assertErrorCode(t, result, errors.ErrValidation)

	renamed := parseOutput(t, call(t, h.HandleFolderUpdate, map[string]any{
		"id": docsID, "name": "Reading", "type": "BOOKMARK", "parent_folder_id": workID,
	}))
	assert.Equal(t, "Reading", renamed["folder"].(map[string]any)["name"])

	parseOutput(t, call(t, h.HandleRuleSave, map[string]any{
		"host": "docs.example.com", "status": "BOOKMARKED", "folder_id": docsID,
	}))

	result = call(t, h.HandleFolderDelete, map[string]any{"id": workID})
	assertErrorCode(t, result, errors.ErrFolderNotEmpty)
	details := errorObject(t, result)["details"].(map[string]any)
	assert.Equal(t, float64(1), details["child_folders"])

	deleted := parseOutput(t, call(t, h.HandleFolderDelete, map[string]any{"id": workID, "force_cascade": true}))
	assert.Equal(t, []any{docsID, workID}, deleted["deleted_folders"])
	assert.Equal(t, float64(1), deleted["detached_rules"])

	rule := parseOutput(t, call(t, h.HandleRuleGet, map[string]any{"host": "docs.example.com"}))
	assert.NotContains(t, rule, "folder_id")

	assertErrorCode(t, call(t, h.HandleFolderGet, map[string]any{"id": workID}), errors.ErrNotFound)
	assertErrorCode(t, call(t, h.HandleFolderDelete, map[string]any{"id": domain.DefaultBlockRootID}), errors.ErrValidation)
}

func TestRuleTools(t *testing.T) {
	h, _ := testSetup(t)

	saved := parseOutput(t, call(t, h.HandleRuleSave, map[string]any{
		"host":                      "Example.COM",
		"status":                    "NONE",
		"preferred_browser_package": "com.browser.a",
		"is_preference_enabled":     true,
	}))
	assert.Equal(t, true, saved["created"])
	rule := saved["rule"].(map[string]any)
	assert.Equal(t, "example.com", rule["host"])
	ruleID := saved["id"].(float64)

	// Saving again updates the same row
	again := parseOutput(t, call(t, h.HandleRuleSave, map[string]any{"host": "example.com", "status": "BOOKMARKED"}))
	assert.Equal(t, false, again["created"])
	assert.Equal(t, ruleID, again["id"])

	assertErrorCode(t, call(t, h.HandleRuleSave, map[string]any{
		"host": "x.com", "status": "NONE", "folder_id": domain.DefaultBookmarkRootID,
	}), errors.ErrValidation)
	assertErrorCode(t, call(t, h.HandleRuleSave, map[string]any{
		"host": "x.com", "status": "BLOCKED", "folder_id": domain.DefaultBookmarkRootID,
	}), errors.ErrValidation)

	moved := parseOutput(t, call(t, h.HandleRuleMove, map[string]any{
		"host_rule_id": ruleID, "destination_folder_id": domain.DefaultBookmarkRootID,
	}))
	assert.Equal(t, true, moved["moved"])

	listed := parseOutput(t, call(t, h.HandleRuleList, map[string]any{"folder_id": domain.DefaultBookmarkRootID}))
	assert.Len(t, listed["rules"], 1)

	assertErrorCode(t, call(t, h.HandleRuleGet, map[string]any{}), errors.ErrValidation)
	assertErrorCode(t, call(t, h.HandleRuleGet, map[string]any{"id": ruleID, "host": "example.com"}), errors.ErrValidation)

	deleted := parseOutput(t, call(t, h.HandleRuleDelete, map[string]any{"id": ruleID}))
	assert.Equal(t, true, deleted["deleted"])
	assertErrorCode(t, call(t, h.HandleRuleGet, map[string]any{"id": ruleID}), errors.ErrNotFound)
}

func TestFolderDetachRules(t *testing.T) {
	h, _ := testSetup(t)

	for _, host := range []string{"a.com", "b.com"} {
		parseOutput(t, call(t, h.HandleRuleSave, map[string]any{
			"host": host, "status": "BLOCKED", "folder_id": domain.DefaultBlockRootID,
		}))
	}

	out := parseOutput(t, call(t, h.HandleFolderDetachRules, map[string]any{"folder_id": domain.DefaultBlockRootID}))
	assert.Equal(t, float64(2), out["detached"])

	roots := parseOutput(t, call(t, h.HandleRuleList, map[string]any{"status": "BLOCKED", "root_only": true}))
	assert.Len(t, roots["rules"], 2)
}

func TestHandleIntercept(t *testing.T) {
	h, _ := testSetup(t)

	parseOutput(t, call(t, h.HandleRuleSave, map[string]any{"host": "blocked.com", "status": "BLOCKED"}))
	parseOutput(t, call(t, h.HandleRuleSave, map[string]any{
		"host": "pref.com", "status": "NONE",
		"preferred_browser_package": "com.browser.a", "is_preference_enabled": true,
	}))

	tests := []struct {
		uri     string
		kind    string
		browser string
	}{
		{"https://blocked.com/a", "BLOCKED", ""},
		{"https://pref.com/a", "OPEN_DIRECTLY", "com.browser.a"},
		{"https://other.com/a", "SHOW_PICKER", ""},
		{"mailto:someone@example.com", "INVALID_URI", ""},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			out := parseOutput(t, call(t, h.HandleIntercept, map[string]any{"uri": tt.uri, "source": "intent"}))
			assert.Equal(t, tt.kind, out["kind"])
			assert.NotEmpty(t, out["event_id"])
			assert.NotContains(t, out, "degraded")
			if tt.browser != "" {
				assert.Equal(t, tt.browser, out["browser_package"])
			}
		})
	}

	history := parseOutput(t, call(t, h.HandleHistoryQuery, map[string]any{"group_by": "action"}))
	assert.Len(t, history["items"], 2)
	assert.Len(t, history["groups"], 2)
}

func TestHandleRecordAndUsage(t *testing.T) {
	h, _ := testSetup(t)

	decision := parseOutput(t, call(t, h.HandleIntercept, map[string]any{"uri": "https://example.com/x"}))
	require.Equal(t, "SHOW_PICKER", decision["kind"])

	rec := parseOutput(t, call(t, h.HandleRecord, map[string]any{
		"uri":                    "https://example.com/x",
		"source":                 "share",
		"action":                 "opened_once",
		"chosen_browser_package": "com.browser.b",
		"event_id":               decision["event_id"],
	}))
	assert.Equal(t, "example.com", rec["host"])
	assert.Equal(t, "OPENED_ONCE", rec["action"])
	assert.Equal(t, decision["event_id"], rec["event_id"])

	assertErrorCode(t, call(t, h.HandleRecord, map[string]any{
		"uri": "https://example.com/x", "action": "BLOCKED_ENFORCED",
	}), errors.ErrValidation)

	h.engine.Wait()
	stats := parseOutput(t, call(t, h.HandleUsageStats, nil))
	browsers := stats["browsers"].([]any)
	require.Len(t, browsers, 1)
	assert.Equal(t, "com.browser.b", browsers[0].(map[string]any)["browser_package"])
	assert.Equal(t, float64(1), browsers[0].(map[string]any)["launch_count"])
}

func TestHistoryTools(t *testing.T) {
	h, _ := testSetup(t)

	for i := 0; i < 3; i++ {
		parseOutput(t, call(t, h.HandleRecord, map[string]any{
			"uri": fmt.Sprintf("https://site%d.com/", i), "action": "DISMISSED",
		}))
	}

	page := parseOutput(t, call(t, h.HandleHistoryQuery, map[string]any{
		"limit": 2, "sort_field": "timestamp", "sort_dir": "desc",
	}))
	assert.Len(t, page["items"], 2)
	pagination := page["pagination"].(map[string]any)
	assert.Equal(t, true, pagination["has_more"])
	assert.Equal(t, float64(3), pagination["total"])

	assertErrorCode(t, call(t, h.HandleHistoryQuery, map[string]any{"sort_dir": "sideways"}), errors.ErrValidation)

	first := page["items"].([]any)[0].(map[string]any)
	id := first["id"].(float64)
	got := parseOutput(t, call(t, h.HandleHistoryGet, map[string]any{"id": id}))
	assert.Equal(t, first["uri"], got["uri"])

	parseOutput(t, call(t, h.HandleHistoryDelete, map[string]any{"id": id}))
	assertErrorCode(t, call(t, h.HandleHistoryGet, map[string]any{"id": id}), errors.ErrNotFound)

	assertErrorCode(t, call(t, h.HandleHistoryPurge, map[string]any{"older_than_days": 0}), errors.ErrValidation)
	purged := parseOutput(t, call(t, h.HandleHistoryPurge, map[string]any{"older_than_days": 30}))
	assert.Equal(t, float64(0), purged["purged"])

	cleared := parseOutput(t, call(t, h.HandleHistoryClear, nil))
	assert.Equal(t, float64(2), cleared["purged"])
}

func TestHandleRuleSearch(t *testing.T) {
	h, _ := testSetup(t)

	for _, r := range []struct{ host, status string }{
		{"a.com", "BLOCKED"}, {"b.com", "BLOCKED"}, {"c.com", "BOOKMARKED"},
	} {
		parseOutput(t, call(t, h.HandleRuleSave, map[string]any{"host": r.host, "status": r.status}))
	}

	out := parseOutput(t, call(t, h.HandleRuleSearch, map[string]any{
		"filters":  map[string]any{"status": []any{"BLOCKED"}},
		"group_by": "status",
	}))
	assert.Len(t, out["items"], 2)
	groups := out["groups"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, "BLOCKED", groups[0].(map[string]any)["key"])
}

func TestServerRegistration(t *testing.T) {
	_, deps := testSetup(t)

	s := NewServer(deps, "test")
	tools := s.ListTools()
	require.NotNil(t, tools)

	assert.Len(t, tools, len(toolRegistry))
	for _, name := range AllToolNames() {
		assert.Contains(t, tools, name)
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	_, deps := testSetup(t)

	deps.Config.DisabledTools = []string{"history_clear", "history_purge", "history_clear"}
	tools := NewServer(deps, "test").ListTools()

	assert.Len(t, tools, len(toolRegistry)-2)
	assert.NotContains(t, tools, "history_clear")
	assert.NotContains(t, tools, "history_purge")
	assert.Contains(t, tools, "uri_intercept")
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	_, deps := testSetup(t)

	deps.Config.DisabledTools = AllToolNames()
	assert.Empty(t, NewServer(deps, "test").ListTools())
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"history_purge", "rule_delete"}, 0},
		{"one unknown", []string{"history_purge", "bookmark_export"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ValidateDisabledTools(tt.input), tt.wantLen)
		})
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	err := errors.NewDatabase(fmt.Errorf("open /tmp/secret.db: permission denied"))
	err.Details = map[string]any{"path": "/tmp/secret.db"}

	errObj := errorObject(t, errorResult(err))
	assert.Equal(t, string(errors.ErrDatabase), errObj["code"])
	assert.Equal(t, "database error", errObj["message"])
	assert.NotContains(t, errObj, "details")
}

func TestErrorResult_PlainErrorIsUnknown(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	assert.Equal(t, string(errors.ErrUnknown), errObj["code"])
	assert.Equal(t, "unexpected error", errObj["message"])
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("rules[2]: %w", errors.NewValidation("host is required"))

	errObj := errorObject(t, errorResult(wrapped))
	assert.Equal(t, string(errors.ErrValidation), errObj["code"])
	assert.Contains(t, errObj["message"], "rules[2]")
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("folder", 7)))
	assert.Equal(t, string(errors.ErrNotFound), errObj["code"])
	assert.Contains(t, errObj, "details")
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, result.IsError, "expected success, got error: %s", resultText(result))
	var output map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(result)), &output))
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.True(t, result.IsError, "expected error result, got: %s", resultText(result))
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(result)), &payload))
	errObj, ok := payload["error"].(map[string]any)
	require.True(t, ok, "no error object in payload")
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expected errors.ErrorCode) {
	t.Helper()
	assert.Equal(t, string(expected), errorObject(t, result)["code"], resultText(result))
}

func resultText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
