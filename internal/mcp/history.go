package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/intercept"
	"github.com/hpungsan/hostgate/internal/ops"
	"github.com/hpungsan/hostgate/internal/usage"
)

// InterceptRequest represents the arguments for uri_intercept.
type InterceptRequest struct {
	URI    string `json:"uri"`
	Source string `json:"source,omitempty"`
}

// InterceptResponse is a decision plus whether it degraded around a fault.
type InterceptResponse struct {
	*intercept.Decision
	Degraded bool `json:"degraded,omitempty"`
}

// RecordRequest represents the arguments for uri_record.
type RecordRequest struct {
	URI                  string  `json:"uri"`
	Host                 string  `json:"host,omitempty"`
	Source               string  `json:"source,omitempty"`
	Action               string  `json:"action"`
	ChosenBrowserPackage *string `json:"chosen_browser_package,omitempty"`
	RuleID               *int64  `json:"rule_id,omitempty"`
	EventID              *string `json:"event_id,omitempty"`
}

// HistoryIDRequest addresses one history record.
type HistoryIDRequest struct {
	ID int64 `json:"id"`
}

// HistoryPurgeRequest represents the arguments for history_purge.
type HistoryPurgeRequest struct {
	OlderThanDays int `json:"older_than_days"`
}

// UsageStatsResponse lists launch counts.
type UsageStatsResponse struct {
	Browsers []usage.Entry `json:"browsers"`
}

// HandleIntercept handles the uri_intercept tool call. Every input yields a
// decision; invalid URIs are a decision kind, not a tool error.
func (h *Handlers) HandleIntercept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[InterceptRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	d := h.engine.Decide(ctx, input.URI, domain.ParseSource(input.Source))
	return successResult(InterceptResponse{Decision: d, Degraded: d.Fault != nil})
}

// HandleRecord handles the uri_record tool call.
func (h *Handlers) HandleRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RecordRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.engine.RecordInteraction(ctx, intercept.RecordInput{
		URI:           input.URI,
		Host:          input.Host,
		Source:        input.Source,
		Action:        input.Action,
		ChosenBrowser: input.ChosenBrowserPackage,
		RuleID:        input.RuleID,
		EventID:       input.EventID,
	})
	if err != nil {
		return h.fail("uri_record", err), nil
	}

	return successResult(result)
}

// HandleHistoryQuery handles the history_query tool call.
func (h *Handlers) HandleHistoryQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BrowseRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	browse, err := input.toInput()
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.QueryHistory(ctx, h.store, h.qb, h.cfg, browse)
	if err != nil {
		return h.fail("history_query", err), nil
	}

	return successResult(result)
}

// HandleHistoryGet handles the history_get tool call.
func (h *Handlers) HandleHistoryGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryIDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.GetHistoryRecord(ctx, h.store, input.ID)
	if err != nil {
		return h.fail("history_get", err), nil
	}

	return successResult(result)
}

// HandleHistoryDelete handles the history_delete tool call.
func (h *Handlers) HandleHistoryDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryIDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteHistoryRecord(ctx, h.store, ops.DeleteHistoryRecordInput{ID: input.ID})
	if err != nil {
		return h.fail("history_delete", err), nil
	}

	return successResult(result)
}

// HandleHistoryClear handles the history_clear tool call.
func (h *Handlers) HandleHistoryClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.ClearHistory(ctx, h.store)
	if err != nil {
		return h.fail("history_clear", err), nil
	}

	return successResult(result)
}

// HandleHistoryPurge handles the history_purge tool call.
func (h *Handlers) HandleHistoryPurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryPurgeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.PurgeHistory(ctx, h.store, ops.PurgeHistoryInput{OlderThanDays: input.OlderThanDays})
	if err != nil {
		return h.fail("history_purge", err), nil
	}

	return successResult(result)
}

// HandleUsageStats handles the usage_stats tool call.
func (h *Handlers) HandleUsageStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.counter == nil {
		return successResult(UsageStatsResponse{Browsers: []usage.Entry{}})
	}

	entries, err := h.counter.Stats(ctx)
	if err != nil {
		return h.fail("usage_stats", err), nil
	}
	if entries == nil {
		entries = []usage.Entry{}
	}

	return successResult(UsageStatsResponse{Browsers: entries})
}
