package domain

import "strings"

// Source describes how a URI was captured.
type Source string

const (
	SourceUnknown   Source = "UNKNOWN"
	SourceIntent    Source = "INTENT"
	SourceClipboard Source = "CLIPBOARD"
	SourceShare     Source = "SHARE"
	SourceManual    Source = "MANUAL"
)

var knownSources = []Source{SourceIntent, SourceClipboard, SourceShare, SourceManual}

// ParseSource parses a source case-insensitively.
func ParseSource(s string) Source {
	v := Source(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range knownSources {
		if v == k {
			return k
		}
	}
	return SourceUnknown
}

// Action is the outcome recorded for an intercepted URI.
type Action string

const (
	ActionUnknown            Action = "UNKNOWN"
	ActionBlockedEnforced    Action = "BLOCKED_ENFORCED"
	ActionOpenedByPreference Action = "OPENED_BY_PREFERENCE"
	ActionOpenedOnce         Action = "OPENED_ONCE"
	ActionOpenedAlways       Action = "OPENED_ALWAYS"
	ActionBookmarked         Action = "BOOKMARKED"
	ActionBlockedByUser      Action = "BLOCKED_BY_USER"
	ActionDismissed          Action = "DISMISSED"
)

var knownActions = []Action{
	ActionBlockedEnforced, ActionOpenedByPreference, ActionOpenedOnce,
	ActionOpenedAlways, ActionBookmarked, ActionBlockedByUser, ActionDismissed,
}

// ParseAction parses an action case-insensitively.
func ParseAction(s string) Action {
	v := Action(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range knownActions {
		if v == k {
			return k
		}
	}
	return ActionUnknown
}

// Reserved reports whether the action is only ever written by the
// interception engine itself.
func (a Action) Reserved() bool {
	return a == ActionBlockedEnforced || a == ActionOpenedByPreference || a == ActionUnknown
}

// LaunchesBrowser reports whether the action denotes an actual browser launch.
func (a Action) LaunchesBrowser() bool {
	return a == ActionOpenedOnce || a == ActionOpenedAlways || a == ActionOpenedByPreference
}

// UriHistoryRecord is one logged interaction with an intercepted URI.
type UriHistoryRecord struct {
	ID        int64  `json:"id"`
	UriString string `json:"uri"`
	Host      string `json:"host"`

	// Timestamp is Unix milliseconds
	Timestamp int64 `json:"timestamp"`

	Source               Source  `json:"source"`
	Action               Action  `json:"action"`
	ChosenBrowserPackage *string `json:"chosen_browser_package,omitempty"`

	// AssociatedHostRuleID is a weak reference; cleared when the rule is deleted
	AssociatedHostRuleID *int64 `json:"associated_host_rule_id,omitempty"`

	// EventID is the interception event id, set for engine-written rows
	EventID *string `json:"event_id,omitempty"`
}
