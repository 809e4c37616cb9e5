package domain

import "strings"

// RuleStatus is the routing status of a host.
type RuleStatus string

const (
	RuleStatusUnknown    RuleStatus = "UNKNOWN"
	RuleStatusNone       RuleStatus = "NONE"
	RuleStatusBookmarked RuleStatus = "BOOKMARKED"
	RuleStatusBlocked    RuleStatus = "BLOCKED"
)

// ParseRuleStatus parses a status case-insensitively.
// Unrecognized values map to RuleStatusUnknown.
func ParseRuleStatus(s string) RuleStatus {
	switch RuleStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case RuleStatusNone:
		return RuleStatusNone
	case RuleStatusBookmarked:
		return RuleStatusBookmarked
	case RuleStatusBlocked:
		return RuleStatusBlocked
	default:
		return RuleStatusUnknown
	}
}

// Valid reports whether s may be persisted.
func (s RuleStatus) Valid() bool {
	return s == RuleStatusNone || s == RuleStatusBookmarked || s == RuleStatusBlocked
}

// FolderType returns the folder type a rule with this status may live in.
// The second result is false when the status admits no folder.
func (s RuleStatus) FolderType() (FolderType, bool) {
	switch s {
	case RuleStatusBookmarked:
		return FolderTypeBookmark, true
	case RuleStatusBlocked:
		return FolderTypeBlock, true
	default:
		return FolderTypeUnknown, false
	}
}

// HostRule captures the routing decision for one host.
type HostRule struct {
	ID     int64      `json:"id"`
	Host   string     `json:"host"`
	Status RuleStatus `json:"status"`

	// FolderID must reference a folder whose type matches Status
	FolderID *int64 `json:"folder_id,omitempty"`

	PreferredBrowserPackage *string `json:"preferred_browser_package,omitempty"`
	IsPreferenceEnabled     bool    `json:"is_preference_enabled"`

	// CreatedAt and UpdatedAt are Unix milliseconds
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// PreferredBrowser returns the browser that should open this host directly,
// or "" when the rule does not route by preference.
func (r *HostRule) PreferredBrowser() string {
	if r == nil || r.Status == RuleStatusBlocked || !r.IsPreferenceEnabled || r.PreferredBrowserPackage == nil {
		return ""
	}
	return strings.TrimSpace(*r.PreferredBrowserPackage)
}

// Equal reports whether two rules carry identical field values.
func (r *HostRule) Equal(o *HostRule) bool {
	if r == nil || o == nil {
		return r == nil && o == nil
	}
	return r.ID == o.ID &&
		r.Host == o.Host &&
		r.Status == o.Status &&
		SameParent(r.FolderID, o.FolderID) &&
		sameString(r.PreferredBrowserPackage, o.PreferredBrowserPackage) &&
		r.IsPreferenceEnabled == o.IsPreferenceEnabled &&
		r.CreatedAt == o.CreatedAt &&
		r.UpdatedAt == o.UpdatedAt
}

// NormalizeHost trims and lowercases a host and drops a trailing root dot.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimSuffix(host, ".")
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
