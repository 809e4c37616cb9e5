package ops

import (
	"strings"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/uri"
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// pageBounds applies the configured default and maximum page size.
func pageBounds(cfg *config.Config, limit, offset int) (int, int) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if limit <= 0 {
		limit = cfg.DefaultPageSize
	}
	if cfg.MaxPageSize > 0 && limit > cfg.MaxPageSize {
		limit = cfg.MaxPageSize
	}
	return limit, max(offset, 0)
}

// RuleAddress identifies a host rule by id or by host.
type RuleAddress struct {
	ByID bool
	ID   int64
	Host string // normalized
}

// ValidateRuleAddress requires exactly one of id or host.
func ValidateRuleAddress(id int64, host string) (*RuleAddress, error) {
	host = strings.TrimSpace(host)
	hasID := id != 0
	hasHost := host != ""

	if hasID && hasHost {
		return nil, errors.NewValidation("specify either id or host, not both")
	}
	if !hasID && !hasHost {
		return nil, errors.NewValidation("must specify either id or host")
	}
	if hasID {
		if id < 0 {
			return nil, errors.NewValidation("id must be positive")
		}
		return &RuleAddress{ByID: true, ID: id}, nil
	}

	normalized, err := normalizeHost(host)
	if err != nil {
		return nil, err
	}
	return &RuleAddress{Host: normalized}, nil
}

// normalizeHost converts a user-supplied host into the stored form.
func normalizeHost(host string) (string, error) {
	if strings.TrimSpace(host) == "" {
		return "", errors.NewValidation("host is required")
	}
	normalized, err := uri.NormalizeHost(host)
	if err != nil {
		return "", errors.NewValidation("invalid host: " + err.Error())
	}
	return normalized, nil
}

// parseStatus parses a persisted rule status. UNKNOWN is rejected.
func parseStatus(s string) (domain.RuleStatus, error) {
	status := domain.ParseRuleStatus(s)
	if !status.Valid() {
		return "", errors.NewValidation("status must be one of: NONE, BOOKMARKED, BLOCKED")
	}
	return status, nil
}

// parseFolderType parses a persisted folder type. UNKNOWN is rejected.
func parseFolderType(s string) (domain.FolderType, error) {
	t := domain.ParseFolderType(s)
	if !t.Valid() {
		return "", errors.NewValidation("type must be one of: BOOKMARK, BLOCK")
	}
	return t, nil
}

// cleanOptionalString trims s and maps blank to nil.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
