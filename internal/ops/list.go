package ops

import (
	"context"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

// ListHostRulesInput selects which rules to list. With no fields set every
// rule is returned.
type ListHostRulesInput struct {
	Status   string // optional filter
	FolderID *int64 // rules placed directly in this folder
	RootOnly bool   // rules of Status that sit in no folder
}

// ListHostRulesOutput contains the result of the ListHostRules operation.
type ListHostRulesOutput struct {
	Rules []domain.HostRule `json:"rules"`
}

// ListHostRules lists rules ordered by host.
func ListHostRules(ctx context.Context, store *db.Store, input ListHostRulesInput) (*ListHostRulesOutput, error) {
	var (
		rules []domain.HostRule
		err   error
	)

	switch {
	case input.FolderID != nil:
		if input.Status != "" || input.RootOnly {
			return nil, errors.NewValidation("folder_id cannot be combined with status or root_only")
		}
		if _, err := store.GetFolder(ctx, *input.FolderID); err != nil {
			return nil, err
		}
		rules, err = store.ListHostRulesByFolder(ctx, *input.FolderID)

	case input.Status != "":
		status, perr := parseStatus(input.Status)
		if perr != nil {
			return nil, perr
		}
		if input.RootOnly {
			rules, err = store.ListRootHostRulesByStatus(ctx, status)
		} else {
			rules, err = store.ListHostRulesByStatus(ctx, status)
		}

	case input.RootOnly:
		return nil, errors.NewValidation("root_only requires a status")

	default:
		rules, err = store.ListHostRules(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &ListHostRulesOutput{Rules: rules}, nil
}
