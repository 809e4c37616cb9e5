package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

// SaveHostRuleInput contains parameters for the SaveHostRule operation.
type SaveHostRuleInput struct {
	Host                    string  // required
	Status                  string  // NONE, BOOKMARKED or BLOCKED
	FolderID                *int64  // must match the status's folder type
	PreferredBrowserPackage *string // blank clears
	IsPreferenceEnabled     bool
}

// SaveHostRuleOutput contains the result of the SaveHostRule operation.
type SaveHostRuleOutput struct {
	ID      int64            `json:"id"`
	Created bool             `json:"created"`
	Rule    *domain.HostRule `json:"rule"`
}

// SaveHostRule creates the rule for a host or replaces every field of the
// existing one. Omitting FolderID clears the folder.
func SaveHostRule(ctx context.Context, store *db.Store, input SaveHostRuleInput) (*SaveHostRuleOutput, error) {
	host, err := normalizeHost(input.Host)
	if err != nil {
		return nil, err
	}
	status, err := parseStatus(input.Status)
	if err != nil {
		return nil, err
	}

	rule := &domain.HostRule{
		Host:                    host,
		Status:                  status,
		FolderID:                input.FolderID,
		PreferredBrowserPackage: cleanOptionalString(input.PreferredBrowserPackage),
		IsPreferenceEnabled:     input.IsPreferenceEnabled,
	}

	var created bool
	err = store.InTx(ctx, func(tx *db.Store) error {
		if rule.FolderID != nil {
			if err := checkRuleFolder(ctx, tx, status, *rule.FolderID); err != nil {
				return err
			}
		}

		existing, err := tx.LookupHostRule(ctx, host)
		if err != nil {
			return err
		}
		created = existing == nil

		_, err = tx.UpsertHostRule(ctx, rule)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &SaveHostRuleOutput{ID: rule.ID, Created: created, Rule: rule}, nil
}

// checkRuleFolder verifies that a rule with status may live in folderID.
func checkRuleFolder(ctx context.Context, tx *db.Store, status domain.RuleStatus, folderID int64) error {
	want, ok := status.FolderType()
	if !ok {
		return errors.NewValidation(fmt.Sprintf("a %s host rule cannot be placed in a folder", status))
	}
	folder, err := tx.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if folder.Type != want {
		return errors.NewValidation(fmt.Sprintf("a %s host rule needs a %s folder, folder %d is %s",
			status, want, folder.ID, folder.Type))
	}
	return nil
}
