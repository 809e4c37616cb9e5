package ops

import (
	"context"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
)

// MoveHostRuleInput contains parameters for the MoveHostRuleToFolder operation.
type MoveHostRuleInput struct {
	HostRuleID          int64
	DestinationFolderID *int64 // nil clears the folder
}

// MoveHostRuleOutput contains the result of the MoveHostRuleToFolder operation.
type MoveHostRuleOutput struct {
	Moved bool             `json:"moved"` // false when the rule was already there
	Rule  *domain.HostRule `json:"rule"`
}

// MoveHostRuleToFolder places a rule in a folder of its status's type, or
// clears its folder. The status never changes.
func MoveHostRuleToFolder(ctx context.Context, store *db.Store, input MoveHostRuleInput) (*MoveHostRuleOutput, error) {
	out := &MoveHostRuleOutput{}
	err := store.InTx(ctx, func(tx *db.Store) error {
		rule, err := tx.GetHostRuleByID(ctx, input.HostRuleID)
		if err != nil {
			return err
		}
		out.Rule = rule

		if domain.SameParent(rule.FolderID, input.DestinationFolderID) {
			return nil
		}
		if input.DestinationFolderID != nil {
			if err := checkRuleFolder(ctx, tx, rule.Status, *input.DestinationFolderID); err != nil {
				return err
			}
		}

		if err := tx.SetHostRuleFolder(ctx, rule.ID, input.DestinationFolderID); err != nil {
			return err
		}
		out.Moved = true
		out.Rule, err = tx.GetHostRuleByID(ctx, rule.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
