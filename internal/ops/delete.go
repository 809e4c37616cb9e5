package ops

import (
	"context"

	"github.com/hpungsan/hostgate/internal/db"
)

// DeleteHostRuleInput addresses the rule to delete by id or host.
type DeleteHostRuleInput struct {
	ID   int64
	Host string
}

// DeleteHostRuleOutput contains the result of the DeleteHostRule operation.
type DeleteHostRuleOutput struct {
	Deleted bool   `json:"deleted"`
	ID      int64  `json:"id,omitempty"`
	Host    string `json:"host,omitempty"`
}

// DeleteHostRule deletes a rule. History rows that referenced it keep their
// content and lose the reference.
func DeleteHostRule(ctx context.Context, store *db.Store, input DeleteHostRuleInput) (*DeleteHostRuleOutput, error) {
	addr, err := ValidateRuleAddress(input.ID, input.Host)
	if err != nil {
		return nil, err
	}

	if addr.ByID {
		if err := store.DeleteHostRuleByID(ctx, addr.ID); err != nil {
			return nil, err
		}
		return &DeleteHostRuleOutput{Deleted: true, ID: addr.ID}, nil
	}

	if err := store.DeleteHostRuleByHost(ctx, addr.Host); err != nil {
		return nil, err
	}
	return &DeleteHostRuleOutput{Deleted: true, Host: addr.Host}, nil
}

// ClearFolderAssociationInput contains parameters for the ClearFolderAssociation operation.
type ClearFolderAssociationInput struct {
	FolderID int64
}

// ClearFolderAssociationOutput contains the result of the ClearFolderAssociation operation.
type ClearFolderAssociationOutput struct {
	Detached int `json:"detached"`
}

// ClearFolderAssociation detaches every rule from a folder. Zero matches
// is a success.
func ClearFolderAssociation(ctx context.Context, store *db.Store, input ClearFolderAssociationInput) (*ClearFolderAssociationOutput, error) {
	n, err := store.ClearFolderAssociation(ctx, input.FolderID)
	if err != nil {
		return nil, err
	}
	return &ClearFolderAssociationOutput{Detached: n}, nil
}
