package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
)

// DeleteFolderInput contains parameters for the DeleteFolder operation.
type DeleteFolderInput struct {
	ID           int64
	ForceCascade bool
}

// DeleteFolderOutput contains the result of the DeleteFolder operation.
type DeleteFolderOutput struct {
	Deleted        bool    `json:"deleted"`
	DeletedFolders []int64 `json:"deleted_folders"` // post-order, target last
	DetachedRules  int     `json:"detached_rules"`
}

// DeleteFolder deletes an empty folder, or with ForceCascade the folder and
// all its descendants, detaching (never deleting) their host rules. The
// cascade runs in one transaction.
func DeleteFolder(ctx context.Context, store *db.Store, log logger.Logger, input DeleteFolderInput) (*DeleteFolderOutput, error) {
	if domain.IsReservedRoot(input.ID) {
		return nil, errors.NewValidation("default folders cannot be deleted")
	}

	out := &DeleteFolderOutput{DeletedFolders: []int64{}}
	err := store.InTx(ctx, func(tx *db.Store) error {
		if _, err := tx.GetFolder(ctx, input.ID); err != nil {
			return err
		}

		if !input.ForceCascade {
			children, err := tx.CountChildFolders(ctx, input.ID)
			if err != nil {
				return err
			}
			rules, err := tx.CountHostRulesInFolder(ctx, input.ID)
			if err != nil {
				return err
			}
			if children > 0 || rules > 0 {
				return errors.NewFolderNotEmpty(input.ID, children, rules)
			}
			if err := tx.DeleteFolder(ctx, input.ID); err != nil {
				return err
			}
			out.DeletedFolders = append(out.DeletedFolders, input.ID)
			return nil
		}

		return cascadeDelete(ctx, tx, input.ID, out)
	})
	if err != nil {
		return nil, err
	}

	out.Deleted = true
	if input.ForceCascade {
		log.Info("cascade deleted folder",
			logger.Int64("folder_id", input.ID),
			logger.Int("folders", len(out.DeletedFolders)),
			logger.Int("detached_rules", out.DetachedRules))
	}
	return out, nil
}

// cascadeDelete processes the subtree rooted at rootID in post-order using an
// explicit stack: a folder is detached from its rules and deleted only after
// every child has been.
func cascadeDelete(ctx context.Context, tx *db.Store, rootID int64, out *DeleteFolderOutput) error {
	type frame struct {
		id       int64
		expanded bool
	}

	visited := map[int64]bool{}
	stack := []frame{{id: rootID}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.expanded {
			detached, err := tx.ClearFolderAssociation(ctx, top.id)
			if err != nil {
				return err
			}
			if err := tx.DeleteFolder(ctx, top.id); err != nil {
				return err
			}
			out.DetachedRules += detached
			out.DeletedFolders = append(out.DeletedFolders, top.id)
			continue
		}

		if visited[top.id] {
			return errors.NewDataIntegrity(fmt.Sprintf("folder %d reached twice during cascade delete", top.id))
		}
		visited[top.id] = true

		stack = append(stack, frame{id: top.id, expanded: true})
		children, err := tx.ListChildFolders(ctx, top.id)
		if err != nil {
			return err
		}
		for _, c := range children {
			stack = append(stack, frame{id: c.ID})
		}
	}
	return nil
}
