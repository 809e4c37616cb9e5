package ops

import (
	"context"
	"fmt"
	"slices"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

// GetFolderHierarchyInput contains parameters for the GetFolderHierarchy operation.
type GetFolderHierarchyInput struct {
	ID int64
}

// GetFolderHierarchyOutput is the path from the root down to the folder.
type GetFolderHierarchyOutput struct {
	Path []domain.Folder `json:"path"`
}

// GetFolderHierarchy walks parent links upward and returns the path from
// the root to the requested folder, inclusive. A missing parent or a cycle
// is reported as DataIntegrity.
func GetFolderHierarchy(ctx context.Context, store *db.Store, input GetFolderHierarchyInput) (*GetFolderHierarchyOutput, error) {
	f, err := store.GetFolder(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	total, err := store.CountFolders(ctx)
	if err != nil {
		return nil, err
	}

	path, err := walkAncestors(ctx, store, f, total)
	if err != nil {
		return nil, err
	}
	slices.Reverse(path)
	return &GetFolderHierarchyOutput{Path: path}, nil
}

// walkAncestors returns f followed by its ancestors, nearest first. The walk
// is bounded by the folder count so a corrupted cycle cannot loop forever.
func walkAncestors(ctx context.Context, store *db.Store, f *domain.Folder, total int) ([]domain.Folder, error) {
	path := []domain.Folder{*f}
	seen := map[int64]bool{f.ID: true}

	for cur := f; cur.ParentFolderID != nil; {
		if len(path) > total {
			return nil, errors.NewDataIntegrity(fmt.Sprintf("folder %d: hierarchy deeper than folder count", f.ID))
		}
		parentID := *cur.ParentFolderID
		if seen[parentID] {
			return nil, errors.NewDataIntegrity(fmt.Sprintf("folder %d: cycle through folder %d", f.ID, parentID))
		}
		parent, err := store.LookupFolder(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, errors.NewDataIntegrity(fmt.Sprintf("folder %d references missing parent %d", cur.ID, parentID))
		}
		seen[parentID] = true
		path = append(path, *parent)
		cur = parent
	}
	return path, nil
}

// checkNoCycle rejects making folderID a child of newParentID when folderID
// is newParentID or one of its ancestors.
func checkNoCycle(ctx context.Context, tx *db.Store, folderID, newParentID int64) error {
	if folderID == newParentID {
		return errors.NewValidation("a folder cannot be its own parent")
	}
	parent, err := tx.GetFolder(ctx, newParentID)
	if err != nil {
		return err
	}
	total, err := tx.CountFolders(ctx)
	if err != nil {
		return err
	}
	ancestors, err := walkAncestors(ctx, tx, parent, total)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if a.ID == folderID {
			return errors.NewValidation(fmt.Sprintf("moving folder %d under %d would create a cycle", folderID, newParentID))
		}
	}
	return nil
}
