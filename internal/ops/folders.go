package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
)

// EnsureDefaultFolders creates the reserved root folders if they are absent.
// Safe to call on every startup.
func EnsureDefaultFolders(ctx context.Context, store *db.Store, log logger.Logger) error {
	return store.InTx(ctx, func(tx *db.Store) error {
		for _, root := range domain.ReservedRoots() {
			existing, err := tx.LookupFolder(ctx, root.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.Type != root.Type || existing.ParentFolderID != nil {
					return errors.NewDataIntegrity(fmt.Sprintf("reserved folder %d has type %s and parent %v",
						root.ID, existing.Type, existing.ParentFolderID))
				}
				continue
			}

			f := root
			if _, err := tx.InsertFolder(ctx, &f); err != nil {
				return err
			}
			log.Debug("seeded default folder",
				logger.Int64("folder_id", f.ID),
				logger.String("name", f.Name),
				logger.String("type", string(f.Type)))
		}
		return nil
	})
}

// CreateFolderInput contains parameters for the CreateFolder operation.
type CreateFolderInput struct {
	Name           string // required
	Type           string // BOOKMARK or BLOCK
	ParentFolderID *int64 // nil creates a root
}

// CreateFolderOutput contains the result of the CreateFolder operation.
type CreateFolderOutput struct {
	ID     int64          `json:"id"`
	Folder *domain.Folder `json:"folder"`
}

// CreateFolder creates a folder under an optional parent of the same type.
func CreateFolder(ctx context.Context, store *db.Store, input CreateFolderInput) (*CreateFolderOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewValidation("name is required")
	}
	folderType, err := parseFolderType(input.Type)
	if err != nil {
		return nil, err
	}

	f := &domain.Folder{Name: name, Type: folderType, ParentFolderID: input.ParentFolderID}

	err = store.InTx(ctx, func(tx *db.Store) error {
		if f.ParentFolderID != nil {
			parent, err := tx.GetFolder(ctx, *f.ParentFolderID)
			if err != nil {
				return err
			}
			if parent.Type != folderType {
				return errors.NewValidation(fmt.Sprintf("parent folder %d has type %s, not %s", parent.ID, parent.Type, folderType))
			}
		}
		if err := checkSiblingName(ctx, tx, f); err != nil {
			return err
		}
		_, err := tx.InsertFolder(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &CreateFolderOutput{ID: f.ID, Folder: f}, nil
}

// UpdateFolderInput replaces the mutable fields of a folder.
type UpdateFolderInput struct {
	ID             int64  // required
	Name           string // required
	Type           string // BOOKMARK or BLOCK
	ParentFolderID *int64 // nil makes the folder a root
}

// UpdateFolderOutput contains the result of the UpdateFolder operation.
type UpdateFolderOutput struct {
	Folder *domain.Folder `json:"folder"`
}

// UpdateFolder renames, moves or retypes a folder. Reserved roots may only be
// renamed. A move re-validates parent type, sibling uniqueness and
// cycle-freedom; a type change is only allowed on an empty folder.
func UpdateFolder(ctx context.Context, store *db.Store, input UpdateFolderInput) (*UpdateFolderOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.NewValidation("name is required")
	}
	folderType, err := parseFolderType(input.Type)
	if err != nil {
		return nil, err
	}
	if input.ParentFolderID != nil && *input.ParentFolderID == input.ID {
		return nil, errors.NewValidation("a folder cannot be its own parent")
	}

	var updated *domain.Folder
	err = store.InTx(ctx, func(tx *db.Store) error {
		existing, err := tx.GetFolder(ctx, input.ID)
		if err != nil {
			return err
		}

		moved := !domain.SameParent(existing.ParentFolderID, input.ParentFolderID)
		retyped := existing.Type != folderType

		if domain.IsReservedRoot(existing.ID) && (moved || retyped) {
			return errors.NewValidation("only the name of a default folder can change")
		}

		if retyped {
			if err := requireEmptyForRetype(ctx, tx, existing.ID); err != nil {
				return err
			}
		}

		if input.ParentFolderID != nil && (moved || retyped) {
			parent, err := tx.GetFolder(ctx, *input.ParentFolderID)
			if err != nil {
				return err
			}
			if parent.Type != folderType {
				return errors.NewValidation(fmt.Sprintf("parent folder %d has type %s, not %s", parent.ID, parent.Type, folderType))
			}
			if moved {
				if err := checkNoCycle(ctx, tx, existing.ID, parent.ID); err != nil {
					return err
				}
			}
		}

		f := *existing
		f.Name = name
		f.Type = folderType
		f.ParentFolderID = input.ParentFolderID
		if err := checkSiblingName(ctx, tx, &f); err != nil {
			return err
		}
		if err := tx.UpdateFolder(ctx, &f); err != nil {
			return err
		}
		updated = &f
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &UpdateFolderOutput{Folder: updated}, nil
}

// requireEmptyForRetype rejects a type change while anything depends on the
// folder's current type.
func requireEmptyForRetype(ctx context.Context, tx *db.Store, id int64) error {
	children, err := tx.CountChildFolders(ctx, id)
	if err != nil {
		return err
	}
	rules, err := tx.CountHostRulesInFolder(ctx, id)
	if err != nil {
		return err
	}
	if children > 0 || rules > 0 {
		return errors.NewValidation("cannot change the type of a folder that has child folders or host rules")
	}
	return nil
}

// checkSiblingName rejects a name already used by another folder under the
// same parent with the same type.
func checkSiblingName(ctx context.Context, tx *db.Store, f *domain.Folder) error {
	sibling, err := tx.FindFolder(ctx, f.Name, f.ParentFolderID, f.Type)
	if err != nil {
		return err
	}
	if sibling != nil && sibling.ID != f.ID {
		return errors.NewConflict(fmt.Sprintf("a %s folder named %q already exists here", f.Type, f.Name))
	}
	return nil
}

// GetFolderInput contains parameters for the GetFolder operation.
type GetFolderInput struct {
	ID int64
}

// GetFolder returns one folder.
func GetFolder(ctx context.Context, store *db.Store, input GetFolderInput) (*domain.Folder, error) {
	return store.GetFolder(ctx, input.ID)
}

// ListFoldersInput selects children of a folder, or the roots (or every
// folder) of one type.
type ListFoldersInput struct {
	ParentFolderID *int64
	Type           string // required without ParentFolderID
	All            bool   // every folder of Type, not just roots
}

// ListFoldersOutput contains the result of the ListFolders operation.
type ListFoldersOutput struct {
	Folders []domain.Folder `json:"folders"`
}

// ListFolders lists folders ordered by name.
func ListFolders(ctx context.Context, store *db.Store, input ListFoldersInput) (*ListFoldersOutput, error) {
	var (
		folders []domain.Folder
		err     error
	)
	if input.ParentFolderID != nil {
		if input.All {
			return nil, errors.NewValidation("all cannot be combined with a parent folder")
		}
		if _, err := store.GetFolder(ctx, *input.ParentFolderID); err != nil {
			return nil, err
		}
		folders, err = store.ListChildFolders(ctx, *input.ParentFolderID)
	} else {
		folderType, perr := parseFolderType(input.Type)
		if perr != nil {
			return nil, perr
		}
		if input.All {
			folders, err = store.ListFoldersByType(ctx, folderType)
		} else {
			folders, err = store.ListRootFolders(ctx, folderType)
		}
	}
	if err != nil {
		return nil, err
	}
	return &ListFoldersOutput{Folders: folders}, nil
}

// WatchFolder streams one folder, or nil while it does not exist. It emits
// again only when that folder's row changes.
func WatchFolder(ctx context.Context, store *db.Store, id int64) (<-chan *domain.Folder, error) {
	if id <= 0 {
		return nil, errors.NewValidation("folder id must be positive")
	}
	return store.WatchFolder(ctx, id)
}

// WatchFolderChildren streams the direct children of parentID, re-emitting
// after every change to the folder set.
func WatchFolderChildren(ctx context.Context, store *db.Store, parentID int64) (<-chan []domain.Folder, error) {
	return store.WatchChildFolders(ctx, parentID)
}
