package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

const folderColumns = "id, name, type, parent_folder_id, created_at, updated_at"

// LookupFolder returns the folder with id, or nil if it does not exist.
func (s *Store) LookupFolder(ctx context.Context, id int64) (*domain.Folder, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+folderColumns+" FROM folders WHERE id = ?", id)
	f, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabase(err)
	}
	return f, nil
}

// GetFolder returns the folder with id or a NotFound error.
func (s *Store) GetFolder(ctx context.Context, id int64) (*domain.Folder, error) {
	f, err := s.LookupFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errors.NewNotFound("folder", id)
	}
	return f, nil
}

// WatchFolder streams the folder with id (nil while absent).
func (s *Store) WatchFolder(ctx context.Context, id int64) (<-chan *domain.Folder, error) {
	load := func(ctx context.Context) (*domain.Folder, error) { return s.LookupFolder(ctx, id) }
	return observe(ctx, s, "folder", load, nil, TableFolders)
}

// FindFolder returns the folder with the given sibling key, or nil.
func (s *Store) FindFolder(ctx context.Context, name string, parentID *int64, folderType domain.FolderType) (*domain.Folder, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+folderColumns+" FROM folders WHERE name = ? AND parent_folder_id IS ? AND type = ?",
		name, toNullInt64(parentID), string(folderType))
	f, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabase(err)
	}
	return f, nil
}

// ListChildFolders returns the direct children of parentID ordered by name.
func (s *Store) ListChildFolders(ctx context.Context, parentID int64) ([]domain.Folder, error) {
	return s.listFolders(ctx, "WHERE parent_folder_id = ?", parentID)
}

// WatchChildFolders streams the direct children of parentID.
func (s *Store) WatchChildFolders(ctx context.Context, parentID int64) (<-chan []domain.Folder, error) {
	load := func(ctx context.Context) ([]domain.Folder, error) { return s.ListChildFolders(ctx, parentID) }
	return observe(ctx, s, "child_folders", load, nil, TableFolders)
}

// ListRootFolders returns the roots of one hierarchy.
func (s *Store) ListRootFolders(ctx context.Context, folderType domain.FolderType) ([]domain.Folder, error) {
	return s.listFolders(ctx, "WHERE parent_folder_id IS NULL AND type = ?", string(folderType))
}

// ListFoldersByType returns every folder of one hierarchy.
func (s *Store) ListFoldersByType(ctx context.Context, folderType domain.FolderType) ([]domain.Folder, error) {
	return s.listFolders(ctx, "WHERE type = ?", string(folderType))
}

func (s *Store) listFolders(ctx context.Context, where string, args ...any) ([]domain.Folder, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT "+folderColumns+" FROM folders "+where+" ORDER BY name COLLATE NOCASE, id", args...)
	if err != nil {
		return nil, errors.NewDatabase(err)
	}
	defer rows.Close()

	folders := []domain.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, errors.NewDatabase(err)
		}
		folders = append(folders, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabase(err)
	}
	return folders, nil
}

// CountFolders returns the total number of folders.
func (s *Store) CountFolders(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM folders").Scan(&n); err != nil {
		return 0, errors.NewDatabase(err)
	}
	return n, nil
}

// CountChildFolders returns the number of direct children of id.
func (s *Store) CountChildFolders(ctx context.Context, id int64) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM folders WHERE parent_folder_id = ?", id).Scan(&n); err != nil {
		return 0, errors.NewDatabase(err)
	}
	return n, nil
}

// InsertFolder stores a new folder and returns its id. A non-zero f.ID is
// used as the explicit id. Sets f.ID, f.CreatedAt and f.UpdatedAt.
func (s *Store) InsertFolder(ctx context.Context, f *domain.Folder) (int64, error) {
	now := nowMillis()

	var id sql.NullInt64
	if f.ID != 0 {
		id = sql.NullInt64{Int64: f.ID, Valid: true}
	}

	result, err := s.q.ExecContext(ctx, `
		INSERT INTO folders (id, name, type, parent_folder_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, f.Name, string(f.Type), toNullInt64(f.ParentFolderID), now, now)
	if err != nil {
		return 0, dbError(err)
	}
	newID, err := result.LastInsertId()
	if err != nil {
		return 0, errors.NewDatabase(err)
	}

	f.ID = newID
	f.CreatedAt = now
	f.UpdatedAt = now
	s.changed(TableFolders)
	return newID, nil
}

// UpdateFolder replaces name, type and parent of an existing folder.
func (s *Store) UpdateFolder(ctx context.Context, f *domain.Folder) error {
	now := nowMillis()
	result, err := s.q.ExecContext(ctx, `
		UPDATE folders
		SET name = ?, type = ?, parent_folder_id = ?, updated_at = ?
		WHERE id = ?
	`, f.Name, string(f.Type), toNullInt64(f.ParentFolderID), now, f.ID)
	if err != nil {
		return dbError(err)
	}
	if err := affected(result, "folder", f.ID); err != nil {
		return err
	}

	f.UpdatedAt = now
	s.changed(TableFolders)
	return nil
}

// DeleteFolder removes a single folder row.
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	result, err := s.q.ExecContext(ctx, "DELETE FROM folders WHERE id = ?", id)
	if err != nil {
		return dbError(err)
	}
	if err := affected(result, "folder", id); err != nil {
		return err
	}
	s.changed(TableFolders)
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFolder(row rowScanner) (*domain.Folder, error) {
	var (
		f        domain.Folder
		typ      string
		parentID sql.NullInt64
	)
	if err := row.Scan(&f.ID, &f.Name, &typ, &parentID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.Type = domain.FolderType(typ)
	f.ParentFolderID = fromNullInt64(parentID)
	return &f, nil
}
