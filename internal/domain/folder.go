package domain

import "strings"

// FolderType selects which hierarchy a folder belongs to.
type FolderType string

const (
	FolderTypeUnknown  FolderType = "UNKNOWN"
	FolderTypeBookmark FolderType = "BOOKMARK"
	FolderTypeBlock    FolderType = "BLOCK"
)

// Reserved root folders, seeded at startup with well-known ids.
const (
	DefaultBookmarkRootID int64 = 1
	DefaultBlockRootID    int64 = 2

	DefaultBookmarkRootName = "Bookmarked hosts"
	DefaultBlockRootName    = "Blocked hosts"
)

// ParseFolderType parses a folder type case-insensitively.
// Unrecognized values map to FolderTypeUnknown.
func ParseFolderType(s string) FolderType {
	switch FolderType(strings.ToUpper(strings.TrimSpace(s))) {
	case FolderTypeBookmark:
		return FolderTypeBookmark
	case FolderTypeBlock:
		return FolderTypeBlock
	default:
		return FolderTypeUnknown
	}
}

// Valid reports whether t may be persisted.
func (t FolderType) Valid() bool {
	return t == FolderTypeBookmark || t == FolderTypeBlock
}

// Folder is a named node in the bookmark or block hierarchy.
type Folder struct {
	ID int64 `json:"id"`

	// Name is non-blank and unique among siblings of the same type
	Name string `json:"name"`

	Type FolderType `json:"type"`

	// ParentFolderID is nil for roots
	ParentFolderID *int64 `json:"parent_folder_id,omitempty"`

	// CreatedAt and UpdatedAt are Unix milliseconds
	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// IsReservedRoot reports whether id names one of the default root folders.
func IsReservedRoot(id int64) bool {
	return id == DefaultBookmarkRootID || id == DefaultBlockRootID
}

// ReservedRoots returns the default root folders in seeding order.
func ReservedRoots() []Folder {
	return []Folder{
		{ID: DefaultBookmarkRootID, Name: DefaultBookmarkRootName, Type: FolderTypeBookmark},
		{ID: DefaultBlockRootID, Name: DefaultBlockRootName, Type: FolderTypeBlock},
	}
}

// SameParent compares two optional parent ids.
func SameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
