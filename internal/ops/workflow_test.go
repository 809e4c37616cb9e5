package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/query"
)

// TestFullWorkflow exercises the folder and rule lifecycle:
// create folders → save rule → reject mismatch → refuse delete → cascade →
// rule detached → search
func TestFullWorkflow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// 1. Folders
	bookmarks, err := CreateFolder(ctx, store, CreateFolderInput{Name: "Bookmarks", Type: "BOOKMARK"})
	require.NoError(t, err)
	work, err := CreateFolder(ctx, store, CreateFolderInput{Name: "Work", Type: "BOOKMARK", ParentFolderID: &bookmarks.ID})
	require.NoError(t, err)

	// 2. Rule in Work
	saved, err := SaveHostRule(ctx, store, SaveHostRuleInput{Host: "example.com", Status: "BOOKMARKED", FolderID: &work.ID})
	require.NoError(t, err)

	// 3. Type mismatch
	_, err = SaveHostRule(ctx, store, SaveHostRuleInput{Host: "example.com", Status: "BLOCKED", FolderID: &work.ID})
	require.True(t, errors.Is(err, errors.ErrValidation))

	// 4. Non-cascading delete refused
	_, err = DeleteFolder(ctx, store, logger.NewNop(), DeleteFolderInput{ID: work.ID})
	require.True(t, errors.Is(err, errors.ErrFolderNotEmpty))

	// 5. Cascade from the top
	out, err := DeleteFolder(ctx, store, logger.NewNop(), DeleteFolderInput{ID: bookmarks.ID, ForceCascade: true})
	require.NoError(t, err)
	require.Equal(t, []int64{work.ID, bookmarks.ID}, out.DeletedFolders)
	require.Equal(t, 1, out.DetachedRules)

	// 6. Rule survives without a folder
	rule, err := GetHostRule(ctx, store, GetHostRuleInput{Host: "example.com"})
	require.NoError(t, err)
	require.Equal(t, saved.ID, rule.ID)
	require.Nil(t, rule.FolderID)
	require.Equal(t, domain.RuleStatusBookmarked, rule.Status)

	// 7. Rule browser sees it among root bookmarks
	page, err := SearchHostRules(ctx, store, query.NewBuilder(logger.NewNop(), ""), config.DefaultConfig(), BrowseInput{
		Spec: query.Spec{Filters: map[query.Dimension][]string{query.DimStatus: {"BOOKMARKED"}}},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "example.com", page.Items[0].Host)

	// 8. Default roots are untouched
	list, err := ListFolders(ctx, store, ListFoldersInput{Type: "BOOKMARK"})
	require.NoError(t, err)
	require.Len(t, list.Folders, 1)
	require.Equal(t, domain.DefaultBookmarkRootID, list.Folders[0].ID)
}
