package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

func TestDeleteHostRule(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a, err := SaveHostRule(ctx, store, SaveHostRuleInput{Host: "a.com", Status: "NONE"})
	require.NoError(t, err)
	_, err = SaveHostRule(ctx, store, SaveHostRuleInput{Host: "b.com", Status: "NONE"})
	require.NoError(t, err)

	out, err := DeleteHostRule(ctx, store, DeleteHostRuleInput{ID: a.ID})
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.Equal(t, a.ID, out.ID)

	out, err = DeleteHostRule(ctx, store, DeleteHostRuleInput{Host: "B.COM"})
	require.NoError(t, err)
	assert.Equal(t, "b.com", out.Host)

	_, err = DeleteHostRule(ctx, store, DeleteHostRuleInput{ID: a.ID})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = DeleteHostRule(ctx, store, DeleteHostRuleInput{Host: "b.com"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = DeleteHostRule(ctx, store, DeleteHostRuleInput{ID: 1, Host: "b.com"})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestClearFolderAssociation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bl := domain.DefaultBlockRootID
	for _, h := range []string{"a.com", "b.com"} {
		_, err := SaveHostRule(ctx, store, SaveHostRuleInput{Host: h, Status: "BLOCKED", FolderID: &bl})
		require.NoError(t, err)
	}

	out, err := ClearFolderAssociation(ctx, store, ClearFolderAssociationInput{FolderID: bl})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Detached)

	out, err = ClearFolderAssociation(ctx, store, ClearFolderAssociationInput{FolderID: bl})
	require.NoError(t, err)
	assert.Zero(t, out.Detached)

	// Unknown folders are not an error either
	out, err = ClearFolderAssociation(ctx, store, ClearFolderAssociationInput{FolderID: 999})
	require.NoError(t, err)
	assert.Zero(t, out.Detached)
}
