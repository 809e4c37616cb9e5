package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

func hosts(rules []domain.HostRule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Host
	}
	return out
}

func TestListHostRules(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bm := domain.DefaultBookmarkRootID
	for _, in := range []SaveHostRuleInput{
		{Host: "d.com", Status: "BOOKMARKED", FolderID: &bm},
		{Host: "c.com", Status: "BOOKMARKED"},
		{Host: "b.com", Status: "BLOCKED"},
		{Host: "a.com", Status: "NONE"},
	} {
		_, err := SaveHostRule(ctx, store, in)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		input ListHostRulesInput
		want  []string
	}{
		{"all", ListHostRulesInput{}, []string{"a.com", "b.com", "c.com", "d.com"}},
		{"by status", ListHostRulesInput{Status: "bookmarked"}, []string{"c.com", "d.com"}},
		{"by folder", ListHostRulesInput{FolderID: &bm}, []string{"d.com"}},
		{"root by status", ListHostRulesInput{Status: "BOOKMARKED", RootOnly: true}, []string{"c.com"}},
		{"empty folder", ListHostRulesInput{FolderID: int64Ptr(domain.DefaultBlockRootID)}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ListHostRules(ctx, store, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hosts(out.Rules))
		})
	}

	_, err := ListHostRules(ctx, store, ListHostRulesInput{RootOnly: true})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	_, err = ListHostRules(ctx, store, ListHostRulesInput{Status: "UNKNOWN"})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	_, err = ListHostRules(ctx, store, ListHostRulesInput{FolderID: &bm, Status: "BOOKMARKED"})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	_, err = ListHostRules(ctx, store, ListHostRulesInput{FolderID: int64Ptr(999)})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
