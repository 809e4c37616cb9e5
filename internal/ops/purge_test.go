package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

func TestPurgeHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })

	for _, age := range []time.Duration{1 * time.Hour, 10 * 24 * time.Hour, 40 * 24 * time.Hour} {
		_, err := store.InsertHistory(ctx, &domain.UriHistoryRecord{
			UriString: "https://a.com/", Host: "a.com",
			Timestamp: fixed.Add(-age).UnixMilli(),
			Source:    domain.SourceManual, Action: domain.ActionDismissed,
		})
		require.NoError(t, err)
	}

	out, err := PurgeHistory(ctx, store, PurgeHistoryInput{OlderThanDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Purged)
	assert.Equal(t, "Permanently deleted 1 history record (older than 30 days)", out.Message)

	out, err = PurgeHistory(ctx, store, PurgeHistoryInput{OlderThanDays: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Purged)

	out, err = PurgeHistory(ctx, store, PurgeHistoryInput{OlderThanDays: 5})
	require.NoError(t, err)
	assert.Zero(t, out.Purged)
	assert.Equal(t, "No history records to purge", out.Message)

	_, err = PurgeHistory(ctx, store, PurgeHistoryInput{})
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestClearAndDeleteHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var ids []int64
	for range 3 {
		id, err := store.InsertHistory(ctx, &domain.UriHistoryRecord{
			UriString: "https://a.com/", Host: "a.com", Source: domain.SourceManual, Action: domain.ActionDismissed,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	del, err := DeleteHistoryRecord(ctx, store, DeleteHistoryRecordInput{ID: ids[0]})
	require.NoError(t, err)
	assert.True(t, del.Deleted)

	_, err = GetHistoryRecord(ctx, store, ids[0])
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = DeleteHistoryRecord(ctx, store, DeleteHistoryRecordInput{ID: ids[0]})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	out, err := ClearHistory(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Purged)
	assert.Equal(t, "Permanently deleted 2 history records", out.Message)
}
