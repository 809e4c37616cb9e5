package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

// PurgeHistoryInput contains parameters for the PurgeHistory operation.
type PurgeHistoryInput struct {
	OlderThanDays int // required, > 0
}

// PurgeHistoryOutput contains the result of the PurgeHistory and
// ClearHistory operations.
type PurgeHistoryOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// now is the clock used for retention cutoffs.
var now = time.Now

// PurgeHistory deletes history records older than the given number of days.
func PurgeHistory(ctx context.Context, store *db.Store, input PurgeHistoryInput) (*PurgeHistoryOutput, error) {
	if input.OlderThanDays <= 0 {
		return nil, errors.NewValidation("older_than_days must be positive")
	}
	cutoff := now().Add(-time.Duration(input.OlderThanDays) * 24 * time.Hour).UnixMilli()

	count, err := store.DeleteHistoryOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return &PurgeHistoryOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, &input.OlderThanDays),
	}, nil
}

// ClearHistory deletes every history record.
func ClearHistory(ctx context.Context, store *db.Store) (*PurgeHistoryOutput, error) {
	count, err := store.DeleteAllHistory(ctx)
	if err != nil {
		return nil, err
	}
	return &PurgeHistoryOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, nil),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, olderThanDays *int) string {
	if count == 0 {
		return "No history records to purge"
	}

	recordWord := "record"
	if count > 1 {
		recordWord = "records"
	}

	msg := fmt.Sprintf("Permanently deleted %d history %s", count, recordWord)
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (older than %d days)", *olderThanDays)
	}
	return msg
}

// DeleteHistoryRecordInput contains parameters for the DeleteHistoryRecord operation.
type DeleteHistoryRecordInput struct {
	ID int64
}

// DeleteHistoryRecordOutput contains the result of the DeleteHistoryRecord operation.
type DeleteHistoryRecordOutput struct {
	Deleted bool  `json:"deleted"`
	ID      int64 `json:"id"`
}

// DeleteHistoryRecord deletes one history record.
func DeleteHistoryRecord(ctx context.Context, store *db.Store, input DeleteHistoryRecordInput) (*DeleteHistoryRecordOutput, error) {
	if err := store.DeleteHistoryRecord(ctx, input.ID); err != nil {
		return nil, err
	}
	return &DeleteHistoryRecordOutput{Deleted: true, ID: input.ID}, nil
}

// GetHistoryRecord returns one history record.
func GetHistoryRecord(ctx context.Context, store *db.Store, id int64) (*domain.UriHistoryRecord, error) {
	return store.GetHistoryRecord(ctx, id)
}
