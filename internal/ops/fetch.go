package ops

import (
	"context"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
)

// GetHostRuleInput addresses a rule by id or host.
type GetHostRuleInput struct {
	ID   int64
	Host string
}

// GetHostRule returns one rule or NotFound.
func GetHostRule(ctx context.Context, store *db.Store, input GetHostRuleInput) (*domain.HostRule, error) {
	addr, err := ValidateRuleAddress(input.ID, input.Host)
	if err != nil {
		return nil, err
	}
	if addr.ByID {
		return store.GetHostRuleByID(ctx, addr.ID)
	}

	rule, err := store.LookupHostRule(ctx, addr.Host)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, errors.NewNotFound("host rule", addr.Host)
	}
	return rule, nil
}

// WatchHostRule streams the current rule for host (nil while none exists)
// and re-emits after every write that changes it.
func WatchHostRule(ctx context.Context, store *db.Store, host string) (<-chan *domain.HostRule, error) {
	normalized, err := normalizeHost(host)
	if err != nil {
		return nil, err
	}
	return store.WatchHostRule(ctx, normalized)
}
