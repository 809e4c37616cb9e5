package intercept

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/uri"
)

// RecordInput describes what the user did after a ShowPicker decision.
type RecordInput struct {
	URI           string // required
	Host          string // derived from URI when blank
	Source        string
	Action        string // required; engine-only actions are rejected
	ChosenBrowser *string
	RuleID        *int64
	EventID       *string // event id of the decision being answered
}

// RecordInteraction writes a user-driven history record. Actions only the
// engine may write are rejected. A browser launch also bumps the usage
// counter in the background; that failure is logged and never returned.
func (e *Engine) RecordInteraction(ctx context.Context, input RecordInput) (*domain.UriHistoryRecord, error) {
	raw := strings.TrimSpace(input.URI)
	if raw == "" {
		return nil, errors.NewValidation("uri is required")
	}

	action := domain.ParseAction(input.Action)
	if action.Reserved() {
		return nil, errors.NewValidation(fmt.Sprintf("action %q cannot be recorded manually", input.Action))
	}

	host, err := interactionHost(raw, input.Host)
	if err != nil {
		return nil, err
	}

	rec := &domain.UriHistoryRecord{
		UriString:            raw,
		Host:                 host,
		Timestamp:            e.now().UnixMilli(),
		Source:               domain.ParseSource(input.Source),
		Action:               action,
		ChosenBrowserPackage: cleanOptional(input.ChosenBrowser),
		AssociatedHostRuleID: input.RuleID,
		EventID:              cleanOptional(input.EventID),
	}
	if _, err := e.history.InsertHistory(ctx, rec); err != nil {
		return nil, err
	}

	if action.LaunchesBrowser() && rec.ChosenBrowserPackage != nil {
		e.countLaunch(*rec.ChosenBrowserPackage)
	}
	return rec, nil
}

// interactionHost normalizes an explicit host, or derives it from the URI.
func interactionHost(raw, host string) (string, error) {
	if strings.TrimSpace(host) != "" {
		normalized, err := uri.NormalizeHost(host)
		if err != nil {
			return "", errors.NewValidation("invalid host: " + err.Error())
		}
		return normalized, nil
	}
	parsed, err := uri.Validate(raw)
	if err != nil {
		return "", errors.NewValidation("host is required when uri is not a valid web uri")
	}
	return parsed.Host, nil
}

// countLaunch increments the usage counter without blocking the caller.
func (e *Engine) countLaunch(browser string) {
	if e.usage == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), usageTimeout)
		defer cancel()
		if err := e.usage.Increment(ctx, browser); err != nil {
			e.log.Warn("failed to count browser launch",
				logger.String("browser", browser),
				logger.Error(err))
		}
	}()
}

func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
