// Package intercept decides what happens to an intercepted URI and records
// the user's follow-up interaction.
package intercept

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/uri"
	"github.com/hpungsan/hostgate/internal/watch"
)

// Kind is the outcome of one interception.
type Kind string

const (
	KindBlocked      Kind = "BLOCKED"
	KindOpenDirectly Kind = "OPEN_DIRECTLY"
	KindShowPicker   Kind = "SHOW_PICKER"
	KindInvalidUri   Kind = "INVALID_URI"
)

// Decision is the result of Decide.
type Decision struct {
	Kind    Kind   `json:"kind"`
	EventID string `json:"event_id"`
	URI     string `json:"uri"`
	Host    string `json:"host,omitempty"`

	// BrowserPackage is set for OpenDirectly
	BrowserPackage string `json:"browser_package,omitempty"`

	// RuleID is the matched rule; nil when none matched or the lookup failed
	RuleID *int64 `json:"rule_id,omitempty"`

	// Reason is set for InvalidUri
	Reason uri.Reason `json:"reason,omitempty"`

	// HistoryID is the record written for Blocked and OpenDirectly
	HistoryID *int64 `json:"history_id,omitempty"`

	// Fault is an internal failure the decision degraded around. It never
	// changes a Blocked or OpenDirectly outcome into an error.
	Fault error `json:"-"`
}

// RuleSource is the reactive read model of host rules.
type RuleSource interface {
	WatchHostRule(ctx context.Context, host string) (<-chan *domain.HostRule, error)
}

// HistoryRecorder appends history records.
type HistoryRecorder interface {
	InsertHistory(ctx context.Context, rec *domain.UriHistoryRecord) (int64, error)
}

// UsageCounter counts browser launches.
type UsageCounter interface {
	Increment(ctx context.Context, browserPackage string) error
}

// DefaultLookupTimeout bounds the wait for the first rule value.
const DefaultLookupTimeout = 5 * time.Second

// usageTimeout bounds one fire-and-forget usage increment.
const usageTimeout = 5 * time.Second

// Engine is the interception decision engine.
type Engine struct {
	rules   RuleSource
	history HistoryRecorder
	usage   UsageCounter
	log     logger.Logger

	lookupTimeout time.Duration
	now           func() time.Time

	// background usage increments
	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLookupTimeout overrides DefaultLookupTimeout.
func WithLookupTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lookupTimeout = d }
}

// WithClock overrides the clock used for history timestamps and event ids.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine. usage may be nil to disable launch counting.
func New(rules RuleSource, history HistoryRecorder, usage UsageCounter, log logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		rules:         rules,
		history:       history,
		usage:         usage,
		log:           log,
		lookupTimeout: DefaultLookupTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Decide validates raw, looks up the host's rule and returns exactly one
// outcome. Enforced outcomes are written to history. A lookup fault
// degrades to ShowPicker without a rule id.
func (e *Engine) Decide(ctx context.Context, raw string, source domain.Source) *Decision {
	d := &Decision{EventID: e.newEventID(), URI: strings.TrimSpace(raw)}
	log := e.log.With(logger.String("event_id", d.EventID))

	parsed, err := uri.Validate(raw)
	if err != nil {
		d.Kind = KindInvalidUri
		d.Reason = uri.ReasonInvalid
		var verr *uri.ValidationError
		if stderrors.As(err, &verr) {
			d.Reason = verr.Reason
		}
		log.Debug("rejected uri", logger.String("reason", string(d.Reason)))
		return d
	}
	d.URI = parsed.Raw
	d.Host = parsed.Host

	rule, err := e.lookup(ctx, parsed.Host)
	if err != nil {
		log.Error("host rule lookup failed, showing picker",
			logger.String("host", parsed.Host),
			logger.Error(err))
		d.Kind = KindShowPicker
		d.Fault = err
		return d
	}
	if rule != nil {
		d.RuleID = &rule.ID
	}

	switch {
	case rule != nil && rule.Status == domain.RuleStatusBlocked:
		d.Kind = KindBlocked
		e.recordEnforced(ctx, log, d, source, domain.ActionBlockedEnforced, nil)

	case rule.PreferredBrowser() != "":
		d.Kind = KindOpenDirectly
		d.BrowserPackage = rule.PreferredBrowser()
		e.recordEnforced(ctx, log, d, source, domain.ActionOpenedByPreference, &d.BrowserPackage)

	default:
		d.Kind = KindShowPicker
	}

	log.Debug("interception decided",
		logger.String("host", d.Host),
		logger.String("kind", string(d.Kind)))
	return d
}

// lookup returns the first value of the host's reactive rule stream.
func (e *Engine) lookup(ctx context.Context, host string) (rule *domain.HostRule, err error) {
	defer func() {
		if r := recover(); r != nil {
			rule, err = nil, errors.NewUnknown(stderrors.New("panic during host rule lookup"))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	ch, err := e.rules.WatchHostRule(ctx, host)
	if err != nil {
		return nil, err
	}
	return watch.Receive(ctx, ch)
}

// recordEnforced writes the history row for an enforced outcome. A failed
// write is logged and kept on the decision; the outcome stands.
func (e *Engine) recordEnforced(ctx context.Context, log logger.Logger, d *Decision, source domain.Source, action domain.Action, browser *string) {
	eventID := d.EventID
	rec := &domain.UriHistoryRecord{
		UriString:            d.URI,
		Host:                 d.Host,
		Timestamp:            e.now().UnixMilli(),
		Source:               source,
		Action:               action,
		ChosenBrowserPackage: browser,
		AssociatedHostRuleID: d.RuleID,
		EventID:              &eventID,
	}
	id, err := e.history.InsertHistory(ctx, rec)
	if err != nil {
		log.Error("failed to record enforced decision",
			logger.String("action", string(action)),
			logger.Error(err))
		d.Fault = err
		return
	}
	d.HistoryID = &id
}

func (e *Engine) newEventID() string {
	id, err := ulid.New(ulid.Timestamp(e.now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

// Wait blocks until background usage increments have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}
