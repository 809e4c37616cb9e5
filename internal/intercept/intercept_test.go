package intercept

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/query"
	"github.com/hpungsan/hostgate/internal/uri"
)

func openStore(t *testing.T) *db.Store {
	t.Helper()
	store, err := db.Open(t.TempDir(), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveRule(t *testing.T, store *db.Store, r domain.HostRule) int64 {
	t.Helper()
	id, err := store.UpsertHostRule(context.Background(), &r)
	require.NoError(t, err)
	return id
}

func historyRows(t *testing.T, store *db.Store) []db.HistoryRow {
	t.Helper()
	qb := query.NewBuilder(logger.NewNop(), "")
	rows, err := store.QueryHistory(context.Background(), qb.SafeItems(query.History, query.Spec{}, query.Page{}))
	require.NoError(t, err)
	return rows
}

// failingSource simulates a storage fault on lookup.
type failingSource struct{ err error }

func (f failingSource) WatchHostRule(context.Context, string) (<-chan *domain.HostRule, error) {
	return nil, f.err
}

// silentSource never emits.
type silentSource struct{}

func (silentSource) WatchHostRule(context.Context, string) (<-chan *domain.HostRule, error) {
	return make(chan *domain.HostRule), nil
}

// panickySource panics on lookup.
type panickySource struct{}

func (panickySource) WatchHostRule(context.Context, string) (<-chan *domain.HostRule, error) {
	panic("boom")
}

// recordingCounter records increments.
type recordingCounter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (c *recordingCounter) Increment(_ context.Context, browser string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, browser)
	return c.err
}

func (c *recordingCounter) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// staleSource returns a fixed rule the store may no longer hold.
type staleSource struct{ rule domain.HostRule }

func (s staleSource) WatchHostRule(context.Context, string) (<-chan *domain.HostRule, error) {
	ch := make(chan *domain.HostRule, 1)
	r := s.rule
	ch <- &r
	return ch, nil
}

// failingHistory rejects every insert.
type failingHistory struct{}

func (failingHistory) InsertHistory(context.Context, *domain.UriHistoryRecord) (int64, error) {
	return 0, errors.NewDatabase(stderrors.New("disk full"))
}

func TestDecide_InvalidUri(t *testing.T) {
	store := openStore(t)
	e := New(store, store, nil, logger.NewNop())

	tests := []struct {
		input  string
		reason uri.Reason
	}{
		{"not a url", uri.ReasonInvalid},
		{"", uri.ReasonBlankOrEmpty},
		{"   ", uri.ReasonBlankOrEmpty},
		{"ftp://example.com/x", uri.ReasonInvalid},
	}
	for _, tt := range tests {
		d := e.Decide(context.Background(), tt.input, domain.SourceIntent)
		assert.Equal(t, KindInvalidUri, d.Kind, tt.input)
		assert.Equal(t, tt.reason, d.Reason, tt.input)
		assert.Nil(t, d.RuleID)
	}
	assert.Empty(t, historyRows(t, store))
}

func TestDecide_Blocked(t *testing.T) {
	store := openStore(t)
	ruleID := saveRule(t, store, domain.HostRule{
		Host:                    "blocked.com",
		Status:                  domain.RuleStatusBlocked,
		PreferredBrowserPackage: stringPtr("com.browser.a"),
		IsPreferenceEnabled:     true,
	})
	e := New(store, store, nil, logger.NewNop())

	d := e.Decide(context.Background(), "https://blocked.com/x", domain.SourceIntent)
	require.Equal(t, KindBlocked, d.Kind)
	require.NotNil(t, d.RuleID)
	assert.Equal(t, ruleID, *d.RuleID)
	assert.Empty(t, d.BrowserPackage)
	assert.NoError(t, d.Fault)
	require.NotNil(t, d.HistoryID)

	rows := historyRows(t, store)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ActionBlockedEnforced, rows[0].Action)
	assert.Nil(t, rows[0].ChosenBrowserPackage)
	assert.Equal(t, ruleID, *rows[0].AssociatedHostRuleID)
	assert.Equal(t, "https://blocked.com/x", rows[0].UriString)
	assert.Equal(t, domain.SourceIntent, rows[0].Source)
	require.NotNil(t, rows[0].EventID)
	assert.Equal(t, d.EventID, *rows[0].EventID)
}

func TestDecide_OpenDirectly(t *testing.T) {
	store := openStore(t)
	ruleID := saveRule(t, store, domain.HostRule{
		Host:                    "pref.com",
		Status:                  domain.RuleStatusNone,
		PreferredBrowserPackage: stringPtr("com.browser.a"),
		IsPreferenceEnabled:     true,
	})
	e := New(store, store, nil, logger.NewNop())

	d := e.Decide(context.Background(), "https://PREF.com/x", domain.SourceShare)
	require.Equal(t, KindOpenDirectly, d.Kind)
	assert.Equal(t, "com.browser.a", d.BrowserPackage)
	assert.Equal(t, ruleID, *d.RuleID)
	assert.Equal(t, "pref.com", d.Host)

	rows := historyRows(t, store)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ActionOpenedByPreference, rows[0].Action)
	assert.Equal(t, "com.browser.a", *rows[0].ChosenBrowserPackage)

	_, err := e.RecordInteraction(context.Background(), RecordInput{
		URI:    "https://pref.com/x",
		Action: string(domain.ActionOpenedByPreference),
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Len(t, historyRows(t, store), 1)
}

func TestDecide_ShowPicker(t *testing.T) {
	store := openStore(t)
	disabledID := saveRule(t, store, domain.HostRule{
		Host:                    "disabled.com",
		Status:                  domain.RuleStatusBookmarked,
		PreferredBrowserPackage: stringPtr("com.browser.a"),
		IsPreferenceEnabled:     false,
	})
	saveRule(t, store, domain.HostRule{
		Host:                    "blank.com",
		Status:                  domain.RuleStatusNone,
		PreferredBrowserPackage: stringPtr("   "),
		IsPreferenceEnabled:     true,
	})
	e := New(store, store, nil, logger.NewNop())

	d := e.Decide(context.Background(), "https://unknown.com/", domain.SourceClipboard)
	assert.Equal(t, KindShowPicker, d.Kind)
	assert.Nil(t, d.RuleID)
	assert.Equal(t, "unknown.com", d.Host)

	d = e.Decide(context.Background(), "https://disabled.com/", domain.SourceClipboard)
	assert.Equal(t, KindShowPicker, d.Kind)
	assert.Equal(t, disabledID, *d.RuleID)

	d = e.Decide(context.Background(), "https://blank.com/", domain.SourceClipboard)
	assert.Equal(t, KindShowPicker, d.Kind)

	assert.Empty(t, historyRows(t, store))
}

func TestDecide_LookupFaultDegradesToPicker(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	log := logger.Wrap(zap.New(core))
	store := openStore(t)

	fault := errors.NewDatabase(stderrors.New("database is locked"))
	e := New(failingSource{err: fault}, store, nil, log)

	d := e.Decide(context.Background(), "https://example.com/", domain.SourceIntent)
	assert.Equal(t, KindShowPicker, d.Kind)
	assert.Nil(t, d.RuleID)
	assert.Equal(t, error(fault), d.Fault)
	assert.Equal(t, 1, logs.FilterMessage("host rule lookup failed, showing picker").Len())
	assert.Empty(t, historyRows(t, store))

	e = New(silentSource{}, store, nil, logger.NewNop(), WithLookupTimeout(20*time.Millisecond))
	d = e.Decide(context.Background(), "https://example.com/", domain.SourceIntent)
	assert.Equal(t, KindShowPicker, d.Kind)
	assert.ErrorIs(t, d.Fault, context.DeadlineExceeded)

	e = New(panickySource{}, store, nil, logger.NewNop())
	d = e.Decide(context.Background(), "https://example.com/", domain.SourceIntent)
	assert.Equal(t, KindShowPicker, d.Kind)
	assert.True(t, errors.Is(d.Fault, errors.ErrUnknown))
}

func TestDecide_HistoryFailureKeepsOutcome(t *testing.T) {
	store := openStore(t)
	saveRule(t, store, domain.HostRule{Host: "blocked.com", Status: domain.RuleStatusBlocked})

	e := New(store, failingHistory{}, nil, logger.NewNop())
	d := e.Decide(context.Background(), "https://blocked.com/", domain.SourceIntent)
	assert.Equal(t, KindBlocked, d.Kind)
	assert.Nil(t, d.HistoryID)
	assert.True(t, errors.Is(d.Fault, errors.ErrDatabase))
}

func TestDecide_EventIDs(t *testing.T) {
	store := openStore(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := New(store, store, nil, logger.NewNop(), WithClock(func() time.Time { return fixed }))

	a := e.Decide(context.Background(), "https://a.com/", domain.SourceIntent)
	b := e.Decide(context.Background(), "not a url", domain.SourceIntent)
	assert.NotEqual(t, a.EventID, b.EventID)

	id, err := ulid.Parse(a.EventID)
	require.NoError(t, err)
	assert.Equal(t, uint64(fixed.UnixMilli()), id.Time())
}

func TestRecordInteraction(t *testing.T) {
	store := openStore(t)
	ruleID := saveRule(t, store, domain.HostRule{Host: "example.com", Status: domain.RuleStatusNone})
	counter := &recordingCounter{}
	e := New(store, store, counter, logger.NewNop())
	ctx := context.Background()

	rec, err := e.RecordInteraction(ctx, RecordInput{
		URI:           "https://Example.com/page",
		Source:        "intent",
		Action:        "opened_once",
		ChosenBrowser: stringPtr("com.browser.a"),
		RuleID:        &ruleID,
	})
	require.NoError(t, err)
	assert.Equal(t, "example.com", rec.Host)
	assert.Equal(t, domain.ActionOpenedOnce, rec.Action)
	assert.Equal(t, domain.SourceIntent, rec.Source)
	assert.NotZero(t, rec.ID)

	// Dismissal does not count a launch
	_, err = e.RecordInteraction(ctx, RecordInput{URI: "https://example.com/", Action: "DISMISSED"})
	require.NoError(t, err)

	// Launch without a chosen browser does not count either
	_, err = e.RecordInteraction(ctx, RecordInput{URI: "https://example.com/", Action: "OPENED_ALWAYS"})
	require.NoError(t, err)

	e.Wait()
	assert.Equal(t, []string{"com.browser.a"}, counter.Calls())
	assert.Len(t, historyRows(t, store), 3)
}

func TestRecordInteraction_RuleDeletedAfterDecision(t *testing.T) {
	store := openStore(t)
	ruleID := saveRule(t, store, domain.HostRule{Host: "pick.com", Status: domain.RuleStatusNone})
	e := New(store, store, nil, logger.NewNop())
	ctx := context.Background()

	d := e.Decide(ctx, "https://pick.com/", domain.SourceIntent)
	require.Equal(t, KindShowPicker, d.Kind)
	require.NotNil(t, d.RuleID)
	assert.Equal(t, ruleID, *d.RuleID)

	require.NoError(t, store.DeleteHostRuleByID(ctx, ruleID))

	rec, err := e.RecordInteraction(ctx, RecordInput{
		URI:     "https://pick.com/",
		Action:  "OPENED_ONCE",
		RuleID:  d.RuleID,
		EventID: &d.EventID,
	})
	require.NoError(t, err)
	assert.Nil(t, rec.AssociatedHostRuleID)

	rows := historyRows(t, store)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ActionOpenedOnce, rows[0].Action)
	assert.Nil(t, rows[0].AssociatedHostRuleID)
	assert.Equal(t, ruleID, *d.RuleID)
}

func TestDecide_EnforcedWithStaleRule(t *testing.T) {
	store := openStore(t)
	e := New(staleSource{rule: domain.HostRule{ID: 99, Host: "ads.com", Status: domain.RuleStatusBlocked}},
		store, nil, logger.NewNop())

	d := e.Decide(context.Background(), "https://ads.com/", domain.SourceIntent)
	require.Equal(t, KindBlocked, d.Kind)
	assert.NoError(t, d.Fault)
	require.NotNil(t, d.HistoryID)

	rows := historyRows(t, store)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ActionBlockedEnforced, rows[0].Action)
	assert.Nil(t, rows[0].AssociatedHostRuleID)
}

func TestRecordInteraction_Rejections(t *testing.T) {
	store := openStore(t)
	e := New(store, store, nil, logger.NewNop())
	ctx := context.Background()

	for _, action := range []string{"BLOCKED_ENFORCED", "OPENED_BY_PREFERENCE", "UNKNOWN", "whatever", ""} {
		_, err := e.RecordInteraction(ctx, RecordInput{URI: "https://a.com/", Action: action})
		assert.True(t, errors.Is(err, errors.ErrValidation), action)
	}

	_, err := e.RecordInteraction(ctx, RecordInput{Action: "DISMISSED"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = e.RecordInteraction(ctx, RecordInput{URI: "not a url", Action: "DISMISSED"})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	// An explicit host lets non-web uris through
	rec, err := e.RecordInteraction(ctx, RecordInput{URI: "not a url", Host: "A.com", Action: "DISMISSED"})
	require.NoError(t, err)
	assert.Equal(t, "a.com", rec.Host)
}

func TestRecordInteraction_UsageFailureIsNotReturned(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := openStore(t)
	counter := &recordingCounter{err: stderrors.New("redis down")}
	e := New(store, store, counter, logger.Wrap(zap.New(core)))

	_, err := e.RecordInteraction(context.Background(), RecordInput{
		URI: "https://a.com/", Action: "OPENED_ONCE", ChosenBrowser: stringPtr("com.browser.a"),
	})
	require.NoError(t, err)

	e.Wait()
	assert.Equal(t, 1, logs.FilterMessage("failed to count browser launch").Len())
}

func stringPtr(s string) *string { return &s }
