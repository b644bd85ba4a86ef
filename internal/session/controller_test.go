package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
	"github.com/TobiSchelling/FrictionLog/internal/gateway"
	"github.com/TobiSchelling/FrictionLog/internal/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type alertSink struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (s *alertSink) Notify(_ context.Context, a notify.Alert) error {
	s.mu.Lock()
	s.alerts = append(s.alerts, a)
	s.mu.Unlock()
	return nil
}

func (s *alertSink) kinds() []notify.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []notify.Kind{}
	for _, a := range s.alerts {
		out = append(out, a.Kind)
	}
	return out
}

func intPtr(n int) *int { return &n }

func newTestController(t *testing.T) (*Controller, *fakeGateway, *alertSink) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	gw := newFakeGateway()
	sink := &alertSink{}
	return New(gw, notify.NewEngine(sink, logger), logger), gw, sink
}

func create(t *testing.T, c *Controller, title string, level int, limit *int) *friction.Item {
	t.Helper()
	it, err := c.CreateItem(context.Background(), friction.ItemCreate{
		Title:          title,
		AnnoyanceLevel: level,
		Category:       friction.CategoryDigital,
		EncounterLimit: limit,
	})
	require.NoError(t, err)
	return it
}

func titles(items []friction.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestCreateItemInsertsAtFront(t *testing.T) {
	c, _, _ := newTestController(t)
	create(t, c, "Popups", 2, nil)
	create(t, c, "Slow WiFi", 4, nil)

	snap := c.Snapshot()
	assert.Equal(t, []string{"Slow WiFi", "Popups"}, titles(snap.Items))
	assert.Equal(t, "Friction item added successfully!", snap.SuccessMessage)
	assert.Empty(t, snap.ErrorMessage)
	require.NotNil(t, snap.Score)
	assert.Equal(t, 2, snap.Score.ActiveCount)
}

func TestCreateItemTrimsInput(t *testing.T) {
	c, _, _ := newTestController(t)
	blank := "   "
	it, err := c.CreateItem(context.Background(), friction.ItemCreate{
		Title:          "  Slow WiFi  ",
		Description:    &blank,
		AnnoyanceLevel: 3,
		Category:       friction.CategoryDigital,
	})
	require.NoError(t, err)
	assert.Equal(t, "Slow WiFi", it.Title)
	assert.Nil(t, it.Description)
}

func TestCreateItemRejectsInvalidRequestLocally(t *testing.T) {
	c, gw, _ := newTestController(t)

	cases := map[string]friction.ItemCreate{
		"blank title":   {Title: "   ", AnnoyanceLevel: 3, Category: friction.CategoryHome},
		"level 0":       {Title: "x", AnnoyanceLevel: 0, Category: friction.CategoryHome},
		"unknown kind":  {Title: "x", AnnoyanceLevel: 3, Category: "garden"},
		"limit of zero": {Title: "x", AnnoyanceLevel: 3, Category: friction.CategoryHome, EncounterLimit: intPtr(0)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.CreateItem(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.True(t, strings.HasPrefix(c.Snapshot().ErrorMessage, "Failed to create item: invalid request: "))
		})
	}
	assert.Zero(t, gw.called("create_item"))
	assert.Empty(t, c.Snapshot().Items)
}

func TestFailedMutationsLeaveCacheUnchanged(t *testing.T) {
	c, gw, _ := newTestController(t)
	first := create(t, c, "Popups", 2, nil)
	create(t, c, "Slow WiFi", 4, intPtr(5))
	before := c.Snapshot().Items

	gw.failOn("update_item", errBackendDown)
	gw.failOn("delete_item", errBackendDown)
	gw.failOn("increment_encounter", errBackendDown)
	gw.failOn("create_item", errBackendDown)
	ctx := context.Background()

	title := "Renamed"
	_, err := c.UpdateItem(ctx, first.ID, friction.ItemUpdate{Title: &title})
	require.Error(t, err)
	assert.Equal(t, "Failed to update item: network error: connection refused", c.Snapshot().ErrorMessage)

	require.Error(t, c.DeleteItem(ctx, first.ID))
	assert.Equal(t, "Failed to delete item: network error: connection refused", c.Snapshot().ErrorMessage)

	_, _, err = c.IncrementEncounter(ctx, first.ID)
	require.Error(t, err)

	_, err = c.CreateItem(ctx, friction.ItemCreate{Title: "New", AnnoyanceLevel: 1, Category: friction.CategoryOther})
	require.Error(t, err)

	if diff := cmp.Diff(before, c.Snapshot().Items); diff != "" {
		t.Errorf("cache changed after failed mutations (-before +after):\n%s", diff)
	}
}

func TestSecondaryRefreshFailureKeepsMutation(t *testing.T) {
	c, gw, _ := newTestController(t)
	gw.failOn("score", errBackendDown)

	it, err := c.CreateItem(context.Background(), friction.ItemCreate{Title: "Noise", AnnoyanceLevel: 2, Category: friction.CategoryHome})
	require.NoError(t, err)

	snap := c.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, it.ID, snap.Items[0].ID)
	assert.Equal(t, "Failed to load score: network error: connection refused", snap.ErrorMessage)
	assert.Nil(t, snap.Score)
}

func TestUpdateStatusOnlyPreservesOtherFields(t *testing.T) {
	c, gw, _ := newTestController(t)
	it := create(t, c, "Printer", 3, intPtr(5))
	before, ok := c.Item(it.ID)
	require.True(t, ok)

	fixed := friction.StatusFixed
	_, err := c.UpdateItem(context.Background(), it.ID, friction.ItemUpdate{Status: &fixed})
	require.NoError(t, err)

	body, err := json.Marshal(gw.lastUpdate)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"fixed"}`, string(body))

	after, ok := c.Item(it.ID)
	require.True(t, ok)
	want := before
	want.Status = friction.StatusFixed
	if diff := cmp.Diff(want, after); diff != "" {
		t.Errorf("unexpected item after status update (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Item updated successfully!", c.Snapshot().SuccessMessage)
}

func TestDeleteItemRemovesOnlyAfterConfirm(t *testing.T) {
	c, _, _ := newTestController(t)
	keep := create(t, c, "Keep", 1, nil)
	gone := create(t, c, "Gone", 1, nil)
	ctx := context.Background()

	err := c.DeleteItem(ctx, 999)
	require.Error(t, err)
	assert.True(t, gateway.IsNotFound(err))
	assert.Len(t, c.Snapshot().Items, 2)

	require.NoError(t, c.DeleteItem(ctx, gone.ID))
	snap := c.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, keep.ID, snap.Items[0].ID)
	_, ok := c.Item(gone.ID)
	assert.False(t, ok)
	assert.Equal(t, "Item deleted successfully!", snap.SuccessMessage)
}

func TestIncrementEncounterRejectsFixedItemLocally(t *testing.T) {
	c, gw, _ := newTestController(t)
	it := create(t, c, "Old bug", 2, nil)
	fixed := friction.StatusFixed
	_, err := c.UpdateItem(context.Background(), it.ID, friction.ItemUpdate{Status: &fixed})
	require.NoError(t, err)

	_, _, err = c.IncrementEncounter(context.Background(), it.ID)
	require.ErrorIs(t, err, ErrInactiveItem)
	assert.Zero(t, gw.called("increment_encounter"))
}

func TestLoadItemCachesForLocalStatusCheck(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	// Created and fixed behind this session's back.
	it, err := gw.CreateItem(ctx, friction.ItemCreate{Title: "Old bug", AnnoyanceLevel: 2, Category: friction.CategoryWork})
	require.NoError(t, err)
	fixed := friction.StatusFixed
	_, err = gw.UpdateItem(ctx, it.ID, friction.ItemUpdate{Status: &fixed})
	require.NoError(t, err)

	got, err := c.LoadItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, friction.StatusFixed, got.Status)
	cached, ok := c.Item(it.ID)
	require.True(t, ok)
	assert.Equal(t, friction.StatusFixed, cached.Status)

	_, _, err = c.IncrementEncounter(ctx, it.ID)
	require.ErrorIs(t, err, ErrInactiveItem)
	assert.Zero(t, gw.called("increment_encounter"))
}

func TestLoadItemReplacesCachedCopy(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()
	first := create(t, c, "First", 1, nil)
	create(t, c, "Second", 1, nil)

	title := "First, renamed elsewhere"
	_, err := gw.UpdateItem(ctx, first.ID, friction.ItemUpdate{Title: &title})
	require.NoError(t, err)

	_, err = c.LoadItem(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Second", title}, titles(c.Snapshot().Items))

	_, err = c.LoadItem(ctx, 999)
	require.Error(t, err)
	assert.True(t, gateway.IsNotFound(err))
	assert.Equal(t, "Failed to load item: HTTP error 404: Friction item not found", c.Snapshot().ErrorMessage)
	assert.Len(t, c.Snapshot().Items, 2)
}

func TestSlowWiFiScenario(t *testing.T) {
	c, _, sink := newTestController(t)
	it := create(t, c, "Slow WiFi", 4, nil)

	snap := c.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Slow WiFi", snap.Items[0].Title)

	var last *friction.Item
	for i := 0; i < 3; i++ {
		var alerts []notify.Alert
		var err error
		last, alerts, err = c.IncrementEncounter(context.Background(), it.ID)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	}

	assert.Equal(t, 3, last.EncounterCount)
	assert.False(t, last.IsLimitExceeded)
	cached, _ := c.Item(it.ID)
	assert.Equal(t, 3, cached.EncounterCount)
	assert.Empty(t, sink.kinds())

	snap = c.Snapshot()
	assert.Equal(t, 12, snap.Score.WeightedEncountersToday)
	require.Len(t, snap.MostAnnoying, 1)
	assert.Equal(t, 12, snap.MostAnnoying[0].Impact)
}

func TestItemLimitAlertFiresOnceOnCrossing(t *testing.T) {
	c, _, sink := newTestController(t)
	it := create(t, c, "Meetings", 2, intPtr(2))
	ctx := context.Background()

	_, alerts, err := c.IncrementEncounter(ctx, it.ID)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	item, alerts, err := c.IncrementEncounter(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, item.IsLimitExceeded)
	require.Len(t, alerts, 1)
	assert.Equal(t, notify.KindItemLimitExceeded, alerts[0].Kind)
	assert.Equal(t, "Meetings", alerts[0].ItemTitle)

	_, alerts, err = c.IncrementEncounter(ctx, it.ID)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, []notify.Kind{notify.KindItemLimitExceeded}, sink.kinds())
}

func TestGlobalThresholdAlertsFromEncounters(t *testing.T) {
	c, _, sink := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.SetGlobalDailyLimit(ctx, intPtr(20)))
	it := create(t, c, "Commute", 5, nil)

	var fired [][]notify.Kind
	for i := 0; i < 5; i++ {
		_, alerts, err := c.IncrementEncounter(ctx, it.ID)
		require.NoError(t, err)
		kinds := []notify.Kind{}
		for _, a := range alerts {
			kinds = append(kinds, a.Kind)
		}
		fired = append(fired, kinds)
	}

	// 25%, 50%, 75%, 100%, 125%
	assert.Equal(t, [][]notify.Kind{
		{},
		{},
		{notify.KindApproachingLimit},
		{notify.KindLimitExceeded},
		{},
	}, fired)
	assert.Equal(t, []notify.Kind{notify.KindApproachingLimit, notify.KindLimitExceeded}, sink.kinds())
}

func TestItemAlertPrecedesGlobalAlert(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.SetGlobalDailyLimit(ctx, intPtr(5)))
	it := create(t, c, "Alarm", 5, intPtr(1))

	_, alerts, err := c.IncrementEncounter(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, notify.KindItemLimitExceeded, alerts[0].Kind)
	assert.Equal(t, notify.KindLimitExceeded, alerts[1].Kind)
}

func TestSetGlobalDailyLimit(t *testing.T) {
	c, gw, sink := newTestController(t)
	ctx := context.Background()
	it := create(t, c, "Popups", 4, nil)
	for i := 0; i < 3; i++ {
		_, _, err := c.IncrementEncounter(ctx, it.ID)
		require.NoError(t, err)
	}

	require.NoError(t, c.SetGlobalDailyLimit(ctx, intPtr(12)))
	snap := c.Snapshot()
	assert.Equal(t, "Daily limit set to 12", snap.SuccessMessage)
	require.True(t, snap.Score.HasLimit())
	assert.Equal(t, 100, *snap.Score.LimitPercentage)
	assert.Equal(t, []notify.Kind{notify.KindLimitExceeded}, sink.kinds())

	require.NoError(t, c.SetGlobalDailyLimit(ctx, nil))
	snap = c.Snapshot()
	assert.Equal(t, "Daily limit cleared", snap.SuccessMessage)
	assert.False(t, snap.Score.HasLimit())

	calls := gw.called("set_global_limit")
	err := c.SetGlobalDailyLimit(ctx, intPtr(0))
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, calls, gw.called("set_global_limit"))
}

func TestLoadGlobalLimit(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	limit, err := c.LoadGlobalLimit(ctx)
	require.NoError(t, err)
	assert.Nil(t, limit)

	require.NoError(t, c.SetGlobalDailyLimit(ctx, intPtr(30)))
	limit, err = c.LoadGlobalLimit(ctx)
	require.NoError(t, err)
	require.NotNil(t, limit)
	assert.Equal(t, 30, *limit)

	gw.failOn("get_global_limit", errBackendDown)
	_, err = c.LoadGlobalLimit(ctx)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(c.Snapshot().ErrorMessage, "Failed to load daily limit"))
}

func TestRefreshScoreEvaluatesThresholds(t *testing.T) {
	c, gw, sink := newTestController(t)
	ctx := context.Background()
	it := create(t, c, "Noise", 3, nil)
	_, _, err := c.IncrementEncounter(ctx, it.ID)
	require.NoError(t, err)

	gw.mu.Lock()
	gw.globalLimit = intPtr(4)
	gw.mu.Unlock()

	score, err := c.RefreshScore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75, *score.LimitPercentage)
	assert.Equal(t, []notify.Kind{notify.KindApproachingLimit}, sink.kinds())

	_, err = c.RefreshScore(ctx)
	require.NoError(t, err)
	assert.Len(t, sink.kinds(), 1)
}

func TestLoadItemsDiscardsStaleResponse(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()
	create(t, c, "A", 1, nil)
	b := create(t, c, "B", 1, nil)
	fixed := friction.StatusFixed
	_, err := c.UpdateItem(ctx, b.ID, friction.ItemUpdate{Status: &fixed})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	gw.beforeList = func(_ context.Context, filter friction.Filter) {
		if filter.Status == friction.StatusFixed {
			close(entered)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- c.LoadItems(ctx, friction.Filter{Status: friction.StatusFixed})
	}()
	<-entered

	require.NoError(t, c.LoadItems(ctx, friction.Filter{}))
	assert.Equal(t, []string{"B", "A"}, titles(c.Snapshot().Items))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"B", "A"}, titles(c.Snapshot().Items), "older response must not overwrite the newer one")
}

func TestBusyCountsConcurrentOperations(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	gw.beforeList = func(context.Context, friction.Filter) {
		entered <- struct{}{}
		<-release
	}

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_ = c.LoadItems(ctx, friction.Filter{})
			done <- struct{}{}
		}()
	}
	<-entered
	<-entered
	snap := c.Snapshot()
	assert.True(t, snap.Busy)
	assert.Equal(t, 2, snap.InFlight)

	release <- struct{}{}
	<-done
	assert.True(t, c.Snapshot().Busy, "one operation is still in flight")

	release <- struct{}{}
	<-done
	snap = c.Snapshot()
	assert.False(t, snap.Busy)
	assert.Zero(t, snap.InFlight)
}

func TestLoadAllAnalytics(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	it := create(t, c, "Popups", 2, nil)
	_, _, err := c.IncrementEncounter(ctx, it.ID)
	require.NoError(t, err)
	c.TrendDays = 7

	require.NoError(t, c.LoadAllAnalytics(ctx))
	snap := c.Snapshot()
	assert.Equal(t, 2, snap.Score.CurrentScore)
	assert.Len(t, snap.Trend, 7)
	assert.Equal(t, 2, snap.Breakdown.Digital)
	require.Len(t, snap.MostAnnoying, 1)
	assert.Empty(t, snap.ErrorMessage)
}

func TestLoadAllAnalyticsKeepsSuccessfulParts(t *testing.T) {
	c, gw, _ := newTestController(t)
	gw.failOn("trend", errBackendDown)

	err := c.LoadAllAnalytics(context.Background())
	require.Error(t, err)
	var te *gateway.TransportError
	assert.True(t, errors.As(err, &te))

	snap := c.Snapshot()
	assert.NotNil(t, snap.Score)
	assert.Nil(t, snap.Trend)
	assert.True(t, strings.HasPrefix(snap.ErrorMessage, "Failed to load analytics: "))
}

func TestSingleAnalyticsLoaders(t *testing.T) {
	c, gw, _ := newTestController(t)
	ctx := context.Background()
	create(t, c, "Popups", 2, nil)

	require.NoError(t, c.LoadTrend(ctx, 0))
	assert.Len(t, c.Snapshot().Trend, 30)
	require.NoError(t, c.LoadCategoryBreakdown(ctx))
	assert.NotNil(t, c.Snapshot().Breakdown)
	require.NoError(t, c.LoadMostAnnoying(ctx, 0))
	assert.Len(t, c.Snapshot().MostAnnoying, 1)

	gw.failOn("by_category", errBackendDown)
	require.Error(t, c.LoadCategoryBreakdown(ctx))
	assert.Equal(t, "Failed to load category breakdown: network error: connection refused", c.Snapshot().ErrorMessage)
	assert.NotNil(t, c.Snapshot().Breakdown, "previous breakdown is kept")
}

func TestCheckHealth(t *testing.T) {
	c, gw, _ := newTestController(t)
	assert.True(t, c.CheckHealth(context.Background()))

	gw.failOn("health", errBackendDown)
	assert.False(t, c.CheckHealth(context.Background()))
	assert.True(t, strings.HasPrefix(c.Snapshot().ErrorMessage, "Backend is not responding"))

	c.ClearMessages()
	assert.Empty(t, c.Snapshot().ErrorMessage)
}

func TestConcurrentEncountersKeepCacheConsistent(t *testing.T) {
	c, _, _ := newTestController(t)
	ctx := context.Background()
	a := create(t, c, "A", 1, nil)
	b := create(t, c, "B", 2, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _, _ = c.IncrementEncounter(ctx, id)
		}([]int64{a.ID, b.ID}[i%2])
	}
	wg.Wait()

	snap := c.Snapshot()
	require.Len(t, snap.Items, 2)
	seen := map[int64]bool{}
	total := 0
	for _, it := range snap.Items {
		assert.False(t, seen[it.ID], "duplicate id %d", it.ID)
		seen[it.ID] = true
		total += it.EncounterCount
	}
	// Last response wins per id; each item has seen at least one encounter.
	assert.GreaterOrEqual(t, total, 2)
	assert.Zero(t, snap.InFlight)
}

func TestEngineRolloverThroughController(t *testing.T) {
	logger := zaptest.NewLogger(t)
	gw := newFakeGateway()
	sink := &alertSink{}
	engine := notify.NewEngine(sink, logger)
	now := time.Date(2026, 2, 6, 23, 0, 0, 0, time.Local)
	engine.SetClock(func() time.Time { return now })
	c := New(gw, engine, logger)
	ctx := context.Background()

	require.NoError(t, c.SetGlobalDailyLimit(ctx, intPtr(2)))
	it := create(t, c, "Door", 2, nil)
	_, alerts, err := c.IncrementEncounter(ctx, it.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	_, err = c.RefreshScore(ctx)
	require.NoError(t, err)
	assert.Len(t, sink.kinds(), 1)

	now = now.Add(2 * time.Hour)
	_, err = c.RefreshScore(ctx)
	require.NoError(t, err)
	assert.Equal(t, []notify.Kind{notify.KindLimitExceeded, notify.KindLimitExceeded}, sink.kinds())
}
