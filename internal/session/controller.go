// Package session sequences user intents against the backend, the local item
// cache and the notification engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/FrictionLog/internal/cache"
	"github.com/TobiSchelling/FrictionLog/internal/friction"
	"github.com/TobiSchelling/FrictionLog/internal/notify"
)

var (
	// ErrInactiveItem rejects encounters on fixed items.
	ErrInactiveItem = errors.New("item is fixed; encounters can only be recorded for active items")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

// Gateway is the backend contract the controller depends on.
type Gateway interface {
	Health(ctx context.Context) (bool, error)
	ListItems(ctx context.Context, filter friction.Filter) ([]friction.Item, error)
	GetItem(ctx context.Context, id int64) (*friction.Item, error)
	CreateItem(ctx context.Context, req friction.ItemCreate) (*friction.Item, error)
	UpdateItem(ctx context.Context, id int64, update friction.ItemUpdate) (*friction.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	IncrementEncounter(ctx context.Context, id int64) (*friction.Item, error)
	Score(ctx context.Context) (*friction.Score, error)
	Trend(ctx context.Context, days int) ([]friction.TrendPoint, error)
	CategoryBreakdown(ctx context.Context) (*friction.CategoryBreakdown, error)
	MostAnnoying(ctx context.Context, limit int) ([]friction.RankedItem, error)
	GlobalLimit(ctx context.Context) (*int, error)
	SetGlobalLimit(ctx context.Context, limit *int) error
}

// Snapshot is a consistent copy of everything a UI renders.
type Snapshot struct {
	Items          []friction.Item
	Score          *friction.Score
	Trend          []friction.TrendPoint
	Breakdown      *friction.CategoryBreakdown
	MostAnnoying   []friction.RankedItem
	Busy           bool
	InFlight       int
	ErrorMessage   string
	SuccessMessage string
}

// Controller is one user's friction session.
//
// Local state only changes after the backend confirms an operation. Operations
// may run concurrently; for a given item the last successful response wins,
// and list loads are fenced so an older response never overwrites a newer one.
type Controller struct {
	gw     Gateway
	items  *cache.Items
	engine *notify.Engine
	logger *zap.Logger

	// TrendDays and MostAnnoyingLimit size the analytics reads.
	TrendDays         int
	MostAnnoyingLimit int

	mu             sync.Mutex
	score          *friction.Score
	trend          []friction.TrendPoint
	breakdown      *friction.CategoryBreakdown
	mostAnnoying   []friction.RankedItem
	errorMessage   string
	successMessage string
	inFlight       int
	loadIssued     uint64
	loadApplied    uint64
}

// New creates a controller. A nil engine gets a silent one.
func New(gw Gateway, engine *notify.Engine, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = notify.NewEngine(nil, logger)
	}
	return &Controller{
		gw:                gw,
		items:             cache.New(),
		engine:            engine,
		logger:            logger,
		TrendDays:         30,
		MostAnnoyingLimit: 5,
	}
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Items:          c.items.List(),
		Trend:          append([]friction.TrendPoint(nil), c.trend...),
		MostAnnoying:   append([]friction.RankedItem(nil), c.mostAnnoying...),
		Busy:           c.inFlight > 0,
		InFlight:       c.inFlight,
		ErrorMessage:   c.errorMessage,
		SuccessMessage: c.successMessage,
	}
	if c.score != nil {
		score := *c.score
		s.Score = &score
	}
	if c.breakdown != nil {
		b := *c.breakdown
		s.Breakdown = &b
	}
	return s
}

// Item returns the cached copy of id.
func (c *Controller) Item(id int64) (friction.Item, bool) {
	return c.items.Get(id)
}

// ClearMessages drops the current error and success messages.
func (c *Controller) ClearMessages() {
	c.mu.Lock()
	c.errorMessage = ""
	c.successMessage = ""
	c.mu.Unlock()
}

// LoadItems replaces the cache with the items matching filter.
func (c *Controller) LoadItems(ctx context.Context, filter friction.Filter) error {
	defer c.begin()()

	c.mu.Lock()
	c.loadIssued++
	seq := c.loadIssued
	c.mu.Unlock()

	items, err := c.gw.ListItems(ctx, filter)
	if err != nil {
		return c.fail("load items", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.loadApplied {
		c.logger.Debug("discarding stale item list",
			zap.Uint64("seq", seq),
			zap.Uint64("applied", c.loadApplied))
		return nil
	}
	c.loadApplied = seq
	c.items.ReplaceAll(items)
	return nil
}

// LoadItem fetches one item and caches it, so later operations can check
// its status locally.
func (c *Controller) LoadItem(ctx context.Context, id int64) (*friction.Item, error) {
	defer c.begin()()

	item, err := c.gw.GetItem(ctx, id)
	if err != nil {
		return nil, c.fail("load item", err)
	}
	if !c.items.Replace(*item) {
		c.items.InsertFront(*item)
	}
	return item, nil
}

// CreateItem creates an item and puts it at the front of the cache.
func (c *Controller) CreateItem(ctx context.Context, req friction.ItemCreate) (*friction.Item, error) {
	defer c.begin()()

	req.Title = strings.TrimSpace(req.Title)
	if req.Description != nil && strings.TrimSpace(*req.Description) == "" {
		req.Description = nil
	}
	if err := friction.Validate(req); err != nil {
		return nil, c.fail("create item", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}

	item, err := c.gw.CreateItem(ctx, req)
	if err != nil {
		return nil, c.fail("create item", err)
	}
	c.items.InsertFront(*item)
	c.succeed("Friction item added successfully!")
	c.logger.Info("item created", zap.Int64("id", item.ID), zap.String("title", item.Title))

	c.refreshScore(ctx, true)
	return item, nil
}

// UpdateItem sends exactly the fields set on update and replaces the cached entry.
func (c *Controller) UpdateItem(ctx context.Context, id int64, update friction.ItemUpdate) (*friction.Item, error) {
	defer c.begin()()

	if err := friction.Validate(update); err != nil {
		return nil, c.fail("update item", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}

	item, err := c.gw.UpdateItem(ctx, id, update)
	if err != nil {
		return nil, c.fail("update item", err)
	}
	c.items.Replace(*item)
	c.succeed("Item updated successfully!")
	c.logger.Info("item updated", zap.Int64("id", id))

	c.refreshScore(ctx, true)
	return item, nil
}

// DeleteItem deletes an item and, once the backend confirms, drops it from the cache.
func (c *Controller) DeleteItem(ctx context.Context, id int64) error {
	defer c.begin()()

	if err := c.gw.DeleteItem(ctx, id); err != nil {
		return c.fail("delete item", err)
	}
	c.items.Remove(id)
	c.succeed("Item deleted successfully!")
	c.logger.Info("item deleted", zap.Int64("id", id))

	c.refreshScore(ctx, true)
	return nil
}

// IncrementEncounter records one encounter of an active item. After the
// backend answers it refreshes the score and the most-annoying list, then
// checks the item limit and the global thresholds, in that order.
func (c *Controller) IncrementEncounter(ctx context.Context, id int64) (*friction.Item, []notify.Alert, error) {
	defer c.begin()()

	if cached, ok := c.items.Get(id); ok && !cached.Status.IsActive() {
		return nil, nil, c.fail("record encounter", ErrInactiveItem)
	}

	item, err := c.gw.IncrementEncounter(ctx, id)
	if err != nil {
		return nil, nil, c.fail("record encounter", err)
	}
	c.items.Replace(*item)
	c.logger.Debug("encounter recorded",
		zap.Int64("id", id),
		zap.Int("count", item.EncounterCount),
		zap.Bool("limit_exceeded", item.IsLimitExceeded))

	score := c.refreshScore(ctx, false)
	c.refreshMostAnnoying(ctx, c.MostAnnoyingLimit)

	alerts := c.engine.ObserveItem(ctx, *item)
	if score != nil {
		alerts = append(alerts, c.engine.ObserveScore(ctx, *score)...)
	}
	return item, alerts, nil
}

// LoadGlobalLimit fetches the global daily limit; nil means unlimited.
func (c *Controller) LoadGlobalLimit(ctx context.Context) (*int, error) {
	defer c.begin()()

	limit, err := c.gw.GlobalLimit(ctx)
	if err != nil {
		return nil, c.fail("load daily limit", err)
	}
	return limit, nil
}

// SetGlobalDailyLimit sets the global daily limit; nil clears it.
func (c *Controller) SetGlobalDailyLimit(ctx context.Context, limit *int) error {
	defer c.begin()()

	if err := friction.Validate(friction.GlobalLimit{Limit: limit}); err != nil {
		return c.fail("set daily limit", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	if err := c.gw.SetGlobalLimit(ctx, limit); err != nil {
		return c.fail("set daily limit", err)
	}
	if limit == nil {
		c.succeed("Daily limit cleared")
	} else {
		c.succeed(fmt.Sprintf("Daily limit set to %d", *limit))
	}

	c.refreshScore(ctx, true)
	return nil
}

// RefreshScore fetches the aggregate score and runs the global thresholds on it.
func (c *Controller) RefreshScore(ctx context.Context) (*friction.Score, error) {
	defer c.begin()()

	score, err := c.gw.Score(ctx)
	if err != nil {
		return nil, c.fail("load score", err)
	}
	c.setScore(score)
	c.engine.ObserveScore(ctx, *score)
	return score, nil
}

// LoadTrend fetches the score history. days <= 0 uses TrendDays.
func (c *Controller) LoadTrend(ctx context.Context, days int) error {
	defer c.begin()()

	if days <= 0 {
		days = c.TrendDays
	}
	points, err := c.gw.Trend(ctx, days)
	if err != nil {
		return c.fail("load trend data", err)
	}
	c.mu.Lock()
	c.trend = points
	c.mu.Unlock()
	return nil
}

// LoadCategoryBreakdown fetches per-category totals.
func (c *Controller) LoadCategoryBreakdown(ctx context.Context) error {
	defer c.begin()()

	b, err := c.gw.CategoryBreakdown(ctx)
	if err != nil {
		return c.fail("load category breakdown", err)
	}
	c.mu.Lock()
	c.breakdown = b
	c.mu.Unlock()
	return nil
}

// LoadMostAnnoying fetches the ranked list. limit <= 0 uses MostAnnoyingLimit.
func (c *Controller) LoadMostAnnoying(ctx context.Context, limit int) error {
	defer c.begin()()

	if limit <= 0 {
		limit = c.MostAnnoyingLimit
	}
	ranked, err := c.gw.MostAnnoying(ctx, limit)
	if err != nil {
		return c.fail("load most annoying items", err)
	}
	c.mu.Lock()
	c.mostAnnoying = ranked
	c.mu.Unlock()
	return nil
}

// LoadAllAnalytics fetches score, trend, breakdown and ranking concurrently.
// Parts that succeed are kept even when another part fails.
func (c *Controller) LoadAllAnalytics(ctx context.Context) error {
	defer c.begin()()

	var (
		score     *friction.Score
		trend     []friction.TrendPoint
		breakdown *friction.CategoryBreakdown
		ranked    []friction.RankedItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		score, err = c.gw.Score(gctx)
		return err
	})
	g.Go(func() (err error) {
		trend, err = c.gw.Trend(gctx, c.TrendDays)
		return err
	})
	g.Go(func() (err error) {
		breakdown, err = c.gw.CategoryBreakdown(gctx)
		return err
	})
	g.Go(func() (err error) {
		ranked, err = c.gw.MostAnnoying(gctx, c.MostAnnoyingLimit)
		return err
	})
	err := g.Wait()

	c.mu.Lock()
	if score != nil {
		c.score = score
	}
	if trend != nil {
		c.trend = trend
	}
	if breakdown != nil {
		c.breakdown = breakdown
	}
	if ranked != nil {
		c.mostAnnoying = ranked
	}
	c.mu.Unlock()

	if score != nil {
		c.engine.ObserveScore(ctx, *score)
	}
	if err != nil {
		return c.fail("load analytics", err)
	}
	return nil
}

// CheckHealth reports whether the backend is up.
func (c *Controller) CheckHealth(ctx context.Context) bool {
	ok, err := c.gw.Health(ctx)
	if err != nil {
		c.setError(fmt.Sprintf("Backend is not responding: %v", err))
		return false
	}
	return ok
}

// begin marks an operation in flight and clears stale messages. The returned
// func ends it.
func (c *Controller) begin() func() {
	c.mu.Lock()
	c.inFlight++
	c.errorMessage = ""
	c.successMessage = ""
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}
}

func (c *Controller) fail(verb string, err error) error {
	c.setError(fmt.Sprintf("Failed to %s: %v", verb, err))
	c.logger.Warn("operation failed", zap.String("op", verb), zap.Error(err))
	return fmt.Errorf("%s: %w", verb, err)
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	c.errorMessage = msg
	c.mu.Unlock()
}

func (c *Controller) succeed(msg string) {
	c.mu.Lock()
	c.successMessage = msg
	c.mu.Unlock()
}

func (c *Controller) setScore(score *friction.Score) {
	c.mu.Lock()
	c.score = score
	c.mu.Unlock()
}

// refreshScore fetches the score after a successful mutation. A failure is
// reported in the error message but does not fail the mutation.
func (c *Controller) refreshScore(ctx context.Context, evaluate bool) *friction.Score {
	score, err := c.gw.Score(ctx)
	if err != nil {
		c.setError(fmt.Sprintf("Failed to load score: %v", err))
		c.logger.Warn("score refresh failed", zap.Error(err))
		return nil
	}
	c.setScore(score)
	if evaluate {
		c.engine.ObserveScore(ctx, *score)
	}
	return score
}

func (c *Controller) refreshMostAnnoying(ctx context.Context, limit int) {
	ranked, err := c.gw.MostAnnoying(ctx, limit)
	if err != nil {
		c.setError(fmt.Sprintf("Failed to load most annoying items: %v", err))
		c.logger.Warn("most-annoying refresh failed", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.mostAnnoying = ranked
	c.mu.Unlock()
}
