package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
	"github.com/TobiSchelling/FrictionLog/internal/gateway"
)

var errBackendDown = &gateway.TransportError{Err: errors.New("connection refused")}

// fakeGateway is an in-memory backend with per-endpoint failure injection.
type fakeGateway struct {
	mu          sync.Mutex
	items       []friction.Item
	nextID      int64
	globalLimit *int
	fail        map[string]error
	calls       []string
	lastUpdate  *friction.ItemUpdate

	// beforeList runs outside the lock at the start of ListItems.
	beforeList func(ctx context.Context, filter friction.Filter)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 1, fail: map[string]error{}}
}

func (f *fakeGateway) failOn(endpoint string, err error) {
	f.mu.Lock()
	f.fail[endpoint] = err
	f.mu.Unlock()
}

func (f *fakeGateway) called(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}

func (f *fakeGateway) enter(endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, endpoint)
	return f.fail[endpoint]
}

func (f *fakeGateway) find(id int64) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}

func notFound() error {
	return &gateway.StatusError{StatusCode: 404, Message: "Friction item not found"}
}

func (f *fakeGateway) Health(ctx context.Context) (bool, error) {
	if err := f.enter("health"); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fakeGateway) ListItems(ctx context.Context, filter friction.Filter) ([]friction.Item, error) {
	if f.beforeList != nil {
		f.beforeList(ctx, filter)
	}
	if err := f.enter("list_items"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []friction.Item{}
	for i := len(f.items) - 1; i >= 0; i-- {
		it := f.items[i]
		if filter.Status != "" && it.Status != filter.Status {
			continue
		}
		if filter.Category != "" && it.Category != filter.Category {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeGateway) GetItem(ctx context.Context, id int64) (*friction.Item, error) {
	if err := f.enter("get_item"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return nil, notFound()
	}
	it := f.items[i]
	return &it, nil
}

func (f *fakeGateway) CreateItem(ctx context.Context, req friction.ItemCreate) (*friction.Item, error) {
	if err := f.enter("create_item"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	it := friction.Item{
		ID:             f.nextID,
		Title:          req.Title,
		Description:    req.Description,
		AnnoyanceLevel: req.AnnoyanceLevel,
		Category:       req.Category,
		Status:         friction.StatusNotFixed,
		CreatedAt:      now,
		UpdatedAt:      now,
		EncounterLimit: req.EncounterLimit,
	}
	f.nextID++
	f.items = append(f.items, it)
	return &it, nil
}

func (f *fakeGateway) UpdateItem(ctx context.Context, id int64, u friction.ItemUpdate) (*friction.Item, error) {
	if err := f.enter("update_item"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = &u
	i := f.find(id)
	if i < 0 {
		return nil, notFound()
	}
	it := f.items[i]
	if u.Title != nil {
		it.Title = *u.Title
	}
	if u.Description != nil {
		it.Description = u.Description
	}
	if u.AnnoyanceLevel != nil {
		it.AnnoyanceLevel = *u.AnnoyanceLevel
	}
	if u.Category != nil {
		it.Category = *u.Category
	}
	if u.Status != nil {
		it.Status = *u.Status
	}
	if u.ClearEncounterLimit {
		it.EncounterLimit = nil
	} else if u.EncounterLimit != nil {
		it.EncounterLimit = u.EncounterLimit
	}
	it.IsLimitExceeded = it.EncounterLimit != nil && it.EncounterCount >= *it.EncounterLimit
	f.items[i] = it
	return &it, nil
}

func (f *fakeGateway) DeleteItem(ctx context.Context, id int64) error {
	if err := f.enter("delete_item"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return notFound()
	}
	f.items = append(f.items[:i], f.items[i+1:]...)
	return nil
}

func (f *fakeGateway) IncrementEncounter(ctx context.Context, id int64) (*friction.Item, error) {
	if err := f.enter("increment_encounter"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.find(id)
	if i < 0 {
		return nil, notFound()
	}
	it := f.items[i]
	if !it.Status.IsActive() {
		return nil, &gateway.StatusError{StatusCode: 409, Message: "Cannot record encounters for fixed items"}
	}
	it.EncounterCount++
	today := friction.Today(time.Now())
	it.LastEncounterDate = &today
	it.IsLimitExceeded = it.EncounterLimit != nil && it.EncounterCount >= *it.EncounterLimit
	f.items[i] = it
	return &it, nil
}

func (f *fakeGateway) Score(ctx context.Context) (*friction.Score, error) {
	if err := f.enter("score"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var s friction.Score
	for _, it := range f.items {
		if !it.Status.IsActive() {
			continue
		}
		s.ActiveCount++
		s.TotalEncountersToday += it.EncounterCount
		s.WeightedEncountersToday += it.Impact()
		if it.IsLimitExceeded {
			s.ItemsOverLimit++
		}
	}
	s.CurrentScore = s.WeightedEncountersToday
	if f.globalLimit != nil {
		limit := *f.globalLimit
		pct := s.WeightedEncountersToday * 100 / limit
		s.GlobalDailyLimit = &limit
		s.LimitPercentage = &pct
	}
	return &s, nil
}

func (f *fakeGateway) Trend(ctx context.Context, days int) ([]friction.TrendPoint, error) {
	if err := f.enter("trend"); err != nil {
		return nil, err
	}
	points := make([]friction.TrendPoint, days)
	now := time.Now()
	for i := range points {
		points[i].Date = friction.Today(now.AddDate(0, 0, i-days+1))
	}
	return points, nil
}

func (f *fakeGateway) CategoryBreakdown(ctx context.Context) (*friction.CategoryBreakdown, error) {
	if err := f.enter("by_category"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var b friction.CategoryBreakdown
	for _, it := range f.items {
		if it.Status.IsActive() {
			b.Add(it.Category, it.Impact())
		}
	}
	return &b, nil
}

func (f *fakeGateway) MostAnnoying(ctx context.Context, limit int) ([]friction.RankedItem, error) {
	if err := f.enter("most_annoying"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ranked := []friction.RankedItem{}
	for _, it := range f.items {
		if !it.Status.IsActive() || len(ranked) == limit {
			continue
		}
		ranked = append(ranked, friction.RankedItem{ID: it.ID, Title: it.Title, Impact: it.Impact()})
	}
	return ranked, nil
}

func (f *fakeGateway) GlobalLimit(ctx context.Context) (*int, error) {
	if err := f.enter("get_global_limit"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.globalLimit == nil {
		return nil, nil
	}
	limit := *f.globalLimit
	return &limit, nil
}

func (f *fakeGateway) SetGlobalLimit(ctx context.Context, limit *int) error {
	if err := f.enter("set_global_limit"); err != nil {
		return err
	}
	f.mu.Lock()
	f.globalLimit = limit
	f.mu.Unlock()
	return nil
}
