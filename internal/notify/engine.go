package notify

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

var alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "frictionlog",
	Subsystem: "notify",
	Name:      "alerts_total",
	Help:      "Alerts fired by kind",
}, []string{"kind"})

// Engine owns the in-memory notification state for one session.
type Engine struct {
	mu       sync.Mutex
	state    State
	now      func() time.Time
	notifier Notifier
	logger   *zap.Logger
}

// NewEngine creates an engine delivering to notifier. A nil notifier only records state.
func NewEngine(notifier Notifier, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{now: time.Now, notifier: notifier, logger: logger}
}

// SetClock replaces the wall clock used to find today's date.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// ObserveItem runs the per-item limit rule on a freshly returned item.
func (e *Engine) ObserveItem(ctx context.Context, item friction.Item) []Alert {
	return e.apply(ctx, func(s State, today string) (State, []Alert) {
		return EvaluateItem(s, today, item)
	})
}

// ObserveScore runs the global threshold rule on a freshly fetched score.
func (e *Engine) ObserveScore(ctx context.Context, score friction.Score) []Alert {
	return e.apply(ctx, func(s State, today string) (State, []Alert) {
		return Evaluate(s, today, score)
	})
}

// State returns a snapshot of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.ItemAlerted = maps.Clone(s.ItemAlerted)
	return s
}

func (e *Engine) apply(ctx context.Context, step func(State, string) (State, []Alert)) []Alert {
	e.mu.Lock()
	now := e.now()
	next, alerts := step(e.state, friction.Today(now))
	if next.Date != e.state.Date && e.state.Date != "" {
		e.logger.Debug("notification state rolled over",
			zap.String("from", e.state.Date),
			zap.String("to", next.Date))
	}
	e.state = next
	e.mu.Unlock()

	for i := range alerts {
		alerts[i].FiredAt = now
		alertsTotal.WithLabelValues(string(alerts[i].Kind)).Inc()
		if e.notifier == nil {
			continue
		}
		if err := e.notifier.Notify(ctx, alerts[i]); err != nil {
			e.logger.Warn("alert delivery failed",
				zap.String("subject", alerts[i].Subject),
				zap.Error(err))
		}
	}
	return alerts
}
