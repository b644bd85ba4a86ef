package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Alert is one notification to hand to the host platform.
type Alert struct {
	Kind    Kind
	Subject string

	// Global threshold alerts. Score carries the weighted encounters today.
	Score      int
	Limit      int
	Percentage int

	// Item limit alerts.
	ItemID         int64
	ItemTitle      string
	EncounterCount int
	EncounterLimit int

	FiredAt time.Time
}

// Title is a short headline for the alert.
func (a Alert) Title() string {
	switch a.Kind {
	case KindLimitExceeded:
		return "Daily friction limit exceeded"
	case KindAlmostAtLimit:
		return "Almost at your friction limit"
	case KindApproachingLimit:
		return "Approaching your friction limit"
	case KindItemLimitExceeded:
		return "Item limit reached"
	}
	return string(a.Kind)
}

// Body is the alert text.
func (a Alert) Body() string {
	if a.Kind == KindItemLimitExceeded {
		return fmt.Sprintf("%q hit its daily limit (%d/%d encounters)", a.ItemTitle, a.EncounterCount, a.EncounterLimit)
	}
	return fmt.Sprintf("Friction score %d of %d (%d%%)", a.Score, a.Limit, a.Percentage)
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// MultiNotifier fans an alert out to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to a zap logger.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, a Alert) error {
	n.Logger.Info(a.Title(),
		zap.String("kind", string(a.Kind)),
		zap.String("subject", a.Subject),
		zap.String("body", a.Body()),
		zap.Time("fired_at", a.FiredAt))
	return nil
}
