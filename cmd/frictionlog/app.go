package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/TobiSchelling/FrictionLog/internal/config"
	"github.com/TobiSchelling/FrictionLog/internal/gateway"
	"github.com/TobiSchelling/FrictionLog/internal/notify"
	"github.com/TobiSchelling/FrictionLog/internal/session"
)

// app is what every command runs against. One app holds one session, so
// alert state lives as long as the process.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	out     io.Writer
	session *session.Controller
}

func (a *app) setup(cfg *config.Config, logger *zap.Logger, out io.Writer) {
	a.cfg = cfg
	a.logger = logger
	a.out = out

	client := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Timeout(), logger)
	var notifier notify.Notifier
	if cfg.Notifications.Enabled {
		notifier = notify.MultiNotifier{
			terminalNotifier{out: out},
			notify.LogNotifier{Logger: logger},
		}
	}

	s := session.New(client, notify.NewEngine(notifier, logger), logger)
	s.TrendDays = cfg.Analytics.TrendDays
	s.MostAnnoyingLimit = cfg.Analytics.MostAnnoyingLimit
	a.session = s
}

// failure swaps an operation error for the message the session shows the user.
func (a *app) failure(err error) error {
	if msg := a.session.Snapshot().ErrorMessage; msg != "" {
		return errors.New(msg)
	}
	return err
}

// report prints the success message and any warning a follow-up refresh left behind.
func (a *app) report() {
	snap := a.session.Snapshot()
	if snap.SuccessMessage != "" {
		fmt.Fprintln(a.out, styles.Success.Render(snap.SuccessMessage))
	}
	if snap.ErrorMessage != "" {
		fmt.Fprintln(a.out, styles.Warning.Render(snap.ErrorMessage))
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", s)
	}
	return id, nil
}
