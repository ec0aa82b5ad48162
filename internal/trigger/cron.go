// internal/trigger/cron.go
package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// EventTypeCronTick is the event type produced on every schedule firing.
const EventTypeCronTick = "cron_tick"

// Cron fires events on a cron schedule. OnEvent policy: results are
// swallowed; nothing waits on a tick, so failures are only logged.
type Cron struct {
	Dispatcher

	schedule string
	cron     *cron.Cron
}

// NewCron creates a cron trigger. The cron_expression option is required and
// uses the six-field form with a seconds column.
func NewCron(cfg map[string]any, logger *slog.Logger) (*Cron, error) {
	expr := stringOption(cfg, "cron_expression", "")
	if expr == "" {
		return nil, fmt.Errorf("cron trigger requires cron_expression")
	}

	c := &Cron{
		Dispatcher: newDispatcher(TypeCron, logger),
		schedule:   expr,
		cron:       cron.New(cron.WithSeconds()),
	}

	if _, err := c.cron.AddFunc(expr, c.tick); err != nil {
		return nil, fmt.Errorf("parsing cron expression %q: %w", expr, err)
	}
	return c, nil
}

func (c *Cron) tick() {
	event, err := NewEvent(EventTypeCronTick, TypeCron, map[string]any{
		"schedule": c.schedule,
	})
	if err != nil {
		return
	}
	c.OnEvent(context.Background(), event)
}

func (c *Cron) Start(ctx context.Context) error {
	if c.Running() {
		return nil
	}
	c.cron.Start()
	c.setRunning(true)
	c.logger.Info("cron schedule started", "expression", c.schedule)
	return nil
}

// Stop halts the scheduler. Ticks already in flight run to completion; no new
// ticks fire afterwards. Idempotent.
func (c *Cron) Stop() error {
	c.cron.Stop()
	c.setRunning(false)
	return nil
}
