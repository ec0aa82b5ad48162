// internal/daemon/daemon.go
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ameno-/adwd/internal/config"
	"github.com/ameno-/adwd/internal/history"
	"github.com/ameno-/adwd/internal/logging"
	"github.com/ameno-/adwd/internal/trigger"
	"github.com/google/uuid"
)

// Daemon wires the trigger registry, the configured trigger instances, the
// dispatch journal, and the admin HTTP API together.
type Daemon struct {
	configPath string
	config     *config.Config
	registry   *trigger.Registry
	logger     *slog.Logger
	journal    *history.DB
	startTime  time.Time
}

// New creates a daemon reading its configuration from configPath.
func New(configPath string) *Daemon {
	return &Daemon{
		configPath: configPath,
		registry:   trigger.NewRegistry(),
	}
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.startTime = time.Now()

	if err := d.loadConfig(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	d.initLogger()
	d.logger.Info("starting daemon", "config", d.configPath)

	if err := d.initJournal(); err != nil {
		d.logger.Warn("failed to initialize dispatch journal, events will not be recorded", "error", err)
	}

	d.registerTriggerTypes()

	if err := d.createTriggers(ctx); err != nil {
		return fmt.Errorf("creating triggers: %w", err)
	}

	go d.startHTTPServer(ctx)

	d.logger.Info("daemon started",
		"trigger_types", d.registry.Types(),
		"running", d.registry.RunningNames(),
	)

	<-ctx.Done()
	d.logger.Info("daemon stopping")
	return d.shutdown()
}

func (d *Daemon) loadConfig() error {
	cfg, err := config.Load(d.configPath)
	if err != nil {
		// A missing config file is fine for personal use: run with
		// defaults and only the manual trigger.
		if errors.Is(err, os.ErrNotExist) {
			d.config = config.Default()
			return nil
		}
		return err
	}
	d.config = cfg
	return nil
}

func (d *Daemon) initLogger() {
	if d.config.Logging.Path != "" {
		w, err := logging.NewRotatingWriter(d.config.Logging.Path, 50*1024*1024)
		if err == nil {
			d.logger = logging.NewLogger(d.config.Logging.Format, d.config.Daemon.LogLevel, w)
			return
		}
		d.logger = logging.NewLogger(d.config.Logging.Format, d.config.Daemon.LogLevel, os.Stdout)
		d.logger.Warn("failed to initialize rotating log writer, using stdout", "error", err)
		return
	}
	d.logger = logging.NewLogger(d.config.Logging.Format, d.config.Daemon.LogLevel, os.Stdout)
}

func (d *Daemon) initJournal() error {
	if !d.config.History.Enabled {
		return nil
	}

	db, err := history.Open(d.config.History.Path)
	if err != nil {
		return fmt.Errorf("opening journal database: %w", err)
	}
	d.journal = db

	retention := d.config.History.RetentionDays
	go func() {
		if deleted, err := db.Cleanup(retention); err != nil {
			d.logger.Warn("journal cleanup failed", "error", err)
		} else if deleted > 0 {
			d.logger.Info("cleaned up old journal records", "deleted", deleted)
		}
	}()

	return nil
}

// registerTriggerTypes populates the type catalog. The manual trigger is
// registered unconditionally; webhook, cron, and file are the pluggable
// extensions this daemon ships.
func (d *Daemon) registerTriggerTypes() {
	trigger.RegisterBuiltins(d.registry, d.logger)

	d.registry.Register(trigger.TypeWebhook, func(cfg map[string]any) (trigger.Trigger, error) {
		return trigger.NewWebhook(cfg, d.logger)
	})
	d.registry.Register(trigger.TypeCron, func(cfg map[string]any) (trigger.Trigger, error) {
		return trigger.NewCron(cfg, d.logger)
	})
	d.registry.Register(trigger.TypeFile, func(cfg map[string]any) (trigger.Trigger, error) {
		return trigger.NewFile(cfg, d.logger)
	})
}

// createTriggers instantiates and starts one trigger per configured type,
// plus the manual trigger whether configured or not. A single trigger's
// create or start failure is logged and skipped, not fatal.
func (d *Daemon) createTriggers(ctx context.Context) error {
	configured := d.config.Triggers
	if _, ok := configured[trigger.TypeManual]; !ok {
		configured[trigger.TypeManual] = map[string]any{}
	}

	for name, cfg := range configured {
		t, err := d.registry.Create(name, cfg)
		if err != nil {
			d.logger.Error("failed to create trigger", "trigger", name, "error", err)
			continue
		}

		t.AddHandler(d.journalHandler(name))

		if err := t.Start(ctx); err != nil {
			d.logger.Error("failed to start trigger", "trigger", name, "error", err)
			continue
		}
	}

	return nil
}

// journalHandler returns the handler attached to every trigger instance: it
// logs the event and appends it to the dispatch journal.
func (d *Daemon) journalHandler(name string) trigger.Handler {
	return func(ctx context.Context, event trigger.Event) (trigger.Result, error) {
		dispatchID := uuid.NewString()[:8]
		workflow, _ := event.Payload["workflow"].(string)

		logger := logging.WithTrigger(d.logger, name)
		logger.Info("event dispatched",
			"dispatch_id", dispatchID,
			"event_type", event.EventType,
			"source", event.Source,
			"workflow", workflow,
		)

		if d.journal != nil {
			payload := ""
			if data, err := json.Marshal(event.Payload); err == nil {
				payload = string(data)
			}
			rec := history.Record{
				DispatchID:  dispatchID,
				TriggerName: name,
				EventType:   event.EventType,
				Source:      event.Source,
				ADWID:       event.ADWID,
				IssueNumber: event.IssueNumber,
				RepoPath:    event.RepoPath,
				Workflow:    workflow,
				Payload:     payload,
				ReceivedAt:  event.Timestamp,
			}
			if _, err := d.journal.Append(rec); err != nil {
				logger.Warn("failed to journal event", "error", err)
			}
		}

		return trigger.Result{
			Success:  true,
			ADWID:    event.ADWID,
			Workflow: workflow,
			Message:  "journaled " + dispatchID,
		}, nil
	}
}

func (d *Daemon) shutdown() error {
	for _, name := range d.registry.InstanceNames() {
		t, ok := d.registry.Instance(name)
		if !ok {
			continue
		}
		if err := t.Stop(); err != nil {
			d.logger.Warn("error stopping trigger", "trigger", name, "error", err)
		}
	}

	if d.journal != nil {
		d.journal.Close()
	}

	return nil
}
