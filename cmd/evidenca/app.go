package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/erazemk/evidenca/internal/audit"
	"github.com/erazemk/evidenca/internal/clock"
	"github.com/erazemk/evidenca/internal/config"
	"github.com/erazemk/evidenca/internal/devicelog"
	"github.com/erazemk/evidenca/internal/devices"
	"github.com/erazemk/evidenca/internal/directory"
	"github.com/erazemk/evidenca/internal/edits"
	"github.com/erazemk/evidenca/internal/ident"
	"github.com/erazemk/evidenca/internal/ledger"
	"github.com/erazemk/evidenca/internal/metrics"
	"github.com/erazemk/evidenca/internal/notify"
)

// app holds the wired services for one invocation.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	loc      *time.Location
	out      io.Writer
	errOut   io.Writer
	console  *notify.Console
	identity clock.Identity
	metrics  *metrics.Recorder

	trail     *audit.Trail
	events    *devicelog.Log
	directory *directory.Directory
	ledger    *ledger.Ledger
	lifecycle *devices.Lifecycle
	edits     *edits.Handler
}

func newApp(cfg *config.Config, database *sql.DB, console *notify.Console, actor string, out, errOut io.Writer) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	clk := clock.System{}
	ids := ident.New()
	rec := metrics.New()
	logger := slog.Default()

	trail := audit.New(database, clk, cfg.Audit.Category)
	trail.Location = loc
	events := devicelog.New(database, clk, ids)
	events.Location = loc
	dir := directory.New(database)

	a := &app{
		cfg:       cfg,
		db:        database,
		loc:       loc,
		out:       out,
		errOut:    errOut,
		console:   console,
		identity:  clock.EnvIdentity{Explicit: actor, Default: cfg.Identity.Actor},
		metrics:   rec,
		trail:     trail,
		events:    events,
		directory: dir,
	}

	a.ledger = ledger.New(database, ledger.Config{
		Category:    cfg.Inventory.Category,
		StockColumn: cfg.Inventory.StockColumn,
		Location:    loc,
	}, ledger.Deps{
		Auditor:  trail,
		IDs:      ids,
		Clock:    clk,
		Notifier: console,
		Flasher:  console,
		Metrics:  rec,
		Logger:   logger,
	})

	a.lifecycle = devices.New(database, devices.Config{
		Categories: cfg.Devices.Categories,
		Location:   loc,
	}, devices.Deps{
		Auditor:   trail,
		Events:    events,
		Directory: dir,
		IDs:       ids,
		Clock:     clk,
		Notifier:  console,
		Metrics:   rec,
		Logger:    logger,
	})

	a.edits = edits.New(database, edits.Config{
		InventoryCategory: cfg.Inventory.Category,
		NameColumn:        cfg.Inventory.NameColumn,
		StockColumn:       cfg.Inventory.StockColumn,
		HistoryColumn:     cfg.Inventory.HistoryColumn,
		DeviceCategories:  cfg.Devices.Categories,
		LogCategories:     []string{cfg.Audit.Category, cfg.DeviceHistory.Category},
	}, edits.Deps{
		Auditor: trail,
		IDs:     ids,
		Clock:   clk,
		Metrics: rec,
		Logger:  logger,
	})

	return a, nil
}

func (a *app) actor() string {
	return a.identity.CurrentActor()
}

func (a *app) warn(diagnostics []string) {
	for _, d := range diagnostics {
		fmt.Fprintf(a.errOut, "warning: %s\n", d)
	}
}
