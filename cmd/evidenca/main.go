package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/erazemk/evidenca/internal/config"
	"github.com/erazemk/evidenca/internal/db"
	"github.com/erazemk/evidenca/internal/logging"
	"github.com/erazemk/evidenca/internal/notify"
)

var version = "dev"

const usage = `Usage: evidenca [flags] <command> [args]

Commands:
  init                                   create or upgrade the database
  item add <name> [qty]                  provision an inventory row
  item list                              list inventory rows
  item edit <row> <field> <value>        edit name or quantity
  stock inc|dec <row>                    change stock by one
  stock add <row> <delta>                change stock by delta
  history clear                          clear every item's change history
  device add <category> <serial> [specs] provision a device row
  device list [-available]               list devices
  device edit <category> <row> <field> <value>
                                         edit serial or specs
  assign <category> <row> <email>        assign a device
  return <query>                         return devices by recipient
  employee add <email> <name> [-inactive]
  employee list
  audit list [-n N] [-action A]          show the audit trail
  audit clear                            delete the audit trail
  events list [-n N] [-serial S]         show the device history
  events clear                           delete the device history

Flags:
  -c, -config <path>    YAML config file (default: evidenca.yaml if present)
  -d, -db <path>        SQLite database path (default: evidenca.sqlite3)
  -l, -log <path>       log file path (default: no file)
  -a, -actor <name>     acting user (default: $EVIDENCA_ACTOR or the OS user)
  -y, -yes              confirm destructive operations without asking
  -m, -metrics <path>   write counters to a Prometheus textfile after the run
  -v, -version          print the version and exit
  -h, -help             show this help and exit
`

type options struct {
	configPath  string
	dbPath      string
	logPath     string
	actor       string
	yes         bool
	metricsPath string
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("evidenca", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "")
	fs.StringVar(&o.configPath, "c", "", "")
	fs.StringVar(&o.dbPath, "db", "", "")
	fs.StringVar(&o.dbPath, "d", "", "")
	fs.StringVar(&o.logPath, "log", "", "")
	fs.StringVar(&o.logPath, "l", "", "")
	fs.StringVar(&o.actor, "actor", "", "")
	fs.StringVar(&o.actor, "a", "", "")
	fs.BoolVar(&o.yes, "yes", false, "")
	fs.BoolVar(&o.yes, "y", false, "")
	fs.StringVar(&o.metricsPath, "metrics", "", "")
	fs.StringVar(&o.metricsPath, "m", "", "")
	fs.BoolVar(&o.version, "version", false, "")
	fs.BoolVar(&o.version, "v", false, "")

	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return o, fs.Args(), nil
}

// loadConfig reads .env and the config file, then applies flag overrides.
func loadConfig(o *options) (*config.Config, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}

	path := o.configPath
	if path == "" {
		if _, err := os.Stat("evidenca.yaml"); err == nil {
			path = "evidenca.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if o.logPath != "" {
		cfg.Logging.File = o.logPath
	}
	return cfg, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if o.version {
		fmt.Fprintln(stdout, "evidenca", version)
		return 0
	}
	if len(rest) == 0 {
		fmt.Fprint(stdout, usage)
		return 1
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	closeLog, err := logging.Setup(cfg.Logging, version)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	database, err := db.OpenWithTimeout(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console := notify.NewConsole(stdout, stdin)
	console.AssumeYes = o.yes
	console.FlashDuration = cfg.UI.FlashDuration

	a, err := newApp(cfg, database, console, o.actor, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	code := 0
	if err := a.dispatch(ctx, rest); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		code = 1
	}

	if o.metricsPath != "" {
		if err := prometheus.WriteToTextfile(o.metricsPath, a.metrics.Registry()); err != nil {
			slog.Error("failed to write metrics", "path", o.metricsPath, "error", err)
			code = 1
		}
	}
	return code
}
