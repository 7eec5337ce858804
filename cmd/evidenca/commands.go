package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/erazemk/evidenca/internal/audit"
	"github.com/erazemk/evidenca/internal/devicelog"
	"github.com/erazemk/evidenca/internal/devices"
	"github.com/erazemk/evidenca/internal/edits"
	"github.com/erazemk/evidenca/internal/ledger"
	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return a.cmdInit(ctx)
	case "item":
		return a.cmdItem(ctx, rest)
	case "stock":
		return a.cmdStock(ctx, rest)
	case "history":
		return a.cmdHistory(ctx, rest)
	case "device":
		return a.cmdDevice(ctx, rest)
	case "assign":
		return a.cmdAssign(ctx, rest)
	case "return":
		return a.cmdReturn(ctx, rest)
	case "employee":
		return a.cmdEmployee(ctx, rest)
	case "audit":
		return a.cmdAudit(ctx, rest)
	case "events":
		return a.cmdEvents(ctx, rest)
	}
	return fmt.Errorf("unknown command %q (see evidenca -help)", cmd)
}

func subcommand(args []string, name string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("%s: missing subcommand", name)
	}
	return args[0], args[1:], nil
}

func expectArgs(args []string, min, max int, usage string) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return fmt.Errorf("usage: evidenca %s", usage)
	}
	return nil
}

func parseRow(s string) (int, error) {
	row, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid row %q", s)
	}
	return row, nil
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func (a *app) cmdInit(ctx context.Context) error {
	created, err := store.EnsureSetting(ctx, a.db, store.SettingCreatedAt, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	a.console.Notify(fmt.Sprintf("Database ready: %s (created %s)", a.cfg.Database.Path, created), "", 0)
	return nil
}

func (a *app) cmdItem(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "item")
	if err != nil {
		return err
	}

	switch sub {
	case "add":
		if err := expectArgs(rest, 1, 2, "item add <name> [qty]"); err != nil {
			return err
		}
		qty := 0
		if len(rest) == 2 {
			if qty, err = ledger.ParseQuantity(rest[1]); err != nil {
				return err
			}
		}
		it, err := store.CreateItem(ctx, a.db, strings.TrimSpace(rest[0]), qty)
		if err != nil {
			return err
		}
		a.console.Notify(fmt.Sprintf("Item %q added in row %d", it.Name, it.Row), "", 0)
		return nil

	case "list":
		items, problems, err := a.ledger.Items(ctx)
		if err != nil {
			return err
		}
		tw := table(a.out)
		fmt.Fprintln(tw, "ROW\tID\tNAME\tQTY\tLAST CHANGE")
		for _, it := range items {
			last := ""
			if len(it.History) > 0 {
				last = it.History[0].Text
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", it.Row, it.ID, it.Name, it.Quantity, last)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, p := range problems {
			fmt.Fprintf(a.errOut, "warning: %v\n", p)
		}
		return nil

	case "edit":
		if err := expectArgs(rest, 3, 3, "item edit <row> <field> <value>"); err != nil {
			return err
		}
		row, err := parseRow(rest[0])
		if err != nil {
			return err
		}
		return a.applyEdit(ctx, edits.Edit{
			Category: a.cfg.Inventory.Category,
			Row:      row,
			Field:    rest[1],
			Value:    rest[2],
			Actor:    a.actor(),
		})
	}
	return fmt.Errorf("item: unknown subcommand %q", sub)
}

func (a *app) applyEdit(ctx context.Context, e edits.Edit) error {
	res, err := a.edits.Apply(ctx, e)
	if err != nil {
		return err
	}
	switch {
	case res.Ignored != "":
		a.console.Notify("Edit ignored: "+res.Ignored, "", 0)
	case !res.Applied:
		a.console.Notify(fmt.Sprintf("%s already holds %q", res.Location, res.NewValue), "", 0)
	default:
		a.console.Notify(fmt.Sprintf("%s changed from %q to %q", res.Location, res.OldValue, res.NewValue), "Saved", 3)
	}
	a.warn(res.Diagnostics)
	return nil
}

func (a *app) cmdStock(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "stock")
	if err != nil {
		return err
	}

	var delta int
	switch sub {
	case "inc", "dec":
		if err := expectArgs(rest, 1, 1, "stock "+sub+" <row>"); err != nil {
			return err
		}
		delta = 1
		if sub == "dec" {
			delta = -1
		}
	case "add":
		if err := expectArgs(rest, 2, 2, "stock add <row> <delta>"); err != nil {
			return err
		}
		delta, err = strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid delta %q", rest[1])
		}
	default:
		return fmt.Errorf("stock: unknown subcommand %q", sub)
	}

	row, err := parseRow(rest[0])
	if err != nil {
		return err
	}
	res, err := a.ledger.ApplyDelta(ctx, a.ledger.StockCell(row), delta, a.actor())
	if err != nil {
		return err
	}
	a.warn(res.Diagnostics)
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	sub, _, err := subcommand(args, "history")
	if err != nil {
		return err
	}
	if sub != "clear" {
		return fmt.Errorf("history: unknown subcommand %q", sub)
	}
	n, err := a.ledger.ClearHistories(ctx, a.console, a.actor())
	if err != nil {
		return err
	}
	a.console.Notify(fmt.Sprintf("Cleared the history of %d item(s)", n), "Success", 3)
	return nil
}

func (a *app) cmdDevice(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "device")
	if err != nil {
		return err
	}

	switch sub {
	case "add":
		if err := expectArgs(rest, 2, 3, "device add <category> <serial> [specs]"); err != nil {
			return err
		}
		specs := ""
		if len(rest) == 3 {
			specs = rest[2]
		}
		d, err := a.lifecycle.Add(ctx, rest[0], rest[1], specs)
		if err != nil {
			return err
		}
		a.console.Notify(fmt.Sprintf("%s %s added in %s row %d", devices.DeviceTypeName(d.Category), d.Serial, d.Category, d.Row), "", 0)
		return nil

	case "list":
		fs := flag.NewFlagSet("device list", flag.ContinueOnError)
		fs.SetOutput(a.errOut)
		available := fs.Bool("available", false, "only Available devices")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *available {
			return a.listAvailable(ctx)
		}
		all, err := a.lifecycle.Devices(ctx)
		if err != nil {
			return err
		}
		tw := table(a.out)
		fmt.Fprintln(tw, "CATEGORY\tROW\tID\tSERIAL\tSTATUS\tASSIGNED TO\tASSIGNED\tRETURNED")
		for _, d := range all {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				d.Category, d.Row, d.ID, d.Serial, d.Status, d.AssignedTo,
				a.formatDate(d.AssignedAt), a.formatDate(d.ReturnedAt))
		}
		return tw.Flush()

	case "edit":
		if err := expectArgs(rest, 4, 4, "device edit <category> <row> <field> <value>"); err != nil {
			return err
		}
		row, err := parseRow(rest[1])
		if err != nil {
			return err
		}
		return a.applyEdit(ctx, edits.Edit{
			Category: rest[0],
			Row:      row,
			Field:    rest[2],
			Value:    rest[3],
			Actor:    a.actor(),
		})
	}
	return fmt.Errorf("device: unknown subcommand %q", sub)
}

func (a *app) listAvailable(ctx context.Context) error {
	groups, err := a.lifecycle.ListAvailable(ctx)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		a.console.Notify("No devices are available", "", 0)
		return nil
	}
	for _, g := range groups {
		fmt.Fprintf(a.out, "%s (%d available)\n", g.Category, len(g.Devices))
		for _, d := range g.Devices {
			fmt.Fprintf(a.out, "  row %d: %s", d.Row, d.Serial)
			if d.Specs != "" {
				fmt.Fprintf(a.out, " - %s", d.Specs)
			}
			fmt.Fprintln(a.out)
		}
	}
	return nil
}

func (a *app) formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.In(a.loc).Format(model.EventTimeLayout)
}

func (a *app) cmdAssign(ctx context.Context, args []string) error {
	if err := expectArgs(args, 3, 3, "assign <category> <row> <email>"); err != nil {
		return err
	}
	row, err := parseRow(args[1])
	if err != nil {
		return err
	}
	res, err := a.lifecycle.Assign(ctx, devices.DeviceRef{Category: args[0], Row: row}, args[2], a.actor())
	if err != nil {
		return err
	}
	a.warn(res.Diagnostics)
	return nil
}

func (a *app) cmdReturn(ctx context.Context, args []string) error {
	if err := expectArgs(args, 1, 1, "return <query>"); err != nil {
		return err
	}
	report, err := a.lifecycle.ReturnByRecipient(ctx, args[0], a.actor())
	if err != nil {
		return err
	}
	for _, o := range report.Outcomes {
		a.warn(o.Diagnostics)
	}
	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d device(s) could not be returned", len(failed), len(report.Outcomes))
	}
	return nil
}

func (a *app) cmdEmployee(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "employee")
	if err != nil {
		return err
	}

	switch sub {
	case "add":
		fs := flag.NewFlagSet("employee add", flag.ContinueOnError)
		fs.SetOutput(a.errOut)
		inactive := fs.Bool("inactive", false, "mark the employee inactive")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if err := expectArgs(fs.Args(), 2, 2, "employee add [-inactive] <email> <name>"); err != nil {
			return err
		}
		status := model.EmployeeStatusActive
		if *inactive {
			status = model.EmployeeStatusInactive
		}
		e := model.Employee{Email: fs.Arg(0), Name: fs.Arg(1), Status: status}
		if err := a.directory.Add(ctx, e); err != nil {
			return err
		}
		a.console.Notify(fmt.Sprintf("Employee %s saved (%s)", e.Email, status), "", 0)
		return nil

	case "list":
		employees, err := a.directory.List(ctx)
		if err != nil {
			return err
		}
		tw := table(a.out)
		fmt.Fprintln(tw, "EMAIL\tNAME\tSTATUS")
		for _, e := range employees {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Email, e.Name, e.Status)
		}
		return tw.Flush()
	}
	return fmt.Errorf("employee: unknown subcommand %q", sub)
}

func (a *app) cmdAudit(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "audit")
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := flag.NewFlagSet("audit list", flag.ContinueOnError)
		fs.SetOutput(a.errOut)
		n := fs.Int("n", audit.DefaultLimit, "number of entries")
		action := fs.String("action", "", "only this action")
		category := fs.String("category", "", "only this category")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if *action != "" && !model.Action(*action).Valid() {
			return fmt.Errorf("unknown action %q", *action)
		}
		entries, err := a.trail.List(ctx, audit.Filter{
			Action:   model.Action(*action),
			Category: *category,
			Limit:    *n,
		})
		if err != nil {
			return err
		}
		return writeRows(a.out, model.AuditHeader, a.trail.Rows(entries))

	case "clear":
		n, err := a.trail.Clear(ctx, a.console, a.actor())
		if err != nil {
			return err
		}
		a.console.Notify(fmt.Sprintf("Deleted %d audit record(s)", n), "Success", 3)
		return nil
	}
	return fmt.Errorf("audit: unknown subcommand %q", sub)
}

func (a *app) cmdEvents(ctx context.Context, args []string) error {
	sub, rest, err := subcommand(args, "events")
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		fs := flag.NewFlagSet("events list", flag.ContinueOnError)
		fs.SetOutput(a.errOut)
		n := fs.Int("n", audit.DefaultLimit, "number of events")
		serial := fs.String("serial", "", "only this serial number")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		events, err := a.events.List(ctx, devicelog.Filter{Serial: *serial, Limit: *n})
		if err != nil {
			return err
		}
		return writeRows(a.out, model.EventHeader, a.events.Rows(events))

	case "clear":
		n, err := a.events.Clear(ctx, a.console, a.actor())
		if err != nil {
			return err
		}
		a.console.Notify(fmt.Sprintf("Deleted %d history record(s)", n), "Success", 3)
		return nil
	}
	return fmt.Errorf("events: unknown subcommand %q", sub)
}

func writeRows(w io.Writer, header []string, rows [][]string) error {
	tw := table(w)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}
