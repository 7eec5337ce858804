package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"EVIDENCA_DB_PATH", "EVIDENCA_ACTOR", "EVIDENCA_LOG_LEVEL", "EVIDENCA_LOG_FILE", "EVIDENCA_TIMEZONE", "EVIDENCA_BUSY_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func newCLI(t *testing.T) func(stdin string, args ...string) result {
	t.Helper()
	clearEnv(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "evidenca.yaml")
	if err := os.WriteFile(cfgPath, []byte("ui:\n  flash_duration: 0s\ntimezone: UTC\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	dbPath := filepath.Join(dir, "test.sqlite3")

	return func(stdin string, args ...string) result {
		var stdout, stderr bytes.Buffer
		full := append([]string{"-c", cfgPath, "-d", dbPath, "-a", "tester@x.com"}, args...)
		code := run(full, strings.NewReader(stdin), &stdout, &stderr)
		return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
	}
}

func TestStockFlow(t *testing.T) {
	cli := newCLI(t)

	if r := cli("", "init"); r.code != 0 {
		t.Fatalf("init failed: %+v", r)
	}
	if r := cli("", "item", "add", "Mouse", "10"); r.code != 0 {
		t.Fatalf("item add failed: %+v", r)
	}

	r := cli("", "stock", "add", "2", "-3")
	if r.code != 0 {
		t.Fatalf("stock add failed: %+v", r)
	}
	if !strings.Contains(r.stdout, "Stock decreased by 3. New value: 7") {
		t.Errorf("unexpected stock output: %q", r.stdout)
	}

	r = cli("", "stock", "add", "2", "-50")
	if r.code != 1 || !strings.Contains(r.stderr, "stock cannot go negative") {
		t.Errorf("expected negative stock error, got %+v", r)
	}

	r = cli("", "item", "list")
	if !strings.Contains(r.stdout, "Mouse") || !strings.Contains(r.stdout, "-3 (tester@x.com)") {
		t.Errorf("unexpected item list: %q", r.stdout)
	}

	r = cli("", "audit", "list")
	if !strings.Contains(r.stdout, "Stock Decrease") || !strings.Contains(r.stdout, "Changed from 10 to 7") {
		t.Errorf("unexpected audit list: %q", r.stdout)
	}
}

func TestDeviceFlow(t *testing.T) {
	cli := newCLI(t)

	steps := [][]string{
		{"employee", "add", "a@x.com", "Ana"},
		{"employee", "add", "a@x.org", "Ana Org"},
		{"device", "add", "Laptops", "SN1", "16GB RAM"},
		{"device", "add", "Tablets", "TAB1"},
		{"assign", "Laptops", "2", "a@x.com"},
		{"assign", "tablets", "2", "a@x.org"},
	}
	for _, s := range steps {
		if r := cli("", s...); r.code != 0 {
			t.Fatalf("%v failed: %+v", s, r)
		}
	}

	r := cli("", "assign", "Laptops", "2", "a@x.org")
	if r.code != 1 || !strings.Contains(r.stderr, "already assigned") {
		t.Errorf("expected reassign to fail, got %+v", r)
	}

	r = cli("", "return", "A@X")
	if r.code != 0 {
		t.Fatalf("return failed: %+v", r)
	}
	if !strings.Contains(r.stdout, "Returned 2 of 2 device(s)") {
		t.Errorf("unexpected return output: %q", r.stdout)
	}

	r = cli("", "events", "list")
	if strings.Count(r.stdout, "Return") < 2 || strings.Count(r.stdout, "Assign") < 2 {
		t.Errorf("unexpected events: %q", r.stdout)
	}

	r = cli("", "device", "list", "-available")
	if !strings.Contains(r.stdout, "SN1 - 16GB RAM") {
		t.Errorf("unexpected availability list: %q", r.stdout)
	}
}

func TestClearNeedsConfirmation(t *testing.T) {
	cli := newCLI(t)
	cli("", "item", "add", "Cable", "1")
	cli("", "stock", "inc", "2")

	r := cli("n\n", "audit", "clear")
	if r.code != 1 || !strings.Contains(r.stderr, "not confirmed") {
		t.Errorf("expected refusal, got %+v", r)
	}

	r = cli("y\n", "audit", "clear")
	if r.code != 0 || !strings.Contains(r.stdout, "Deleted 1 audit record(s)") {
		t.Errorf("expected clear, got %+v", r)
	}

	r = cli("", "-y", "events", "clear")
	if r.code != 0 {
		t.Errorf("expected -y to confirm, got %+v", r)
	}
}

func TestUsageErrors(t *testing.T) {
	cli := newCLI(t)

	for _, args := range [][]string{
		{"bogus"},
		{"stock", "add", "2"},
		{"item", "edit", "x", "name", "y"},
		{"assign", "Laptops"},
	} {
		if r := cli("", args...); r.code != 1 {
			t.Errorf("%v: expected exit 1, got %+v", args, r)
		}
	}
}

func TestMetricsTextfile(t *testing.T) {
	cli := newCLI(t)
	path := filepath.Join(t.TempDir(), "evidenca.prom")

	cli("", "item", "add", "Cable", "1")
	if r := cli("", "-m", path, "stock", "inc", "2"); r.code != 0 {
		t.Fatalf("stock inc failed: %+v", r)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	if !strings.Contains(string(data), `evidenca_stock_mutations_total{action="Stock Increase"} 1`) {
		t.Errorf("unexpected metrics: %s", data)
	}
}
