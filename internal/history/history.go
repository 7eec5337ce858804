// Package history keeps the short per-item log of recent stock changes.
//
// The log holds at most MaxEntries records, newest first. Older records are
// dropped for good; the audit trail keeps the full record.
package history

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/erazemk/evidenca/internal/model"
)

// MaxEntries is the number of records an item keeps.
const MaxEntries = 3

// TimeLayout is the timestamp layout of rendered records.
const TimeLayout = "02/01/2006 15:04"

// Log is an item's rotating history.
type Log struct {
	records []model.MutationRecord
}

// New returns a log holding records, trimmed to MaxEntries.
func New(records []model.MutationRecord) *Log {
	l := &Log{}
	for _, r := range records {
		if len(l.records) == MaxEntries {
			break
		}
		l.records = append(l.records, r)
	}
	return l
}

// NewRecord builds a record for a stock change and renders its text.
func NewRecord(at time.Time, delta int, actor string, loc *time.Location) model.MutationRecord {
	r := model.MutationRecord{Timestamp: at, Delta: delta, Actor: actor}
	r.Text = Render(r, loc)
	return r
}

// Push inserts r at the front and drops anything past MaxEntries.
func (l *Log) Push(r model.MutationRecord) {
	l.records = append([]model.MutationRecord{r}, l.records...)
	if len(l.records) > MaxEntries {
		l.records = l.records[:MaxEntries]
	}
}

// Records returns a copy of the records, newest first.
func (l *Log) Records() []model.MutationRecord {
	out := make([]model.MutationRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Log) Len() int { return len(l.records) }

// String joins the rendered records with newlines, the stored form.
func (l *Log) String() string {
	lines := make([]string, len(l.records))
	for i, r := range l.records {
		lines[i] = r.Text
	}
	return strings.Join(lines, "\n")
}

// Render formats a record as "<timestamp> <sign><magnitude> (<actor>)".
func Render(r model.MutationRecord, loc *time.Location) string {
	sign := "+"
	magnitude := r.Delta
	if r.Delta < 0 {
		sign = "-"
		magnitude = -r.Delta
	}
	return fmt.Sprintf("%s %s%d (%s)", r.Timestamp.In(loc).Format(TimeLayout), sign, magnitude, lineBreaks.Replace(r.Actor))
}

// A record is stored as exactly one line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

var linePattern = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4} \d{2}:\d{2}) ([+-])(\d+) \((.*)\)$`)

// Parse reads a stored history back into a log. Blank lines are skipped and
// lines that do not match the rendered form are kept as text-only records.
func Parse(stored string, loc *time.Location) *Log {
	var records []model.MutationRecord
	for _, line := range strings.Split(stored, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		records = append(records, parseLine(line, loc))
	}
	return New(records)
}

func parseLine(line string, loc *time.Location) model.MutationRecord {
	r := model.MutationRecord{Text: line}
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return r
	}

	ts, err := time.ParseInLocation(TimeLayout, m[1], loc)
	if err != nil {
		return r
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return r
	}
	if m[2] == "-" {
		n = -n
	}

	r.Timestamp = ts
	r.Delta = n
	r.Actor = m[4]
	return r
}
