package analysis

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/profile"
)

// Input-error sentinels. Every message wrapped around these states the
// remedy, not just the failure: which binding to supply, how many points
// are needed.
var (
	ErrEmptyDataset     = errors.New("dataset is empty")
	ErrInsufficientData = errors.New("insufficient data points")
	ErrZeroBudget       = errors.New("budget value is zero")
	ErrMissingBinding   = errors.New("required column binding is missing")
	ErrInvalidParameter = errors.New("invalid analyzer parameter")
)

// Bindings resolves analytical roles to concrete column names, produced by
// automatic selection from profiler scores or by explicit user choice.
type Bindings map[profile.Role]string

// Column returns the bound column for a role, or "" when unbound.
func (b Bindings) Column(role profile.Role) string {
	return b[role]
}

// record is the normalized per-row view the analyzers consume. Rows whose
// required fields fail numeric coercion are filtered out before analysis.
type record struct {
	label     string
	date      time.Time
	hasDate   bool
	value     float64
	secondary float64
	hasSecond bool
}

// collectRecords extracts a clean series from the dataset: one record per
// row with a usable value, labeled by the date/period column when bound,
// otherwise by row position.
func collectRecords(d *dataset.Dataset, dateCol, valueCol, secondCol string) []record {
	records := make([]record, 0, d.Len())
	for i, row := range d.Rows {
		value, ok := dataset.ToFloat(row[valueCol])
		if !ok {
			continue
		}

		rec := record{value: value}

		if dateCol != "" {
			rec.label = dataset.ToString(row[dateCol])
			if t, ok := dataset.ToTime(row[dateCol]); ok {
				rec.date = t
				rec.hasDate = true
			}
		}
		if rec.label == "" {
			rec.label = "row " + strconv.Itoa(i+1)
		}

		if secondCol != "" {
			if s, ok := dataset.ToFloat(row[secondCol]); ok {
				rec.secondary = s
				rec.hasSecond = true
			} else {
				// A row missing the comparison figure cannot participate.
				continue
			}
		}

		records = append(records, rec)
	}
	return records
}

// sortChronologically orders records by date ascending when dates resolved,
// keeping the original order otherwise. The sort is stable so equal dates
// preserve input order.
func sortChronologically(records []record) {
	allDated := true
	for _, r := range records {
		if !r.hasDate {
			allDated = false
			break
		}
	}
	if !allDated {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].date.Before(records[j].date)
	})
}
