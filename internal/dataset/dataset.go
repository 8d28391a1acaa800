package dataset

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row maps column name to a raw value: string, float64, bool, or nil.
// Every row in a Dataset exposes the same column set; a missing value is
// stored as nil, never omitted.
type Row map[string]any

// Dataset is an ordered sequence of uniform rows. Column order is fixed at
// construction so downstream output is stable.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// New builds a Dataset from rows, deriving the column set from the sorted
// union of keys and back-filling nil for columns a row lacks. Rows are maps,
// so sorting is the only order that stays stable between runs; callers that
// know the source order should use NewWithColumns.
func New(rows []Row) *Dataset {
	seen := make(map[string]bool)
	var columns []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				columns = append(columns, col)
			}
		}
	}
	sort.Strings(columns)
	return NewWithColumns(columns, rows)
}

// NewWithColumns builds a Dataset with an explicit column order, e.g. CSV
// header order. Keys outside the column list are dropped; missing keys are
// back-filled with nil.
func NewWithColumns(columns []string, rows []Row) *Dataset {
	ds := &Dataset{Columns: columns}
	for _, row := range rows {
		uniform := make(Row, len(ds.Columns))
		for _, col := range ds.Columns {
			if v, ok := row[col]; ok {
				uniform[col] = v
			} else {
				uniform[col] = nil
			}
		}
		ds.Rows = append(ds.Rows, uniform)
	}
	return ds
}

func (d *Dataset) Len() int {
	return len(d.Rows)
}

func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ToFloat coerces a raw cell value to a float64. Strings are cleaned of
// currency symbols, thousands separators, and accounting parentheses.
func ToFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false
		}
		negative := false
		if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
			negative = true
			s = s[1 : len(s)-1]
		}
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimPrefix(s, "€")
		s = strings.TrimPrefix(s, "£")
		s = strings.TrimSuffix(s, "%")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		if negative {
			f = -f
		}
		return f, true
	default:
		return 0, false
	}
}

// dateFormats is ordered most-specific first; the first successful parse wins.
var dateFormats = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"Jan-2006",
	"January 2006",
	"2006-01",
}

// ToTime coerces a raw cell value to a calendar date. Quarter labels like
// "2024-Q1" or "Q1 2024" map to the first day of the quarter so mixed
// period columns still sort chronologically.
func ToTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if t, ok := parseQuarter(s); ok {
		return t, true
	}

	// Bare year, but only in a plausible calendar range so numeric codes
	// like "1234" don't masquerade as dates.
	if len(s) == 4 {
		if year, err := strconv.Atoi(s); err == nil && year >= 1900 && year <= 2200 {
			return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// parseQuarter handles "2024-Q1", "Q1-2024", and "Q1 2024".
func parseQuarter(s string) (time.Time, bool) {
	norm := strings.ToUpper(strings.ReplaceAll(s, " ", "-"))
	parts := strings.Split(norm, "-")
	if len(parts) != 2 {
		return time.Time{}, false
	}

	var yearStr, qStr string
	switch {
	case strings.HasPrefix(parts[0], "Q"):
		qStr, yearStr = parts[0], parts[1]
	case strings.HasPrefix(parts[1], "Q"):
		yearStr, qStr = parts[0], parts[1]
	default:
		return time.Time{}, false
	}

	if len(qStr) != 2 {
		return time.Time{}, false
	}
	q := int(qStr[1] - '0')
	if q < 1 || q > 4 {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 1900 || year > 2200 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month((q-1)*3+1), 1, 0, 0, 0, 0, time.UTC), true
}

// ToString renders a raw cell value for grouping keys and labels.
func ToString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
