package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/profile"
)

type ContributionScope string

const (
	ScopeTotal   ContributionScope = "total"
	ScopeAverage ContributionScope = "average"
	ScopePeriod  ContributionScope = "period" // restrict to one period value
)

type ContributionSort string

const (
	SortByShare      ContributionSort = "share"
	SortByValue      ContributionSort = "value"
	SortAlphabetical ContributionSort = "alpha"
)

// OthersBucket is the synthetic category that absorbs contributions below
// the minimum-share threshold.
const OthersBucket = "Others"

type ContributionParams struct {
	Scope        ContributionScope `json:"scope"`
	PeriodFilter string            `json:"periodFilter,omitempty"` // required for ScopePeriod
	MinSharePct  float64           `json:"minSharePct"`
	GroupOthers  bool              `json:"groupOthers"`
	SortBy       ContributionSort  `json:"sortBy"`
	Ascending    bool              `json:"ascending"`
}

func DefaultContributionParams() ContributionParams {
	return ContributionParams{
		Scope:       ScopeTotal,
		MinSharePct: 2.0,
		GroupOthers: true,
		SortBy:      SortByShare,
	}
}

type CategoryShare struct {
	Category  string          `json:"category"`
	Value     float64         `json:"value"`
	SharePct  float64         `json:"sharePct"`
	RowCount  int             `json:"rowCount"`
	SubShares []CategoryShare `json:"subShares,omitempty"`
}

// PeriodLeader reports the strongest and weakest category inside one time
// bucket (a year, quarter, or month derived from the bound date column).
type PeriodLeader struct {
	Granularity string        `json:"granularity"`
	Bucket      string        `json:"bucket"`
	Top         CategoryShare `json:"top"`
	Bottom      CategoryShare `json:"bottom"`
}

type ContributionResult struct {
	Scope      ContributionScope `json:"scope"`
	ValueTotal float64           `json:"valueTotal"`
	Shares     []CategoryShare   `json:"shares"`
	Leaders    []PeriodLeader    `json:"leaders,omitempty"`
}

// AnalyzeContribution breaks the value total into categorical shares. The
// reported percentages, including the Others bucket, always sum to 100
// within floating-point tolerance because every share is value/grandTotal.
func AnalyzeContribution(d *dataset.Dataset, b Bindings, p ContributionParams) (*ContributionResult, error) {
	if d == nil || d.Len() == 0 {
		return nil, fmt.Errorf("%w: provide rows with a value and a category column", ErrEmptyDataset)
	}

	valueCol := b.Column(profile.RoleValue)
	if valueCol == "" {
		valueCol = b.Column(profile.RoleActual)
	}
	categoryCol := b.Column(profile.RolePrimaryCategory)
	if valueCol == "" || categoryCol == "" {
		return nil, fmt.Errorf("%w: contribution analysis needs a numeric value column and a category column; bind the missing one", ErrMissingBinding)
	}
	subCol := b.Column(profile.RoleSecondaryCategory)
	dateCol := b.Column(profile.RoleDate)

	if p.Scope == "" {
		p.Scope = ScopeTotal
	}
	if p.SortBy == "" {
		p.SortBy = SortByShare
	}
	if p.Scope == ScopePeriod && p.PeriodFilter == "" {
		return nil, fmt.Errorf("%w: period-scoped contribution needs a period filter value (e.g. \"2024-Q1\"); supply one or switch scope to total", ErrInvalidParameter)
	}

	type bucket struct {
		sum   float64
		count int
		subs  map[string]*bucket
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, row := range d.Rows {
		if p.Scope == ScopePeriod && dateCol != "" {
			if !strings.EqualFold(dataset.ToString(row[dateCol]), p.PeriodFilter) {
				continue
			}
		}

		v, ok := dataset.ToFloat(row[valueCol])
		if !ok {
			continue
		}
		cat := dataset.ToString(row[categoryCol])
		if cat == "" {
			cat = "(blank)"
		}

		bk, exists := buckets[cat]
		if !exists {
			bk = &bucket{subs: make(map[string]*bucket)}
			buckets[cat] = bk
			order = append(order, cat)
		}
		bk.sum += v
		bk.count++

		if subCol != "" {
			sub := dataset.ToString(row[subCol])
			if sub == "" {
				sub = "(blank)"
			}
			sb, exists := bk.subs[sub]
			if !exists {
				sb = &bucket{}
				bk.subs[sub] = sb
			}
			sb.sum += v
			sb.count++
		}
	}

	if len(buckets) == 0 {
		return nil, fmt.Errorf("%w: no rows matched; check the period filter %q and the %q column", ErrInsufficientData, p.PeriodFilter, valueCol)
	}

	aggregate := func(bk *bucket) float64 {
		if p.Scope == ScopeAverage && bk.count > 0 {
			return bk.sum / float64(bk.count)
		}
		return bk.sum
	}

	grandTotal := 0.0
	for _, cat := range order {
		grandTotal += aggregate(buckets[cat])
	}
	if grandTotal == 0 {
		return nil, fmt.Errorf("%w: category values sum to zero, so shares are undefined; check the %q column", ErrInsufficientData, valueCol)
	}

	result := &ContributionResult{Scope: p.Scope, ValueTotal: grandTotal}

	var shares []CategoryShare
	others := CategoryShare{Category: OthersBucket}
	for _, cat := range order {
		bk := buckets[cat]
		val := aggregate(bk)
		share := CategoryShare{
			Category: cat,
			Value:    val,
			SharePct: val / grandTotal * 100,
			RowCount: bk.count,
		}

		if p.GroupOthers && share.SharePct < p.MinSharePct {
			others.Value += share.Value
			others.SharePct += share.SharePct
			others.RowCount += share.RowCount
			continue
		}

		for sub, sb := range bk.subs {
			share.SubShares = append(share.SubShares, CategoryShare{
				Category: sub,
				Value:    aggregate(sb),
				SharePct: aggregate(sb) / grandTotal * 100,
				RowCount: sb.count,
			})
		}
		sortShares(share.SubShares, p.SortBy, p.Ascending)

		shares = append(shares, share)
	}

	sortShares(shares, p.SortBy, p.Ascending)
	if others.RowCount > 0 {
		shares = append(shares, others)
	}
	result.Shares = shares

	if dateCol != "" && p.Scope != ScopePeriod {
		result.Leaders = periodLeaders(d, dateCol, categoryCol, valueCol)
	}

	return result, nil
}

func sortShares(shares []CategoryShare, by ContributionSort, ascending bool) {
	sort.SliceStable(shares, func(i, j int) bool {
		var less bool
		switch by {
		case SortAlphabetical:
			less = shares[i].Category < shares[j].Category
		case SortByValue:
			less = shares[i].Value < shares[j].Value
		default:
			less = shares[i].SharePct < shares[j].SharePct
		}
		if ascending {
			return less
		}
		return !less
	})
}

// periodLeaders reproduces the top/bottom performer report: bucket rows by
// year, quarter, and month from the date column, total the value per
// category inside each bucket, and report the extremes.
func periodLeaders(d *dataset.Dataset, dateCol, categoryCol, valueCol string) []PeriodLeader {
	type key struct {
		granularity string
		bucket      string
	}
	totals := make(map[key]map[string]float64)
	counts := make(map[key]map[string]int)
	var keyOrder []key

	accumulate := func(k key, cat string, v float64) {
		if totals[k] == nil {
			totals[k] = make(map[string]float64)
			counts[k] = make(map[string]int)
			keyOrder = append(keyOrder, k)
		}
		totals[k][cat] += v
		counts[k][cat]++
	}

	for _, row := range d.Rows {
		t, ok := dataset.ToTime(row[dateCol])
		if !ok {
			continue
		}
		v, ok := dataset.ToFloat(row[valueCol])
		if !ok {
			continue
		}
		cat := dataset.ToString(row[categoryCol])
		if cat == "" {
			continue
		}

		year := strconv.Itoa(t.Year())
		quarter := fmt.Sprintf("%s-Q%d", year, (int(t.Month())-1)/3+1)
		month := fmt.Sprintf("%s-%02d", year, int(t.Month()))

		accumulate(key{"year", year}, cat, v)
		accumulate(key{"quarter", quarter}, cat, v)
		accumulate(key{"month", month}, cat, v)
	}

	var leaders []PeriodLeader
	for _, k := range keyOrder {
		catTotals := totals[k]
		if len(catTotals) < 2 {
			continue
		}

		bucketTotal := 0.0
		cats := make([]string, 0, len(catTotals))
		for cat, v := range catTotals {
			bucketTotal += v
			cats = append(cats, cat)
		}
		sort.Strings(cats) // deterministic extremes on ties

		top, bottom := cats[0], cats[0]
		for _, cat := range cats[1:] {
			if catTotals[cat] > catTotals[top] {
				top = cat
			}
			if catTotals[cat] < catTotals[bottom] {
				bottom = cat
			}
		}

		mkShare := func(cat string) CategoryShare {
			share := CategoryShare{Category: cat, Value: catTotals[cat], RowCount: counts[k][cat]}
			if bucketTotal != 0 {
				share.SharePct = catTotals[cat] / bucketTotal * 100
			}
			return share
		}

		leaders = append(leaders, PeriodLeader{
			Granularity: k.granularity,
			Bucket:      k.bucket,
			Top:         mkShare(top),
			Bottom:      mkShare(bottom),
		})
	}

	return leaders
}
