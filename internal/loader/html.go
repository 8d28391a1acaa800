package loader

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/metrics"
	"github.com/data-agent/backend/pkg/logger"
)

// LoadHTMLTable extracts the largest <table> from an HTML document into a
// Dataset. Headers come from <th> cells, or from the first row when the
// table has none. Rows shorter than the header are padded with empty cells.
func LoadHTMLTable(html string) (*dataset.Dataset, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var best *goquery.Selection
	bestRows := 0
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		n := table.Find("tr").Length()
		if n > bestRows {
			best = table
			bestRows = n
		}
	})

	if best == nil {
		return nil, fmt.Errorf("no table found in HTML document")
	}

	var headers []string
	best.Find("tr").First().Find("th").Each(func(i int, cell *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(cell.Text()))
	})

	dataRows := best.Find("tr")
	startIdx := 0
	if len(headers) > 0 {
		startIdx = 1
	} else {
		// No <th> row: first <tr>'s <td> cells become the header.
		dataRows.First().Find("td").Each(func(i int, cell *goquery.Selection) {
			headers = append(headers, strings.TrimSpace(cell.Text()))
		})
		startIdx = 1
	}

	if len(headers) == 0 {
		return nil, fmt.Errorf("table has no header cells")
	}

	var rows []dataset.Row
	dataRows.Each(func(i int, tr *goquery.Selection) {
		if i < startIdx {
			return
		}
		row := make(dataset.Row, len(headers))
		tr.Find("td").Each(func(j int, cell *goquery.Selection) {
			if j < len(headers) {
				row[headers[j]] = strings.TrimSpace(cell.Text())
			}
		})
		if len(row) > 0 {
			rows = append(rows, row)
		}
	})

	if len(rows) == 0 {
		return nil, fmt.Errorf("table has a header but no data rows")
	}

	metrics.DatasetsLoaded.WithLabelValues("html").Inc()
	metrics.DatasetRows.Observe(float64(len(rows)))

	logger.Info("HTML table loaded", zap.Int("rows", len(rows)), zap.Int("columns", len(headers)))

	return dataset.NewWithColumns(headers, rows), nil
}
