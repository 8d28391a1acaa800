package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/data-agent/backend/internal/dataset"
	"github.com/data-agent/backend/internal/metrics"
	"github.com/data-agent/backend/pkg/logger"
)

// LoadCSV parses CSV bytes into a Dataset. The first row is the header;
// cells stay as strings and the profiler decides what each column holds.
// Malformed rows are skipped rather than failing the whole upload.
func LoadCSV(data []byte) (*dataset.Dataset, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var rows []dataset.Row
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		row := make(dataset.Row, len(headers))
		for i, val := range record {
			if i >= len(headers) {
				break
			}
			row[headers[i]] = strings.TrimSpace(val)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV contains a header but no data rows")
	}

	if skipped > 0 {
		logger.Warn("Skipped malformed CSV rows", zap.Int("skipped", skipped))
	}

	metrics.DatasetsLoaded.WithLabelValues("csv").Inc()
	metrics.DatasetRows.Observe(float64(len(rows)))

	logger.Info("CSV loaded", zap.Int("rows", len(rows)), zap.Int("columns", len(headers)))

	return dataset.NewWithColumns(headers, rows), nil
}
