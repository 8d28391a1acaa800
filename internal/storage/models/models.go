package models

import "time"

// QueryRecord is one processed query in the history log.
type QueryRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	DatasetName  string    `json:"dataset_name"`
	QueryText    string    `json:"query_text"`
	Action       string    `json:"action"`
	AnalysisType string    `json:"analysis_type"`
	Confidence   float64   `json:"confidence"`
	Clarified    bool      `json:"clarified"`
	SampledRows  int       `json:"sampled_rows"`
	Narrative    string    `json:"narrative"`
	LatencyMS    int       `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// DatasetRecord describes an uploaded dataset, not its rows: the agent
// keeps data in memory and persists only metadata for the history view.
type DatasetRecord struct {
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Format      string    `json:"format"` // csv, html
	RowCount    int       `json:"row_count"`
	ColumnCount int       `json:"column_count"`
	Columns     string    `json:"columns"` // JSON-encoded column list
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Feedback is a thumbs-up/down on one query's answer.
type Feedback struct {
	QueryID   string    `json:"query_id"`
	Helpful   bool      `json:"helpful"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
