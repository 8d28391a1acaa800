package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/data-agent/backend/internal/storage/models"
	"github.com/data-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		name TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		format TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		column_count INTEGER NOT NULL,
		columns TEXT,
		uploaded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_datasets_uploaded ON datasets(uploaded_at);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		dataset_name TEXT,
		query_text TEXT NOT NULL,
		action TEXT,
		analysis_type TEXT,
		confidence REAL,
		clarified INTEGER DEFAULT 0,
		sampled_rows INTEGER DEFAULT 0,
		narrative TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_user ON query_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_query_dataset ON query_history(dataset_name);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_query ON feedback(query_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) UpsertDataset(record *models.DatasetRecord) error {
	query := `
		INSERT INTO datasets (name, fingerprint, format, row_count, column_count, columns, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			format = excluded.format,
			row_count = excluded.row_count,
			column_count = excluded.column_count,
			columns = excluded.columns,
			uploaded_at = excluded.uploaded_at
	`

	_, err := c.db.Exec(
		query,
		record.Name,
		record.Fingerprint,
		record.Format,
		record.RowCount,
		record.ColumnCount,
		record.Columns,
		record.UploadedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert dataset: %w", err)
	}

	logger.Debug("Dataset recorded", zap.String("name", record.Name), zap.Int("rows", record.RowCount))
	return nil
}

func (c *Client) GetDataset(name string) (*models.DatasetRecord, error) {
	query := `SELECT name, fingerprint, format, row_count, column_count, columns, uploaded_at FROM datasets WHERE name = ?`

	var rec models.DatasetRecord
	var uploadedAt int64

	err := c.db.QueryRow(query, name).Scan(
		&rec.Name,
		&rec.Fingerprint,
		&rec.Format,
		&rec.RowCount,
		&rec.ColumnCount,
		&rec.Columns,
		&uploadedAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	rec.UploadedAt = time.Unix(uploadedAt, 0)

	return &rec, nil
}

func (c *Client) ListDatasets() ([]models.DatasetRecord, error) {
	query := `SELECT name, fingerprint, format, row_count, column_count, columns, uploaded_at FROM datasets ORDER BY uploaded_at DESC`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var records []models.DatasetRecord
	for rows.Next() {
		var rec models.DatasetRecord
		var uploadedAt int64

		err := rows.Scan(&rec.Name, &rec.Fingerprint, &rec.Format, &rec.RowCount, &rec.ColumnCount, &rec.Columns, &uploadedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rec.UploadedAt = time.Unix(uploadedAt, 0)
		records = append(records, rec)
	}

	return records, nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, user_id, dataset_name, query_text, action, analysis_type,
			confidence, clarified, sampled_rows, narrative, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	clarified := 0
	if record.Clarified {
		clarified = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.DatasetName,
		record.QueryText,
		record.Action,
		record.AnalysisType,
		record.Confidence,
		clarified,
		record.SampledRows,
		record.Narrative,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Debug("Query recorded",
		zap.String("query_id", record.ID),
		zap.String("analysis_type", record.AnalysisType),
		zap.Float64("confidence", record.Confidence),
	)

	return nil
}

func (c *Client) GetQueryHistory(userID string, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, user_id, dataset_name, query_text, action, analysis_type,
			confidence, clarified, sampled_rows, narrative, latency_ms, created_at
		FROM query_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	var records []models.QueryRecord
	for rows.Next() {
		var r models.QueryRecord
		var clarified int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.UserID, &r.DatasetName, &r.QueryText, &r.Action, &r.AnalysisType,
			&r.Confidence, &clarified, &r.SampledRows, &r.Narrative, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Clarified = clarified == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, nil
}

func (c *Client) StoreFeedback(feedback *models.Feedback) error {
	query := `INSERT INTO feedback (query_id, helpful, comment, created_at) VALUES (?, ?, ?, ?)`

	helpful := 0
	if feedback.Helpful {
		helpful = 1
	}

	_, err := c.db.Exec(
		query,
		feedback.QueryID,
		helpful,
		feedback.Comment,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("query_id", feedback.QueryID),
		zap.Bool("helpful", feedback.Helpful),
	)

	return nil
}
