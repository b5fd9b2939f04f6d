package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DatasetSFT = "sft"
	DatasetDPO = "dpo"
)

// Entry is one feedback record as mirrored into the index.
type Entry struct {
	ID         uuid.UUID
	Dataset    string
	ImageRef   string
	Model      string
	Label      string
	LogFile    string
	RecordedAt time.Time
	Record     any
}

// FeedbackIndex mirrors appended dataset records into Postgres for querying.
// The JSONL logs stay authoritative.
type FeedbackIndex struct {
	db *sql.DB
}

// Open connects to dbURL, pings it and applies pending migrations.
func Open(ctx context.Context, dbURL string) (*FeedbackIndex, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := NewMigrator(db).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &FeedbackIndex{db: db}, nil
}

func (i *FeedbackIndex) Insert(ctx context.Context, e Entry) error {
	record, err := json.Marshal(e.Record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	var label sql.NullString
	if e.Label != "" {
		label = sql.NullString{String: e.Label, Valid: true}
	}

	_, err = i.db.ExecContext(ctx, `
		INSERT INTO feedback_records (id, dataset, image_ref, model, label, log_file, recorded_at, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.Dataset, e.ImageRef, e.Model, label, e.LogFile, e.RecordedAt, record)
	if err != nil {
		return fmt.Errorf("failed to index feedback record %s: %w", e.ID, err)
	}
	return nil
}

// Counts returns the number of indexed records per dataset.
func (i *FeedbackIndex) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT dataset, COUNT(*) FROM feedback_records GROUP BY dataset`)
	if err != nil {
		return nil, fmt.Errorf("failed to count feedback records: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{DatasetSFT: 0, DatasetDPO: 0}
	for rows.Next() {
		var dataset string
		var n int
		if err := rows.Scan(&dataset, &n); err != nil {
			return nil, err
		}
		counts[dataset] = n
	}
	return counts, rows.Err()
}

func (i *FeedbackIndex) Close() error {
	return i.db.Close()
}
