package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a conversion id is unknown.
var ErrNotFound = errors.New("conversion not found")

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 50

// Record stores a finished conversion. An empty ID is filled with a new
// UUID and a zero CreatedAt with the current time.
func (d *Database) Record(ctx context.Context, c *Conversion) error {
	start := time.Now()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO conversions (
			id, created_at, input_name, output_name, encrypted, status,
			attempts, rounds, input_bytes, duration_ms, message, log
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.CreatedAt.UnixMilli(), c.InputName, c.OutputName, c.Encrypted, string(c.Status),
		c.Attempts, c.Rounds, c.InputBytes, c.DurationMS, c.Message, c.Log)
	recordQuery("record", start, err)
	if err != nil {
		return fmt.Errorf("failed to record conversion: %w", err)
	}
	return nil
}

// Get returns a single conversion including its log.
func (d *Database) Get(ctx context.Context, id string) (*Conversion, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, created_at, input_name, output_name, encrypted, status,
			attempts, rounds, input_bytes, duration_ms, message, log
		FROM conversions WHERE id = ?
	`, id)

	var c Conversion
	var created int64
	var status string
	err := row.Scan(&c.ID, &created, &c.InputName, &c.OutputName, &c.Encrypted, &status,
		&c.Attempts, &c.Rounds, &c.InputBytes, &c.DurationMS, &c.Message, &c.Log)
	if errors.Is(err, sql.ErrNoRows) {
		recordQuery("get", start, nil)
		return nil, ErrNotFound
	}
	recordQuery("get", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}

	c.CreatedAt = time.UnixMilli(created)
	c.Status = Status(status)
	return &c, nil
}

// List returns the most recent conversions, newest first, without logs.
func (d *Database) List(ctx context.Context, limit int) ([]Conversion, error) {
	start := time.Now()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, created_at, input_name, output_name, encrypted, status,
			attempts, rounds, input_bytes, duration_ms, message
		FROM conversions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		recordQuery("list", start, err)
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	conversions := make([]Conversion, 0, limit)
	for rows.Next() {
		var c Conversion
		var created int64
		var status string
		if err := rows.Scan(&c.ID, &created, &c.InputName, &c.OutputName, &c.Encrypted, &status,
			&c.Attempts, &c.Rounds, &c.InputBytes, &c.DurationMS, &c.Message); err != nil {
			recordQuery("list", start, err)
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created)
		c.Status = Status(status)
		conversions = append(conversions, c)
	}

	err = rows.Err()
	recordQuery("list", start, err)
	if err != nil {
		return nil, err
	}
	return conversions, nil
}

// Stats returns the number of recorded conversions per status.
func (d *Database) Stats(ctx context.Context) (map[string]int, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM conversions GROUP BY status`)
	if err != nil {
		recordQuery("stats", start, err)
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int, len(Statuses))
	for _, s := range Statuses {
		counts[string(s)] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			recordQuery("stats", start, err)
			return nil, err
		}
		counts[status] = n
	}

	err = rows.Err()
	recordQuery("stats", start, err)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// GetMetadata returns a value from the metadata table.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
