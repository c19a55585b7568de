package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for rule persistence operations.
type Repository interface {
	Create(ctx context.Context, rule *Rule) error
	List(ctx context.Context) ([]Rule, error)
	Get(ctx context.Context, id string) (*Rule, error)
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) (*Rule, error)

	// EnabledRules is the executor's read path. The executor never mutates
	// rules; it only consumes this each poll cycle.
	EnabledRules(ctx context.Context) ([]Rule, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed rule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new rule. A missing ID is generated; timestamps are set.
func (r *SQLiteRepository) Create(ctx context.Context, rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.ID == "" {
		rule.ID = NewID()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	days, err := json.Marshal(rule.Days)
	if err != nil {
		return fmt.Errorf("marshaling days for rule %s: %w", rule.ID, err)
	}

	const query = `INSERT INTO schedules (id, name, target_id, action, time, days, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.TargetID, rule.Action, rule.Time,
		string(days), boolToInt(rule.Enabled), rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting rule %s: %w", rule.ID, err)
	}
	return nil
}

// List returns all rules ordered by time then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Rule, error) {
	const query = `SELECT id, name, target_id, action, time, days, enabled, created_at, updated_at
		FROM schedules ORDER BY time, name`
	return r.queryRules(ctx, query)
}

// Get returns a single rule by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Rule, error) {
	const query = `SELECT id, name, target_id, action, time, days, enabled, created_at, updated_at
		FROM schedules WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	rule, err := scanRule(row)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// Update replaces a rule's user-supplied fields.
func (r *SQLiteRepository) Update(ctx context.Context, rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now().UTC()

	days, err := json.Marshal(rule.Days)
	if err != nil {
		return fmt.Errorf("marshaling days for rule %s: %w", rule.ID, err)
	}

	const query = `UPDATE schedules
		SET name = ?, target_id = ?, action = ?, time = ?, days = ?, enabled = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		rule.Name, rule.TargetID, rule.Action, rule.Time,
		string(days), boolToInt(rule.Enabled), rule.UpdatedAt, rule.ID)
	if err != nil {
		return fmt.Errorf("updating rule %s: %w", rule.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a rule by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting rule %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled flips a rule's enabled flag and returns the updated rule.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, id string, enabled bool) (*Rule, error) {
	const query = `UPDATE schedules SET enabled = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, boolToInt(enabled), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("toggling rule %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// EnabledRules returns only the rules the executor should consider.
func (r *SQLiteRepository) EnabledRules(ctx context.Context) ([]Rule, error) {
	const query = `SELECT id, name, target_id, action, time, days, enabled, created_at, updated_at
		FROM schedules WHERE enabled = 1 ORDER BY time, name`
	return r.queryRules(ctx, query)
}

func (r *SQLiteRepository) queryRules(ctx context.Context, query string, args ...any) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows close

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (*Rule, error) {
	var (
		rule    Rule
		days    string
		enabled int
	)
	err := s.Scan(&rule.ID, &rule.Name, &rule.TargetID, &rule.Action,
		&rule.Time, &days, &enabled, &rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning rule: %w", err)
	}
	if err := json.Unmarshal([]byte(days), &rule.Days); err != nil {
		return nil, fmt.Errorf("decoding days for rule %s: %w", rule.ID, err)
	}
	rule.Enabled = enabled != 0
	return &rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
