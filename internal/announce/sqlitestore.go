package announce

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteStore keeps the set in the announced_sensors table. The schema is
// created by the migrate package.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sensor_id FROM announced_sensors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// Save replaces the stored set with ids in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, ids map[string]bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM announced_sensors`); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO announced_sensors (sensor_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for id, ok := range ids {
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("insert %q: %w", id, err)
		}
	}
	return tx.Commit()
}
