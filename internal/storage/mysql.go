package storage

import (
	"context"
	"database/sql"
	"errors"
)

// MySQLBackend persists slots in the session_slots table:
//
//	CREATE TABLE session_slots (
//	    name       VARCHAR(191) PRIMARY KEY,
//	    payload    MEDIUMTEXT NOT NULL,
//	    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
//	);
type MySQLBackend struct {
	db *sql.DB
}

func NewMySQLBackend(db *sql.DB) *MySQLBackend { return &MySQLBackend{db: db} }

func (b *MySQLBackend) Slot(name string) Slot { return &mysqlSlot{db: b.db, name: name} }

type mysqlSlot struct {
	db   *sql.DB
	name string
}

func (s *mysqlSlot) Name() string { return s.name }

func (s *mysqlSlot) Read(ctx context.Context) (string, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM session_slots WHERE name=? LIMIT 1", s.name).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return payload, true, nil
}

func (s *mysqlSlot) Write(ctx context.Context, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO session_slots (name, payload) VALUES (?,?) ON DUPLICATE KEY UPDATE payload=VALUES(payload)",
		s.name, value)
	return err
}

func (s *mysqlSlot) Remove(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM session_slots WHERE name=?", s.name)
	return err
}
