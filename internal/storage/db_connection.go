package storage

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"gridkit/internal/domain"
)

var connectionColumns = []string{
	"id", "name", "driver", "host", "port", "database_name", "username", "ssl_mode", "extra_json", "created_at", "updated_at",
}

// DBConnectionStore manages external database connection records in SQLite.
type DBConnectionStore struct {
	db *DB
}

// NewDBConnectionStore creates a new DBConnectionStore.
func NewDBConnectionStore(db *DB) *DBConnectionStore {
	return &DBConnectionStore{db: db}
}

func scanConnection(s scanner) (domain.DatabaseConnection, error) {
	var c domain.DatabaseConnection
	err := s.Scan(&c.ID, &c.Name, &c.Driver, &c.Host, &c.Port, &c.Database, &c.Username, &c.SSLMode, &c.ExtraJSON, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *DBConnectionStore) CreateConnection(c *domain.DatabaseConnection) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.ExtraJSON == "" {
		c.ExtraJSON = "{}"
	}

	_, err := sq.Insert("db_connections").
		Columns(connectionColumns...).
		Values(c.ID, c.Name, c.Driver, c.Host, c.Port, c.Database, c.Username, c.SSLMode, c.ExtraJSON, c.CreatedAt, c.UpdatedAt).
		RunWith(s.db.Conn()).
		Exec()
	return err
}

func (s *DBConnectionStore) GetConnection(id string) (*domain.DatabaseConnection, error) {
	row := sq.Select(connectionColumns...).
		From("db_connections").
		Where(sq.Eq{"id": id}).
		RunWith(s.db.Conn()).
		QueryRow()

	c, err := scanConnection(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("database connection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *DBConnectionStore) ListConnections() ([]domain.DatabaseConnection, error) {
	rows, err := sq.Select(connectionColumns...).
		From("db_connections").
		OrderBy("name").
		RunWith(s.db.Conn()).
		Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []domain.DatabaseConnection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (s *DBConnectionStore) UpdateConnection(c *domain.DatabaseConnection) error {
	c.UpdatedAt = time.Now()
	res, err := sq.Update("db_connections").
		SetMap(map[string]any{
			"name":          c.Name,
			"driver":        c.Driver,
			"host":          c.Host,
			"port":          c.Port,
			"database_name": c.Database,
			"username":      c.Username,
			"ssl_mode":      c.SSLMode,
			"extra_json":    c.ExtraJSON,
			"updated_at":    c.UpdatedAt,
		}).
		Where(sq.Eq{"id": c.ID}).
		RunWith(s.db.Conn()).
		Exec()
	if err != nil {
		return err
	}
	return expectAffected(res, "database connection", c.ID)
}

func (s *DBConnectionStore) DeleteConnection(id string) error {
	_, err := sq.Delete("db_connections").Where(sq.Eq{"id": id}).RunWith(s.db.Conn()).Exec()
	return err
}

var _ domain.DatabaseConnectionStore = (*DBConnectionStore)(nil)
