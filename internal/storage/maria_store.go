package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/go-sql-driver/mysql"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// MariaBackend хранит колонки в таблице MariaDB/MySQL.
// Таблица создаётся при подключении, если её нет.
type MariaBackend struct {
	db    *sql.DB
	table string
}

// NewMariaBackend подключается к базе по DSN (user:pass@tcp(host:port)/dbname)
func NewMariaBackend(ctx context.Context, dsn, table string) (*MariaBackend, error) {
	if table == "" {
		table = "world_columns"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("недопустимое имя таблицы %q", table)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	m := &MariaBackend{db: db, table: table}
	if err := m.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// OpenMariaStore открывает хранилище колонок поверх MariaDB
func OpenMariaStore(ctx context.Context, dsn, table string, workers int) (*ChunkStore, error) {
	backend, err := NewMariaBackend(ctx, dsn, table)
	if err != nil {
		return nil, err
	}
	store, err := NewChunkStore(backend, workers)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

func (m *MariaBackend) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + m.table + ` (
			column_key VARCHAR(64) PRIMARY KEY,
			data       MEDIUMBLOB  NOT NULL,
			updated_at TIMESTAMP   DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE   CURRENT_TIMESTAMP
		) ENGINE=InnoDB
	`
	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка создания таблицы %s: %w", m.table, err)
	}
	return nil
}

func (m *MariaBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx, `SELECT data FROM `+m.table+` WHERE column_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("maria get %s: %w", key, err)
	}
	return data, true, nil
}

// Put использует INSERT ... ON DUPLICATE KEY UPDATE
func (m *MariaBackend) Put(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO ` + m.table + ` (column_key, data) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE data = VALUES(data), updated_at = CURRENT_TIMESTAMP
	`
	if _, err := m.db.ExecContext(ctx, query, key, data); err != nil {
		return fmt.Errorf("maria put %s: %w", key, err)
	}
	return nil
}

func (m *MariaBackend) Delete(ctx context.Context, key string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM `+m.table+` WHERE column_key = ?`, key)
	return err
}

// Count возвращает число сохранённых колонок
func (m *MariaBackend) Count(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+m.table).Scan(&n)
	return n, err
}

func (m *MariaBackend) Close() error {
	return m.db.Close()
}
