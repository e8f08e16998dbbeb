package repository

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// OpenDB открывает durable кэш. Поддерживаются два драйвера:
//   - sqlite   - встроенный файл, вариант по умолчанию для одиночного демона
//   - postgres - общий кэш для нескольких инсталляций
func OpenDB(driver, dsn string) (*sql.DB, error) {
	var db *sql.DB
	var err error

	switch driver {
	case "sqlite":
		db, err = sql.Open("sqlite", dsn)
	case "postgres":
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	if driver == "sqlite" {
		// Кэш пишется на каждом тике опроса: WAL убирает блокировку
		// читателей, NORMAL достаточен для переживаемых данных
		if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
			log.Printf("repository: failed to set WAL mode: %v", err)
		}
		if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
			log.Printf("repository: failed to set synchronous mode: %v", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
			log.Printf("repository: failed to set busy timeout: %v", err)
		}
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// migrate создаёт схему кэша. Обе таблицы однострочные (id=1):
// демон хранит ровно одну сессию и один последний снапшот
func migrate(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS session_cache (
			id INTEGER PRIMARY KEY,
			token_encrypted TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshot_cache (
			id INTEGER PRIMARY KEY,
			payload TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("failed to migrate cache schema: %w", err)
		}
	}
	return nil
}
