package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/debashish17/Riverside/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database. sqlite3 is used for development
// and tests, mysql for deployments.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "sqlite3":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Name,
			cfg.Params,
		)
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present. Deleting a session cascades
// its membership rows; recordings keep their metadata with session_id nulled.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT NOT NULL UNIQUE,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				owner_id INTEGER NOT NULL,
				max_participants INTEGER NOT NULL DEFAULT 10,
				status TEXT NOT NULL DEFAULT 'active',
				created_at DATETIME NOT NULL,
				ended_at DATETIME,
				FOREIGN KEY(owner_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS session_members (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id INTEGER NOT NULL,
				user_id INTEGER NOT NULL,
				joined_at DATETIME NOT NULL,
				UNIQUE(session_id, user_id),
				FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE,
				FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
			)`,
			`CREATE TABLE IF NOT EXISTS recordings (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				filename TEXT NOT NULL,
				original_name TEXT NOT NULL,
				file_path TEXT NOT NULL,
				size INTEGER NOT NULL,
				session_id INTEGER,
				session_name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				storage_type TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE SET NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_session_members_user ON session_members(user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_recordings_session ON recordings(session_id)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS users (
				id BIGINT NOT NULL AUTO_INCREMENT,
				username VARCHAR(255) NOT NULL UNIQUE,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id BIGINT NOT NULL AUTO_INCREMENT,
				name VARCHAR(100) NOT NULL,
				description VARCHAR(500) NOT NULL DEFAULT '',
				owner_id BIGINT NOT NULL,
				max_participants INT NOT NULL DEFAULT 10,
				status VARCHAR(16) NOT NULL DEFAULT 'active',
				created_at DATETIME NOT NULL,
				ended_at DATETIME NULL,
				PRIMARY KEY (id),
				KEY idx_sessions_status (status),
				KEY idx_sessions_ended_at (ended_at),
				CONSTRAINT fk_sessions_owner FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS session_members (
				id BIGINT NOT NULL AUTO_INCREMENT,
				session_id BIGINT NOT NULL,
				user_id BIGINT NOT NULL,
				joined_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				UNIQUE KEY uq_session_user (session_id, user_id),
				KEY idx_session_members_user (user_id),
				CONSTRAINT fk_members_session FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE,
				CONSTRAINT fk_members_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS recordings (
				id BIGINT NOT NULL AUTO_INCREMENT,
				filename VARCHAR(255) NOT NULL,
				original_name VARCHAR(255) NOT NULL,
				file_path VARCHAR(512) NOT NULL,
				size BIGINT NOT NULL,
				session_id BIGINT NULL,
				session_name VARCHAR(100) NOT NULL DEFAULT '',
				status VARCHAR(32) NOT NULL,
				storage_type VARCHAR(32) NOT NULL,
				created_at DATETIME NOT NULL,
				PRIMARY KEY (id),
				KEY idx_recordings_session (session_id),
				CONSTRAINT fk_recordings_session FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE SET NULL
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
