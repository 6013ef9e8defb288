package main

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database. It stores server settings and per-driver
// aggregates only; no room or pose state is ever persisted.
type DB struct {
	conn *sql.DB
}

// DriverRow is an account record.
type DriverRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// DriverStats are lifetime aggregates for one driver.
type DriverStats struct {
	DriverID int64
	Joins    int
	Playtime float64 // seconds
	Distance float64 // world units
}

// OpenDB opens (or creates) the SQLite database.
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS drivers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			pass_hash TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS driver_stats (
			driver_id INTEGER PRIMARY KEY REFERENCES drivers(id),
			joins INTEGER NOT NULL DEFAULT 0,
			playtime REAL NOT NULL DEFAULT 0,
			distance REAL NOT NULL DEFAULT 0
		)`,
	}
	for _, s := range stmts {
		if _, err := db.conn.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// GetSetting returns a settings value, or "" when absent.
func (db *DB) GetSetting(key string) string {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil {
		return ""
	}
	return v
}

// SetSetting upserts a settings value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

// UsernameExists reports whether the username is taken.
func (db *DB) UsernameExists(username string) (bool, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM drivers WHERE username = ?", username).Scan(&n)
	return n > 0, err
}

// CreateDriver inserts an account and its empty stats row.
func (db *DB) CreateDriver(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO drivers (username, pass_hash) VALUES (?, ?)", username, passHash)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := db.conn.Exec("INSERT INTO driver_stats (driver_id) VALUES (?)", id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetDriverByUsername fetches an account for login.
func (db *DB) GetDriverByUsername(username string) (*DriverRow, error) {
	row := &DriverRow{}
	err := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM drivers WHERE username = ?",
		username).Scan(&row.ID, &row.Username, &row.PassHash, &row.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// GetDriverByID fetches an account for token validation.
func (db *DB) GetDriverByID(id int64) (*DriverRow, error) {
	row := &DriverRow{}
	err := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM drivers WHERE id = ?",
		id).Scan(&row.ID, &row.Username, &row.PassHash, &row.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// RecordJoin bumps the driver's join counter.
func (db *DB) RecordJoin(driverID int64) error {
	_, err := db.conn.Exec(
		"UPDATE driver_stats SET joins = joins + 1 WHERE driver_id = ?", driverID)
	return err
}

// RecordSession folds one play session into the driver's aggregates.
func (db *DB) RecordSession(driverID int64, playtime, distance float64) error {
	_, err := db.conn.Exec(
		"UPDATE driver_stats SET playtime = playtime + ?, distance = distance + ? WHERE driver_id = ?",
		playtime, distance, driverID)
	return err
}

// GetStats returns the driver's lifetime aggregates.
func (db *DB) GetStats(driverID int64) (*DriverStats, error) {
	s := &DriverStats{DriverID: driverID}
	err := db.conn.QueryRow(
		"SELECT joins, playtime, distance FROM driver_stats WHERE driver_id = ?",
		driverID).Scan(&s.Joins, &s.Playtime, &s.Distance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
