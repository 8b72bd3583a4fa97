package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/balance-dashboard/internal/config"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// DSN builds the driver connection string.
// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
func DSN(user, pass, host, port, name string) string {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)
}

// OpenStore opens a read-only external store (WordPress or Matomo) and wraps
// it for sqlx so repositories can scan rows into tagged structs.
func OpenStore(sc config.StoreConfig) (*sqlx.DB, error) {
	db, err := Open(sc.User, sc.Pass, sc.Host, sc.Port, sc.Name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", sc.Name, err)
	}
	return sqlx.NewDb(db, "mysql"), nil
}

// SameStore reports whether two store configs point at one database, so
// callers can share a pool instead of opening a second one.
func SameStore(a, b config.StoreConfig) bool {
	return a.User == b.User && a.Pass == b.Pass && a.Host == b.Host && a.Port == b.Port && a.Name == b.Name
}
