package database

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/iliyamo/balance-dashboard/internal/database/migrations"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema for the locally owned tables. The
// WordPress and Matomo stores are never migrated.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
