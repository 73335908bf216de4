package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"

	sqliteMemory          = ":memory:"
	sqliteDefaultFile     = "internboard.db"
	sqliteBusyTimeoutMS   = 10000
	sqliteMaxConnections  = 4
	sqliteFileURLPrefix   = "file:"
	sqliteSchemePrefix    = "sqlite://"
	sqlitePragmaParameter = "_pragma"
)

// databaseTarget is a DATABASE_URL resolved into a gorm dialector input.
type databaseTarget struct {
	driver string
	// path is the sqlite file, or sqliteMemory; empty for postgres.
	path string
	// query carries sqlite connection parameters, pragmas included.
	query url.Values
}

// dsn renders the string handed to the driver.
func (target databaseTarget) dsn(raw string) string {
	if target.driver == driverPostgres {
		return raw
	}
	if len(target.query) == 0 {
		return target.path
	}
	return target.path + "?" + target.query.Encode()
}

func (target databaseTarget) inMemory() bool {
	return target.driver == driverSQLite && target.path == sqliteMemory
}

func openDatabase(ctx context.Context, rawURL string) (*gorm.DB, func() error, string, error) {
	target, err := parseDatabaseURL(rawURL)
	if err != nil {
		return nil, nil, "", err
	}
	if err := target.prepare(); err != nil {
		return nil, nil, "", err
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	var db *gorm.DB
	switch target.driver {
	case driverPostgres:
		db, err = gorm.Open(postgres.Open(target.dsn(rawURL)), cfg)
	case driverSQLite:
		db, err = gorm.Open(sqlite.Open(target.dsn(rawURL)), cfg)
	default:
		return nil, nil, "", fmt.Errorf("unsupported database scheme %q", target.driver)
	}
	if err != nil {
		return nil, nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, "", err
	}
	switch {
	case target.inMemory():
		// Each connection would open its own empty memory database.
		sqlDB.SetMaxOpenConns(1)
	case target.driver == driverSQLite:
		sqlDB.SetMaxOpenConns(sqliteMaxConnections)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, "", err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, target.driver, nil
}

// parseDatabaseURL accepts postgres:// URLs, sqlite:// URLs, file: URIs and bare sqlite paths.
// File-backed sqlite targets get a busy timeout and WAL unless the URL sets its own pragmas.
func parseDatabaseURL(rawURL string) (databaseTarget, error) {
	trimmed := strings.TrimSpace(rawURL)
	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "postgres://") || strings.HasPrefix(lowered, "postgresql://") {
		return databaseTarget{driver: driverPostgres}, nil
	}

	location, rawQuery := trimmed, ""
	switch {
	case strings.HasPrefix(lowered, sqliteSchemePrefix):
		parsed, err := url.Parse(trimmed)
		if err != nil {
			return databaseTarget{}, fmt.Errorf("parse sqlite url: %w", err)
		}
		location = parsed.Host + parsed.Path
		rawQuery = parsed.RawQuery
	case strings.HasPrefix(lowered, sqliteFileURLPrefix):
		location = trimmed[len(sqliteFileURLPrefix):]
		fallthrough
	default:
		if index := strings.IndexByte(location, '?'); index >= 0 {
			location, rawQuery = location[:index], location[index+1:]
		}
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return databaseTarget{}, fmt.Errorf("parse sqlite parameters: %w", err)
	}

	target := databaseTarget{driver: driverSQLite, path: location, query: query}
	switch {
	case location == "" || location == "/":
		target.path = sqliteDefaultFile
	case location == sqliteMemory:
		return target, nil
	}
	if len(query[sqlitePragmaParameter]) == 0 {
		query.Add(sqlitePragmaParameter, fmt.Sprintf("busy_timeout(%d)", sqliteBusyTimeoutMS))
		query.Add(sqlitePragmaParameter, "journal_mode(WAL)")
	}
	return target, nil
}

// prepare creates the parent directory of a file-backed sqlite database.
func (target databaseTarget) prepare() error {
	if target.driver != driverSQLite || target.inMemory() {
		return nil
	}
	directory := filepath.Dir(filepath.Clean(target.path))
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("sqlite directory %s: %w", directory, err)
	}
	return nil
}
