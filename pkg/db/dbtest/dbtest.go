// Package dbtest opens in-memory SQLite databases carrying the same tables
// as the postgres migrations, for repository and service tests.
package dbtest

import (
	"strings"
	"testing"

	"github.com/smallbiznis/licensehub/pkg/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE teams (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE customers (
		id INTEGER PRIMARY KEY,
		team_id INTEGER NOT NULL,
		email TEXT,
		full_name TEXT,
		username TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY,
		team_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		url TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE releases (
		id INTEGER PRIMARY KEY,
		team_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		version TEXT NOT NULL,
		latest BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		UNIQUE (product_id, version)
	)`,
	`CREATE TABLE licenses (
		id INTEGER PRIMARY KEY,
		team_id INTEGER NOT NULL,
		license_key TEXT NOT NULL,
		license_key_lookup TEXT NOT NULL,
		ip_limit INTEGER,
		seats INTEGER,
		expiration_type TEXT NOT NULL,
		expiration_start TEXT NOT NULL,
		expiration_date DATETIME,
		expiration_days INTEGER,
		suspended BOOLEAN NOT NULL DEFAULT FALSE,
		activated_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (team_id, license_key_lookup)
	)`,
	`CREATE TABLE license_customers (
		license_id INTEGER NOT NULL,
		customer_id INTEGER NOT NULL,
		team_id INTEGER NOT NULL,
		PRIMARY KEY (license_id, customer_id)
	)`,
	`CREATE TABLE license_products (
		license_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		team_id INTEGER NOT NULL,
		PRIMARY KEY (license_id, product_id)
	)`,
	`CREATE TABLE metadata (
		id INTEGER PRIMARY KEY,
		team_id INTEGER NOT NULL,
		owner_type TEXT NOT NULL,
		owner_id INTEGER NOT NULL,
		meta_key TEXT NOT NULL,
		meta_value TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE returned_fields (
		team_id INTEGER PRIMARY KEY,
		license_ip_limit BOOLEAN NOT NULL DEFAULT FALSE,
		license_seats BOOLEAN NOT NULL DEFAULT FALSE,
		license_expiration_type BOOLEAN NOT NULL DEFAULT FALSE,
		license_expiration_start BOOLEAN NOT NULL DEFAULT FALSE,
		license_expiration_date BOOLEAN NOT NULL DEFAULT FALSE,
		license_expiration_days BOOLEAN NOT NULL DEFAULT FALSE,
		license_metadata_keys TEXT NOT NULL DEFAULT '{}',
		customer_email BOOLEAN NOT NULL DEFAULT FALSE,
		customer_full_name BOOLEAN NOT NULL DEFAULT FALSE,
		customer_username BOOLEAN NOT NULL DEFAULT FALSE,
		customer_metadata_keys TEXT NOT NULL DEFAULT '{}',
		product_name BOOLEAN NOT NULL DEFAULT FALSE,
		product_url BOOLEAN NOT NULL DEFAULT FALSE,
		product_latest_release BOOLEAN NOT NULL DEFAULT FALSE,
		product_metadata_keys TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE api_keys (
		id INTEGER PRIMARY KEY,
		team_id INTEGER NOT NULL,
		key_id TEXT NOT NULL,
		name TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '{}',
		key_hash TEXT NOT NULL UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_used_at DATETIME,
		revoked_at DATETIME,
		UNIQUE (team_id, key_id)
	)`,
	`CREATE TABLE audit_logs (
		id INTEGER PRIMARY KEY,
		team_id INTEGER,
		actor_type TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		ip_address TEXT,
		user_agent TEXT,
		created_at DATETIME NOT NULL
	)`,
}

// New returns a fresh database named after the running test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.NewTest(name)
	require.NoError(t, err)

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}
