package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createSuppressionTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE suppression_records (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		content_fingerprint TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		date_of_death DATETIME,
		requester_name TEXT NOT NULL,
		requester_email TEXT NOT NULL,
		requester_relationship TEXT NOT NULL DEFAULT '',
		requester_origin TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL,
		verification_token TEXT UNIQUE,
		token_created_at DATETIME,
		verified_at DATETIME,
		suppressed_at DATETIME,
		do_not_republish BOOLEAN NOT NULL DEFAULT 0,
		reviewed_at DATETIME,
		reviewed_by TEXT,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createListingTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE obituary_listings (
		subject_id TEXT PRIMARY KEY,
		content_fingerprint TEXT NOT NULL,
		full_name TEXT NOT NULL,
		date_of_death DATETIME,
		published_at DATETIME NOT NULL,
		suppressed_at DATETIME,
		suppressed_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}
