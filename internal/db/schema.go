package db

import "database/sql"

// migrations is an additive-only, ordered list of schema changes. A restart
// replays whichever migrations have not yet been recorded in
// schema_migrations — existing download_status values are never touched by
// a migration (§6).
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,

	// 1: sources
	`CREATE TABLE IF NOT EXISTS sources (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		kind                 TEXT NOT NULL,
		upstream_key         TEXT NOT NULL,
		name                 TEXT NOT NULL,
		path                 TEXT NOT NULL,
		enabled              INTEGER NOT NULL DEFAULT 1,
		latest_seen_at       TEXT,
		download_all_seasons INTEGER NOT NULL DEFAULT 0,
		selected_seasons     TEXT NOT NULL DEFAULT '[]',
		last_scan_at         TEXT,
		created_at           TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE(kind, upstream_key)
	)`,

	// 2: videos (Item); 3: its source_id index
	`CREATE TABLE IF NOT EXISTS videos (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id        INTEGER NOT NULL REFERENCES sources(id),
		upstream_id      TEXT NOT NULL,
		name             TEXT NOT NULL,
		cover            TEXT NOT NULL DEFAULT '',
		uploader_id      TEXT NOT NULL DEFAULT '',
		uploader_name    TEXT NOT NULL DEFAULT '',
		pubtime          TEXT,
		favtime          TEXT,
		season_number    INTEGER NOT NULL DEFAULT 0,
		episode_number   INTEGER NOT NULL DEFAULT 0,
		valid            INTEGER NOT NULL DEFAULT 1,
		download_status  INTEGER NOT NULL DEFAULT 0,
		path             TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL DEFAULT (datetime('now')),
		UNIQUE(source_id, upstream_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_source ON videos(source_id)`,

	// 4: pages; 5: its video_id index
	`CREATE TABLE IF NOT EXISTS pages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id        INTEGER NOT NULL REFERENCES videos(id),
		pid             INTEGER NOT NULL,
		name            TEXT NOT NULL DEFAULT '',
		cid             TEXT NOT NULL DEFAULT '',
		duration_ms     INTEGER NOT NULL DEFAULT 0,
		width           INTEGER NOT NULL DEFAULT 0,
		height          INTEGER NOT NULL DEFAULT 0,
		download_status INTEGER NOT NULL DEFAULT 0,
		path            TEXT NOT NULL DEFAULT '',
		UNIQUE(video_id, pid)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pages_video ON pages(video_id)`,

	// 6: task_queue; 7: its status index
	`CREATE TABLE IF NOT EXISTS task_queue (
		id           TEXT PRIMARY KEY,
		task_type    TEXT NOT NULL,
		task_data    TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'Pending',
		retry_count  INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_task_queue_status ON task_queue(status, created_at)`,

	// 8: config_items; 9: config_changes
	`CREATE TABLE IF NOT EXISTS config_items (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	`CREATE TABLE IF NOT EXISTS config_changes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		key        TEXT NOT NULL,
		old_value  TEXT,
		new_value  TEXT NOT NULL,
		changed_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
}

func migrate(sqlDB *sql.DB) error {
	if _, err := sqlDB.Exec(migrations[0]); err != nil {
		return err
	}
	var maxVersion sql.NullInt64
	if err := sqlDB.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&maxVersion); err != nil {
		return err
	}
	for i := 1; i < len(migrations); i++ {
		if int64(i) <= maxVersion.Int64 {
			continue // already applied in a prior run; never re-run or roll back
		}
		if _, err := sqlDB.Exec(migrations[i]); err != nil {
			return err
		}
		if _, err := sqlDB.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, i); err != nil {
			return err
		}
	}
	return nil
}
