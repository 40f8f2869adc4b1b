// Copyright 2026 CodeGuardian Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrCacheMiss is returned when a key is absent from a Store.
var ErrCacheMiss = errors.New("cache miss")

// DiskFileName is the database file created inside the cache directory.
const DiskFileName = "results.db"

// Record is a stored entry of the persistent tier.
type Record struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	TTL       time.Duration
}

// Expired reports whether the record is no longer visible at now.
func (r Record) Expired(now time.Time) bool {
	return r.TTL > 0 && now.Sub(r.CreatedAt) > r.TTL
}

// Store is a persistent cache tier that survives process restarts.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Sweep(ctx context.Context, now time.Time) (int, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS results (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	ttl_ns     INTEGER NOT NULL
)`

// DiskCache is a Store backed by a SQLite database file.
type DiskCache struct {
	db   *sql.DB
	path string
}

var _ Store = (*DiskCache)(nil)

// OpenDiskCache opens (creating if needed) <dir>/results.db.
func OpenDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return openDiskCache(filepath.Join(dir, DiskFileName))
}

func openDiskCache(path string) (*DiskCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// ":memory:" databases are private to one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &DiskCache{db: db, path: path}, nil
}

// Path returns the database location.
func (d *DiskCache) Path() string {
	return d.path
}

// Get retrieves a record. Expiry is left to the caller.
func (d *DiskCache) Get(ctx context.Context, key string) (Record, error) {
	var (
		rec     = Record{Key: key}
		created int64
		ttl     int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT value, created_at, ttl_ns FROM results WHERE key = ?`, key,
	).Scan(&rec.Value, &created, &ttl)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrCacheMiss
	}
	if err != nil {
		return Record{}, fmt.Errorf("read %s: %w", key, err)
	}
	rec.CreatedAt = time.Unix(0, created)
	rec.TTL = time.Duration(ttl)
	return rec, nil
}

// Put inserts or replaces a record.
func (d *DiskCache) Put(ctx context.Context, rec Record) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO results (key, value, created_at, ttl_ns) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		   created_at = excluded.created_at, ttl_ns = excluded.ttl_ns`,
		rec.Key, rec.Value, rec.CreatedAt.UnixNano(), int64(rec.TTL),
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", rec.Key, err)
	}
	return nil
}

// Delete removes a record.
func (d *DiskCache) Delete(ctx context.Context, key string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM results WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Clear removes all records.
func (d *DiskCache) Clear(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM results`); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Sweep deletes records expired at now and returns how many were removed.
func (d *DiskCache) Sweep(ctx context.Context, now time.Time) (int, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM results WHERE ttl_ns > 0 AND ? - created_at > ttl_ns`, now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sweep cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Close closes the database.
func (d *DiskCache) Close() error {
	return d.db.Close()
}
