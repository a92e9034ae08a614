// Copyright 2023-2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"database/sql"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/penny-vault/pv-screener/common"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

// EntrySource records how a cache entry came to exist
type EntrySource string

const (
	SourceProvider EntrySource = "provider"
	SourceMerged   EntrySource = "merged"
)

// Entry is cache index metadata for one stored price series. The stored
// period exactly covers the entry's key range; overlapping entries for the
// same instrument may coexist.
type Entry struct {
	ID         int64
	Instrument Instrument
	Period     *Interval
	FetchedAt  time.Time
	Source     EntrySource
}

// Stale reports whether the entry is older than ttl
func (entry *Entry) Stale(ttl time.Duration, now time.Time) bool {
	return now.Sub(entry.FetchedAt) > ttl
}

// Store is the persistent price cache: a SQLite index mapping
// (instrument, begin, end) to an lz4-compressed series blob, fronted by an
// in-memory LRU of decoded series. Concurrent readers are always allowed;
// SQLite in WAL mode serializes writers.
type Store struct {
	db  *sql.DB
	hot *lru.Cache
	tz  *time.Location
}

// OpenStore opens (or creates) the cache database and runs migrations
func OpenStore(dbPath string, hotSize int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for concurrent reads while a fetch persists new entries
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS price_cache (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		instrument TEXT NOT NULL,
		begin_date INTEGER NOT NULL,
		end_date   INTEGER NOT NULL,
		fetched_at INTEGER NOT NULL,
		source     TEXT NOT NULL,
		payload    BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_price_cache_lookup
		ON price_cache(instrument, begin_date, end_date)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}

	if hotSize <= 0 {
		hotSize = 256
	}
	hot, err := lru.New(hotSize)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("Path", dbPath).Msg("price cache opened")

	return &Store{db: db, hot: hot, tz: common.GetTimezone()}, nil
}

// Overlapping returns the non-stale entries for instrument whose stored
// period overlaps the requested interval, ordered by period begin
func (store *Store) Overlapping(instrument Instrument, interval *Interval, ttl time.Duration) ([]*Entry, error) {
	if err := interval.Valid(); err != nil {
		return nil, ErrInvalidTimeRange
	}

	cutoff := time.Now().Add(-ttl).Unix()
	rows, err := store.db.Query(`SELECT id, instrument, begin_date, end_date, fetched_at, source
		FROM price_cache
		WHERE instrument = ? AND begin_date < ? AND end_date > ? AND fetched_at > ?
		ORDER BY begin_date`,
		string(instrument), interval.End.Unix(), interval.Begin.Unix(), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		var (
			entry      Entry
			inst       string
			begin, end int64
			fetchedAt  int64
			source     string
		)
		if err := rows.Scan(&entry.ID, &inst, &begin, &end, &fetchedAt, &source); err != nil {
			return nil, err
		}
		entry.Instrument = Instrument(inst)
		entry.Period = &Interval{
			Begin: time.Unix(begin, 0).In(store.tz),
			End:   time.Unix(end, 0).In(store.tz),
		}
		entry.FetchedAt = time.Unix(fetchedAt, 0)
		entry.Source = EntrySource(source)
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Missing returns the fresh covering entries plus the ordered minimal
// sub-ranges of interval not covered by any of them
func (store *Store) Missing(instrument Instrument, interval *Interval, ttl time.Duration) ([]*Entry, []*Interval, error) {
	entries, err := store.Overlapping(instrument, interval, ttl)
	if err != nil {
		return nil, nil, err
	}

	covered := make([]*Interval, 0, len(entries))
	for _, entry := range entries {
		covered = append(covered, entry.Period)
	}

	return entries, interval.Missing(covered), nil
}

// Load reads and decodes the series blob for entry. A blob that fails to
// deserialize yields ErrCacheCorrupt; callers evict and refetch once.
func (store *Store) Load(entry *Entry) (*Series, error) {
	if cached, ok := store.hot.Get(entry.ID); ok {
		return cached.(*Series), nil
	}

	var payload []byte
	err := store.db.QueryRow(`SELECT payload FROM price_cache WHERE id = ?`, entry.ID).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCacheCorrupt
		}
		return nil, err
	}

	series, err := decodeSeries(payload, store.tz)
	if err != nil {
		return nil, err
	}

	store.hot.Add(entry.ID, series)
	return series, nil
}

// Save persists a newly fetched series as a cache entry covering exactly
// interval, stamped with the current time
func (store *Store) Save(instrument Instrument, interval *Interval, series *Series, source EntrySource) error {
	if err := interval.Valid(); err != nil {
		return ErrInvalidTimeRange
	}

	payload, err := encodeSeries(series)
	if err != nil {
		return err
	}

	res, err := store.db.Exec(`INSERT INTO price_cache
		(instrument, begin_date, end_date, fetched_at, source, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(instrument), interval.Begin.Unix(), interval.End.Unix(),
		time.Now().Unix(), string(source), payload)
	if err != nil {
		return err
	}

	if id, err := res.LastInsertId(); err == nil {
		store.hot.Add(id, series.Copy())
	}

	return nil
}

// Evict removes a cache entry, e.g. after a corrupt payload
func (store *Store) Evict(entry *Entry) error {
	store.hot.Remove(entry.ID)
	_, err := store.db.Exec(`DELETE FROM price_cache WHERE id = ?`, entry.ID)
	return err
}

// Purge deletes entries fetched before the cutoff and returns how many rows
// were removed
func (store *Store) Purge(olderThan time.Time) (int64, error) {
	res, err := store.db.Exec(`DELETE FROM price_cache WHERE fetched_at < ?`, olderThan.Unix())
	if err != nil {
		return 0, err
	}
	store.hot.Purge()
	return res.RowsAffected()
}

// Count returns the number of cache entries in the index
func (store *Store) Count() (int64, error) {
	var count int64
	err := store.db.QueryRow(`SELECT COUNT(*) FROM price_cache`).Scan(&count)
	return count, err
}

func (store *Store) Close() error {
	return store.db.Close()
}
