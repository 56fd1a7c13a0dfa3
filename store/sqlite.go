package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/larsks/qthrss/data"

	// tell sql to use sqlite
	_ "modernc.org/sqlite"
)

// DbSqlite is the SQLite page cache. One row per URL; rows are replaced
// in place when a URL is refetched. Expiry is the caller's business: Get
// returns whatever is stored along with its fetch time.
type DbSqlite struct {
	db *sql.DB
}

// NewSqliteDb opens (creating if necessary) a page cache at the given path.
func NewSqliteDb(dbFile string) (*DbSqlite, error) {
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pages (key INTEGER NOT NULL PRIMARY KEY,
				url TEXT NOT NULL,
				status INT,
				content_type TEXT,
				body BLOB,
				fetched_s INT)`)
	if err != nil {
		return nil, fmt.Errorf("Error creating pages table: %v", err)
	}

	return &DbSqlite{db: db}, nil
}

// pageKey hashes a URL into the cache row key.
func pageKey(url string) int64 {
	return int64(xxhash.Sum64String(url))
}

// Get returns the cached page for a URL. The second return is false when
// the URL has never been stored.
func (sdb *DbSqlite) Get(url string) (data.Page, bool, error) {
	var p data.Page
	var fetchedS int64

	row := sdb.db.QueryRow(`SELECT url, status, content_type, body, fetched_s
			FROM pages WHERE key=? AND url=?`, pageKey(url), url)

	err := row.Scan(&p.URL, &p.Status, &p.ContentType, &p.Body, &fetchedS)
	switch {
	case err == sql.ErrNoRows:
		return data.Page{}, false, nil
	case err != nil:
		return data.Page{}, false, fmt.Errorf("Error scanning page row: %v", err)
	}

	p.FetchedAt = time.Unix(fetchedS, 0)
	return p, true, nil
}

// Put stores a page, replacing any previous row for the same URL.
func (sdb *DbSqlite) Put(p data.Page) error {
	_, err := sdb.db.Exec(`INSERT INTO pages(key, url, status, content_type, body, fetched_s)
			VALUES(?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
			url = ?2,
			status = ?3,
			content_type = ?4,
			body = ?5,
			fetched_s = ?6`,
		pageKey(p.URL), p.URL, p.Status, p.ContentType, p.Body, p.FetchedAt.Unix())
	if err != nil {
		return fmt.Errorf("Error storing page: %v", err)
	}

	return nil
}

// Info reports the cache row count and the set of cached URLs.
func (sdb *DbSqlite) Info() (data.CacheInfo, error) {
	// an empty cache must serve "urls": [], not null
	info := data.CacheInfo{URLs: []string{}}

	err := sdb.db.QueryRow(`SELECT COUNT(*) FROM pages`).Scan(&info.Count)
	if err != nil {
		return info, fmt.Errorf("Error counting pages: %v", err)
	}

	rows, err := sdb.db.Query(`SELECT url FROM pages ORDER BY url`)
	if err != nil {
		return info, fmt.Errorf("Error querying page urls: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return info, fmt.Errorf("Error scanning page url: %v", err)
		}
		info.URLs = append(info.URLs, url)
	}

	return info, rows.Err()
}

// Purge deletes rows fetched more than maxAge ago and returns how many
// were removed.
func (sdb *DbSqlite) Purge(maxAge time.Duration, now time.Time) (int64, error) {
	cutoff := now.Add(-maxAge).Unix()
	res, err := sdb.db.Exec(`DELETE FROM pages WHERE fetched_s < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("Error purging pages: %v", err)
	}

	return res.RowsAffected()
}

// Reset permanently wipes the cache.
func (sdb *DbSqlite) Reset() error {
	_, err := sdb.db.Exec(`DELETE FROM pages`)
	if err != nil {
		return fmt.Errorf("Error resetting pages: %v", err)
	}

	return nil
}

// Close the underlying database.
func (sdb *DbSqlite) Close() error {
	return sdb.db.Close()
}
