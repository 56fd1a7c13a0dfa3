// Package store implements the persistent page cache and fetch accounting.
// Pages are stored in SQLite, one row per URL. Expiry is decided by the
// fetcher: the store returns rows with their fetch time and never deletes
// on read, so the cache subcommand can inspect and purge entries that have
// gone stale.
package store
