// Package catalog defines the canonical movie data model and its SQLite
// persistence. All writes are idempotent upserts keyed by deterministic ids
// so duplicate or repeated enrichment runs converge instead of duplicating
// rows. The kv table doubles as the generic key→value-with-expiry store used
// for quota circuit state and the backfill cursor.
package catalog
