/*
Package storage provides the durable key-value store the SDK persists its
counters and its unsent event queue through.

Three backends implement Store:

  - BoltStore: bbolt file at <dataDir>/feelback.db, single "state" bucket.
    The default.
  - SQLiteStore: modernc.org/sqlite database with one kv table, WAL journal.
  - MemoryStore: process memory only, for tests and ephemeral hosts.

# Keys

	session_count       8-byte big-endian counter, +1 per process start
	last_review_prompt  8-byte big-endian epoch millis of the last shown review prompt
	device_id           uuid string, generated once
	event_queue         JSON array snapshot of unsent events

Counters go through GetInt64, PutInt64 and Increment. Increment runs in a
single transaction on backends that implement Incrementer, so concurrent
callers never lose an update.

# Usage

	store, err := storage.Open("bolt", "./feelback-data")
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := storage.Increment(store, storage.KeySessionCount)
*/
package storage
