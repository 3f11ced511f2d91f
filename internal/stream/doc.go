// Package stream consumes a replayable command log through a persisted cursor.
//
// A Pipeline reads entries from a Store starting at its cursor, maps each
// entry to a typed item, reduces the batch to a delta, hands the delta to a
// Committer and only then persists the advanced cursor. A crash between the
// commit and the cursor write replays the batch on the next start, so
// committers must be idempotent.
//
// The first batch after start is read without blocking and committed as a
// cold start; later reads wait up to the block window for new entries.
package stream
