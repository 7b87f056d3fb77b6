// Package docstore is a SQLite-backed remote document store implementing
// domain.RemoteStore.
//
// Documents are JSON objects addressed by slash-separated paths
// ("users/{uid}"). Fields inside a document are addressed by dot-separated
// paths ("progress.{courseId}.{workoutId}").
//
// # Guarantees
//
//   - Every commit takes the next value of a store-wide logical sequence;
//     a document's revision is the sequence value of its last commit.
//   - AtomicUpdate applies all of its field operations in one commit.
//   - RunTransaction is optimistic: reads record revisions, and commit fails
//     with domain.ErrAborted if any of them moved. It never retries.
//   - Subscriptions receive the current state, then one snapshot per commit,
//     in revision order, on a dedicated goroutine. Unsubscribe returns only
//     after any in-flight callback has finished.
//   - Commits made by other processes sharing the database file are picked up
//     by revision polling.
//
// # Database Configuration
//
//   - WAL mode: concurrent readers across processes
//   - busy_timeout=5000: wait for cross-process write locks
//   - immediate transactions: writers serialize up front
package docstore
