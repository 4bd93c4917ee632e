// Package sqlite provides SQLite implementations of the storage interfaces
// defined in the internal/store package, built on sqlx and go-sqlite3.
//
// The stores expect a pool opened by database.Open: a single connection with
// foreign keys enabled and immediate transactions, so a transaction's first
// read already holds the write lock.
package sqlite
