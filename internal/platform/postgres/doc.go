// Package postgres provides PostgreSQL implementations of the storage
// interfaces defined in the internal/store package. Stores accept a
// store.DBTX so the same code runs on a pool or inside a transaction.
package postgres
