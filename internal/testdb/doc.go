// Package testdb provides database fixtures for tests.
//
// SQLite returns a fresh, migrated in-memory database per test and needs no
// external services. Postgres connects to the database named by
// DRILL_TEST_DATABASE_URL and skips the test when the variable is unset.
//
// WithTx runs a test body inside a transaction that is always rolled back, so
// tests sharing one Postgres database can run in parallel:
//
//	func TestSomething(t *testing.T) {
//		t.Parallel()
//		db := testdb.Postgres(t)
//		testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//			s := postgres.NewPostgresMasteryStore(tx, nil)
//			// ...
//		})
//	}
package testdb
