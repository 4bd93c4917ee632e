//go:build integration

package postgres

import (
	"database/sql"
	"testing"

	"github.com/phrazzld/drill-api/internal/store/storetest"
	"github.com/phrazzld/drill-api/internal/testdb"
)

func harness(t *testing.T, fn func(t *testing.T, s storetest.Stores)) {
	t.Helper()
	db := testdb.Postgres(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		fn(t, storetest.Stores{
			Mastery: NewPostgresMasteryStore(tx, nil),
			Lessons: NewPostgresLessonStore(tx, nil),
		})
	})
}

func TestPostgresMasteryStore(t *testing.T) {
	storetest.RunMasteryStoreTests(t, harness)
}

func TestPostgresLessonStore(t *testing.T) {
	storetest.RunLessonStoreTests(t, harness)
}
