// Package testdb sets up PostgreSQL for integration tests.
//
// Tests that need a database call Open, which skips the test when
// DAYREPORT_TEST_DATABASE_URL is unset (and fails instead when running in
// CI), then run their statements inside WithTx so every change is rolled
// back when the test ends:
//
//	func TestQuotaStore(t *testing.T) {
//	    db := testdb.Open(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        store := postgres.NewQuotaStore(tx, nil)
//	        // ...
//	    })
//	}
package testdb
