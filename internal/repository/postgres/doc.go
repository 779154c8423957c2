// Package postgres implements the service repositories on PostgreSQL via
// database/sql and lib/pq.
//
// sql.ErrNoRows becomes domain.ErrNotFound and unique violations become
// domain.ErrConflict, so services never see driver errors. Schema lives in
// migrations/.
package postgres
