package sqlite

import "database/sql"

type sqliteTx struct {
	repos
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error { return t.tx.Commit() }

func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }
