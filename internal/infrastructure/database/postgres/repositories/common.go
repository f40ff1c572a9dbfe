// Package repositories holds the PostgreSQL implementations of domain
// repositories.  Queries run through database/sql over the pgx stdlib driver
// so the same code serves pooled connections and sqlmock in tests.
package repositories

import (
	"context"
	"database/sql"

	appErrors "github.com/turtacn/molstruct/pkg/errors"
	"github.com/turtacn/molstruct/pkg/types/common"
)

// queryExecutor is satisfied by *sql.DB and *sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func dbError(err error, msg string) error {
	return appErrors.Wrap(err, appErrors.CodeDBQueryError, msg)
}

func moleculeNotFound(id common.ID) error {
	return appErrors.New(appErrors.ErrCodeMoleculeNotFound, "molecule not found").WithDetail(id.String())
}

//Personal.AI order the ending
