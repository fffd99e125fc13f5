package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostic flattens an error chain into log-friendly fields. Postgres
// errors from either pgx or lib/pq contribute their SQLSTATE and constraint.
type Diagnostic struct {
	Message    string
	Code       Code
	Chain      []string
	PGCode     string
	Constraint string
	Table      string
	Detail     string
}

func Diagnose(err error) Diagnostic {
	if err == nil {
		return Diagnostic{}
	}
	d := Diagnostic{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		d.PGCode, d.Constraint, d.Table, d.Detail = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail
	case stdErrors.As(err, &pqErr):
		d.PGCode, d.Constraint, d.Table, d.Detail = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail
	}
	return d
}

// Fields renders the diagnostic as structured log fields.
func (d Diagnostic) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.PGCode != "" {
		fields["pg_code"] = d.PGCode
		fields["pg_constraint"] = d.Constraint
		fields["pg_table"] = d.Table
		fields["pg_detail"] = d.Detail
	}
	return fields
}
