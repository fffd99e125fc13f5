package models

import "github.com/google/uuid"

// assignID fills a missing primary key before insert. IDs are generated here instead of by the
// database so the same models run against Postgres and SQLite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
