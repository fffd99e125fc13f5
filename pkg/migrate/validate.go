package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

const (
	markerUp             = "-- +goose Up"
	markerDown           = "-- +goose Down"
	markerStatementBegin = "-- +goose StatementBegin"
	markerStatementEnd   = "-- +goose StatementEnd"
)

// Validate checks every goose SQL file at the root of migrations: filename
// shape, unique versions, an Up section ahead of the Down section, and
// balanced statement blocks.
func Validate(migrations fs.FS) error {
	if migrations == nil {
		return fmt.Errorf("migrations source is required")
	}
	names, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	versions := map[string]string{}
	for _, name := range names {
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := versions[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read file %q: %w", name, err)
		}
		if err := validateBody(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

// ValidateDir is Validate over a directory on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return Validate(Dir(dir))
}

func validateBody(txt string) error {
	up := strings.Index(txt, markerUp)
	down := strings.Index(txt, markerDown)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", markerUp)
	case down < 0:
		return fmt.Errorf("missing %q", markerDown)
	case down < up:
		return fmt.Errorf("%q must come before %q", markerUp, markerDown)
	}

	open := 0
	for _, line := range strings.Split(txt, "\n") {
		switch strings.TrimSpace(line) {
		case markerStatementBegin:
			if open > 0 {
				return fmt.Errorf("nested %q", markerStatementBegin)
			}
			open++
		case markerStatementEnd:
			if open == 0 {
				return fmt.Errorf("%q without matching begin", markerStatementEnd)
			}
			open--
		}
	}
	if open != 0 {
		return fmt.Errorf("unterminated %q", markerStatementBegin)
	}
	return nil
}
