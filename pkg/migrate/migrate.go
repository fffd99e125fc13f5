package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

// DefaultDir is where new migrations are written relative to the repo root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Dir reads migrations from a directory on disk.
func Dir(path string) fs.FS {
	return os.DirFS(path)
}

// Commands lists what Runner.Run accepts. "version" needs a target.
var Commands = []string{"up", "up-by-one", "down", "redo", "reset", "status", "version"}

// Runner applies goose migrations from a single source against one database.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func NewRunner(db *sql.DB, migrations fs.FS, logg *logger.Logger) (*Runner, error) {
	return newRunner(goose.DialectPostgres, db, migrations, logg)
}

func newRunner(dialect goose.Dialect, db *sql.DB, migrations fs.FS, logg *logger.Logger) (*Runner, error) {
	switch {
	case db == nil:
		return nil, fmt.Errorf("db is required")
	case migrations == nil:
		return nil, fmt.Errorf("migrations source is required")
	case logg == nil:
		return nil, fmt.Errorf("logger is required")
	}
	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Run executes command. target is only read by "version".
func (r *Runner) Run(ctx context.Context, command, target string) error {
	command = strings.ToLower(strings.TrimSpace(command))
	var (
		results []*goose.MigrationResult
		err     error
	)
	switch command {
	case "up":
		results, err = r.provider.Up(ctx)
	case "up-by-one":
		results, err = single(r.provider.UpByOne(ctx))
	case "down":
		results, err = single(r.provider.Down(ctx))
	case "redo":
		results, err = single(r.provider.Down(ctx))
		if err == nil {
			var again []*goose.MigrationResult
			again, err = single(r.provider.UpByOne(ctx))
			results = append(results, again...)
		}
	case "reset":
		results, err = r.provider.DownTo(ctx, 0)
	case "status":
		return r.status(ctx)
	case "version":
		return r.migrateTo(ctx, target)
	default:
		return fmt.Errorf("unsupported goose command %q (want one of %s)", command, strings.Join(Commands, ", "))
	}
	r.report(ctx, results)
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// Version returns the latest applied migration version.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	return r.provider.GetDBVersion(ctx)
}

func (r *Runner) migrateTo(ctx context.Context, raw string) error {
	target, err := ParseVersion(raw)
	if err != nil {
		return err
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	default:
		results, err = r.provider.DownTo(ctx, target)
	}
	r.report(ctx, results)
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

func (r *Runner) status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	for _, s := range statuses {
		fields := map[string]any{"state": string(s.State)}
		if s.Source != nil {
			fields["version"] = s.Source.Version
			fields["file"] = s.Source.Path
		}
		if !s.AppliedAt.IsZero() {
			fields["applied_at"] = s.AppliedAt
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "migration status")
	}
	return nil
}

func (r *Runner) report(ctx context.Context, results []*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"file":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration applied")
	}
}

func single(res *goose.MigrationResult, err error) ([]*goose.MigrationResult, error) {
	if res == nil {
		return nil, err
	}
	return []*goose.MigrationResult{res}, err
}

// ParseVersion validates a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(versionLayout) {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return v, nil
}
