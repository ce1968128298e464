package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	noticast "github.com/goliatone/go-noticast"
)

// Dialect names. Postgres migrations sit at the root of a tree and sqlite
// migrations in its sqlite/ subdirectory.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const (
	embeddedDir = "data/sql/migrations"
	sqliteDir   = "sqlite"
)

// Tree is the set of migrations for one dialect.
type Tree struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// RegisterFunc receives each selected tree, usually to pass it on to a
// persistence client's RegisterSQLMigrations.
type RegisterFunc func(ctx context.Context, tree Tree) error

type Option func(*plan)

type plan struct {
	dialects []string
	extra    []Tree
}

// ForDialects limits registration to the named dialects. Every dialect is
// registered when no option narrows it.
func ForDialects(dialects ...string) Option {
	return func(p *plan) {
		for _, dialect := range dialects {
			dialect = strings.TrimSpace(strings.ToLower(dialect))
			if dialect != "" && !slices.Contains(p.dialects, dialect) {
				p.dialects = append(p.dialects, dialect)
			}
		}
	}
}

// WithTrees registers extra trees after the embedded ones, such as site
// specific migrations read from disk.
func WithTrees(trees ...Tree) Option {
	return func(p *plan) {
		for _, tree := range trees {
			if tree.FS == nil || strings.TrimSpace(tree.Dialect) == "" {
				continue
			}
			tree.Dialect = strings.TrimSpace(strings.ToLower(tree.Dialect))
			p.extra = append(p.extra, tree)
		}
	}
}

// Embedded returns the postgres and sqlite trees shipped with the module.
func Embedded() ([]Tree, error) {
	trees, err := Trees(noticast.GetMigrationsFS(), embeddedDir)
	if err != nil {
		return nil, err
	}
	if len(trees) != 2 {
		return nil, fmt.Errorf("migrations: embedded set is missing a dialect, found %d", len(trees))
	}
	return trees, nil
}

// Trees reads dir of root using the embedded layout. Dialects without any
// *.up.sql file are left out; a dir with none at all is an error.
func Trees(root fs.FS, dir string) ([]Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("migrations: filesystem is required")
	}
	dir = strings.Trim(strings.TrimSpace(dir), "/")
	if dir == "" {
		dir = "."
	}
	base, err := fs.Sub(root, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", dir, err)
	}

	sqliteFS, err := fs.Sub(base, sqliteDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: open %s: %w", joinPath(dir, sqliteDir), err)
	}

	var trees []Tree
	for _, candidate := range []Tree{
		{Dialect: DialectPostgres, Path: dir, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(dir, sqliteDir), FS: sqliteFS},
	} {
		matches, err := fs.Glob(candidate.FS, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: scan %s: %w", candidate.Path, err)
		}
		if len(matches) > 0 {
			trees = append(trees, candidate)
		}
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("migrations: no *.up.sql files under %s", dir)
	}
	return trees, nil
}

// Register hands the embedded trees, then any extra trees, to registerFn.
// It returns the trees that were registered.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) ([]Tree, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	p := plan{}
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}

	trees, err := Embedded()
	if err != nil {
		return nil, err
	}
	trees = append(trees, p.extra...)

	var registered []Tree
	for _, tree := range trees {
		if len(p.dialects) > 0 && !slices.Contains(p.dialects, tree.Dialect) {
			continue
		}
		if err := registerFn(ctx, tree); err != nil {
			return registered, fmt.Errorf("migrations: register %s (%s): %w", tree.Dialect, tree.Path, err)
		}
		registered = append(registered, tree)
	}
	return registered, nil
}

func joinPath(base string, name string) string {
	if base == "." {
		return name
	}
	return base + "/" + name
}

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}
