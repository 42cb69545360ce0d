package pkgdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the persistent record described by spec.md §4.3. It owns a
// single *sql.DB opened in WAL mode and applies schema migrations on Migrate,
// grounded on the teacher's SQLiteStore.
type Store struct {
	db   *sql.DB
	path string
}

type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("pkgdb: database path is required")
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 16
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 4
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	s := &Store{path: cfg.Path}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("pkgdb: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pkgdb: ping: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pkgdb: enable foreign keys: %w", err)
	}
	s.db = db
	return s, nil
}

// Migrate applies every pending embedded migration.
func (s *Store) Migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("pkgdb: migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("pkgdb: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("pkgdb: migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pkgdb: migrate up: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// HealthCheck probes database integrity (SPEC_FULL.md "Doctor" §
// integrity probe).
func (s *Store) HealthCheck(ctx context.Context) error {
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("pkgdb: integrity check query: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("pkgdb: integrity check failed: %s", result)
	}
	return nil
}

func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// InsertPackage atomically writes a package row plus its files and
// dependency edges (spec.md §4.3 "insert-package").
func (s *Store) InsertPackage(ctx context.Context, tx *sql.Tx, b InstallBundle) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO packages (name, version, release, architecture, description, license, upstream_url, maintainer, install_timestamp, install_size, archive_hash, pre_remove_script)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.Package.Name, b.Package.Version, b.Package.Release, b.Package.Architecture,
		b.Package.Description, b.Package.License, b.Package.UpstreamURL, b.Package.Maintainer,
		b.Package.InstallTimestamp.Unix(), b.Package.InstallSize, b.Package.ArchiveHash, b.Package.PreRemoveScript)
	if err != nil {
		return fmt.Errorf("pkgdb: insert package %s: %w", b.Package.Name, err)
	}
	for _, f := range b.Files {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO files (package_name, path, kind, mode, size, hash, is_config)
			VALUES (?,?,?,?,?,?,?)`,
			f.PackageName, f.Path, string(f.Kind), f.Mode, f.Size, f.Hash, boolToInt(f.IsConfig)); err != nil {
			return fmt.Errorf("pkgdb: insert file %s: %w", f.Path, err)
		}
	}
	for _, d := range b.Dependencies {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dependencies (package_name, kind, dep_name, operator, version)
			VALUES (?,?,?,?,?)`,
			d.PackageName, string(d.Kind), d.DepName, d.Operator, d.Version); err != nil {
			return fmt.Errorf("pkgdb: insert dependency %s->%s: %w", d.PackageName, d.DepName, err)
		}
	}
	return nil
}

// RemovePackage deletes a package row; ON DELETE CASCADE removes its files
// and dependency edges.
func (s *Store) RemovePackage(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM packages WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("pkgdb: remove package %s: %w", name, err)
	}
	return nil
}

func (s *Store) LookupByName(ctx context.Context, name string) (*Package, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, version, release, architecture, description, license, upstream_url, maintainer, install_timestamp, install_size, archive_hash, pre_remove_script
		FROM packages WHERE name = ?`, name)
	return scanPackage(row)
}

func scanPackage(row *sql.Row) (*Package, error) {
	var p Package
	var ts int64
	err := row.Scan(&p.Name, &p.Version, &p.Release, &p.Architecture, &p.Description,
		&p.License, &p.UpstreamURL, &p.Maintainer, &ts, &p.InstallSize, &p.ArchiveHash, &p.PreRemoveScript)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pkgdb: scan package: %w", err)
	}
	p.InstallTimestamp = time.Unix(ts, 0).UTC()
	return &p, nil
}

// OwnerOfPath returns the package name currently owning path, or "" if
// untracked (spec.md §4.3 "owner-of-path").
func (s *Store) OwnerOfPath(ctx context.Context, path string) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT package_name FROM files WHERE path = ? LIMIT 1`, path).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("pkgdb: owner of %s: %w", path, err)
	}
	return owner, nil
}

func (s *Store) FilesOf(ctx context.Context, name string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT package_name, path, kind, mode, size, hash, is_config FROM files WHERE package_name = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("pkgdb: files of %s: %w", name, err)
	}
	defer rows.Close()
	var out []File
	for rows.Next() {
		var f File
		var kind string
		var isConfig int
		if err := rows.Scan(&f.PackageName, &f.Path, &kind, &f.Mode, &f.Size, &f.Hash, &isConfig); err != nil {
			return nil, err
		}
		f.Kind = FileKind(kind)
		f.IsConfig = isConfig != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

// EnumerateDependents returns every installed package that declares a
// dependency of the given kind(s) on name (reverse index; spec.md §4.3
// "enumerate-dependents (forward and reverse)"). An empty kinds list
// matches all kinds.
func (s *Store) EnumerateDependents(ctx context.Context, name string, kinds ...DependencyKind) ([]string, error) {
	query := `SELECT DISTINCT package_name FROM dependencies WHERE dep_name = ?`
	args := []interface{}{name}
	if len(kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pkgdb: dependents of %s: %w", name, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DependenciesOf returns the forward dependency edges declared by an
// installed package.
func (s *Store) DependenciesOf(ctx context.Context, name string, kinds ...DependencyKind) ([]Dependency, error) {
	query := `SELECT package_name, kind, dep_name, operator, version FROM dependencies WHERE package_name = ?`
	args := []interface{}{name}
	if len(kinds) > 0 {
		query += ` AND kind IN (` + placeholders(len(kinds)) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pkgdb: dependencies of %s: %w", name, err)
	}
	defer rows.Close()
	var out []Dependency
	for rows.Next() {
		var d Dependency
		var kind string
		if err := rows.Scan(&d.PackageName, &kind, &d.DepName, &d.Operator, &d.Version); err != nil {
			return nil, err
		}
		d.Kind = DependencyKind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) ListPackages(ctx context.Context) ([]*Package, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, version, release, architecture, description, license, upstream_url, maintainer, install_timestamp, install_size, archive_hash
		FROM packages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("pkgdb: list packages: %w", err)
	}
	defer rows.Close()
	var out []*Package
	for rows.Next() {
		var p Package
		var ts int64
		if err := rows.Scan(&p.Name, &p.Version, &p.Release, &p.Architecture, &p.Description,
			&p.License, &p.UpstreamURL, &p.Maintainer, &ts, &p.InstallSize, &p.ArchiveHash); err != nil {
			return nil, err
		}
		p.InstallTimestamp = time.Unix(ts, 0).UTC()
		out = append(out, &p)
	}
	return out, rows.Err()
}

// MarkFileAsShadow records a file-ownership overlap (spec.md §4.3
// "mark-file-as-shadow").
func (s *Store) MarkFileAsShadow(ctx context.Context, tx *sql.Tx, sh Shadow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO shadows (path, owning_package, overwriting_package) VALUES (?,?,?)
		ON CONFLICT(path) DO UPDATE SET owning_package=excluded.owning_package, overwriting_package=excluded.overwriting_package`,
		sh.Path, sh.OwningPackage, sh.OverwritingPackage)
	if err != nil {
		return fmt.Errorf("pkgdb: mark shadow %s: %w", sh.Path, err)
	}
	return nil
}

func (s *Store) ShadowOf(ctx context.Context, path string) (*Shadow, error) {
	var sh Shadow
	err := s.db.QueryRowContext(ctx, `SELECT path, owning_package, overwriting_package FROM shadows WHERE path = ?`, path).
		Scan(&sh.Path, &sh.OwningPackage, &sh.OverwritingPackage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pkgdb: shadow of %s: %w", path, err)
	}
	return &sh, nil
}

func (s *Store) ShadowsOwnedBy(ctx context.Context, owner string) ([]Shadow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, owning_package, overwriting_package FROM shadows WHERE owning_package = ?`, owner)
	if err != nil {
		return nil, fmt.Errorf("pkgdb: shadows owned by %s: %w", owner, err)
	}
	defer rows.Close()
	var out []Shadow
	for rows.Next() {
		var sh Shadow
		if err := rows.Scan(&sh.Path, &sh.OwningPackage, &sh.OverwritingPackage); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *Store) ShadowsOverwrittenBy(ctx context.Context, overwriter string) ([]Shadow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, owning_package, overwriting_package FROM shadows WHERE overwriting_package = ?`, overwriter)
	if err != nil {
		return nil, fmt.Errorf("pkgdb: shadows overwritten by %s: %w", overwriter, err)
	}
	defer rows.Close()
	var out []Shadow
	for rows.Next() {
		var sh Shadow
		if err := rows.Scan(&sh.Path, &sh.OwningPackage, &sh.OverwritingPackage); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *Store) DeleteShadow(ctx context.Context, tx *sql.Tx, path string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM shadows WHERE path = ?`, path)
	return err
}

func (s *Store) AllShadows(ctx context.Context) ([]Shadow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, owning_package, overwriting_package FROM shadows`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Shadow
	for rows.Next() {
		var sh Shadow
		if err := rows.Scan(&sh.Path, &sh.OwningPackage, &sh.OverwritingPackage); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// RecordTransactionPending writes the crash marker for an in-flight
// install/upgrade/remove (spec.md §4.3 "record-transaction-pending").
func (s *Store) RecordTransactionPending(ctx context.Context, tx *sql.Tx, t Transaction) error {
	t.Status = TxPending
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, timestamp, kind, package_name, old_version, new_version, status, backup_path)
		VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.Timestamp.Unix(), string(t.Kind), t.PackageName, t.OldVersion, t.NewVersion, string(t.Status), t.BackupPath)
	if err != nil {
		return fmt.Errorf("pkgdb: record pending transaction %s: %w", t.ID, err)
	}
	return nil
}

// MarkTransactionCompleted marks the commit record (spec.md §3 "A
// completed row is the commit record").
func (s *Store) MarkTransactionCompleted(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE transactions SET status = ? WHERE id = ?`, string(TxCompleted), id)
	return err
}

// MarkTransactionRolledBack marks a journal entry as rolled back, used both
// by the installer's own rollback path and by crash recovery.
func (s *Store) MarkTransactionRolledBack(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE transactions SET status = ? WHERE id = ?`, string(TxRolledBack), id)
	return err
}

// ListIncompleteTransactions returns every pending journal row (spec.md
// §4.3 "list-incomplete-transactions"; consulted at startup for crash
// recovery per §4.11).
func (s *Store) ListIncompleteTransactions(ctx context.Context) ([]Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, kind, package_name, old_version, new_version, status, backup_path
		FROM transactions WHERE status = ?`, string(TxPending))
	if err != nil {
		return nil, fmt.Errorf("pkgdb: list incomplete transactions: %w", err)
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		var ts int64
		var kind, status string
		if err := rows.Scan(&t.ID, &ts, &kind, &t.PackageName, &t.OldVersion, &t.NewVersion, &status, &t.BackupPath); err != nil {
			return nil, err
		}
		t.Timestamp = time.Unix(ts, 0).UTC()
		t.Kind = TransactionKind(kind)
		t.Status = TransactionStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Assume writes or updates an assumed-package record (spec.md §4.11
// "Assume/unassume... idempotent"). It runs directly on the database,
// outside any transaction.
func (s *Store) Assume(ctx context.Context, name, ver string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assumed (name, version) VALUES (?,?)
		ON CONFLICT(name) DO UPDATE SET version = excluded.version`, name, ver)
	return err
}

func (s *Store) Unassume(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assumed WHERE name = ?`, name)
	return err
}

func (s *Store) LookupAssumed(ctx context.Context, name string) (*Assumed, error) {
	var a Assumed
	err := s.db.QueryRowContext(ctx, `SELECT name, version FROM assumed WHERE name = ?`, name).Scan(&a.Name, &a.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}
