package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers "sqlite"

	"github.com/AnyUserName/imgopt/internal/stats/migrations"
)

// ErrNotFound is returned by Get for an unknown path.
var ErrNotFound = errors.New("stats record not found")

// Dialect identifies the SQL flavour behind a store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "pgx"
)

// SQLStore is a Store over database/sql. It works with SQLite
// (modernc.org/sqlite, pure Go) and PostgreSQL (pgx stdlib).
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the store and applies migrations.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d := Dialect(driver)
	if d != SQLite && d != Postgres {
		return nil, fmt.Errorf("unsupported stats driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if d == SQLite {
		// One writer; also keeps ":memory:" databases on a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing, already migrated database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// goose keeps its dialect and filesystem in package globals.
var gooseMu sync.Mutex

// Migrate applies the embedded schema for the store's dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dir, gooseDialect := "sqlite", "sqlite3"
	if s.dialect == Postgres {
		dir, gooseDialect = "postgres", "postgres"
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("migrate stats: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Record inserts or updates the row for r.FilePath in one statement.
// The row's attachment_id is set on first insert and kept afterwards.
func (s *SQLStore) Record(ctx context.Context, r Record) error {
	at := r.OptimizedAt
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO optimizer_stats
			(attachment_id, file_path, original_size, optimized_size, saved_bytes, optimized_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_path) DO UPDATE SET
			original_size  = excluded.original_size,
			optimized_size = excluded.optimized_size,
			saved_bytes    = excluded.saved_bytes,
			optimized_at   = excluded.optimized_at
	`), r.AttachmentID, r.FilePath, int64(r.OriginalSize), int64(r.OptimizedSize), int64(r.SavedBytes), at.UTC())
	if err != nil {
		return fmt.Errorf("record stat for %s: %w", r.FilePath, err)
	}
	return nil
}

const selectColumns = `attachment_id, file_path, original_size, optimized_size, saved_bytes, optimized_at`

// Get returns the record for path or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+selectColumns+` FROM optimizer_stats WHERE file_path = ? LIMIT 1`), path)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stat for %s: %w", path, err)
	}
	return r, nil
}

// List returns the most recently optimized records, newest first.
// limit <= 0 returns all rows.
func (s *SQLStore) List(ctx context.Context, limit int) ([]Record, error) {
	q := `SELECT ` + selectColumns + ` FROM optimizer_stats ORDER BY optimized_at DESC, id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stat row: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stat rows: %w", err)
	}
	return out, nil
}

// Summary totals every row.
func (s *SQLStore) Summary(ctx context.Context) (Summary, error) {
	var (
		sum             Summary
		saved, original int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       CAST(COALESCE(SUM(saved_bytes), 0) AS BIGINT),
		       CAST(COALESCE(SUM(original_size), 0) AS BIGINT)
		FROM optimizer_stats`).Scan(&sum.TotalFiles, &saved, &original)
	if err != nil {
		return Summary{}, fmt.Errorf("stats summary: %w", err)
	}
	sum.TotalSaved = uint64(saved)
	sum.TotalOriginal = uint64(original)
	return sum, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		r                        Record
		original, optimized, sav int64
		at                       timeValue
	)
	if err := sc.Scan(&r.AttachmentID, &r.FilePath, &original, &optimized, &sav, &at); err != nil {
		return nil, err
	}
	r.OriginalSize = uint64(original)
	r.OptimizedSize = uint64(optimized)
	r.SavedBytes = uint64(sav)
	r.OptimizedAt = at.t
	return &r, nil
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (s *SQLStore) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// timeValue scans timestamps from drivers that return time.Time and from
// SQLite, which may hand back text for DATETIME columns.
type timeValue struct{ t time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (v *timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		v.t = time.Time{}
		return nil
	case time.Time:
		v.t = x
		return nil
	case int64:
		v.t = time.Unix(x, 0).UTC()
		return nil
	case []byte:
		return v.parse(string(x))
	case string:
		return v.parse(x)
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v.t = t
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
