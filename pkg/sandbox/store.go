package sandbox

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nimburion/providerdesk/pkg/migrate"
)

// ErrNotFound is returned for a missing record or media file.
var ErrNotFound = errors.New("not found")

// Record is a stored entity. "id" and "created_at" are owned by the store.
type Record map[string]any

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store persists sandbox records in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenDB opens the SQLite database at dsn without touching its schema. An
// empty dsn means ":memory:".
func OpenDB(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return db, nil
}

// NewMigrator returns the schema migrator for a database opened with
// OpenDB.
func NewMigrator(db *sql.DB) (*migrate.Manager, error) {
	return migrate.NewManager(db, migrationFiles, "migrations")
}

// Open opens (creating if needed) the database at dsn and applies pending
// migrations. Use ":memory:" for a throwaway store.
func Open(dsn string) (*Store, error) {
	db, err := OpenDB(dsn)
	if err != nil {
		return nil, err
	}
	m, err := NewMigrator(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := m.Up(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SchemaStatus reports the applied and pending schema migrations.
func (s *Store) SchemaStatus(ctx context.Context) (*migrate.Status, error) {
	m, err := NewMigrator(s.db)
	if err != nil {
		return nil, err
	}
	return m.Status(ctx)
}

// List returns the records of resource whose fields equal every filter
// value, oldest first.
func (s *Store) List(ctx context.Context, resource string, filters map[string]string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, body, created_at FROM records WHERE resource = ? ORDER BY id`, resource)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", resource, err)
		}
		if matches(rec, filters) {
			out = append(out, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", resource, err)
	}
	return out, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, resource, id string) (Record, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, body, created_at FROM records WHERE resource = ? AND id = ?`, resource, n)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", resource, id, err)
	}
	return rec, nil
}

// Create stores fields as a new record of resource.
func (s *Store) Create(ctx context.Context, resource string, fields Record) (Record, error) {
	body := clean(fields)
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", resource, err)
	}
	createdAt := s.now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (resource, body, created_at) VALUES (?, ?, ?)`, resource, string(raw), createdAt)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", resource, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", resource, err)
	}
	body["id"] = id
	body["created_at"] = createdAt
	return body, nil
}

// Update merges fields into record id. A truthy "<field>_remove" clears
// field.
func (s *Store) Update(ctx context.Context, resource, id string, fields Record) (Record, error) {
	current, err := s.Get(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	for k, v := range fields {
		current[k] = v
	}
	body := clean(current)
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", resource, err)
	}
	n, _ := parseID(id)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE records SET body = ? WHERE resource = ? AND id = ?`, string(raw), resource, n); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", resource, id, err)
	}
	body["id"] = current["id"]
	body["created_at"] = current["created_at"]
	return body, nil
}

// Delete removes record id.
func (s *Store) Delete(ctx context.Context, resource, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE resource = ? AND id = ?`, resource, n)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", resource, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", resource, id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Media is an uploaded file.
type Media struct {
	ID          string
	Name        string
	ContentType string
	Data        []byte
}

// SaveMedia stores an upload and returns its generated id.
func (s *Store) SaveMedia(ctx context.Context, name, contentType string, data []byte) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media (id, name, content_type, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, name, contentType, data, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("save media %s: %w", name, err)
	}
	return id, nil
}

// Media returns an upload by id.
func (s *Store) Media(ctx context.Context, id string) (Media, error) {
	m := Media{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, content_type, data FROM media WHERE id = ?`, id).Scan(&m.Name, &m.ContentType, &m.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return Media{}, ErrNotFound
	}
	if err != nil {
		return Media{}, fmt.Errorf("get media %s: %w", id, err)
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		id        int64
		body      string
		createdAt string
	)
	if err := row.Scan(&id, &body, &createdAt); err != nil {
		return nil, err
	}
	rec := Record{}
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		return nil, fmt.Errorf("decode record %d: %w", id, err)
	}
	rec["id"] = id
	rec["created_at"] = createdAt
	return rec, nil
}

// clean drops store-owned keys and applies "<field>_remove" flags.
func clean(fields Record) Record {
	out := make(Record, len(fields))
	var removals []string
	for k, v := range fields {
		if k == "id" || k == "created_at" {
			continue
		}
		if field, ok := strings.CutSuffix(k, "_remove"); ok && field != "" {
			if truthy(v) {
				removals = append(removals, field)
			}
			continue
		}
		out[k] = v
	}
	sort.Strings(removals)
	for _, field := range removals {
		out[field] = ""
	}
	return out
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	case float64:
		return x != 0
	case int64:
		return x != 0
	default:
		return false
	}
}

func matches(rec Record, filters map[string]string) bool {
	for field, want := range filters {
		if want == "" {
			continue
		}
		got, ok := rec[field]
		if !ok || got == nil || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	return n, err == nil && n > 0
}
