// Package models is the model registry: the set of chat models a deployment
// exposes to its users, with per-model params (system prompt etc.), tags, and
// an active flag. Backed by SQLite via modernc.org/sqlite (pure Go, no CGO).
package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	// Register the modernc sqlite driver under the name "sqlite".
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("model not found")
	ErrExists    = errors.New("model id already taken")
	ErrInvalidID = errors.New("model id must be non-empty and at most 256 characters")
)

// PageSize is the number of models returned per Search page.
const PageSize = 30

// Model is one registry entry.
type Model struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Params      map[string]any `json:"params"`
	Tags        []string       `json:"tags"`
	IsActive    bool           `json:"is_active"`
	CreatedAt   int64          `json:"created_at"`
	UpdatedAt   int64          `json:"updated_at"`
}

// Filter narrows and orders a Search.
type Filter struct {
	Query     string // substring match on id or name
	Tag       string // exact tag membership
	OrderBy   string // "name", "created_at", "updated_at" (default "name")
	Direction string // "asc" or "desc" (default "asc")
	Page      int    // 1-based
}

// Store is the SQLite-backed registry.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS models (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	params      TEXT NOT NULL DEFAULT '{}',
	tags        TEXT NOT NULL DEFAULT '[]',
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_models_name ON models(name);
`

// Open opens (or creates) the registry database at path and ensures the
// schema exists. Use ":memory:" in tests. The DSN applies WAL journal mode,
// foreign-key enforcement, and a busy timeout at connection time.
func Open(path string) (*Store, error) {
	dsn := path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("models: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("models: ping %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("models: ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func validID(id string) bool {
	return id != "" && len(id) <= 256
}

func marshalFields(m *Model) (params, tags string, err error) {
	if m.Params == nil {
		m.Params = map[string]any{}
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	p, err := json.Marshal(m.Params)
	if err != nil {
		return "", "", fmt.Errorf("marshal params: %w", err)
	}
	t, err := json.Marshal(m.Tags)
	if err != nil {
		return "", "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(p), string(t), nil
}

func scanModel(row interface{ Scan(...any) error }) (*Model, error) {
	var m Model
	var params, tags string
	var active int
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &params, &tags, &active, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.IsActive = active != 0
	if err := json.Unmarshal([]byte(params), &m.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params for %q: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags for %q: %w", m.ID, err)
	}
	return &m, nil
}

const modelColumns = "id, name, description, params, tags, is_active, created_at, updated_at"

// Create inserts a new model. The id must be unused.
func (s *Store) Create(ctx context.Context, m *Model) error {
	if !validID(m.ID) {
		return ErrInvalidID
	}
	if _, err := s.Get(ctx, m.ID); err == nil {
		return ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	params, tags, err := marshalFields(m)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO models (id, name, description, params, tags, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.Description, params, tags, boolInt(m.IsActive), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("models: insert %q: %w", m.ID, err)
	}
	return nil
}

// Get returns the model with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Model, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+modelColumns+" FROM models WHERE id = ?", id)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("models: get %q: %w", id, err)
	}
	return m, nil
}

// Update overwrites the mutable fields of an existing model.
func (s *Store) Update(ctx context.Context, m *Model) error {
	params, tags, err := marshalFields(m)
	if err != nil {
		return err
	}
	m.UpdatedAt = time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`UPDATE models SET name = ?, description = ?, params = ?, tags = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		m.Name, m.Description, params, tags, boolInt(m.IsActive), m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("models: update %q: %w", m.ID, err)
	}
	return requireRow(res)
}

// Delete removes a model.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM models WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("models: delete %q: %w", id, err)
	}
	return requireRow(res)
}

// Toggle flips a model's active flag and returns the updated record.
func (s *Store) Toggle(ctx context.Context, id string) (*Model, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE models SET is_active = 1 - is_active, updated_at = ? WHERE id = ?",
		time.Now().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("models: toggle %q: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Tags returns the sorted union of all tags across the registry.
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT tags FROM models")
	if err != nil {
		return nil, fmt.Errorf("models: list tags: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			continue
		}
		for _, t := range tags {
			if t != "" {
				seen[t] = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)
	return out, nil
}

// Search returns one page of models matching the filter plus the total match
// count across all pages.
func (s *Store) Search(ctx context.Context, f Filter) ([]*Model, int, error) {
	var where []string
	var args []any
	if f.Query != "" {
		where = append(where, "(id LIKE ? OR name LIKE ?)")
		pat := "%" + f.Query + "%"
		args = append(args, pat, pat)
	}
	if f.Tag != "" {
		// Tags are stored as a JSON array; membership via the quoted element.
		where = append(where, "tags LIKE ?")
		args = append(args, `%"`+f.Tag+`"%`)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM models"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("models: count: %w", err)
	}

	orderBy := "name"
	switch f.OrderBy {
	case "created_at", "updated_at", "name":
		orderBy = f.OrderBy
	}
	dir := "ASC"
	if f.Direction == "desc" {
		dir = "DESC"
	}
	page := max(f.Page, 1)
	offset := (page - 1) * PageSize

	query := "SELECT " + modelColumns + " FROM models" + clause +
		fmt.Sprintf(" ORDER BY %s %s LIMIT ? OFFSET ?", orderBy, dir)
	rows, err := s.db.QueryContext(ctx, query, append(args, PageSize, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("models: search: %w", err)
	}
	defer rows.Close()

	var items []*Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Active returns all active models, ordered by name.
func (s *Store) Active(ctx context.Context) ([]*Model, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+modelColumns+" FROM models WHERE is_active = 1 ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("models: list active: %w", err)
	}
	defer rows.Close()

	var items []*Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// Resolve reports whether the model exists and is active. Satisfies the chat
// consumer's ModelResolver.
func (s *Store) Resolve(ctx context.Context, id string) (bool, error) {
	m, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.IsActive, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
