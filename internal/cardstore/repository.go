package cardstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository stores configuration revisions.
type Repository interface {
	Save(ctx context.Context, rev *Revision) error
	Latest(ctx context.Context) (*Revision, error)
	Get(ctx context.Context, id string) (*Revision, error)
	List(ctx context.Context, limit int) ([]Summary, error)
}

const (
	revisionColumns  = `id, created_at, source, note, layout_json, cards_json, channels_json`
	defaultListLimit = 20
	maxListLimit     = 200
)

// SQLiteRepository implements Repository on the config_revisions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts rev. ID and CreatedAt are filled in when empty. Runtime
// signals are not stored.
func (r *SQLiteRepository) Save(ctx context.Context, rev *Revision) error {
	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	if rev.CreatedAt.IsZero() {
		rev.CreatedAt = time.Now().UTC()
	}

	layoutJSON, err := json.Marshal(rev.Layout)
	if err != nil {
		return fmt.Errorf("marshalling layout: %w", err)
	}
	cardsJSON, err := json.Marshal(stripRuntime(rev.Cards))
	if err != nil {
		return fmt.Errorf("marshalling cards: %w", err)
	}
	channelsJSON := []byte("[]")
	if len(rev.Channels) > 0 {
		if channelsJSON, err = json.Marshal(rev.Channels); err != nil {
			return fmt.Errorf("marshalling channels: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO config_revisions (`+revisionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rev.ID, rev.CreatedAt.Format(time.RFC3339Nano), rev.Source, rev.Note,
		string(layoutJSON), string(cardsJSON), string(channelsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting revision: %w", err)
	}
	return nil
}

// Latest returns the most recently saved revision.
func (r *SQLiteRepository) Latest(ctx context.Context) (*Revision, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM config_revisions ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	return scanRevision(row)
}

// Get returns the revision with id.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Revision, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+revisionColumns+` FROM config_revisions WHERE id = ?`, id)
	return scanRevision(row)
}

// List returns revision summaries, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, source, note, json_array_length(cards_json), json_array_length(channels_json)
		 FROM config_revisions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying revisions: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var s Summary
		var createdAt string
		if err := rows.Scan(&s.ID, &createdAt, &s.Source, &s.Note, &s.Cards, &s.Channels); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		if s.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing revision timestamp %q: %w", createdAt, err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating revisions: %w", err)
	}
	return summaries, nil
}

func scanRevision(row *sql.Row) (*Revision, error) {
	var rev Revision
	var createdAt, layoutJSON, cardsJSON, channelsJSON string
	err := row.Scan(&rev.ID, &createdAt, &rev.Source, &rev.Note, &layoutJSON, &cardsJSON, &channelsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying revision: %w", err)
	}

	if rev.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing revision timestamp %q: %w", createdAt, err)
	}
	if err := json.Unmarshal([]byte(layoutJSON), &rev.Layout); err != nil {
		return nil, fmt.Errorf("unmarshalling layout: %w", err)
	}
	if err := json.Unmarshal([]byte(cardsJSON), &rev.Cards); err != nil {
		return nil, fmt.Errorf("unmarshalling cards: %w", err)
	}
	if err := json.Unmarshal([]byte(channelsJSON), &rev.Channels); err != nil {
		return nil, fmt.Errorf("unmarshalling channels: %w", err)
	}
	return &rev, nil
}
