package bookmarks

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Bookmark struct {
	AnimeID string
	Title   string
	Poster  string
	Status  string
	Type    string
	Score   string
	// AddedAt is milliseconds since the Unix epoch.
	AddedAt int64
}

// Store keeps bookmarks per visitor in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: databases alive and serializes writes
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS bookmarks (
		visitor_id TEXT NOT NULL,
		anime_id   TEXT NOT NULL,
		title      TEXT NOT NULL,
		poster     TEXT NOT NULL,
		status     TEXT NOT NULL,
		type       TEXT NOT NULL,
		score      TEXT NOT NULL,
		added_at   INTEGER NOT NULL,
		PRIMARY KEY (visitor_id, anime_id)
	);
	CREATE INDEX IF NOT EXISTS idx_bookmarks_visitor_added ON bookmarks(visitor_id, added_at);
	`)
	return err
}

// Add saves b unless the visitor already has that anime, in which case the
// existing entry is left as is.
func (s *Store) Add(ctx context.Context, visitor string, b Bookmark) error {
	_, err := s.insert(ctx, s.db, visitor, b)
	if err != nil {
		return fmt.Errorf("add bookmark %s: %w", b.AnimeID, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, visitor, animeID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE visitor_id = ? AND anime_id = ?`, visitor, animeID)
	if err != nil {
		return fmt.Errorf("remove bookmark %s: %w", animeID, err)
	}
	return nil
}

func (s *Store) IsBookmarked(ctx context.Context, visitor, animeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookmarks WHERE visitor_id = ? AND anime_id = ?`, visitor, animeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check bookmark %s: %w", animeID, err)
	}
	return n > 0, nil
}

// Toggle removes the bookmark if present, adds it otherwise, and reports
// whether it is bookmarked afterwards.
func (s *Store) Toggle(ctx context.Context, visitor string, b Bookmark) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("toggle bookmark %s: %w", b.AnimeID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE visitor_id = ? AND anime_id = ?`, visitor, b.AnimeID)
	if err != nil {
		return false, fmt.Errorf("toggle bookmark %s: %w", b.AnimeID, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle bookmark %s: %w", b.AnimeID, err)
	}
	if removed == 0 {
		if _, err := s.insert(ctx, tx, visitor, b); err != nil {
			return false, fmt.Errorf("toggle bookmark %s: %w", b.AnimeID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("toggle bookmark %s: %w", b.AnimeID, err)
	}
	return removed == 0, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insert(ctx context.Context, db execer, visitor string, b Bookmark) (sql.Result, error) {
	return db.ExecContext(ctx, `
		INSERT INTO bookmarks (visitor_id, anime_id, title, poster, status, type, score, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (visitor_id, anime_id) DO NOTHING`,
		visitor, b.AnimeID, b.Title, b.Poster, b.Status, b.Type, b.Score, s.now().UnixMilli())
}

// List returns the visitor's bookmarks, oldest first.
func (s *Store) List(ctx context.Context, visitor string) ([]Bookmark, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT anime_id, title, poster, status, type, score, added_at
		FROM bookmarks WHERE visitor_id = ?
		ORDER BY added_at, rowid`, visitor)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var out []Bookmark
	for rows.Next() {
		var b Bookmark
		if err := rows.Scan(&b.AnimeID, &b.Title, &b.Poster, &b.Status, &b.Type, &b.Score, &b.AddedAt); err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
