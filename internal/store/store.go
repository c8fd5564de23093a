package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andresmejia3/facesheet/internal/index"
	"github.com/andresmejia3/facesheet/internal/page"
)

// Store manages the PostgreSQL connection holding indexed pages.
type Store struct {
	conn *pgx.Conn
}

// PageSummary is one row of the page listing.
type PageSummary struct {
	ArchiveID   string
	ArchivePath string
	Ordinal     int
	Name        string
	FaceCount   int
	TextLength  int
	IndexedAt   time.Time
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS archives (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			indexed_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS pages (
			archive_id TEXT NOT NULL REFERENCES archives(id) ON DELETE CASCADE,
			ordinal INT NOT NULL,
			name TEXT NOT NULL,
			image BYTEA NOT NULL,
			faces INT[] NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (archive_id, name)
		);
		CREATE INDEX IF NOT EXISTS pages_archive_ordinal_idx ON pages (archive_id, ordinal);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// IndexArchive replaces everything stored for the archive with recs in a single
// transaction. A failed save leaves the previous state untouched, so an archive
// is never registered without its pages.
func (s *Store) IndexArchive(ctx context.Context, archiveID, path string, recs []*page.Record) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := ensureArchive(ctx, tx, archiveID, path); err != nil {
		return err
	}
	for i, rec := range recs {
		if err := savePage(ctx, tx, archiveID, i, rec); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// HasArchive reports whether the archive has been indexed before.
func (s *Store) HasArchive(ctx context.Context, archiveID string) (bool, error) {
	var exists bool
	err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM archives WHERE id = $1)", archiveID).Scan(&exists)
	return exists, err
}

// execer is satisfied by both *pgx.Conn and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ensureArchive registers the archive. Pages from a previous run are removed so
// re-indexing never duplicates rows.
func ensureArchive(ctx context.Context, q execer, archiveID, path string) error {
	if _, err := q.Exec(ctx, "DELETE FROM pages WHERE archive_id = $1", archiveID); err != nil {
		return err
	}

	_, err := q.Exec(ctx, `
		INSERT INTO archives (id, path, indexed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET indexed_at = NOW(), path = EXCLUDED.path
	`, archiveID, path)
	return err
}

// savePage stores the page image PNG-encoded and the faces as a flat
// [x, y, w, h, ...] array.
func savePage(ctx context.Context, q execer, archiveID string, ordinal int, rec *page.Record) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, rec.Image); err != nil {
		return fmt.Errorf("encode %s: %w", rec.ID, err)
	}

	_, err := q.Exec(ctx, `
		INSERT INTO pages (archive_id, ordinal, name, image, faces, text)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (archive_id, name) DO UPDATE
		SET ordinal = EXCLUDED.ordinal, image = EXCLUDED.image, faces = EXCLUDED.faces, text = EXCLUDED.text
	`, archiveID, ordinal, rec.ID, buf.Bytes(), flattenBoxes(rec.Faces), rec.Text)
	if err != nil {
		return fmt.Errorf("save %s: %w", rec.ID, err)
	}
	return nil
}

// LoadIndex rebuilds the Index of an archive in its original order.
func (s *Store) LoadIndex(ctx context.Context, archiveID string) (*index.Index, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT name, image, faces, text FROM pages
		WHERE archive_id = $1
		ORDER BY ordinal ASC
	`, archiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*page.Record
	for rows.Next() {
		var name, text string
		var data []byte
		var flat []int32
		if err := rows.Scan(&name, &data, &flat, &text); err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &page.DecodeError{ID: name, Err: err}
		}
		faces, err := unflattenBoxes(flat)
		if err != nil {
			return nil, fmt.Errorf("page %s: %w", name, err)
		}
		recs = append(recs, &page.Record{ID: name, Image: img, Faces: faces, Text: text})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return index.New(recs...)
}

// ListPages returns every stored page, grouped by archive and in archive order.
func (s *Store) ListPages(ctx context.Context) ([]PageSummary, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT a.id, a.path, a.indexed_at, p.ordinal, p.name, COALESCE(array_length(p.faces, 1), 0) / 4, length(p.text)
		FROM pages p
		JOIN archives a ON a.id = p.archive_id
		ORDER BY a.indexed_at DESC, a.id, p.ordinal
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []PageSummary
	for rows.Next() {
		var p PageSummary
		if err := rows.Scan(&p.ArchiveID, &p.ArchivePath, &p.IndexedAt, &p.Ordinal, &p.Name, &p.FaceCount, &p.TextLength); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// Reset drops all application tables to clear the database state.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS pages CASCADE;
		DROP TABLE IF EXISTS archives CASCADE;
	`)
	return err
}

func flattenBoxes(boxes []page.BoundingBox) []int32 {
	flat := make([]int32, 0, len(boxes)*4)
	for _, b := range boxes {
		flat = append(flat, int32(b.X), int32(b.Y), int32(b.Width), int32(b.Height))
	}
	return flat
}

func unflattenBoxes(flat []int32) ([]page.BoundingBox, error) {
	if len(flat)%4 != 0 {
		return nil, errors.New("face array length is not a multiple of 4")
	}
	boxes := make([]page.BoundingBox, 0, len(flat)/4)
	for i := 0; i < len(flat); i += 4 {
		boxes = append(boxes, page.BoundingBox{
			X:      int(flat[i]),
			Y:      int(flat[i+1]),
			Width:  int(flat[i+2]),
			Height: int(flat[i+3]),
		})
	}
	return page.NormalizeBoxes(boxes)
}
