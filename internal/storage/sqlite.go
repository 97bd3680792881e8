package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kura/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private
// in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	inMemory := dbPath == ":memory:"
	if !inMemory {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sources_created_at ON sources(created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		content TEXT NOT NULL,
		start_index INTEGER NOT NULL,
		end_index INTEGER NOT NULL,
		section_title TEXT,
		page_number INTEGER,
		previous_chunk_id TEXT,
		next_chunk_id TEXT,
		entities TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source_start ON chunks(source_id, start_index);

	CREATE TABLE IF NOT EXISTS summaries (
		source_id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateSource inserts a source and all of its chunks in one transaction.
func (s *SQLiteStorage) CreateSource(ctx context.Context, src *models.Source) error {
	metadataJSON, err := json.Marshal(src.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	now := time.Now().UTC()
	if src.CreatedAt.IsZero() {
		src.CreatedAt = now
	}
	src.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sources (id, content, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		src.ID, src.Content, string(metadataJSON), src.CreatedAt, src.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert source %s: %w", src.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, source_id, content, start_index, end_index, section_title,
		 page_number, previous_chunk_id, next_chunk_id, entities, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()
	for _, ch := range src.Chunks {
		entitiesJSON, err := json.Marshal(ch.Entities)
		if err != nil {
			return fmt.Errorf("failed to marshal entities: %w", err)
		}
		createdAt := ch.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, src.ID, ch.Content, ch.StartIndex, ch.EndIndex, ch.SectionTitle,
			ch.PageNumber, ch.PreviousChunkID, ch.NextChunkID, string(entitiesJSON), createdAt,
		); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// GetSource returns a source by ID with its chunks in textual order.
func (s *SQLiteStorage) GetSource(ctx context.Context, id string) (*models.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, metadata, created_at, updated_at FROM sources WHERE id = ?`, id)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.SourceNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	if src.Chunks, err = s.GetChunks(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to load chunks of %s: %w", id, err)
	}
	return src, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (*models.Source, error) {
	var src models.Source
	var metadataJSON sql.NullString
	if err := row.Scan(&src.ID, &src.Content, &metadataJSON, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return nil, err
	}
	src.Metadata = map[string]string{}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &src.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &src, nil
}

// ListSources returns sources newest first.
func (s *SQLiteStorage) ListSources(ctx context.Context, offset, limit int) ([]*models.Source, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata, created_at, updated_at FROM sources
		 ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source with its chunks and summary.
func (s *SQLiteStorage) DeleteSource(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return models.SourceNotFound(id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM summaries WHERE source_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

const chunkColumns = `id, source_id, content, start_index, end_index, section_title, page_number,
	previous_chunk_id, next_chunk_id, entities, created_at`

func scanChunk(row scanner) (*models.Chunk, error) {
	var ch models.Chunk
	var section, prev, next, entitiesJSON sql.NullString
	var page sql.NullInt64
	if err := row.Scan(&ch.ID, &ch.SourceID, &ch.Content, &ch.StartIndex, &ch.EndIndex,
		&section, &page, &prev, &next, &entitiesJSON, &ch.CreatedAt); err != nil {
		return nil, err
	}
	ch.SectionTitle = section.String
	ch.PageNumber = int(page.Int64)
	ch.PreviousChunkID = prev.String
	ch.NextChunkID = next.String
	ch.Entities = models.NewEntities()
	if entitiesJSON.Valid && entitiesJSON.String != "" {
		if err := json.Unmarshal([]byte(entitiesJSON.String), &ch.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
	}
	return &ch, nil
}

// GetChunks returns a source's chunks in textual order.
func (s *SQLiteStorage) GetChunks(ctx context.Context, sourceID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE source_id = ? ORDER BY start_index ASC`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// GetChunk returns a chunk by ID.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	ch, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "chunk", ID: id}
	}
	return ch, err
}

// SaveSummary stores or replaces the summary of an existing source.
func (s *SQLiteStorage) SaveSummary(ctx context.Context, summary *models.Summary) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sources WHERE id = ?`, summary.SourceID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SourceNotFound(summary.SourceID)
	}
	if err != nil {
		return err
	}
	body, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO summaries (source_id, body, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(source_id) DO UPDATE SET body = excluded.body, created_at = excluded.created_at`,
		summary.SourceID, string(body), time.Now().UTC())
	return err
}

// GetSummary returns the stored summary for a source.
func (s *SQLiteStorage) GetSummary(ctx context.Context, sourceID string) (*models.Summary, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM summaries WHERE source_id = ?`, sourceID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Kind: "summary", ID: sourceID}
	}
	if err != nil {
		return nil, err
	}
	var summary models.Summary
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}

// CountSources returns the number of sources.
func (s *SQLiteStorage) CountSources(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&n)
	return n, err
}

// CountChunks returns the number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
