// Package indexer turns raw text and files into chunked, entity-tagged sources
// and keeps the source store, the vector store and the keyword index in step.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kura/internal/embedding"
	"github.com/hyperjump/kura/internal/extract"
	"github.com/hyperjump/kura/internal/fileid"
	"github.com/hyperjump/kura/internal/keyword"
	"github.com/hyperjump/kura/internal/metrics"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/storage"
	"github.com/hyperjump/kura/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize  = 64
	defaultWorkers    = 4
	reconcilePageSize = 256
)

// Metadata keys recorded for file-backed sources.
const (
	MetaSourcePath  = "source_path"
	MetaSourceMtime = "source_mtime"
	MetaSourceSize  = "source_size"
)

// Indexer ingests sources into storage, the vector store and the keyword index.
type Indexer struct {
	storage    storage.Storage
	embedder   embedding.Embedder
	vectors    vector.Store
	keywords   keyword.Index
	processor  *SourceProcessor
	extractor  *extract.Extractor
	extensions []string
	batchSize  int
	workers    int
	metrics    *metrics.Metrics
	logger     *zap.Logger

	// serializes ingestion and deletion of the same file-backed source
	fileLocks sync.Map
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtractor sets the file extractor used by IngestFile.
func WithExtractor(e *extract.Extractor) IndexerOption {
	return func(idx *Indexer) { idx.extractor = e }
}

// WithExtensions restricts directory ingestion to the given extensions.
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.extensions = exts }
}

// WithBatchSize sets how many chunks are embedded per call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// WithWorkers bounds parallel file ingestion in IngestDirectory.
func WithWorkers(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// WithMetrics records ingestion metrics.
func WithMetrics(m *metrics.Metrics) IndexerOption {
	return func(idx *Indexer) { idx.metrics = m }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	store storage.Storage,
	embedder embedding.Embedder,
	vectors vector.Store,
	keywords keyword.Index,
	processor *SourceProcessor,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:   store,
		embedder:  embedder,
		vectors:   vectors,
		keywords:  keywords,
		processor: processor,
		extractor: extract.NewExtractor(),
		batchSize: defaultBatchSize,
		workers:   defaultWorkers,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest processes raw text into a Source and stores it everywhere. Caller
// metadata is applied on top of the derived metadata. On any failure the
// partial work is rolled back and nothing is persisted.
func (idx *Indexer) Ingest(ctx context.Context, in *models.SourceInput) (*models.Source, error) {
	if in == nil || strings.TrimSpace(in.Text) == "" {
		return nil, &models.ValidationError{Field: "text", Reason: "cannot be empty"}
	}
	if in.ID != "" {
		if _, err := uuid.Parse(in.ID); err != nil {
			return nil, &models.ValidationError{Field: "id", Reason: "must be a UUID"}
		}
		if _, err := idx.storage.GetSource(ctx, in.ID); err == nil {
			return nil, &models.ValidationError{Field: "id", Reason: fmt.Sprintf("source %s already exists", in.ID)}
		} else if !models.IsNotFound(err) {
			return nil, fmt.Errorf("failed to check source %s: %w", in.ID, err)
		}
	}
	return idx.ingest(ctx, in.ID, in.Text, in.Filename, in.Metadata, nil)
}

func (idx *Indexer) ingest(ctx context.Context, id, text, filename string, meta map[string]string, pages []string) (*models.Source, error) {
	return idx.ingestReplacing(ctx, id, text, filename, meta, pages, false)
}

// ingestReplacing processes and embeds the text before anything is written.
// With replace set, the stored source with the same id is removed only once
// that work has succeeded, so a failed extraction, tagging or embedding leaves
// the previous version searchable.
func (idx *Indexer) ingestReplacing(ctx context.Context, id, text, filename string, meta map[string]string, pages []string, replace bool) (*models.Source, error) {
	start := time.Now()
	if id == "" {
		id = uuid.New().String()
	}
	src, err := idx.processor.ProcessWithID(id, text, filename)
	if err != nil {
		idx.metrics.CollaboratorFailed(err)
		return nil, err
	}
	for k, v := range meta {
		src.Metadata[k] = v
	}
	AssignPageNumbers(src, pages)

	vectors, err := idx.embedChunks(ctx, src.Chunks)
	if err != nil {
		idx.metrics.CollaboratorFailed(err)
		return nil, fmt.Errorf("failed to embed source %s: %w", src.ID, err)
	}

	if replace {
		if err := idx.Delete(ctx, id); err != nil && !models.IsNotFound(err) {
			return nil, fmt.Errorf("failed to replace previous version of source %s: %w", id, err)
		}
	}

	if err := idx.store(ctx, src, vectors); err != nil {
		idx.metrics.CollaboratorFailed(err)
		idx.rollback(ctx, src.ID)
		return nil, err
	}

	elapsed := time.Since(start)
	idx.metrics.SourceIngested(len(src.Chunks), elapsed)
	idx.logger.Info("source ingested",
		zap.String("source_id", src.ID),
		zap.String("filename", filename),
		zap.Int("chunks", len(src.Chunks)),
		zap.Duration("elapsed", elapsed))
	return src, nil
}

// store writes vectors, keyword entries and finally the source itself.
func (idx *Indexer) store(ctx context.Context, src *models.Source, vectors [][]float32) error {
	if len(src.Chunks) > 0 {
		points := vector.PointsFromChunks(src.Chunks, vectors)
		if err := idx.vectors.Upsert(ctx, points); err != nil {
			return fmt.Errorf("failed to upsert vectors for source %s: %w",
				src.ID, models.Collaborator("vector_db", "upsert", err))
		}
		if err := idx.keywords.IndexChunks(ctx, src.Chunks); err != nil {
			return fmt.Errorf("failed to index keywords for source %s: %w",
				src.ID, models.Collaborator("keyword_index", "index", err))
		}
	}
	if err := idx.storage.CreateSource(ctx, src); err != nil {
		return fmt.Errorf("failed to store source %s: %w", src.ID, err)
	}
	return nil
}

func (idx *Indexer) embedChunks(ctx context.Context, chunks []*models.Chunk) ([][]float32, error) {
	out := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += idx.batchSize {
		end := min(i+idx.batchSize, len(chunks))
		texts := make([]string, 0, end-i)
		for _, ch := range chunks[i:end] {
			texts = append(texts, ch.Content)
		}
		vecs, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, models.Collaborator("embedder", "embed chunks", err)
		}
		if len(vecs) != len(texts) {
			return nil, models.Collaborator("embedder", "embed chunks",
				fmt.Errorf("got %d vectors for %d texts", len(vecs), len(texts)))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// rollback removes the vector points and keyword entries of a source that
// failed to store. CreateSource is transactional, so the source store needs
// no cleanup. It runs even when ctx is already cancelled.
func (idx *Indexer) rollback(ctx context.Context, sourceID string) {
	ctx = context.WithoutCancel(ctx)
	if err := idx.vectors.Delete(ctx, vector.Selector{Filter: vector.BySource(sourceID)}); err != nil {
		idx.logger.Warn("rollback vectors failed", zap.String("source_id", sourceID), zap.Error(err))
	}
	if err := idx.keywords.DeleteSource(ctx, sourceID); err != nil {
		idx.logger.Warn("rollback keywords failed", zap.String("source_id", sourceID), zap.Error(err))
	}
}

// IngestBytes extracts an uploaded file by the extension of filename and
// ingests it under a new id.
func (idx *Indexer) IngestBytes(ctx context.Context, filename string, content []byte, meta map[string]string) (*models.Source, error) {
	doc, err := idx.extractor.ExtractBytes(content, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filename, err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, &models.ValidationError{Field: "file", Reason: "no text could be extracted"}
	}
	return idx.ingest(ctx, "", doc.Text, filepath.Base(filename), meta, doc.Pages)
}

// Delete removes a source, its chunks, its summary, its vector points and its
// keyword entries. A missing source is a NotFoundError.
func (idx *Indexer) Delete(ctx context.Context, id string) error {
	if _, err := idx.storage.GetSource(ctx, id); err != nil {
		return err
	}
	if err := idx.vectors.Delete(ctx, vector.Selector{Filter: vector.BySource(id)}); err != nil {
		err = models.Collaborator("vector_db", "delete", err)
		idx.metrics.CollaboratorFailed(err)
		return fmt.Errorf("failed to delete vectors for source %s: %w", id, err)
	}
	if err := idx.keywords.DeleteSource(ctx, id); err != nil {
		return fmt.Errorf("failed to delete keywords for source %s: %w", id, err)
	}
	if err := idx.storage.DeleteSource(ctx, id); err != nil {
		return fmt.Errorf("failed to delete source %s: %w", id, err)
	}
	idx.logger.Info("source deleted", zap.String("source_id", id))
	return nil
}

// IngestFile extracts the file at path and ingests it under the id derived
// from its path, replacing any previous version. A file whose size and
// modification time match the stored source is not re-ingested; the stored
// source is returned instead.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*models.Source, error) {
	src, _, err := idx.ingestFile(ctx, path)
	return src, err
}

func (idx *Indexer) ingestFile(ctx context.Context, path string) (*models.Source, bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, &models.ValidationError{Field: "path", Reason: "not a regular file: " + absPath}
	}
	id := fileid.FromAbs(absPath)

	unlock := idx.lockFile(id)
	defer unlock()

	if existing, ok := idx.unchanged(ctx, id, absPath, info); ok {
		idx.logger.Debug("skipping unchanged file", zap.String("path", absPath), zap.String("source_id", id))
		return existing, true, nil
	}

	doc, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to extract %s: %w", absPath, err)
	}
	meta := map[string]string{
		MetaSourcePath:  absPath,
		MetaSourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
		MetaSourceSize:  strconv.FormatInt(info.Size(), 10),
	}
	src, err := idx.ingestReplacing(ctx, id, doc.Text, filepath.Base(absPath), meta, doc.Pages, true)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ingest %s: %w", absPath, err)
	}
	return src, false, nil
}

// DeleteFile deletes the source ingested from path.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) error {
	id, err := fileid.ForPath(path)
	if err != nil {
		return err
	}
	unlock := idx.lockFile(id)
	defer unlock()
	return idx.Delete(ctx, id)
}

func (idx *Indexer) lockFile(id string) func() {
	v, _ := idx.fileLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// unchanged reports whether the stored source for id was built from the file
// as it is now. Times are stored as decimal strings since UnixNano exceeds
// float64 precision.
func (idx *Indexer) unchanged(ctx context.Context, id, absPath string, info os.FileInfo) (*models.Source, bool) {
	src, err := idx.storage.GetSource(ctx, id)
	if err != nil {
		return nil, false
	}
	if src.Metadata[MetaSourcePath] != absPath {
		return nil, false
	}
	if src.Metadata[MetaSourceMtime] != strconv.FormatInt(info.ModTime().UnixNano(), 10) ||
		src.Metadata[MetaSourceSize] != strconv.FormatInt(info.Size(), 10) {
		return nil, false
	}
	return src, true
}

// FileReport is the outcome of ingesting one file.
type FileReport struct {
	Path      string `json:"path"`
	SourceID  string `json:"source_id,omitempty"`
	Chunks    int    `json:"chunks"`
	Unchanged bool   `json:"unchanged,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DirectoryReport summarizes IngestDirectory.
type DirectoryReport struct {
	Files     []FileReport `json:"files"`
	Ingested  int          `json:"ingested"`
	Unchanged int          `json:"unchanged"`
	Failed    int          `json:"failed"`
}

// IngestDirectory walks root and ingests every supported file with bounded
// parallelism. Per-file failures are recorded in the report; only a walk
// error or cancellation fails the whole call. Files are reported in path order.
func (idx *Indexer) IngestDirectory(ctx context.Context, root string) (*DirectoryReport, error) {
	paths, err := idx.collectFiles(root)
	if err != nil {
		return nil, err
	}

	files := make([]FileReport, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep := FileReport{Path: path}
			src, unchanged, err := idx.ingestFile(gctx, path)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				idx.logger.Warn("file ingestion failed", zap.String("path", path), zap.Error(err))
				rep.Error = err.Error()
			} else {
				rep.SourceID = src.ID
				rep.Chunks = len(src.Chunks)
				rep.Unchanged = unchanged
			}
			files[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &DirectoryReport{Files: files}
	for _, f := range files {
		switch {
		case f.Error != "":
			report.Failed++
		case f.Unchanged:
			report.Unchanged++
		default:
			report.Ingested++
		}
	}
	return report, nil
}

// collectFiles returns the sorted absolute paths of supported regular files
// under root. root may also name a single file.
func (idx *Indexer) collectFiles(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return []string{absRoot}, nil
	}
	var paths []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !idx.Accepts(path) {
			return nil
		}
		// follow symlinks, index regular files only
		if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Accepts reports whether path has an extension the indexer ingests.
func (idx *Indexer) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !extract.Supported(ext) {
		return false
	}
	return len(idx.extensions) == 0 || extensionAllowed(ext, idx.extensions)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// ReconcileReport summarizes Reconcile.
type ReconcileReport struct {
	Scanned       int      `json:"scanned"`
	Removed       int      `json:"removed"`
	OrphanSources []string `json:"orphan_sources,omitempty"`
}

// Reconcile scans the vector store and deletes points whose source is not in
// the source store.
func (idx *Indexer) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}
	known := make(map[string]bool)
	orphans := make(map[string][]string)
	var order []string

	offset := ""
	for {
		page, err := idx.vectors.Scroll(ctx, reconcilePageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to scroll vectors: %w", models.Collaborator("vector_db", "scroll", err))
		}
		for _, p := range page.Points {
			report.Scanned++
			sid := p.Payload.SourceID
			exists, seen := known[sid]
			if !seen {
				_, err := idx.storage.GetSource(ctx, sid)
				switch {
				case err == nil:
					exists = true
				case models.IsNotFound(err):
					exists = false
					order = append(order, sid)
				default:
					return nil, fmt.Errorf("failed to look up source %s: %w", sid, err)
				}
				known[sid] = exists
			}
			if !exists {
				orphans[sid] = append(orphans[sid], p.ID)
			}
		}
		if page.NextOffset == "" {
			break
		}
		offset = page.NextOffset
	}

	for _, sid := range order {
		ids := orphans[sid]
		if err := idx.vectors.Delete(ctx, vector.Selector{IDs: ids}); err != nil {
			return nil, fmt.Errorf("failed to delete orphans of %s: %w", sid, models.Collaborator("vector_db", "delete", err))
		}
		if err := idx.keywords.DeleteSource(ctx, sid); err != nil {
			idx.logger.Warn("failed to delete orphan keywords", zap.String("source_id", sid), zap.Error(err))
		}
		report.Removed += len(ids)
		report.OrphanSources = append(report.OrphanSources, sid)
		idx.logger.Info("removed orphan vectors", zap.String("source_id", sid), zap.Int("points", len(ids)))
	}
	return report, nil
}
