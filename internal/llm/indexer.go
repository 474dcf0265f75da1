package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/devflow/internal/core"
	"github.com/sevigo/devflow/internal/gitutil"
	"github.com/sevigo/devflow/internal/storage"
)

// DefaultIndexConcurrency bounds the number of files embedded at once.
const DefaultIndexConcurrency = 4

// IndexStats summarises one indexing run.
type IndexStats struct {
	SHA      string
	Scanned  int
	Skipped  int
	Indexed  int
	Failed   int
	Snippets int
	// Total is the size of the whole snippet index after the run, or -1 if
	// it could not be counted.
	Total    int
	Duration time.Duration
}

// Indexer embeds the files tracked at HEAD of a local repository into the
// snippet index used for context retrieval.
type Indexer struct {
	git         *gitutil.Client
	embedder    Embedder
	index       storage.SnippetIndex
	splitter    *TextSplitter
	concurrency int
	logger      *slog.Logger
}

// NewIndexer returns an Indexer. concurrency <= 0 selects DefaultIndexConcurrency.
func NewIndexer(git *gitutil.Client, embedder Embedder, index storage.SnippetIndex, concurrency int, logger *slog.Logger) *Indexer {
	if concurrency <= 0 {
		concurrency = DefaultIndexConcurrency
	}
	return &Indexer{
		git:         git,
		embedder:    embedder,
		index:       index,
		splitter:    NewCodeSplitter(),
		concurrency: concurrency,
		logger:      logger,
	}
}

type indexJob struct {
	path    string
	content string
}

// IndexRepository indexes repoPath. A file whose chunks cannot be embedded is
// counted as failed and left untouched in the index; the run continues.
func (ix *Indexer) IndexRepository(ctx context.Context, repoPath string, repoCfg *core.RepoConfig, reset bool) (IndexStats, error) {
	start := time.Now()
	if repoCfg == nil {
		repoCfg = core.DefaultRepoConfig()
	}

	probe, err := ix.embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return IndexStats{}, fmt.Errorf("embedding probe failed: %w", err)
	}
	if err := core.CheckDimensions(probe); err != nil {
		return IndexStats{}, err
	}

	snap, err := ix.git.HeadSnapshot(repoPath)
	if err != nil {
		return IndexStats{}, err
	}
	paths, err := snap.Paths()
	if err != nil {
		return IndexStats{}, err
	}
	stats := IndexStats{SHA: snap.SHA, Scanned: len(paths)}

	if reset {
		if err := ix.index.Reset(ctx); err != nil {
			return stats, fmt.Errorf("failed to reset snippet index: %w", err)
		}
		ix.logger.Info("snippet index cleared")
	}

	filter := newPathFilter(repoCfg)
	var (
		indexed, failed, snippets atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for _, p := range paths {
		if !filter.include(p) {
			stats.Skipped++
			continue
		}
		// go-git trees are read from this goroutine only.
		content, ok, err := snap.ReadFile(p)
		if err != nil {
			ix.logger.Warn("failed to read file", "file", p, "error", err)
			failed.Add(1)
			continue
		}
		if !ok || strings.TrimSpace(content) == "" {
			stats.Skipped++
			continue
		}
		if gctx.Err() != nil {
			break
		}

		job := indexJob{path: p, content: content}
		g.Go(func() error {
			n, err := ix.indexFile(gctx, job)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				ix.logger.Warn("failed to index file", "file", job.path, "error", err)
				failed.Add(1)
				return nil
			}
			indexed.Add(1)
			snippets.Add(int64(n))
			return nil
		})
	}

	err = g.Wait()
	stats.Indexed = int(indexed.Load())
	stats.Failed = int(failed.Load())
	stats.Snippets = int(snippets.Load())
	stats.Duration = time.Since(start)
	if err != nil {
		return stats, fmt.Errorf("indexing interrupted: %w", err)
	}

	stats.Total = -1
	if total, err := ix.index.Count(ctx); err != nil {
		ix.logger.Warn("failed to count snippets", "error", err)
	} else {
		stats.Total = total
	}

	ix.logger.Info("repository indexed",
		"path", repoPath,
		"sha", stats.SHA,
		"indexed", stats.Indexed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"snippets", stats.Snippets,
		"total", stats.Total,
		"duration", stats.Duration,
	)
	return stats, nil
}

func (ix *Indexer) indexFile(ctx context.Context, job indexJob) (int, error) {
	chunks := ix.splitter.Split(job.content)
	if len(chunks) == 0 {
		return 0, nil
	}

	batch := make([]core.CodeSnippet, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := ix.embedder.Embed(ctx, chunk)
		if err != nil {
			return 0, fmt.Errorf("chunk %d: %w", i, err)
		}
		if err := core.CheckDimensions(vec); err != nil {
			return 0, fmt.Errorf("chunk %d: %w", i, err)
		}
		batch = append(batch, core.CodeSnippet{FilePath: job.path, Content: chunk, Embedding: vec})
	}

	if err := ix.index.ReplaceFileSnippets(ctx, job.path, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

type pathFilter struct {
	dirs map[string]struct{}
	exts map[string]struct{}
}

func newPathFilter(cfg *core.RepoConfig) pathFilter {
	f := pathFilter{dirs: map[string]struct{}{}, exts: map[string]struct{}{}}
	for _, d := range cfg.ExcludeDirs {
		if d = strings.Trim(d, "/"); d != "" {
			f.dirs[d] = struct{}{}
		}
	}
	for _, e := range cfg.ExcludeExts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		f.exts[e] = struct{}{}
	}
	return f
}

// include reports whether a slash-separated repository path should be indexed.
func (f pathFilter) include(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if _, skip := f.exts[ext]; skip {
		return false
	}
	if !isCodeExtension(ext) {
		return false
	}
	segments := strings.Split(path.Dir(p), "/")
	for _, s := range segments {
		if strings.HasPrefix(s, ".") && s != "." {
			return false
		}
		if _, skip := f.dirs[s]; skip {
			return false
		}
	}
	return true
}
