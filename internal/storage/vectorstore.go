package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/sevigo/devflow/internal/core"
)

// SnippetIndex is the read/write surface over the code_snippets table.
type SnippetIndex interface {
	// NearestSnippets returns up to k snippets ordered by ascending cosine
	// distance to vec. vec must have core.EmbeddingDimensions components.
	NearestSnippets(ctx context.Context, vec []float32, k int) ([]core.CodeSnippet, error)
	// ReplaceFileSnippets swaps every stored snippet of filePath for the given ones.
	ReplaceFileSnippets(ctx context.Context, filePath string, snippets []core.CodeSnippet) error
	Reset(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

type pgSnippetIndex struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSnippetIndex returns a SnippetIndex using pgvector's cosine distance operator.
func NewSnippetIndex(db *sqlx.DB) SnippetIndex {
	return &pgSnippetIndex{db: db, now: time.Now}
}

func (p *pgSnippetIndex) NearestSnippets(ctx context.Context, vec []float32, k int) ([]core.CodeSnippet, error) {
	if err := core.CheckDimensions(vec); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	query := p.db.Rebind(`
		SELECT id, file_path, content, created_at
		FROM code_snippets
		ORDER BY embedding <=> ?
		LIMIT ?`)

	var snippets []core.CodeSnippet
	if err := p.db.SelectContext(ctx, &snippets, query, pgvector.NewVector(vec), k); err != nil {
		return nil, fmt.Errorf("nearest-neighbour query failed: %w", err)
	}
	return snippets, nil
}

func (p *pgSnippetIndex) ReplaceFileSnippets(ctx context.Context, filePath string, snippets []core.CodeSnippet) error {
	for i := range snippets {
		if err := core.CheckDimensions(snippets[i].Embedding); err != nil {
			return fmt.Errorf("snippet %d of %s: %w", i, filePath, err)
		}
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM code_snippets WHERE file_path = ?`), filePath); err != nil {
		return fmt.Errorf("failed to clear snippets for %s: %w", filePath, err)
	}

	insert := tx.Rebind(`INSERT INTO code_snippets (file_path, content, embedding, created_at) VALUES (?, ?, ?, ?)`)
	now := p.now().UTC()
	for _, s := range snippets {
		if _, err := tx.ExecContext(ctx, insert, filePath, s.Content, pgvector.NewVector(s.Embedding), now); err != nil {
			return fmt.Errorf("failed to insert snippet for %s: %w", filePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snippets for %s: %w", filePath, err)
	}
	return nil
}

func (p *pgSnippetIndex) Reset(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM code_snippets`); err != nil {
		return fmt.Errorf("failed to reset snippet index: %w", err)
	}
	return nil
}

func (p *pgSnippetIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM code_snippets`); err != nil {
		return 0, fmt.Errorf("failed to count snippets: %w", err)
	}
	return n, nil
}
