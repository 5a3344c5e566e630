// Package batch runs the preprocessor over many documents concurrently.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Document is one input to a batch run.
type Document struct {
	ID   string `json:"id"`
	Lang string `json:"lang"`
	Text string `json:"text"`
}

// Result holds the terms of the document with the same ID.
type Result struct {
	ID    string   `json:"id"`
	Lang  string   `json:"lang"`
	Terms []string `json:"terms"`
}

// Processor is satisfied by the cached preprocessor and by any adapter
// around preprocess.Preprocessor.
type Processor interface {
	Process(ctx context.Context, text, lang string) ([]string, error)
}

// Process runs p over docs with at most workers concurrent calls and
// returns the results in input order. The first failing document cancels
// the rest and its error is returned, wrapped with the document id.
func Process(ctx context.Context, p Processor, docs []Document, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = 1
	}
	start := time.Now()
	results := make([]Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			terms, err := p.Process(gctx, doc.Text, doc.Lang)
			if err != nil {
				return fmt.Errorf("document %q: %w", doc.ID, err)
			}
			results[i] = Result{ID: doc.ID, Lang: doc.Lang, Terms: terms}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Default().With("component", "batch").Debug("batch processed",
		"documents", len(docs),
		"workers", workers,
		"elapsed", time.Since(start),
	)
	return results, nil
}
