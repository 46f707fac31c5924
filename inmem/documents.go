package inmem

import (
	"context"
	"fmt"
	"sync"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
)

// Documents is an in-memory document store keyed by reference.
type Documents struct {
	mu   sync.RWMutex
	docs map[string]*graph.Document
}

// NewDocuments creates an empty document store.
func NewDocuments() *Documents {
	return &Documents{docs: make(map[string]*graph.Document)}
}

// SaveDocument replaces the document stored under ref.
func (d *Documents) SaveDocument(_ context.Context, ref string, doc *graph.Document) error {
	d.mu.Lock()
	d.docs[ref] = doc
	d.mu.Unlock()
	return nil
}

// FetchDocument returns ErrDocumentNotFound for unknown refs.
func (d *Documents) FetchDocument(_ context.Context, ref string) (*graph.Document, error) {
	d.mu.RLock()
	doc, ok := d.docs[ref]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("splitflow: document %q: %w", ref, splitflow.ErrDocumentNotFound)
	}
	return doc, nil
}
