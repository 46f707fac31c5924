// Package source fetches workflow documents from a directory or over HTTP.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/client"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
)

// Dir reads "<ref>.json" documents from a directory.
type Dir struct {
	root string
}

// NewDir creates a Dir rooted at root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// FetchDocument reads and decodes ref. Refs may not leave the root.
func (d *Dir) FetchDocument(_ context.Context, ref string) (*graph.Document, error) {
	name := ref
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("splitflow: document %q: %w", ref, splitflow.ErrDocumentNotFound)
	}

	raw, err := os.ReadFile(filepath.Join(d.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("splitflow: document %q: %w", ref, splitflow.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("splitflow: read document %q: %w", ref, err)
	}
	return graph.Decode(raw)
}

// HTTP fetches documents with GET <base>/<ref>.
type HTTP struct {
	base string
	cc   *client.Client
}

// NewHTTP creates an HTTP source.
func NewHTTP(base string, timeout time.Duration) *HTTP {
	cc := client.New()
	if timeout > 0 {
		cc.SetTimeout(timeout)
	}
	return &HTTP{base: strings.TrimRight(base, "/"), cc: cc}
}

// FetchDocument downloads and decodes ref. A 404 maps to ErrDocumentNotFound.
func (h *HTTP) FetchDocument(ctx context.Context, ref string) (*graph.Document, error) {
	resp, err := h.cc.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(h.base + "/" + url.PathEscape(ref))
	if err != nil {
		return nil, fmt.Errorf("splitflow: fetch document %q: %w", ref, err)
	}
	defer resp.Close()

	switch code := resp.StatusCode(); {
	case code == 404:
		return nil, fmt.Errorf("splitflow: document %q: %w", ref, splitflow.ErrDocumentNotFound)
	case code < 200 || code > 299:
		return nil, fmt.Errorf("splitflow: fetch document %q: unexpected status %d", ref, code)
	}
	return graph.Decode(resp.Body())
}
