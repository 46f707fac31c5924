// Package service wires the extraction and reconciliation engine to its
// collaborators: document sources, the version store and report delivery.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/adjust"
	"github.com/meikuraledutech/splitflow/extract"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/meikuraledutech/splitflow/reconcile"
	"github.com/meikuraledutech/splitflow/report"
)

// DocumentSource fetches a workflow document by reference.
type DocumentSource interface {
	FetchDocument(ctx context.Context, ref string) (*graph.Document, error)
}

// Delivery is what a Notifier sends out after a reconcile.
type Delivery struct {
	VersionID   string             `json:"version_id,omitempty"`
	DocumentRef string             `json:"document_ref,omitempty"`
	Policy      splitflow.Policy   `json:"policy"`
	Report      string             `json:"report"`
	Changes     []splitflow.Change `json:"changes"`
}

// Notifier delivers a report.
type Notifier interface {
	Notify(ctx context.Context, d Delivery) error
}

// Options configures an Analyzer.
type Options struct {
	Limits     graph.Limits
	Extract    extract.Options
	RouteNames [3]string
}

// Analyzer runs extraction and reconciliation. Store and Notifier are
// optional; Docs is only needed for requests that reference a document.
type Analyzer struct {
	docs     DocumentSource
	store    splitflow.Store
	notifier Notifier
	log      *slog.Logger
	opts     Options
}

// New creates an Analyzer.
func New(docs DocumentSource, store splitflow.Store, notifier Notifier, log *slog.Logger, opts Options) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	if opts.RouteNames == ([3]string{}) {
		opts.RouteNames = report.DefaultRouteNames
	}
	return &Analyzer{docs: docs, store: store, notifier: notifier, log: log, opts: opts}
}

// Extraction is the canonical view of one document.
type Extraction struct {
	Table    extract.Table       `json:"table"`
	Config   splitflow.Config    `json:"config"`
	Warnings []splitflow.Warning `json:"warnings"`
}

// Extract builds the canonical table of doc.
func (a *Analyzer) Extract(ctx context.Context, doc *graph.Document) (*Extraction, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "service.Extract",
		trace.WithAttributes(attribute.Int("document.nodes", len(doc.Nodes))))
	defer span.End()

	ex, err := a.extract(ctx, doc)
	runLatency.WithLabelValues("extract", status(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("table.rows", len(ex.Table)))
	span.SetStatus(codes.Ok, "")
	return ex, nil
}

// ExtractRef fetches ref from the document source and extracts it.
func (a *Analyzer) ExtractRef(ctx context.Context, ref string) (*Extraction, error) {
	doc, err := a.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.Extract(ctx, doc)
}

func (a *Analyzer) extract(ctx context.Context, doc *graph.Document) (*Extraction, error) {
	g, warnings, err := graph.Build(doc, a.opts.Limits)
	if err != nil {
		return nil, err
	}
	table, more, err := extract.FromGraph(g, a.opts.Extract)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, more...)

	for _, w := range warnings {
		warningsTotal.WithLabelValues(string(w.Kind)).Inc()
		a.log.WarnContext(ctx, "document warning", "kind", w.Kind, "node", w.NodeID, "message", w.Message)
	}
	rowsExtracted.Observe(float64(len(table)))
	a.log.DebugContext(ctx, "document extracted", "nodes", g.Len(), "edges", g.EdgeCount(), "rows", len(table))

	return &Extraction{Table: table, Config: table.Config(), Warnings: warnings}, nil
}

func (a *Analyzer) fetch(ctx context.Context, ref string) (*graph.Document, error) {
	if a.docs == nil {
		return nil, fmt.Errorf("splitflow: no document source for %q: %w", ref, splitflow.ErrDocumentNotFound)
	}
	doc, err := a.docs.FetchDocument(ctx, ref)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("splitflow: document %q: %w", ref, splitflow.ErrDocumentNotFound)
	}
	return doc, nil
}

// ReconcileRequest describes one reconcile run. Document takes precedence
// over DocumentRef.
type ReconcileRequest struct {
	DocumentRef    string
	Document       *graph.Document
	AdjustmentText string
	Policy         splitflow.Policy
}

// Outcome is the result of a reconcile run.
type Outcome struct {
	Version   *splitflow.Version     `json:"version,omitempty"`
	Report    string                 `json:"report"`
	Final     splitflow.Config       `json:"final"`
	Changes   []splitflow.Change     `json:"changes"`
	Collapsed splitflow.CollapseInfo `json:"collapsed,omitempty"`
	Warnings  []splitflow.Warning    `json:"warnings"`
	Delivered bool                   `json:"delivered"`
}

// Reconcile extracts the current configuration, applies the adjustment,
// persists the resulting table as a new version and delivers the report.
// The document and the latest stored version are loaded concurrently.
func (a *Analyzer) Reconcile(ctx context.Context, req ReconcileRequest) (*Outcome, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "service.Reconcile",
		trace.WithAttributes(
			attribute.String("document.ref", req.DocumentRef),
			attribute.String("policy", string(req.Policy)),
		))
	defer span.End()

	out, err := a.reconcile(ctx, req)
	runLatency.WithLabelValues("reconcile", status(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.log.ErrorContext(ctx, "reconcile failed", "document", req.DocumentRef, "error", err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("changes", len(out.Changes)))
	span.SetStatus(codes.Ok, "")
	return out, nil
}

func (a *Analyzer) reconcile(ctx context.Context, req ReconcileRequest) (*Outcome, error) {
	policy := req.Policy
	if policy == "" {
		policy = splitflow.PolicyUpdate
	}
	if _, err := splitflow.ParsePolicy(string(policy)); err != nil {
		return nil, err
	}
	requested, err := adjust.Parse(req.AdjustmentText)
	if err != nil {
		return nil, err
	}

	doc := req.Document
	var latest *splitflow.Version
	g, gctx := errgroup.WithContext(ctx)
	if doc == nil {
		g.Go(func() error {
			d, err := a.fetch(gctx, req.DocumentRef)
			doc = d
			return err
		})
	}
	if a.store != nil {
		g.Go(func() error {
			v, err := a.store.LatestVersion(gctx)
			if err != nil {
				return fmt.Errorf("splitflow: load latest version: %w", err)
			}
			latest = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ex, err := a.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	res := reconcile.Reconcile(ex.Config, requested, policy)
	for _, c := range res.Changes {
		changesTotal.WithLabelValues(c.PaymentMethod, string(c.Action)).Inc()
	}

	text := report.Render(report.Input{
		Changes:    res.Changes,
		Collapsed:  res.Collapsed,
		Reference:  reference(latest, ex.Table),
		RouteNames: a.opts.RouteNames,
	})

	out := &Outcome{
		Report:    text,
		Final:     res.Final,
		Changes:   res.Changes,
		Collapsed: res.Collapsed,
		Warnings:  ex.Warnings,
	}

	if a.store != nil {
		v, err := a.store.SaveVersion(ctx, &splitflow.Version{
			Policy:      policy,
			DocumentRef: req.DocumentRef,
			Adjustment:  req.AdjustmentText,
			Report:      text,
			Rows:        extract.MergeTable(ex.Table, res.Final),
		})
		if err != nil {
			return nil, fmt.Errorf("splitflow: save version: %w", err)
		}
		out.Version = v
	}

	a.log.InfoContext(ctx, "reconciled",
		"document", req.DocumentRef,
		"policy", policy,
		"changes", len(res.Changes),
		"warnings", len(ex.Warnings))

	if a.notifier != nil {
		d := Delivery{DocumentRef: req.DocumentRef, Policy: policy, Report: text, Changes: res.Changes}
		if out.Version != nil {
			d.VersionID = out.Version.ID.String()
		}
		err := a.notifier.Notify(ctx, d)
		deliveriesTotal.WithLabelValues(status(err)).Inc()
		if err != nil {
			a.log.WarnContext(ctx, "report delivery failed", "error", err)
		} else {
			out.Delivered = true
		}
	}
	return out, nil
}

// reference returns the rows kept outside reconciliation: the non-primary
// rows of the latest stored version, or of the freshly extracted table when
// nothing has been stored yet.
func reference(latest *splitflow.Version, table extract.Table) []splitflow.Row {
	rows := []splitflow.Row(table)
	if latest != nil {
		rows = latest.Rows
	}
	var out []splitflow.Row
	for _, r := range rows {
		if !extract.Primary(r) {
			out = append(out, r)
		}
	}
	return out
}
