package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/extract"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/meikuraledutech/splitflow/inmem"
	"github.com/meikuraledutech/splitflow/report"
)

const cardDoc = `{"nodes": [
  {"id": "t", "kind": "Trigger", "name": "Card payments",
   "edges": {"conditional": [{"name": "Currency in USD/EUR", "next": "s"}]}},
  {"id": "s", "kind": "RouteSplitter", "name": "Main split",
   "routes": [{"name": "Adyen", "percentage": 20}, {"name": "Stripe", "percentage": 40}, {"name": "Airwallex", "percentage": 40}]}
]}`

type recordingNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
}

func (n *recordingNotifier) Notify(_ context.Context, d Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, d)
	return n.err
}

func newAnalyzer(t *testing.T, docs DocumentSource, store splitflow.Store, n Notifier) *Analyzer {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(docs, store, n, log, Options{Limits: graph.DefaultLimits, Extract: extract.DefaultOptions})
}

func decode(t *testing.T, raw string) *graph.Document {
	t.Helper()
	doc, err := graph.Decode([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestAnalyzer_Extract(t *testing.T) {
	a := newAnalyzer(t, nil, nil, nil)
	ex, err := a.Extract(context.Background(), decode(t, cardDoc))
	require.NoError(t, err)

	assert.Len(t, ex.Table, 2)
	assert.Equal(t, splitflow.Config{"CARD": {
		"USD": splitflow.NewWeights(20, 40, 40),
		"EUR": splitflow.NewWeights(20, 40, 40),
	}}, ex.Config)
	assert.Empty(t, ex.Warnings)
}

func TestAnalyzer_ExtractTooLarge(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(nil, nil, nil, log, Options{Limits: graph.Limits{MaxNodes: 1}})
	_, err := a.Extract(context.Background(), decode(t, cardDoc))
	assert.ErrorIs(t, err, splitflow.ErrGraphTooLarge)
}

func TestAnalyzer_ReconcileUpdate(t *testing.T) {
	ctx := context.Background()
	docs := inmem.NewDocuments()
	require.NoError(t, docs.SaveDocument(ctx, "card", decode(t, cardDoc)))
	store := inmem.New()
	notifier := &recordingNotifier{}
	a := newAnalyzer(t, docs, store, notifier)

	out, err := a.Reconcile(ctx, ReconcileRequest{
		DocumentRef:    "card",
		AdjustmentText: "CARD\nUSD - 30%:30%:40%",
		Policy:         splitflow.PolicyUpdate,
	})
	require.NoError(t, err)

	require.Len(t, out.Changes, 1)
	c := out.Changes[0]
	assert.Equal(t, splitflow.ActionModify, c.Action)
	assert.Equal(t, "USD", c.Currency)
	assert.Equal(t, splitflow.NewWeights(20, 40, 40), *c.Old)
	assert.Equal(t, splitflow.NewWeights(30, 30, 40), *c.New)
	assert.Equal(t, splitflow.NewWeights(20, 40, 40), out.Final["CARD"]["EUR"])
	assert.Equal(t, "CARD\n  Modify USD: 20:40:40% -> 30:30:40%", out.Report)

	require.NotNil(t, out.Version)
	latest, err := store.LatestVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, out.Version.ID, latest.ID)
	assert.Equal(t, "card", latest.DocumentRef)
	assert.True(t, out.Final.Equal(extract.Table(latest.Rows).Config()))

	assert.True(t, out.Delivered)
	require.Len(t, notifier.deliveries, 1)
	assert.Equal(t, out.Version.ID.String(), notifier.deliveries[0].VersionID)
}

func TestAnalyzer_ReconcileInlineOverride(t *testing.T) {
	a := newAnalyzer(t, nil, nil, nil)
	out, err := a.Reconcile(context.Background(), ReconcileRequest{
		Document:       decode(t, cardDoc),
		AdjustmentText: "CARD\nUSD - 30%:30%:40%",
		Policy:         splitflow.PolicyOverride,
	})
	require.NoError(t, err)
	assert.Nil(t, out.Version)
	assert.False(t, out.Delivered)
	assert.Contains(t, out.Report, "  Remove EUR")
}

func TestAnalyzer_ReconcileReferenceFromLatestVersion(t *testing.T) {
	ctx := context.Background()
	store := inmem.New()
	_, err := store.SaveVersion(ctx, &splitflow.Version{Rows: []splitflow.Row{
		{PaymentMethod: "CARD", Network: splitflow.NetworkAmex, Currency: "SGD", Weights: splitflow.NewWeights(30, 30, 40)},
	}})
	require.NoError(t, err)

	a := newAnalyzer(t, nil, store, nil)
	out, err := a.Reconcile(ctx, ReconcileRequest{
		Document:       decode(t, cardDoc),
		AdjustmentText: "CARD\nUSD - 30%:30%:40%",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.Report, "(same split already used by: SGD)"))
}

func TestAnalyzer_ReconcileErrors(t *testing.T) {
	ctx := context.Background()
	a := newAnalyzer(t, inmem.NewDocuments(), inmem.New(), nil)

	_, err := a.Reconcile(ctx, ReconcileRequest{DocumentRef: "missing", AdjustmentText: "CARD\nUSD - 1%:1%:98%"})
	assert.ErrorIs(t, err, splitflow.ErrDocumentNotFound)

	_, err = a.Reconcile(ctx, ReconcileRequest{Document: decode(t, cardDoc), AdjustmentText: "nothing here"})
	assert.ErrorIs(t, err, splitflow.ErrInvalidAdjustmentSyntax)

	_, err = a.Reconcile(ctx, ReconcileRequest{Document: decode(t, cardDoc), AdjustmentText: "CARD\nUSD - 1%:1%:98%", Policy: "merge"})
	assert.ErrorIs(t, err, splitflow.ErrInvalidPolicy)
}

func TestAnalyzer_DeliveryFailureIsNotFatal(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("webhook down")}
	a := newAnalyzer(t, nil, inmem.New(), notifier)

	out, err := a.Reconcile(context.Background(), ReconcileRequest{
		Document:       decode(t, cardDoc),
		AdjustmentText: "CARD\nUSD - 30%:30%:40%",
	})
	require.NoError(t, err)
	assert.False(t, out.Delivered)
	assert.NotNil(t, out.Version)
}

const mixedDoc = `{"nodes": [
  {"id": "card", "kind": "Trigger", "name": "Card payments",
   "edges": {"conditional": [{"name": "Network != Amex", "next": "cur"}],
     "default": {"name": "Default", "next": "amex"}}},
  {"id": "cur", "kind": "Action",
   "edges": {"conditional": [
       {"name": "Currency in USD/EUR/JPY/CAD/GBP/AUD", "next": "s1"},
       {"name": "Currency in SGD/HKD/NZD", "next": "s2"}],
     "default": {"name": "Default", "next": "s3"}}},
  {"id": "amex", "kind": "RouteSplitter", "name": "Amex",
   "routes": [{"name": "Adyen", "percentage": 100}, {"name": "Stripe", "percentage": 0}, {"name": "Airwallex", "percentage": 0}]},
  {"id": "s1", "kind": "RouteSplitter", "routes": [{"name": "Adyen", "percentage": 20}, {"name": "Stripe", "percentage": 40}, {"name": "Airwallex", "percentage": 40}]},
  {"id": "s2", "kind": "RouteSplitter", "routes": [{"name": "Adyen", "percentage": 50}, {"name": "Stripe", "percentage": 50}, {"name": "Airwallex", "percentage": 0}]},
  {"id": "s3", "kind": "RouteSplitter", "routes": [{"name": "Adyen", "percentage": 0}, {"name": "Stripe", "percentage": 0}, {"name": "Airwallex", "percentage": 100}]},
  {"id": "gp", "kind": "Trigger", "name": "Google Pay",
   "edges": {"conditional": [{"name": "Currency in MXN/BRL/USD", "next": "s1"}],
     "default": {"name": "Default", "next": "s2"}}}
]}`

const mixedAdjustment = `CARD
USD/JPY/GBP - 30%:30%:40%
NZD/SGD - 20%:40%:40%
OTHER - 100%:0%:0%

GP
BRL/MXN - 0%:50%:50%
`

func TestAnalyzer_ReconcileIsDeterministic(t *testing.T) {
	run := func() (table, merged, rendered []byte) {
		ctx := context.Background()
		store := inmem.New()
		a := newAnalyzer(t, nil, store, nil)
		doc := decode(t, mixedDoc)

		ex, err := a.Extract(ctx, doc)
		require.NoError(t, err)
		var tb bytes.Buffer
		require.NoError(t, report.WriteCSV(&tb, ex.Table, extract.DefaultSlots.Names()))

		out, err := a.Reconcile(ctx, ReconcileRequest{
			Document:       doc,
			AdjustmentText: mixedAdjustment,
			Policy:         splitflow.PolicyUpdate,
		})
		require.NoError(t, err)
		require.NotNil(t, out.Version)
		var mb bytes.Buffer
		require.NoError(t, report.WriteCSV(&mb, out.Version.Rows, extract.DefaultSlots.Names()))

		changes, err := json.Marshal(out.Changes)
		require.NoError(t, err)
		return tb.Bytes(), mb.Bytes(), append([]byte(out.Report+"\n"), changes...)
	}

	table, merged, rendered := run()
	require.NotEmpty(t, table)
	require.NotEmpty(t, rendered)
	for i := 0; i < 20; i++ {
		gotTable, gotMerged, gotRendered := run()
		require.Equal(t, string(table), string(gotTable), "table csv run %d", i)
		require.Equal(t, string(merged), string(gotMerged), "merged csv run %d", i)
		require.Equal(t, string(rendered), string(gotRendered), "report run %d", i)
	}
}
