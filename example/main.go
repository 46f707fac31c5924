package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/adjust"
	"github.com/meikuraledutech/splitflow/extract"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/meikuraledutech/splitflow/inmem"
	"github.com/meikuraledutech/splitflow/notify"
	"github.com/meikuraledutech/splitflow/postgres"
	"github.com/meikuraledutech/splitflow/report"
	"github.com/meikuraledutech/splitflow/service"
)

const workflow = `{"nodes": [
  {"id": "trigger", "kind": "Trigger", "name": "Card payments",
   "edges": {
     "conditional": [{"name": "Network = Amex", "next": "amex"}],
     "default": {"name": "Default", "next": "currency"}}},
  {"id": "amex", "kind": "RouteSplitter", "name": "Amex split",
   "routes": [{"name": "Adyen", "percentage": 100}, {"name": "Stripe", "percentage": 0}, {"name": "Airwallex", "percentage": 0}]},
  {"id": "currency", "kind": "Action", "name": "Currency check",
   "edges": {
     "conditional": [{"name": "Currency in USD/CAD", "next": "main"}],
     "default": {"name": "Default", "next": "other"}}},
  {"id": "main", "kind": "RouteSplitter", "name": "Main split",
   "routes": [{"name": "Adyen", "percentage": 20}, {"name": "Stripe", "percentage": 40}, {"name": "Airwallex", "percentage": 40}]},
  {"id": "other", "kind": "RouteSplitter", "name": "Other split",
   "routes": [{"name": "Adyen", "percentage": 30}, {"name": "Stripe", "percentage": 30}, {"name": "Airwallex", "percentage": 40}]}
]}`

const adjustment = `CARD
USD/CAD - 30%:30%:40%
EUR - 50%:50%:0%
`

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Versions go to postgres when DATABASE_URL is set, memory otherwise.
	var store splitflow.Store = inmem.New()
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}

	// 1. Create tables
	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	// ── Store the workflow export ─────────────────────────────────────
	doc, err := graph.Decode([]byte(workflow))
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	docs := inmem.NewDocuments()
	if err := docs.SaveDocument(ctx, "card-routing", doc); err != nil {
		log.Fatalf("save document: %v", err)
	}

	analyzer := service.New(docs, store, notify.NewLog(logger), logger, service.Options{
		Limits:  graph.DefaultLimits,
		Extract: extract.DefaultOptions,
	})

	// ── Extract the current configuration ─────────────────────────────
	ex, err := analyzer.ExtractRef(ctx, "card-routing")
	if err != nil {
		log.Fatalf("extract: %v", err)
	}
	fmt.Println("\ncurrent table:")
	fmt.Print(report.FormatTable(ex.Table, report.DefaultRouteNames))
	fmt.Println("\ncurrent configuration as adjustment text:")
	fmt.Print(adjust.Format(ex.Config))

	// ── Reconcile an update request ───────────────────────────────────
	out, err := analyzer.Reconcile(ctx, service.ReconcileRequest{
		DocumentRef:    "card-routing",
		AdjustmentText: adjustment,
		Policy:         splitflow.PolicyUpdate,
	})
	if err != nil {
		log.Fatalf("reconcile: %v", err)
	}
	fmt.Println("\nreport:")
	fmt.Println(out.Report)
	fmt.Println("\nchanges:")
	printJSON(out.Changes)

	// ── Retrieve the stored version ───────────────────────────────────
	latest, err := store.LatestVersion(ctx)
	if err != nil {
		log.Fatalf("latest version: %v", err)
	}
	fmt.Printf("\nlatest version %s (%d rows):\n", latest.ID, len(latest.Rows))
	fmt.Print(report.FormatTable(latest.Rows, report.DefaultRouteNames))

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := store.DropSchema(ctx); err != nil {
		log.Fatalf("drop: %v", err)
	}
	fmt.Println("\nschema dropped")
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
