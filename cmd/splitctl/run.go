package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/adjust"
	"github.com/meikuraledutech/splitflow/config"
	"github.com/meikuraledutech/splitflow/extract"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/meikuraledutech/splitflow/postgres"
	"github.com/meikuraledutech/splitflow/report"
	"github.com/meikuraledutech/splitflow/service"
)

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, cfg.Log.NewLogger(os.Stderr), nil
}

func readDocument(path string) (*graph.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return graph.Decode(raw)
}

// openStore connects to postgres when a database is configured.
func openStore(ctx context.Context, cfg config.Config) (*postgres.PGStore, func(), error) {
	if cfg.Database.URL == "" {
		return nil, func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return postgres.New(pool), pool.Close, nil
}

func analyzer(cfg config.Config, store splitflow.Store, log *slog.Logger) *service.Analyzer {
	return service.New(nil, store, nil, log, service.Options{
		Limits:     cfg.Limits,
		Extract:    cfg.ExtractOptions(),
		RouteNames: cfg.RouteNames(),
	})
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	doc, err := readDocument(args[0])
	if err != nil {
		return err
	}
	ex, err := analyzer(cfg, nil, log).Extract(cmd.Context(), doc)
	if err != nil {
		return err
	}
	for _, w := range ex.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}

	out := cmd.OutOrStdout()
	if asCSV {
		return report.WriteCSV(out, ex.Table, cfg.RouteNames())
	}
	_, err = fmt.Fprint(out, report.FormatTable(ex.Table, cfg.RouteNames()))
	return err
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	policy, err := splitflow.ParsePolicy(mode)
	if err != nil {
		return err
	}
	doc, err := readDocument(args[0])
	if err != nil {
		return err
	}
	text, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	pg, closeStore, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	var store splitflow.Store
	if pg != nil {
		store = pg
	}

	res, err := analyzer(cfg, store, log).Reconcile(cmd.Context(), service.ReconcileRequest{
		DocumentRef:    args[0],
		Document:       doc,
		AdjustmentText: string(text),
		Policy:         policy,
	})
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Report)
	if res.Version != nil {
		fmt.Fprintln(out, "saved version", res.Version.ID)
	}
	if asCSV {
		rows := []splitflow.Row(extract.TableFromConfig(res.Final))
		if res.Version != nil {
			rows = res.Version.Rows
		}
		fmt.Fprintln(out)
		return report.WriteCSV(out, rows, cfg.RouteNames())
	}
	return nil
}

func runFormat(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := report.ReadCSV(f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), adjust.Format(extract.Table(rows).Config()))
	return err
}

func runVersions(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	pg, closeStore, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if pg == nil {
		return errors.New("DATABASE_URL is not set")
	}

	versions, err := pg.ListVersions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPOLICY\tDOCUMENT")
	for _, v := range versions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.CreatedAt.Format("2006-01-02 15:04:05"), v.Policy, v.DocumentRef)
	}
	return tw.Flush()
}
