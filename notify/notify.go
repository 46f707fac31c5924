// Package notify delivers reconcile reports.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3/client"

	"github.com/meikuraledutech/splitflow/service"
)

// Webhook posts each delivery as JSON to a URL.
type Webhook struct {
	url string
	cc  *client.Client
}

// NewWebhook creates a Webhook notifier.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	cc := client.New()
	if timeout > 0 {
		cc.SetTimeout(timeout)
	}
	return &Webhook{url: url, cc: cc}
}

// Notify fails on transport errors and non-2xx responses.
func (w *Webhook) Notify(ctx context.Context, d service.Delivery) error {
	resp, err := w.cc.R().SetContext(ctx).SetJSON(d).Post(w.url)
	if err != nil {
		return fmt.Errorf("splitflow: webhook: %w", err)
	}
	defer resp.Close()
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return fmt.Errorf("splitflow: webhook: unexpected status %d", code)
	}
	return nil
}

// Log writes each delivery to a logger.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log notifier.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Notify(ctx context.Context, d service.Delivery) error {
	l.log.InfoContext(ctx, "report",
		"version", d.VersionID,
		"document", d.DocumentRef,
		"policy", d.Policy,
		"changes", len(d.Changes),
		"report", d.Report)
	return nil
}
