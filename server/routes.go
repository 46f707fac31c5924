package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/adjust"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/meikuraledutech/splitflow/service"
)

// documentStore is a document source that can also be written to.
type documentStore interface {
	service.DocumentSource
	SaveDocument(ctx context.Context, ref string, doc *graph.Document) error
}

type deps struct {
	analyzer   *service.Analyzer
	store      splitflow.Store
	docs       service.DocumentSource
	defaultRef string
	bodyLimit  int
	log        *slog.Logger
}

type structValidator struct {
	v *validator.Validate
}

func (s structValidator) Validate(out any) error {
	return s.v.Struct(out)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, splitflow.ErrMalformedDocument),
		errors.Is(err, splitflow.ErrInvalidAdjustmentSyntax),
		errors.Is(err, splitflow.ErrInvalidPolicy):
		return 400
	case errors.Is(err, splitflow.ErrGraphTooLarge):
		return 413
	case errors.Is(err, splitflow.ErrDocumentNotFound),
		errors.Is(err, splitflow.ErrVersionNotFound):
		return 404
	}
	return 500
}

func fail(c fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func newApp(d deps) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:       d.bodyLimit,
		StructValidator: structValidator{v: validator.New()},
	})

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := d.store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := d.store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Extraction ────────────────────────────────────────────────────
	// With ?ref= the document comes from the source, otherwise from the body.
	app.Post("/extract", func(c fiber.Ctx) error {
		if ref := c.Query("ref"); ref != "" {
			ex, err := d.analyzer.ExtractRef(c.Context(), ref)
			if err != nil {
				return fail(c, err)
			}
			return c.JSON(ex)
		}
		doc, err := graph.Decode(c.Body())
		if err != nil {
			return fail(c, err)
		}
		ex, err := d.analyzer.Extract(c.Context(), doc)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(ex)
	})

	// ── Reconciliation ────────────────────────────────────────────────
	app.Post("/reconcile", func(c fiber.Ctx) error {
		var req adjust.Request
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body: " + err.Error()})
		}
		policy, err := splitflow.ParsePolicy(req.AdjustmentMode)
		if err != nil {
			return fail(c, err)
		}
		rr := service.ReconcileRequest{
			DocumentRef:    req.DocumentRef,
			AdjustmentText: req.AdjustmentText,
			Policy:         policy,
		}
		if len(req.Document) > 0 {
			if rr.Document, err = graph.Decode(req.Document); err != nil {
				return fail(c, err)
			}
		}
		out, err := d.analyzer.Reconcile(c.Context(), rr)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(out)
	})

	// Chat tools post loosely formatted bodies here; the document is
	// always the configured default.
	app.Post("/webhook", func(c fiber.Ctx) error {
		text, policy, err := adjust.ParseRequest(c.Body())
		if err != nil {
			return fail(c, err)
		}
		d.log.InfoContext(c.Context(), "webhook received", "document", d.defaultRef, "policy", policy)
		out, err := d.analyzer.Reconcile(c.Context(), service.ReconcileRequest{
			DocumentRef:    d.defaultRef,
			AdjustmentText: text,
			Policy:         policy,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(out)
	})

	// ── Documents ─────────────────────────────────────────────────────
	app.Post("/documents/:ref", func(c fiber.Ctx) error {
		ds, ok := d.docs.(documentStore)
		if !ok {
			return c.Status(405).JSON(fiber.Map{"error": "document source is read-only"})
		}
		doc, err := graph.Decode(c.Body())
		if err != nil {
			return fail(c, err)
		}
		if err := ds.SaveDocument(c.Context(), c.Params("ref"), doc); err != nil {
			return fail(c, err)
		}
		return c.Status(201).JSON(doc)
	})

	app.Get("/documents/:ref", func(c fiber.Ctx) error {
		if d.docs == nil {
			return c.Status(404).JSON(fiber.Map{"error": "document not found"})
		}
		doc, err := d.docs.FetchDocument(c.Context(), c.Params("ref"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(doc)
	})

	// ── Versions ──────────────────────────────────────────────────────
	app.Get("/versions", func(c fiber.Ctx) error {
		versions, err := d.store.ListVersions(c.Context(), fiber.Query[int](c, "limit", 20))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if versions == nil {
			versions = []splitflow.Version{}
		}
		return c.JSON(versions)
	})

	app.Get("/versions/latest", func(c fiber.Ctx) error {
		v, err := d.store.LatestVersion(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if v == nil {
			return c.Status(404).JSON(fiber.Map{"error": "version not found"})
		}
		return c.JSON(v)
	})

	app.Get("/versions/:id", func(c fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid version id"})
		}
		v, err := d.store.GetVersion(c.Context(), id)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		if v == nil {
			return c.Status(404).JSON(fiber.Map{"error": "version not found"})
		}
		return c.JSON(v)
	})

	return app
}
