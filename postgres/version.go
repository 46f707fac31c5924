package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meikuraledutech/splitflow"
)

// SaveVersion inserts v and its rows in one transaction. The ID and
// CreatedAt of v are always assigned here.
func (s *PGStore) SaveVersion(ctx context.Context, v *splitflow.Version) (*splitflow.Version, error) {
	out := *v
	out.ID = uuid.New()
	out.Rows = append([]splitflow.Row(nil), v.Rows...)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("splitflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO split_config_versions (id, policy, document_ref, adjustment, report)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		out.ID, string(out.Policy), out.DocumentRef, out.Adjustment, out.Report,
	).Scan(&out.CreatedAt); err != nil {
		return nil, fmt.Errorf("splitflow: insert version: %w", err)
	}

	for i, r := range out.Rows {
		a, b, c := weightColumns(r.Weights)
		if _, err := tx.Exec(ctx,
			`INSERT INTO split_config_rows
			   (version_id, position, payment_method, network, currency, affinity,
			    adaptive_3ds, note, tokenized, weight_a, weight_b, weight_c)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			out.ID, i, r.PaymentMethod, r.Network, r.Currency, r.Affinity,
			r.ThreeDS, r.Note, tokenColumn(r.Tokenized), a, b, c,
		); err != nil {
			return nil, fmt.Errorf("splitflow: insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("splitflow: commit: %w", err)
	}
	return &out, nil
}

// GetVersion fetches a version and its rows.
// Returns nil, nil if not found.
func (s *PGStore) GetVersion(ctx context.Context, id uuid.UUID) (*splitflow.Version, error) {
	v, err := s.scanVersion(ctx,
		`SELECT id, policy, document_ref, adjustment, report, created_at
		 FROM split_config_versions WHERE id = $1`, id)
	if v == nil || err != nil {
		return v, err
	}
	if v.Rows, err = s.listRows(ctx, v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

// LatestVersion fetches the most recently saved version and its rows.
// Returns nil, nil if nothing has been saved.
func (s *PGStore) LatestVersion(ctx context.Context) (*splitflow.Version, error) {
	v, err := s.scanVersion(ctx,
		`SELECT id, policy, document_ref, adjustment, report, created_at
		 FROM split_config_versions ORDER BY created_at DESC, id DESC LIMIT 1`)
	if v == nil || err != nil {
		return v, err
	}
	if v.Rows, err = s.listRows(ctx, v.ID); err != nil {
		return nil, err
	}
	return v, nil
}

// ListVersions returns version headers newest first, without rows.
// A limit of zero or less returns everything.
func (s *PGStore) ListVersions(ctx context.Context, limit int) ([]splitflow.Version, error) {
	q := `SELECT id, policy, document_ref, adjustment, report, created_at
	      FROM split_config_versions ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("splitflow: list versions: %w", err)
	}
	defer rows.Close()

	var out []splitflow.Version
	for rows.Next() {
		var v splitflow.Version
		var policy string
		if err := rows.Scan(&v.ID, &policy, &v.DocumentRef, &v.Adjustment, &v.Report, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("splitflow: scan version: %w", err)
		}
		v.Policy = splitflow.Policy(policy)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("splitflow: rows versions: %w", err)
	}
	return out, nil
}

func (s *PGStore) scanVersion(ctx context.Context, q string, args ...any) (*splitflow.Version, error) {
	var v splitflow.Version
	var policy string
	var created time.Time
	err := s.db.QueryRow(ctx, q, args...).
		Scan(&v.ID, &policy, &v.DocumentRef, &v.Adjustment, &v.Report, &created)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("splitflow: get version: %w", err)
	}
	v.Policy = splitflow.Policy(policy)
	v.CreatedAt = created
	return &v, nil
}

func (s *PGStore) listRows(ctx context.Context, id uuid.UUID) ([]splitflow.Row, error) {
	rows, err := s.db.Query(ctx,
		`SELECT payment_method, network, currency, affinity, adaptive_3ds, note,
		        tokenized, weight_a, weight_b, weight_c
		 FROM split_config_rows WHERE version_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("splitflow: query rows: %w", err)
	}
	defer rows.Close()

	out := []splitflow.Row{}
	for rows.Next() {
		var r splitflow.Row
		var tokenized *bool
		var a, b, c *int
		if err := rows.Scan(&r.PaymentMethod, &r.Network, &r.Currency, &r.Affinity,
			&r.ThreeDS, &r.Note, &tokenized, &a, &b, &c); err != nil {
			return nil, fmt.Errorf("splitflow: scan row: %w", err)
		}
		r.Tokenized = tokenFromColumn(tokenized)
		r.Weights = weightsFromColumns(a, b, c)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("splitflow: rows: %w", err)
	}
	return out, nil
}

func weightColumns(w splitflow.Weights) (a, b, c *int) {
	if w.IsNoSplit() {
		return nil, nil, nil
	}
	return &w.A, &w.B, &w.C
}

func weightsFromColumns(a, b, c *int) splitflow.Weights {
	if a == nil || b == nil || c == nil {
		return splitflow.NoSplit
	}
	return splitflow.NewWeights(*a, *b, *c)
}

func tokenColumn(t splitflow.Tokenization) *bool {
	switch t {
	case splitflow.TokenTrue:
		v := true
		return &v
	case splitflow.TokenFalse:
		v := false
		return &v
	}
	return nil
}

func tokenFromColumn(b *bool) splitflow.Tokenization {
	switch {
	case b == nil:
		return splitflow.TokenUnknown
	case *b:
		return splitflow.TokenTrue
	}
	return splitflow.TokenFalse
}
