package postgres

import "context"

// Weight columns are NULL for rows without a split. tokenized is NULL when
// the flag is unknown.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS split_config_versions (
    id           UUID PRIMARY KEY,
    policy       TEXT NOT NULL,
    document_ref TEXT NOT NULL DEFAULT '',
    adjustment   TEXT NOT NULL DEFAULT '',
    report       TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS split_config_rows (
    version_id     UUID NOT NULL REFERENCES split_config_versions(id) ON DELETE CASCADE,
    position       INT NOT NULL,
    payment_method TEXT NOT NULL,
    network        TEXT NOT NULL DEFAULT '',
    currency       TEXT NOT NULL,
    affinity       BOOLEAN NOT NULL DEFAULT FALSE,
    adaptive_3ds   TEXT NOT NULL DEFAULT '',
    note           TEXT NOT NULL DEFAULT '',
    tokenized      BOOLEAN,
    weight_a       INT,
    weight_b       INT,
    weight_c       INT,
    PRIMARY KEY (version_id, position)
);

CREATE TABLE IF NOT EXISTS workflow_nodes (
    document_ref TEXT NOT NULL,
    position     INT NOT NULL,
    id           TEXT NOT NULL,
    kind         TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    data         JSONB NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (document_ref, position)
);

CREATE TABLE IF NOT EXISTS workflow_edges (
    document_ref  TEXT NOT NULL,
    node_position INT NOT NULL,
    position      INT NOT NULL,
    kind          TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    next          TEXT NOT NULL DEFAULT '',
    data          JSONB NOT NULL DEFAULT '{}',
    PRIMARY KEY (document_ref, node_position, position),
    FOREIGN KEY (document_ref, node_position)
        REFERENCES workflow_nodes(document_ref, position) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_split_config_versions_created ON split_config_versions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_workflow_edges_next           ON workflow_edges(document_ref, next);
`

// CreateSchema creates the version and workflow tables if they don't exist.
func (s *PGStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops every table created by CreateSchema.
func (s *PGStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx,
		`DROP TABLE IF EXISTS workflow_edges, workflow_nodes, split_config_rows, split_config_versions CASCADE;`)
	return err
}
