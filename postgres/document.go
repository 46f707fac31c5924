package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
)

// nodeData is the JSONB payload of a workflow node.
type nodeData struct {
	Routes []graph.RouteSpec `json:"routes,omitempty"`
}

// edgeData is the JSONB payload of a workflow edge.
type edgeData struct {
	Condition *graph.Condition `json:"condition,omitempty"`
}

// SaveDocument stores doc under ref, replacing any previous document with
// the same ref. Node order and edge order are preserved.
func (s *PGStore) SaveDocument(ctx context.Context, ref string, doc *graph.Document) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("splitflow: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Replace semantics. Edges go with their nodes.
	if _, err := tx.Exec(ctx, `DELETE FROM workflow_nodes WHERE document_ref = $1`, ref); err != nil {
		return fmt.Errorf("splitflow: delete nodes: %w", err)
	}

	for i, n := range doc.Nodes {
		data, err := json.Marshal(nodeData{Routes: n.Routes})
		if err != nil {
			return fmt.Errorf("splitflow: encode node %s: %w", n.ID, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO workflow_nodes (document_ref, position, id, kind, name, data)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ref, i, n.ID, string(n.Kind), n.Name, data,
		); err != nil {
			return fmt.Errorf("splitflow: insert node %s: %w", n.ID, err)
		}

		for j, e := range n.Edges {
			data, err := json.Marshal(edgeData{Condition: e.Condition})
			if err != nil {
				return fmt.Errorf("splitflow: encode edge %s/%d: %w", n.ID, j, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO workflow_edges (document_ref, node_position, position, kind, name, next, data)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				ref, i, j, e.Kind.String(), e.Name, e.Next, data,
			); err != nil {
				return fmt.Errorf("splitflow: insert edge %s/%d: %w", n.ID, j, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// FetchDocument loads the document stored under ref.
func (s *PGStore) FetchDocument(ctx context.Context, ref string) (*graph.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, kind, name, data FROM workflow_nodes WHERE document_ref = $1 ORDER BY position`, ref)
	if err != nil {
		return nil, fmt.Errorf("splitflow: query nodes: %w", err)
	}
	defer rows.Close()

	doc := &graph.Document{}
	for rows.Next() {
		var n graph.NodeSpec
		var kind string
		var raw []byte
		if err := rows.Scan(&n.ID, &kind, &n.Name, &raw); err != nil {
			return nil, fmt.Errorf("splitflow: scan node: %w", err)
		}
		var data nodeData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("splitflow: decode node %s: %w", n.ID, err)
		}
		n.Kind = graph.Kind(kind)
		n.Routes = data.Routes
		doc.Nodes = append(doc.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("splitflow: rows nodes: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("splitflow: document %q: %w", ref, splitflow.ErrDocumentNotFound)
	}

	rows, err = s.db.Query(ctx,
		`SELECT node_position, kind, name, next, data FROM workflow_edges
		 WHERE document_ref = $1 ORDER BY node_position, position`, ref)
	if err != nil {
		return nil, fmt.Errorf("splitflow: query edges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pos int
		var kind string
		var e graph.EdgeSpec
		var raw []byte
		if err := rows.Scan(&pos, &kind, &e.Name, &e.Next, &raw); err != nil {
			return nil, fmt.Errorf("splitflow: scan edge: %w", err)
		}
		if pos < 0 || pos >= len(doc.Nodes) {
			continue
		}
		var data edgeData
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("splitflow: decode edge: %w", err)
		}
		e.Kind = graph.Conditional
		if kind == graph.Default.String() {
			e.Kind = graph.Default
		}
		e.Condition = data.Condition
		doc.Nodes[pos].Edges = append(doc.Nodes[pos].Edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("splitflow: rows edges: %w", err)
	}

	return doc, nil
}

// DeleteDocument removes the document stored under ref.
// No error if the ref doesn't exist.
func (s *PGStore) DeleteDocument(ctx context.Context, ref string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM workflow_nodes WHERE document_ref = $1`, ref)
	if err != nil {
		return fmt.Errorf("splitflow: delete document: %w", err)
	}
	return nil
}
