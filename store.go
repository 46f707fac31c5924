package splitflow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMalformedDocument       = errors.New("splitflow: malformed document")
	ErrGraphTooLarge           = errors.New("splitflow: graph exceeds configured limits")
	ErrAmbiguousRouteMapping   = errors.New("splitflow: ambiguous route mapping")
	ErrInvalidAdjustmentSyntax = errors.New("splitflow: invalid adjustment syntax")
	ErrInvalidPolicy           = errors.New("splitflow: invalid policy")
	ErrVersionNotFound         = errors.New("splitflow: version not found")
	ErrDocumentNotFound        = errors.New("splitflow: document not found")
)

// WarningKind classifies a recoverable problem met while processing a document.
type WarningKind string

const (
	WarnDanglingEdge          WarningKind = "dangling_edge"
	WarnDuplicateNode         WarningKind = "duplicate_node"
	WarnDuplicateDefault      WarningKind = "duplicate_default"
	WarnDuplicateKey          WarningKind = "duplicate_key"
	WarnAmbiguousRouteMapping WarningKind = "ambiguous_route_mapping"
	WarnNoEntryNodes          WarningKind = "no_entry_nodes"
	WarnUnknownMethod         WarningKind = "unknown_method"
	WarnConflictingPrimary    WarningKind = "conflicting_primary"
	WarnTruncatedPath         WarningKind = "truncated_path"
)

// Warning is returned next to a result instead of aborting the call.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	NodeID  string      `json:"node_id,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.NodeID == "" {
		return string(w.Kind) + ": " + w.Message
	}
	return string(w.Kind) + " [" + w.NodeID + "]: " + w.Message
}

// Version is one persisted final table.
type Version struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Policy      Policy    `json:"policy"`
	DocumentRef string    `json:"document_ref,omitempty"`
	Adjustment  string    `json:"adjustment,omitempty"`
	Report      string    `json:"report,omitempty"`
	Rows        []Row     `json:"rows"`
}

// Store defines the contract for persisting and retrieving configuration
// versions. Saving never overwrites: every call gets a fresh ID and timestamp.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Versions
	SaveVersion(ctx context.Context, v *Version) (*Version, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*Version, error)
	LatestVersion(ctx context.Context) (*Version, error)
	ListVersions(ctx context.Context, limit int) ([]Version, error)
}
