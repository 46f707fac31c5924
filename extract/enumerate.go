package extract

import (
	"fmt"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/classify"
	"github.com/meikuraledutech/splitflow/graph"
)

// SplitRecord is one (node, currency) combination found by Enumerate.
type SplitRecord struct {
	PaymentMethod string
	Currency      string
	Network       string
	Tokenized     splitflow.Tokenization
	ThreeDS       string
	Weights       splitflow.Weights
	NodeID        string
	NodeName      string
	Path          classify.Path
}

// Options controls traversal. MaxVisits caps the number of node visits
// across all paths; layered graphs can have exponentially many paths even
// when they are small.
type Options struct {
	MaxDepth  int        `yaml:"max_depth" json:"max_depth" validate:"gte=1"`
	MaxVisits int        `yaml:"max_visits" json:"max_visits" validate:"gte=0"`
	Slots     RouteSlots `yaml:"-" json:"-"`
}

// DefaultOptions is used when a caller has no configuration.
var DefaultOptions = Options{MaxDepth: 64, MaxVisits: 200000, Slots: DefaultSlots}

type walker struct {
	g        *graph.Graph
	opts     Options
	onPath   []bool
	visits   int
	err      error
	records  []SplitRecord
	warnings []splitflow.Warning
	warned   map[int]bool
	deep     map[int]bool
	looped   map[int]bool
}

// Enumerate walks every path from every entry node and returns one record
// per reachable splitter and currency. Paths that reach a node without
// outgoing edges but name a currency or payment method produce NoSplit
// records. Cycles are cut by never revisiting a node already on the current
// path, and no edge is followed past opts.MaxDepth; cut paths are abandoned
// and reported as truncated_path warnings. Exceeding opts.MaxVisits fails
// with ErrGraphTooLarge.
func Enumerate(g *graph.Graph, opts Options) ([]SplitRecord, []splitflow.Warning, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions.MaxDepth
	}
	if opts.MaxVisits <= 0 {
		opts.MaxVisits = DefaultOptions.MaxVisits
	}
	if opts.Slots.empty() {
		opts.Slots = DefaultSlots
	}
	w := &walker{
		g:      g,
		opts:   opts,
		onPath: make([]bool, g.Len()),
		warned: make(map[int]bool),
		deep:   make(map[int]bool),
		looped: make(map[int]bool),
	}

	entries := g.EntryNodes()
	if len(entries) == 0 {
		w.warnings = append(w.warnings, splitflow.Warning{
			Kind:    splitflow.WarnNoEntryNodes,
			Message: "document has no trigger node",
		})
		return nil, w.warnings, nil
	}
	for _, i := range entries {
		n := g.Node(i)
		w.onPath[i] = true
		w.visit(i, classify.Path{{Label: n.Name, NodeID: n.ID}}, 0)
		w.onPath[i] = false
		if w.err != nil {
			return nil, nil, w.err
		}
	}
	return w.records, w.warnings, nil
}

func (w *walker) visit(i int, path classify.Path, depth int) {
	if w.err != nil {
		return
	}
	w.visits++
	if w.visits > w.opts.MaxVisits {
		w.err = fmt.Errorf("%w: more than %d node visits", splitflow.ErrGraphTooLarge, w.opts.MaxVisits)
		return
	}

	n := w.g.Node(i)
	if n.Kind == graph.KindRouteSplitter {
		w.splitter(n, i, path)
		return
	}

	out := w.g.EdgesFrom(i)
	if len(out) == 0 {
		if depth == 0 {
			return
		}
		attrs := classify.Classify(path)
		if attrs.HasEvidence() {
			w.emit(n, classify.Resolve(attrs), splitflow.NoSplit, path)
		}
		return
	}

	if depth >= w.opts.MaxDepth {
		if !w.deep[i] {
			w.deep[i] = true
			w.truncated(n.ID, fmt.Sprintf("path cut at depth %d", depth))
		}
		return
	}

	for _, e := range out {
		edge := w.g.Edge(e)
		if w.onPath[edge.To] {
			if !w.looped[e] {
				w.looped[e] = true
				w.truncated(n.ID, fmt.Sprintf("edge to %s leads back onto the current path", w.g.Node(edge.To).ID))
			}
			continue
		}
		pred, label := w.g.Extract(e)
		next := make(classify.Path, len(path), len(path)+1)
		copy(next, path)
		next = append(next, classify.Segment{
			Label:     label,
			Predicate: pred,
			IsDefault: edge.Kind == graph.Default,
			NodeID:    w.g.Node(edge.To).ID,
		})

		w.onPath[edge.To] = true
		w.visit(edge.To, next, depth+1)
		w.onPath[edge.To] = false
	}
}

func (w *walker) truncated(nodeID, msg string) {
	w.warnings = append(w.warnings, splitflow.Warning{
		Kind:    splitflow.WarnTruncatedPath,
		NodeID:  nodeID,
		Message: msg,
	})
}

func (w *walker) splitter(n graph.Node, i int, path classify.Path) {
	spec, err := ExtractSplit(n, w.opts.Slots)
	if err != nil {
		if !w.warned[i] {
			w.warned[i] = true
			w.warnings = append(w.warnings, splitflow.Warning{
				Kind:    splitflow.WarnAmbiguousRouteMapping,
				NodeID:  n.ID,
				Message: fmt.Sprintf("splitter %q skipped: %v", n.Name, err),
			})
		}
		return
	}
	w.emit(n, classify.Resolve(classify.Classify(path)), spec.Weights, path)
}

func (w *walker) emit(n graph.Node, attrs classify.Attributes, weights splitflow.Weights, path classify.Path) {
	currencies := attrs.Currencies
	if len(currencies) == 0 {
		currencies = []string{splitflow.OtherCurrency}
	}
	for _, c := range currencies {
		w.records = append(w.records, SplitRecord{
			PaymentMethod: attrs.PaymentMethod,
			Currency:      splitflow.NormalizeCurrency(c),
			Network:       attrs.Network,
			Tokenized:     attrs.Tokenized,
			ThreeDS:       attrs.ThreeDS,
			Weights:       weights,
			NodeID:        n.ID,
			NodeName:      n.Name,
			Path:          path,
		})
	}
}
