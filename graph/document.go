package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/meikuraledutech/splitflow"
)

// Kind is the role of a node in the workflow.
type Kind string

const (
	KindTrigger       Kind = "Trigger"
	KindAction        Kind = "Action"
	KindRouteSplitter Kind = "RouteSplitter"
)

// parseKind accepts both the canonical spelling and the exporter's
// upper-snake form (TRIGGER, ROUTE_SPLITTER, APPLICATION).
func parseKind(s string) Kind {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "TRIGGER":
		return KindTrigger
	case "ROUTESPLITTER", "SPLITTER", "SPLIT":
		return KindRouteSplitter
	}
	return KindAction
}

// EdgeKind tells a conditional branch from the fall-through branch.
type EdgeKind int

const (
	Conditional EdgeKind = iota
	Default
)

func (k EdgeKind) String() string {
	if k == Default {
		return "default"
	}
	return "conditional"
}

// Document is the decoded, shape-independent form of an exported workflow.
type Document struct {
	Nodes []NodeSpec `json:"nodes"`
}

// NodeSpec is one node as it appears in the document.
type NodeSpec struct {
	ID     string      `json:"id"`
	Kind   Kind        `json:"kind"`
	Name   string      `json:"name"`
	Edges  []EdgeSpec  `json:"edges,omitempty"`
	Routes []RouteSpec `json:"routes,omitempty"`
}

// EdgeSpec is one outgoing branch. Condition is nil on Default edges.
type EdgeSpec struct {
	Kind      EdgeKind   `json:"kind"`
	Name      string     `json:"name"`
	Condition *Condition `json:"condition,omitempty"`
	Next      string     `json:"next"`
}

// RouteSpec is one weighted output of a RouteSplitter.
type RouteSpec struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
}

// Condition is the raw boolean test of a conditional edge.
type Condition struct {
	Operator string             `json:"operator"`
	Operands []ConditionOperand `json:"operands"`
}

// ConditionOperand is one comparison inside a Condition.
type ConditionOperand struct {
	Expression Expression   `json:"expression"`
	Operator   string       `json:"operator"`
	Operand    OperandValue `json:"operand"`
}

// Expression holds the attribute path an operand compares. The exporter
// writes either {"path": ...} or a list of such objects.
type Expression struct {
	Path string `json:"path"`
}

func (e *Expression) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '[' {
		var list []Expression
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			*e = list[0]
		}
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &e.Path)
	}
	type plain Expression
	return json.Unmarshal(b, (*plain)(e))
}

// OperandValue is the literal side of a comparison, flattened to text.
// Lists are joined with "/".
type OperandValue struct {
	Value string `json:"value"`
}

func (v *OperandValue) UnmarshalJSON(b []byte) error {
	s, err := literalText(bytes.TrimSpace(b))
	if err != nil {
		return err
	}
	v.Value = s
	return nil
}

func literalText(b []byte) (string, error) {
	if len(b) == 0 || string(b) == "null" {
		return "", nil
	}
	switch b[0] {
	case '"':
		var s string
		err := json.Unmarshal(b, &s)
		return s, err
	case '{':
		var obj struct {
			Label json.RawMessage `json:"label"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return "", err
		}
		if s, err := literalText(bytes.TrimSpace(obj.Label)); err == nil && s != "" {
			return s, nil
		}
		return literalText(bytes.TrimSpace(obj.Value))
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(b, &list); err != nil {
			return "", err
		}
		parts := make([]string, 0, len(list))
		for _, item := range list {
			s, err := literalText(bytes.TrimSpace(item))
			if err != nil {
				return "", err
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "/"), nil
	}
	return string(b), nil
}

// wire shapes

type wireDocument struct {
	Nodes          []wireNode  `json:"nodes"`
	WorkflowSource *wireSource `json:"workflow_source"`
}

type wireSource struct {
	Trigger struct {
		Name string `json:"name"`
	} `json:"trigger"`
	Workflow struct {
		Blocks []wireNode `json:"blocks"`
	} `json:"workflow"`
}

type wireNode struct {
	ID                string          `json:"id"`
	Kind              string          `json:"kind"`
	Type              string          `json:"type"`
	Name              string          `json:"name"`
	RouteSplitterName string          `json:"route_splitter_name"`
	Edges             json.RawMessage `json:"edges"`
	Outcomes          json.RawMessage `json:"outcomes"`
	Routes            []wireRoute     `json:"routes"`
}

type wireEdge struct {
	Name      string     `json:"name"`
	Condition *Condition `json:"condition"`
	Next      string     `json:"next"`
}

type wireEdges struct {
	Conditional []wireEdge      `json:"conditional"`
	Default     json.RawMessage `json:"default"`
}

type wireRoute struct {
	Name            string          `json:"name"`
	Percentage      json.RawMessage `json:"percentage"`
	SplitEvaluation *struct {
		Value json.RawMessage `json:"value"`
	} `json:"split_evaluation"`
}

// Decode parses a raw workflow export. It accepts the flat {"nodes": [...]}
// form as well as the exporter's {"workflow_source": ...} envelope, alone or
// wrapped in an array.
func Decode(raw []byte) (*Document, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", splitflow.ErrMalformedDocument)
	}

	var envelopes []wireDocument
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &envelopes); err != nil {
			return nil, fmt.Errorf("%w: %v", splitflow.ErrMalformedDocument, err)
		}
	} else {
		var w wireDocument
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", splitflow.ErrMalformedDocument, err)
		}
		envelopes = append(envelopes, w)
	}

	doc := &Document{}
	for _, w := range envelopes {
		blocks := w.Nodes
		trigger := ""
		if w.WorkflowSource != nil {
			blocks = append(blocks, w.WorkflowSource.Workflow.Blocks...)
			trigger = w.WorkflowSource.Trigger.Name
		}
		for _, b := range blocks {
			n, err := b.normalize(trigger)
			if err != nil {
				return nil, err
			}
			doc.Nodes = append(doc.Nodes, n)
		}
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", splitflow.ErrMalformedDocument)
	}
	return doc, nil
}

func (b wireNode) normalize(triggerName string) (NodeSpec, error) {
	kindText := b.Kind
	if kindText == "" {
		kindText = b.Type
	}
	n := NodeSpec{ID: b.ID, Kind: parseKind(kindText), Name: b.Name}
	if n.ID == "" {
		return n, fmt.Errorf("%w: node without id", splitflow.ErrMalformedDocument)
	}
	switch n.Kind {
	case KindTrigger:
		if n.Name == "" {
			n.Name = triggerName
		}
		if n.Name == "" {
			n.Name = "Trigger"
		}
	case KindRouteSplitter:
		if b.RouteSplitterName != "" && n.Name == "" {
			n.Name = b.RouteSplitterName
		}
	}

	for _, r := range b.Routes {
		rs, err := r.normalize()
		if err != nil {
			return n, err
		}
		n.Routes = append(n.Routes, rs)
	}

	edgesRaw := b.Edges
	outcomes := bytes.TrimSpace(b.Outcomes)
	if len(outcomes) > 0 && outcomes[0] == '[' {
		// A splitter's outcomes are its weighted routes.
		var routes []wireRoute
		if err := json.Unmarshal(outcomes, &routes); err != nil {
			return n, fmt.Errorf("%w: node %s outcomes: %v", splitflow.ErrMalformedDocument, n.ID, err)
		}
		for _, r := range routes {
			rs, err := r.normalize()
			if err != nil {
				return n, err
			}
			n.Routes = append(n.Routes, rs)
		}
	} else if len(edgesRaw) == 0 {
		edgesRaw = outcomes
	}

	edges, err := decodeEdges(edgesRaw)
	if err != nil {
		return n, fmt.Errorf("%w: node %s edges: %v", splitflow.ErrMalformedDocument, n.ID, err)
	}
	n.Edges = edges
	return n, nil
}

func (r wireRoute) normalize() (RouteSpec, error) {
	raw := r.Percentage
	if r.SplitEvaluation != nil && len(r.SplitEvaluation.Value) > 0 {
		raw = r.SplitEvaluation.Value
	}
	pct, err := parsePercentage(raw)
	if err != nil {
		return RouteSpec{}, fmt.Errorf("%w: route %q: %v", splitflow.ErrMalformedDocument, r.Name, err)
	}
	return RouteSpec{Name: r.Name, Percentage: pct}, nil
}

func parsePercentage(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "%")
		if text == "" {
			return 0, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, fmt.Errorf("percentage %q out of range", text)
	}
	return int(math.Round(f)), nil
}

func decodeEdges(raw json.RawMessage) ([]EdgeSpec, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var w wireEdges
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	var out []EdgeSpec
	for _, e := range w.Conditional {
		out = append(out, EdgeSpec{Kind: Conditional, Name: e.Name, Condition: e.Condition, Next: e.Next})
	}

	def := bytes.TrimSpace(w.Default)
	if len(def) == 0 || string(def) == "null" {
		return out, nil
	}
	var defaults []wireEdge
	if def[0] == '[' {
		if err := json.Unmarshal(def, &defaults); err != nil {
			return nil, err
		}
	} else {
		var e wireEdge
		if err := json.Unmarshal(def, &e); err != nil {
			return nil, err
		}
		defaults = append(defaults, e)
	}
	for _, e := range defaults {
		if e.Next == "" {
			continue
		}
		out = append(out, EdgeSpec{Kind: Default, Name: e.Name, Next: e.Next})
	}
	return out, nil
}
