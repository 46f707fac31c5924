package graph

import (
	"regexp"
	"strings"
)

// Predicate is the structured form of a conditional edge's test.
type Predicate struct {
	LogicalOperator string    `json:"logical_operator"`
	Operands        []Operand `json:"operands"`
}

// Operand is one comparison of a Predicate.
type Operand struct {
	FieldPath string `json:"field_path"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
}

// String renders the operand as "path op value".
func (o Operand) String() string {
	return strings.TrimSpace(o.FieldPath + " " + o.Operator + " " + o.Value)
}

func newPredicate(c *Condition) *Predicate {
	if c == nil {
		return nil
	}
	p := &Predicate{LogicalOperator: c.Operator}
	for _, op := range c.Operands {
		p.Operands = append(p.Operands, Operand{
			FieldPath: op.Expression.Path,
			Operator:  op.Operator,
			Value:     op.Operand.Value,
		})
	}
	return p
}

// Extract returns the predicate and human-readable label of edge e. Default
// edges carry no predicate; their label is the negation of the recognizable
// sibling conditions on the same node.
func (g *Graph) Extract(e int) (*Predicate, string) {
	edge := g.edges[e]
	if edge.Kind == Conditional {
		p := newPredicate(edge.Condition)
		return p, conditionalLabel(edge.Name, p)
	}

	var negated []string
	for _, sib := range g.nodes[edge.From].Out {
		s := g.edges[sib]
		if s.Kind != Conditional {
			continue
		}
		label := conditionalLabel(s.Name, newPredicate(s.Condition))
		if !recognizable(label) {
			continue
		}
		if n, ok := Negate(label); ok {
			negated = append(negated, n)
		}
	}
	if len(negated) > 0 {
		return nil, strings.Join(negated, " & ")
	}
	if edge.Name != "" {
		return nil, edge.Name
	}
	return nil, "Default"
}

func conditionalLabel(name string, p *Predicate) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if p != nil && len(p.Operands) > 0 {
		return p.Operands[0].String()
	}
	return "Condition"
}

var recognizableWords = []string{"network", "token", "currency", "币种"}

func recognizable(label string) bool {
	l := strings.ToLower(label)
	for _, w := range recognizableWords {
		if strings.Contains(l, w) {
			return true
		}
	}
	return false
}

type negation struct {
	re   *regexp.Regexp
	with string
}

// Ordered so that compound operators match before their prefixes.
var negations = []negation{
	{regexp.MustCompile(`(?i)\s+not\s+in\s+`), " in "},
	{regexp.MustCompile(`(?i)\s+is\s+not\s+`), " is "},
	{regexp.MustCompile(`\s*!=\s*`), " = "},
	{regexp.MustCompile(`\s*≠\s*`), " = "},
	{regexp.MustCompile(`\s*==\s*`), " != "},
	{regexp.MustCompile(`\s*=\s*`), " != "},
	{regexp.MustCompile(`(?i)\s+in\s+`), " not in "},
	{regexp.MustCompile(`(?i)\s+is\s+`), " is not "},
}

var (
	notPrefix   = regexp.MustCompile(`(?i)^not\s+`)
	conjunction = regexp.MustCompile(`(?i)\s*&&\s*|\s*&\s*|\s+and\s+`)
	disjunction = regexp.MustCompile(`(?i)\s*\|\|\s*|\s*\|\s*|\s+or\s+`)
)

// Negate returns the logical negation of a condition label: "!=" and "=",
// "not in" and "in", "is not" and "is" swap, and "Not X" becomes "X". A bare
// label without an operator becomes "Not X". A label made of recognizable
// clauses joined by "or" negates every clause and joins them with "&"; one
// joined by "and" cannot be expressed as a conjunction and is reported as
// not negatable. ok is false for empty and non-negatable labels.
func Negate(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", false
	}
	if clauses, ok := splitClauses(conjunction, label); ok && len(clauses) > 1 {
		return "", false
	}
	if clauses, ok := splitClauses(disjunction, label); ok && len(clauses) > 1 {
		negated := make([]string, 0, len(clauses))
		for _, c := range clauses {
			n, ok := Negate(c)
			if !ok {
				return "", false
			}
			negated = append(negated, n)
		}
		return strings.Join(negated, " & "), true
	}
	return negateClause(label), true
}

// splitClauses splits label on sep. It fails when a piece is empty or names
// no known attribute, which keeps "Currency in USD or EUR" a single clause.
func splitClauses(sep *regexp.Regexp, label string) ([]string, bool) {
	parts := sep.Split(label, -1)
	if len(parts) < 2 {
		return parts, true
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if parts[i] == "" || !recognizable(parts[i]) {
			return nil, false
		}
	}
	return parts, true
}

func negateClause(label string) string {
	if loc := notPrefix.FindStringIndex(label); loc != nil {
		return label[loc[1]:]
	}
	for _, n := range negations {
		if loc := n.re.FindStringIndex(label); loc != nil {
			return label[:loc[0]] + n.with + label[loc[1]:]
		}
	}
	return "Not " + label
}
