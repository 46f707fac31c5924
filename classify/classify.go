// Package classify infers payment attributes from the chain of conditions
// leading to a node.
package classify

import (
	"strings"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
)

// Segment is one step of a ConditionPath. The entry node contributes a
// segment carrying its own name.
type Segment struct {
	Label     string
	Predicate *graph.Predicate
	IsDefault bool
	NodeID    string
}

// Path is ordered from the entry node to the target.
type Path []Segment

// Labels returns the segment labels in path order.
func (p Path) Labels() []string {
	out := make([]string, len(p))
	for i, s := range p {
		out[i] = s.Label
	}
	return out
}

// String joins the labels with " > ".
func (p Path) String() string {
	return strings.Join(p.Labels(), " > ")
}

// Attributes is the (possibly partial) classification of a path. Zero values
// mean "not found".
type Attributes struct {
	PaymentMethod string                 `json:"payment_method,omitempty"`
	Currencies    []string               `json:"currencies,omitempty"`
	Network       string                 `json:"network,omitempty"`
	Tokenized     splitflow.Tokenization `json:"tokenized"`
	ThreeDS       string                 `json:"adaptive_3ds,omitempty"`
}

// HasEvidence reports whether the path named a currency or payment method
// explicitly.
func (a Attributes) HasEvidence() bool {
	return a.PaymentMethod != "" || len(a.Currencies) > 0
}

// merge fills the attributes of a that are still empty from b.
func (a Attributes) merge(b Attributes) Attributes {
	if a.PaymentMethod == "" {
		a.PaymentMethod = b.PaymentMethod
	}
	if len(a.Currencies) == 0 && len(b.Currencies) > 0 {
		a.Currencies = append([]string(nil), b.Currencies...)
	}
	if a.Network == "" {
		a.Network = b.Network
	}
	if a.Tokenized == splitflow.TokenUnknown {
		a.Tokenized = b.Tokenized
	}
	if a.ThreeDS == "" {
		a.ThreeDS = b.ThreeDS
	}
	return a
}

// Rule inspects a path and reports whatever attributes it recognizes. Rules
// scan from the nearest segment to the farthest and stop at the first hit.
type Rule func(Path) Attributes

// DefaultRules is the rule set used by Classify.
var DefaultRules = []Rule{
	CurrencyRule,
	PaymentMethodRule,
	NetworkRule,
	TokenizationRule,
	ThreeDSRule,
}

// Classify applies DefaultRules to p.
func Classify(p Path) Attributes {
	return ClassifyWith(p, DefaultRules)
}

// ClassifyWith applies rules in order; for each attribute the first rule
// that reports a value wins.
func ClassifyWith(p Path, rules []Rule) Attributes {
	var out Attributes
	for _, r := range rules {
		out = out.merge(r(p))
	}
	return out
}

// Resolve settles a missing payment method. Tokenization evidence means
// Google Pay, network evidence alone means card, and no evidence at all means
// Apple Pay.
func Resolve(a Attributes) Attributes {
	if a.PaymentMethod != "" {
		return a
	}
	switch {
	case a.Tokenized != splitflow.TokenUnknown:
		a.PaymentMethod = splitflow.MethodGooglePay
	case a.Network != "":
		a.PaymentMethod = splitflow.MethodCard
	default:
		a.PaymentMethod = splitflow.MethodApplePay
	}
	return a
}
