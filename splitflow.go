// Package splitflow holds the value types shared by the split-configuration
// extraction and reconciliation engine: weight triples, canonical tables and
// configurations, changesets and warnings.
package splitflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Payment method identifiers.
const (
	MethodCard      = "CARD"
	MethodApplePay  = "AP"
	MethodGooglePay = "GP"
)

// OtherCurrency is the catch-all currency bucket of a payment method.
const OtherCurrency = "OTHER"

// Network values written into the canonical table.
const (
	NetworkAmex     = "Amex"
	NetworkNonAmex  = "Non-Amex"
	NetworkStandard = "Mastercard Visa JCB"
)

// Adaptive 3-D Secure modes.
const (
	ThreeDSPartial = "Partial"
	ThreeDSOff     = "No"
	ThreeDSOn      = "Yes"
)

// NoSplitMarker is rendered in every weight column of a row without a split.
const NoSplitMarker = "No Split"

var currencyAliases = map[string]string{
	"OTHER":  OtherCurrency,
	"OTHERS": OtherCurrency,
	"其他":     OtherCurrency,
	"其他币种":   OtherCurrency,
}

// NormalizeCurrency maps the catch-all aliases onto OtherCurrency and
// upper-cases everything else.
func NormalizeCurrency(c string) string {
	c = strings.TrimSpace(c)
	if v, ok := currencyAliases[strings.ToUpper(c)]; ok {
		return v
	}
	return strings.ToUpper(c)
}

var methodAliases = map[string]string{
	"CARD":       MethodCard,
	"CARDS":      MethodCard,
	"AP":         MethodApplePay,
	"APPLE PAY":  MethodApplePay,
	"APPLEPAY":   MethodApplePay,
	"APPLE_PAY":  MethodApplePay,
	"GP":         MethodGooglePay,
	"GOOGLE PAY": MethodGooglePay,
	"GOOGLEPAY":  MethodGooglePay,
	"GOOGLE_PAY": MethodGooglePay,
}

// NormalizeMethod maps display names and aliases onto method identifiers.
// Unknown names are upper-cased and returned as is.
func NormalizeMethod(m string) string {
	u := strings.ToUpper(strings.TrimSpace(m))
	if v, ok := methodAliases[u]; ok {
		return v
	}
	return u
}

var methodDisplay = map[string]string{
	MethodCard:      "CARD",
	MethodApplePay:  "Apple Pay",
	MethodGooglePay: "Google Pay",
}

// MethodDisplayName returns the human name of a payment method.
func MethodDisplayName(m string) string {
	if v, ok := methodDisplay[m]; ok {
		return v
	}
	return m
}

var methodRank = map[string]int{MethodCard: 0, MethodApplePay: 1, MethodGooglePay: 2}

// LessMethod orders payment methods CARD, AP, GP, then the rest alphabetically.
func LessMethod(a, b string) bool {
	ra, oka := methodRank[a]
	rb, okb := methodRank[b]
	switch {
	case oka && okb:
		return ra < rb
	case oka:
		return true
	case okb:
		return false
	}
	return a < b
}

// LessCurrency orders currencies alphabetically with OtherCurrency last.
func LessCurrency(a, b string) bool {
	if a == OtherCurrency || b == OtherCurrency {
		return b == OtherCurrency && a != OtherCurrency
	}
	return a < b
}

// Weights is a three-way percentage allocation across route A, B and C.
// NoSplit is the distinguished "no weights configured" value and never equals
// a configured triple, including 0/0/0.
type Weights struct {
	A, B, C int
	unset   bool
}

// NoSplit marks an attribute combination that has no configured split.
var NoSplit = Weights{unset: true}

// NewWeights returns a configured triple.
func NewWeights(a, b, c int) Weights {
	return Weights{A: a, B: b, C: c}
}

// IsNoSplit reports whether w is NoSplit.
func (w Weights) IsNoSplit() bool { return w.unset }

// Slice returns the three percentages, or nil for NoSplit.
func (w Weights) Slice() []int {
	if w.unset {
		return nil
	}
	return []int{w.A, w.B, w.C}
}

// MarshalJSON encodes a configured triple as [A,B,C] and NoSplit as the
// NoSplitMarker string.
func (w Weights) MarshalJSON() ([]byte, error) {
	if w.unset {
		return json.Marshal(NoSplitMarker)
	}
	return json.Marshal([3]int{w.A, w.B, w.C})
}

// UnmarshalJSON accepts the forms written by MarshalJSON. null decodes to NoSplit.
func (w *Weights) UnmarshalJSON(b []byte) error {
	var triple [3]int
	if err := json.Unmarshal(b, &triple); err == nil && len(b) > 0 && b[0] == '[' {
		*w = NewWeights(triple[0], triple[1], triple[2])
		return nil
	}
	var s string
	if string(b) == "null" || (json.Unmarshal(b, &s) == nil && s == NoSplitMarker) {
		*w = NoSplit
		return nil
	}
	return fmt.Errorf("splitflow: invalid weights %s", b)
}

func (w Weights) String() string {
	if w.unset {
		return NoSplitMarker
	}
	return fmt.Sprintf("%d:%d:%d", w.A, w.B, w.C)
}

// Tokenization is a tri-state network tokenization flag.
type Tokenization int

const (
	TokenUnknown Tokenization = iota
	TokenTrue
	TokenFalse
)

func (t Tokenization) String() string {
	switch t {
	case TokenTrue:
		return "TRUE"
	case TokenFalse:
		return "False"
	}
	return ""
}

// MarshalJSON encodes the flag as true, false or null.
func (t Tokenization) MarshalJSON() ([]byte, error) {
	switch t {
	case TokenTrue:
		return []byte("true"), nil
	case TokenFalse:
		return []byte("false"), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (t *Tokenization) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case "true":
		*t = TokenTrue
	case "false":
		*t = TokenFalse
	default:
		*t = TokenUnknown
	}
	return nil
}

// ParseTokenization reads the table representation back.
func ParseTokenization(s string) Tokenization {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRUE", "YES", "1":
		return TokenTrue
	case "FALSE", "NO", "0":
		return TokenFalse
	}
	return TokenUnknown
}

// Config is the canonical configuration: payment method → currency → weights.
// Functions that derive a new Config never mutate their inputs.
type Config map[string]map[string]Weights

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for m, cur := range c {
		inner := make(map[string]Weights, len(cur))
		for k, w := range cur {
			inner[k] = w
		}
		out[m] = inner
	}
	return out
}

// Get returns the weights of (method, currency).
func (c Config) Get(method, currency string) (Weights, bool) {
	w, ok := c[method][currency]
	return w, ok
}

// Set writes (method, currency) in place.
func (c Config) Set(method, currency string, w Weights) {
	inner, ok := c[method]
	if !ok {
		inner = make(map[string]Weights)
		c[method] = inner
	}
	inner[currency] = w
}

// Methods returns the payment methods in report order.
func (c Config) Methods() []string {
	out := make([]string, 0, len(c))
	for m := range c {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return LessMethod(out[i], out[j]) })
	return out
}

// Currencies returns the currencies of method, OtherCurrency last.
func (c Config) Currencies(method string) []string {
	inner := c[method]
	out := make([]string, 0, len(inner))
	for k := range inner {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return LessCurrency(out[i], out[j]) })
	return out
}

// Equal reports whether both configs hold the same entries. Methods with no
// currencies are ignored.
func (c Config) Equal(o Config) bool {
	count := func(x Config) int {
		n := 0
		for _, inner := range x {
			n += len(inner)
		}
		return n
	}
	if count(c) != count(o) {
		return false
	}
	for m, inner := range c {
		for k, w := range inner {
			if ow, ok := o[m][k]; !ok || ow != w {
				return false
			}
		}
	}
	return true
}

// Normalize returns a copy of c with currency aliases folded together. When
// two aliases collide the later one in sorted order wins.
func (c Config) Normalize() Config {
	out := make(Config, len(c))
	for _, m := range c.Methods() {
		inner := make(map[string]Weights, len(c[m]))
		keys := make([]string, 0, len(c[m]))
		for k := range c[m] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			inner[NormalizeCurrency(k)] = c[m][k]
		}
		out[NormalizeMethod(m)] = inner
	}
	return out
}

// Row is one line of the canonical table.
type Row struct {
	PaymentMethod string       `json:"payment_method"`
	Network       string       `json:"network"`
	Currency      string       `json:"currency"`
	Affinity      bool         `json:"affinity"`
	ThreeDS       string       `json:"adaptive_3ds"`
	Note          string       `json:"note,omitempty"`
	Tokenized     Tokenization `json:"tokenized"`
	Weights       Weights      `json:"weights"`
}

// Policy selects how a requested configuration is applied.
type Policy string

const (
	PolicyUpdate   Policy = "update"
	PolicyOverride Policy = "override"
)

// ParsePolicy accepts "update" and "override"; empty means update.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyUpdate):
		return PolicyUpdate, nil
	case string(PolicyOverride):
		return PolicyOverride, nil
	}
	return "", fmt.Errorf("splitflow: policy %q: %w", s, ErrInvalidPolicy)
}

// Action is the kind of a changeset entry.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	ActionModify Action = "modify"
)

// Change is one entry of a changeset. Old is set for Remove and Modify, New
// for Add and Modify.
type Change struct {
	PaymentMethod string   `json:"payment_method"`
	Currency      string   `json:"currency"`
	Action        Action   `json:"action"`
	Old           *Weights `json:"old,omitempty"`
	New           *Weights `json:"new,omitempty"`
}

// CollapseInfo lists, per payment method, the currencies removed from the
// explicit table because they equal the method's OtherCurrency bucket.
type CollapseInfo map[string][]string
