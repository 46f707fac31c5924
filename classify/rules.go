package classify

import (
	"regexp"
	"strings"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
)

var (
	currencyToken = regexp.MustCompile(`\b[A-Z]{3}\b`)
	negativeText  = regexp.MustCompile(`(?i)(!=|≠|\bnot\b)`)
	operatorSplit = regexp.MustCompile(`(?i)\s*(!=|≠|==|=|\s+not\s+in\s+|\s+in\s+|\s+is\s+not\s+|\s+is\s+)\s*`)
	wordToken     = regexp.MustCompile(`[A-Za-z]+`)
)

var stopWords = map[string]bool{
	"ALL": true, "AND": true, "THE": true, "FOR": true, "NOT": true,
	"BIN": true, "NET": true, "OUT": true, "PAY": true, "API": true,
	"URL": true, "KEY": true, "TAG": true, "LOG": true, "ERR": true,
}

var paymentMethodMarkers = []string{"paymentmethodtype", "paymentmethod", "payment_method"}

// clauses splits a segment label into its " & " joined parts.
func clauses(s Segment) []string {
	parts := strings.Split(s.Label, " & ")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func operands(s Segment) []graph.Operand {
	if s.Predicate == nil {
		return nil
	}
	return s.Predicate.Operands
}

func isNegative(text string) bool {
	return negativeText.MatchString(text)
}

// rhs returns the value side of "subject op value", or "" without operator.
func rhs(clause string) string {
	loc := operatorSplit.FindStringIndex(clause)
	if loc == nil {
		return ""
	}
	return strings.TrimSpace(clause[loc[1]:])
}

func falsy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "no", "0", "off", "disabled":
		return true
	}
	return false
}

func mentionsCurrency(text string) bool {
	l := strings.ToLower(text)
	return strings.Contains(l, "currency") || strings.Contains(l, "币种")
}

func currencies(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range currencyToken.FindAllString(strings.ToUpper(text), -1) {
		if stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// CurrencyRule reads currencies from segments that test a currency. A
// negative test means the catch-all bucket.
func CurrencyRule(p Path) Attributes {
	for i := len(p) - 1; i >= 0; i-- {
		for _, op := range operands(p[i]) {
			if !mentionsCurrency(op.FieldPath) {
				continue
			}
			if isNegative(op.Operator) {
				return Attributes{Currencies: []string{splitflow.OtherCurrency}}
			}
			if cs := currencies(op.Value); len(cs) > 0 {
				return Attributes{Currencies: cs}
			}
		}
		for _, c := range clauses(p[i]) {
			if !mentionsCurrency(c) {
				continue
			}
			if isNegative(c) {
				return Attributes{Currencies: []string{splitflow.OtherCurrency}}
			}
			if cs := currencies(c); len(cs) > 0 {
				return Attributes{Currencies: cs}
			}
		}
	}
	return Attributes{}
}

// methodFromWords maps keyword tokens of text onto a payment method.
func methodFromWords(text string) string {
	words := wordToken.FindAllString(strings.ToUpper(text), -1)
	for _, w := range words {
		switch w {
		case "CARD", "CARDS", "SCHEME":
			return splitflow.MethodCard
		case "AP", "APPLE", "APPLEPAY":
			return splitflow.MethodApplePay
		case "GP", "GOOGLE", "GOOGLEPAY":
			return splitflow.MethodGooglePay
		}
	}
	return ""
}

func isMethodPath(path string) bool {
	l := strings.ToLower(path)
	for _, m := range paymentMethodMarkers {
		if strings.HasSuffix(l, m) {
			return true
		}
	}
	return false
}

// PaymentMethodRule prefers a structured payment-method operand and falls
// back to keywords in positive labels.
func PaymentMethodRule(p Path) Attributes {
	for i := len(p) - 1; i >= 0; i-- {
		for _, op := range operands(p[i]) {
			if !isMethodPath(op.FieldPath) || isNegative(op.Operator) {
				continue
			}
			if m := methodFromWords(op.Value); m != "" {
				return Attributes{PaymentMethod: m}
			}
		}
		for _, c := range clauses(p[i]) {
			if isNegative(c) {
				continue
			}
			if m := methodFromWords(c); m != "" {
				return Attributes{PaymentMethod: m}
			}
		}
	}
	return Attributes{}
}

func mentionsNetwork(text string) bool {
	l := strings.ToLower(text)
	return strings.Contains(l, "network") && !strings.Contains(l, "token")
}

func networkValue(v string, negative bool) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, splitflow.NetworkAmex) {
		v = splitflow.NetworkAmex
	}
	if v == "" {
		return ""
	}
	if negative {
		return "Non-" + v
	}
	return v
}

// NetworkRule reads the card network. A negative test on a network yields
// "Non-<network>".
func NetworkRule(p Path) Attributes {
	for i := len(p) - 1; i >= 0; i-- {
		for _, op := range operands(p[i]) {
			if !mentionsNetwork(op.FieldPath) {
				continue
			}
			if n := networkValue(op.Value, isNegative(op.Operator)); n != "" {
				return Attributes{Network: n}
			}
		}
		for _, c := range clauses(p[i]) {
			if !mentionsNetwork(c) {
				continue
			}
			if n := networkValue(rhs(c), isNegative(c)); n != "" {
				return Attributes{Network: n}
			}
		}
	}
	return Attributes{}
}

func mentionsTokenization(text string) bool {
	l := strings.ToLower(text)
	return strings.Contains(l, "tokenised") || strings.Contains(l, "tokenized") ||
		strings.Contains(l, "tokenisation") || strings.Contains(l, "tokenization")
}

func tokenization(negative bool, value string) splitflow.Tokenization {
	if negative != falsy(value) {
		return splitflow.TokenFalse
	}
	return splitflow.TokenTrue
}

// TokenizationRule reads the network tokenization flag.
func TokenizationRule(p Path) Attributes {
	for i := len(p) - 1; i >= 0; i-- {
		for _, op := range operands(p[i]) {
			if strings.Contains(strings.ToLower(op.FieldPath), "token") {
				return Attributes{Tokenized: tokenization(isNegative(op.Operator), op.Value)}
			}
		}
		for _, c := range clauses(p[i]) {
			if mentionsTokenization(c) {
				return Attributes{Tokenized: tokenization(isNegative(c), rhs(c))}
			}
		}
	}
	return Attributes{}
}

func mentions3DS(text string) bool {
	l := strings.ToLower(text)
	return strings.Contains(l, "3ds") || strings.Contains(l, "3d secure") || strings.Contains(l, "3-d secure")
}

// ThreeDSRule reads the adaptive 3-D Secure mode.
func ThreeDSRule(p Path) Attributes {
	for i := len(p) - 1; i >= 0; i-- {
		for _, c := range clauses(p[i]) {
			if !mentions3DS(c) {
				continue
			}
			switch {
			case strings.Contains(strings.ToLower(c), "partial"):
				return Attributes{ThreeDS: splitflow.ThreeDSPartial}
			case isNegative(c) || falsy(rhs(c)):
				return Attributes{ThreeDS: splitflow.ThreeDSOff}
			default:
				return Attributes{ThreeDS: splitflow.ThreeDSOn}
			}
		}
	}
	return Attributes{}
}
