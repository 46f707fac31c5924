package classify

import (
	"testing"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/stretchr/testify/assert"
)

func path(labels ...string) Path {
	p := make(Path, len(labels))
	for i, l := range labels {
		p[i] = Segment{Label: l}
	}
	return p
}

func TestCurrencyRule(t *testing.T) {
	cases := []struct {
		name string
		path Path
		want []string
	}{
		{"list", path("Card", "Currency in USD/CAD"), []string{"USD", "CAD"}},
		{"chinese keyword", path("Card", "币种 = JPY"), []string{"JPY"}},
		{"negative", path("Card", "Currency not in USD/CAD"), []string{splitflow.OtherCurrency}},
		{"stop words filtered", path("Currency for ALL AND EUR"), []string{"EUR"}},
		{"nearest wins", path("Currency in USD", "Currency in GBP"), []string{"GBP"}},
		{"no keyword", path("Card", "Region USD"), nil},
		{"dedup", path("Currency in USD/usd/USD"), []string{"USD"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CurrencyRule(tc.path).Currencies)
		})
	}
}

func TestCurrencyRule_FromOperand(t *testing.T) {
	p := Path{{
		Label: "Major markets",
		Predicate: &graph.Predicate{Operands: []graph.Operand{
			{FieldPath: "payment.currency", Operator: "in", Value: "USD/EUR"},
		}},
	}}
	assert.Equal(t, []string{"USD", "EUR"}, CurrencyRule(p).Currencies)
}

func TestPaymentMethodRule(t *testing.T) {
	operand := Path{{
		Label: "Wallet traffic",
		Predicate: &graph.Predicate{Operands: []graph.Operand{
			{FieldPath: "payment.paymentMethodType", Operator: "=", Value: "googlepay"},
		}},
	}}
	assert.Equal(t, splitflow.MethodGooglePay, PaymentMethodRule(operand).PaymentMethod)

	assert.Equal(t, splitflow.MethodCard, PaymentMethodRule(path("Card payments", "Currency in USD")).PaymentMethod)
	assert.Equal(t, splitflow.MethodApplePay, PaymentMethodRule(path("Apple Pay")).PaymentMethod)
	assert.Empty(t, PaymentMethodRule(path("Not Google Pay")).PaymentMethod, "negative labels are skipped")
}

func TestNetworkRule(t *testing.T) {
	assert.Equal(t, "Non-Amex", NetworkRule(path("Network != Amex")).Network)
	assert.Equal(t, "Amex", NetworkRule(path("Network = amex")).Network)
	assert.Empty(t, NetworkRule(path("Network Tokenized = true")).Network)
}

func TestTokenizationRule(t *testing.T) {
	assert.Equal(t, splitflow.TokenTrue, TokenizationRule(path("Tokenised")).Tokenized)
	assert.Equal(t, splitflow.TokenFalse, TokenizationRule(path("Not Tokenised")).Tokenized)
	assert.Equal(t, splitflow.TokenFalse, TokenizationRule(path("Network Tokenized = false")).Tokenized)
	assert.Equal(t, splitflow.TokenUnknown, TokenizationRule(path("Network = Amex")).Tokenized)
}

func TestThreeDSRule(t *testing.T) {
	assert.Equal(t, splitflow.ThreeDSPartial, ThreeDSRule(path("Partial 3DS")).ThreeDS)
	assert.Equal(t, splitflow.ThreeDSOff, ThreeDSRule(path("3DS != required")).ThreeDS)
	assert.Equal(t, splitflow.ThreeDSOn, ThreeDSRule(path("3DS required")).ThreeDS)
}

func TestClassify_CombinedDefaultLabel(t *testing.T) {
	a := Classify(path("Google Pay", "Network = Amex & Not Tokenised", "Currency in HKD"))
	assert.Equal(t, splitflow.MethodGooglePay, a.PaymentMethod)
	assert.Equal(t, "Amex", a.Network)
	assert.Equal(t, splitflow.TokenFalse, a.Tokenized)
	assert.Equal(t, []string{"HKD"}, a.Currencies)
	assert.True(t, a.HasEvidence())
}

// The fallback order is a fixed business rule: tokenization evidence wins,
// then network evidence, then the Apple Pay default.
func TestResolve_LastResortPaymentMethod(t *testing.T) {
	cases := []struct {
		name  string
		attrs Attributes
		want  string
	}{
		{"tokenization present", Attributes{Tokenized: splitflow.TokenTrue, Network: "Amex"}, splitflow.MethodGooglePay},
		{"tokenization false still counts", Attributes{Tokenized: splitflow.TokenFalse}, splitflow.MethodGooglePay},
		{"network only", Attributes{Network: "Non-Amex"}, splitflow.MethodCard},
		{"no evidence", Attributes{Currencies: []string{"USD"}}, splitflow.MethodApplePay},
		{"explicit method kept", Attributes{PaymentMethod: splitflow.MethodCard, Tokenized: splitflow.TokenTrue}, splitflow.MethodCard},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.attrs).PaymentMethod)
		})
	}
}
