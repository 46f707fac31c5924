package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/meikuraledutech/splitflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rows = []splitflow.Row{
	{PaymentMethod: "GP", Network: "Non-Amex", Currency: "USD", Affinity: true, ThreeDS: "No", Tokenized: splitflow.TokenTrue, Weights: splitflow.NewWeights(30, 0, 70)},
	{PaymentMethod: "CARD", Network: "Mastercard Visa JCB", Currency: "EUR", Affinity: true, ThreeDS: "Partial", Note: "EU split", Weights: splitflow.NewWeights(20, 40, 40)},
	{PaymentMethod: "AP", Currency: "OTHER", ThreeDS: "No", Weights: splitflow.NoSplit},
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows, [3]string{}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Payment Method,Network,Currency,Affinity,Adaptive 3DS,Note,Network Tokenized,Adyen,Stripe,Airwallex", lines[0])
	assert.Equal(t, "Google Pay,Non-Amex,USD,Yes,No,,TRUE,30%,,70%", lines[1])
	assert.Equal(t, "Card,Mastercard Visa JCB,EUR,Yes,Partial,EU split,,20%,40%,40%", lines[2])
	assert.Equal(t, "Apple Pay,,OTHER,No,No,,,No Split,No Split,No Split", lines[3])
}

func TestReadCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows, DefaultRouteNames))

	back, err := ReadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}

func TestReadCSV_BadWeights(t *testing.T) {
	in := "Payment Method,Network,Currency,Affinity,Adaptive 3DS,Note,Network Tokenized,A,B,C\nCard,,USD,Yes,,,,x%,,\n"
	_, err := ReadCSV(strings.NewReader(in))
	assert.Error(t, err)
}

func TestFormatTable(t *testing.T) {
	out := FormatTable(rows, DefaultRouteNames)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "Payment Method"))
	assert.Contains(t, lines[3], "No Split")
}
