package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardDoc = `{"nodes": [
  {"id": "t", "kind": "Trigger", "name": "Card payments",
   "edges": {"conditional": [{"name": "Currency in USD/EUR", "next": "s"}]}},
  {"id": "s", "kind": "RouteSplitter", "name": "Main split",
   "routes": [{"name": "Adyen", "percentage": 20}, {"name": "Stripe", "percentage": 40}, {"name": "Airwallex", "percentage": 40}]}
]}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	configPath, asCSV, mode, limit = "", false, "update", 20

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestExtractCommand(t *testing.T) {
	doc := writeFile(t, "card.json", cardDoc)

	out, err := execute(t, "extract", "--csv", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "Payment Method,Network,Currency")
	assert.Contains(t, out, "Card,Mastercard Visa JCB,EUR,Yes,Partial,,,20%,40%,40%")
}

func TestReconcileCommand(t *testing.T) {
	doc := writeFile(t, "card.json", cardDoc)
	adj := writeFile(t, "adjust.txt", "CARD\nUSD - 30%:30%:40%\n")

	out, err := execute(t, "reconcile", "--mode", "override", doc, adj)
	require.NoError(t, err)
	assert.Contains(t, out, "Modify USD: 20:40:40% -> 30:30:40%")
	assert.Contains(t, out, "Remove EUR")

	_, err = execute(t, "reconcile", "--mode", "merge", doc, adj)
	assert.Error(t, err)
}

func TestFormatCommand(t *testing.T) {
	table := writeFile(t, "table.csv",
		"Payment Method,Network,Currency,Affinity,Adaptive 3DS,Note,Network Tokenized,Adyen,Stripe,Airwallex\n"+
			"Card,Mastercard Visa JCB,EUR,Yes,Partial,,,20%,40%,40%\n"+
			"Card,Mastercard Visa JCB,USD,Yes,Partial,,,20%,40%,40%\n")

	out, err := execute(t, "format", table)
	require.NoError(t, err)
	assert.Equal(t, "CARD\nEUR/USD - 20%:40%:40%\n", out)
}

func TestVersionsCommand_NeedsDatabase(t *testing.T) {
	_, err := execute(t, "versions")
	assert.EqualError(t, err, "DATABASE_URL is not set")
}
