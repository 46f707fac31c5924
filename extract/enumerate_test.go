package extract

import (
	"fmt"
	"testing"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeRoutes = []graph.RouteSpec{
	{Name: "Adyen", Percentage: 20},
	{Name: "Stripe", Percentage: 40},
	{Name: "Airwallex", Percentage: 40},
}

func build(t *testing.T, nodes ...graph.NodeSpec) *graph.Graph {
	t.Helper()
	g, _, err := graph.Build(&graph.Document{Nodes: nodes}, graph.Limits{})
	require.NoError(t, err)
	return g
}

func cond(name, next string) graph.EdgeSpec {
	return graph.EdgeSpec{Kind: graph.Conditional, Name: name, Next: next}
}

func def(next string) graph.EdgeSpec {
	return graph.EdgeSpec{Kind: graph.Default, Name: "Default", Next: next}
}

func TestEnumerate_CurrencyExpansion(t *testing.T) {
	g := build(t,
		graph.NodeSpec{ID: "t", Kind: graph.KindTrigger, Name: "Card", Edges: []graph.EdgeSpec{cond("Currency in USD/CAD", "s")}},
		graph.NodeSpec{ID: "s", Kind: graph.KindRouteSplitter, Name: "Split", Routes: threeRoutes},
	)

	records, warnings, err := Enumerate(g, DefaultOptions)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, records, 2)
	assert.Equal(t, "USD", records[0].Currency)
	assert.Equal(t, "CAD", records[1].Currency)
	for _, r := range records {
		assert.Equal(t, splitflow.MethodCard, r.PaymentMethod)
		assert.Equal(t, splitflow.NewWeights(20, 40, 40), r.Weights)
		assert.Equal(t, "s", r.NodeID)
	}
}

func TestEnumerate_DefaultBranchIsOtherBucket(t *testing.T) {
	g := build(t,
		graph.NodeSpec{ID: "t", Kind: graph.KindTrigger, Name: "Google Pay", Edges: []graph.EdgeSpec{
			cond("Network != Amex", "c"),
			def("amex"),
		}},
		graph.NodeSpec{ID: "c", Kind: graph.KindAction, Edges: []graph.EdgeSpec{
			cond("Currency in HKD", "s1"),
			def("s2"),
		}},
		graph.NodeSpec{ID: "s1", Kind: graph.KindRouteSplitter, Routes: threeRoutes},
		graph.NodeSpec{ID: "s2", Kind: graph.KindRouteSplitter, Routes: []graph.RouteSpec{
			{Name: "Adyen", Percentage: 100}, {Name: "Stripe"}, {Name: "Airwallex"},
		}},
		graph.NodeSpec{ID: "amex", Kind: graph.KindRouteSplitter},
	)

	records, _, err := Enumerate(g, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "HKD", records[0].Currency)
	assert.Equal(t, "Non-Amex", records[0].Network)

	assert.Equal(t, splitflow.OtherCurrency, records[1].Currency)
	assert.Equal(t, splitflow.NewWeights(100, 0, 0), records[1].Weights)

	assert.Equal(t, "Amex", records[2].Network, "default branch negates the network test")
	assert.Equal(t, splitflow.NoSplit, records[2].Weights)
	for _, r := range records {
		assert.Equal(t, splitflow.MethodGooglePay, r.PaymentMethod)
	}
}

func TestEnumerate_CycleTerminates(t *testing.T) {
	g := build(t,
		graph.NodeSpec{ID: "t", Kind: graph.KindTrigger, Name: "Card", Edges: []graph.EdgeSpec{cond("Currency in EUR", "a")}},
		graph.NodeSpec{ID: "a", Kind: graph.KindAction, Edges: []graph.EdgeSpec{cond("Retry", "b"), def("s")}},
		graph.NodeSpec{ID: "b", Kind: graph.KindAction, Edges: []graph.EdgeSpec{def("a"), cond("Loop", "t")}},
		graph.NodeSpec{ID: "s", Kind: graph.KindRouteSplitter, Routes: threeRoutes},
	)

	records, warnings, err := Enumerate(g, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, records, 1, "nodes whose edges all lead back onto the path emit nothing")
	assert.Equal(t, "s", records[0].NodeID)
	assert.Equal(t, "EUR", records[0].Currency)
	assert.Equal(t, splitflow.NewWeights(20, 40, 40), records[0].Weights)

	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.Equal(t, splitflow.WarnTruncatedPath, w.Kind)
		assert.Equal(t, "b", w.NodeID)
	}

	table, warnings, err := FromGraph(g, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, table, 1)
	for _, w := range warnings {
		assert.NotEqual(t, splitflow.WarnDuplicateKey, w.Kind)
	}
	assert.Equal(t, splitflow.NewWeights(20, 40, 40), table.Config()[splitflow.MethodCard]["EUR"])
}

func TestEnumerate_MaxDepth(t *testing.T) {
	g := build(t,
		graph.NodeSpec{ID: "t", Kind: graph.KindTrigger, Name: "Card", Edges: []graph.EdgeSpec{cond("Currency in EUR", "a")}},
		graph.NodeSpec{ID: "a", Kind: graph.KindAction, Edges: []graph.EdgeSpec{def("s")}},
		graph.NodeSpec{ID: "s", Kind: graph.KindRouteSplitter, Routes: threeRoutes},
	)

	records, warnings, err := Enumerate(g, Options{MaxDepth: 1})
	require.NoError(t, err)
	assert.Empty(t, records, "a cut path is abandoned")
	require.Len(t, warnings, 1)
	assert.Equal(t, splitflow.WarnTruncatedPath, warnings[0].Kind)
	assert.Equal(t, "a", warnings[0].NodeID)

	records, warnings, err = Enumerate(g, Options{MaxDepth: 2})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, records, 1)
	assert.Equal(t, "s", records[0].NodeID)
}

func TestEnumerate_VisitBudget(t *testing.T) {
	const layers = 12
	nodes := []graph.NodeSpec{{ID: "t", Kind: graph.KindTrigger, Name: "Card", Edges: []graph.EdgeSpec{
		cond("Currency in EUR", "l0a"), def("l0b"),
	}}}
	for i := 0; i < layers; i++ {
		var edges []graph.EdgeSpec
		if i < layers-1 {
			edges = []graph.EdgeSpec{cond("Retry", fmt.Sprintf("l%da", i+1)), def(fmt.Sprintf("l%db", i+1))}
		} else {
			edges = []graph.EdgeSpec{def("s")}
		}
		nodes = append(nodes,
			graph.NodeSpec{ID: fmt.Sprintf("l%da", i), Kind: graph.KindAction, Edges: edges},
			graph.NodeSpec{ID: fmt.Sprintf("l%db", i), Kind: graph.KindAction, Edges: edges},
		)
	}
	nodes = append(nodes, graph.NodeSpec{ID: "s", Kind: graph.KindRouteSplitter, Routes: threeRoutes})
	g := build(t, nodes...)

	_, _, err := Enumerate(g, Options{MaxDepth: 64, MaxVisits: 100})
	assert.ErrorIs(t, err, splitflow.ErrGraphTooLarge)

	records, _, err := Enumerate(g, Options{MaxDepth: 64, MaxVisits: 1 << 16})
	require.NoError(t, err)
	assert.NotEmpty(t, records)
}

func TestEnumerate_NoSplitTerminalNeedsEvidence(t *testing.T) {
	g := build(t,
		graph.NodeSpec{ID: "t", Kind: graph.KindTrigger, Name: "Router", Edges: []graph.EdgeSpec{
			cond("Currency in JPY", "block"),
			cond("Risk high", "review"),
		}},
		graph.NodeSpec{ID: "block", Kind: graph.KindAction},
		graph.NodeSpec{ID: "review", Kind: graph.KindAction},
	)

	records, _, err := Enumerate(g, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "JPY", records[0].Currency)
	assert.Equal(t, splitflow.MethodApplePay, records[0].PaymentMethod)
	assert.True(t, records[0].Weights.IsNoSplit())
}

func TestEnumerate_Warnings(t *testing.T) {
	g := build(t,
		graph.NodeSpec{ID: "t", Kind: graph.KindTrigger, Name: "Card", Edges: []graph.EdgeSpec{
			cond("Currency in USD", "s"),
			cond("Currency in EUR", "s"),
		}},
		graph.NodeSpec{ID: "s", Kind: graph.KindRouteSplitter, Routes: []graph.RouteSpec{
			{Name: "x", Percentage: 50}, {Name: "y", Percentage: 50},
		}},
	)
	records, warnings, err := Enumerate(g, DefaultOptions)
	require.NoError(t, err)
	assert.Empty(t, records)
	require.Len(t, warnings, 1, "one warning per splitter")
	assert.Equal(t, splitflow.WarnAmbiguousRouteMapping, warnings[0].Kind)

	g = build(t, graph.NodeSpec{ID: "a", Kind: graph.KindAction})
	_, warnings, err = Enumerate(g, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, splitflow.WarnNoEntryNodes, warnings[0].Kind)
}
