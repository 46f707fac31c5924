package extract

import (
	"testing"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitter(routes ...graph.RouteSpec) graph.Node {
	return graph.Node{ID: "s", Kind: graph.KindRouteSplitter, Routes: routes}
}

func TestExtractSplit(t *testing.T) {
	cases := []struct {
		name       string
		node       graph.Node
		configured bool
		want       splitflow.Weights
	}{
		{
			name:       "by name out of order",
			node:       splitter(graph.RouteSpec{Name: "AWX HK", Percentage: 40}, graph.RouteSpec{Name: "Stripe US", Percentage: 30}, graph.RouteSpec{Name: "Adyen EU", Percentage: 30}),
			configured: true,
			want:       splitflow.NewWeights(30, 30, 40),
		},
		{
			name:       "by name with missing slot",
			node:       splitter(graph.RouteSpec{Name: "Adyen", Percentage: 50}, graph.RouteSpec{Name: "Stripe", Percentage: 50}),
			configured: true,
			want:       splitflow.NewWeights(50, 50, 0),
		},
		{
			name:       "positional fallback",
			node:       splitter(graph.RouteSpec{Name: "one", Percentage: 20}, graph.RouteSpec{Name: "two", Percentage: 40}, graph.RouteSpec{Name: "three", Percentage: 40}),
			configured: true,
			want:       splitflow.NewWeights(20, 40, 40),
		},
		{
			name: "no routes",
			node: splitter(),
			want: splitflow.NoSplit,
		},
		{
			name: "all zero",
			node: splitter(graph.RouteSpec{Name: "Adyen"}, graph.RouteSpec{Name: "Stripe"}, graph.RouteSpec{Name: "Airwallex"}),
			want: splitflow.NoSplit,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := ExtractSplit(tc.node, DefaultSlots)
			require.NoError(t, err)
			assert.Equal(t, tc.configured, spec.Configured)
			assert.Equal(t, tc.want, spec.Weights)
		})
	}
}

func TestExtractSplit_Ambiguous(t *testing.T) {
	node := splitter(graph.RouteSpec{Name: "left", Percentage: 50}, graph.RouteSpec{Name: "right", Percentage: 50})
	_, err := ExtractSplit(node, DefaultSlots)
	assert.ErrorIs(t, err, splitflow.ErrAmbiguousRouteMapping)

	// Two routes claiming the same slot cannot map by name.
	node = splitter(graph.RouteSpec{Name: "Adyen 1", Percentage: 50}, graph.RouteSpec{Name: "Adyen 2", Percentage: 50})
	_, err = ExtractSplit(node, DefaultSlots)
	assert.ErrorIs(t, err, splitflow.ErrAmbiguousRouteMapping)
}

func TestSlotMatchesWordStart(t *testing.T) {
	adyen := DefaultSlots[0]
	assert.True(t, adyen.matches("Adyen EU"))
	assert.True(t, adyen.matches("ady-backup"))
	assert.True(t, adyen.matches("PrimaryAdyen"))
	assert.False(t, adyen.matches("ready"))
	assert.False(t, adyen.matches("Already routed"))
	assert.True(t, DefaultSlots[2].matches("AWX HK"))
	assert.False(t, DefaultSlots[2].matches("hawx"))
}

func TestExtractSplit_AliasInsideWord(t *testing.T) {
	// "ready" must not claim the Adyen slot, so the routes map by name.
	node := splitter(
		graph.RouteSpec{Name: "Stripe ready", Percentage: 60},
		graph.RouteSpec{Name: "Airwallex", Percentage: 40},
	)
	spec, err := ExtractSplit(node, DefaultSlots)
	require.NoError(t, err)
	assert.Equal(t, splitflow.NewWeights(0, 60, 40), spec.Weights)
}

func TestNoSplitIsNotZeroWeights(t *testing.T) {
	assert.NotEqual(t, splitflow.NoSplit, splitflow.NewWeights(0, 0, 0))
	assert.True(t, splitflow.NoSplit.IsNoSplit())
	assert.False(t, splitflow.NewWeights(0, 0, 0).IsNoSplit())
}
