// Package extract turns a workflow graph into split records and the
// canonical configuration table.
package extract

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
)

// Slot names one of the three routing targets and the substrings that
// identify it in a route name.
type Slot struct {
	Name    string   `yaml:"name" json:"name" validate:"required"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

// matches reports whether route name contains the slot name or one of its
// aliases at the start of a word, case-insensitively. "AWX HK" and
// "PrimaryAdyen" match; "ready" does not match "ady".
func (s Slot) matches(route string) bool {
	if containsWord(route, s.Name) {
		return true
	}
	for _, a := range s.Aliases {
		if containsWord(route, a) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for i := range text {
		if i+len(word) > len(text) {
			return false
		}
		if wordStart(text, i) && strings.EqualFold(text[i:i+len(word)], word) {
			return true
		}
	}
	return false
}

// wordStart reports whether a word begins at byte offset i: the previous
// rune is not a letter or digit, or the text switches from lower to upper
// case there.
func wordStart(text string, i int) bool {
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:i])
	cur, _ := utf8.DecodeRuneInString(text[i:])
	if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
		return true
	}
	return unicode.IsLower(prev) && unicode.IsUpper(cur)
}

// RouteSlots is the ordered A/B/C target list.
type RouteSlots [3]Slot

// DefaultSlots maps routes A, B and C onto Adyen, Stripe and Airwallex.
var DefaultSlots = RouteSlots{
	{Name: "Adyen", Aliases: []string{"adyen", "ady"}},
	{Name: "Stripe", Aliases: []string{"stripe"}},
	{Name: "Airwallex", Aliases: []string{"airwallex", "awx"}},
}

func (s RouteSlots) empty() bool {
	return s[0].Name == "" && s[1].Name == "" && s[2].Name == ""
}

// Names returns the display names of the three slots.
func (s RouteSlots) Names() [3]string {
	return [3]string{s[0].Name, s[1].Name, s[2].Name}
}

// SplitSpec is the weight allocation read from a RouteSplitter node.
type SplitSpec struct {
	Routes     []graph.RouteSpec
	Configured bool
	Weights    splitflow.Weights
}

// ExtractSplit maps the routes of n onto slots. Names are matched first; when
// they do not map one-to-one, exactly three routes are taken in order.
// A splitter without routes or with only zero percentages is not configured
// and yields NoSplit.
func ExtractSplit(n graph.Node, slots RouteSlots) (SplitSpec, error) {
	spec := SplitSpec{Routes: n.Routes, Weights: splitflow.NoSplit}

	total := 0
	for _, r := range n.Routes {
		if r.Percentage != 0 {
			total++
		}
	}
	if total == 0 {
		return spec, nil
	}

	var pct [3]int
	if assigned, ok := mapByName(n.Routes, slots); ok {
		pct = assigned
	} else if len(n.Routes) == 3 {
		pct = [3]int{n.Routes[0].Percentage, n.Routes[1].Percentage, n.Routes[2].Percentage}
	} else {
		return spec, fmt.Errorf("%w: node %s has %d routes that do not match %v",
			splitflow.ErrAmbiguousRouteMapping, n.ID, len(n.Routes), slots.Names())
	}

	spec.Configured = true
	spec.Weights = splitflow.NewWeights(pct[0], pct[1], pct[2])
	return spec, nil
}

// mapByName succeeds only when every route matches exactly one slot and no
// slot is claimed twice.
func mapByName(routes []graph.RouteSpec, slots RouteSlots) ([3]int, bool) {
	var pct [3]int
	var taken [3]bool
	for _, r := range routes {
		hit := -1
		for i, s := range slots {
			if !s.matches(r.Name) {
				continue
			}
			if hit >= 0 {
				return pct, false
			}
			hit = i
		}
		if hit < 0 || taken[hit] {
			return pct, false
		}
		taken[hit] = true
		pct[hit] = r.Percentage
	}
	return pct, true
}
