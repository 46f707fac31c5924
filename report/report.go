// Package report renders changesets and canonical tables for people.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meikuraledutech/splitflow"
)

// UpToDate is rendered when there is nothing to do.
const UpToDate = "No changes needed, configuration is up to date"

// Input is everything Render needs.
type Input struct {
	Changes   []splitflow.Change
	Collapsed splitflow.CollapseInfo
	// Reference rows are searched for other currencies that already use the
	// weights an Add or Modify introduces.
	Reference  []splitflow.Row
	RouteNames [3]string
}

// DefaultRouteNames labels routes A, B and C.
var DefaultRouteNames = [3]string{"Adyen", "Stripe", "Airwallex"}

// Render groups the changes by payment method. Within a group additions
// come first, then removals, modifications and collapse notices.
func Render(in Input) string {
	if in.RouteNames == ([3]string{}) {
		in.RouteNames = DefaultRouteNames
	}

	steps := make(map[string][]string)
	for _, action := range []splitflow.Action{splitflow.ActionAdd, splitflow.ActionRemove, splitflow.ActionModify} {
		for _, c := range in.Changes {
			if c.Action != action {
				continue
			}
			steps[c.PaymentMethod] = append(steps[c.PaymentMethod], in.line(c))
		}
	}
	for _, m := range sortedKeys(in.Collapsed) {
		cs := in.Collapsed[m]
		if len(cs) == 0 {
			continue
		}
		steps[m] = append(steps[m], fmt.Sprintf("  %s: no action needed, covered by other-currencies bucket", strings.Join(cs, ", ")))
	}
	if len(steps) == 0 {
		return UpToDate
	}

	methods := make([]string, 0, len(steps))
	for m := range steps {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return splitflow.LessMethod(methods[i], methods[j]) })

	groups := make([]string, 0, len(methods))
	for _, m := range methods {
		groups = append(groups, splitflow.MethodDisplayName(m)+"\n"+strings.Join(steps[m], "\n"))
	}
	return strings.Join(groups, "\n\n")
}

func (in Input) line(c splitflow.Change) string {
	switch c.Action {
	case splitflow.ActionRemove:
		return "  Remove " + c.Currency
	case splitflow.ActionAdd:
		return fmt.Sprintf("  Add %s: %s", c.Currency, in.routes(*c.New)) + in.sameAs(c)
	default:
		return fmt.Sprintf("  Modify %s: %s -> %s", c.Currency, ratio(*c.Old), ratio(*c.New)) + in.sameAs(c)
	}
}

func (in Input) routes(w splitflow.Weights) string {
	if w.IsNoSplit() {
		return splitflow.NoSplitMarker
	}
	return fmt.Sprintf("%s %d%% | %s %d%% | %s %d%%",
		in.RouteNames[0], w.A, in.RouteNames[1], w.B, in.RouteNames[2], w.C)
}

func ratio(w splitflow.Weights) string {
	if w.IsNoSplit() {
		return splitflow.NoSplitMarker
	}
	return fmt.Sprintf("%d:%d:%d%%", w.A, w.B, w.C)
}

// sameAs names reference currencies of the same method that already carry
// the new weights.
func (in Input) sameAs(c splitflow.Change) string {
	if c.New == nil || c.New.IsNoSplit() {
		return ""
	}
	seen := make(map[string]bool)
	var matches []string
	for _, r := range in.Reference {
		if r.PaymentMethod != c.PaymentMethod || r.Currency == c.Currency || r.Weights != *c.New || seen[r.Currency] {
			continue
		}
		seen[r.Currency] = true
		matches = append(matches, r.Currency)
	}
	if len(matches) == 0 {
		return ""
	}
	sort.Strings(matches)
	return " (same split already used by: " + strings.Join(matches, ", ") + ")"
}

func sortedKeys(m splitflow.CollapseInfo) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
