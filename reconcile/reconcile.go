// Package reconcile merges a requested configuration into the current one
// and computes the resulting changeset.
package reconcile

import (
	"sort"

	"github.com/meikuraledutech/splitflow"
)

// Result is the outcome of Reconcile. Changes always describe the move from
// the current configuration to Final.
type Result struct {
	Final     splitflow.Config       `json:"final"`
	Changes   []splitflow.Change     `json:"changes"`
	Collapsed splitflow.CollapseInfo `json:"collapsed,omitempty"`
}

// Reconcile normalizes both sides, merges requested into current under
// policy, folds currencies that match their method's OTHER bucket, and
// diffs the result against current. Neither input is modified.
func Reconcile(current, requested splitflow.Config, policy splitflow.Policy) Result {
	cur := current.Normalize()
	final, collapsed := Collapse(Merge(cur, requested.Normalize(), policy))
	return Result{
		Final:     final,
		Changes:   Diff(cur, final),
		Collapsed: collapsed,
	}
}

// Merge applies requested to current. Update overwrites or adds individual
// currencies; Override replaces the whole currency set of every method named
// in requested. Methods absent from requested are kept as they are.
func Merge(current, requested splitflow.Config, policy splitflow.Policy) splitflow.Config {
	out := current.Clone()
	for m, cur := range requested {
		if policy == splitflow.PolicyOverride {
			out[m] = make(map[string]splitflow.Weights, len(cur))
		}
		for c, w := range cur {
			out.Set(m, c, w)
		}
	}
	return out
}

// Collapse removes every currency whose weights equal its method's
// configured OTHER entry and reports what it removed.
func Collapse(cfg splitflow.Config) (splitflow.Config, splitflow.CollapseInfo) {
	out := cfg.Clone()
	info := make(splitflow.CollapseInfo)
	for _, m := range out.Methods() {
		other, ok := out[m][splitflow.OtherCurrency]
		if !ok || other.IsNoSplit() {
			continue
		}
		for _, c := range out.Currencies(m) {
			if c == splitflow.OtherCurrency || out[m][c] != other {
				continue
			}
			delete(out[m], c)
			info[m] = append(info[m], c)
		}
	}
	return out, info
}

// Diff lists the entries that differ between from and to, ordered by payment
// method and currency.
func Diff(from, to splitflow.Config) []splitflow.Change {
	methods := make(map[string]bool)
	for m := range from {
		methods[m] = true
	}
	for m := range to {
		methods[m] = true
	}
	ordered := make([]string, 0, len(methods))
	for m := range methods {
		ordered = append(ordered, m)
	}
	sort.Slice(ordered, func(i, j int) bool { return splitflow.LessMethod(ordered[i], ordered[j]) })

	var changes []splitflow.Change
	for _, m := range ordered {
		currencies := make(map[string]bool)
		for c := range from[m] {
			currencies[c] = true
		}
		for c := range to[m] {
			currencies[c] = true
		}
		keys := make([]string, 0, len(currencies))
		for c := range currencies {
			keys = append(keys, c)
		}
		sort.Slice(keys, func(i, j int) bool { return splitflow.LessCurrency(keys[i], keys[j]) })

		for _, c := range keys {
			old, hadOld := from[m][c]
			nw, hasNew := to[m][c]
			switch {
			case hadOld && !hasNew:
				changes = append(changes, splitflow.Change{PaymentMethod: m, Currency: c, Action: splitflow.ActionRemove, Old: &old})
			case !hadOld && hasNew:
				changes = append(changes, splitflow.Change{PaymentMethod: m, Currency: c, Action: splitflow.ActionAdd, New: &nw})
			case old != nw:
				changes = append(changes, splitflow.Change{PaymentMethod: m, Currency: c, Action: splitflow.ActionModify, Old: &old, New: &nw})
			}
		}
	}
	return changes
}
