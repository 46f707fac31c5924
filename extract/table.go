package extract

import (
	"fmt"
	"sort"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/graph"
)

// Table is the canonical, sorted list of configuration rows.
type Table []splitflow.Row

// BuildTable fills attribute defaults, drops duplicates and sorts. When two
// records share (method, currency, network, tokenized) with different
// weights, the first one in traversal order is kept and a warning is raised.
// Primary rows that disagree on the same (method, currency) are kept and
// reported; see Table.Conflicts.
func BuildTable(records []SplitRecord) (Table, []splitflow.Warning) {
	type key struct {
		method, currency, network string
		tokenized                 splitflow.Tokenization
	}

	var warnings []splitflow.Warning
	seen := make(map[key]splitflow.Weights, len(records))
	unknown := make(map[string]bool)
	rows := make(Table, 0, len(records))

	for _, rec := range records {
		row := fillDefaults(splitflow.Row{
			PaymentMethod: rec.PaymentMethod,
			Network:       rec.Network,
			Currency:      rec.Currency,
			ThreeDS:       rec.ThreeDS,
			Tokenized:     rec.Tokenized,
			Weights:       rec.Weights,
		})
		if !knownMethod(row.PaymentMethod) && !unknown[row.PaymentMethod] {
			unknown[row.PaymentMethod] = true
			warnings = append(warnings, splitflow.Warning{
				Kind:    splitflow.WarnUnknownMethod,
				NodeID:  rec.NodeID,
				Message: fmt.Sprintf("payment method %q has no defaults", row.PaymentMethod),
			})
		}

		k := key{row.PaymentMethod, row.Currency, row.Network, row.Tokenized}
		if prev, ok := seen[k]; ok {
			if prev != row.Weights {
				warnings = append(warnings, splitflow.Warning{
					Kind:   splitflow.WarnDuplicateKey,
					NodeID: rec.NodeID,
					Message: fmt.Sprintf("%s %s %s: kept %s, dropped %s",
						row.PaymentMethod, row.Currency, row.Network, prev, row.Weights),
				})
			}
			continue
		}
		seen[k] = row.Weights
		rows = append(rows, row)
	}

	SortRows(rows)
	return rows, append(warnings, rows.Conflicts()...)
}

// FromGraph enumerates g and builds its table.
func FromGraph(g *graph.Graph, opts Options) (Table, []splitflow.Warning, error) {
	records, warnings, err := Enumerate(g, opts)
	if err != nil {
		return nil, nil, err
	}
	table, more := BuildTable(records)
	return table, append(warnings, more...), nil
}

func knownMethod(m string) bool {
	switch m {
	case splitflow.MethodCard, splitflow.MethodApplePay, splitflow.MethodGooglePay:
		return true
	}
	return false
}

// fillDefaults completes attributes that were never classified.
func fillDefaults(r splitflow.Row) splitflow.Row {
	switch r.PaymentMethod {
	case splitflow.MethodGooglePay:
		if r.Network == "" {
			r.Network = splitflow.NetworkNonAmex
		}
		if r.Tokenized == splitflow.TokenUnknown {
			r.Tokenized = splitflow.TokenTrue
		}
		if r.ThreeDS == "" {
			if r.Tokenized == splitflow.TokenFalse {
				r.ThreeDS = splitflow.ThreeDSPartial
			} else {
				r.ThreeDS = splitflow.ThreeDSOff
			}
		}
	case splitflow.MethodCard:
		if r.Network == "" {
			r.Network = splitflow.NetworkStandard
		}
		if r.ThreeDS == "" {
			r.ThreeDS = splitflow.ThreeDSPartial
		}
	case splitflow.MethodApplePay:
		if r.ThreeDS == "" {
			r.ThreeDS = splitflow.ThreeDSOff
		}
	}
	r.Affinity = !(r.PaymentMethod == splitflow.MethodApplePay && r.Currency == splitflow.OtherCurrency)
	return r
}

func networkRank(n string) int {
	switch n {
	case splitflow.NetworkNonAmex:
		return 0
	case splitflow.NetworkAmex:
		return 1
	case "":
		return 3
	}
	return 2
}

func tokenRank(t splitflow.Tokenization) int {
	switch t {
	case splitflow.TokenTrue:
		return 0
	case splitflow.TokenFalse:
		return 1
	}
	return 2
}

// SortRows orders rows by network, currency and tokenization, with the
// payment method as the final tie-breaker.
func SortRows(rows []splitflow.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ra, rb := networkRank(a.Network), networkRank(b.Network); ra != rb {
			return ra < rb
		}
		if a.Network != b.Network {
			return a.Network < b.Network
		}
		if a.Currency != b.Currency {
			return splitflow.LessCurrency(a.Currency, b.Currency)
		}
		if ra, rb := tokenRank(a.Tokenized), tokenRank(b.Tokenized); ra != rb {
			return ra < rb
		}
		if a.PaymentMethod != b.PaymentMethod {
			return splitflow.LessMethod(a.PaymentMethod, b.PaymentMethod)
		}
		return false
	})
}

// Primary reports whether r belongs to the reconcilable variant of its
// payment method: standard-network cards, tokenized non-Amex Google Pay and
// every row of any other method.
func Primary(r splitflow.Row) bool {
	switch r.PaymentMethod {
	case splitflow.MethodCard:
		return r.Network == splitflow.NetworkStandard
	case splitflow.MethodGooglePay:
		return r.Network == splitflow.NetworkNonAmex && r.Tokenized == splitflow.TokenTrue
	}
	return true
}

// Config projects the primary rows onto a Config. The first row wins per
// (method, currency); Conflicts reports the rows it ignores.
func (t Table) Config() splitflow.Config {
	cfg := make(splitflow.Config)
	for _, r := range t {
		if !Primary(r) {
			continue
		}
		if _, ok := cfg.Get(r.PaymentMethod, r.Currency); ok {
			continue
		}
		cfg.Set(r.PaymentMethod, r.Currency, r.Weights)
	}
	return cfg
}

// TableFromConfig renders cfg as primary rows with default attributes.
func TableFromConfig(cfg splitflow.Config) Table {
	var rows Table
	for _, m := range cfg.Methods() {
		for _, c := range cfg.Currencies(m) {
			rows = append(rows, fillDefaults(splitflow.Row{
				PaymentMethod: m,
				Currency:      c,
				Weights:       cfg[m][c],
			}))
		}
	}
	SortRows(rows)
	return rows
}

// Conflicts reports primary rows that share a (method, currency) with an
// earlier primary row but carry different weights. Config keeps the earlier
// one.
func (t Table) Conflicts() []splitflow.Warning {
	type key struct{ method, currency string }
	first := make(map[key]splitflow.Row)
	var warnings []splitflow.Warning
	for _, r := range t {
		if !Primary(r) {
			continue
		}
		k := key{r.PaymentMethod, r.Currency}
		prev, ok := first[k]
		if !ok {
			first[k] = r
			continue
		}
		if prev.Weights != r.Weights {
			warnings = append(warnings, splitflow.Warning{
				Kind: splitflow.WarnConflictingPrimary,
				Message: fmt.Sprintf("%s %s: %s (%s) used, %s (%s) differs",
					r.PaymentMethod, r.Currency, prev.Weights, rowVariant(prev), r.Weights, rowVariant(r)),
			})
		}
	}
	return warnings
}

func rowVariant(r splitflow.Row) string {
	v := r.Network
	if t := r.Tokenized.String(); t != "" {
		if v != "" {
			v += ", "
		}
		v += "tokenized " + t
	}
	if v == "" {
		return "no network"
	}
	return v
}

// MergeTable keeps the non-primary rows of current and applies final to the
// primary ones. Every primary row of a (method, currency) that final changes
// takes the new weights; rows of unchanged combinations are kept as they
// are, conflicting variants included. Combinations missing from final are
// dropped and new ones are added with default attributes.
func MergeTable(current Table, final splitflow.Config) Table {
	type key struct{ method, currency string }
	before := current.Config()
	present := make(map[key]bool)
	var rows Table
	for _, r := range current {
		if !Primary(r) {
			rows = append(rows, r)
			continue
		}
		k := key{r.PaymentMethod, r.Currency}
		w, ok := final.Get(k.method, k.currency)
		if !ok {
			continue
		}
		present[k] = true
		if old, _ := before.Get(k.method, k.currency); old != w {
			r.Weights = w
		}
		rows = append(rows, r)
	}

	for _, r := range TableFromConfig(final) {
		if !present[key{r.PaymentMethod, r.Currency}] {
			rows = append(rows, r)
		}
	}
	SortRows(rows)
	return rows
}
