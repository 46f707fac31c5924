package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/meikuraledutech/splitflow"
)

var tableMethodNames = map[string]string{
	splitflow.MethodCard:      "Card",
	splitflow.MethodApplePay:  "Apple Pay",
	splitflow.MethodGooglePay: "Google Pay",
}

// Header returns the column titles of the canonical table.
func Header(routes [3]string) []string {
	return []string{
		"Payment Method", "Network", "Currency", "Affinity", "Adaptive 3DS",
		"Note", "Network Tokenized", routes[0], routes[1], routes[2],
	}
}

func record(r splitflow.Row) []string {
	name, ok := tableMethodNames[r.PaymentMethod]
	if !ok {
		name = r.PaymentMethod
	}
	affinity := "No"
	if r.Affinity {
		affinity = "Yes"
	}
	out := []string{name, r.Network, r.Currency, affinity, r.ThreeDS, r.Note, r.Tokenized.String()}
	if r.Weights.IsNoSplit() {
		return append(out, splitflow.NoSplitMarker, splitflow.NoSplitMarker, splitflow.NoSplitMarker)
	}
	for _, p := range r.Weights.Slice() {
		cell := ""
		if p != 0 {
			cell = strconv.Itoa(p) + "%"
		}
		out = append(out, cell)
	}
	return out
}

// WriteCSV writes rows with a header line. NoSplit rows carry the marker
// in every weight column and zero percentages are left blank.
func WriteCSV(w io.Writer, rows []splitflow.Row, routes [3]string) error {
	if routes == ([3]string{}) {
		routes = DefaultRouteNames
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(routes)); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(r io.Reader) ([]splitflow.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 10
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("splitflow: read table: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]splitflow.Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		w, err := parseWeights(rec[7:10])
		if err != nil {
			return nil, fmt.Errorf("splitflow: table line %d: %w", i+2, err)
		}
		rows = append(rows, splitflow.Row{
			PaymentMethod: splitflow.NormalizeMethod(rec[0]),
			Network:       rec[1],
			Currency:      splitflow.NormalizeCurrency(rec[2]),
			Affinity:      strings.EqualFold(rec[3], "Yes"),
			ThreeDS:       rec[4],
			Note:          rec[5],
			Tokenized:     splitflow.ParseTokenization(rec[6]),
			Weights:       w,
		})
	}
	return rows, nil
}

func parseWeights(cells []string) (splitflow.Weights, error) {
	if strings.TrimSpace(cells[0]) == splitflow.NoSplitMarker {
		return splitflow.NoSplit, nil
	}
	var pct [3]int
	for i, c := range cells {
		c = strings.TrimSuffix(strings.TrimSpace(c), "%")
		if c == "" {
			continue
		}
		v, err := strconv.Atoi(c)
		if err != nil {
			return splitflow.Weights{}, err
		}
		pct[i] = v
	}
	return splitflow.NewWeights(pct[0], pct[1], pct[2]), nil
}

// FormatTable renders rows as an aligned plain-text table.
func FormatTable(rows []splitflow.Row, routes [3]string) string {
	if routes == ([3]string{}) {
		routes = DefaultRouteNames
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(Header(routes), "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(record(r), "\t"))
	}
	tw.Flush()
	return b.String()
}
