// Package adjust reads and writes the plain-text adjustment requests that
// describe a desired split configuration.
//
// A request is a sequence of method blocks:
//
//	CARD
//	- USD/CAD - 30%:30%:40%
//	OTHER - 20%：40%：40%
//
// Comment lines start with "@", "【", "*" or "#".
package adjust

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/meikuraledutech/splitflow"
)

var (
	headerLine = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	weightLine = regexp.MustCompile(`^(?:-\s*)?(\S+(?:\s*/\s*\S+)*)\s+-\s+(\d+)\s*%?\s*[:：]\s*(\d+)\s*%?\s*[:：]\s*(\d+)\s*%?$`)
)

var headerAliases = map[string]string{
	"card":       splitflow.MethodCard,
	"apple pay":  splitflow.MethodApplePay,
	"google pay": splitflow.MethodGooglePay,
}

var commentPrefixes = []string{"@", "【", "*", "#"}

func header(line string) (string, bool) {
	if headerLine.MatchString(line) {
		return splitflow.NormalizeMethod(line), true
	}
	if m, ok := headerAliases[strings.ToLower(line)]; ok {
		return m, true
	}
	return "", false
}

// Parse reads an adjustment request into a Config. Lines that are neither a
// header nor a weight line are ignored, and so are weight lines before the
// first header. A request without any weight line is rejected.
func Parse(text string) (splitflow.Config, error) {
	cfg := make(splitflow.Config)
	method := ""
	lines := 0

	for n, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || isComment(line) {
			continue
		}
		if m, ok := header(line); ok {
			method = m
			continue
		}
		match := weightLine.FindStringSubmatch(line)
		if match == nil || method == "" {
			continue
		}

		var pct [3]int
		for i := range pct {
			v, err := strconv.Atoi(match[i+2])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", splitflow.ErrInvalidAdjustmentSyntax, n+1, err)
			}
			pct[i] = v
		}
		w := splitflow.NewWeights(pct[0], pct[1], pct[2])
		for _, c := range strings.Split(match[1], "/") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.Set(method, splitflow.NormalizeCurrency(c), w)
			}
		}
		lines++
	}

	if lines == 0 {
		return nil, fmt.Errorf("%w: no weight lines", splitflow.ErrInvalidAdjustmentSyntax)
	}
	return cfg, nil
}

func isComment(line string) bool {
	for _, p := range commentPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// Format writes cfg in the request grammar. Currencies sharing the same
// weights are joined on one line. NoSplit entries have no textual form and
// are left out.
func Format(cfg splitflow.Config) string {
	var b strings.Builder
	for _, m := range cfg.Methods() {
		var order []splitflow.Weights
		groups := make(map[splitflow.Weights][]string)
		for _, c := range cfg.Currencies(m) {
			w := cfg[m][c]
			if w.IsNoSplit() {
				continue
			}
			if _, ok := groups[w]; !ok {
				order = append(order, w)
			}
			groups[w] = append(groups[w], c)
		}
		if len(order) == 0 {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m)
		b.WriteString("\n")
		for _, w := range order {
			fmt.Fprintf(&b, "%s - %d%%:%d%%:%d%%\n", strings.Join(groups[w], "/"), w.A, w.B, w.C)
		}
	}
	return b.String()
}
