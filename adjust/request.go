package adjust

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/meikuraledutech/splitflow"
)

// Request is the JSON body accepted by the reconcile endpoints.
type Request struct {
	DocumentRef    string          `json:"document_ref,omitempty" validate:"required_without=Document"`
	Document       json.RawMessage `json:"document,omitempty"`
	AdjustmentText string          `json:"adjustment_text" validate:"required"`
	AdjustmentMode string          `json:"adjustment_mode,omitempty" validate:"omitempty,oneof=update override"`
}

var (
	textMarker = `"adjustment_text"`
	modeMarker = `"adjustment_mode"`
	modeValue  = regexp.MustCompile(`"adjustment_mode"\s*:\s*"(\w+)"`)
)

// ParseRequest pulls the adjustment text and policy out of a webhook body.
// Well-formed JSON is decoded normally. Chat tools often post the text with
// raw line breaks inside the string, so anything else is scanned for the
// "adjustment_text" field by hand. An unknown mode falls back to update.
func ParseRequest(raw []byte) (string, splitflow.Policy, error) {
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return "", "", fmt.Errorf("%w: empty request body", splitflow.ErrInvalidAdjustmentSyntax)
	}

	var req Request
	text := ""
	mode := ""
	if err := json.Unmarshal([]byte(body), &req); err == nil {
		text, mode = req.AdjustmentText, req.AdjustmentMode
	} else {
		text = scanText(body)
		if m := modeValue.FindStringSubmatch(body); m != nil {
			mode = m[1]
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", fmt.Errorf("%w: adjustment_text missing or empty", splitflow.ErrInvalidAdjustmentSyntax)
	}
	policy, err := splitflow.ParsePolicy(mode)
	if err != nil {
		policy = splitflow.PolicyUpdate
	}
	return text, policy, nil
}

func scanText(body string) string {
	start := strings.Index(body, textMarker)
	if start < 0 {
		return ""
	}
	rest := body[start+len(textMarker):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = rest[colon+1:]
	if end := strings.Index(rest, modeMarker); end >= 0 {
		rest = rest[:end]
	} else if end := strings.LastIndex(rest, "}"); end >= 0 {
		rest = rest[:end]
	}

	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, ",")
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, `"`)
	rest = strings.TrimSuffix(rest, `"`)
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`).Replace(rest)
}
