package ai

import (
	"encoding/json"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"

	"github.com/aivs/invoice-compliance/internal/models"
)

// NotProvided fills narrative fields the model left out
const NotProvided = "Not provided."

// Reply is what the narrative model returned: a StructuredReply or a PlainTextReply
type Reply interface {
	isReply()
}

// StructuredReply is a reply that decoded into an object with report keys
type StructuredReply struct {
	Fields map[string]string
}

// PlainTextReply is free text that carried no report object
type PlainTextReply struct {
	Text string
}

func (StructuredReply) isReply() {}
func (PlainTextReply) isReply()  {}

var reportKeys = []string{"vat_check", "cis_check", "required_wording", "summary", "corrected_invoice"}

var (
	codeFencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	noVATPattern     = regexp.MustCompile(`(?i)no vat`)
)

// ParseReply decodes a model reply. Strict JSON is tried first, then a repaired
// version, then Hjson. Anything that does not yield an object with at least one
// report key is plain text.
func ParseReply(raw string) Reply {
	cleaned := stripCodeFences(raw)

	obj, ok := decodeObject(cleaned)
	if !ok {
		var s string
		if err := json.Unmarshal([]byte(cleaned), &s); err == nil {
			return PlainTextReply{Text: strings.TrimSpace(s)}
		}
		return PlainTextReply{Text: cleaned}
	}

	fields := make(map[string]string)
	for _, key := range reportKeys {
		if v, found := obj[key]; found {
			fields[key] = stringify(v)
		}
	}
	if len(fields) == 0 {
		if msg, found := obj["error"]; found {
			return PlainTextReply{Text: stringify(msg)}
		}
		return PlainTextReply{Text: cleaned}
	}
	return StructuredReply{Fields: fields}
}

// Normalize converts either reply variant into the report shape shared with
// the rule engine
func Normalize(r Reply) models.ComplianceReport {
	switch reply := r.(type) {
	case StructuredReply:
		report := models.ComplianceReport{
			VATCheck:        fieldOr(reply.Fields, "vat_check"),
			CISCheck:        fieldOr(reply.Fields, "cis_check"),
			RequiredWording: fieldOr(reply.Fields, "required_wording"),
			Summary:         fieldOr(reply.Fields, "summary"),
		}
		if inv := strings.TrimSpace(reply.Fields["corrected_invoice"]); inv != "" {
			fixed := noVATPattern.ReplaceAllString(inv, "Zero-rated (0 %)")
			report.CorrectedInvoice = &fixed
		}
		return report

	case PlainTextReply:
		summary := strings.TrimSpace(reply.Text)
		if summary == "" {
			summary = "No AI response."
		}
		return models.ComplianceReport{
			VATCheck:        NotProvided,
			CISCheck:        NotProvided,
			RequiredWording: NotProvided,
			Summary:         summary,
		}

	default:
		return models.ComplianceReport{
			VATCheck:        NotProvided,
			CISCheck:        NotProvided,
			RequiredWording: NotProvided,
			Summary:         "No AI response.",
		}
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFencePattern.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

func decodeObject(s string) (map[string]interface{}, bool) {
	if s == "" {
		return nil, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj, true
	}

	if repaired, err := jsonrepair.RepairJSON(s); err == nil {
		obj = nil
		if err := json.Unmarshal([]byte(repaired), &obj); err == nil && obj != nil {
			return obj, true
		}
	}

	obj = nil
	if err := hjson.Unmarshal([]byte(s), &obj); err == nil && obj != nil {
		return obj, true
	}
	return nil, false
}

// stringify keeps strings as they are and renders anything else as JSON
func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func fieldOr(fields map[string]string, key string) string {
	if v := fields[key]; v != "" {
		return v
	}
	return NotProvided
}
