package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aivs/invoice-compliance/internal/compliance"
	"github.com/aivs/invoice-compliance/internal/models"
)

// Analyst produces the narrative compliance report with a language model
type Analyst struct {
	provider  Provider
	knowledge ContextSource
}

// NewAnalyst creates an analyst. knowledge may be nil.
func NewAnalyst(provider Provider, knowledge ContextSource) *Analyst {
	return &Analyst{
		provider:  provider,
		knowledge: knowledge,
	}
}

// Analyse asks the model for a compliance report on the invoice text. The VAT
// decision is made locally and handed to the model as a fact. A failed
// knowledge lookup only drops the extra context; a failed model call is an error.
func (a *Analyst) Analyse(ctx context.Context, text string, flags models.ComplianceFlags) (models.ComplianceReport, error) {
	decision := compliance.DecideVAT(text, flags)

	var knowledgeContext string
	if a.knowledge != nil {
		kc, err := a.knowledge.Lookup(ctx, text)
		if err != nil {
			log.Printf("[AI] Knowledge lookup failed: %v", err)
		} else {
			knowledgeContext = kc
		}
	}

	prompt := BuildPrompt(knowledgeContext, decision, flags, text)

	raw, err := a.provider.Generate(ctx, prompt)
	if err != nil {
		return models.ComplianceReport{}, fmt.Errorf("narrative analysis failed: %w", err)
	}
	log.Printf("[AI] %s reply: %d bytes", a.provider.Name(), len(raw))

	reply := ParseReply(raw)
	if _, ok := reply.(PlainTextReply); ok {
		log.Printf("[AI] Reply was not a report object, using it as summary")
	}
	return Normalize(reply), nil
}

// BuildPrompt assembles the model prompt from the knowledge context, the local
// VAT decision, the caller's flags and the invoice text
func BuildPrompt(knowledgeContext string, decision models.VatDecision, flags models.ComplianceFlags, text string) string {
	drc := "No"
	if decision.DRCApplies {
		drc = "Yes"
	}
	cisRate := compliance.DefaultCISRate
	if flags.CISRate > 0 {
		cisRate = decimal.NewFromFloat(flags.CISRate)
	}

	var b strings.Builder
	b.WriteString("You are a UK accounting compliance expert (HMRC CIS & VAT).\n\n")
	b.WriteString("Use BOTH sources of information below.\n\n")
	b.WriteString("1) Reference material:\n---\n")
	b.WriteString(strings.TrimSpace(knowledgeContext))
	b.WriteString("\n---\n\n")
	b.WriteString("2) Invoice facts and user answers:\n---\n")
	fmt.Fprintf(&b, "VAT category: %s\n", decision.VATLabel)
	fmt.Fprintf(&b, "DRC applies: %s\n", drc)
	fmt.Fprintf(&b, "CIS rate: %s%%\n", cisRate.String())
	fmt.Fprintf(&b, "Reason: %s\n", decision.Reason)
	b.WriteString("---\n\n")
	b.WriteString(`Your tasks:
1. Check VAT & DRC treatment.
2. Check CIS calculation on labour.
3. Identify missing statutory wording.
4. Provide corrected invoice wording & compliance notes.
5. Return a single JSON object with exactly these string keys:
   "vat_check", "cis_check", "required_wording", "summary", "corrected_invoice".

Invoice text:
`)
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}
