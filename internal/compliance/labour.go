package compliance

import (
	"regexp"
	"strings"
)

// labourTerms mark a description as construction labour and so CIS-relevant
var labourTerms = []string{
	"labour", "labor",
	"groundworks", "site preparation", "site clearance", "excavation",
	"earth moving", "foundations", "footings",
	"bricklaying", "brickwork", "blockwork",
	"steel fixing", "formwork", "shuttering",
	"carpentry", "carpenter", "joinery", "joiner",
	"first fix", "second fix",
	"electrical installation", "wiring install", "install lighting",
	"pipework", "plumbing", "boiler installation", "cylinder installation",
	"installation",
	"reroof", "roof repairs",
	"slabbing", "fencing install", "decking install", "retaining wall",
	"demolition", "strip out", "dismantling",
	"erection",
	"painting", "decorating", "building maintenance", "repairs to",
}

// tradeNouns name a trade but also the goods it uses ("concrete", "roofing felt").
// They count as labour only when no materials term is present.
var tradeNouns = []string{
	"concrete", "masonry", "roofing", "paving", "scaffold", "scaffolding",
}

// timeUnitPattern matches day or hour rates as whole words, so "Monday" is not labour
var timeUnitPattern = regexp.MustCompile(`(?i)\b(?:day|days|hour|hours|hr|hrs)\b`)

// materialTerms mark goods supplied. They only shape the VAT narrative.
var materialTerms = []string{
	"material", "materials", "timber", "plasterboard", "screws",
	"fixings", "paint", "consumables", "adhesive", "sealant",
	"tiles", "roofing felt", "upvc", "copper pipe",
	"boiler", "cylinder", "lighting unit", "accessories",
	"ready-mix", "ready mix", "delivery", "supply only",
}

// IsLabour reports whether a description names construction labour
func IsLabour(description string) bool {
	if containsAnyTerm(description, labourTerms) || timeUnitPattern.MatchString(description) {
		return true
	}
	return containsAnyTerm(description, tradeNouns) && !IsMaterial(description)
}

// IsMaterial reports whether a description contains any materials term
func IsMaterial(description string) bool {
	return containsAnyTerm(description, materialTerms)
}

func containsAnyTerm(text string, terms []string) bool {
	s := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}
