package planner

import (
	"strings"

	"github.com/plantops/queryengine/internal/model"
)

// Intents recognized by the planner and the intent-table priors.
const (
	IntentDiagnose   = "diagnose"
	IntentFindPart   = "find_part"
	IntentStockCheck = "stock_check"
	IntentHistory    = "maintenance_history"
	IntentLocate     = "locate"
	IntentGeneral    = "general"
)

// intentKeywords maps lowercase query substrings to intents, checked in
// order. First hit wins.
var intentKeywords = []struct {
	keyword string
	intent  string
}{
	{"work order", IntentHistory},
	{"maintenance history", IntentHistory},
	{"last serviced", IntentHistory},
	{"service history", IntentHistory},
	{"in stock", IntentStockCheck},
	{"inventory", IntentStockCheck},
	{"stock", IntentStockCheck},
	{"on order", IntentStockCheck},
	{"replace", IntentFindPart},
	{"spare", IntentFindPart},
	{"order a", IntentFindPart},
	{"part number", IntentFindPart},
	{"where is", IntentLocate},
	{"located", IntentLocate},
	{"diagnos", IntentDiagnose},
	{"why is", IntentDiagnose},
	{"fault", IntentDiagnose},
	{"error", IntentDiagnose},
	{"failing", IntentDiagnose},
	{"broken", IntentDiagnose},
	{"not working", IntentDiagnose},
	{"won't", IntentDiagnose},
	{"troubleshoot", IntentDiagnose},
}

// DetectIntent classifies the query using a keyword table, falling back to
// the extracted entity types when no keyword matches.
func DetectIntent(query string, types map[model.EntityType]bool) string {
	lower := strings.ToLower(query)
	for _, kw := range intentKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.intent
		}
	}

	switch {
	case types[model.EntityFaultCode], types[model.EntitySymptom]:
		return IntentDiagnose
	case types[model.EntityStockStatus]:
		return IntentStockCheck
	case types[model.EntityPart]:
		return IntentFindPart
	case types[model.EntityLocation]:
		return IntentLocate
	default:
		return IntentGeneral
	}
}
