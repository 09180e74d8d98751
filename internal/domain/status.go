package domain

import "strings"

type StatusClass string

const (
	StatusFinal        StatusClass = "final"
	StatusTransitional StatusClass = "transitional"
	StatusUnclassified StatusClass = "unclassified"
)

// The dashboard status taxonomy is open: the sets below cover the statuses the
// product knows about, and everything else classifies as unclassified rather
// than erroring.
var finalStatuses = map[string]struct{}{
	"AVAILABLE":             {},
	"ACTIVE":                {},
	"LOGGED":                {},
	"LOGGED IN":             {},
	"WRONG DETAILS":         {},
	"BACKUP CODE WRONG":     {},
	"TRANSFER LIST IS FULL": {},
	"AMOUNT TAKEN":          {},
}

var transitionalStatuses = map[string]struct{}{
	"LOGGING":  {},
	"PENDING":  {},
	"CHECKING": {},
}

// actionableStatuses are the final statuses worth registering for continuous
// watch: the account became usable.
var actionableStatuses = map[string]struct{}{
	"AVAILABLE": {},
	"ACTIVE":    {},
	"LOGGED":    {},
	"LOGGED IN": {},
}

func NormalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

func ClassifyStatus(status string) StatusClass {
	normalized := NormalizeStatus(status)
	if _, ok := finalStatuses[normalized]; ok {
		return StatusFinal
	}
	if _, ok := transitionalStatuses[normalized]; ok {
		return StatusTransitional
	}
	return StatusUnclassified
}

func IsActionableStatus(status string) bool {
	_, ok := actionableStatuses[NormalizeStatus(status)]
	return ok
}

// AttentionNote annotates statuses the operator should act on. Empty for
// everything else.
func AttentionNote(status string) string {
	switch NormalizeStatus(status) {
	case "BACKUP CODE WRONG", "WRONG DETAILS":
		return "needs attention"
	case "TRANSFER LIST IS FULL":
		return "transfer list full"
	case "AMOUNT TAKEN":
		return "amount taken"
	default:
		return ""
	}
}
