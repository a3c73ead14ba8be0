package core

const (
	OutcomeSkipped         MatchOutcome = "skipped"
	OutcomeMatchedInstance MatchOutcome = "matched_instance"
	OutcomeMatchedTemplate MatchOutcome = "matched_template"
	OutcomeUnmatched       MatchOutcome = "unmatched"
)

type MatchOutcome string

// MatchResult is the matcher's verdict for one transaction. Exactly one
// outcome is set; the id fields that accompany it depend on the outcome.
// Unmatched is a normal result routed to manual triage, not an error.
type MatchResult struct {
	Outcome    MatchOutcome
	RuleID     int64
	InstanceID int64
	TemplateID int64
	Period     Period
}

// Skipped records a skip-rule hit: the transaction is not a bill.
func Skipped(ruleID int64) MatchResult {
	return MatchResult{Outcome: OutcomeSkipped, RuleID: ruleID}
}

// MatchedInstance records a match against a bill instance that already
// existed for the transaction's period.
func MatchedInstance(instanceID, templateID int64, period Period) MatchResult {
	return MatchResult{
		Outcome:    OutcomeMatchedInstance,
		InstanceID: instanceID,
		TemplateID: templateID,
		Period:     period,
	}
}

// MatchedTemplate records a template match whose instance was created on
// demand for the transaction's period.
func MatchedTemplate(templateID, instanceID int64, period Period) MatchResult {
	return MatchResult{
		Outcome:    OutcomeMatchedTemplate,
		TemplateID: templateID,
		InstanceID: instanceID,
		Period:     period,
	}
}

// Unmatched queues the transaction for manual review.
func Unmatched() MatchResult {
	return MatchResult{Outcome: OutcomeUnmatched}
}
