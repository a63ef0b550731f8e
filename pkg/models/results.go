package models

import "time"

// Verdict is an analyst conclusion about an alert.
type Verdict string

const (
	VerdictTruePositive  Verdict = "true_positive"
	VerdictFalsePositive Verdict = "false_positive"
	VerdictBenign        Verdict = "benign"
	VerdictSuspicious    Verdict = "suspicious"
	VerdictUnknown       Verdict = "unknown"
)

// Valid reports whether v is one of the known verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictTruePositive, VerdictFalsePositive, VerdictBenign, VerdictSuspicious, VerdictUnknown:
		return true
	}

	return false
}

// Priority ranks how urgently a confirmed alert needs handling.
type Priority string

const (
	PriorityCritical      Priority = "critical"
	PriorityHigh          Priority = "high"
	PriorityMedium        Priority = "medium"
	PriorityLow           Priority = "low"
	PriorityInformational Priority = "informational"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow, PriorityInformational:
		return true
	}

	return false
}

// TriageResult is the outcome of the first-pass noise filter. The
// RequiresInvestigation flag is the sole input to the conditional edge that
// decides whether the investigation stage runs.
type TriageResult struct {
	Verdict               Verdict   `json:"verdict"`
	Confidence            float64   `json:"confidence"`
	NoiseScore            float64   `json:"noise_score"`
	RequiresInvestigation bool      `json:"requires_investigation"`
	KeyIndicators         []string  `json:"key_indicators,omitempty"`
	Reasoning             string    `json:"reasoning"`
	Timestamp             time.Time `json:"timestamp"`
}

// InvestigationResult is the evidence gathered when triage asked for a deeper
// look. Absent on workflows where triage skipped investigation.
type InvestigationResult struct {
	Summary       string    `json:"summary"`
	RelatedEvents []string  `json:"related_events,omitempty"`
	IOCs          []string  `json:"iocs,omitempty"`
	AttackChain   []string  `json:"attack_chain,omitempty"`
	ThreatIntel   string    `json:"threat_intel,omitempty"`
	Confidence    float64   `json:"confidence"`
	Timestamp     time.Time `json:"timestamp"`
}

// DecisionResult is the final analyst verdict with its handling plan.
type DecisionResult struct {
	FinalVerdict       Verdict   `json:"final_verdict"`
	Priority           Priority  `json:"priority"`
	Confidence         float64   `json:"confidence"`
	RecommendedActions []string  `json:"recommended_actions,omitempty"`
	EscalationRequired bool      `json:"escalation_required"`
	EstimatedImpact    string    `json:"estimated_impact,omitempty"`
	Reasoning          string    `json:"reasoning"`
	Timestamp          time.Time `json:"timestamp"`
}

// ResponseResult records the containment and notification actions taken for
// the alert.
type ResponseResult struct {
	ActionsTaken      []string  `json:"actions_taken,omitempty"`
	TicketID          string    `json:"ticket_id,omitempty"`
	NotificationsSent []string  `json:"notifications_sent,omitempty"`
	Summary           string    `json:"summary"`
	Timestamp         time.Time `json:"timestamp"`
}
