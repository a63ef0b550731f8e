// Package models defines the alert domain model and the workflow state that
// the orchestrator threads through the analysis stages.
package models

// MitreInfo carries the MITRE ATT&CK classification attached to an alert by
// the upstream detection rule.
type MitreInfo struct {
	Tactics    []string `json:"tactics,omitempty"`
	Techniques []string `json:"techniques,omitempty"`
}

// AlertAssets identifies the assets involved in an alert.
type AlertAssets struct {
	Host          string `json:"host,omitempty"`
	SourceIP      string `json:"source_ip,omitempty"`
	DestinationIP string `json:"destination_ip,omitempty"`
	User          string `json:"user,omitempty"`
}

// Alert is a single work item submitted for analysis. AlertID is the
// caller-supplied business identifier and is not guaranteed unique; the
// workflow ID minted at submission is the process-unique handle.
type Alert struct {
	AlertID     string         `json:"alert_id"    validate:"required"`
	RuleID      string         `json:"rule_id"     validate:"required"`
	RuleName    string         `json:"rule_name,omitempty"`
	Severity    string         `json:"severity"    validate:"required,oneof=critical high medium low informational"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Description string         `json:"description" validate:"required"`
	Mitre       MitreInfo      `json:"mitre,omitempty"`
	Assets      AlertAssets    `json:"assets,omitempty"`
	RawData     map[string]any `json:"raw_data,omitempty"`
}
