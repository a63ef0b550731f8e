// Package stages holds shared prompt helpers for the analysis stage
// executors in its subpackages.
package stages

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/socworks/argus/pkg/models"
)

// FormatAlert renders an alert as the structured text block every stage
// prompt starts from.
func FormatAlert(alert models.Alert) string {
	var b strings.Builder

	fmt.Fprintf(&b, "ALERT DETAILS:\n")
	fmt.Fprintf(&b, "Alert ID: %s\n", alert.AlertID)
	fmt.Fprintf(&b, "Rule ID: %s\n", alert.RuleID)
	fmt.Fprintf(&b, "Rule Name: %s\n", orNA(alert.RuleName))
	fmt.Fprintf(&b, "Severity: %s\n", alert.Severity)
	fmt.Fprintf(&b, "Timestamp: %s\n", orNA(alert.Timestamp))
	fmt.Fprintf(&b, "Description: %s\n", alert.Description)

	fmt.Fprintf(&b, "\nMITRE ATT&CK:\n")
	fmt.Fprintf(&b, "Tactics: %s\n", joinOrNone(alert.Mitre.Tactics))
	fmt.Fprintf(&b, "Techniques: %s\n", joinOrNone(alert.Mitre.Techniques))

	fmt.Fprintf(&b, "\nAFFECTED ASSETS:\n")
	fmt.Fprintf(&b, "Host: %s\n", orNA(alert.Assets.Host))
	fmt.Fprintf(&b, "Source IP: %s\n", orNA(alert.Assets.SourceIP))
	fmt.Fprintf(&b, "Destination IP: %s\n", orNA(alert.Assets.DestinationIP))
	fmt.Fprintf(&b, "User: %s\n", orNA(alert.Assets.User))

	fmt.Fprintf(&b, "\nRAW DATA:\n%s", formatRawData(alert.RawData))

	return b.String()
}

// FormatResult renders a prior stage result as indented JSON so later stages
// can reason over it.
func FormatResult(result any) string {
	if result == nil {
		return "Not available"
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "Not available"
	}

	return string(data)
}

func formatRawData(raw map[string]any) string {
	if len(raw) == 0 {
		return "No additional data"
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return "No additional data"
	}

	return string(data)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}

	return s
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}

	return strings.Join(items, ", ")
}
