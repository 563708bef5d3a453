package hazard

import (
	"fmt"
	"strings"
)

const (
	// ReplyLimit is the number of example records per feed shown in a chat reply.
	ReplyLimit = 3

	// UpdateLimit is the number of example records per feed pushed by the monitor.
	UpdateLimit = 2
)

// FormatDigest renders the snapshot as the chat reply of the hazard variant.
// Counts are always the full list lengths; only the first limit records of
// each feed are listed.
func FormatDigest(s Snapshot, limit int) string {
	var sb strings.Builder
	writeBody(&sb, s, limit)
	return sb.String()
}

// FormatUpdate renders the shorter digest pushed by the background monitor.
func FormatUpdate(s Snapshot, region string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚨 Hazard Update (%s)\n", region)
	writeBody(&sb, s, UpdateLimit)
	return sb.String()
}

func writeBody(sb *strings.Builder, s Snapshot, limit int) {
	fmt.Fprintf(sb, "📡 NWS Alerts: %d active alerts.\n", len(s.Alerts))
	for _, a := range head(s.Alerts, limit) {
		sb.WriteString(AlertLine(a))
		sb.WriteByte('\n')
	}

	fmt.Fprintf(sb, "\n📜 FEMA Disasters: %d records.\n", len(s.Disasters))
	for _, d := range head(s.Disasters, limit) {
		sb.WriteString(DisasterLine(d))
		sb.WriteByte('\n')
	}
}

// AlertLine formats an alert as "- event: headline".
func AlertLine(a Alert) string {
	return fmt.Sprintf("- %s: %s", a.Event, a.Headline)
}

// DisasterLine formats a declaration as "- incidentType on declarationDate in designatedArea.".
func DisasterLine(d Disaster) string {
	return fmt.Sprintf("- %s on %s in %s.", d.IncidentType, d.DeclarationDate, d.DesignatedArea)
}

func head[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
