package consensus

import (
	"strings"
	"time"

	"uzimasmart/internal/domain"
)

const AlertSource = "Community Report"

// AlertSeverityFor maps a report's severity and emergency flag to the alert
// level it warrants. ok is false when no alert should be raised.
func AlertSeverityFor(sev domain.Severity, emergency bool) (level domain.AlertSeverity, ok bool) {
	if sev == domain.SeveritySevere {
		return domain.AlertCritical, true
	}
	if emergency {
		return domain.AlertHigh, true
	}
	return "", false
}

// AlertPolicy builds the alert for a newly created report.
type AlertPolicy struct {
	th Thresholds
}

func NewAlertPolicy(th Thresholds) *AlertPolicy { return &AlertPolicy{th: th} }

// Build returns the alert to emit for r, if any. Merged submissions never
// reach here; the caller only asks for reports it has just created.
func (p *AlertPolicy) Build(r domain.Report, county domain.County, now time.Time) (domain.Alert, bool) {
	level, ok := AlertSeverityFor(r.Severity, r.IsEmergency)
	if !ok {
		return domain.Alert{}, false
	}
	return domain.Alert{
		ReportID:    r.ID,
		CountyID:    county.ID,
		AlertType:   r.EventType,
		Severity:    level,
		Title:       AlertTitle(r.EventType, county.Name),
		Description: Summarize(r.Description, p.th.AlertSummaryLen),
		Confidence:  r.ConfidenceScore,
		ValidFrom:   now,
		ValidUntil:  now.Add(p.th.AlertValidity),
		Source:      AlertSource,
		IsActive:    true,
		CreatedAt:   now,
	}, true
}

func AlertTitle(et domain.EventType, county string) string {
	return strings.ToUpper(strings.ReplaceAll(string(et), "_", " ")) + " Alert - " + county
}

// Summarize keeps the first n characters of s, appending "..." when it cut.
func Summarize(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
