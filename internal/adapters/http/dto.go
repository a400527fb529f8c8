package httpadapter

import (
	"time"

	"uzimasmart/internal/domain"
	"uzimasmart/internal/ports"
)

// Wire shapes. Contact numbers are accepted on input but never echoed back.

type countyJSON struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type reportJSON struct {
	ID                 string     `json:"id"`
	EventType          string     `json:"eventType"`
	County             countyJSON `json:"county"`
	Severity           string     `json:"severity"`
	Description        string     `json:"description"`
	Latitude           *float64   `json:"latitude,omitempty"`
	Longitude          *float64   `json:"longitude,omitempty"`
	LocationDetails    string     `json:"locationDetails,omitempty"`
	ReporterName       string     `json:"reporterName,omitempty"`
	IsEmergency        bool       `json:"isEmergency"`
	IsPublic           bool       `json:"isPublic"`
	VerificationStatus string     `json:"verificationStatus"`
	VerifiedBy         string     `json:"verifiedBy,omitempty"`
	VerifiedAt         *time.Time `json:"verifiedAt,omitempty"`
	ConfidenceScore    float64    `json:"confidenceScore"`
	ReportCount        int        `json:"reportCount"`
	SimilarReports     []string   `json:"similarReports"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type submitResponse struct {
	Report     reportJSON `json:"report"`
	Merged     bool       `json:"merged"`
	MergedInto string     `json:"mergedInto,omitempty"`
	Alert      *alertJSON `json:"alert,omitempty"`
}

type pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type reportListResponse struct {
	Reports    []reportJSON `json:"reports"`
	Pagination pagination   `json:"pagination"`
}

type interactionJSON struct {
	ID              string         `json:"id"`
	ReportID        string         `json:"reportId"`
	InteractionType string         `json:"interactionType"`
	PhoneNumber     string         `json:"phoneNumber"`
	Details         string         `json:"details,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type interactResponse struct {
	Interaction interactionJSON `json:"interaction"`
	Report      reportJSON      `json:"report"`
}

type interactionSummaryJSON struct {
	Total    int `json:"total"`
	Confirms int `json:"confirms"`
	Disputes int `json:"disputes"`
	Updates  int `json:"updates"`
	Similar  int `json:"similar"`
}

type interactionListResponse struct {
	Interactions []interactionJSON           `json:"interactions"`
	Grouped      map[string][]interactionJSON `json:"grouped"`
	Summary      interactionSummaryJSON      `json:"summary"`
}

type alertJSON struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"reportId"`
	CountyID    int       `json:"countyId"`
	AlertType   string    `json:"alertType"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	ValidFrom   time.Time `json:"validFrom"`
	ValidUntil  time.Time `json:"validUntil"`
	Source      string    `json:"source"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
}

type analyticsJSON struct {
	CountyID        int     `json:"countyId"`
	EventType       string  `json:"eventType"`
	Date            string  `json:"date"`
	TotalReports    int     `json:"totalReports"`
	VerifiedReports int     `json:"verifiedReports"`
	Low             int     `json:"low"`
	Moderate        int     `json:"moderate"`
	High            int     `json:"high"`
	Severe          int     `json:"severe"`
	ConfidenceAvg   float64 `json:"confidenceAvg"`
}

type subscriptionJSON struct {
	ID                  string    `json:"id"`
	PhoneNumber         string    `json:"phoneNumber"`
	WeatherAlerts       bool      `json:"weatherAlerts"`
	EmergencyAlerts     bool      `json:"emergencyAlerts"`
	ReportConfirmations bool      `json:"reportConfirmations"`
	IsActive            bool      `json:"isActive"`
	SubscribedAt        time.Time `json:"subscribedAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func toCounty(c domain.County) countyJSON {
	return countyJSON{ID: c.ID, Code: c.Code, Name: c.Name}
}

func toReport(r domain.Report) reportJSON {
	similar := r.SimilarReports
	if similar == nil {
		similar = []string{}
	}
	county := r.County
	if county.ID == 0 {
		county.ID = r.CountyID
	}
	return reportJSON{
		ID:                 r.ID,
		EventType:          string(r.EventType),
		County:             toCounty(county),
		Severity:           string(r.Severity),
		Description:        r.Description,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		LocationDetails:    r.LocationDetails,
		ReporterName:       r.ReporterName,
		IsEmergency:        r.IsEmergency,
		IsPublic:           r.IsPublic,
		VerificationStatus: string(r.VerificationStatus),
		VerifiedBy:         r.VerifiedBy,
		VerifiedAt:         r.VerifiedAt,
		ConfidenceScore:    r.ConfidenceScore,
		ReportCount:        r.ReportCount,
		SimilarReports:     similar,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toReports(rs []domain.Report) []reportJSON {
	out := make([]reportJSON, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReport(r))
	}
	return out
}

func toSubmit(res ports.SubmitResult) submitResponse {
	out := submitResponse{Report: toReport(res.Report), Merged: res.Merged, MergedInto: res.MergedInto}
	if res.Alert != nil {
		a := toAlert(*res.Alert)
		out.Alert = &a
	}
	return out
}

func toInteraction(it domain.Interaction) interactionJSON {
	return interactionJSON{
		ID:              it.ID,
		ReportID:        it.ReportID,
		InteractionType: string(it.Type),
		PhoneNumber:     it.PhoneNumber,
		Details:         it.Details,
		Metadata:        it.Metadata,
		CreatedAt:       it.CreatedAt,
	}
}

func toInteractions(its []domain.Interaction) []interactionJSON {
	out := make([]interactionJSON, 0, len(its))
	for _, it := range its {
		out = append(out, toInteraction(it))
	}
	return out
}

func toInteractionList(sum ports.InteractionSummary) interactionListResponse {
	grouped := make(map[string][]interactionJSON, len(sum.Grouped))
	for _, kind := range domain.InteractionTypes {
		grouped[string(kind)] = toInteractions(sum.Grouped[kind])
	}
	return interactionListResponse{
		Interactions: toInteractions(sum.Interactions),
		Grouped:      grouped,
		Summary: interactionSummaryJSON{
			Total:    sum.Tally.Total(),
			Confirms: sum.Tally.Confirms,
			Disputes: sum.Tally.Disputes,
			Updates:  sum.Tally.Updates,
			Similar:  sum.Tally.Similar,
		},
	}
}

func toAlert(a domain.Alert) alertJSON {
	return alertJSON{
		ID:          a.ID,
		ReportID:    a.ReportID,
		CountyID:    a.CountyID,
		AlertType:   string(a.AlertType),
		Severity:    string(a.Severity),
		Title:       a.Title,
		Description: a.Description,
		Confidence:  a.Confidence,
		ValidFrom:   a.ValidFrom,
		ValidUntil:  a.ValidUntil,
		Source:      a.Source,
		IsActive:    a.IsActive,
		CreatedAt:   a.CreatedAt,
	}
}

func toAnalytics(a domain.DailyAnalytics) analyticsJSON {
	return analyticsJSON{
		CountyID:        a.CountyID,
		EventType:       string(a.EventType),
		Date:            a.Day.Format(time.DateOnly),
		TotalReports:    a.TotalReports,
		VerifiedReports: a.VerifiedReports,
		Low:             a.Low,
		Moderate:        a.Moderate,
		High:            a.High,
		Severe:          a.Severe,
		ConfidenceAvg:   a.ConfidenceAvg(),
	}
}

func toSubscription(s domain.Subscription) subscriptionJSON {
	return subscriptionJSON{
		ID:                  s.ID,
		PhoneNumber:         s.PhoneNumber,
		WeatherAlerts:       s.WeatherAlerts,
		EmergencyAlerts:     s.EmergencyAlerts,
		ReportConfirmations: s.ReportConfirmations,
		IsActive:            s.IsActive,
		SubscribedAt:        s.SubscribedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}
