package domain

import "time"

// Core domain models. HTTP shapes live in the http adapter; keep these free of
// transport concerns.

type EventType string

const (
	EventDrought         EventType = "drought"
	EventFlooding        EventType = "flooding"
	EventCropDamage      EventType = "crop_damage"
	EventExtremeWeather  EventType = "extreme_weather"
	EventPestOutbreak    EventType = "pest_outbreak"
	EventDiseaseOutbreak EventType = "disease_outbreak"
)

var EventTypes = []EventType{
	EventDrought,
	EventFlooding,
	EventCropDamage,
	EventExtremeWeather,
	EventPestOutbreak,
	EventDiseaseOutbreak,
}

func (e EventType) Valid() bool {
	for _, v := range EventTypes {
		if e == v {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeveritySevere   Severity = "severe"
)

var Severities = []Severity{SeverityLow, SeverityModerate, SeverityHigh, SeveritySevere}

type AlertSeverity string

const (
	AlertHigh     AlertSeverity = "high"
	AlertCritical AlertSeverity = "critical"
)

type VerificationStatus string

const (
	StatusPending   VerificationStatus = "pending"
	StatusVerified  VerificationStatus = "verified"
	StatusRejected  VerificationStatus = "rejected"
	StatusDuplicate VerificationStatus = "duplicate"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusRejected, StatusDuplicate:
		return true
	}
	return false
}

type InteractionType string

const (
	InteractionConfirm InteractionType = "confirm"
	InteractionDispute InteractionType = "dispute"
	InteractionUpdate  InteractionType = "update"
	InteractionSimilar InteractionType = "similar"
)

var InteractionTypes = []InteractionType{
	InteractionConfirm,
	InteractionDispute,
	InteractionUpdate,
	InteractionSimilar,
}

type County struct {
	ID   int
	Code string
	Name string
}

type Report struct {
	ID          string
	EventType   EventType
	CountyID    int
	County      County // resolved on read
	Severity    Severity
	Description string

	Latitude        *float64
	Longitude       *float64
	LocationDetails string

	ContactNumber string
	ReporterName  string

	IsEmergency bool
	IsPublic    bool

	VerificationStatus VerificationStatus
	VerifiedBy         string
	VerifiedAt         *time.Time
	ConfidenceScore    float64
	ReportCount        int
	SimilarReports     []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Interaction struct {
	ID          string
	ReportID    string
	Type        InteractionType
	PhoneNumber string
	Details     string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// InteractionTally counts the recorded interactions of a report by type.
type InteractionTally struct {
	Confirms int
	Disputes int
	Updates  int
	Similar  int
}

func (t InteractionTally) Total() int { return t.Confirms + t.Disputes + t.Updates + t.Similar }

func (t *InteractionTally) Add(kind InteractionType, n int) {
	switch kind {
	case InteractionConfirm:
		t.Confirms += n
	case InteractionDispute:
		t.Disputes += n
	case InteractionUpdate:
		t.Updates += n
	case InteractionSimilar:
		t.Similar += n
	}
}

type Alert struct {
	ID          string
	ReportID    string
	CountyID    int
	AlertType   EventType
	Severity    AlertSeverity
	Title       string
	Description string
	Confidence  float64
	ValidFrom   time.Time
	ValidUntil  time.Time
	Source      string
	IsActive    bool
	CreatedAt   time.Time
}

type Subscription struct {
	ID                  string
	PhoneNumber         string
	WeatherAlerts       bool
	EmergencyAlerts     bool
	ReportConfirmations bool
	IsActive            bool
	SubscribedAt        time.Time
	UpdatedAt           time.Time
}

// DailyAnalytics aggregates submissions per county, event type and UTC day.
type DailyAnalytics struct {
	CountyID        int
	EventType       EventType
	Day             time.Time
	TotalReports    int
	VerifiedReports int
	Low             int
	Moderate        int
	High            int
	Severe          int
	ConfidenceSum   float64
}

func (a DailyAnalytics) ConfidenceAvg() float64 {
	if a.TotalReports == 0 {
		return 0
	}
	return a.ConfidenceSum / float64(a.TotalReports)
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type ReportFilter struct {
	CountyID  *int
	EventType EventType
	Status    VerificationStatus
	Limit     int
	Offset    int
}

type AlertFilter struct {
	CountyID *int
	ActiveAt *time.Time
	Limit    int
}

type AnalyticsFilter struct {
	CountyID  *int
	EventType EventType
	Since     time.Time
}
