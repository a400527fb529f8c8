package domain

import "strings"

// Submission is an incoming community report as received from a client.
type Submission struct {
	EventType       string   `json:"eventType" validate:"required,eventtype"`
	County          string   `json:"county" validate:"required"`
	Description     string   `json:"description" validate:"required,max=5000"`
	Severity        string   `json:"severity" validate:"required,oneof=low moderate high severe"`
	ContactNumber   string   `json:"contactNumber,omitempty" validate:"omitempty,kephone"`
	ReporterName    string   `json:"reporterName,omitempty" validate:"max=120"`
	LocationDetails string   `json:"locationDetails,omitempty" validate:"max=500"`
	Latitude        *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude       *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
	IsEmergency     bool     `json:"isEmergency,omitempty"`
}

func (s *Submission) Normalize() {
	s.EventType = strings.ToLower(strings.TrimSpace(s.EventType))
	s.County = strings.TrimSpace(s.County)
	s.Description = strings.TrimSpace(s.Description)
	s.Severity = strings.ToLower(strings.TrimSpace(s.Severity))
	s.ReporterName = strings.TrimSpace(s.ReporterName)
	s.LocationDetails = strings.TrimSpace(s.LocationDetails)
	if s.ContactNumber != "" {
		s.ContactNumber = NormalizePhone(s.ContactNumber)
	}
}

type InteractionInput struct {
	ReportID        string         `json:"-"`
	InteractionType string         `json:"interactionType" validate:"required,oneof=confirm dispute update similar"`
	PhoneNumber     string         `json:"phoneNumber" validate:"required,kephone"`
	Details         string         `json:"details,omitempty" validate:"max=2000"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func (in *InteractionInput) Normalize() {
	in.InteractionType = strings.ToLower(strings.TrimSpace(in.InteractionType))
	in.Details = strings.TrimSpace(in.Details)
	if in.PhoneNumber != "" {
		in.PhoneNumber = NormalizePhone(in.PhoneNumber)
	}
}

type SubscriptionInput struct {
	PhoneNumber         string `json:"phoneNumber" validate:"required,kephone"`
	WeatherAlerts       *bool  `json:"weatherAlerts,omitempty"`
	EmergencyAlerts     *bool  `json:"emergencyAlerts,omitempty"`
	ReportConfirmations *bool  `json:"reportConfirmations,omitempty"`
	Active              *bool  `json:"active,omitempty"`
}

func (in *SubscriptionInput) Normalize() {
	if in.PhoneNumber != "" {
		in.PhoneNumber = NormalizePhone(in.PhoneNumber)
	}
}
