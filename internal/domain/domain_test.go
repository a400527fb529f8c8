package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712345678", "+254712345678"},
		{"+254712345678", "+254712345678"},
		{"254 712 345 678", "+254712345678"},
		{"712345678", "+254712345678"},
		{"0112345678", "+254112345678"},
		{"  (0712) 345-678 ", "+254712345678"},
		{"12345", "12345"},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidPhone(t *testing.T) {
	valid := []string{"+254712345678", "+254812345678", "+254112345678"}
	invalid := []string{"+25471234567", "+254212345678", "0712345678", "+1555123456", ""}
	for _, p := range valid {
		if !ValidPhone(p) {
			t.Errorf("ValidPhone(%q) = false, want true", p)
		}
	}
	for _, p := range invalid {
		if ValidPhone(p) {
			t.Errorf("ValidPhone(%q) = true, want false", p)
		}
	}
}

func TestValidateSubmissionMissingFields(t *testing.T) {
	in := Submission{Description: "dry wells"}
	err := Validate(&in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, f := range []string{"eventType", "county", "severity"} {
		if !strings.Contains(verr.Msg, f) {
			t.Errorf("message %q does not name %s", verr.Msg, f)
		}
	}
	if strings.Contains(verr.Msg, "description") {
		t.Errorf("message %q names a field that was supplied", verr.Msg)
	}
}

func TestValidateSubmissionFieldRules(t *testing.T) {
	lat := 95.0
	base := func() Submission {
		return Submission{EventType: "drought", County: "Nairobi", Description: "no rain", Severity: "high"}
	}
	tests := []struct {
		name  string
		edit  func(*Submission)
		field string
	}{
		{"unknown event", func(s *Submission) { s.EventType = "volcano" }, "eventType"},
		{"bad severity", func(s *Submission) { s.Severity = "extreme" }, "severity"},
		{"bad phone", func(s *Submission) { s.ContactNumber = "+25412" }, "contactNumber"},
		{"bad latitude", func(s *Submission) { s.Latitude = &lat }, "latitude"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base()
			tt.edit(&in)
			var verr *ValidationError
			if err := Validate(&in); !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}

	ok := base()
	ok.ContactNumber = "+254712345678"
	if err := Validate(&ok); err != nil {
		t.Errorf("valid submission rejected: %v", err)
	}
}

func TestSubmissionNormalize(t *testing.T) {
	in := Submission{EventType: " Drought ", County: " Nairobi ", Severity: "HIGH", ContactNumber: "0712345678"}
	in.Normalize()
	if in.EventType != "drought" || in.County != "Nairobi" || in.Severity != "high" {
		t.Errorf("unexpected normalisation: %+v", in)
	}
	if in.ContactNumber != "+254712345678" {
		t.Errorf("contact = %q", in.ContactNumber)
	}
}

func TestNotFoundErrorMatchesSentinel(t *testing.T) {
	err := error(&NotFoundError{Resource: "report", ID: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
}

func TestKenyaCounties(t *testing.T) {
	if len(KenyaCounties) != 47 {
		t.Fatalf("got %d counties, want 47", len(KenyaCounties))
	}
	if c := KenyaCounties[46]; c.Name != "Nairobi" || c.Code != "047" || c.ID != 47 {
		t.Errorf("last county = %+v", c)
	}
}

func TestDayAndConfidenceAvg(t *testing.T) {
	ts := time.Date(2025, 3, 4, 23, 30, 0, 0, time.FixedZone("EAT", 3*3600))
	if got := Day(ts); !got.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day = %v", got)
	}
	a := DailyAnalytics{TotalReports: 4, ConfidenceSum: 2.4}
	if got := a.ConfidenceAvg(); got < 0.599 || got > 0.601 {
		t.Errorf("ConfidenceAvg = %v", got)
	}
	if (DailyAnalytics{}).ConfidenceAvg() != 0 {
		t.Error("empty avg should be 0")
	}
}
