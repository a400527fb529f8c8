package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uzimasmart/internal/domain"
)

type interactionDoc struct {
	ID          string                 `bson:"_id"`
	ReportID    string                 `bson:"reportId"`
	Type        domain.InteractionType `bson:"interactionType"`
	PhoneNumber string                 `bson:"phoneNumber"`
	Details     string                 `bson:"details,omitempty"`
	Metadata    map[string]any         `bson:"metadata,omitempty"`
	CreatedAt   time.Time              `bson:"createdAt"`
}

// RecordInteraction stores the interaction and then applies fn under the
// report's CAS loop. Without a transaction the two writes are not atomic:
// the interaction is inserted first so every tally taken in the loop
// includes it, and it is removed again if the report update fails.
func (s *Store) RecordInteraction(ctx context.Context, it domain.Interaction, fn func(r *domain.Report, tally domain.InteractionTally) error) (domain.Report, error) {
	if _, err := s.reportDoc(ctx, it.ReportID); err != nil {
		return domain.Report{}, err
	}
	doc := interactionDoc{
		ID: it.ID, ReportID: it.ReportID, Type: it.Type, PhoneNumber: it.PhoneNumber,
		Details: it.Details, Metadata: it.Metadata, CreatedAt: it.CreatedAt,
	}
	if _, err := s.interactions.InsertOne(ctx, doc); err != nil {
		return domain.Report{}, fmt.Errorf("insert interaction: %w", err)
	}
	r, err := s.UpdateReport(ctx, it.ReportID, func(r *domain.Report) error {
		tally, err := s.tally(ctx, it.ReportID)
		if err != nil {
			return err
		}
		return fn(r, tally)
	})
	if err != nil {
		// the caller's context may be what failed
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_, _ = s.interactions.DeleteOne(cctx, bson.M{"_id": it.ID})
		return domain.Report{}, err
	}
	return r, nil
}

func (s *Store) tally(ctx context.Context, reportID string) (domain.InteractionTally, error) {
	var tally domain.InteractionTally
	cur, err := s.interactions.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"reportId": reportID}}},
		{{Key: "$group", Value: bson.M{"_id": "$interactionType", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return tally, fmt.Errorf("tally interactions: %w", err)
	}
	var groups []struct {
		Type domain.InteractionType `bson:"_id"`
		N    int                    `bson:"n"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return tally, err
	}
	for _, g := range groups {
		tally.Add(g.Type, g.N)
	}
	return tally, nil
}

func (s *Store) Interactions(ctx context.Context, reportID string) ([]domain.Interaction, error) {
	cur, err := s.interactions.Find(ctx, bson.M{"reportId": reportID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	var docs []interactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Interaction, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Interaction{
			ID: d.ID, ReportID: d.ReportID, Type: d.Type, PhoneNumber: d.PhoneNumber,
			Details: d.Details, Metadata: d.Metadata, CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

// Alerts

type alertDoc struct {
	ID          string               `bson:"_id"`
	ReportID    string               `bson:"reportId"`
	CountyID    int                  `bson:"countyId"`
	AlertType   domain.EventType     `bson:"alertType"`
	Severity    domain.AlertSeverity `bson:"severity"`
	Title       string               `bson:"title"`
	Description string               `bson:"description"`
	Confidence  float64              `bson:"confidence"`
	ValidFrom   time.Time            `bson:"validFrom"`
	ValidUntil  time.Time            `bson:"validUntil"`
	Source      string               `bson:"source"`
	IsActive    bool                 `bson:"isActive"`
	CreatedAt   time.Time            `bson:"createdAt"`
}

func (s *Store) CreateAlert(ctx context.Context, a domain.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.alerts.InsertOne(ctx, alertDoc(a))
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, f domain.AlertFilter) ([]domain.Alert, error) {
	filter := bson.M{}
	if f.CountyID != nil {
		filter["countyId"] = *f.CountyID
	}
	if f.ActiveAt != nil {
		filter["isActive"] = true
		filter["validFrom"] = bson.M{"$lte": *f.ActiveAt}
		filter["validUntil"] = bson.M{"$gt": *f.ActiveAt}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := s.alerts.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	var docs []alertDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Alert, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Alert(d))
	}
	return out, nil
}

// Subscriptions

type subscriptionDoc struct {
	ID                  string    `bson:"_id"`
	PhoneNumber         string    `bson:"phoneNumber"`
	WeatherAlerts       bool      `bson:"weatherAlerts"`
	EmergencyAlerts     bool      `bson:"emergencyAlerts"`
	ReportConfirmations bool      `bson:"reportConfirmations"`
	IsActive            bool      `bson:"isActive"`
	SubscribedAt        time.Time `bson:"subscribedAt"`
	UpdatedAt           time.Time `bson:"updatedAt"`
}

func (s *Store) UpsertSubscription(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	var d subscriptionDoc
	err := s.subs.FindOneAndUpdate(ctx,
		bson.M{"phoneNumber": sub.PhoneNumber},
		bson.M{
			"$set": bson.M{
				"weatherAlerts":       sub.WeatherAlerts,
				"emergencyAlerts":     sub.EmergencyAlerts,
				"reportConfirmations": sub.ReportConfirmations,
				"isActive":            sub.IsActive,
				"updatedAt":           sub.UpdatedAt,
			},
			"$setOnInsert": bson.M{"_id": sub.ID, "subscribedAt": sub.SubscribedAt},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&d)
	if err != nil {
		return sub, fmt.Errorf("upsert subscription: %w", err)
	}
	return domain.Subscription(d), nil
}

func (s *Store) Subscription(ctx context.Context, phone string) (domain.Subscription, error) {
	var d subscriptionDoc
	err := s.subs.FindOne(ctx, bson.M{"phoneNumber": phone}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Subscription{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Subscription{}, err
	}
	return domain.Subscription(d), nil
}

func (s *Store) EmergencySubscribers(ctx context.Context) ([]string, error) {
	cur, err := s.subs.Find(ctx, bson.M{"isActive": true, "emergencyAlerts": true},
		options.Find().SetProjection(bson.M{"phoneNumber": 1}).SetSort(bson.D{{Key: "phoneNumber", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		PhoneNumber string `bson:"phoneNumber"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.PhoneNumber)
	}
	return out, nil
}

// Analytics

type analyticsDoc struct {
	CountyID        int              `bson:"countyId"`
	EventType       domain.EventType `bson:"eventType"`
	Day             time.Time        `bson:"day"`
	TotalReports    int              `bson:"totalReports"`
	VerifiedReports int              `bson:"verifiedReports"`
	Low             int              `bson:"low"`
	Moderate        int              `bson:"moderate"`
	High            int              `bson:"high"`
	Severe          int              `bson:"severe"`
	ConfidenceSum   float64          `bson:"confidenceSum"`
}

func (s *Store) bumpAnalytics(ctx context.Context, countyID int, eventType domain.EventType, day time.Time, inc bson.M) error {
	_, err := s.analytics.UpdateOne(ctx,
		bson.M{"countyId": countyID, "eventType": eventType, "day": domain.Day(day)},
		bson.M{"$inc": inc},
		options.Update().SetUpsert(true))
	return err
}

func (s *Store) RecordSubmission(ctx context.Context, countyID int, eventType domain.EventType, sev domain.Severity, day time.Time, confidence float64) error {
	inc := bson.M{"totalReports": 1, "confidenceSum": confidence}
	switch sev {
	case domain.SeverityLow:
		inc["low"] = 1
	case domain.SeverityModerate:
		inc["moderate"] = 1
	case domain.SeverityHigh:
		inc["high"] = 1
	case domain.SeveritySevere:
		inc["severe"] = 1
	}
	return s.bumpAnalytics(ctx, countyID, eventType, day, inc)
}

func (s *Store) RecordVerified(ctx context.Context, countyID int, eventType domain.EventType, day time.Time) error {
	return s.bumpAnalytics(ctx, countyID, eventType, day, bson.M{"verifiedReports": 1})
}

func (s *Store) Analytics(ctx context.Context, f domain.AnalyticsFilter) ([]domain.DailyAnalytics, error) {
	filter := bson.M{"day": bson.M{"$gte": domain.Day(f.Since)}}
	if f.CountyID != nil {
		filter["countyId"] = *f.CountyID
	}
	if f.EventType != "" {
		filter["eventType"] = f.EventType
	}
	cur, err := s.analytics.Find(ctx, filter, options.Find().SetSort(bson.D{
		{Key: "day", Value: -1}, {Key: "countyId", Value: 1}, {Key: "eventType", Value: 1},
	}))
	if err != nil {
		return nil, fmt.Errorf("analytics: %w", err)
	}
	var docs []analyticsDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.DailyAnalytics, 0, len(docs))
	for _, d := range docs {
		d.Day = d.Day.UTC()
		out = append(out, domain.DailyAnalytics(d))
	}
	return out, nil
}
