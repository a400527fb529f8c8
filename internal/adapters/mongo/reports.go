package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uzimasmart/internal/domain"
)

type reportDoc struct {
	ID                 string                    `bson:"_id"`
	EventType          domain.EventType          `bson:"eventType"`
	CountyID           int                       `bson:"countyId"`
	Severity           domain.Severity           `bson:"severity"`
	Description        string                    `bson:"description"`
	Latitude           *float64                  `bson:"latitude,omitempty"`
	Longitude          *float64                  `bson:"longitude,omitempty"`
	LocationDetails    string                    `bson:"locationDetails,omitempty"`
	ContactNumber      string                    `bson:"contactNumber,omitempty"`
	ReporterName       string                    `bson:"reporterName,omitempty"`
	IsEmergency        bool                      `bson:"isEmergency"`
	IsPublic           bool                      `bson:"isPublic"`
	VerificationStatus domain.VerificationStatus `bson:"verificationStatus"`
	VerifiedBy         string                    `bson:"verifiedBy,omitempty"`
	VerifiedAt         *time.Time                `bson:"verifiedAt,omitempty"`
	ConfidenceScore    float64                   `bson:"confidenceScore"`
	ReportCount        int                       `bson:"reportCount"`
	SimilarReports     []string                  `bson:"similarReports"`
	CreatedAt          time.Time                 `bson:"createdAt"`
	UpdatedAt          time.Time                 `bson:"updatedAt"`
	Version            int64                     `bson:"version"`
}

func toReportDoc(r domain.Report, version int64) reportDoc {
	similar := r.SimilarReports
	if similar == nil {
		similar = []string{}
	}
	return reportDoc{
		ID:                 r.ID,
		EventType:          r.EventType,
		CountyID:           r.CountyID,
		Severity:           r.Severity,
		Description:        r.Description,
		Latitude:           r.Latitude,
		Longitude:          r.Longitude,
		LocationDetails:    r.LocationDetails,
		ContactNumber:      r.ContactNumber,
		ReporterName:       r.ReporterName,
		IsEmergency:        r.IsEmergency,
		IsPublic:           r.IsPublic,
		VerificationStatus: r.VerificationStatus,
		VerifiedBy:         r.VerifiedBy,
		VerifiedAt:         r.VerifiedAt,
		ConfidenceScore:    r.ConfidenceScore,
		ReportCount:        r.ReportCount,
		SimilarReports:     similar,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Version:            version,
	}
}

func (d reportDoc) report(county domain.County) domain.Report {
	return domain.Report{
		ID:                 d.ID,
		EventType:          d.EventType,
		CountyID:           d.CountyID,
		County:             county,
		Severity:           d.Severity,
		Description:        d.Description,
		Latitude:           d.Latitude,
		Longitude:          d.Longitude,
		LocationDetails:    d.LocationDetails,
		ContactNumber:      d.ContactNumber,
		ReporterName:       d.ReporterName,
		IsEmergency:        d.IsEmergency,
		IsPublic:           d.IsPublic,
		VerificationStatus: d.VerificationStatus,
		VerifiedBy:         d.VerifiedBy,
		VerifiedAt:         d.VerifiedAt,
		ConfidenceScore:    d.ConfidenceScore,
		ReportCount:        d.ReportCount,
		SimilarReports:     d.SimilarReports,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

func trim(s string) string { return strings.TrimSpace(s) }

func (s *Store) CreateReport(ctx context.Context, r domain.Report) error {
	if _, err := s.reports.InsertOne(ctx, toReportDoc(r, 1)); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *Store) Report(ctx context.Context, id string) (domain.Report, error) {
	d, err := s.reportDoc(ctx, id)
	if err != nil {
		return domain.Report{}, err
	}
	return d.report(s.county(d.CountyID)), nil
}

func (s *Store) reportDoc(ctx context.Context, id string) (reportDoc, error) {
	var d reportDoc
	err := s.reports.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return d, domain.ErrNotFound
	}
	return d, err
}

func (s *Store) ListReports(ctx context.Context, f domain.ReportFilter) ([]domain.Report, int, error) {
	filter := bson.M{"isPublic": true}
	if f.CountyID != nil {
		filter["countyId"] = *f.CountyID
	}
	if f.EventType != "" {
		filter["eventType"] = f.EventType
	}
	if f.Status != "" {
		filter["verificationStatus"] = f.Status
	}
	total, err := s.reports.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(f.Offset))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	out, err := s.findReports(ctx, filter, opts)
	return out, int(total), err
}

func (s *Store) RecentSimilar(ctx context.Context, countyID int, eventType domain.EventType, since time.Time, limit int) ([]domain.Report, error) {
	filter := bson.M{
		"countyId":           countyID,
		"eventType":          eventType,
		"createdAt":          bson.M{"$gte": since},
		"verificationStatus": bson.M{"$ne": domain.StatusDuplicate},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	return s.findReports(ctx, filter, opts)
}

func (s *Store) findReports(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Report, error) {
	cur, err := s.reports.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find reports: %w", err)
	}
	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Report, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.report(s.county(d.CountyID)))
	}
	return out, nil
}

// UpdateReport reads the report, applies fn and writes it back only if the
// version is unchanged, retrying from a fresh read otherwise.
func (s *Store) UpdateReport(ctx context.Context, id string, fn func(r *domain.Report) error) (domain.Report, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		d, err := s.reportDoc(ctx, id)
		if err != nil {
			return domain.Report{}, err
		}
		r := d.report(s.county(d.CountyID))
		if err := fn(&r); err != nil {
			return domain.Report{}, err
		}
		res, err := s.reports.UpdateOne(ctx,
			bson.M{"_id": id, "version": d.Version},
			bson.M{
				"$set": bson.M{
					"verificationStatus": r.VerificationStatus,
					"verifiedBy":         r.VerifiedBy,
					"verifiedAt":         r.VerifiedAt,
					"confidenceScore":    r.ConfidenceScore,
					"reportCount":        r.ReportCount,
					"similarReports":     toReportDoc(r, 0).SimilarReports,
					"updatedAt":          r.UpdatedAt,
				},
				"$inc": bson.M{"version": 1},
			})
		if err != nil {
			return domain.Report{}, fmt.Errorf("update report: %w", err)
		}
		if res.MatchedCount == 1 {
			return r, nil
		}
		if err := ctx.Err(); err != nil {
			return domain.Report{}, err
		}
	}
	return domain.Report{}, ErrConflict
}
