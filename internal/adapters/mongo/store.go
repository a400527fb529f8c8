// Package mongo is a document Event Store. MongoDB has no row locks in the
// sense the SQL stores use, so report mutations are compare-and-set on a
// version field and retried on conflict.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uzimasmart/internal/domain"
)

// maxCASAttempts bounds the retry loop of a contended report update.
const maxCASAttempts = 16

// ErrConflict is returned when a report update lost every CAS attempt.
var ErrConflict = errors.New("mongo: report update conflict")

type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	counties     *mongo.Collection
	reports      *mongo.Collection
	interactions *mongo.Collection
	alerts       *mongo.Collection
	subs         *mongo.Collection
	analytics    *mongo.Collection

	mu       sync.RWMutex
	byID     map[int]domain.County
	countyLs []domain.County
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	db := client.Database(database)
	return &Store{
		client:       client,
		db:           db,
		counties:     db.Collection("counties"),
		reports:      db.Collection("reports"),
		interactions: db.Collection("report_interactions"),
		alerts:       db.Collection("alerts"),
		subs:         db.Collection("sms_subscriptions"),
		analytics:    db.Collection("report_analytics"),
	}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Migrate creates indexes and seeds the county collection. It is safe to
// run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.counties, mongo.IndexModel{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(caseInsensitive),
		}},
		{s.reports, mongo.IndexModel{
			Keys: bson.D{{Key: "countyId", Value: 1}, {Key: "eventType", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{s.reports, mongo.IndexModel{
			Keys: bson.D{{Key: "isPublic", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{s.interactions, mongo.IndexModel{
			Keys: bson.D{{Key: "reportId", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{s.alerts, mongo.IndexModel{
			Keys: bson.D{{Key: "countyId", Value: 1}, {Key: "createdAt", Value: -1}},
		}},
		{s.subs, mongo.IndexModel{
			Keys:    bson.D{{Key: "phoneNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.analytics, mongo.IndexModel{
			Keys:    bson.D{{Key: "countyId", Value: 1}, {Key: "eventType", Value: 1}, {Key: "day", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for _, ix := range indexes {
		if _, err := ix.coll.Indexes().CreateOne(ctx, ix.model); err != nil {
			return fmt.Errorf("create index on %s: %w", ix.coll.Name(), err)
		}
	}

	models := make([]mongo.WriteModel, 0, len(domain.KenyaCounties))
	for _, c := range domain.KenyaCounties {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": c.ID}).
			SetUpdate(bson.M{"$setOnInsert": countyDoc{ID: c.ID, Code: c.Code, Name: c.Name}}).
			SetUpsert(true))
	}
	if _, err := s.counties.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("seed counties: %w", err)
	}
	return s.loadCounties(ctx)
}

var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

type countyDoc struct {
	ID   int    `bson:"_id"`
	Code string `bson:"code"`
	Name string `bson:"name"`
}

func (s *Store) loadCounties(ctx context.Context) error {
	cur, err := s.counties.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	var docs []countyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return err
	}
	byID := make(map[int]domain.County, len(docs))
	list := make([]domain.County, 0, len(docs))
	for _, d := range docs {
		c := domain.County{ID: d.ID, Code: d.Code, Name: d.Name}
		byID[c.ID] = c
		list = append(list, c)
	}
	s.mu.Lock()
	s.byID, s.countyLs = byID, list
	s.mu.Unlock()
	return nil
}

func (s *Store) county(id int) domain.County {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.byID[id]; ok {
		return c
	}
	return domain.County{ID: id}
}

func (s *Store) CountyByName(ctx context.Context, name string) (domain.County, error) {
	var d countyDoc
	err := s.counties.FindOne(ctx, bson.M{"name": trim(name)}, options.FindOne().SetCollation(caseInsensitive)).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.County{}, fmt.Errorf("county %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domain.County{}, err
	}
	return domain.County{ID: d.ID, Code: d.Code, Name: d.Name}, nil
}

func (s *Store) Counties(ctx context.Context) ([]domain.County, error) {
	s.mu.RLock()
	list := s.countyLs
	s.mu.RUnlock()
	if list == nil {
		if err := s.loadCounties(ctx); err != nil {
			return nil, err
		}
		s.mu.RLock()
		list = s.countyLs
		s.mu.RUnlock()
	}
	return append([]domain.County(nil), list...), nil
}
