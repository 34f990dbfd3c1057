// CaseLedger - CCTV Alert Case Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/caseledger

package alertstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tomtom215/caseledger/internal/config"
	"github.com/tomtom215/caseledger/internal/logging"
	"github.com/tomtom215/caseledger/internal/models"
)

// Document field names. The detectors write the camelCase fields; the
// sync* fields are owned by this service.
const (
	fieldID              = "_id"
	fieldCreatedContract = "createdContract"
	fieldCreatedAt       = "createdAt"
	fieldDeadLettered    = "syncDeadLettered"
	fieldSyncError       = "syncError"
	fieldSyncedAt        = "syncedAt"

	// fieldSortAt is computed in the newest-first pipeline, never stored.
	fieldSortAt = "_sortAt"
)

// alertDocument is the stored shape of an alert. createdContract is kept
// raw because the Python detector writes the string "false" while the API
// writes a boolean.
type alertDocument struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Alert           bool               `bson:"alert"`
	FootageURL      string             `bson:"footageUrl"`
	Location        string             `bson:"location"`
	AnomalyDate     string             `bson:"anomalyDate"`
	AnomalyTime     string             `bson:"anomalyTime"`
	Coordinates     bson.RawValue      `bson:"coordinates,omitempty"`
	CreatedContract bson.RawValue      `bson:"createdContract"`
	DeadLettered    bool               `bson:"syncDeadLettered,omitempty"`
	SyncError       string             `bson:"syncError,omitempty"`
	CreatedAt       *time.Time         `bson:"createdAt,omitempty"`
}

func (d *alertDocument) toModel() models.Alert {
	a := models.Alert{
		ID:              d.ID.Hex(),
		FootageURL:      d.FootageURL,
		Location:        d.Location,
		AnomalyDate:     d.AnomalyDate,
		AnomalyTime:     d.AnomalyTime,
		CreatedContract: rawBool(d.CreatedContract),
		DeadLettered:    d.DeadLettered,
		SyncError:       d.SyncError,
	}
	if s, ok := d.Coordinates.StringValueOK(); ok {
		a.Coordinates = s
	}
	// Detector documents carry no createdAt; the ObjectID timestamp is the
	// insertion time.
	if d.CreatedAt != nil {
		a.CreatedAt = d.CreatedAt.UTC()
	} else {
		a.CreatedAt = d.ID.Timestamp().UTC()
	}
	return a
}

func rawBool(v bson.RawValue) bool {
	if b, ok := v.BooleanOK(); ok {
		return b
	}
	if s, ok := v.StringValueOK(); ok {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	}
	return false
}

type recipientDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Locality  string             `bson:"locality"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// MongoStore implements Store, Repository and Directory on MongoDB.
type MongoStore struct {
	client      *mongo.Client
	alerts      *mongo.Collection
	residents   *mongo.Collection
	authorities *mongo.Collection
	opTimeout   time.Duration
}

// NewMongoStore connects to cfg.URI and verifies the connection.
func NewMongoStore(ctx context.Context, cfg *config.StoreConfig) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout).
		SetAppName("caseledger")

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background()) //nolint:errcheck // already failing
		return nil, fmt.Errorf("ping mongodb %s: %w", logging.RedactURI(cfg.URI), err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:      client,
		alerts:      db.Collection(cfg.AlertsCollection),
		residents:   db.Collection(cfg.ResidentsCollection),
		authorities: db.Collection(cfg.AuthoritiesCollection),
		opTimeout:   cfg.OperationTimeout,
	}

	logging.Info().
		Str("uri", logging.RedactURI(cfg.URI)).
		Str("database", cfg.Database).
		Str("collection", cfg.AlertsCollection).
		Msg("Connected to alert store")

	return s, nil
}

// Ping checks the primary is reachable. Used by the readiness check.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// unprocessedFilter matches both the boolean and the detector's string form.
func unprocessedFilter() bson.M {
	return bson.M{
		fieldCreatedContract: bson.M{"$in": bson.A{false, "false"}},
		fieldDeadLettered:    bson.M{"$ne": true},
	}
}

// newestFirst matches q and orders by creation time, the same time toModel
// reports: createdAt when the document has one, otherwise the ObjectID
// timestamp. A plain sort on createdAt would put every detector document
// (no createdAt) behind every API-inserted one. Ties fall back to _id.
func newestFirst(q bson.M, skip, limit int64) mongo.Pipeline {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: q}},
		{{Key: "$addFields", Value: bson.M{
			fieldSortAt: bson.M{"$ifNull": bson.A{"$" + fieldCreatedAt, bson.M{"$toDate": "$" + fieldID}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: fieldSortAt, Value: -1}, {Key: fieldID, Value: -1}}}},
	}
	if skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: skip}})
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	return pipeline
}

// FindNewestUnprocessed implements Store.
func (s *MongoStore) FindNewestUnprocessed(ctx context.Context) (*models.Alert, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.alerts.Aggregate(ctx, newestFirst(unprocessedFilter(), 0, 1))
	if err != nil {
		return nil, fmt.Errorf("find unprocessed alert: %w", err)
	}
	defer cur.Close(ctx) //nolint:errcheck

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, fmt.Errorf("find unprocessed alert: %w", err)
		}
		return nil, nil
	}
	var doc alertDocument
	if err := cur.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode alert: %w", err)
	}
	a := doc.toModel()
	return &a, nil
}

// MarkProcessed implements Store.
func (s *MongoStore) MarkProcessed(ctx context.Context, id string) error {
	return s.updateAlert(ctx, id, bson.M{
		"$set": bson.M{
			fieldCreatedContract: true,
			fieldSyncedAt:        time.Now().UTC(),
		},
		"$unset": bson.M{fieldSyncError: ""},
	})
}

// MarkDeadLettered implements Store.
func (s *MongoStore) MarkDeadLettered(ctx context.Context, id, reason string) error {
	return s.updateAlert(ctx, id, bson.M{
		"$set": bson.M{
			fieldDeadLettered: true,
			fieldSyncError:    reason,
			fieldSyncedAt:     time.Now().UTC(),
		},
	})
}

// RequeueAlert implements Repository.
func (s *MongoStore) RequeueAlert(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.alerts.UpdateOne(ctx,
		bson.M{fieldID: oid, fieldDeadLettered: true},
		bson.M{"$unset": bson.M{fieldDeadLettered: "", fieldSyncError: ""}},
	)
	if err != nil {
		return fmt.Errorf("requeue alert %s: %w", id, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.alerts.CountDocuments(ctx, bson.M{fieldID: oid})
	if err != nil {
		return fmt.Errorf("requeue alert %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrNotDeadLettered
}

func (s *MongoStore) updateAlert(ctx context.Context, id string, update bson.M) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.alerts.UpdateOne(ctx, bson.M{fieldID: oid}, update)
	if err != nil {
		return fmt.Errorf("update alert %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertAlert implements Repository.
func (s *MongoStore) InsertAlert(ctx context.Context, alert *models.Alert) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created := alert.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	doc := bson.M{
		"alert":              true,
		"footageUrl":         alert.FootageURL,
		"location":           alert.Location,
		"anomalyDate":        alert.AnomalyDate,
		"anomalyTime":        alert.AnomalyTime,
		"coordinates":        alert.Coordinates,
		fieldCreatedContract: alert.CreatedContract,
		fieldCreatedAt:       created,
	}
	res, err := s.alerts.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert alert: unexpected id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

// GetAlert implements Repository.
func (s *MongoStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc alertDocument
	err = s.alerts.FindOne(ctx, bson.M{fieldID: oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	a := doc.toModel()
	return &a, nil
}

// ListAlerts implements Repository.
func (s *MongoStore) ListAlerts(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	q := bson.M{}
	if filter.Processed != nil {
		if *filter.Processed {
			q[fieldCreatedContract] = bson.M{"$in": bson.A{true, "true"}}
		} else {
			q[fieldCreatedContract] = bson.M{"$nin": bson.A{true, "true"}}
		}
	}

	cur, err := s.alerts.Aggregate(ctx, newestFirst(q, int64(filter.Offset), int64(clampLimit(filter.Limit))))
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer cur.Close(ctx) //nolint:errcheck

	out := make([]models.Alert, 0)
	for cur.Next(ctx) {
		var doc alertDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode alert: %w", err)
		}
		out = append(out, doc.toModel())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return out, nil
}

// DeleteAlert implements Repository.
func (s *MongoStore) DeleteAlert(ctx context.Context, id string) error {
	oid, err := parseID(id)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.alerts.DeleteOne(ctx, bson.M{fieldID: oid})
	if err != nil {
		return fmt.Errorf("delete alert %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAlerts implements Repository.
func (s *MongoStore) CountAlerts(ctx context.Context) (models.AlertCounts, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var counts models.AlertCounts
	queries := []struct {
		dst    *int64
		filter bson.M
	}{
		{&counts.Total, bson.M{}},
		{&counts.Processed, bson.M{fieldCreatedContract: bson.M{"$in": bson.A{true, "true"}}}},
		{&counts.Pending, unprocessedFilter()},
		{&counts.DeadLettered, bson.M{fieldDeadLettered: true}},
	}
	for _, q := range queries {
		n, err := s.alerts.CountDocuments(ctx, q.filter)
		if err != nil {
			return models.AlertCounts{}, fmt.Errorf("count alerts: %w", err)
		}
		*q.dst = n
	}
	return counts, nil
}

func (s *MongoStore) recipients(kind models.RecipientKind) (*mongo.Collection, error) {
	switch kind {
	case models.KindResident:
		return s.residents, nil
	case models.KindAuthority:
		return s.authorities, nil
	default:
		return nil, fmt.Errorf("alertstore: unknown recipient kind %q", kind)
	}
}

// AddRecipient implements Directory.
func (s *MongoStore) AddRecipient(ctx context.Context, r *models.Recipient) (string, error) {
	coll, err := s.recipients(r.Kind)
	if err != nil {
		return "", err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := recipientDocument{
		Name:      r.Name,
		Email:     r.Email,
		Locality:  r.Locality,
		CreatedAt: time.Now().UTC(),
	}
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", r.Kind, err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert %s: unexpected id type %T", r.Kind, res.InsertedID)
	}
	return oid.Hex(), nil
}

// ListRecipients implements Directory.
func (s *MongoStore) ListRecipients(ctx context.Context, kind models.RecipientKind) ([]models.Recipient, error) {
	coll, err := s.recipients(kind)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer cur.Close(ctx) //nolint:errcheck

	out := make([]models.Recipient, 0)
	for cur.Next(ctx) {
		var doc recipientDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		out = append(out, models.Recipient{
			ID:        doc.ID.Hex(),
			Kind:      kind,
			Name:      doc.Name,
			Email:     doc.Email,
			Locality:  doc.Locality,
			CreatedAt: doc.CreatedAt,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return out, nil
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

var (
	_ Store      = (*MongoStore)(nil)
	_ Repository = (*MongoStore)(nil)
	_ Directory  = (*MongoStore)(nil)
)
