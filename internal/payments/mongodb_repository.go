package payments

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBRepository implements Repository using MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	payments *mongo.Collection
	creators *mongo.Collection
}

// mongoPayment represents the MongoDB document structure.
type mongoPayment struct {
	ID          string    `bson:"_id"`
	Amount      int64     `bson:"amount"`
	Email       string    `bson:"email,omitempty"`
	Creator     string    `bson:"creator,omitempty"`
	Status      string    `bson:"status,omitempty"`
	CreatedAt   time.Time `bson:"createdAt"`
	GiftName    string    `bson:"giftName,omitempty"`
	GiftMessage string    `bson:"giftMessage,omitempty"`
	Anonymous   bool      `bson:"anonymous"`
}

// NewMongoDBRepository creates a MongoDB-backed repository.
func NewMongoDBRepository(connectionString, database string) (*MongoDBRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("payments: connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("payments: ping mongodb: %w", err)
	}

	db := client.Database(database)
	coll := db.Collection("payments")

	indexModels := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "creator", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("payments: create indexes: %w", err)
	}

	return &MongoDBRepository{
		client:   client,
		payments: coll,
		creators: db.Collection("creators"),
	}, nil
}

// Store performs an idempotent replace-upsert keyed on Payment.ID.
func (r *MongoDBRepository) Store(ctx context.Context, p Payment) error {
	if p.ID == "" {
		return ErrMissingID
	}

	doc := mongoPayment{
		ID:          p.ID,
		Amount:      p.Amount,
		Email:       p.Email,
		Creator:     p.Creator,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		GiftName:    p.GiftName,
		GiftMessage: p.GiftMessage,
		Anonymous:   p.Anonymous,
	}

	_, err := r.payments.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("payments: store payment: %w", err)
	}
	return nil
}

// Get returns the payment or ErrNotFound.
func (r *MongoDBRepository) Get(ctx context.Context, id string) (Payment, error) {
	var doc mongoPayment
	err := r.payments.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Payment{}, ErrNotFound
	}
	if err != nil {
		return Payment{}, fmt.Errorf("payments: get payment: %w", err)
	}
	return doc.toPayment(), nil
}

// ListAll returns payments newest first with creator display names attached.
func (r *MongoDBRepository) ListAll(ctx context.Context, limit int) ([]Entry, error) {
	return r.list(ctx, bson.M{}, limit)
}

// ListByCreator returns one creator's payments newest first.
func (r *MongoDBRepository) ListByCreator(ctx context.Context, username string, limit int) ([]Entry, error) {
	return r.list(ctx, bson.M{"creator": username}, limit)
}

func (r *MongoDBRepository) list(ctx context.Context, filter bson.M, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.payments.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("payments: list payments: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoPayment
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("payments: decode payments: %w", err)
	}

	names, err := r.displayNames(ctx, docs)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, Entry{
			Payment:     doc.toPayment(),
			ProfileName: names[doc.Creator],
		})
	}
	return entries, nil
}

// displayNames batch-resolves creator display names; missing creators simply
// stay absent from the map (left-join semantics).
func (r *MongoDBRepository) displayNames(ctx context.Context, docs []mongoPayment) (map[string]string, error) {
	usernames := make([]string, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if doc.Creator != "" && !seen[doc.Creator] {
			seen[doc.Creator] = true
			usernames = append(usernames, doc.Creator)
		}
	}
	if len(usernames) == 0 {
		return map[string]string{}, nil
	}

	cursor, err := r.creators.Find(ctx, bson.M{"_id": bson.M{"$in": usernames}},
		options.Find().SetProjection(bson.M{"profileName": 1}))
	if err != nil {
		return nil, fmt.Errorf("payments: resolve display names: %w", err)
	}
	defer cursor.Close(ctx)

	names := make(map[string]string, len(usernames))
	for cursor.Next(ctx) {
		var row struct {
			Username    string `bson:"_id"`
			ProfileName string `bson:"profileName"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("payments: decode display name: %w", err)
		}
		names[row.Username] = row.ProfileName
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("payments: iterate display names: %w", err)
	}
	return names, nil
}

// Close disconnects from MongoDB.
func (r *MongoDBRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (d mongoPayment) toPayment() Payment {
	return Payment{
		ID:          d.ID,
		Amount:      d.Amount,
		Email:       d.Email,
		Creator:     d.Creator,
		Status:      d.Status,
		CreatedAt:   d.CreatedAt,
		GiftName:    d.GiftName,
		GiftMessage: d.GiftMessage,
		Anonymous:   d.Anonymous,
	}
}
