package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBRepository implements Repository using MongoDB.
type MongoDBRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// mongoCreator represents the MongoDB document structure. Social links are
// kept as serialized text for parity with the relational schema.
type mongoCreator struct {
	Username           string     `bson:"_id"`
	ProfileName        string     `bson:"profileName"`
	Bio                string     `bson:"bio"`
	AvatarURL          string     `bson:"avatarUrl"`
	SocialLinks        string     `bson:"socialLinks"`
	ThemeStart         string     `bson:"themeStart"`
	ThemeMid           string     `bson:"themeMid"`
	ThemeEnd           string     `bson:"themeEnd"`
	Email              string     `bson:"email,omitempty"`
	PasswordHash       string     `bson:"passwordHash,omitempty"`
	MilestoneEnabled   bool       `bson:"milestoneEnabled"`
	MilestoneAmount    int64      `bson:"milestoneAmount"`
	MilestoneText      string     `bson:"milestoneText"`
	UpdatedAt          time.Time  `bson:"updatedAt"`
	LastUsernameChange *time.Time `bson:"lastUsernameChange,omitempty"`
}

// NewMongoDBRepository creates a MongoDB-backed repository.
func NewMongoDBRepository(connectionString, database string) (*MongoDBRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("profiles: connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("profiles: ping mongodb: %w", err)
	}

	coll := client.Database(database).Collection("creators")

	// Email uniqueness only applies to creators that have set one.
	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "email", Value: bson.D{{Key: "$gt", Value: ""}}}}),
		},
		{
			Keys: bson.D{{Key: "updatedAt", Value: -1}},
		},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexModels); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("profiles: create indexes: %w", err)
	}

	return &MongoDBRepository{client: client, collection: coll}, nil
}

// FindByUsername returns the creator or ErrNotFound.
func (r *MongoDBRepository) FindByUsername(ctx context.Context, username string) (Creator, error) {
	var doc mongoCreator
	err := r.collection.FindOne(ctx, bson.M{"_id": username}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Creator{}, ErrNotFound
	}
	if err != nil {
		return Creator{}, fmt.Errorf("profiles: find by username: %w", err)
	}
	return doc.toCreator(), nil
}

// FindByEmail returns the creator or ErrNotFound.
func (r *MongoDBRepository) FindByEmail(ctx context.Context, email string) (Creator, error) {
	if email == "" {
		return Creator{}, ErrNotFound
	}
	var doc mongoCreator
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Creator{}, ErrNotFound
	}
	if err != nil {
		return Creator{}, fmt.Errorf("profiles: find by email: %w", err)
	}
	return doc.toCreator(), nil
}

// UpsertProfile updates editable fields only; credentials survive profile edits.
func (r *MongoDBRepository) UpsertProfile(ctx context.Context, input ProfileInput) error {
	input.Normalize()
	if err := input.Validate(); err != nil {
		return err
	}

	links, err := json.Marshal(input.SocialLinks)
	if err != nil {
		return fmt.Errorf("profiles: marshal social links: %w", err)
	}

	update := bson.M{
		"$set": bson.M{
			"profileName":      input.ProfileName,
			"bio":              input.Bio,
			"avatarUrl":        input.AvatarURL,
			"socialLinks":      string(links),
			"themeStart":       input.ThemeStart,
			"themeMid":         input.ThemeMid,
			"themeEnd":         input.ThemeEnd,
			"milestoneEnabled": input.MilestoneEnabled,
			"milestoneAmount":  input.MilestoneAmount,
			"milestoneText":    input.MilestoneText,
			"updatedAt":        time.Now().UTC(),
		},
	}

	_, err = r.collection.UpdateByID(ctx, input.Username, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("profiles: upsert profile: %w", err)
	}
	return nil
}

// CreateAccount inserts a creator with credentials.
func (r *MongoDBRepository) CreateAccount(ctx context.Context, acct Account) (Creator, error) {
	doc := mongoCreator{
		Username:     acct.Username,
		ProfileName:  acct.DisplayName,
		SocialLinks:  "[]",
		Email:        acct.Email,
		PasswordHash: acct.PasswordHash,
		UpdatedAt:    time.Now().UTC(),
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Either the _id (username) or the partial email index tripped.
			if _, lookupErr := r.FindByUsername(ctx, acct.Username); lookupErr == nil {
				return Creator{}, ErrUsernameTaken
			}
			return Creator{}, ErrEmailTaken
		}
		return Creator{}, fmt.Errorf("profiles: create account: %w", err)
	}
	return doc.toCreator(), nil
}

// RenameUsername re-keys the document; Mongo _id is immutable so this is a
// transactional-free insert-then-delete guarded by the duplicate-key check.
func (r *MongoDBRepository) RenameUsername(ctx context.Context, oldUsername, newUsername string) error {
	var doc mongoCreator
	err := r.collection.FindOne(ctx, bson.M{"_id": oldUsername}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("profiles: rename username: %w", err)
	}

	now := time.Now().UTC()
	doc.Username = newUsername
	doc.LastUsernameChange = &now
	doc.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("profiles: rename username: %w", err)
	}
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": oldUsername}); err != nil {
		return fmt.Errorf("profiles: rename username cleanup: %w", err)
	}
	return nil
}

// SetCredentials attaches or replaces email and password hash on an existing creator.
func (r *MongoDBRepository) SetCredentials(ctx context.Context, username, email, passwordHash string) error {
	update := bson.M{
		"$set": bson.M{
			"email":        email,
			"passwordHash": passwordHash,
			"updatedAt":    time.Now().UTC(),
		},
	}
	res, err := r.collection.UpdateByID(ctx, username, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("profiles: set credentials: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Close disconnects from MongoDB.
func (r *MongoDBRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

func (d mongoCreator) toCreator() Creator {
	c := Creator{
		Username:           d.Username,
		ProfileName:        d.ProfileName,
		Bio:                d.Bio,
		AvatarURL:          d.AvatarURL,
		ThemeStart:         d.ThemeStart,
		ThemeMid:           d.ThemeMid,
		ThemeEnd:           d.ThemeEnd,
		Email:              d.Email,
		PasswordHash:       d.PasswordHash,
		MilestoneEnabled:   d.MilestoneEnabled,
		MilestoneAmount:    d.MilestoneAmount,
		MilestoneText:      d.MilestoneText,
		UpdatedAt:          d.UpdatedAt,
		LastUsernameChange: d.LastUsernameChange,
	}
	if err := json.Unmarshal([]byte(d.SocialLinks), &c.SocialLinks); err != nil || c.SocialLinks == nil {
		c.SocialLinks = []SocialLink{}
	}
	return c
}
