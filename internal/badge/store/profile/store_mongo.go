package profile

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/sentinel"
)

// UsersCollection is the collection holding user profiles.
const UsersCollection = "users"

// userDocument mirrors the fields of a stored user this store reads or writes.
type userDocument struct {
	ClerkID       string               `bson:"clerk_Id"`
	WalletAddress string               `bson:"walletAddress,omitempty"`
	Badges        []models.BadgeRecord `bson:"badges"`
}

// MongoStore appends badges to the embedded badges array of a user document.
type MongoStore struct {
	users *mongo.Collection
}

// NewMongo constructs a profile store over db.users.
func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{users: db.Collection(UsersCollection)}
}

// EnsureIndexes creates the unique identity index the store relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "clerk_Id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users index: %w", err)
	}
	return nil
}

// SetWallet creates the profile if needed and links wallet to it.
func (s *MongoStore) SetWallet(ctx context.Context, userID id.UserID, wallet string) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"clerk_Id": userID.String()},
		bson.M{
			"$set":         bson.M{"walletAddress": wallet},
			"$setOnInsert": bson.M{"badges": bson.A{}},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set wallet: %w", err)
	}
	return nil
}

// AppendBadge pushes the badge only when no entry with the same tokenId is
// present, so the check and the write are one atomic document update.
func (s *MongoStore) AppendBadge(ctx context.Context, userID id.UserID, badge models.BadgeRecord) error {
	filter := bson.M{
		"clerk_Id":       userID.String(),
		"badges.tokenId": bson.M{"$ne": badge.TokenID},
	}
	res, err := s.users.UpdateOne(ctx, filter, bson.M{"$push": bson.M{"badges": badge}})
	if err != nil {
		return fmt.Errorf("append badge: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.users.CountDocuments(ctx, bson.M{"clerk_Id": userID.String()})
	if err != nil {
		return fmt.Errorf("count profile: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *MongoStore) ListBadges(ctx context.Context, userID id.UserID) ([]models.BadgeRecord, error) {
	doc, err := s.find(ctx, userID, bson.M{"badges": 1})
	if err != nil {
		return nil, err
	}
	if doc.Badges == nil {
		return []models.BadgeRecord{}, nil
	}
	return doc.Badges, nil
}

func (s *MongoStore) WalletAddress(ctx context.Context, userID id.UserID) (string, error) {
	doc, err := s.find(ctx, userID, bson.M{"walletAddress": 1})
	if err != nil {
		return "", err
	}
	if doc.WalletAddress == "" {
		return "", sentinel.ErrNotFound
	}
	return doc.WalletAddress, nil
}

func (s *MongoStore) find(ctx context.Context, userID id.UserID, projection bson.M) (*userDocument, error) {
	var doc userDocument
	err := s.users.FindOne(ctx,
		bson.M{"clerk_Id": userID.String()},
		options.FindOne().SetProjection(projection),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return &doc, nil
}
