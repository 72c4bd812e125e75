package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/henrythedev90/henrys-dog-adoption-agency/internal/repository"
)

// Open connects to MongoDB, verifies the connection and makes sure the
// indexes the credential store relies on exist.
func Open(uri, name string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(25).
		SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, nil, err
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	db := client.Database(name)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, db, nil
}

// EnsureIndexes creates the unique indexes behind the uniqueness
// invariants: one account per email, one per user name, one record per
// refresh token digest.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	users := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userName", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection(repository.UsersCollection).Indexes().CreateMany(ctx, users); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	tokens := []mongo.IndexModel{
		{Keys: bson.D{{Key: "tokenHash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isValid", Value: 1}}},
	}
	if _, err := db.Collection(repository.TokensCollection).Indexes().CreateMany(ctx, tokens); err != nil {
		return fmt.Errorf("tokens indexes: %w", err)
	}
	return nil
}
