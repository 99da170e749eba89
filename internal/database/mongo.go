package database

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Mongo owns the document store holding cases and user profiles.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(ctx context.Context, uri string, database string) (*Mongo, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect to document store: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping document store: %w", err)
	}

	slog.Info("document store connected", "database", database)
	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// EnsureIndexes creates the membership indexes the case selectors rely on and the
// profile lookup index. CreateMany is a no-op for indexes that already exist.
func (m *Mongo) EnsureIndexes(ctx context.Context, casesCollection string, usersCollection string) error {
	caseIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "clients", Value: 1}}, Options: options.Index().SetName("clients_1")},
		{Keys: bson.D{{Key: "workers", Value: 1}}, Options: options.Index().SetName("workers_1")},
	}
	if _, err := m.Collection(casesCollection).Indexes().CreateMany(ctx, caseIndexes); err != nil {
		return fmt.Errorf("create case indexes: %w", err)
	}

	profileIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email_address", Value: 1}}, Options: options.Index().SetName("email_address_1")},
	}
	if _, err := m.Collection(usersCollection).Indexes().CreateMany(ctx, profileIndexes); err != nil {
		return fmt.Errorf("create profile indexes: %w", err)
	}

	return nil
}

func (m *Mongo) Health(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
