package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ShayCichocki/nodetree/pkg/models"
)

const (
	DefaultMongoURI        = "mongodb://localhost:27017"
	DefaultMongoDatabase   = "nodetree"
	DefaultMongoCollection = "nodes"
)

// MongoConfig configures the MongoDB store.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	// ConnectTimeout bounds the initial connection; zero means 10s.
	ConnectTimeout time.Duration
}

// Mongo stores nodes as documents keyed by their canonical id.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to MongoDB. Server availability is checked by Ping,
// not here.
func OpenMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.URI == "" {
		cfg.URI = DefaultMongoURI
	}
	if cfg.Database == "" {
		cfg.Database = DefaultMongoDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultMongoCollection
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(cfg.ConnectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return &Mongo{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Close disconnects from the server.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Ping checks that the primary is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// Upsert replaces or inserts the document with _id key.
func (m *Mongo) Upsert(ctx context.Context, key string, node *models.Node) error {
	doc := node.Clone()
	doc.ID = key
	result, err := m.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return errors.New("upsert node: write not acknowledged")
	}
	return nil
}

// FindOne fetches the document with _id key.
func (m *Mongo) FindOne(ctx context.Context, key string) (*models.Node, error) {
	var node models.Node
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&node)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return &node, nil
}

// UpdateField applies $set on one field of an existing document. Node bson
// field names match the JSON wire names.
func (m *Mongo) UpdateField(ctx context.Context, key, field string, value any) error {
	if err := checkField(field); err != nil {
		return err
	}
	result, err := m.coll.UpdateOne(ctx, bson.M{"_id": key}, bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return fmt.Errorf("update node %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
