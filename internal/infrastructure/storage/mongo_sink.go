package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"feedingest/internal/domain"
	"feedingest/internal/ports"
)

type mongoDocument struct {
	Link        string    `bson:"link"`
	Title       string    `bson:"title"`
	Feed        string    `bson:"feed"`
	PublishedAt time.Time `bson:"published_at"`
	Summary     string    `bson:"summary,omitempty"`
	Abstract    string    `bson:"abstract"`
	Text        string    `bson:"text"`
	Layout      string    `bson:"layout"`
	LoadedAt    time.Time `bson:"loaded_at"`
}

// MongoSink stores documents in a collection keyed by link.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ ports.DocumentSink = (*MongoSink)(nil)

// OpenMongo connects, pings and makes sure the published_at index exists.
func OpenMongo(ctx context.Context, uri, database, collection string) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "published_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create published_at index: %w", err)
	}

	return &MongoSink{client: client, collection: coll}, nil
}

// Save upserts by link and never overwrites an existing document.
func (m *MongoSink) Save(ctx context.Context, doc domain.Document) error {
	_, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": doc.Link},
		bson.M{"$setOnInsert": toMongoDocument(doc)},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoSink) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func toMongoDocument(doc domain.Document) mongoDocument {
	return mongoDocument{
		Link:        doc.Link,
		Title:       doc.Title,
		Feed:        doc.Feed,
		PublishedAt: doc.PublishedAt,
		Summary:     doc.Summary,
		Abstract:    doc.Abstract,
		Text:        doc.Text,
		Layout:      doc.Layout,
		LoadedAt:    doc.LoadedAt,
	}
}
