package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/SeedGoat/internal/types"
)

// MongoStorage keeps one document per product, keyed by product id.
type MongoStorage struct {
	client  *mongo.Client
	coll    *mongo.Collection
	written int
	logger  *slog.Logger
}

// NewMongoStorage connects, pings and makes sure the category index exists.
func NewMongoStorage(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	if _, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "category", Value: 1}}}); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &MongoStorage{
		client: client,
		coll:   coll,
		logger: logger.With("component", "mongo_storage", "collection", database+"."+collection),
	}, nil
}

func (s *MongoStorage) Name() string { return "mongodb" }

func (s *MongoStorage) Store(ctx context.Context, products []*types.Product) error {
	if len(products) == 0 {
		return nil
	}
	docs := make([]any, len(products))
	for i, p := range products {
		docs[i] = productDocument(p)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := s.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.written += len(products)
	return nil
}

func (s *MongoStorage) Close() error {
	s.logger.Info("closing", "written", s.written)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// productDocument uses the product id as _id so a product is stored once.
func productDocument(p *types.Product) bson.D {
	return bson.D{
		{Key: "_id", Value: p.ProductID},
		{Key: "product_name", Value: p.Title},
		{Key: "seller_id", Value: p.SellerID},
		{Key: "stock", Value: p.Stock},
		{Key: "category", Value: p.Category},
		{Key: "price", Value: p.Price},
		{Key: "rate", Value: p.Rate},
		{Key: "comment", Value: p.Comment},
		{Key: "image_id", Value: p.ImageID},
		{Key: "image_path", Value: p.AssetPath},
		{Key: "source_url", Value: p.SourceURL},
		{Key: "scraped_at", Value: p.ScrapedAt},
	}
}
