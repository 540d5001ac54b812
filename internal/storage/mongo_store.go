package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOptions содержит настройки подключения к MongoDB
type MongoOptions struct {
	URI        string // например mongodb://localhost:27017
	Database   string
	Collection string
	Timeout    time.Duration // Таймаут одной операции
}

// DefaultMongoOptions возвращает настройки по умолчанию
func DefaultMongoOptions() MongoOptions {
	return MongoOptions{
		URI:        "mongodb://localhost:27017",
		Database:   "blockverse",
		Collection: "columns",
		Timeout:    5 * time.Second,
	}
}

type columnDoc struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoBackend хранит колонки документами коллекции, ключ колонки служит _id
type MongoBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoBackend подключается к MongoDB и проверяет соединение
func NewMongoBackend(ctx context.Context, opts MongoOptions) (*MongoBackend, error) {
	def := DefaultMongoOptions()
	if opts.URI == "" {
		opts.URI = def.URI
	}
	if opts.Database == "" {
		opts.Database = def.Database
	}
	if opts.Collection == "" {
		opts.Collection = def.Collection
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoBackend{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
		timeout:    opts.Timeout,
	}, nil
}

// OpenMongoStore открывает хранилище колонок поверх MongoDB
func OpenMongoStore(ctx context.Context, opts MongoOptions, workers int) (*ChunkStore, error) {
	backend, err := NewMongoBackend(ctx, opts)
	if err != nil {
		return nil, err
	}
	store, err := NewChunkStore(backend, workers)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

func (m *MongoBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var doc columnDoc
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo get %s: %w", key, err)
	}
	return doc.Data, true, nil
}

func (m *MongoBackend) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	doc := columnDoc{Key: key, Data: data, UpdatedAt: time.Now().UTC()}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo put %s: %w", key, err)
	}
	return nil
}

func (m *MongoBackend) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
