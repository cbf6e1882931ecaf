package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

// mongoOpTimeout bounds every document-store round-trip.
const mongoOpTimeout = 10 * time.Second

// MongoStorage keeps one document per URL in a collection with a unique
// index on the url field. Save is a replace-with-upsert, so the document
// store enforces the same latest-write-wins upsert semantics as the file
// backend, but at per-document atomicity.
type MongoStorage struct {
	metadataSink metadata.MetadataSink
	client       *mongo.Client
	collection   *mongo.Collection
}

func NewMongoStorage(
	ctx context.Context,
	metadataSink metadata.MetadataSink,
	uri string,
	database string,
	collectionName string,
) (*MongoStorage, failure.ClassifiedError) {
	connectCtx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseBackendUnavailable,
		}
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseBackendUnavailable,
		}
	}

	collection := client.Database(database).Collection(collectionName)

	// url is the record identity; the index makes the upsert race-safe.
	_, err = collection.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseBackendUnavailable,
		}
	}

	return &MongoStorage{
		metadataSink: metadataSink,
		client:       client,
		collection:   collection,
	}, nil
}

func (s *MongoStorage) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), mongoOpTimeout)
}

func (s *MongoStorage) Save(record Record) failure.ClassifiedError {
	stampContentHash(&record)

	ctx, cancel := s.opContext()
	defer cancel()

	_, err := s.collection.ReplaceOne(
		ctx,
		bson.M{"url": record.URL},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		storageErr := &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
		}
		s.recordError("MongoStorage.Save", storageErr, record.URL)
		return storageErr
	}
	return nil
}

func (s *MongoStorage) Get(url string) (Record, bool, failure.ClassifiedError) {
	ctx, cancel := s.opContext()
	defer cancel()

	var record Record
	err := s.collection.FindOne(ctx, bson.M{"url": url}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseReadFailure,
		}
	}
	return record, true, nil
}

func (s *MongoStorage) GetAll() ([]Record, failure.ClassifiedError) {
	ctx, cancel := s.opContext()
	defer cancel()

	cursor, err := s.collection.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "crawled_at", Value: 1}, {Key: "url", Value: 1}}))
	if err != nil {
		return nil, &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseReadFailure,
		}
	}
	defer cursor.Close(ctx)

	var records []Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseReadFailure,
		}
	}
	return records, nil
}

func (s *MongoStorage) Count() (int, failure.ClassifiedError) {
	ctx, cancel := s.opContext()
	defer cancel()

	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseReadFailure,
		}
	}
	return int(count), nil
}

func (s *MongoStorage) Clear() failure.ClassifiedError {
	ctx, cancel := s.opContext()
	defer cancel()

	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailure,
		}
	}
	return nil
}

func (s *MongoStorage) Close() failure.ClassifiedError {
	ctx, cancel := s.opContext()
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return &StorageError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseBackendUnavailable,
		}
	}
	return nil
}

func (s *MongoStorage) recordError(action string, err *StorageError, url string) {
	s.metadataSink.RecordError(
		time.Now(),
		"storage",
		action,
		mapStorageErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, url),
			metadata.NewAttr(metadata.AttrBackend, "mongo"),
		},
	)
}
