package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const credentialsCollection = "credentials"

type credentialDoc struct {
	ProviderID string    `bson:"_id"`
	Credential string    `bson:"credential"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// MongoCredentialStore persists provider credentials in MongoDB, one
// document per provider.
type MongoCredentialStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoCredentialStore connects to uri and uses the credentials
// collection of database.
func NewMongoCredentialStore(ctx context.Context, uri, database string) (*MongoCredentialStore, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctxWithTimeout, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := client.Ping(ctxWithTimeout, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return &MongoCredentialStore{
		client: client,
		coll:   client.Database(database).Collection(credentialsCollection),
	}, nil
}

// Get returns the credential for providerID, or "" when none is stored.
func (s *MongoCredentialStore) Get(ctx context.Context, providerID string) (string, error) {
	var doc credentialDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": providerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find credential for %s: %w", providerID, err)
	}
	return doc.Credential, nil
}

// Set upserts a credential. An empty credential removes the document.
func (s *MongoCredentialStore) Set(ctx context.Context, providerID, credential string) error {
	if credential == "" {
		if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": providerID}); err != nil {
			return fmt.Errorf("failed to delete credential for %s: %w", providerID, err)
		}
		return nil
	}

	update := bson.M{"$set": bson.M{"credential": credential, "updatedAt": time.Now().UTC()}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": providerID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store credential for %s: %w", providerID, err)
	}
	return nil
}

// All returns every stored credential keyed by provider id.
func (s *MongoCredentialStore) All(ctx context.Context) (map[string]string, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	var docs []credentialDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}

	out := make(map[string]string, len(docs))
	for _, d := range docs {
		out[d.ProviderID] = d.Credential
	}
	return out, nil
}

// Seed stores every non-empty credential that is not already present.
func (s *MongoCredentialStore) Seed(ctx context.Context, creds map[string]string) error {
	for id, c := range creds {
		if c == "" {
			continue
		}
		insert := bson.M{"$setOnInsert": bson.M{"credential": c, "updatedAt": time.Now().UTC()}}
		_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, insert, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to seed credential for %s: %w", id, err)
		}
	}
	return nil
}

// Close closes the mongo connection.
func (s *MongoCredentialStore) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}
