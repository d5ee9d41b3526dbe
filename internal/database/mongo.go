package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const mongoConnectTimeout = 15 * time.Second

// ConnectMongo opens a MongoDB client, verifies it with a ping and returns the named database.
func ConnectMongo(ctx context.Context, uri, databaseName string, logger *zap.Logger) (*mongo.Database, *mongo.Client, error) {
	if uri == "" {
		return nil, nil, fmt.Errorf("mongo uri is required")
	}
	if databaseName == "" {
		return nil, nil, fmt.Errorf("mongo database name is required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	if logger != nil {
		logger.Info("mongo connected", zap.String("database", databaseName))
	}
	return client.Database(databaseName), client, nil
}
