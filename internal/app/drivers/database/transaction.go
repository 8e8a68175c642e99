package database

import (
	"context"
	"time"

	"medflow-service/internal/app/contracts"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MongoTransactionManager runs callbacks inside a Mongo session with bounded
// retry on transient transaction labels.
type MongoTransactionManager struct {
	client      *mongo.Client
	maxAttempts int
	log         *zap.Logger
}

func NewMongoTransactionManager(client *mongo.Client, maxAttempts int, logger *zap.Logger) contracts.TransactionManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &MongoTransactionManager{
		client:      client,
		maxAttempts: maxAttempts,
		log:         logger,
	}
}

func (m *MongoTransactionManager) WithTransaction(ctx context.Context, fn func(sessCtx context.Context) (interface{}, error)) (interface{}, error) {
	session, err := m.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	// mongo.SessionContext implements context.Context, so the callback can
	// keep the storage-agnostic signature.
	callback := func(sessCtx mongo.SessionContext) (interface{}, error) {
		return fn(sessCtx)
	}

	var result interface{}
	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		result, lastErr = session.WithTransaction(ctx, callback)
		if lastErr == nil {
			return result, nil
		}
		cmdErr, ok := lastErr.(mongo.CommandError)
		if !ok || !cmdErr.HasErrorLabel("TransientTransactionError") {
			return nil, lastErr
		}
		m.log.Warn("transient transaction error, retrying",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}
	return nil, lastErr
}

// SequentialTransactionManager executes the callback without a transaction.
// It is the fallback for standalone deployments where multi-document
// transactions are unavailable: execution is sequential best-effort.
type SequentialTransactionManager struct{}

func NewSequentialTransactionManager() contracts.TransactionManager {
	return &SequentialTransactionManager{}
}

func (s *SequentialTransactionManager) WithTransaction(ctx context.Context, fn func(sessCtx context.Context) (interface{}, error)) (interface{}, error) {
	return fn(ctx)
}
