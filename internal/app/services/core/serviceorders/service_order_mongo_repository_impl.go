package serviceorders

import (
	"context"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/constvars"
	"medflow-service/internal/pkg/exceptions"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ServiceOrderMongoRepository struct {
	Collection *mongo.Collection
}

func NewServiceOrderMongoRepository(db *mongo.Client, dbName string) contracts.ServiceOrderRepository {
	return &ServiceOrderMongoRepository{
		Collection: db.Database(dbName).Collection(constvars.MongoCollectionServiceOrders),
	}
}

func (r *ServiceOrderMongoRepository) FindByID(ctx context.Context, orderID string) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	err := r.Collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &order, nil
}

func (r *ServiceOrderMongoRepository) SetPaymentStatus(ctx context.Context, orderID string, status models.ServiceOrderPaymentStatus) error {
	update := bson.M{"$set": bson.M{
		"paymentStatus": status,
		"updatedAt":     time.Now(),
	}}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": orderID}, update)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}

func (r *ServiceOrderMongoRepository) SetPaymentIssue(ctx context.Context, orderID string, note string) error {
	update := bson.M{"$set": bson.M{
		"paymentIssue": true,
		"issueNote":    note,
		"updatedAt":    time.Now(),
	}}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": orderID}, update)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}

func (r *ServiceOrderMongoRepository) CancelOrder(ctx context.Context, orderID string) error {
	update := bson.M{"$set": bson.M{
		"stage":     models.ServiceOrderStageCancelled,
		"updatedAt": time.Now(),
	}}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": orderID}, update)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}

func (r *ServiceOrderMongoRepository) RequestExternalDispatch(ctx context.Context, orderID string) error {
	update := bson.M{"$set": bson.M{
		"externalDispatchRequested": true,
		"updatedAt":                 time.Now(),
	}}
	_, err := r.Collection.UpdateOne(ctx, bson.M{"_id": orderID}, update)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}
