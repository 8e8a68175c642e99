package surgeries

import (
	"context"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/constvars"
	"medflow-service/internal/pkg/exceptions"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type SurgeryCaseMongoRepository struct {
	Collection *mongo.Collection
}

func NewSurgeryCaseMongoRepository(db *mongo.Client, dbName string) contracts.SurgeryCaseRepository {
	return &SurgeryCaseMongoRepository{
		Collection: db.Database(dbName).Collection(constvars.MongoCollectionSurgeryCases),
	}
}

func (r *SurgeryCaseMongoRepository) FindByInvoiceAndItem(ctx context.Context, invoiceID, itemCode string) (*models.SurgeryCase, error) {
	filter := bson.M{
		"invoiceId": invoiceID,
		"itemCode":  itemCode,
	}
	var surgeryCase models.SurgeryCase
	err := r.Collection.FindOne(ctx, filter).Decode(&surgeryCase)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &surgeryCase, nil
}

func (r *SurgeryCaseMongoRepository) FindByInvoice(ctx context.Context, invoiceID string) ([]models.SurgeryCase, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{"invoiceId": invoiceID})
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	var cases []models.SurgeryCase
	if err := cursor.All(ctx, &cases); err != nil {
		return nil, exceptions.ErrMongoDBIterateDocuments(err)
	}
	return cases, nil
}

func (r *SurgeryCaseMongoRepository) CreateSurgeryCase(ctx context.Context, surgeryCase *models.SurgeryCase) (string, error) {
	if surgeryCase.ID == "" {
		surgeryCase.ID = uuid.NewString()
	}
	_, err := r.Collection.InsertOne(ctx, surgeryCase)
	if err != nil {
		return "", exceptions.ErrMongoDBInsertDocument(err)
	}
	return surgeryCase.ID, nil
}

func (r *SurgeryCaseMongoRepository) UpdateSurgeryCase(ctx context.Context, surgeryCase *models.SurgeryCase) error {
	_, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": surgeryCase.ID}, surgeryCase)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}
