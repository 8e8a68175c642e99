package companies

import (
	"context"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/constvars"
	"medflow-service/internal/pkg/exceptions"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CompanyBudgetMongoRepository struct {
	Collection *mongo.Collection
}

func NewCompanyBudgetMongoRepository(db *mongo.Client, dbName string) contracts.CompanyBudgetRepository {
	return &CompanyBudgetMongoRepository{
		Collection: db.Database(dbName).Collection(constvars.MongoCollectionCompanyBudgets),
	}
}

func (r *CompanyBudgetMongoRepository) CreateEntries(ctx context.Context, entries []models.CompanyBudgetEntry) error {
	if len(entries) == 0 {
		return nil
	}
	documents := make([]interface{}, 0, len(entries))
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		documents = append(documents, entries[i])
	}
	_, err := r.Collection.InsertMany(ctx, documents)
	if err != nil {
		return exceptions.ErrMongoDBInsertDocument(err)
	}
	return nil
}

func (r *CompanyBudgetMongoRepository) FindActiveByInvoice(ctx context.Context, invoiceID string) ([]models.CompanyBudgetEntry, error) {
	filter := bson.M{
		"invoiceId": invoiceID,
		"reversed":  false,
	}
	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	var entries []models.CompanyBudgetEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, exceptions.ErrMongoDBIterateDocuments(err)
	}
	return entries, nil
}

func (r *CompanyBudgetMongoRepository) MarkReversed(ctx context.Context, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	filter := bson.M{"_id": bson.M{"$in": entryIDs}}
	update := bson.M{"$set": bson.M{
		"reversed":  true,
		"updatedAt": time.Now(),
	}}
	_, err := r.Collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}
