package companies

import (
	"context"
	"medflow-service/internal/app/contracts"
	"medflow-service/internal/app/models"
	"medflow-service/internal/pkg/constvars"
	"medflow-service/internal/pkg/exceptions"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type CompanyMongoRepository struct {
	Collection *mongo.Collection
}

func NewCompanyMongoRepository(db *mongo.Client, dbName string) contracts.CompanyRepository {
	return &CompanyMongoRepository{
		Collection: db.Database(dbName).Collection(constvars.MongoCollectionCompanies),
	}
}

func (r *CompanyMongoRepository) FindByID(ctx context.Context, companyID string) (*models.Company, error) {
	var company models.Company
	err := r.Collection.FindOne(ctx, bson.M{"_id": companyID}).Decode(&company)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &company, nil
}
