package invoices

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

type InvoiceMongoRepository struct {
	Collection *mongo.Collection
}

func NewInvoiceMongoRepository(db *mongo.Client, dbName string) contracts.InvoiceRepository {
	return &InvoiceMongoRepository{
		Collection: db.Database(dbName).Collection(constvars.MongoCollectionInvoices),
	}
}

func (r *InvoiceMongoRepository) FindByID(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.Collection.FindOne(ctx, bson.M{"_id": invoiceID}).Decode(&invoice)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &invoice, nil
}

func (r *InvoiceMongoRepository) FindOpenByPatientAndCompany(ctx context.Context, patientID, companyID string) ([]models.Invoice, error) {
	filter := bson.M{
		"patientId": patientID,
		"companyId": companyID,
		"status": bson.M{"$nin": []models.InvoiceStatus{
			models.InvoiceStatusCancelled,
			models.InvoiceStatusVoided,
			models.InvoiceStatusRefunded,
		}},
	}
	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, exceptions.ErrMongoDBIterateDocuments(err)
	}
	return invoices, nil
}

func (r *InvoiceMongoRepository) CreateInvoice(ctx context.Context, invoice *models.Invoice) (string, error) {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	_, err := r.Collection.InsertOne(ctx, invoice)
	if err != nil {
		return "", exceptions.ErrMongoDBInsertDocument(err)
	}
	return invoice.ID, nil
}

// UpdateInvoice replaces the aggregate guarded by its version counter. The
// mutation methods bump Version before persisting, so the filter matches the
// previous version; a zero match means a concurrent writer won the race.
func (r *InvoiceMongoRepository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	filter := bson.M{
		"_id":     invoice.ID,
		"version": invoice.Version - 1,
	}
	result, err := r.Collection.ReplaceOne(ctx, filter, invoice)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	if result.MatchedCount == 0 {
		return models.ErrStaleVersion
	}
	return nil
}
