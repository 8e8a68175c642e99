package approvals

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

type ApprovalMongoRepository struct {
	Collection *mongo.Collection
}

func NewApprovalMongoRepository(db *mongo.Client, dbName string) contracts.ApprovalRepository {
	return &ApprovalMongoRepository{
		Collection: db.Database(dbName).Collection(constvars.MongoCollectionApprovals),
	}
}

func (r *ApprovalMongoRepository) FindByID(ctx context.Context, approvalID string) (*models.Approval, error) {
	var approval models.Approval
	err := r.Collection.FindOne(ctx, bson.M{"_id": approvalID}).Decode(&approval)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &approval, nil
}

func (r *ApprovalMongoRepository) FindOpenByTuple(ctx context.Context, patientID, companyID, actCode string) (*models.Approval, error) {
	filter := bson.M{
		"patientId": patientID,
		"companyId": companyID,
		"actCode":   actCode,
		"status": bson.M{"$in": []models.ApprovalStatus{
			models.ApprovalStatusPending,
			models.ApprovalStatusApproved,
		}},
	}
	var approval models.Approval
	err := r.Collection.FindOne(ctx, filter).Decode(&approval)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &approval, nil
}

func (r *ApprovalMongoRepository) FindByPatientAndCompany(ctx context.Context, patientID, companyID string) ([]models.Approval, error) {
	filter := bson.M{
		"patientId": patientID,
		"companyId": companyID,
	}
	cursor, err := r.Collection.Find(ctx, filter)
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	var approvals []models.Approval
	if err := cursor.All(ctx, &approvals); err != nil {
		return nil, exceptions.ErrMongoDBIterateDocuments(err)
	}
	return approvals, nil
}

func (r *ApprovalMongoRepository) CreateApproval(ctx context.Context, approval *models.Approval) (string, error) {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	_, err := r.Collection.InsertOne(ctx, approval)
	if err != nil {
		return "", exceptions.ErrMongoDBInsertDocument(err)
	}
	return approval.ID, nil
}

func (r *ApprovalMongoRepository) UpdateApproval(ctx context.Context, approval *models.Approval) error {
	result, err := r.Collection.ReplaceOne(ctx, bson.M{"_id": approval.ID}, approval)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	if result.MatchedCount == 0 {
		return exceptions.ErrApprovalNotFound(mongo.ErrNoDocuments)
	}
	return nil
}
