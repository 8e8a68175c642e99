package contracts

import (
	"context"
	"medflow-service/internal/pkg/dto/requests"
	"medflow-service/internal/pkg/dto/responses"
)

type ApprovalUsecase interface {
	RequestApproval(ctx context.Context, request *requests.RequestApprovalRequest) (*responses.ApprovalResponse, error)
	ApproveApproval(ctx context.Context, approvalID string, request *requests.ApproveApprovalRequest) (*responses.ApprovalResponse, error)
	RejectApproval(ctx context.Context, approvalID string, request *requests.RejectApprovalRequest) (*responses.ApprovalResponse, error)
	CancelApproval(ctx context.Context, approvalID string) (*responses.ApprovalResponse, error)
	CheckApproval(ctx context.Context, approvalID string) (*responses.CheckApprovalResponse, error)
	ListValidApprovals(ctx context.Context, patientID, companyID string) ([]responses.ApprovalResponse, error)
}
