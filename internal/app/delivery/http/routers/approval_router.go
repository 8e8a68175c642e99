package routers

import (
	"medflow-service/internal/app/delivery/http/controllers"

	"github.com/go-chi/chi/v5"
)

func attachApprovalRoutes(router chi.Router, approvalController *controllers.ApprovalController) {
	router.Get("/", approvalController.ListValidApprovals)
	router.Post("/", approvalController.RequestApproval)
	router.Get("/{approvalID}/check", approvalController.CheckApproval)
	router.Post("/{approvalID}/approve", approvalController.ApproveApproval)
	router.Post("/{approvalID}/reject", approvalController.RejectApproval)
	router.Post("/{approvalID}/cancel", approvalController.CancelApproval)
}
