package routers

import (
	"medflow-service/internal/app/delivery/http/controllers"

	"github.com/go-chi/chi/v5"
)

func attachBillingRoutes(router chi.Router, billingController *controllers.BillingController) {
	router.Post("/preview", billingController.PreviewCoverage)
}

func attachInvoiceRoutes(router chi.Router, billingController *controllers.BillingController, paymentController *controllers.PaymentController) {
	router.Get("/{invoiceID}", billingController.GetInvoice)
	router.Post("/{invoiceID}/convention", billingController.ApplyConvention)
	router.Post("/{invoiceID}/payments", paymentController.RecordPayment)
	router.Post("/{invoiceID}/refunds", paymentController.IssueRefund)
	router.Post("/{invoiceID}/cancel", paymentController.CancelInvoice)
}
