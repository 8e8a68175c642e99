package routers

import (
	"fmt"
	"medflow-service/internal/app/config"
	"medflow-service/internal/app/delivery/http/controllers"
	"medflow-service/internal/app/delivery/http/middlewares"
	"medflow-service/internal/pkg/constvars"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

func SetupRoutes(
	router *chi.Mux,
	internalConfig *config.InternalConfig,
	middlewares *middlewares.Middlewares,
	billingController *controllers.BillingController,
	paymentController *controllers.PaymentController,
	approvalController *controllers.ApprovalController,
) {
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", constvars.HeaderXRequestID, constvars.HeaderXAuthor},
		ExposedHeaders:   []string{constvars.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}
	router.Use(cors.Handler(corsOptions))

	rateLimiter := httprate.LimitByIP(internalConfig.App.MaxRequests, time.Second)
	router.Use(rateLimiter)

	router.Use(middlewares.RequestIDMiddleware)
	router.Use(middlewares.AuthorMiddleware)
	router.Use(middlewares.Logging(middlewares.Log))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(constvars.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	endpointPrefix := fmt.Sprintf("/%s", internalConfig.App.EndpointPrefix)
	versionPrefix := fmt.Sprintf("/%s", internalConfig.App.Version)

	router.Route(endpointPrefix, func(r chi.Router) {
		r.Route(versionPrefix, func(r chi.Router) {
			r.Route("/billing", func(r chi.Router) {
				attachBillingRoutes(r, billingController)
			})

			r.Route("/invoices", func(r chi.Router) {
				attachInvoiceRoutes(r, billingController, paymentController)
			})

			r.Route("/approvals", func(r chi.Router) {
				attachApprovalRoutes(r, approvalController)
			})
		})
	})
}
