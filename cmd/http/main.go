package main

import (
	"context"
	"log"
	"medflow-service/internal/app/config"
	"medflow-service/internal/app/delivery/http/controllers"
	"medflow-service/internal/app/delivery/http/middlewares"
	"medflow-service/internal/app/delivery/http/routers"
	"medflow-service/internal/app/drivers/database"
	"medflow-service/internal/app/drivers/logger"
	"medflow-service/internal/app/drivers/messaging"
	"medflow-service/internal/app/services/core/approvals"
	"medflow-service/internal/app/services/core/billing"
	"medflow-service/internal/app/services/core/companies"
	"medflow-service/internal/app/services/core/invoices"
	"medflow-service/internal/app/services/core/payments"
	"medflow-service/internal/app/services/core/serviceorders"
	"medflow-service/internal/app/services/core/surgeries"
	"medflow-service/internal/app/services/patients"
	"medflow-service/internal/app/services/shared/currency"
	"medflow-service/internal/app/services/shared/events"
	"medflow-service/internal/app/services/shared/locker"
	"medflow-service/internal/app/services/shared/notifications"
	redisrepo "medflow-service/internal/app/services/shared/redis"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
)

func main() {
	driverConfig := config.NewDriverConfig()
	internalConfig := config.NewInternalConfig()

	zapLogger := logger.NewZapLogger(driverConfig, internalConfig)

	location, err := time.LoadLocation(internalConfig.App.Timezone)
	if err != nil {
		log.Fatalf("Error loading location: %v", err)
	}
	time.Local = location

	mongoDB := database.NewMongoDB(driverConfig)
	redisClient := database.NewRedisClient(driverConfig)
	rabbitMQ := messaging.NewRabbitMQ(driverConfig)
	chiRouter := chi.NewRouter()

	bootstrap := &config.Bootstrap{
		Router:         chiRouter,
		MongoDB:        mongoDB,
		Redis:          redisClient,
		RabbitMQ:       rabbitMQ,
		Logger:         zapLogger,
		DriverConfig:   driverConfig,
		InternalConfig: internalConfig,
	}

	wireApplication(bootstrap)

	server := &http.Server{
		Addr:    internalConfig.App.Port,
		Handler: chiRouter,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()
	log.Printf("Server listening on %s", internalConfig.App.Port)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Waiting for pending requests to be processed..")
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Second*time.Duration(internalConfig.App.ShutdownTimeoutInSeconds),
	)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := bootstrap.Shutdown(shutdownCtx); err != nil {
		log.Printf("Dependency shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func wireApplication(bootstrap *config.Bootstrap) {
	dbName := bootstrap.DriverConfig.MongoDB.DbName
	internalConfig := bootstrap.InternalConfig
	zapLogger := bootstrap.Logger

	invoiceRepository := invoices.NewInvoiceMongoRepository(bootstrap.MongoDB, dbName)
	approvalRepository := approvals.NewApprovalMongoRepository(bootstrap.MongoDB, dbName)
	companyRepository := companies.NewCompanyMongoRepository(bootstrap.MongoDB, dbName)
	companyBudgetRepository := companies.NewCompanyBudgetMongoRepository(bootstrap.MongoDB, dbName)
	patientRepository := patients.NewPatientMongoRepository(bootstrap.MongoDB, dbName)
	surgeryCaseRepository := surgeries.NewSurgeryCaseMongoRepository(bootstrap.MongoDB, dbName)
	serviceOrderRepository := serviceorders.NewServiceOrderMongoRepository(bootstrap.MongoDB, dbName)

	redisRepository := redisrepo.NewRedisRepository(bootstrap.Redis)
	lockerService := locker.NewLockService(redisRepository, zapLogger)
	currencyService := currency.NewCurrencyService(redisRepository, internalConfig, zapLogger)

	eventPublisher, err := events.NewRabbitEventPublisher(bootstrap.RabbitMQ, internalConfig.Billing.LiveEventQueue, zapLogger)
	if err != nil {
		log.Fatalf("Failed to initialize live event publisher: %v", err)
	}
	notificationService, err := notifications.NewRabbitNotificationService(bootstrap.RabbitMQ, internalConfig.Billing.NotificationQueue, zapLogger)
	if err != nil {
		log.Fatalf("Failed to initialize notification service: %v", err)
	}

	// Multi-document transactions need a replica set; standalone deployments
	// fall back to sequential execution.
	var transactionManager = database.NewSequentialTransactionManager()
	if bootstrap.DriverConfig.MongoDB.ReplicaSet != "" {
		transactionManager = database.NewMongoTransactionManager(bootstrap.MongoDB, internalConfig.Billing.PaymentTxMaxAttempts, zapLogger)
	}

	billingUsecase := billing.NewBillingUsecase(
		invoiceRepository,
		companyRepository,
		patientRepository,
		approvalRepository,
		companyBudgetRepository,
		currencyService,
		lockerService,
		eventPublisher,
		transactionManager,
		internalConfig,
		zapLogger,
	)
	approvalUsecase := approvals.NewApprovalUsecase(
		approvalRepository,
		invoiceRepository,
		companyRepository,
		patientRepository,
		companyBudgetRepository,
		lockerService,
		eventPublisher,
		transactionManager,
		internalConfig,
		zapLogger,
	)
	paymentUsecase := payments.NewPaymentUsecase(
		invoiceRepository,
		approvalRepository,
		companyBudgetRepository,
		surgeryCaseRepository,
		serviceOrderRepository,
		currencyService,
		eventPublisher,
		notificationService,
		transactionManager,
		internalConfig,
		zapLogger,
	)

	billingController := controllers.NewBillingController(zapLogger, billingUsecase)
	paymentController := controllers.NewPaymentController(zapLogger, paymentUsecase)
	approvalController := controllers.NewApprovalController(zapLogger, approvalUsecase)

	appMiddlewares := middlewares.NewMiddlewares(zapLogger, internalConfig)

	routers.SetupRoutes(
		bootstrap.Router,
		internalConfig,
		appMiddlewares,
		billingController,
		paymentController,
		approvalController,
	)
}
